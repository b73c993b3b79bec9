package table

// Logger receives progress messages from the tools that read and write
// tables. The levels of github.com/grailbio/base/log, e.g. log.Info, satisfy
// it.
type Logger interface {
	Printf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...interface{}) {}

// OrNop returns l, or a Logger that drops everything if l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return nopLogger{}
	}
	return l
}
