// Package fileio opens input and output streams for the rnaseq tools.
// Compression is chosen by filename suffix: a path ending in ".gz" is read
// through a gzip decoder and written through a gzip encoder. Everything else
// is treated as plain text.
package fileio

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/grailbio/base/compress"
	gerrors "github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

const bufSize = 64 << 10

// IsGzip reports whether path names a gzip-compressed file.
func IsGzip(path string) bool {
	return strings.HasSuffix(path, ".gz")
}

// Reader is an open input file. Reads return decompressed bytes.
type Reader struct {
	r    *bufio.Reader
	in   file.File
	path string
}

// Open opens path for reading.
func Open(ctx context.Context, path string) (*Reader, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	var inr io.Reader = in.Reader(ctx)
	if u := compress.NewReaderPath(inr, in.Name()); u != nil {
		inr = u
	}
	return &Reader{r: bufio.NewReaderSize(inr, bufSize), in: in, path: path}, nil
}

// Path returns the pathname passed to Open.
func (r *Reader) Path() string { return r.path }

// Read implements io.Reader.
func (r *Reader) Read(p []byte) (int, error) { return r.r.Read(p) }

// Close closes the underlying file.
func (r *Reader) Close(ctx context.Context) error {
	if err := r.in.Close(ctx); err != nil {
		return errors.Wrapf(err, "close %s", r.path)
	}
	return nil
}

// Writer is an open output file. The file becomes visible under its final
// name only after a successful Close; Discard drops whatever was written.
type Writer struct {
	w    *bufio.Writer
	gz   *gzip.Writer
	out  file.File
	path string
}

// Create opens path for writing. An existing file at path is replaced when
// the writer is closed.
func Create(ctx context.Context, path string) (*Writer, error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "create %s", path)
	}
	w := &Writer{out: out, path: path}
	var dst io.Writer = out.Writer(ctx)
	if IsGzip(path) {
		w.gz = gzip.NewWriter(dst)
		dst = w.gz
	}
	w.w = bufio.NewWriterSize(dst, bufSize)
	return w, nil
}

// Path returns the pathname passed to Create.
func (w *Writer) Path() string { return w.path }

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) { return w.w.Write(p) }

// WriteString writes s.
func (w *Writer) WriteString(s string) (int, error) { return w.w.WriteString(s) }

// Close flushes buffered data and commits the file.
func (w *Writer) Close(ctx context.Context) error {
	e := gerrors.Once{}
	e.Set(w.w.Flush())
	if w.gz != nil {
		e.Set(w.gz.Close())
	}
	e.Set(w.out.Close(ctx))
	if err := e.Err(); err != nil {
		return errors.Wrapf(err, "close %s", w.path)
	}
	return nil
}

// Discard abandons the file. Nothing written so far becomes visible, and
// a file previously at the path is left as it was. It is used on error
// paths instead of Close.
func (w *Writer) Discard(ctx context.Context) {
	w.out.Discard(ctx)
}

// Finish closes w when *err is nil, and discards it otherwise. A close
// failure is reported through err. It is meant to be deferred:
//
//	out, err := fileio.Create(ctx, path)
//	...
//	defer out.Finish(ctx, &err)
func (w *Writer) Finish(ctx context.Context, err *error) {
	if *err != nil {
		w.Discard(ctx)
		return
	}
	if e := w.Close(ctx); e != nil {
		*err = e
	}
}

// Copy streams the full decompressed content of the file at path to dst.
func Copy(ctx context.Context, dst io.Writer, path string) (err error) {
	in, err := Open(ctx, path)
	if err != nil {
		return err
	}
	defer func() {
		if e := in.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	if _, err = io.Copy(dst, in); err != nil {
		return errors.Wrapf(err, "copy %s", path)
	}
	return nil
}
