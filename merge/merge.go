// Package merge combines per-sample STAR output files from the same sample
// into one file.
//
// MergeGeneCounts handles ReadsPerGene.out.tab files, and MergeJunctions
// handles SJ.out.tab files. With a single input, both write a '#' header
// line followed by the input bytes unchanged. With several inputs, records
// sharing a key are aggregated.
package merge

import (
	"context"
	"io"

	"github.com/grailbio/base/tsv"
	"github.com/grailbio/rnaseq/fileio"
	"github.com/grailbio/rnaseq/table"
	"github.com/pkg/errors"
)

// writeHeader writes the '#'-prefixed column header line.
func writeHeader(w io.Writer, columns []string) error {
	out := tsv.NewWriter(w)
	out.WriteString("#" + columns[0])
	for _, c := range columns[1:] {
		out.WriteString(c)
	}
	if err := out.EndLine(); err != nil {
		return err
	}
	return out.Flush()
}

// passthrough writes the header and then the content of path, unchanged.
func passthrough(ctx context.Context, out *fileio.Writer, columns []string, path string) error {
	if err := writeHeader(out, columns); err != nil {
		return errors.Wrapf(err, "write %s", out.Path())
	}
	return fileio.Copy(ctx, out, path)
}

// scanFile calls fn for every record of path decoded into row, a pointer to
// a struct with one field per column. fn receives the record's line number
// in the file. nFields is the required number of fields per record.
func scanFile(ctx context.Context, path string, nFields int, row interface{}, fn func(line int) error) (err error) {
	in, err := fileio.Open(ctx, path)
	if err != nil {
		return err
	}
	defer func() {
		if e := in.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	r := tsv.NewReader(in)
	r.Comment = '#'
	r.LazyQuotes = true
	r.FieldsPerRecord = nFields
	for {
		if err := r.Read(row); err != nil {
			if err == io.EOF {
				return nil
			}
			return table.ReadError(path, err)
		}
		line, _ := r.Reader.FieldPos(0)
		if err := fn(line); err != nil {
			return err
		}
	}
}
