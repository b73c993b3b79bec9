package merge

import (
	"context"

	"github.com/grailbio/base/tsv"
	"github.com/grailbio/rnaseq/fileio"
	"github.com/grailbio/rnaseq/table"
	"github.com/pkg/errors"
)

// GeneCountColumns are the columns of a merged gene counts file.
var GeneCountColumns = []string{"gene", "unstranded", "stranded_first", "stranded_second"}

// GeneCountRecord is one line of a STAR ReadsPerGene.out.tab file. The first
// four lines of such a file are summary rows (N_unmapped, N_multimapping,
// N_noFeature, N_ambiguous) with the same layout.
type GeneCountRecord struct {
	GeneID         string
	Unstranded     int64
	StrandedFirst  int64
	StrandedSecond int64
}

func (r *GeneCountRecord) add(o GeneCountRecord) {
	r.Unstranded += o.Unstranded
	r.StrandedFirst += o.StrandedFirst
	r.StrandedSecond += o.StrandedSecond
}

// geneCounts sums counts per gene, remembering the order in which genes were
// first seen.
type geneCounts struct {
	recs []GeneCountRecord
	idx  map[string]int
}

func newGeneCounts() *geneCounts {
	return &geneCounts{idx: map[string]int{}}
}

func (g *geneCounts) add(r GeneCountRecord) {
	i, ok := g.idx[r.GeneID]
	if !ok {
		g.idx[r.GeneID] = len(g.recs)
		g.recs = append(g.recs, r)
		return
	}
	g.recs[i].add(r)
}

// Records returns the summed records in first-seen order.
func (g *geneCounts) Records() []GeneCountRecord { return g.recs }

// readGeneCounts adds every record in path to g.
func readGeneCounts(ctx context.Context, path string, g *geneCounts) error {
	var row GeneCountRecord
	return scanFile(ctx, path, len(GeneCountColumns), &row, func(line int) error {
		if row.Unstranded < 0 || row.StrandedFirst < 0 || row.StrandedSecond < 0 {
			return table.E(table.Parse, path, line, "negative count for %s", row.GeneID)
		}
		g.add(row)
		return nil
	})
}

// MergeGeneCounts merges the gene counts files in inputs into output.
//
// With one input, the output is the header line followed by the input
// content, unmodified. Otherwise the three counts are summed per gene ID
// across all inputs and written in the order genes were first seen.
func MergeGeneCounts(ctx context.Context, inputs []string, output string, log table.Logger) (err error) {
	log = table.OrNop(log)
	if len(inputs) == 0 {
		return errors.New("merge gene counts: no input files")
	}
	log.Printf("Writing outputs to %s", output)
	out, err := fileio.Create(ctx, output)
	if err != nil {
		return err
	}
	defer out.Finish(ctx, &err)

	if len(inputs) == 1 {
		log.Printf("Only 1 STAR gene counts file provided. A new STAR gene counts file will be produced with a header line.")
		return passthrough(ctx, out, GeneCountColumns, inputs[0])
	}

	log.Printf("Merging %d STAR gene counts files.", len(inputs))
	counts := newGeneCounts()
	for _, path := range inputs {
		if err := readGeneCounts(ctx, path, counts); err != nil {
			return err
		}
	}
	log.Printf("Writing merged STAR gene counts (%d genes) to %s.", len(counts.Records()), output)
	return writeGeneCounts(out, counts.Records())
}

func writeGeneCounts(out *fileio.Writer, recs []GeneCountRecord) error {
	if err := writeHeader(out, GeneCountColumns); err != nil {
		return errors.Wrapf(err, "write %s", out.Path())
	}
	w := tsv.NewWriter(out)
	for _, r := range recs {
		w.WriteString(r.GeneID)
		w.WriteInt64(r.Unstranded)
		w.WriteInt64(r.StrandedFirst)
		w.WriteInt64(r.StrandedSecond)
		if err := w.EndLine(); err != nil {
			return errors.Wrapf(err, "write %s", out.Path())
		}
	}
	return w.Flush()
}
