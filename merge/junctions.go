package merge

import (
	"context"
	"fmt"
	"sort"

	"github.com/grailbio/base/tsv"
	"github.com/grailbio/rnaseq/fileio"
	"github.com/grailbio/rnaseq/table"
	"github.com/pkg/errors"
)

// JunctionColumns are the columns of a STAR SJ.out.tab file.
var JunctionColumns = []string{
	"chromosome",
	"intron_start",
	"intron_end",
	"strand",
	"intron_motif",
	"annotation",
	"n_unique_map",
	"n_multi_map",
	"max_splice_overhang",
}

// JunctionKey identifies a splice junction. Records from different files are
// merged only when their keys are equal.
type JunctionKey struct {
	Chrom       string
	IntronStart int64 // first base of the intron, 1-based
	IntronEnd   int64 // last base of the intron, 1-based
	Strand      int   // 0: undefined, 1: +, 2: -
	Motif       int   // 0: non-canonical, 1-6: GT/AG, CT/AC, ...
	Annotation  int   // 0: unannotated, 1: annotated
}

// less orders keys by chromosome name, then numerically by the remaining
// fields.
func (k JunctionKey) less(o JunctionKey) bool {
	if k.Chrom != o.Chrom {
		return k.Chrom < o.Chrom
	}
	if k.IntronStart != o.IntronStart {
		return k.IntronStart < o.IntronStart
	}
	if k.IntronEnd != o.IntronEnd {
		return k.IntronEnd < o.IntronEnd
	}
	if k.Strand != o.Strand {
		return k.Strand < o.Strand
	}
	if k.Motif != o.Motif {
		return k.Motif < o.Motif
	}
	return k.Annotation < o.Annotation
}

// JunctionRecord is one line of an SJ.out.tab file.
type JunctionRecord struct {
	JunctionKey
	NUnique     int64 // uniquely mapping reads crossing the junction
	NMulti      int64 // multi-mapping reads crossing the junction
	MaxOverhang int64 // maximum spliced alignment overhang
}

// junctionRow is the on-disk layout of a JunctionRecord.
type junctionRow struct {
	Chrom       string
	IntronStart int64
	IntronEnd   int64
	Strand      int
	Motif       int
	Annotation  int
	NUnique     int64
	NMulti      int64
	MaxOverhang int64
}

func (r junctionRow) record() JunctionRecord {
	return JunctionRecord{
		JunctionKey: JunctionKey{
			Chrom:       r.Chrom,
			IntronStart: r.IntronStart,
			IntronEnd:   r.IntronEnd,
			Strand:      r.Strand,
			Motif:       r.Motif,
			Annotation:  r.Annotation,
		},
		NUnique:     r.NUnique,
		NMulti:      r.NMulti,
		MaxOverhang: r.MaxOverhang,
	}
}

// Merge adds the read counts of o to r and keeps the larger overhang.
//
// REQUIRES: r and o have the same key. A mismatch is a programming error
// and panics.
func (r *JunctionRecord) Merge(o JunctionRecord) {
	if r.JunctionKey != o.JunctionKey {
		panic(fmt.Sprintf("merge junction: key mismatch %+v <-> %+v", r.JunctionKey, o.JunctionKey))
	}
	r.NUnique += o.NUnique
	r.NMulti += o.NMulti
	if o.MaxOverhang > r.MaxOverhang {
		r.MaxOverhang = o.MaxOverhang
	}
}

// readJunctions merges every record in path into recs.
func readJunctions(ctx context.Context, path string, recs map[JunctionKey]*JunctionRecord) error {
	var row junctionRow
	return scanFile(ctx, path, len(JunctionColumns), &row, func(line int) error {
		if row.NUnique < 0 || row.NMulti < 0 || row.MaxOverhang < 0 {
			return table.E(table.Parse, path, line, "negative count for junction %s:%d-%d",
				row.Chrom, row.IntronStart, row.IntronEnd)
		}
		rec := row.record()
		if r, ok := recs[rec.JunctionKey]; ok {
			r.Merge(rec)
		} else {
			recs[rec.JunctionKey] = &rec
		}
		return nil
	})
}

// sortedJunctions returns the records in recs ordered by key.
func sortedJunctions(recs map[JunctionKey]*JunctionRecord) []*JunctionRecord {
	sorted := make([]*JunctionRecord, 0, len(recs))
	for _, r := range recs {
		sorted = append(sorted, r)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].JunctionKey.less(sorted[j].JunctionKey)
	})
	return sorted
}

// MergeJunctions merges the junction files in inputs into output.
//
// With one input, the output is the header line followed by the input
// content, unmodified. Otherwise records with the same key are merged and
// written sorted by chromosome, intron start, intron end, and then by the
// remaining key fields.
func MergeJunctions(ctx context.Context, inputs []string, output string, log table.Logger) (err error) {
	log = table.OrNop(log)
	if len(inputs) == 0 {
		return errors.New("merge junctions: no input files")
	}
	log.Printf("Writing outputs to %s", output)
	out, err := fileio.Create(ctx, output)
	if err != nil {
		return err
	}
	defer out.Finish(ctx, &err)

	if len(inputs) == 1 {
		log.Printf("Only 1 STAR junction counts file provided. A new STAR junction counts file will be produced with a header line.")
		return passthrough(ctx, out, JunctionColumns, inputs[0])
	}

	log.Printf("Merging %d STAR junction counts files.", len(inputs))
	recs := map[JunctionKey]*JunctionRecord{}
	for _, path := range inputs {
		if err := readJunctions(ctx, path, recs); err != nil {
			return err
		}
	}
	log.Printf("Writing merged STAR junction counts (%d junctions) to %s.", len(recs), output)
	return writeJunctions(out, sortedJunctions(recs))
}

func writeJunctions(out *fileio.Writer, recs []*JunctionRecord) error {
	if err := writeHeader(out, JunctionColumns); err != nil {
		return errors.Wrapf(err, "write %s", out.Path())
	}
	w := tsv.NewWriter(out)
	for _, r := range recs {
		w.WriteString(r.Chrom)
		w.WriteInt64(r.IntronStart)
		w.WriteInt64(r.IntronEnd)
		w.WriteInt64(int64(r.Strand))
		w.WriteInt64(int64(r.Motif))
		w.WriteInt64(int64(r.Annotation))
		w.WriteInt64(r.NUnique)
		w.WriteInt64(r.NMulti)
		w.WriteInt64(r.MaxOverhang)
		if err := w.EndLine(); err != nil {
			return errors.Wrapf(err, "write %s", out.Path())
		}
	}
	return w.Flush()
}
