// Package augment adds gene information and normalized expression values
// (TPM, FPKM, FPKM-UQ) to a STAR gene counts file.
package augment

import (
	"context"
	"math"
	"strconv"

	"github.com/grailbio/rnaseq/normalize"
	"github.com/grailbio/rnaseq/table"
	"github.com/pkg/errors"
)

// Column names.
const (
	GeneID           = "gene_id"
	TotalExonLength  = "total_exon_length"
	GeneName         = "gene_name"
	GeneType         = "gene_type"
	Chromosome       = table.Chromosome
	Unstranded       = "unstranded"
	StrandedFirst    = "stranded_first"
	StrandedSecond   = "stranded_second"
	TPMUnstranded    = "tpm_unstranded"
	FPKMUnstranded   = "fpkm_unstranded"
	FPKMUQUnstranded = "fpkm_uq_unstranded"
)

var (
	// CountsColumns are the columns of a STAR ReadsPerGene.out.tab file,
	// which has no header line.
	CountsColumns = []string{GeneID, Unstranded, StrandedFirst, StrandedSecond}
	// GeneInfoColumns are the required columns of the gene annotation table.
	GeneInfoColumns = []string{GeneID, TotalExonLength, GeneName, GeneType, Chromosome}
	// MergedColumns are the columns of the joined annotation and counts.
	MergedColumns = []string{GeneID, TotalExonLength, GeneName, GeneType, Chromosome,
		Unstranded, StrandedFirst, StrandedSecond}
	// FinalColumns are the columns of the augmented report, in order.
	FinalColumns = []string{GeneID, GeneName, GeneType, Unstranded, StrandedFirst,
		StrandedSecond, TPMUnstranded, FPKMUnstranded, FPKMUQUnstranded}
)

// NumExtras is the number of summary rows (N_unmapped, N_multimapping,
// N_noFeature, N_ambiguous) at the top of a STAR gene counts file.
const NumExtras = 4

// Authority selects the table whose row count the join result must match.
type Authority int

const (
	// AuthorityGeneInfo requires every annotated gene to have counts.
	AuthorityGeneInfo Authority = iota
	// AuthorityCounts requires every counted gene to be annotated.
	AuthorityCounts
)

// ParseAuthority converts "gene-info" or "counts" to an Authority.
func ParseAuthority(s string) (Authority, error) {
	switch s {
	case "gene-info", "":
		return AuthorityGeneInfo, nil
	case "counts":
		return AuthorityCounts, nil
	}
	return 0, errors.Errorf("unknown join authority %q, expect gene-info or counts", s)
}

func (a Authority) String() string {
	if a == AuthorityCounts {
		return "counts"
	}
	return "gene-info"
}

// Opts configures Augment.
type Opts struct {
	// CountsPath is a STAR ReadsPerGene.out.tab file.
	CountsPath string
	// GeneInfoPath is a table with a header and at least the
	// GeneInfoColumns.
	GeneInfoPath string
	// OutputPath receives the augmented report.
	OutputPath string
	// GencodeVersion is recorded in the "# gene-model: GENCODE v<N>" line.
	// The line is omitted if empty.
	GencodeVersion string
	// Authority defaults to AuthorityGeneInfo.
	Authority Authority
}

// Augment reads the counts and gene info tables, joins them on gene ID,
// computes normalized values, and writes the report to opts.OutputPath.
//
// The four summary rows of the counts file are excluded from the join and
// normalization and appear, unmodified, as the first rows of the report.
func Augment(ctx context.Context, opts Opts, log table.Logger) error {
	log = table.OrNop(log)
	log.Printf("Reading counts file %s", opts.CountsPath)
	counts, err := table.Load(ctx, opts.CountsPath, CountsColumns)
	if err != nil {
		return err
	}
	if err := table.Validate(counts, CountsColumns); err != nil {
		return err
	}
	if err := counts.NonNegative(Unstranded, StrandedFirst, StrandedSecond); err != nil {
		return err
	}
	if counts.Len() < NumExtras {
		return table.E(table.Data, opts.CountsPath, 0,
			"expect at least %d summary rows, found %d rows", NumExtras, counts.Len())
	}

	log.Printf("Reading gene info file %s", opts.GeneInfoPath)
	geneInfo, err := table.Load(ctx, opts.GeneInfoPath, nil)
	if err != nil {
		return err
	}
	if err := table.Validate(geneInfo, GeneInfoColumns); err != nil {
		return err
	}

	extras := counts.Slice(0, NumExtras)
	genes := counts.Slice(NumExtras, counts.Len())

	log.Printf("Merging counts and gene info tables")
	merged, err := Join(geneInfo, genes, opts.Authority)
	if err != nil {
		return err
	}

	log.Printf("Calculating normalized counts")
	if err := addNormalized(merged, log); err != nil {
		return err
	}

	final, err := table.Project(table.Concat(extras, merged), FinalColumns)
	if err != nil {
		return err
	}
	log.Printf("Saving results to %s", opts.OutputPath)
	var comments []string
	if opts.GencodeVersion != "" {
		comments = append(comments, "gene-model: GENCODE v"+opts.GencodeVersion)
	}
	return table.Save(ctx, opts.OutputPath, final, comments...)
}

// Join inner-joins the gene info table with the gene rows of a counts table
// on gene ID. The result follows the row order of geneInfo. It is a Data
// error for the result to have fewer rows than the authoritative table.
func Join(geneInfo, genes *table.Table, authority Authority) (*table.Table, error) {
	merged, err := table.InnerJoin(geneInfo, genes, GeneID)
	if err != nil {
		return nil, err
	}
	if err := table.Validate(merged, MergedColumns); err != nil {
		return nil, err
	}
	want, path := geneInfo.Len(), geneInfo.Path
	if authority == AuthorityCounts {
		want, path = genes.Len(), genes.Path
	}
	if merged.Len() < want {
		return nil, table.E(table.Data, path, 0,
			"joined table has %d rows, expect %d (%s); input files may be truncated or mismatched",
			merged.Len(), want, authority)
	}
	return merged, nil
}

// addNormalized appends the FPKM, FPKM-UQ and TPM columns to merged.
func addNormalized(merged *table.Table, log table.Logger) error {
	expr, err := merged.Int64Column(Unstranded)
	if err != nil {
		return err
	}
	lengths, err := merged.Int64Column(TotalExonLength)
	if err != nil {
		return err
	}
	ids, err := merged.StringColumn(GeneID)
	if err != nil {
		return err
	}
	for i, l := range lengths {
		if l <= 0 {
			return table.E(table.Data, "", 0, "gene %s: %s must be positive, found %d", ids[i], TotalExonLength, l)
		}
	}
	geneTypes, err := merged.StringColumn(GeneType)
	if err != nil {
		return err
	}
	chroms, err := merged.StringColumn(Chromosome)
	if err != nil {
		return err
	}
	add := func(name string, vals []float64) {
		if n := normalize.NonFinite(vals); n > 0 {
			log.Printf("warning: %d of %d %s values are not finite", n, len(vals), name)
		}
		merged.AddColumn(name, formatFloats(vals))
	}
	add(FPKMUnstranded, normalize.FPKM(expr, lengths, geneTypes))
	add(FPKMUQUnstranded, normalize.FPKMUQ(expr, lengths, geneTypes, chroms))
	add(TPMUnstranded, normalize.TPM(expr, lengths))
	return nil
}

// formatFloat renders v with four decimal places. NaN becomes an empty cell
// and infinities become "inf" and "-inf".
func formatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return ""
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func formatFloats(vals []float64) []string {
	s := make([]string, len(vals))
	for i, v := range vals {
		s[i] = formatFloat(v)
	}
	return s
}
