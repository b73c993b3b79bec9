// Package geneinfo derives the gene annotation table used by augment from a
// GENCODE GTF file. For each gene it reports the union-exon length: the
// total length of the exonic sequence after merging the overlapping exons of
// all the gene's transcripts.
package geneinfo

import (
	"context"
	"io"
	"sort"
	"strings"

	"github.com/grailbio/base/tsv"
	"github.com/grailbio/rnaseq/fileio"
	"github.com/grailbio/rnaseq/table"
	"github.com/pkg/errors"
)

// Columns are the columns of the gene info table.
var Columns = []string{"gene_id", "total_exon_length", "gene_name", "gene_type", table.Chromosome}

// Gene is one row of the gene info table.
type Gene struct {
	ID              string
	Name            string
	Type            string
	Chrom           string
	TotalExonLength int64

	exons genomicRanges
}

type genomicRange struct {
	start, stop int64 // both ends are closed.
}

type genomicRanges []genomicRange

// Append r to g. If the last item in g overlaps or touches r, r is merged
// into it.
func (g *genomicRanges) merge(r genomicRange) {
	if n := len(*g); n > 0 {
		last := &(*g)[n-1]
		if r.start <= last.stop+1 && last.start <= r.stop+1 {
			if r.start < last.start {
				last.start = r.start
			}
			if r.stop > last.stop {
				last.stop = r.stop
			}
			return
		}
	}
	*g = append(*g, r)
}

// collapse sorts g and merges all overlapping ranges.
func (g *genomicRanges) collapse() {
	sort.Slice(*g, func(i, j int) bool {
		a, b := (*g)[i], (*g)[j]
		return a.start < b.start || (a.start == b.start && a.stop < b.stop)
	})
	collapsed := genomicRanges{}
	for _, r := range *g {
		collapsed.merge(r)
	}
	*g = collapsed
}

// length returns the number of bases covered by g.
//
// REQUIRES: g is collapsed.
func (g genomicRanges) length() int64 {
	var n int64
	for _, r := range g {
		n += r.stop - r.start + 1
	}
	return n
}

// gtfRecord stores one line of a GTF file.
type gtfRecord struct {
	Chrom    string
	Source   string
	Molecule string
	Start    int64
	Stop     int64
	Score    string // unused floating point value, but may be "."
	Strand   string
	Frame    string
	Fields   string
}

// parseInfoFields parses the attribute column of a GTF record into a map of
// key, value pairs.
func parseInfoFields(parsedInfo map[string]string, info string) {
	for k := range parsedInfo {
		delete(parsedInfo, k)
	}
	for _, field := range strings.Split(strings.TrimSpace(info), ";") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		pair := strings.SplitN(field, " ", 2)
		if len(pair) != 2 {
			continue
		}
		parsedInfo[pair[0]] = strings.Trim(strings.TrimSpace(pair[1]), "\"")
	}
}

// Read parses a GTF file and returns its genes sorted by gene ID, with the
// union-exon length filled in. Exons are attributed to genes through their
// gene_id attribute. An exon whose gene has no "gene" record is a Data
// error.
func Read(ctx context.Context, path string) (genes []*Gene, err error) {
	in, err := fileio.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if e := in.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	scanner := tsv.NewReader(in)
	scanner.Comment = '#'
	scanner.LazyQuotes = true
	scanner.FieldsPerRecord = 9

	var (
		records = map[string]*Gene{}
		fields  = map[string]string{}
		line    gtfRecord
	)
	for {
		if err := scanner.Read(&line); err != nil {
			if err == io.EOF {
				break
			}
			return nil, table.ReadError(path, err)
		}
		n, _ := scanner.Reader.FieldPos(0)
		switch line.Molecule {
		case "gene":
			parseInfoFields(fields, line.Fields)
			gene := &Gene{
				ID:    fields["gene_id"],
				Name:  fields["gene_name"],
				Type:  fields["gene_type"],
				Chrom: line.Chrom,
			}
			if gene.ID == "" {
				return nil, table.E(table.Parse, path, n, "gene record without gene_id")
			}
			if old, ok := records[gene.ID]; ok {
				gene.exons = old.exons
			}
			records[gene.ID] = gene
		case "exon":
			parseInfoFields(fields, line.Fields)
			id := fields["gene_id"]
			gene, ok := records[id]
			if !ok {
				// GENCODE lists a gene before its transcripts and exons.
				return nil, table.E(table.Data, path, n, "exon of gene %q precedes its gene record; GTF not sorted properly", id)
			}
			gene.exons = append(gene.exons, genomicRange{line.Start, line.Stop})
		}
	}

	genes = make([]*Gene, 0, len(records))
	for _, gene := range records {
		gene.exons.collapse()
		gene.TotalExonLength = gene.exons.length()
		gene.exons = nil
		genes = append(genes, gene)
	}
	sort.Slice(genes, func(i, j int) bool {
		return genes[i].ID < genes[j].ID
	})
	return genes, nil
}

// Write writes genes to w as a gene info table: a header line with Columns,
// then one line per gene.
func Write(w io.Writer, genes []*Gene) error {
	out := tsv.NewWriter(w)
	for _, c := range Columns {
		out.WriteString(c)
	}
	if err := out.EndLine(); err != nil {
		return err
	}
	for _, g := range genes {
		out.WriteString(g.ID)
		out.WriteInt64(g.TotalExonLength)
		out.WriteString(g.Name)
		out.WriteString(g.Type)
		out.WriteString(g.Chrom)
		if err := out.EndLine(); err != nil {
			return err
		}
	}
	return out.Flush()
}

// Generate reads the GTF file at gtfPath and writes the gene info table to
// outPath.
func Generate(ctx context.Context, gtfPath, outPath string, log table.Logger) (err error) {
	log = table.OrNop(log)
	log.Printf("Reading GTF %s", gtfPath)
	genes, err := Read(ctx, gtfPath)
	if err != nil {
		return err
	}
	log.Printf("Writing %d genes to %s", len(genes), outPath)
	out, err := fileio.Create(ctx, outPath)
	if err != nil {
		return err
	}
	defer out.Finish(ctx, &err)
	if err = Write(out, genes); err != nil {
		return errors.Wrapf(err, "write %s", outPath)
	}
	return nil
}
