package table

import (
	"context"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

const simpleTable = `# leading comment
gene_id	total_exon_length	gene_name	gene_type	Chromosome
ENSG00000000001.0	1000	ONE	protein_coding	chrX
ENSG00000000002.0	1000	TWO	protein_coding	chr1
ENSG00000000003.0	1000	THREE	lncRNA	chr22
`

func writeTemp(t *testing.T, dir, name, data string) string {
	path := filepath.Join(dir, name)
	assert.NoError(t, ioutil.WriteFile(path, []byte(data), 0644))
	return path
}

func TestLoadWithHeader(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := writeTemp(t, tempDir, "gene_info.tsv", simpleTable)

	tbl, err := Load(context.Background(), path, nil)
	assert.NoError(t, err)
	expect.EQ(t, tbl.Columns, []string{"gene_id", "total_exon_length", "gene_name", "gene_type", "chromosome"})
	assert.EQ(t, tbl.Len(), 3)
	expect.EQ(t, tbl.Rows[1], []string{"ENSG00000000002.0", "1000", "TWO", "protein_coding", "chr1"})

	lengths, err := tbl.Int64Column("total_exon_length")
	assert.NoError(t, err)
	expect.EQ(t, lengths, []int64{1000, 1000, 1000})

	names, err := tbl.StringColumn("gene_name")
	assert.NoError(t, err)
	expect.EQ(t, names, []string{"ONE", "TWO", "THREE"})
}

func TestLoadWithColumnNames(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := writeTemp(t, tempDir, "counts.tsv", "N_unmapped\t5\t5\t5\nENSG1.1\t10\t0\t10\n")

	tbl, err := Load(context.Background(), path, []string{"gene_id", "unstranded", "stranded_first", "stranded_second"})
	assert.NoError(t, err)
	assert.EQ(t, tbl.Len(), 2)
	expect.EQ(t, tbl.Rows[0][0], "N_unmapped")

	// Rows must have as many fields as there are columns.
	path = writeTemp(t, tempDir, "short.tsv", "ENSG1.1\t10\t0\n")
	_, err = Load(context.Background(), path, []string{"gene_id", "unstranded", "stranded_first", "stranded_second"})
	expect.True(t, Is(Parse, err), err)
}

func TestInt64ColumnParseError(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := writeTemp(t, tempDir, "bad.tsv", "id\tn\na\t1\nb\tx\n")

	tbl, err := Load(context.Background(), path, nil)
	assert.NoError(t, err)
	_, err = tbl.Int64Column("n")
	assert.True(t, Is(Parse, err), err)
	assert.HasSubstr(t, err.Error(), "bad.tsv:3")
	_, err = tbl.Int64Column("missing")
	expect.True(t, Is(DataFormat, err), err)
}

func TestNonNegative(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := writeTemp(t, tempDir, "counts.tsv", "# comment\nid\tn\tm\na\t1\t0\nb\t2\t-1\n")

	tbl, err := Load(context.Background(), path, nil)
	assert.NoError(t, err)
	expect.NoError(t, tbl.NonNegative("n"))
	err = tbl.NonNegative("n", "m")
	assert.True(t, Is(Parse, err), err)
	assert.HasSubstr(t, err.Error(), "counts.tsv:4:")
}

func TestValidate(t *testing.T) {
	tbl := New([]string{"gene_id", "gene_name", "extra"}, nil)
	expect.NoError(t, Validate(tbl, []string{"gene_id", "gene_name"}))

	err := Validate(tbl, []string{"not", "in", "gene_id", "table"})
	assert.True(t, Is(DataFormat, err), err)
	expect.True(t, strings.Contains(err.Error(), "not, in, table"), err)
}

func TestInnerJoin(t *testing.T) {
	left := New([]string{"id", "A"}, [][]string{{"1", "one"}, {"2", "two"}, {"3", "three"}, {"4", "four"}})
	right := New([]string{"id", "B"}, [][]string{{"2", "owt"}, {"3", "eerht"}, {"4", "ruof"}, {"5", "evif"}})

	joined, err := InnerJoin(left, right, "id")
	assert.NoError(t, err)
	expect.EQ(t, joined.Columns, []string{"id", "A", "B"})
	expect.EQ(t, joined.Rows, [][]string{
		{"2", "two", "owt"},
		{"3", "three", "eerht"},
		{"4", "four", "ruof"},
	})

	_, err = InnerJoin(left, right, "nokey")
	expect.True(t, Is(DataFormat, err), err)
}

func TestInnerJoinDuplicates(t *testing.T) {
	left := New([]string{"id", "v"}, [][]string{{"b", "1"}, {"a", "2"}})
	right := New([]string{"v", "id"}, [][]string{{"x", "a"}, {"y", "b"}, {"z", "a"}})

	joined, err := InnerJoin(left, right, "id")
	assert.NoError(t, err)
	expect.EQ(t, joined.Columns, []string{"id", "v_x", "v_y"})
	expect.EQ(t, joined.Rows, [][]string{
		{"b", "1", "y"},
		{"a", "2", "x"},
		{"a", "2", "z"},
	})
}

func TestConcatProject(t *testing.T) {
	extras := New([]string{"gene_id", "unstranded"}, [][]string{{"N_unmapped", "7"}})
	genes := New([]string{"gene_id", "gene_name", "unstranded"}, [][]string{{"G1", "ONE", "3"}})

	all := Concat(extras, genes)
	expect.EQ(t, all.Columns, []string{"gene_id", "unstranded", "gene_name"})

	final, err := Project(all, []string{"gene_id", "gene_name", "unstranded"})
	assert.NoError(t, err)
	expect.EQ(t, final.Rows, [][]string{
		{"N_unmapped", "", "7"},
		{"G1", "ONE", "3"},
	})
}

func TestSave(t *testing.T) {
	ctx := context.Background()
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(tempDir, "save_results_output.tsv")

	tbl := New([]string{"id", "A"}, [][]string{{"1", "one"}, {"2", "two"}, {"3", "three"}, {"4", "four"}})
	assert.NoError(t, Save(ctx, path, tbl, "gene-model: GENCODE v36"))
	data, err := ioutil.ReadFile(path)
	assert.NoError(t, err)
	expect.EQ(t, string(data), "# gene-model: GENCODE v36\n"+
		"id\tA\n"+
		"1\tone\n"+
		"2\ttwo\n"+
		"3\tthree\n"+
		"4\tfour\n")

	// Reload: the pragma line is a comment.
	reloaded, err := Load(ctx, path, nil)
	assert.NoError(t, err)
	expect.EQ(t, reloaded.Rows, tbl.Rows)
}
