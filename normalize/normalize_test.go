package normalize

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/floats"
)

var (
	exampleCounts  = []int64{1500, 0, 1500, 6000, 7500, 6000, 7500}
	exampleLengths = []int64{1000, 1000, 1000, 1000, 1000, 1000, 1000}
	exampleTypes   = []string{ProteinCoding, ProteinCoding, ProteinCoding, ProteinCoding,
		ProteinCoding, ProteinCoding, ProteinCoding}
	exampleChroms = []string{"chrX", "chr1", "chr22", "chr3", "chr5", "chrM", "chr10"}
)

func TestTPM(t *testing.T) {
	got := TPM(exampleCounts, exampleLengths)
	assert.InDeltaSlice(t, []float64{50000, 0, 50000, 200000, 250000, 200000, 250000}, got, 1e-6)
	assert.InDelta(t, 1e6, floats.Sum(got), 1e-6)

	// Lengths matter: a gene twice as long gets half the TPM for the same count.
	got = TPM([]int64{100, 100}, []int64{1000, 2000})
	assert.InDelta(t, 2*got[1], got[0], 1e-9)
	assert.InDelta(t, 1e6, floats.Sum(got), 1e-6)
}

func TestFPKM(t *testing.T) {
	got := FPKM(exampleCounts, exampleLengths, exampleTypes)
	assert.InDeltaSlice(t, []float64{50000, 0, 50000, 200000, 250000, 200000, 250000}, got, 1e-6)

	// Only protein-coding genes contribute to the depth; all genes are scaled.
	got = FPKM([]int64{1000, 1000}, []int64{1000, 1000}, []string{ProteinCoding, "lncRNA"})
	assert.InDeltaSlice(t, []float64{1e6, 1e6}, got, 1e-6)
}

func TestFPKMUQ(t *testing.T) {
	got := FPKMUQ(exampleCounts, exampleLengths, exampleTypes, exampleChroms)
	assert.InDeltaSlice(t, []float64{40000, 0, 40000, 160000, 200000, 160000, 200000}, got, 1e-6)
}

func TestFPKMUQExcludesNonProteinCoding(t *testing.T) {
	counts := []int64{100, 200, 300, 400, 1e6}
	lengths := []int64{1000, 1000, 1000, 1000, 1000}
	types := []string{ProteinCoding, ProteinCoding, ProteinCoding, ProteinCoding, "lncRNA"}
	chroms := []string{"chr1", "chr2", "chr3", "chr4", "chr5"}
	got := FPKMUQ(counts, lengths, types, chroms)
	// U = 325, G = 4.
	want := 100 * 1e9 / (325.0 * 4 * 1000)
	assert.InDelta(t, want, got[0], 1e-9)
}

func TestDegenerateInputs(t *testing.T) {
	// No protein-coding genes: the depth is zero.
	got := FPKM([]int64{10, 0}, []int64{1000, 1000}, []string{"lncRNA", "lncRNA"})
	assert.True(t, math.IsInf(got[0], 1))
	assert.True(t, math.IsNaN(got[1]))
	assert.Equal(t, 2, NonFinite(got))

	got = FPKMUQ([]int64{10}, []int64{1000}, []string{ProteinCoding}, []string{"chrX"})
	assert.Equal(t, 1, NonFinite(got))

	assert.Equal(t, 0, NonFinite(TPM([]int64{1, 2}, []int64{10, 10})))
	assert.Panics(t, func() { TPM([]int64{1}, []int64{1, 2}) })
}

func TestQuantile(t *testing.T) {
	for _, test := range []struct {
		xs   []float64
		p    float64
		want float64
	}{
		{[]float64{1, 2, 3, 4}, 0, 1},
		{[]float64{1, 2, 3, 4}, 0.5, 2.5},
		{[]float64{1, 2, 3, 4}, 0.75, 3.25},
		{[]float64{4, 3, 2, 1}, 0.75, 3.25},
		{[]float64{1, 2, 3, 4}, 1, 4},
		{[]float64{1500, 6000, 7500, 7500}, 0.75, 7500},
		{[]float64{5}, 0.75, 5},
		{[]float64{0, 10}, 0.9, 9},
	} {
		assert.InDelta(t, test.want, Quantile(test.xs, test.p), 1e-12, "%v %v", test.xs, test.p)
	}
	assert.True(t, math.IsNaN(Quantile(nil, 0.75)))

	xs := []float64{3, 1, 2}
	Quantile(xs, 0.5)
	assert.Equal(t, []float64{3, 1, 2}, xs)
}

func TestIsAutosome(t *testing.T) {
	assert.True(t, IsAutosome("chr1"))
	assert.True(t, IsAutosome("chr22"))
	assert.False(t, IsAutosome("chrX"))
	assert.False(t, IsAutosome("chrY"))
	assert.False(t, IsAutosome("chrM"))
}
