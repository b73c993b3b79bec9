// Package normalize computes length- and depth-normalized expression values
// from raw per-gene read counts.
//
// All functions take parallel slices with one entry per gene: the raw
// (unstranded) count and the union-exon length. Degenerate inputs, such as
// a table without protein-coding genes or a zero upper quartile, are not
// rejected: the affected values come out as NaN or ±Inf.
package normalize

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// ProteinCoding is the gene biotype whose counts define the FPKM and
// FPKM-UQ scaling factors.
const ProteinCoding = "protein_coding"

// nonAutosomes are the chromosomes excluded from the FPKM-UQ upper quartile
// and gene count.
var nonAutosomes = map[string]bool{"chrX": true, "chrY": true, "chrM": true}

// IsAutosome reports whether chrom is an autosome for FPKM-UQ purposes.
func IsAutosome(chrom string) bool { return !nonAutosomes[chrom] }

func checkLen(n int, others ...int) {
	for _, m := range others {
		if m != n {
			panic("normalize: slices differ in length")
		}
	}
}

// TPM computes transcripts per million:
//
//	RPK = C * 1e3 / L
//	TPM = RPK * 1e6 / M
//
// where C is the gene count, L the union-exon length, and M the sum of RPK
// over all genes.
func TPM(counts, lengths []int64) []float64 {
	checkLen(len(counts), len(lengths))
	rpk := make([]float64, len(counts))
	for i, c := range counts {
		rpk[i] = float64(c) * 1e3 / float64(lengths[i])
	}
	m := floats.Sum(rpk)
	tpm := make([]float64, len(rpk))
	for i, v := range rpk {
		tpm[i] = v * 1e6 / m
	}
	return tpm
}

// FPKM computes fragments per kilobase per million:
//
//	FPKM = C * 1e9 / (N * L)
//
// where N is the total count of protein-coding genes. Genes of every type
// are scaled by the same N.
func FPKM(counts, lengths []int64, geneTypes []string) []float64 {
	checkLen(len(counts), len(lengths), len(geneTypes))
	var n int64
	for i, c := range counts {
		if geneTypes[i] == ProteinCoding {
			n += c
		}
	}
	fpkm := make([]float64, len(counts))
	for i, c := range counts {
		fpkm[i] = float64(c) * 1e9 / float64(n*lengths[i])
	}
	return fpkm
}

// FPKMUQ computes upper-quartile normalized FPKM:
//
//	FPKM-UQ = C * 1e9 / (U * G * L)
//
// U is the 75th percentile of the counts of autosomal protein-coding genes
// with a nonzero count. G is the number of autosomal protein-coding genes,
// zero counts included. Every gene is scaled by the same U and G.
func FPKMUQ(counts, lengths []int64, geneTypes, chroms []string) []float64 {
	checkLen(len(counts), len(lengths), len(geneTypes), len(chroms))
	var (
		expressed []float64
		g         int
	)
	for i, c := range counts {
		if geneTypes[i] != ProteinCoding || !IsAutosome(chroms[i]) {
			continue
		}
		g++
		if c > 0 {
			expressed = append(expressed, float64(c))
		}
	}
	u := Quantile(expressed, 0.75)
	uq := make([]float64, len(counts))
	for i, c := range counts {
		uq[i] = float64(c) * 1e9 / (u * float64(g) * float64(lengths[i]))
	}
	return uq
}

// Quantile returns the p-quantile of xs, 0 <= p <= 1, interpolating linearly
// between the two nearest order statistics: with xs sorted and h = (n-1)*p,
// the result lies between xs[floor(h)] and xs[floor(h)+1]. It returns NaN if
// xs is empty. xs is not modified.
func Quantile(xs []float64, p float64) float64 {
	if len(xs) == 0 || math.IsNaN(p) {
		return math.NaN()
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	h := float64(len(sorted)-1) * p
	lo := math.Floor(h)
	i := int(lo)
	if i >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	if i < 0 {
		return sorted[0]
	}
	return lerp(sorted[i], sorted[i+1], h-lo)
}

// lerp interpolates between a and b. For t >= 0.5 it measures from b, so
// t == 1 yields b exactly.
func lerp(a, b, t float64) float64 {
	d := b - a
	if t >= 0.5 {
		return b - d*(1-t)
	}
	return a + d*t
}

// NonFinite returns the number of NaN or infinite values in xs.
func NonFinite(xs []float64) int {
	n := 0
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			n++
		}
	}
	return n
}
