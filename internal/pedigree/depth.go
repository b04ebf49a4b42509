package pedigree

import "herdbook/pkg/domain"

// MinDepth is the depth reported for a pedigree with nothing recorded;
// parents are the smallest tracked unit.
const MinDepth = 1

// DetectGenerationDepth returns the deepest generation (1..5) with at least
// one populated slot. Generations need not be contiguous: a lone entry in
// generation 4 yields 4 even when generation 3 is empty, which is how
// partial paper pedigrees arrive.
func DetectGenerationDepth(p domain.Pedigree) int {
	depth := MinDepth
	for g := 1; g <= domain.Generations; g++ {
		if p.HasGeneration(g) {
			depth = g
		}
	}
	return depth
}
