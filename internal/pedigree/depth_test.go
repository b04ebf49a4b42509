package pedigree

import (
	"testing"

	"herdbook/pkg/domain"
)

func TestDetectGenerationDepth(t *testing.T) {
	slot := func(g, p int) domain.Slot {
		s, err := domain.SlotAt(g, p)
		if err != nil {
			t.Fatalf("SlotAt(%d,%d): %v", g, p, err)
		}
		return s
	}
	cases := []struct {
		name string
		refs ancestry
		want int
	}{
		{"empty pedigree", nil, 1},
		{"parents only", ancestry{domain.Mother: "m"}, 1},
		{"grandparents", ancestry{domain.Father: "f", domain.PaternalGrandmother: "pg"}, 2},
		{"gap before generation four", ancestry{domain.Mother: "m", slot(4, 3): "x"}, 4},
		{"only generation five", ancestry{slot(5, 31): "deep"}, 5},
		{"whitespace is empty", ancestry{slot(3, 0): "   "}, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := animal("x", "X", domain.GenderFemale, tc.refs)
			if got := DetectGenerationDepth(a.Pedigree); got != tc.want {
				t.Fatalf("expected depth %d, got %d", tc.want, got)
			}
		})
	}
}

func TestDetectGenerationDepthMonotonic(t *testing.T) {
	for g := 1; g <= domain.Generations; g++ {
		for _, s := range domain.GenerationSlots(g) {
			var p domain.Pedigree
			p.Set(s, "ancestor")
			if got := DetectGenerationDepth(p); got < g {
				t.Fatalf("slot %s in generation %d: depth %d below generation", s, g, got)
			}
		}
	}
}
