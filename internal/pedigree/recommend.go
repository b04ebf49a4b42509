package pedigree

import (
	"context"
	"sort"
	"strings"

	"herdbook/pkg/domain"
)

// Scorer ranks a compatible dam/sire pair; higher scores sort first.
// Ranking is business policy and is supplied by the caller.
type Scorer func(dam, sire domain.Animal) float64

// PedigreeCompletenessScorer prefers pairs whose pedigrees are known deeper,
// since their relationship verdicts rest on more data. The score is the mean
// generation depth of the pair scaled to 0..1.
func PedigreeCompletenessScorer(dam, sire domain.Animal) float64 {
	return float64(knownDepth(dam)+knownDepth(sire)) / float64(2*domain.Generations)
}

func knownDepth(a domain.Animal) int {
	if a.GenerationDepth >= MinDepth && a.GenerationDepth <= domain.Generations {
		return a.GenerationDepth
	}
	return DetectGenerationDepth(a.Pedigree)
}

// RecommendOptions configures Recommend.
type RecommendOptions struct {
	// MaxDepth caps the ancestry generations inspected per pair. Shallower
	// depths can only miss deep relationships, never invent them.
	MaxDepth int
	Scorer   Scorer
	Logger   Logger
}

// Recommend enumerates opposite-sex, same-species pairs from the active
// population, drops pairs the classifier blocks, and ranks the rest. The
// context is checked between dams so an abandoned computation stops early.
func Recommend(ctx context.Context, population []domain.Animal, opts RecommendOptions) ([]domain.BreedingRecommendation, error) {
	scorer := opts.Scorer
	if scorer == nil {
		scorer = PedigreeCompletenessScorer
	}
	classifier := NewClassifier(population, WithMaxDepth(opts.MaxDepth), WithLogger(opts.Logger))

	dams, sires := breedingStock(population)
	out := make([]domain.BreedingRecommendation, 0)
	for _, dam := range dams {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, sire := range sires[normalizeSpecies(dam.Species)] {
			verdict := classifier.Classify(dam, sire)
			if verdict.ShouldBlock {
				continue
			}
			out = append(out, domain.BreedingRecommendation{
				DamID:    dam.ID,
				DamName:  dam.DisplayName(),
				SireID:   sire.ID,
				SireName: sire.DisplayName(),
				Species:  dam.Species,
				Score:    scorer(dam, sire),
				Verdict:  verdict,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].DamName != out[j].DamName {
			return out[i].DamName < out[j].DamName
		}
		if out[i].SireName != out[j].SireName {
			return out[i].SireName < out[j].SireName
		}
		if out[i].DamID != out[j].DamID {
			return out[i].DamID < out[j].DamID
		}
		return out[i].SireID < out[j].SireID
	})
	return out, nil
}

// breedingStock splits the active population into dams and species-keyed sires.
func breedingStock(population []domain.Animal) ([]domain.Animal, map[string][]domain.Animal) {
	var dams []domain.Animal
	sires := make(map[string][]domain.Animal)
	for _, a := range population {
		if a.ID == "" || !a.Status.IsActive() {
			continue
		}
		species := normalizeSpecies(a.Species)
		if species == "" {
			continue
		}
		switch a.Gender {
		case domain.GenderFemale:
			dams = append(dams, a)
		case domain.GenderMale:
			sires[species] = append(sires[species], a)
		}
	}
	return dams, sires
}

func normalizeSpecies(species string) string {
	return strings.ToLower(strings.TrimSpace(species))
}
