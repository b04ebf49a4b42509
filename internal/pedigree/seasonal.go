package pedigree

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"herdbook/pkg/domain"
)

// MinimumSampleSize is the number of logged breedings below which seasonal
// analysis ignores the data and falls back to species knowledge.
const MinimumSampleSize = 10

const collectMoreData = "Log at least 10 breedings to unlock timing advice based on your own herd."

// SpeciesProfile holds prior knowledge about a species' breeding season.
type SpeciesProfile struct {
	Species   string
	KnownGood []time.Month
	KnownBad  []time.Month
	Advice    string
}

var defaultProfile = SpeciesProfile{
	KnownGood: []time.Month{time.March, time.April, time.May},
	KnownBad:  []time.Month{time.July, time.August},
	Advice:    "Spring months (March to May) are typically optimal for breeding.",
}

var speciesProfiles = map[string]SpeciesProfile{
	"goat": {
		Species:   "goat",
		KnownGood: []time.Month{time.September, time.October, time.November},
		KnownBad:  []time.Month{time.April, time.May, time.June},
		Advice:    "Goats are short-day breeders; autumn (September to November) is the natural season.",
	},
	"sheep": {
		Species:   "sheep",
		KnownGood: []time.Month{time.September, time.October, time.November},
		KnownBad:  []time.Month{time.April, time.May, time.June},
		Advice:    "Ewes cycle as days shorten; autumn (September to November) is the natural season.",
	},
	"cattle": {
		Species:   "cattle",
		KnownGood: []time.Month{time.April, time.May, time.June},
		KnownBad:  []time.Month{time.December, time.January},
		Advice:    "Breeding in late spring (April to June) lines calving up with spring grass.",
	},
	"horse": {
		Species:   "horse",
		KnownGood: []time.Month{time.April, time.May, time.June},
		KnownBad:  []time.Month{time.November, time.December, time.January},
		Advice:    "Mares are long-day breeders; April to June is the natural season.",
	},
	"pig": {
		Species:   "pig",
		KnownGood: []time.Month{time.March, time.April, time.October},
		KnownBad:  []time.Month{time.July, time.August},
		Advice:    "Pigs breed year-round but heat stress in July and August lowers conception.",
	},
	"rabbit": {
		Species:   "rabbit",
		KnownGood: []time.Month{time.March, time.April, time.May},
		KnownBad:  []time.Month{time.July, time.August},
		Advice:    "Spring months (March to May) are typically optimal for breeding rabbits.",
	},
}

// ProfileFor returns the seasonal profile of a species, or the generic
// profile when the species is unknown.
func ProfileFor(species string) SpeciesProfile {
	key := normalizeSpecies(species)
	if p, ok := speciesProfiles[key]; ok {
		return p
	}
	p := defaultProfile
	p.Species = key
	return p
}

// DefaultSeasonalAnalysis is the fixed, species-knowledge answer returned
// when there is not enough data to say anything empirical.
func DefaultSeasonalAnalysis(species string, totalBreedings int) domain.SeasonalAnalysis {
	p := ProfileFor(species)
	return domain.SeasonalAnalysis{
		Species:         p.Species,
		BestMonths:      append([]time.Month(nil), p.KnownGood...),
		WorstMonths:     append([]time.Month(nil), p.KnownBad...),
		Recommendations: []string{p.Advice, collectMoreData},
		TotalBreedings:  totalBreedings,
	}
}

// AnalyzeSeasonalTrends analyzes monthly aggregates against the generic profile.
func AnalyzeSeasonalTrends(aggregates []domain.MonthlyAggregate) domain.SeasonalAnalysis {
	return AnalyzeSeasonalTrendsFor("", aggregates)
}

// AnalyzeSeasonalTrendsFor produces best/worst month guidance for a species.
//
// Below MinimumSampleSize total breedings the data is ignored. Otherwise the
// two highest and two lowest success-rate months are taken. A best month the
// species profile knows to be bad is dropped, as is a worst month it knows to
// be good: prior knowledge wins over contradicting data.
func AnalyzeSeasonalTrendsFor(species string, aggregates []domain.MonthlyAggregate) domain.SeasonalAnalysis {
	merged := mergeByMonth(aggregates)
	total := 0
	for _, agg := range merged {
		total += agg.BreedingsAttempted
	}
	if total < MinimumSampleSize {
		return DefaultSeasonalAnalysis(species, total)
	}

	profile := ProfileFor(species)
	rated := make([]monthRate, 0, len(merged))
	for _, agg := range merged {
		if agg.BreedingsAttempted <= 0 {
			continue
		}
		rated = append(rated, monthRate{
			MonthlyAggregate: agg,
			rate:             float64(agg.PregnanciesConfirmed) / float64(agg.BreedingsAttempted),
		})
	}
	sort.SliceStable(rated, func(i, j int) bool {
		if rated[i].rate != rated[j].rate {
			return rated[i].rate > rated[j].rate
		}
		if rated[i].BreedingsAttempted != rated[j].BreedingsAttempted {
			return rated[i].BreedingsAttempted > rated[j].BreedingsAttempted
		}
		return rated[i].Month < rated[j].Month
	})

	// With fewer than four rated months the best candidates take the upper
	// half so no month is both best and worst.
	bestN := min(2, (len(rated)+1)/2)
	worstN := min(2, len(rated)-bestN)
	var best, worst []monthRate
	for _, r := range rated[:bestN] {
		if !containsMonth(profile.KnownBad, r.Month) {
			best = append(best, r)
		}
	}
	for i := len(rated) - 1; i >= len(rated)-worstN; i-- {
		if !containsMonth(profile.KnownGood, rated[i].Month) {
			worst = append(worst, rated[i])
		}
	}

	out := domain.SeasonalAnalysis{
		Species:        profile.Species,
		BestMonths:     months(best),
		WorstMonths:    months(worst),
		DataDriven:     true,
		TotalBreedings: total,
	}
	for _, r := range best {
		out.Recommendations = append(out.Recommendations,
			fmt.Sprintf("Breed in %s: %s of breedings led to a confirmed pregnancy.", r.Month, r.describe()))
	}
	for _, r := range worst {
		out.Recommendations = append(out.Recommendations,
			fmt.Sprintf("Avoid breeding in %s: only %s of breedings led to a confirmed pregnancy.", r.Month, r.describe()))
	}
	if len(best) == 0 {
		out.Recommendations = append(out.Recommendations, profile.Advice)
	}
	return out
}

// AggregateByMonth counts breedings and confirmed pregnancies per calendar
// month. Planned breedings and events without a date are skipped. A nil
// filter keeps every event.
func AggregateByMonth(events []domain.BreedingEvent, keep func(domain.BreedingEvent) bool) []domain.MonthlyAggregate {
	counts := make(map[time.Month]*domain.MonthlyAggregate)
	for _, e := range events {
		if e.EventDate.IsZero() || e.Status == domain.BreedingPlanned {
			continue
		}
		if keep != nil && !keep(e) {
			continue
		}
		m := e.EventDate.Month()
		agg, ok := counts[m]
		if !ok {
			agg = &domain.MonthlyAggregate{Month: m}
			counts[m] = agg
		}
		agg.BreedingsAttempted++
		if e.Pregnant() {
			agg.PregnanciesConfirmed++
		}
	}
	out := make([]domain.MonthlyAggregate, 0, len(counts))
	for m := time.January; m <= time.December; m++ {
		if agg, ok := counts[m]; ok {
			out = append(out, *agg)
		}
	}
	return out
}

type monthRate struct {
	domain.MonthlyAggregate
	rate float64
}

func (r monthRate) describe() string {
	return fmt.Sprintf("%.0f%% (%d of %d)", r.rate*100, r.PregnanciesConfirmed, r.BreedingsAttempted)
}

func mergeByMonth(aggregates []domain.MonthlyAggregate) []domain.MonthlyAggregate {
	byMonth := make(map[time.Month]domain.MonthlyAggregate)
	for _, agg := range aggregates {
		if agg.Month < time.January || agg.Month > time.December {
			continue
		}
		cur := byMonth[agg.Month]
		cur.Month = agg.Month
		cur.BreedingsAttempted += max(agg.BreedingsAttempted, 0)
		cur.PregnanciesConfirmed += max(agg.PregnanciesConfirmed, 0)
		byMonth[agg.Month] = cur
	}
	out := make([]domain.MonthlyAggregate, 0, len(byMonth))
	for m := time.January; m <= time.December; m++ {
		if agg, ok := byMonth[m]; ok {
			out = append(out, agg)
		}
	}
	return out
}

func containsMonth(list []time.Month, m time.Month) bool {
	for _, v := range list {
		if v == m {
			return true
		}
	}
	return false
}

func months(list []monthRate) []time.Month {
	out := make([]time.Month, 0, len(list))
	for _, r := range list {
		out = append(out, r.Month)
	}
	return out
}

// SpeciesFilter keeps events whose dam belongs to species. Events whose dam
// cannot be found are dropped. An empty species keeps everything.
func SpeciesFilter(species string, population []domain.Animal) func(domain.BreedingEvent) bool {
	want := normalizeSpecies(species)
	if want == "" {
		return nil
	}
	ix := NewIndex(population)
	return func(e domain.BreedingEvent) bool {
		id, ok := ix.Resolve(e.MotherID)
		if !ok {
			return false
		}
		dam, _ := ix.Animal(id)
		return strings.EqualFold(strings.TrimSpace(dam.Species), want)
	}
}
