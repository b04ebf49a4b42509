package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// RelationshipType classifies the family relationship between two animals.
type RelationshipType string

// Relationship taxonomy, closest first.
const (
	RelationshipNone                  RelationshipType = "none"
	RelationshipParentChild           RelationshipType = "parent-child"
	RelationshipSiblings              RelationshipType = "siblings"
	RelationshipGrandparentGrandchild RelationshipType = "grandparent-grandchild"
)

// RelationshipVerdict is the computed, never persisted, outcome of a
// pairwise classification.
type RelationshipVerdict struct {
	Type        RelationshipType `json:"type"`
	Details     string           `json:"details"`
	ShouldBlock bool             `json:"shouldBlock"`
}

// Unrelated returns the verdict for animals with no detected relationship.
func Unrelated(details string) RelationshipVerdict {
	return RelationshipVerdict{Type: RelationshipNone, Details: details}
}

// BreedingRecommendation is one compatible dam/sire pairing.
type BreedingRecommendation struct {
	DamID    string              `json:"dam_id"`
	DamName  string              `json:"dam_name"`
	SireID   string              `json:"sire_id"`
	SireName string              `json:"sire_name"`
	Species  string              `json:"species"`
	Score    float64             `json:"score"`
	Verdict  RelationshipVerdict `json:"verdict"`
}

// MonthlyAggregate summarises breeding outcomes for one calendar month.
type MonthlyAggregate struct {
	Month                time.Month `json:"month"`
	BreedingsAttempted   int        `json:"breedings"`
	PregnanciesConfirmed int        `json:"pregnancies"`
}

type monthlyAggregateJSON struct {
	Month       string `json:"month"`
	Breedings   int    `json:"breedings"`
	Pregnancies int    `json:"pregnancies"`
}

// MarshalJSON writes the month as its lowercase English name.
func (m MonthlyAggregate) MarshalJSON() ([]byte, error) {
	return json.Marshal(monthlyAggregateJSON{
		Month:       monthName(m.Month),
		Breedings:   m.BreedingsAttempted,
		Pregnancies: m.PregnanciesConfirmed,
	})
}

// UnmarshalJSON accepts month names ("march", "Mar") or numbers ("3").
func (m *MonthlyAggregate) UnmarshalJSON(data []byte) error {
	var raw monthlyAggregateJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	month, err := ParseMonth(raw.Month)
	if err != nil {
		return err
	}
	*m = MonthlyAggregate{Month: month, BreedingsAttempted: raw.Breedings, PregnanciesConfirmed: raw.Pregnancies}
	return nil
}

func monthName(m time.Month) string { return strings.ToLower(m.String()) }

// ParseMonth parses a full or three-letter English month name, or 1..12.
func ParseMonth(s string) (time.Month, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for m := time.January; m <= time.December; m++ {
		name := strings.ToLower(m.String())
		if s == name || s == name[:3] || s == fmt.Sprint(int(m)) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown month %q", s)
}

// SeasonalAnalysis is the outcome of seasonal breeding analysis.
type SeasonalAnalysis struct {
	Species         string       `json:"species,omitempty"`
	BestMonths      []time.Month `json:"bestMonths"`
	WorstMonths     []time.Month `json:"worstMonths"`
	Recommendations []string     `json:"recommendations"`
	DataDriven      bool         `json:"dataDriven"`
	TotalBreedings  int          `json:"totalBreedings"`
}

type seasonalAnalysisJSON struct {
	Species         string   `json:"species,omitempty"`
	BestMonths      []string `json:"bestMonths"`
	WorstMonths     []string `json:"worstMonths"`
	Recommendations []string `json:"recommendations"`
	DataDriven      bool     `json:"dataDriven"`
	TotalBreedings  int      `json:"totalBreedings"`
}

// MarshalJSON writes best and worst months as lowercase English names, the
// same form MonthlyAggregate uses.
func (a SeasonalAnalysis) MarshalJSON() ([]byte, error) {
	return json.Marshal(seasonalAnalysisJSON{
		Species:         a.Species,
		BestMonths:      monthNames(a.BestMonths),
		WorstMonths:     monthNames(a.WorstMonths),
		Recommendations: a.Recommendations,
		DataDriven:      a.DataDriven,
		TotalBreedings:  a.TotalBreedings,
	})
}

// UnmarshalJSON accepts any month form ParseMonth understands.
func (a *SeasonalAnalysis) UnmarshalJSON(data []byte) error {
	var raw seasonalAnalysisJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	best, err := parseMonths(raw.BestMonths)
	if err != nil {
		return fmt.Errorf("bestMonths: %w", err)
	}
	worst, err := parseMonths(raw.WorstMonths)
	if err != nil {
		return fmt.Errorf("worstMonths: %w", err)
	}
	*a = SeasonalAnalysis{
		Species:         raw.Species,
		BestMonths:      best,
		WorstMonths:     worst,
		Recommendations: raw.Recommendations,
		DataDriven:      raw.DataDriven,
		TotalBreedings:  raw.TotalBreedings,
	}
	return nil
}

func monthNames(months []time.Month) []string {
	out := make([]string, 0, len(months))
	for _, m := range months {
		out = append(out, monthName(m))
	}
	return out
}

func parseMonths(names []string) ([]time.Month, error) {
	if names == nil {
		return nil, nil
	}
	out := make([]time.Month, 0, len(names))
	for _, name := range names {
		m, err := ParseMonth(name)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
