package core

import (
	"context"
	"fmt"

	"herdbook/internal/pedigree"
	"herdbook/pkg/domain"
)

const consanguinityRuleName = "consanguinity"

// ConsanguinityRule blocks logging a breeding between a dam and sire the
// relationship classifier considers too closely related, and blocks updates
// that re-pair an existing event that way. Events without a recorded sire, or
// whose sire is not in the herd book, are not checked.
func ConsanguinityRule(logger Logger) domain.Rule {
	if logger == nil {
		logger = noopLogger{}
	}
	return consanguinityRule{logger: logger}
}

type consanguinityRule struct {
	logger Logger
}

func (consanguinityRule) Name() string { return consanguinityRuleName }

func (r consanguinityRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	var classifier *pedigree.Classifier
	var index *pedigree.Index
	for _, change := range changes {
		event, ok := pairingChange(change)
		if !ok || event.SireID == "" {
			continue
		}
		if classifier == nil {
			population := view.ListAnimals()
			index = pedigree.NewIndex(population)
			classifier = pedigree.NewClassifier(population, pedigree.WithIndex(index), pedigree.WithLogger(r.logger))
		}
		dam, damOK := lookup(index, event.MotherID)
		sire, sireOK := lookup(index, event.SireID)
		if !damOK || !sireOK {
			continue
		}
		verdict := classifier.Classify(dam, sire)
		if !verdict.ShouldBlock {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     consanguinityRuleName,
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("breeding %s x %s blocked: %s (%s)", dam.DisplayName(), sire.DisplayName(), verdict.Type, verdict.Details),
			Entity:   domain.EntityBreedingEvent,
			EntityID: event.ID,
		})
	}
	return res, nil
}

// pairingChange returns the event whose dam/sire pairing a change introduces.
// Updates that leave both parents alone are not re-checked.
func pairingChange(change domain.Change) (domain.BreedingEvent, bool) {
	if change.Entity != domain.EntityBreedingEvent {
		return domain.BreedingEvent{}, false
	}
	after, ok := change.After.(domain.BreedingEvent)
	if !ok {
		return domain.BreedingEvent{}, false
	}
	switch change.Action {
	case domain.ActionCreate:
		return after, true
	case domain.ActionUpdate:
		before, ok := change.Before.(domain.BreedingEvent)
		if ok && before.MotherID == after.MotherID && before.SireID == after.SireID {
			return domain.BreedingEvent{}, false
		}
		return after, true
	default:
		return domain.BreedingEvent{}, false
	}
}

func lookup(index *pedigree.Index, ref string) (domain.Animal, bool) {
	id, ok := index.Resolve(ref)
	if !ok {
		return domain.Animal{}, false
	}
	return index.Animal(id)
}
