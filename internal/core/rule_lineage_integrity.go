package core

import (
	"context"
	"fmt"

	"herdbook/internal/pedigree"
	"herdbook/pkg/domain"
)

const lineageRuleName = "lineage_integrity"

// LineageIntegrityRule blocks animals recorded as their own parent and warns
// when a recorded parent's gender contradicts the slot it fills.
func LineageIntegrityRule() domain.Rule {
	return lineageIntegrityRule{}
}

type lineageIntegrityRule struct{}

func (lineageIntegrityRule) Name() string { return lineageRuleName }

func (lineageIntegrityRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	population := view.ListAnimals()
	index := pedigree.NewIndex(population)

	for _, change := range changes {
		if change.Entity != domain.EntityAnimal || change.After == nil {
			continue
		}
		child, ok := change.After.(domain.Animal)
		if !ok {
			continue
		}
		for _, slot := range []domain.Slot{domain.Mother, domain.Father} {
			ref := child.Pedigree.Get(slot)
			parentID, ok := index.Resolve(ref)
			if !ok {
				continue
			}
			if parentID == child.ID {
				res.Violations = append(res.Violations, lineageViolation(domain.SeverityBlock, child.ID,
					fmt.Sprintf("animal %s references itself as its %s", child.DisplayName(), slot)))
				continue
			}
			parent, _ := index.Animal(parentID)
			if want := expectedGender(slot); parent.Gender != want && parent.Gender != domain.GenderUnknown && parent.Gender != "" {
				res.Violations = append(res.Violations, lineageViolation(domain.SeverityWarn, child.ID,
					fmt.Sprintf("animal %s lists %s as %s but %s is recorded %s", child.DisplayName(), parent.DisplayName(), slot, parent.DisplayName(), parent.Gender)))
			}
		}
	}
	return res, nil
}

func expectedGender(slot domain.Slot) domain.Gender {
	if slot == domain.Mother {
		return domain.GenderFemale
	}
	return domain.GenderMale
}

func lineageViolation(severity domain.Severity, entityID, message string) domain.Violation {
	return domain.Violation{
		Rule:     lineageRuleName,
		Severity: severity,
		Message:  message,
		Entity:   domain.EntityAnimal,
		EntityID: entityID,
	}
}
