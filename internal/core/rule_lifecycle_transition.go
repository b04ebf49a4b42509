package core

import (
	"context"
	"fmt"

	"herdbook/pkg/domain"
)

const lifecycleRuleName = "lifecycle_transition"

// LifecycleTransitionRule blocks unknown states and any move out of a
// terminal state: a deceased animal stays deceased, and a failed or born
// breeding is closed.
func LifecycleTransitionRule() domain.Rule {
	return lifecycleTransitionRule{}
}

type lifecycleTransitionRule struct{}

type lifecycleMachine struct {
	label     string
	terminal  map[string]struct{}
	valid     map[string]struct{}
	extractor func(payload any) (id string, state string, ok bool)
}

var lifecycleMachines = map[domain.EntityType]lifecycleMachine{
	domain.EntityAnimal: {
		label:    "animal",
		terminal: toSet(string(domain.StatusDeceased)),
		valid:    toSet("", string(domain.StatusActive), string(domain.StatusDeceased)),
		extractor: func(payload any) (string, string, bool) {
			a, ok := payload.(domain.Animal)
			return a.ID, string(a.Status), ok
		},
	},
	domain.EntityBreedingEvent: {
		label:    "breeding event",
		terminal: toSet(string(domain.BreedingFailed), string(domain.BreedingBorn)),
		valid: toSet(
			string(domain.BreedingPlanned),
			string(domain.BreedingConfirmed),
			string(domain.BreedingFailed),
			string(domain.BreedingBorn),
		),
		extractor: func(payload any) (string, string, bool) {
			e, ok := payload.(domain.BreedingEvent)
			return e.ID, string(e.Status), ok
		},
	},
}

func (lifecycleTransitionRule) Name() string { return lifecycleRuleName }

func (lifecycleTransitionRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		machine, ok := lifecycleMachines[change.Entity]
		if !ok {
			continue
		}
		afterID, afterState, ok := machine.extractor(change.After)
		if !ok {
			continue
		}
		if _, valid := machine.valid[afterState]; !valid {
			res.Violations = append(res.Violations, lifecycleViolation(change.Entity, afterID,
				fmt.Sprintf("%s %s is set to invalid state %q", machine.label, afterID, afterState)))
			continue
		}
		_, beforeState, ok := machine.extractor(change.Before)
		if !ok {
			continue
		}
		if _, terminal := machine.terminal[beforeState]; terminal && afterState != beforeState {
			res.Violations = append(res.Violations, lifecycleViolation(change.Entity, afterID,
				fmt.Sprintf("cannot move %s %s from terminal state %s to %s", machine.label, afterID, beforeState, afterState)))
		}
	}
	return res, nil
}

func lifecycleViolation(entity domain.EntityType, id, message string) domain.Violation {
	return domain.Violation{
		Rule:     lifecycleRuleName,
		Severity: domain.SeverityBlock,
		Message:  message,
		Entity:   entity,
		EntityID: id,
	}
}

func toSet(values ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
