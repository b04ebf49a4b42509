// Package domain defines the herd records, pedigree layout, and rule
// evaluation primitives shared by herdbook packages.
package domain

import (
	"time"
)

// EntityType identifies the type of record stored in the herd book.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityAnimal identifies an individual animal record.
	EntityAnimal EntityType = "animal"
	// EntityBreedingEvent identifies a logged mating attempt.
	EntityBreedingEvent EntityType = "breeding_event"
)

// Gender records the sex of an animal as entered by the keeper.
type Gender string

// Recognised genders. Anything else is treated as unknown when pairing.
const (
	GenderFemale  Gender = "female"
	GenderMale    Gender = "male"
	GenderUnknown Gender = "unknown"
)

// LifecycleStatus tracks whether an animal is still part of the herd.
type LifecycleStatus string

// Canonical lifecycle states.
const (
	StatusActive   LifecycleStatus = "active"
	StatusDeceased LifecycleStatus = "deceased"
)

// IsActive reports whether the animal may take part in breeding. Every
// status other than deceased counts, including an unset status.
func (s LifecycleStatus) IsActive() bool {
	return s != StatusDeceased
}

// BreedingStatus enumerates the lifecycle of a logged breeding.
type BreedingStatus string

// Canonical breeding statuses.
const (
	BreedingPlanned   BreedingStatus = "planned"
	BreedingConfirmed BreedingStatus = "confirmed"
	BreedingFailed    BreedingStatus = "failed"
	BreedingBorn      BreedingStatus = "born"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Animal represents an individual animal tracked in the herd book.
//
// Name is entered by hand and is not unique, but it is the only key
// available for ancestors imported from paper pedigrees.
type Animal struct {
	Base
	Name            string          `json:"name"`
	Species         string          `json:"species"`
	Gender          Gender          `json:"gender"`
	Status          LifecycleStatus `json:"lifecycle_status"`
	Pedigree        Pedigree        `json:"pedigree"`
	GenerationDepth int             `json:"generation_depth,omitempty"`
}

// DisplayName returns the animal name, falling back to its identifier.
func (a Animal) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.ID
}

// BreedingEvent represents a confirmed or attempted mating.
type BreedingEvent struct {
	Base
	MotherID           string         `json:"mother_id"`
	SireID             string         `json:"sire_id,omitempty"`
	PregnancyConfirmed bool           `json:"pregnancy_confirmed"`
	Status             BreedingStatus `json:"status"`
	BirthCompleted     bool           `json:"birth_completed"`
	EventDate          time.Time      `json:"event_date"`
	Notes              string         `json:"notes,omitempty"`
}

// Pregnant reports whether the breeding produced a confirmed pregnancy.
func (e BreedingEvent) Pregnant() bool {
	if e.PregnancyConfirmed || e.BirthCompleted {
		return true
	}
	return e.Status == BreedingConfirmed || e.Status == BreedingBorn
}

// Change describes a mutation applied to an entity inside a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	// ActionDelete indicates an entity was deleted.
	ActionDelete Action = "delete"
)

// Violation reports a rule outcome.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			return "transaction blocked by rules: " + v.Message
		}
	}
	return "transaction blocked by rules"
}
