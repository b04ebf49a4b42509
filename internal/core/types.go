package core

import "herdbook/pkg/domain"

type (
	EntityType             = domain.EntityType
	Severity               = domain.Severity
	Animal                 = domain.Animal
	BreedingEvent          = domain.BreedingEvent
	Change                 = domain.Change
	Action                 = domain.Action
	Violation              = domain.Violation
	Result                 = domain.Result
	Rule                   = domain.Rule
	RulesEngine            = domain.RulesEngine
	RuleView               = domain.RuleView
	RuleViolationError     = domain.RuleViolationError
	Transaction            = domain.Transaction
	TransactionView        = domain.TransactionView
	PersistentStore        = domain.PersistentStore
	RelationshipVerdict    = domain.RelationshipVerdict
	BreedingRecommendation = domain.BreedingRecommendation
	MonthlyAggregate       = domain.MonthlyAggregate
	SeasonalAnalysis       = domain.SeasonalAnalysis
)

const (
	EntityAnimal        = domain.EntityAnimal
	EntityBreedingEvent = domain.EntityBreedingEvent
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)
