package core

import "herdbook/pkg/domain"

// NewRulesEngine constructs an empty engine.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds a rules engine with the built-in herd book
// policies. A nil logger discards classifier diagnostics.
func NewDefaultRulesEngine(logger Logger) *RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(LineageIntegrityRule())
	engine.Register(LifecycleTransitionRule())
	engine.Register(ConsanguinityRule(logger))
	return engine
}
