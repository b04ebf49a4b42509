package core

import (
	"fmt"
	"strings"

	"herdbook/internal/pedigree"
)

// EnvironmentClass describes the runtime budget of the caller. Constrained
// environments (mobile, low-power) trade deep-relationship detection for
// responsiveness.
type EnvironmentClass string

// Environment classes.
const (
	EnvironmentConstrained   EnvironmentClass = "constrained"
	EnvironmentUnconstrained EnvironmentClass = "unconstrained"
)

// DefaultDepth is the traversal depth used when a caller does not pick one.
func (e EnvironmentClass) DefaultDepth() int {
	if e == EnvironmentUnconstrained {
		return 4
	}
	return pedigree.DefaultMaxDepth
}

// ParseEnvironmentClass accepts the class names case-insensitively; empty
// selects constrained.
func ParseEnvironmentClass(s string) (EnvironmentClass, error) {
	switch EnvironmentClass(strings.ToLower(strings.TrimSpace(s))) {
	case "", EnvironmentConstrained:
		return EnvironmentConstrained, nil
	case EnvironmentUnconstrained:
		return EnvironmentUnconstrained, nil
	default:
		return "", fmt.Errorf("unknown environment class %q", s)
	}
}

// resolveDepth applies the environment default to a zero or negative depth
// and clamps everything else to 1..5.
func (e EnvironmentClass) resolveDepth(maxDepth int) int {
	if maxDepth <= 0 {
		return e.DefaultDepth()
	}
	return pedigree.ClampDepth(maxDepth)
}
