package pedigree

import (
	"fmt"

	"herdbook/pkg/domain"
)

const (
	// DefaultMaxDepth is the traversal depth used when callers do not pick one.
	DefaultMaxDepth = 2
	// grandparentDepth is the smallest depth at which the grandparent check runs.
	grandparentDepth = 2
)

// Logger receives diagnostics from the classifier.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

type resolver interface {
	ResolveSlot(p domain.Pedigree, slot domain.Slot) (string, bool)
	ResolveGeneration(p domain.Pedigree, generation int) map[string]struct{}
}

// Classifier answers pairwise relationship queries against one population
// snapshot. It is safe for concurrent use.
type Classifier struct {
	index    resolver
	maxDepth int
	logger   Logger
}

// ClassifierOption customises a Classifier.
type ClassifierOption func(*Classifier)

// WithMaxDepth caps how many ancestor generations the classifier inspects.
// Values are clamped to 1..domain.Generations.
func WithMaxDepth(depth int) ClassifierOption {
	return func(c *Classifier) { c.maxDepth = ClampDepth(depth) }
}

// WithLogger routes fail-open diagnostics to logger.
func WithLogger(logger Logger) ClassifierOption {
	return func(c *Classifier) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithIndex reuses an index already built for the population.
func WithIndex(ix *Index) ClassifierOption {
	return func(c *Classifier) {
		if ix != nil {
			c.index = ix
		}
	}
}

// NewClassifier indexes population and returns a classifier over it.
func NewClassifier(population []domain.Animal, opts ...ClassifierOption) *Classifier {
	c := &Classifier{maxDepth: DefaultMaxDepth, logger: noopLogger{}}
	for _, opt := range opts {
		opt(c)
	}
	if c.index == nil {
		c.index = NewIndex(population)
	}
	return c
}

// ClampDepth bounds a traversal depth to 1..domain.Generations; zero or
// negative selects DefaultMaxDepth.
func ClampDepth(depth int) int {
	switch {
	case depth <= 0:
		return DefaultMaxDepth
	case depth > domain.Generations:
		return domain.Generations
	default:
		return depth
	}
}

// Classify determines how a and b are related. Checks run closest first:
// parent-child, siblings, then grandparent-grandchild. Any detected
// relationship blocks breeding. An internal failure is logged and reported
// as unrelated rather than blocking.
func Classify(a, b domain.Animal, population []domain.Animal) domain.RelationshipVerdict {
	return NewClassifier(population).Classify(a, b)
}

// ClassifyWithDepth is Classify with the grandparent check gated on
// maxDepth. At depth 1 only parent and sibling relations are found.
func ClassifyWithDepth(a, b domain.Animal, population []domain.Animal, maxDepth int) domain.RelationshipVerdict {
	return NewClassifier(population, WithMaxDepth(maxDepth)).Classify(a, b)
}

// Classify determines how a and b are related. See the package-level Classify.
func (c *Classifier) Classify(a, b domain.Animal) (verdict domain.RelationshipVerdict) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("relationship classification failed; treating pair as unrelated",
				"animal_a", a.ID, "animal_b", b.ID, "panic", fmt.Sprint(r))
			verdict = domain.Unrelated("classification unavailable")
		}
	}()

	if a.ID != "" && a.ID == b.ID {
		return domain.Unrelated("same animal")
	}

	aMother, aHasMother := c.index.ResolveSlot(a.Pedigree, domain.Mother)
	aFather, aHasFather := c.index.ResolveSlot(a.Pedigree, domain.Father)
	bMother, bHasMother := c.index.ResolveSlot(b.Pedigree, domain.Mother)
	bFather, bHasFather := c.index.ResolveSlot(b.Pedigree, domain.Father)

	if v, ok := parentOf(a, b, bMother, bHasMother, bFather, bHasFather); ok {
		return v
	}
	if v, ok := parentOf(b, a, aMother, aHasMother, aFather, aHasFather); ok {
		return v
	}

	sharedMother := aHasMother && bHasMother && aMother == bMother
	sharedFather := aHasFather && bHasFather && aFather == bFather
	if sharedMother || sharedFather {
		return blocked(domain.RelationshipSiblings, siblingDetails(a, b, sharedMother, sharedFather))
	}

	if c.maxDepth >= grandparentDepth {
		if c.isGrandparent(a, b) {
			return blocked(domain.RelationshipGrandparentGrandchild,
				fmt.Sprintf("%s is a grandparent of %s", a.DisplayName(), b.DisplayName()))
		}
		if c.isGrandparent(b, a) {
			return blocked(domain.RelationshipGrandparentGrandchild,
				fmt.Sprintf("%s is a grandparent of %s", b.DisplayName(), a.DisplayName()))
		}
	}

	return domain.Unrelated("no shared parents or grandparents found")
}

// parentOf reports whether parent is the resolved mother or father of child.
func parentOf(parent, child domain.Animal, mother string, hasMother bool, father string, hasFather bool) (domain.RelationshipVerdict, bool) {
	if parent.ID == "" {
		return domain.RelationshipVerdict{}, false
	}
	switch {
	case hasMother && mother == parent.ID:
		return blocked(domain.RelationshipParentChild,
			fmt.Sprintf("%s is the mother of %s", parent.DisplayName(), child.DisplayName())), true
	case hasFather && father == parent.ID:
		return blocked(domain.RelationshipParentChild,
			fmt.Sprintf("%s is the father of %s", parent.DisplayName(), child.DisplayName())), true
	}
	return domain.RelationshipVerdict{}, false
}

func (c *Classifier) isGrandparent(grandparent, grandchild domain.Animal) bool {
	if grandparent.ID == "" {
		return false
	}
	_, ok := c.index.ResolveGeneration(grandchild.Pedigree, grandparentDepth)[grandparent.ID]
	return ok
}

func siblingDetails(a, b domain.Animal, sharedMother, sharedFather bool) string {
	switch {
	case sharedMother && sharedFather:
		return fmt.Sprintf("%s and %s are full siblings", a.DisplayName(), b.DisplayName())
	case sharedMother:
		return fmt.Sprintf("%s and %s share a mother", a.DisplayName(), b.DisplayName())
	default:
		return fmt.Sprintf("%s and %s share a father", a.DisplayName(), b.DisplayName())
	}
}

func blocked(kind domain.RelationshipType, details string) domain.RelationshipVerdict {
	return domain.RelationshipVerdict{Type: kind, Details: details, ShouldBlock: true}
}
