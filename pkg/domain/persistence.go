package domain

import "context"

// Transaction exposes the herd operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateAnimal(Animal) (Animal, error)
	UpdateAnimal(id string, mutator func(*Animal) error) (Animal, error)
	DeleteAnimal(id string) error
	CreateBreedingEvent(BreedingEvent) (BreedingEvent, error)
	UpdateBreedingEvent(id string, mutator func(*BreedingEvent) error) (BreedingEvent, error)
	FindAnimal(id string) (Animal, bool)
}

// TransactionView provides read-only access to snapshot data for rules.
type TransactionView interface {
	ListAnimals() []Animal
	ListBreedingEvents() []BreedingEvent
	FindAnimal(id string) (Animal, bool)
	FindBreedingEvent(id string) (BreedingEvent, bool)
}

// PopulationSource is the read side of the storage collaborator consumed by
// pedigree analysis.
type PopulationSource interface {
	FetchAllAnimals(ctx context.Context) ([]Animal, error)
	FetchBreedingEvents(ctx context.Context) ([]BreedingEvent, error)
}

// DepthWriter records detected generation depths on animals. Writing the
// depth an animal already carries is a no-op.
type DepthWriter interface {
	WriteDetectedDepth(ctx context.Context, animalID string, depth int) error
	// WriteDetectedDepths commits a batch of depths at once. Entries that
	// cannot be written are returned keyed by animal ID; a non-nil error
	// means nothing was written.
	WriteDetectedDepths(ctx context.Context, depths map[string]int) (map[string]error, error)
}

// ChangeNotifier lets callers observe committed changes, e.g. to invalidate caches.
type ChangeNotifier interface {
	OnChange(fn func([]Change))
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	PopulationSource
	DepthWriter
	ChangeNotifier
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetAnimal(id string) (Animal, bool)
	ListAnimals() []Animal
	ListBreedingEvents() []BreedingEvent
}
