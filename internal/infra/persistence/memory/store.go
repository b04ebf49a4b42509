// Package memory provides an in-memory implementation of the herd persistence
// store used for tests and ephemeral environments.
package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"herdbook/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Animal aliases domain.Animal for in-memory persistence operations.
	Animal = domain.Animal
	// BreedingEvent aliases domain.BreedingEvent.
	BreedingEvent = domain.BreedingEvent
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type memoryState struct {
	animals  map[string]Animal
	breeding map[string]BreedingEvent
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Animals        map[string]Animal        `json:"animals"`
	BreedingEvents map[string]BreedingEvent `json:"breeding_events"`
}

func newMemoryState() memoryState {
	return memoryState{
		animals:  make(map[string]Animal),
		breeding: make(map[string]BreedingEvent),
	}
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.animals {
		cloned.animals[k] = v
	}
	for k, v := range s.breeding {
		cloned.breeding[k] = v
	}
	return cloned
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	cloned := state.clone()
	return Snapshot{Animals: cloned.animals, BreedingEvents: cloned.breeding}
}

// memoryStateFromSnapshot drops records whose map key disagrees with their ID
// and fills a missing ID from the key, so hand-edited snapshots stay usable.
func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range s.Animals {
		if v.ID == "" {
			v.ID = k
		}
		if v.ID != k {
			continue
		}
		state.animals[k] = v
	}
	for k, v := range s.BreedingEvents {
		if v.ID == "" {
			v.ID = k
		}
		if v.ID != k {
			continue
		}
		state.breeding[k] = v
	}
	return state
}

// Store provides an in-memory transactional store for herd records.
type Store struct {
	mu        sync.RWMutex
	state     memoryState
	engine    *RulesEngine
	nowFn     func() time.Time
	listenMu  sync.RWMutex
	listeners []func([]Change)
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(snapshot)
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// SetNowFunc overrides the clock used to stamp records.
func (s *Store) SetNowFunc(fn func() time.Time) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = fn
}

// OnChange registers fn to receive the changes of every committed transaction.
// Listeners run after the store lock is released, in registration order.
func (s *Store) OnChange(fn func([]Change)) {
	if fn == nil {
		return
	}
	s.listenMu.Lock()
	s.listeners = append(s.listeners, fn)
	s.listenMu.Unlock()
}

func (s *Store) notify(changes []Change) {
	if len(changes) == 0 {
		return
	}
	s.listenMu.RLock()
	listeners := slices.Clone(s.listeners)
	s.listenMu.RUnlock()
	for _, fn := range listeners {
		fn(append([]Change(nil), changes...))
	}
}

type transaction struct {
	state   memoryState
	changes []Change
	now     time.Time
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// ListAnimals returns all animals within the snapshot, ordered by ID.
func (v transactionView) ListAnimals() []Animal {
	return sortedAnimals(v.state.animals)
}

// ListBreedingEvents returns all breeding events within the snapshot, oldest first.
func (v transactionView) ListBreedingEvents() []BreedingEvent {
	return sortedEvents(v.state.breeding)
}

// FindAnimal retrieves an animal by ID.
func (v transactionView) FindAnimal(id string) (Animal, bool) {
	a, ok := v.state.animals[id]
	return a, ok
}

// FindBreedingEvent retrieves a breeding event by ID.
func (v transactionView) FindBreedingEvent(id string) (BreedingEvent, bool) {
	e, ok := v.state.breeding[id]
	return e, ok
}

// CommitHook receives the state a transaction is about to commit, after the
// rules pass and before the state becomes visible. A hook error aborts the
// commit: the store keeps its previous state and no listener runs. The hook
// runs under the store lock and must not call back into the store.
type CommitHook func(ctx context.Context, next Snapshot) error

// RunInTransaction executes fn within a transactional copy of the store state.
// The copy replaces the committed state only when fn succeeds and no rule
// reports a blocking violation. Change listeners run after commit.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	return s.RunInTransactionWithHook(ctx, fn, nil)
}

// RunInTransactionWithHook is RunInTransaction with hook run inside the
// commit. Durable stores persist from the hook so readers of the backing
// database and change listeners never observe a state that was not written.
// The hook is skipped when the transaction recorded no changes.
func (s *Store) RunInTransactionWithHook(ctx context.Context, fn func(tx Transaction) error, hook CommitHook) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	result, changes, err := s.commit(ctx, fn, hook)
	if err != nil {
		return result, err
	}
	s.notify(changes)
	return result, nil
}

func (s *Store) commit(ctx context.Context, fn func(tx Transaction) error, hook CommitHook) (Result, []Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, nil, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, nil, err
		}
		result = res
		if res.HasBlocking() {
			return res, nil, domain.RuleViolationError{Result: res}
		}
	}

	if hook != nil && len(tx.changes) > 0 {
		if err := hook(ctx, snapshotFromMemoryState(tx.state)); err != nil {
			return result, nil, err
		}
	}

	s.state = tx.state
	return result, tx.changes, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return fn(newTransactionView(&snapshot))
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// FindAnimal exposes animal lookup within the transaction scope.
func (tx *transaction) FindAnimal(id string) (Animal, bool) {
	a, ok := tx.state.animals[id]
	return a, ok
}

// CreateAnimal stores a new animal within the transaction.
func (tx *transaction) CreateAnimal(a Animal) (Animal, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if _, exists := tx.state.animals[a.ID]; exists {
		return Animal{}, fmt.Errorf("animal %q already exists", a.ID)
	}
	if strings.TrimSpace(a.Species) == "" {
		return Animal{}, errors.New("animal species is required")
	}
	if a.Gender == "" {
		a.Gender = domain.GenderUnknown
	}
	if a.Status == "" {
		a.Status = domain.StatusActive
	}
	a.CreatedAt = tx.now
	a.UpdatedAt = tx.now
	tx.state.animals[a.ID] = a
	tx.recordChange(Change{Entity: domain.EntityAnimal, Action: domain.ActionCreate, After: a})
	return a, nil
}

// UpdateAnimal mutates an animal using the provided mutator function.
func (tx *transaction) UpdateAnimal(id string, mutator func(*Animal) error) (Animal, error) {
	current, ok := tx.state.animals[id]
	if !ok {
		return Animal{}, domain.ErrNotFound{Entity: domain.EntityAnimal, ID: id}
	}
	before := current
	if err := mutator(&current); err != nil {
		return Animal{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.animals[id] = current
	tx.recordChange(Change{Entity: domain.EntityAnimal, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteAnimal removes an animal that no breeding event references.
func (tx *transaction) DeleteAnimal(id string) error {
	current, ok := tx.state.animals[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityAnimal, ID: id}
	}
	for _, e := range tx.state.breeding {
		if e.MotherID == id || e.SireID == id {
			return fmt.Errorf("animal %q still referenced by breeding event %q", id, e.ID)
		}
	}
	delete(tx.state.animals, id)
	tx.recordChange(Change{Entity: domain.EntityAnimal, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreateBreedingEvent stores a new breeding event within the transaction.
func (tx *transaction) CreateBreedingEvent(e BreedingEvent) (BreedingEvent, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if _, exists := tx.state.breeding[e.ID]; exists {
		return BreedingEvent{}, fmt.Errorf("breeding event %q already exists", e.ID)
	}
	if strings.TrimSpace(e.MotherID) == "" {
		return BreedingEvent{}, errors.New("breeding event mother is required")
	}
	if e.Status == "" {
		e.Status = domain.BreedingPlanned
	}
	e.CreatedAt = tx.now
	e.UpdatedAt = tx.now
	tx.state.breeding[e.ID] = e
	tx.recordChange(Change{Entity: domain.EntityBreedingEvent, Action: domain.ActionCreate, After: e})
	return e, nil
}

// UpdateBreedingEvent mutates a breeding event using the provided mutator function.
func (tx *transaction) UpdateBreedingEvent(id string, mutator func(*BreedingEvent) error) (BreedingEvent, error) {
	current, ok := tx.state.breeding[id]
	if !ok {
		return BreedingEvent{}, domain.ErrNotFound{Entity: domain.EntityBreedingEvent, ID: id}
	}
	before := current
	if err := mutator(&current); err != nil {
		return BreedingEvent{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.breeding[id] = current
	tx.recordChange(Change{Entity: domain.EntityBreedingEvent, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// Read helpers ---------------------------------------------------------------

// GetAnimal retrieves an animal by ID from committed state.
func (s *Store) GetAnimal(id string) (Animal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.state.animals[id]
	return a, ok
}

// ListAnimals returns all animals from committed state, ordered by ID.
func (s *Store) ListAnimals() []Animal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedAnimals(s.state.animals)
}

// ListBreedingEvents returns all breeding events from committed state, oldest first.
func (s *Store) ListBreedingEvents() []BreedingEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedEvents(s.state.breeding)
}

// FetchAllAnimals returns the committed animal population.
func (s *Store) FetchAllAnimals(ctx context.Context) ([]Animal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.ListAnimals(), nil
}

// FetchBreedingEvents returns the committed breeding history.
func (s *Store) FetchBreedingEvents(ctx context.Context) ([]BreedingEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.ListBreedingEvents(), nil
}

// WriteDetectedDepth records depth on the animal. See UpdateDepth.
func (s *Store) WriteDetectedDepth(ctx context.Context, animalID string, depth int) error {
	return UpdateDepth(ctx, s, animalID, depth)
}

// DepthTarget is the subset of a store UpdateDepth writes through. Stores
// that wrap Store pass themselves so their own RunInTransaction persists the
// change.
type DepthTarget interface {
	GetAnimal(id string) (Animal, bool)
	RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error)
}

// WriteDetectedDepths records several depths in one commit. See UpdateDepths.
func (s *Store) WriteDetectedDepths(ctx context.Context, depths map[string]int) (map[string]error, error) {
	return UpdateDepths(ctx, s, depths)
}

func checkDepth(depth int) error {
	if depth < 1 || depth > domain.Generations {
		return fmt.Errorf("generation depth %d out of range 1..%d", depth, domain.Generations)
	}
	return nil
}

// UpdateDepth writes a detected generation depth to an animal. Writing the
// depth the animal already carries commits nothing and emits no change.
func UpdateDepth(ctx context.Context, target DepthTarget, animalID string, depth int) error {
	if err := checkDepth(depth); err != nil {
		return err
	}
	current, ok := target.GetAnimal(animalID)
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityAnimal, ID: animalID}
	}
	if current.GenerationDepth == depth {
		return nil
	}
	_, err := target.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.UpdateAnimal(animalID, func(a *Animal) error {
			a.GenerationDepth = depth
			return nil
		})
		return err
	})
	return err
}

// UpdateDepths writes detected generation depths for several animals in a
// single transaction. Entries naming an unknown animal or an out-of-range
// depth are left out and returned keyed by animal ID. Entries matching the
// stored depth are skipped. A non-nil error means nothing was written.
func UpdateDepths(ctx context.Context, target DepthTarget, depths map[string]int) (map[string]error, error) {
	rejected := make(map[string]error)
	ids := make([]string, 0, len(depths))
	for id, depth := range depths {
		if err := checkDepth(depth); err != nil {
			rejected[id] = err
			continue
		}
		current, ok := target.GetAnimal(id)
		if !ok {
			rejected[id] = domain.ErrNotFound{Entity: domain.EntityAnimal, ID: id}
			continue
		}
		if current.GenerationDepth != depth {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return rejected, nil
	}
	sort.Strings(ids)
	vanished := make(map[string]error)
	_, err := target.RunInTransaction(ctx, func(tx Transaction) error {
		for _, id := range ids {
			if _, ok := tx.FindAnimal(id); !ok {
				vanished[id] = domain.ErrNotFound{Entity: domain.EntityAnimal, ID: id}
				continue
			}
			depth := depths[id]
			if _, err := tx.UpdateAnimal(id, func(a *Animal) error {
				a.GenerationDepth = depth
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for id, e := range vanished {
		rejected[id] = e
	}
	return rejected, nil
}

func sortedAnimals(m map[string]Animal) []Animal {
	out := make([]Animal, 0, len(m))
	for _, a := range m {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortedEvents(m map[string]BreedingEvent) []BreedingEvent {
	out := make([]BreedingEvent, 0, len(m))
	for _, e := range m {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EventDate.Equal(out[j].EventDate) {
			return out[i].EventDate.Before(out[j].EventDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
