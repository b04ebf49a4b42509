package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"herdbook/internal/infra/persistence/memory"
	"herdbook/internal/pedigree"
	"herdbook/pkg/domain"
)

const (
	// DefaultDepthBatchSize is the number of depth write-backs committed together.
	DefaultDepthBatchSize = 50
	// DefaultCacheSize is the number of (depth, environment) recommendation
	// sets kept.
	DefaultCacheSize = 32
)

// Service is the caller-facing entry point for herd records and pedigree
// analysis. It is safe for concurrent use.
type Service struct {
	store     PersistentStore
	logger    Logger
	clock     Clock
	metrics   MetricsRecorder
	tracer    Tracer
	audit     AuditRecorder
	env       EnvironmentClass
	scorer    pedigree.Scorer
	batchSize int
	cacheSize int

	cache   *lru.Cache[recommendationKey, cachedRecommendations]
	epoch   atomic.Uint64
	flights singleflight.Group
}

// Option customises a Service.
type Option func(*Service)

// WithLogger routes service diagnostics to logger.
func WithLogger(logger Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the clock used for audit timestamps and durations.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithMetricsRecorder observes every service operation.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(s *Service) {
		if recorder != nil {
			s.metrics = recorder
		}
	}
}

// WithTracer wraps every service operation in a span.
func WithTracer(tracer Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithAuditRecorder receives an entry for every store write.
func WithAuditRecorder(recorder AuditRecorder) Option {
	return func(s *Service) {
		if recorder != nil {
			s.audit = recorder
		}
	}
}

// WithEnvironment sets the environment class used when a query leaves it
// unset.
func WithEnvironment(env EnvironmentClass) Option {
	return func(s *Service) {
		if env != "" {
			s.env = env
		}
	}
}

// WithScorer replaces the recommendation ranking policy.
func WithScorer(scorer pedigree.Scorer) Option {
	return func(s *Service) {
		if scorer != nil {
			s.scorer = scorer
		}
	}
}

// WithDepthBatchSize sets how many depth write-backs share one store commit.
func WithDepthBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithCacheSize bounds the number of cached recommendation sets.
func WithCacheSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.cacheSize = n
		}
	}
}

// NewService constructs a service over store. The service subscribes to the
// store's change feed so committed writes invalidate cached recommendations.
func NewService(store PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:     store,
		logger:    noopLogger{},
		clock:     systemClock{},
		metrics:   noopMetricsRecorder{},
		tracer:    noopTracer{},
		audit:     noopAuditRecorder{},
		env:       EnvironmentConstrained,
		scorer:    pedigree.PedigreeCompletenessScorer,
		batchSize: DefaultDepthBatchSize,
		cacheSize: DefaultCacheSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	// lru.New only fails for non-positive sizes, which WithCacheSize rejects.
	s.cache, _ = lru.New[recommendationKey, cachedRecommendations](s.cacheSize)
	store.OnChange(func([]Change) { s.InvalidateRecommendations() })
	return s
}

// NewInMemoryService creates a service over a fresh in-memory store.
func NewInMemoryService(engine *RulesEngine, opts ...Option) *Service {
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

// Environment returns the default environment class.
func (s *Service) Environment() EnvironmentClass {
	return s.env
}

func (s *Service) run(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, op)
	start := s.clock.Now()
	err := fn(ctx)
	s.metrics.Observe(ctx, op, err == nil, s.clock.Now().Sub(start))
	span.End(err)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		s.logger.Debug("operation abandoned", "operation", op)
	case domain.IsRetryable(err), domain.IsUnauthenticated(err), isRuleViolation(err):
		s.logger.Warn("operation failed", "operation", op, "error", err)
	default:
		s.logger.Error("operation failed", "operation", op, "error", err)
	}
	return err
}

func (s *Service) recordAudit(ctx context.Context, op, entityID, detail string, err error) {
	entry := AuditEntry{
		Operation: op,
		Status:    AuditStatusSuccess,
		EntityID:  entityID,
		Detail:    detail,
		Timestamp: s.clock.Now(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
}

func isRuleViolation(err error) bool {
	var rv domain.RuleViolationError
	return errors.As(err, &rv)
}

// storeFailure marks a fetch error as retryable unless the store already
// classified it or the caller gave up.
func storeFailure(op string, err error) error {
	var se *domain.StoreError
	if errors.As(err, &se) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return domain.NewStoreError(op, domain.KindUnavailable, err)
}

func (s *Service) fetchAnimals(ctx context.Context) ([]Animal, error) {
	animals, err := s.store.FetchAllAnimals(ctx)
	if err != nil {
		return nil, storeFailure("fetch animals", err)
	}
	return animals, nil
}

func auditID(primary, fallback string) string {
	if primary != "" {
		return primary
	}
	return fallback
}

// CreateAnimal persists a new animal.
func (s *Service) CreateAnimal(ctx context.Context, animal Animal) (Animal, Result, error) {
	var created Animal
	var res Result
	err := s.run(ctx, "create_animal", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			created, err = tx.CreateAnimal(animal)
			return err
		})
		return err
	})
	s.recordAudit(ctx, "create_animal", auditID(created.ID, animal.ID), created.DisplayName(), err)
	return created, res, err
}

// UpdateAnimal mutates an animal using the provided mutator.
func (s *Service) UpdateAnimal(ctx context.Context, id string, mutator func(*Animal) error) (Animal, Result, error) {
	var updated Animal
	var res Result
	err := s.run(ctx, "update_animal", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			updated, err = tx.UpdateAnimal(id, mutator)
			return err
		})
		return err
	})
	s.recordAudit(ctx, "update_animal", id, "", err)
	return updated, res, err
}

// DeleteAnimal removes an animal no breeding event references.
func (s *Service) DeleteAnimal(ctx context.Context, id string) (Result, error) {
	var res Result
	err := s.run(ctx, "delete_animal", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			return tx.DeleteAnimal(id)
		})
		return err
	})
	s.recordAudit(ctx, "delete_animal", id, "", err)
	return res, err
}

// CreateBreedingEvent logs a breeding. Pairings the classifier blocks are
// rejected with a RuleViolationError.
func (s *Service) CreateBreedingEvent(ctx context.Context, event BreedingEvent) (BreedingEvent, Result, error) {
	var created BreedingEvent
	var res Result
	err := s.run(ctx, "create_breeding_event", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			created, err = tx.CreateBreedingEvent(event)
			return err
		})
		return err
	})
	s.recordAudit(ctx, "create_breeding_event", auditID(created.ID, event.ID), string(created.Status), err)
	return created, res, err
}

// UpdateBreedingEvent mutates a breeding event, e.g. to confirm a pregnancy.
func (s *Service) UpdateBreedingEvent(ctx context.Context, id string, mutator func(*BreedingEvent) error) (BreedingEvent, Result, error) {
	var updated BreedingEvent
	var res Result
	err := s.run(ctx, "update_breeding_event", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			updated, err = tx.UpdateBreedingEvent(id, mutator)
			return err
		})
		return err
	})
	s.recordAudit(ctx, "update_breeding_event", id, string(updated.Status), err)
	return updated, res, err
}

// RecommendationQuery selects the traversal depth and environment class of
// a recommendation run. Zero values fall back to the service defaults.
type RecommendationQuery struct {
	MaxDepth    int
	Environment EnvironmentClass
}

type recommendationKey struct {
	depth int
	env   EnvironmentClass
}

type cachedRecommendations struct {
	epoch uint64
	recs  []BreedingRecommendation
}

// GenerateRecommendations lists compatible pairs using the default
// environment class. A non-positive maxDepth selects the class default.
func (s *Service) GenerateRecommendations(ctx context.Context, maxDepth int) ([]BreedingRecommendation, error) {
	return s.Recommend(ctx, RecommendationQuery{MaxDepth: maxDepth})
}

// Recommend lists compatible pairs ranked by the configured scorer.
//
// Results are cached per (depth, environment class) until the next committed
// store change. Concurrent calls for the same key share one fetch and
// computation. A caller whose context ends stops waiting; the shared
// computation still completes for the others. Fetch failures are returned
// as storage errors, never as an empty list.
func (s *Service) Recommend(ctx context.Context, q RecommendationQuery) ([]BreedingRecommendation, error) {
	env := q.Environment
	if env == "" {
		env = s.env
	}
	key := recommendationKey{depth: env.resolveDepth(q.MaxDepth), env: env}

	var out []BreedingRecommendation
	err := s.run(ctx, "generate_recommendations", func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		recs, err := s.recommendations(ctx, key)
		if err != nil {
			return err
		}
		out = slices.Clone(recs)
		return nil
	})
	return out, err
}

func (s *Service) recommendations(ctx context.Context, key recommendationKey) ([]BreedingRecommendation, error) {
	epoch := s.epoch.Load()
	if hit, ok := s.cache.Get(key); ok && hit.epoch == epoch {
		return hit.recs, nil
	}
	flightKey := fmt.Sprintf("%d/%s/%d", key.depth, key.env, epoch)
	ch := s.flights.DoChan(flightKey, func() (any, error) {
		return s.computeRecommendations(context.WithoutCancel(ctx), key, epoch)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]BreedingRecommendation), nil
	}
}

func (s *Service) computeRecommendations(ctx context.Context, key recommendationKey, epoch uint64) ([]BreedingRecommendation, error) {
	animals, err := s.fetchAnimals(ctx)
	if err != nil {
		return nil, err
	}
	recs, err := pedigree.Recommend(ctx, animals, pedigree.RecommendOptions{
		MaxDepth: key.depth,
		Scorer:   s.scorer,
		Logger:   s.logger,
	})
	if err != nil {
		return nil, err
	}
	// A stale entry written after an invalidation is ignored on read.
	if s.epoch.Load() == epoch {
		s.cache.Add(key, cachedRecommendations{epoch: epoch, recs: recs})
	}
	s.logger.Debug("recommendations computed", "depth", key.depth, "environment", string(key.env), "animals", len(animals), "pairs", len(recs))
	return recs, nil
}

// InvalidateRecommendations drops every cached recommendation set.
func (s *Service) InvalidateRecommendations() {
	s.epoch.Add(1)
	s.cache.Purge()
}

// ClassifyRelationship classifies two animals given by ID or name.
func (s *Service) ClassifyRelationship(ctx context.Context, refA, refB string) (RelationshipVerdict, error) {
	var verdict RelationshipVerdict
	err := s.run(ctx, "classify_relationship", func(ctx context.Context) error {
		animals, err := s.fetchAnimals(ctx)
		if err != nil {
			return err
		}
		index := pedigree.NewIndex(animals)
		a, ok := lookup(index, refA)
		if !ok {
			return domain.ErrNotFound{Entity: EntityAnimal, ID: refA}
		}
		b, ok := lookup(index, refB)
		if !ok {
			return domain.ErrNotFound{Entity: EntityAnimal, ID: refB}
		}
		verdict = pedigree.NewClassifier(animals,
			pedigree.WithIndex(index),
			pedigree.WithMaxDepth(s.env.DefaultDepth()),
			pedigree.WithLogger(s.logger),
		).Classify(a, b)
		return nil
	})
	return verdict, err
}

// ResolveAncestor maps an ancestor reference to an animal ID against the
// current herd. An unresolvable reference is not an error.
func (s *Service) ResolveAncestor(ctx context.Context, ref string) (string, bool, error) {
	var id string
	var ok bool
	err := s.run(ctx, "resolve_ancestor", func(ctx context.Context) error {
		animals, err := s.fetchAnimals(ctx)
		if err != nil {
			return err
		}
		id, ok = pedigree.ResolveAncestor(ref, animals)
		return nil
	})
	return id, ok, err
}

// DetectGenerationDepth computes an animal's generation depth and writes it
// back when it differs from the stored value. A failed write-back is logged
// and does not fail the call.
func (s *Service) DetectGenerationDepth(ctx context.Context, ref string) (int, error) {
	var depth int
	err := s.run(ctx, "detect_generation_depth", func(ctx context.Context) error {
		animals, err := s.fetchAnimals(ctx)
		if err != nil {
			return err
		}
		a, ok := lookup(pedigree.NewIndex(animals), ref)
		if !ok {
			return domain.ErrNotFound{Entity: EntityAnimal, ID: ref}
		}
		depth = pedigree.DetectGenerationDepth(a.Pedigree)
		if depth != a.GenerationDepth {
			s.writeDepth(ctx, a.ID, depth)
		}
		return nil
	})
	return depth, err
}

func (s *Service) writeDepth(ctx context.Context, id string, depth int) bool {
	err := s.store.WriteDetectedDepth(ctx, id, depth)
	s.recordAudit(ctx, "write_generation_depth", id, fmt.Sprintf("depth=%d", depth), err)
	if err != nil {
		s.logger.Warn("generation depth write-back failed", "animal", id, "depth", depth, "error", err)
		return false
	}
	return true
}

// DepthSyncReport summarises a SyncGenerationDepths run.
type DepthSyncReport struct {
	Scanned int `json:"scanned"`
	Pending int `json:"pending"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
	Batches int `json:"batches"`
}

// SyncGenerationDepths recomputes every animal's generation depth and writes
// back the ones that changed, one store commit per batch of at most
// batch-size animals. Failed writes are counted and logged; they do not stop
// the run. A cancelled context stops before the next batch.
func (s *Service) SyncGenerationDepths(ctx context.Context) (DepthSyncReport, error) {
	var report DepthSyncReport
	err := s.run(ctx, "sync_generation_depths", func(ctx context.Context) error {
		animals, err := s.fetchAnimals(ctx)
		if err != nil {
			return err
		}
		report.Scanned = len(animals)

		type depthWrite struct {
			id    string
			depth int
		}
		var pending []depthWrite
		for _, a := range animals {
			if d := pedigree.DetectGenerationDepth(a.Pedigree); d != a.GenerationDepth {
				pending = append(pending, depthWrite{id: a.ID, depth: d})
			}
		}
		report.Pending = len(pending)

		for batch := range slices.Chunk(pending, s.batchSize) {
			if err := ctx.Err(); err != nil {
				return err
			}
			report.Batches++
			depths := make(map[string]int, len(batch))
			for _, w := range batch {
				depths[w.id] = w.depth
			}
			rejected, batchErr := s.store.WriteDetectedDepths(ctx, depths)
			if batchErr != nil {
				s.logger.Warn("generation depth batch failed", "batch", report.Batches, "animals", len(batch), "error", batchErr)
			}
			for _, w := range batch {
				werr := batchErr
				if werr == nil {
					werr = rejected[w.id]
				}
				s.recordAudit(ctx, "write_generation_depth", w.id, fmt.Sprintf("depth=%d", w.depth), werr)
				if werr != nil {
					if batchErr == nil {
						s.logger.Warn("generation depth write-back failed", "animal", w.id, "depth", w.depth, "error", werr)
					}
					report.Failed++
					continue
				}
				report.Updated++
			}
		}
		s.logger.Info("generation depths synced", "scanned", report.Scanned, "pending", report.Pending,
			"updated", report.Updated, "failed", report.Failed, "batches", report.Batches)
		return nil
	})
	return report, err
}

// SeasonalTrends aggregates logged breedings by month and analyzes them. A
// non-empty species restricts the data to dams of that species and selects
// the species' seasonal profile.
func (s *Service) SeasonalTrends(ctx context.Context, species string) (SeasonalAnalysis, error) {
	var out SeasonalAnalysis
	err := s.run(ctx, "seasonal_trends", func(ctx context.Context) error {
		events, err := s.store.FetchBreedingEvents(ctx)
		if err != nil {
			return storeFailure("fetch breeding events", err)
		}
		var keep func(BreedingEvent) bool
		if strings.TrimSpace(species) != "" {
			animals, err := s.fetchAnimals(ctx)
			if err != nil {
				return err
			}
			keep = pedigree.SpeciesFilter(species, animals)
		}
		out = pedigree.AnalyzeSeasonalTrendsFor(species, pedigree.AggregateByMonth(events, keep))
		return nil
	})
	return out, err
}

// AnalyzeSeasonalTrends analyzes caller-supplied monthly aggregates.
func (s *Service) AnalyzeSeasonalTrends(species string, aggregates []MonthlyAggregate) SeasonalAnalysis {
	return pedigree.AnalyzeSeasonalTrendsFor(species, aggregates)
}
