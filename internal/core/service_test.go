package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"herdbook/internal/pedigree"
	"herdbook/pkg/domain"
)

func TestGenerateRecommendationsRanksAndFilters(t *testing.T) {
	svc := NewInMemoryService(NewDefaultRulesEngine(nil))
	seedHerd(t, svc)

	recs, err := svc.GenerateRecommendations(context.Background(), 0)
	if err != nil {
		t.Fatalf("GenerateRecommendations: %v", err)
	}
	want := []string{"xxq", "yxq", "yxw"}
	if diff := cmp.Diff(want, pairs(recs)); diff != "" {
		t.Fatalf("pairs mismatch (-want +got):\n%s", diff)
	}
	for _, r := range recs {
		if r.Verdict.ShouldBlock || r.Verdict.Type != domain.RelationshipNone {
			t.Fatalf("blocked pair leaked into recommendations: %+v", r)
		}
	}
	if recs[0].Score != 0.3 {
		t.Fatalf("expected deeper pedigree first with score 0.3, got %v", recs[0].Score)
	}

	shallow, err := svc.GenerateRecommendations(context.Background(), 1)
	if err != nil {
		t.Fatalf("GenerateRecommendations depth 1: %v", err)
	}
	if diff := cmp.Diff([]string{"xxq", "xxw", "yxq", "yxw"}, pairs(shallow)); diff != "" {
		t.Fatalf("depth 1 should admit the grandparent pair (-want +got):\n%s", diff)
	}
}

func TestRecommendationsCachedUntilStoreChanges(t *testing.T) {
	store := newFlakyStore()
	svc := NewService(store)
	seedHerd(t, svc)
	ctx := context.Background()

	first, err := svc.GenerateRecommendations(ctx, 2)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	first[0].DamID = "mutated"
	again, err := svc.GenerateRecommendations(ctx, 2)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if got := store.fetches.Load(); got != 1 {
		t.Fatalf("expected cached result, fetched %d times", got)
	}
	if again[0].DamID == "mutated" {
		t.Fatalf("callers share the cached slice")
	}

	if _, err := svc.Recommend(ctx, RecommendationQuery{Environment: EnvironmentUnconstrained}); err != nil {
		t.Fatalf("unconstrained: %v", err)
	}
	if got := store.fetches.Load(); got != 2 {
		t.Fatalf("expected a separate entry per environment, fetched %d times", got)
	}

	if _, _, err := svc.CreateAnimal(ctx, goat("b", "Bramble", domain.GenderMale, nil)); err != nil {
		t.Fatalf("create: %v", err)
	}
	recs, err := svc.GenerateRecommendations(ctx, 2)
	if err != nil {
		t.Fatalf("after change: %v", err)
	}
	if got := store.fetches.Load(); got != 3 {
		t.Fatalf("expected refetch after change, fetched %d times", got)
	}
	if len(recs) != len(first)+2 {
		t.Fatalf("expected the new sire paired with both dams, got %v", pairs(recs))
	}

	svc.InvalidateRecommendations()
	if _, err := svc.GenerateRecommendations(ctx, 2); err != nil {
		t.Fatalf("after invalidate: %v", err)
	}
	if got := store.fetches.Load(); got != 4 {
		t.Fatalf("expected refetch after explicit invalidation, fetched %d times", got)
	}
}

func TestConcurrentRecommendationsShareOneFetch(t *testing.T) {
	store := newFlakyStore()
	svc := NewService(store)
	seedHerd(t, svc)
	store.gate = make(chan struct{})

	const callers = 8
	var wg sync.WaitGroup
	results := make([][]BreedingRecommendation, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = svc.GenerateRecommendations(context.Background(), 2)
		}()
	}
	deadline := time.Now().Add(2 * time.Second)
	for store.fetches.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(store.gate)
	wg.Wait()

	for i := range errs {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if diff := cmp.Diff(results[0], results[i]); diff != "" {
			t.Fatalf("caller %d saw different results:\n%s", i, diff)
		}
	}
	if got := store.fetches.Load(); got != 1 {
		t.Fatalf("expected one coalesced fetch, got %d", got)
	}
}

func TestAbandonedRecommendationReturnsPromptly(t *testing.T) {
	store := newFlakyStore()
	svc := NewService(store)
	seedHerd(t, svc)
	store.gate = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := svc.GenerateRecommendations(ctx, 2)
		done <- err
	}()
	for store.fetches.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	close(store.gate)
	recs, err := svc.GenerateRecommendations(context.Background(), 2)
	if err != nil {
		t.Fatalf("follow-up call: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected shared computation to finish, got %v", pairs(recs))
	}

	canceled, stop := context.WithCancel(context.Background())
	stop()
	if _, err := svc.GenerateRecommendations(canceled, 2); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected pre-cancelled context to fail, got %v", err)
	}
}

func TestRecommendationFetchFailures(t *testing.T) {
	store := newFlakyStore()
	logger := &captureLogger{}
	svc := NewService(store, WithLogger(logger))
	seedHerd(t, svc)
	ctx := context.Background()

	store.setFetchErr(errConnRefused)
	recs, err := svc.GenerateRecommendations(ctx, 2)
	if err == nil || recs != nil {
		t.Fatalf("expected error and no list, got %v, %v", recs, err)
	}
	if !domain.IsRetryable(err) || !errors.Is(err, errConnRefused) {
		t.Fatalf("expected retryable store error wrapping the cause, got %v", err)
	}
	if !logger.has("warn", "operation failed") {
		t.Fatalf("expected failure to be logged")
	}

	store.setFetchErr(domain.NewStoreError("fetch animals", domain.KindUnauthenticated, errors.New("jwt expired")))
	_, err = svc.GenerateRecommendations(ctx, 2)
	if !domain.IsUnauthenticated(err) || domain.IsRetryable(err) {
		t.Fatalf("expected terminal auth error, got %v", err)
	}

	store.setFetchErr(nil)
	recs, err = svc.GenerateRecommendations(ctx, 2)
	if err != nil || len(recs) != 3 {
		t.Fatalf("errors must not be cached: %v %v", pairs(recs), err)
	}
}

func TestClassifyRelationshipByIDOrName(t *testing.T) {
	svc := NewInMemoryService(NewDefaultRulesEngine(nil))
	seedHerd(t, svc)
	ctx := context.Background()

	cases := []struct {
		a, b string
		want domain.RelationshipType
	}{
		{"x", "y", domain.RelationshipParentChild},
		{"Clover", "Pip", domain.RelationshipSiblings},
		{"thor", "x", domain.RelationshipGrandparentGrandchild},
		{"x", "q", domain.RelationshipNone},
	}
	for _, tc := range cases {
		v, err := svc.ClassifyRelationship(ctx, tc.a, tc.b)
		if err != nil {
			t.Fatalf("classify %s/%s: %v", tc.a, tc.b, err)
		}
		if v.Type != tc.want || v.ShouldBlock != (tc.want != domain.RelationshipNone) {
			t.Fatalf("classify %s/%s = %+v, want %s", tc.a, tc.b, v, tc.want)
		}
	}

	_, err := svc.ClassifyRelationship(ctx, "x", "ghost")
	var nf domain.ErrNotFound
	if !errors.As(err, &nf) || nf.ID != "ghost" {
		t.Fatalf("expected not found for ghost, got %v", err)
	}
}

func TestResolveAncestor(t *testing.T) {
	svc := NewInMemoryService(nil)
	seedHerd(t, svc)
	id, ok, err := svc.ResolveAncestor(context.Background(), "  THOR ")
	if err != nil || !ok || id != "w" {
		t.Fatalf("ResolveAncestor = %q %v %v", id, ok, err)
	}
	if _, ok, err := svc.ResolveAncestor(context.Background(), "paper-only sire"); err != nil || ok {
		t.Fatalf("expected unresolved reference without error, got %v %v", ok, err)
	}
}

func TestDetectGenerationDepthWritesBack(t *testing.T) {
	audit := &captureAuditRecorder{}
	svc := NewInMemoryService(nil, WithAuditRecorder(audit))
	seedHerd(t, svc)
	ctx := context.Background()

	depth, err := svc.DetectGenerationDepth(ctx, "Clover")
	if err != nil || depth != 2 {
		t.Fatalf("DetectGenerationDepth = %d, %v", depth, err)
	}
	stored, _ := svc.Store().GetAnimal("x")
	if stored.GenerationDepth != 2 {
		t.Fatalf("expected depth written back, got %d", stored.GenerationDepth)
	}
	if _, err := svc.DetectGenerationDepth(ctx, "x"); err != nil {
		t.Fatalf("repeat: %v", err)
	}
	if got := audit.count("write_generation_depth", AuditStatusSuccess); got != 1 {
		t.Fatalf("expected a single write-back, got %d", got)
	}
	if _, err := svc.DetectGenerationDepth(ctx, "nobody"); err == nil {
		t.Fatalf("expected not found")
	}
}

func TestDetectGenerationDepthToleratesWriteFailure(t *testing.T) {
	store := newFlakyStore()
	logger := &captureLogger{}
	svc := NewService(store, WithLogger(logger))
	seedHerd(t, svc)
	store.writeErr["x"] = errConnRefused

	depth, err := svc.DetectGenerationDepth(context.Background(), "x")
	if err != nil || depth != 2 {
		t.Fatalf("DetectGenerationDepth = %d, %v", depth, err)
	}
	if !logger.has("warn", "generation depth write-back failed") {
		t.Fatalf("expected write-back failure to be logged")
	}
}

func TestSyncGenerationDepthsBatches(t *testing.T) {
	store := newFlakyStore()
	audit := &captureAuditRecorder{}
	logger := &captureLogger{}
	svc := NewService(store, WithDepthBatchSize(2), WithAuditRecorder(audit), WithLogger(logger))
	seedHerd(t, svc)
	commits := countCommits(store)
	store.writeErr["q"] = errConnRefused
	ctx := context.Background()

	// Batches are [q w] [x y] [z]; the first one is lost as a whole.
	report, err := svc.SyncGenerationDepths(ctx)
	if err != nil {
		t.Fatalf("SyncGenerationDepths: %v", err)
	}
	want := DepthSyncReport{Scanned: 5, Pending: 5, Updated: 3, Failed: 2, Batches: 3}
	if diff := cmp.Diff(want, report); diff != "" {
		t.Fatalf("report mismatch (-want +got):\n%s", diff)
	}
	if got := commits.Load(); got != 2 {
		t.Fatalf("expected one commit per successful batch, got %d", got)
	}
	if got := audit.count("write_generation_depth", AuditStatusError); got != 2 {
		t.Fatalf("expected two audited failures, got %d", got)
	}
	if !logger.has("warn", "generation depth batch failed") {
		t.Fatalf("expected batch failure to be logged")
	}
	for id, depth := range map[string]int{"x": 2, "y": 1, "z": 1, "w": 0} {
		a, _ := store.GetAnimal(id)
		if a.GenerationDepth != depth {
			t.Fatalf("animal %s depth = %d, want %d", id, a.GenerationDepth, depth)
		}
	}

	delete(store.writeErr, "q")
	report, err = svc.SyncGenerationDepths(ctx)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if diff := cmp.Diff(DepthSyncReport{Scanned: 5, Pending: 2, Updated: 2, Batches: 1}, report); diff != "" {
		t.Fatalf("second report mismatch (-want +got):\n%s", diff)
	}
	if got := commits.Load(); got != 3 {
		t.Fatalf("expected a single commit for the retried batch, got %d total", got)
	}
	report, _ = svc.SyncGenerationDepths(ctx)
	if report.Pending != 0 || report.Batches != 0 || commits.Load() != 3 {
		t.Fatalf("expected nothing pending once synced, got %+v", report)
	}
}

func TestSyncGenerationDepthsCommitsOncePerBatch(t *testing.T) {
	svc := NewInMemoryService(nil)
	ctx := context.Background()
	for i := range 120 {
		a := goat(fmt.Sprintf("g%03d", i), fmt.Sprintf("Goat %d", i), domain.GenderFemale, ancestry{domain.Mother: "y"})
		if _, _, err := svc.CreateAnimal(ctx, a); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	commits := countCommits(svc.Store())

	report, err := svc.SyncGenerationDepths(ctx)
	if err != nil {
		t.Fatalf("SyncGenerationDepths: %v", err)
	}
	if diff := cmp.Diff(DepthSyncReport{Scanned: 120, Pending: 120, Updated: 120, Batches: 3}, report); diff != "" {
		t.Fatalf("report mismatch (-want +got):\n%s", diff)
	}
	if got := commits.Load(); got != 3 {
		t.Fatalf("expected 3 commits for 120 animals in batches of %d, got %d", DefaultDepthBatchSize, got)
	}
	for _, a := range svc.Store().ListAnimals() {
		if a.GenerationDepth != 1 {
			t.Fatalf("animal %s depth = %d, want 1", a.ID, a.GenerationDepth)
		}
	}
}

func TestSyncGenerationDepthsStopsOnCancel(t *testing.T) {
	svc := NewInMemoryService(nil)
	seedHerd(t, svc)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.SyncGenerationDepths(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBreedingEventRules(t *testing.T) {
	audit := &captureAuditRecorder{}
	svc := NewInMemoryService(NewDefaultRulesEngine(nil), WithAuditRecorder(audit))
	seedHerd(t, svc)
	ctx := context.Background()

	_, res, err := svc.CreateBreedingEvent(ctx, BreedingEvent{MotherID: "x", SireID: "Pip", Status: domain.BreedingConfirmed})
	var rv domain.RuleViolationError
	if !errors.As(err, &rv) || !res.HasBlocking() {
		t.Fatalf("expected sibling breeding to be blocked, got %v", err)
	}
	if audit.count("create_breeding_event", AuditStatusError) != 1 {
		t.Fatalf("expected audited rejection")
	}

	event, _, err := svc.CreateBreedingEvent(ctx, BreedingEvent{MotherID: "y", SireID: "w", EventDate: time.Date(2024, time.March, 3, 0, 0, 0, 0, time.UTC)})
	if err != nil {
		t.Fatalf("unrelated breeding: %v", err)
	}
	if event.Status != domain.BreedingPlanned {
		t.Fatalf("expected planned default, got %s", event.Status)
	}
	if _, _, err := svc.UpdateBreedingEvent(ctx, event.ID, func(e *BreedingEvent) error {
		e.Status = domain.BreedingFailed
		return nil
	}); err != nil {
		t.Fatalf("fail event: %v", err)
	}
	if _, _, err := svc.UpdateBreedingEvent(ctx, event.ID, func(e *BreedingEvent) error {
		e.Status = domain.BreedingConfirmed
		return nil
	}); !errors.As(err, &rv) {
		t.Fatalf("expected terminal breeding status to stick, got %v", err)
	}
}

func TestBreedingEventUpdateCannotPairRelatives(t *testing.T) {
	svc := NewInMemoryService(NewDefaultRulesEngine(nil))
	seedHerd(t, svc)
	ctx := context.Background()

	event, _, err := svc.CreateBreedingEvent(ctx, BreedingEvent{MotherID: "x", SireID: "q"})
	if err != nil {
		t.Fatalf("unrelated breeding: %v", err)
	}
	_, res, err := svc.UpdateBreedingEvent(ctx, event.ID, func(e *BreedingEvent) error {
		e.SireID = "z"
		return nil
	})
	var rv domain.RuleViolationError
	if !errors.As(err, &rv) || !res.HasBlocking() {
		t.Fatalf("expected sibling re-pairing to be blocked, got %v %+v", err, res)
	}
	if res.Violations[0].Rule != consanguinityRuleName || res.Violations[0].EntityID != event.ID {
		t.Fatalf("unexpected violation %+v", res.Violations[0])
	}
	if events := svc.store.ListBreedingEvents(); len(events) != 1 || events[0].SireID != "q" {
		t.Fatalf("expected stored event to keep its sire, got %+v", events)
	}

	if _, _, err := svc.UpdateBreedingEvent(ctx, event.ID, func(e *BreedingEvent) error {
		e.PregnancyConfirmed = true
		return nil
	}); err != nil {
		t.Fatalf("status-only update: %v", err)
	}
}

func TestAnimalLifecycleAndLineageRules(t *testing.T) {
	svc := NewInMemoryService(NewDefaultRulesEngine(nil))
	seedHerd(t, svc)
	ctx := context.Background()

	if _, _, err := svc.UpdateAnimal(ctx, "w", func(a *Animal) error {
		a.Status = domain.StatusDeceased
		return nil
	}); err != nil {
		t.Fatalf("mark deceased: %v", err)
	}
	var rv domain.RuleViolationError
	if _, _, err := svc.UpdateAnimal(ctx, "w", func(a *Animal) error {
		a.Status = domain.StatusActive
		return nil
	}); !errors.As(err, &rv) {
		t.Fatalf("expected deceased to be terminal, got %v", err)
	}

	recs, err := svc.GenerateRecommendations(ctx, 2)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	for _, r := range recs {
		if r.SireID == "w" {
			t.Fatalf("deceased sire recommended: %+v", r)
		}
	}

	_, res, err := svc.CreateAnimal(ctx, goat("s", "Selfie", domain.GenderFemale, ancestry{domain.Mother: "s"}))
	if !errors.As(err, &rv) || res.Violations[0].Rule != lineageRuleName {
		t.Fatalf("expected self-parent to be blocked by lineage rule, got %v %+v", err, res)
	}
	_, res, err = svc.CreateAnimal(ctx, goat("k", "Kid", domain.GenderMale, ancestry{domain.Mother: "Pip"}))
	if err != nil {
		t.Fatalf("gender mismatch should only warn: %v", err)
	}
	if len(res.Violations) != 1 || res.Violations[0].Severity != domain.SeverityWarn {
		t.Fatalf("expected one warning, got %+v", res.Violations)
	}

	if _, err := svc.DeleteAnimal(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := svc.Store().GetAnimal("k"); ok {
		t.Fatalf("expected animal removed")
	}
}

func TestSeasonalTrends(t *testing.T) {
	svc := NewInMemoryService(nil)
	seedHerd(t, svc)
	ctx := context.Background()
	if _, _, err := svc.CreateAnimal(ctx, Animal{Base: domain.Base{ID: "c"}, Name: "Bessie", Species: "cattle", Gender: domain.GenderFemale}); err != nil {
		t.Fatalf("create cow: %v", err)
	}

	log := func(month time.Month, day int, status domain.BreedingStatus) {
		t.Helper()
		if _, _, err := svc.CreateBreedingEvent(ctx, BreedingEvent{
			MotherID:  "y",
			Status:    status,
			EventDate: time.Date(2024, month, day, 0, 0, 0, 0, time.UTC),
		}); err != nil {
			t.Fatalf("log breeding: %v", err)
		}
	}
	for d := 1; d <= 4; d++ {
		log(time.March, d, domain.BreedingConfirmed)
	}
	log(time.October, 1, domain.BreedingBorn)
	log(time.October, 2, domain.BreedingFailed)
	log(time.October, 3, domain.BreedingFailed)
	for d := 1; d <= 3; d++ {
		log(time.June, d, domain.BreedingFailed)
	}
	log(time.January, 1, domain.BreedingPlanned)
	if _, _, err := svc.CreateBreedingEvent(ctx, BreedingEvent{MotherID: "c", Status: domain.BreedingConfirmed, EventDate: time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)}); err != nil {
		t.Fatalf("log cow breeding: %v", err)
	}

	goats, err := svc.SeasonalTrends(ctx, "goat")
	if err != nil {
		t.Fatalf("SeasonalTrends goat: %v", err)
	}
	if !goats.DataDriven || goats.TotalBreedings != 10 {
		t.Fatalf("expected data-driven analysis over 10 breedings, got %+v", goats)
	}
	if diff := cmp.Diff([]time.Month{time.March, time.October}, goats.BestMonths); diff != "" {
		t.Fatalf("best months (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]time.Month{time.June}, goats.WorstMonths); diff != "" {
		t.Fatalf("worst months (-want +got):\n%s", diff)
	}

	cattle, err := svc.SeasonalTrends(ctx, "cattle")
	if err != nil {
		t.Fatalf("SeasonalTrends cattle: %v", err)
	}
	if diff := cmp.Diff(pedigree.DefaultSeasonalAnalysis("cattle", 1), cattle); diff != "" {
		t.Fatalf("expected species default below the sample gate (-want +got):\n%s", diff)
	}

	all, err := svc.SeasonalTrends(ctx, "")
	if err != nil || all.TotalBreedings != 11 {
		t.Fatalf("expected every completed breeding counted, got %+v %v", all, err)
	}
}

func TestAnalyzeSeasonalTrendsBelowGate(t *testing.T) {
	svc := NewInMemoryService(nil)
	got := svc.AnalyzeSeasonalTrends("", []MonthlyAggregate{{Month: time.March, BreedingsAttempted: 3, PregnanciesConfirmed: 3}})
	if diff := cmp.Diff(pedigree.DefaultSeasonalAnalysis("", 3), got); diff != "" {
		t.Fatalf("expected fixed default (-want +got):\n%s", diff)
	}
}

func TestServiceObservability(t *testing.T) {
	metrics := &captureMetricsRecorder{}
	tracer := &captureTracer{}
	audit := &captureAuditRecorder{}
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc := NewInMemoryService(NewDefaultRulesEngine(nil),
		WithMetricsRecorder(metrics),
		WithTracer(tracer),
		WithAuditRecorder(audit),
		WithClock(ClockFunc(func() time.Time { return fixed })),
		WithEnvironment(EnvironmentUnconstrained),
	)
	if svc.Environment() != EnvironmentUnconstrained {
		t.Fatalf("unexpected environment %s", svc.Environment())
	}
	seedHerd(t, svc)
	ctx := context.Background()

	if _, err := svc.GenerateRecommendations(ctx, 0); err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if _, err := svc.ClassifyRelationship(ctx, "x", "missing"); err == nil {
		t.Fatalf("expected classify error")
	}
	if !metrics.has("generate_recommendations", true) || !tracer.has("generate_recommendations", true) {
		t.Fatalf("expected successful recommendation to be observed")
	}
	if !metrics.has("classify_relationship", false) || !tracer.has("classify_relationship", false) {
		t.Fatalf("expected failed classification to be observed")
	}
	if audit.count("create_animal", AuditStatusSuccess) != 5 {
		t.Fatalf("expected five audited creates")
	}
	for _, e := range audit.entries {
		if !e.Timestamp.Equal(fixed) {
			t.Fatalf("audit entry not stamped by the service clock: %+v", e)
		}
	}
}

func TestCustomScorer(t *testing.T) {
	byName := func(dam, sire Animal) float64 {
		if sire.Name == "Thor" {
			return 1
		}
		return 0
	}
	svc := NewInMemoryService(nil, WithScorer(byName))
	seedHerd(t, svc)
	recs, err := svc.GenerateRecommendations(context.Background(), 2)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if recs[0].SireID != "w" || recs[0].Score != 1 {
		t.Fatalf("expected custom scorer to rank Thor first, got %+v", recs[0])
	}
}
