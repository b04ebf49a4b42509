package postgres_test

import (
	"context"
	"database/sql"
	"testing"

	"herdbook/internal/core"
	"herdbook/internal/infra/persistence/postgres"
	"herdbook/pkg/domain"
)

// A recommendation computed while a commit is being published must reflect
// the committed population, and must not be cached if it does not.
func TestRecommendationsAfterCommitReflectDatabase(t *testing.T) {
	db, _ := postgres.NewStubDB()
	restore := postgres.OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	t.Cleanup(restore)
	ctx := context.Background()
	store, err := postgres.NewStore(ctx, "", core.NewDefaultRulesEngine(nil))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	svc := core.NewService(store)
	for _, a := range []domain.Animal{
		{Base: domain.Base{ID: "d"}, Name: "Dam", Species: "goat", Gender: domain.GenderFemale},
		{Base: domain.Base{ID: "s"}, Name: "Sire", Species: "goat", Gender: domain.GenderMale},
	} {
		if _, _, err := svc.CreateAnimal(ctx, a); err != nil {
			t.Fatalf("create %s: %v", a.ID, err)
		}
	}
	recs, err := svc.GenerateRecommendations(ctx, 0)
	if err != nil || len(recs) != 1 {
		t.Fatalf("expected the unrelated pair, got %+v, %v", recs, err)
	}

	var during []domain.BreedingRecommendation
	var duringErr error
	store.OnChange(func([]domain.Change) {
		during, duringErr = svc.GenerateRecommendations(ctx, 0)
	})
	if _, _, err := svc.UpdateAnimal(ctx, "s", func(a *domain.Animal) error {
		a.Pedigree.Set(domain.Mother, "d")
		return nil
	}); err != nil {
		t.Fatalf("update sire: %v", err)
	}
	if duringErr != nil {
		t.Fatalf("recommend during commit: %v", duringErr)
	}
	if len(during) != 0 {
		t.Fatalf("recommended %+v while the sire's mother is the dam", during)
	}
	after, err := svc.GenerateRecommendations(ctx, 0)
	if err != nil {
		t.Fatalf("recommend after commit: %v", err)
	}
	if len(after) != 0 {
		t.Fatalf("blocked pair served after commit: %+v", after)
	}
}
