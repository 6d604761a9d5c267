package reconcile_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"

	"novadream/internal/db"
	"novadream/internal/domain"
	"novadream/internal/events"
	"novadream/internal/migrate"
	"novadream/internal/reconcile"
	"novadream/internal/repo"
)

const testOwner = "owner-1"

type applyEnv struct {
	Applier   reconcile.Applier
	Repo      repo.Repo
	DB        *sql.DB
	Ctx       context.Context
	ProjectID string
}

func newApplyEnv(t *testing.T) applyEnv {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	r := repo.Repo{DB: conn}
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	projectID := uuid.New().String()
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	p := domain.Project{
		ID:        projectID,
		OwnerID:   testOwner,
		Title:     "Side Project",
		Segment:   "saas",
		Status:    "planned",
		CreatedAt: now.Format(time.RFC3339),
		UpdatedAt: now.Format(time.RFC3339),
	}
	if err := r.InsertProject(ctx, tx, p); err != nil {
		t.Fatalf("insert project: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	return applyEnv{
		Applier: reconcile.Applier{
			DB:     conn,
			Repo:   r,
			Events: events.Writer{DB: conn},
			Now:    func() time.Time { return now },
		},
		Repo:      r,
		DB:        conn,
		Ctx:       ctx,
		ProjectID: projectID,
	}
}

func (env applyEnv) seedMission(t *testing.T, title string, orderIndex int, duration *string) domain.Mission {
	t.Helper()
	tx, err := env.DB.BeginTx(env.Ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	m := domain.Mission{
		ID:                uuid.New().String(),
		OwnerID:           testOwner,
		ProjectID:         env.ProjectID,
		Title:             title,
		Status:            "pending",
		OrderIndex:        orderIndex,
		EstimatedDuration: duration,
		CreatedAt:         "2025-01-01T00:00:00Z",
		UpdatedAt:         "2025-01-01T00:00:00Z",
	}
	if err := env.Repo.InsertMission(env.Ctx, tx, m); err != nil {
		t.Fatalf("seed mission: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
	return m
}

func TestApplyAppendsAfterMaxOrderIndex(t *testing.T) {
	env := newApplyEnv(t)
	env.seedMission(t, "existing one", 3, nil)
	env.seedMission(t, "existing two", 5, nil)

	proposals := []reconcile.Proposed{
		{Title: "first new"},
		{Title: "second new"},
		{Title: "third new"},
	}
	diffs := reconcile.Classify(proposals, mustList(t, env), 0.85)
	res, err := env.Applier.Apply(env.Ctx, testOwner, env.ProjectID, diffs)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res.Created != 3 || res.Updated != 0 {
		t.Fatalf("result = %+v", res)
	}

	missions := mustList(t, env)
	byTitle := map[string]int{}
	for _, m := range missions {
		byTitle[m.Title] = m.OrderIndex
	}
	if byTitle["first new"] != 6 || byTitle["second new"] != 7 || byTitle["third new"] != 8 {
		t.Fatalf("order indexes = %v", byTitle)
	}
}

func TestApplyFirstMissionGetsIndexZero(t *testing.T) {
	env := newApplyEnv(t)
	diffs := reconcile.Classify([]reconcile.Proposed{{Title: "only one"}}, nil, 0.85)
	if _, err := env.Applier.Apply(env.Ctx, testOwner, env.ProjectID, diffs); err != nil {
		t.Fatalf("apply: %v", err)
	}
	missions := mustList(t, env)
	if len(missions) != 1 || missions[0].OrderIndex != 0 {
		t.Fatalf("missions = %+v", missions)
	}
}

func TestApplyWritesUpdatesAndClearsDuration(t *testing.T) {
	env := newApplyEnv(t)
	seeded := env.seedMission(t, "design schema", 0, strPtr("2w"))

	proposals := []reconcile.Proposed{
		{Title: "design schema", Description: "now with details", EstimatedDuration: nil},
	}
	diffs := reconcile.Classify(proposals, mustList(t, env), 0.85)
	if diffs[0].Class != reconcile.ClassUpdate {
		t.Fatalf("diff = %+v", diffs[0])
	}
	res, err := env.Applier.Apply(env.Ctx, testOwner, env.ProjectID, diffs)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res.Updated != 1 {
		t.Fatalf("result = %+v", res)
	}
	got, err := env.Repo.GetMission(env.Ctx, testOwner, seeded.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Description != "now with details" {
		t.Fatalf("description = %q", got.Description)
	}
	if got.EstimatedDuration != nil {
		t.Fatalf("duration should be cleared, got %v", *got.EstimatedDuration)
	}
	if got.Title != "design schema" || got.Status != "pending" || got.OrderIndex != 0 {
		t.Fatalf("unrelated fields must not move: %+v", got)
	}
}

func TestApplySkipsIdentical(t *testing.T) {
	env := newApplyEnv(t)
	seeded := env.seedMission(t, "write docs", 0, nil)

	diffs := reconcile.Classify([]reconcile.Proposed{{Title: "Write Docs!"}}, mustList(t, env), 0.85)
	if diffs[0].Class != reconcile.ClassIdentical {
		t.Fatalf("diff = %+v", diffs[0])
	}
	res, err := env.Applier.Apply(env.Ctx, testOwner, env.ProjectID, diffs)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res.Created != 0 || res.Updated != 0 {
		t.Fatalf("identical rows must not be written: %+v", res)
	}
	got, err := env.Repo.GetMission(env.Ctx, testOwner, seeded.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "write docs" {
		t.Fatalf("stored title must keep its original form, got %q", got.Title)
	}
}

func mustList(t *testing.T, env applyEnv) []domain.Mission {
	t.Helper()
	missions, err := env.Repo.ListMissions(env.Ctx, testOwner, env.ProjectID)
	if err != nil {
		t.Fatalf("list missions: %v", err)
	}
	return missions
}
