package directive_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"novadream/internal/db"
	"novadream/internal/directive"
	"novadream/internal/events"
	"novadream/internal/migrate"
	"novadream/internal/repo"
)

func newTestExecutor(t *testing.T) (*directive.Executor, *sql.DB) {
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
	w := events.Writer{DB: conn}
	ex := directive.NewExecutor(conn, r, w, func(s string) bool { return s == "saas" || s == "other" }, "other")
	ex.Now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	return ex, conn
}

func taskCount(t *testing.T, conn *sql.DB) int {
	t.Helper()
	var n int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM tasks`).Scan(&n); err != nil {
		t.Fatalf("count tasks: %v", err)
	}
	return n
}

func TestConfirmExecutesOnce(t *testing.T) {
	ex, conn := newTestExecutor(t)
	ctx := context.Background()
	ref := directive.Ref{MessageID: "m1", Index: 0}
	d := directive.Parse("[[ACTION:CREATE_TASK|title=Buy milk|priority=high]]")[0]

	if err := ex.Confirm(ctx, "owner-1", ref, d); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if got := ex.State(ref); got != directive.StateExecuted {
		t.Fatalf("state = %s, want executed", got)
	}
	if err := ex.Confirm(ctx, "owner-1", ref, d); !errors.Is(err, directive.ErrAlreadyDone) {
		t.Fatalf("second confirm = %v, want ErrAlreadyDone", err)
	}
	if n := taskCount(t, conn); n != 1 {
		t.Fatalf("task count = %d, want 1", n)
	}
}

func TestConfirmConcurrentSingleFlight(t *testing.T) {
	ex, conn := newTestExecutor(t)
	ctx := context.Background()
	ref := directive.Ref{MessageID: "m1", Index: 0}
	d := directive.Parse("[[ACTION:CREATE_TASK|title=Race me]]")[0]

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = ex.Confirm(ctx, "owner-1", ref, d)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, directive.ErrAlreadyRunning), errors.Is(err, directive.ErrAlreadyDone):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("%d confirms succeeded, want exactly 1", succeeded)
	}
	if n := taskCount(t, conn); n != 1 {
		t.Fatalf("task count = %d, want 1", n)
	}
}

func TestConfirmRequiresOwner(t *testing.T) {
	ex, conn := newTestExecutor(t)
	ref := directive.Ref{MessageID: "m1", Index: 0}
	d := directive.Parse("[[ACTION:CREATE_TASK|title=nope]]")[0]
	if err := ex.Confirm(context.Background(), "", ref, d); !errors.Is(err, directive.ErrUnauthenticated) {
		t.Fatalf("confirm without owner = %v, want ErrUnauthenticated", err)
	}
	if got := ex.State(ref); got != directive.StatePending {
		t.Fatalf("state = %s, want pending", got)
	}
	if n := taskCount(t, conn); n != 0 {
		t.Fatalf("task count = %d, want 0", n)
	}
}

func TestDismissIsTerminal(t *testing.T) {
	ex, _ := newTestExecutor(t)
	ref := directive.Ref{MessageID: "m1", Index: 0}
	d := directive.Parse("[[ACTION:CREATE_TASK|title=later]]")[0]
	if err := ex.Dismiss(ref); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	if got := ex.State(ref); got != directive.StateDismissed {
		t.Fatalf("state = %s, want dismissed", got)
	}
	if err := ex.Confirm(context.Background(), "owner-1", ref, d); !errors.Is(err, directive.ErrDismissed) {
		t.Fatalf("confirm after dismiss = %v, want ErrDismissed", err)
	}
}

func TestNoteActionUnimplementedRevertsToPending(t *testing.T) {
	ex, _ := newTestExecutor(t)
	ref := directive.Ref{MessageID: "m1", Index: 0}
	d := directive.Parse("[[ACTION:CREATE_NOTE|title=idea|content=write it down]]")[0]
	err := ex.Confirm(context.Background(), "owner-1", ref, d)
	if !errors.Is(err, directive.ErrUnimplementedAction) {
		t.Fatalf("confirm note = %v, want ErrUnimplementedAction", err)
	}
	// Failure keeps the card confirmable.
	if got := ex.State(ref); got != directive.StatePending {
		t.Fatalf("state = %s, want pending", got)
	}
}

func TestAddRevenueSegmentFallback(t *testing.T) {
	ex, conn := newTestExecutor(t)
	ref := directive.Ref{MessageID: "m1", Index: 0}
	d := directive.Parse("[[ACTION:ADD_REVENUE|amount=250.50|segment=crypto|description=consulting]]")[0]
	if err := ex.Confirm(context.Background(), "owner-1", ref, d); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	var segment string
	var amount float64
	if err := conn.QueryRow(`SELECT segment, amount FROM transactions`).Scan(&segment, &amount); err != nil {
		t.Fatalf("query transaction: %v", err)
	}
	if segment != "other" {
		t.Fatalf("segment = %q, want fallback other", segment)
	}
	if amount != 250.50 {
		t.Fatalf("amount = %v", amount)
	}
}

func TestBuildCardsStatesAndRefs(t *testing.T) {
	ex, _ := newTestExecutor(t)
	text := "ok\n[[ACTION:CREATE_TASK|title=a]]\n[[ACTION:MYSTERY|x=1]]"
	cards := directive.BuildCards(ex, "msg-9", text)
	if len(cards) != 2 {
		t.Fatalf("cards = %d, want 2", len(cards))
	}
	if cards[0].Ref != (directive.Ref{MessageID: "msg-9", Index: 0}) {
		t.Fatalf("ref = %+v", cards[0].Ref)
	}
	if cards[0].State != directive.StatePending {
		t.Fatalf("state = %s", cards[0].State)
	}
	if !cards[1].Unknown {
		t.Fatal("unrecognized type should be flagged")
	}
	if cards[1].Label != "Create task" {
		t.Fatalf("unknown card renders as default kind, got %q", cards[1].Label)
	}
	// Same message renders the same refs again.
	again := directive.BuildCards(ex, "msg-9", text)
	if again[1].Ref != cards[1].Ref {
		t.Fatalf("refs should be stable per message: %+v vs %+v", again[1].Ref, cards[1].Ref)
	}
}
