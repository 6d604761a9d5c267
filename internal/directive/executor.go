package directive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"novadream/internal/domain"
	"novadream/internal/events"
	"novadream/internal/repo"
)

// State is the lifecycle position of one directive instance.
type State string

const (
	StatePending   State = "pending"
	StateExecuting State = "executing"
	StateExecuted  State = "executed"
	StateDismissed State = "dismissed"
)

var (
	ErrUnauthenticated = errors.New("authentication required before executing actions")
	ErrAlreadyRunning  = errors.New("action already executing")
	ErrAlreadyDone     = errors.New("action already executed")
	ErrDismissed       = errors.New("action was dismissed")
	// ErrUnimplementedAction marks recognized directive kinds with no wired
	// executor (notes). Surfaced instead of silently implying success.
	ErrUnimplementedAction = errors.New("action type is recognized but not wired to an executor")
)

// Executor runs confirmed directives against the store exactly once each.
type Executor struct {
	DB       *sql.DB
	Repo     repo.Repo
	Events   events.Writer
	Now      func() time.Time
	Segments SegmentValidator
	Fallback string

	mu     sync.Mutex
	states map[Ref]State
}

func NewExecutor(db *sql.DB, r repo.Repo, w events.Writer, segments SegmentValidator, fallback string) *Executor {
	return &Executor{
		DB:       db,
		Repo:     r,
		Events:   w,
		Now:      time.Now,
		Segments: segments,
		Fallback: fallback,
		states:   make(map[Ref]State),
	}
}

func (e *Executor) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// State returns the lifecycle state for a directive instance.
func (e *Executor) State(ref Ref) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.states[ref]; ok {
		return s
	}
	return StatePending
}

// Dismiss cancels a pending directive. Terminal; no store mutation.
func (e *Executor) Dismiss(ref Ref) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.states[ref] {
	case StateExecuting:
		return ErrAlreadyRunning
	case StateExecuted:
		return ErrAlreadyDone
	}
	e.states[ref] = StateDismissed
	return nil
}

// Confirm executes a directive once. Re-entrant confirms while the directive
// is executing are rejected; a failed execution reverts to pending so the
// directive stays confirmable.
func (e *Executor) Confirm(ctx context.Context, ownerID string, ref Ref, d Directive) error {
	if ownerID == "" {
		return ErrUnauthenticated
	}
	if err := e.begin(ref); err != nil {
		return err
	}
	if err := e.execute(ctx, ownerID, d); err != nil {
		e.setState(ref, StatePending)
		return err
	}
	e.setState(ref, StateExecuted)
	return nil
}

func (e *Executor) begin(ref Ref) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.states[ref] {
	case StateExecuting:
		return ErrAlreadyRunning
	case StateExecuted:
		return ErrAlreadyDone
	case StateDismissed:
		return ErrDismissed
	}
	e.states[ref] = StateExecuting
	return nil
}

func (e *Executor) setState(ref Ref, s State) {
	e.mu.Lock()
	e.states[ref] = s
	e.mu.Unlock()
}

func (e *Executor) execute(ctx context.Context, ownerID string, d Directive) error {
	action := Decode(d, e.Segments, e.Fallback, e.now())
	switch action.Kind {
	case KindCreateTask:
		return e.createTask(ctx, ownerID, action.Task)
	case KindAddRevenue:
		return e.addRevenue(ctx, ownerID, action.Revenue)
	case KindCreateProject:
		return e.createProject(ctx, ownerID, action.Project)
	case KindCreateNote:
		return ErrUnimplementedAction
	default:
		return fmt.Errorf("no executor for action type %s", action.Kind)
	}
}

func (e *Executor) createTask(ctx context.Context, ownerID string, p *TaskParams) error {
	now := e.now().UTC().Format(time.RFC3339)
	t := domain.Task{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		Title:       p.Title,
		Description: p.Description,
		Status:      "todo",
		Priority:    p.Priority,
		DueDate:     p.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "directive.executed", ownerID, "task", t.ID, events.EventPayload{"action": string(KindCreateTask), "title": t.Title}); err != nil {
		return err
	}
	return tx.Commit()
}

func (e *Executor) addRevenue(ctx context.Context, ownerID string, p *RevenueParams) error {
	now := e.now().UTC().Format(time.RFC3339)
	t := domain.Transaction{
		ID:               uuid.New().String(),
		OwnerID:          ownerID,
		Type:             "income",
		Amount:           p.Amount,
		Segment:          p.Segment,
		Description:      p.Description,
		Date:             p.Date,
		CountsTowardGoal: true,
		CreatedAt:        now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertTransaction(ctx, tx, t); err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "directive.executed", ownerID, "transaction", t.ID, events.EventPayload{"action": string(KindAddRevenue), "amount": t.Amount, "segment": t.Segment}); err != nil {
		return err
	}
	return tx.Commit()
}

func (e *Executor) createProject(ctx context.Context, ownerID string, p *ProjectParams) error {
	now := e.now().UTC().Format(time.RFC3339)
	proj := domain.Project{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		Title:       p.Title,
		Segment:     p.Segment,
		Status:      "planned",
		Progress:    0,
		Description: p.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertProject(ctx, tx, proj); err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "directive.executed", ownerID, "project", proj.ID, events.EventPayload{"action": string(KindCreateProject), "title": proj.Title}); err != nil {
		return err
	}
	return tx.Commit()
}
