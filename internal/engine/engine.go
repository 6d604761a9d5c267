package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"novadream/internal/blob"
	"novadream/internal/config"
	"novadream/internal/directive"
	"novadream/internal/domain"
	"novadream/internal/events"
	"novadream/internal/reconcile"
	"novadream/internal/repo"
)

// Completer produces an assistant reply for a conversation. Satisfied by
// llm.Client; stubbed in tests.
type Completer interface {
	Complete(ctx context.Context, history []domain.ChatMessage, userMessage string) (string, error)
}

type Engine struct {
	DB        *sql.DB
	Repo      repo.Repo
	Events    events.Writer
	Config    *config.Config
	Assistant Completer
	Blobs     *blob.Store
	Executor  *directive.Executor
	Now       func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	r := repo.Repo{DB: db}
	w := events.Writer{DB: db}
	return Engine{
		DB:       db,
		Repo:     r,
		Events:   w,
		Config:   cfg,
		Executor: directive.NewExecutor(db, r, w, cfg.ValidSegment, config.FallbackSegment),
		Now:      time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Applier returns the reconciliation applier sharing the engine's store.
func (e Engine) Applier() reconcile.Applier {
	return reconcile.Applier{DB: e.DB, Repo: e.Repo, Events: e.Events, Now: e.Now}
}

// --- projects ---

type ProjectCreateOptions struct {
	OwnerID     string
	Title       string
	Segment     string
	Description string
	Deadline    string
}

func (e Engine) CreateProject(ctx context.Context, opts ProjectCreateOptions) (domain.Project, error) {
	if opts.OwnerID == "" {
		return domain.Project{}, errors.New("owner is required")
	}
	if opts.Title == "" {
		return domain.Project{}, errors.New("title is required")
	}
	segment := opts.Segment
	if !e.Config.ValidSegment(segment) {
		segment = config.FallbackSegment
	}
	now := e.now().UTC().Format(time.RFC3339)
	p := domain.Project{
		ID:          uuid.New().String(),
		OwnerID:     opts.OwnerID,
		Title:       opts.Title,
		Segment:     segment,
		Status:      "planned",
		Progress:    0,
		Description: opts.Description,
		Deadline:    optionalString(opts.Deadline),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertProject(ctx, tx, p); err != nil {
		return domain.Project{}, fmt.Errorf("insert project: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "project.created", p.OwnerID, "project", p.ID, events.EventPayload{"title": p.Title, "segment": p.Segment}); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

// --- missions ---

type MissionCreateOptions struct {
	OwnerID           string
	ProjectID         string
	Title             string
	Description       string
	Deadline          string
	EstimatedDuration *string
}

// CreateMission appends a mission after the project's current maximum
// order_index; the first mission of a project gets index 0.
func (e Engine) CreateMission(ctx context.Context, opts MissionCreateOptions) (domain.Mission, error) {
	if opts.OwnerID == "" {
		return domain.Mission{}, errors.New("owner is required")
	}
	if opts.Title == "" {
		return domain.Mission{}, errors.New("title is required")
	}
	if _, err := e.Repo.GetProject(ctx, opts.OwnerID, opts.ProjectID); err != nil {
		return domain.Mission{}, err
	}
	max, err := e.Repo.MaxOrderIndex(ctx, opts.OwnerID, opts.ProjectID)
	if err != nil {
		return domain.Mission{}, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	m := domain.Mission{
		ID:                uuid.New().String(),
		OwnerID:           opts.OwnerID,
		ProjectID:         opts.ProjectID,
		Title:             opts.Title,
		Description:       opts.Description,
		Status:            "pending",
		OrderIndex:        max + 1,
		Deadline:          optionalString(opts.Deadline),
		EstimatedDuration: opts.EstimatedDuration,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Mission{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertMission(ctx, tx, m); err != nil {
		return domain.Mission{}, fmt.Errorf("insert mission: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "mission.created", m.OwnerID, "mission", m.ID, events.EventPayload{"title": m.Title, "order_index": m.OrderIndex}); err != nil {
		return domain.Mission{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Mission{}, err
	}
	return m, nil
}

func ensureMissionTransition(oldStatus, newStatus string) error {
	switch oldStatus {
	case "pending":
		if newStatus == "in_progress" {
			return nil
		}
	case "in_progress":
		if newStatus == "completed" || newStatus == "pending" {
			return nil
		}
	case "completed":
		if newStatus == "in_progress" {
			return nil
		}
	}
	return fmt.Errorf("invalid mission status transition %s -> %s", oldStatus, newStatus)
}

type MissionUpdateOptions struct {
	OwnerID     string
	ID          string
	Status      string
	Title       *string
	Description *string
	Deadline    *string
}

func (e Engine) UpdateMission(ctx context.Context, opts MissionUpdateOptions) (domain.Mission, error) {
	m, err := e.Repo.GetMission(ctx, opts.OwnerID, opts.ID)
	if err != nil {
		return m, err
	}
	u := repo.MissionFieldUpdate{UpdatedAt: e.now().UTC().Format(time.RFC3339)}
	if opts.Status != "" && opts.Status != m.Status {
		if err := ensureMissionTransition(m.Status, opts.Status); err != nil {
			return m, err
		}
		u.Status = &opts.Status
	}
	u.Title = opts.Title
	u.Description = opts.Description
	u.Deadline = opts.Deadline
	if err := e.Repo.UpdateMissionFields(ctx, opts.OwnerID, opts.ID, u); err != nil {
		return m, err
	}
	updated, err := e.Repo.GetMission(ctx, opts.OwnerID, opts.ID)
	if err != nil {
		return updated, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return updated, err
	}
	defer tx.Rollback()
	if err := e.Events.Append(ctx, tx, "mission.updated", opts.OwnerID, "mission", m.ID, events.EventPayload{"from_status": m.Status, "to_status": updated.Status}); err != nil {
		return updated, err
	}
	return updated, tx.Commit()
}

// --- tasks, transactions, notes ---

type TaskCreateOptions struct {
	OwnerID     string
	ProjectID   string
	MissionID   string
	Title       string
	Description string
	Priority    string
	DueDate     string
}

func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	if opts.OwnerID == "" {
		return domain.Task{}, errors.New("owner is required")
	}
	if opts.Title == "" {
		return domain.Task{}, errors.New("title is required")
	}
	priority := opts.Priority
	switch priority {
	case "low", "medium", "high":
	case "":
		priority = "medium"
	default:
		return domain.Task{}, fmt.Errorf("invalid priority %s", opts.Priority)
	}
	now := e.now().UTC().Format(time.RFC3339)
	t := domain.Task{
		ID:          uuid.New().String(),
		OwnerID:     opts.OwnerID,
		ProjectID:   optionalString(opts.ProjectID),
		MissionID:   optionalString(opts.MissionID),
		Title:       opts.Title,
		Description: optionalString(opts.Description),
		Status:      "todo",
		Priority:    priority,
		DueDate:     optionalString(opts.DueDate),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
		return domain.Task{}, fmt.Errorf("insert task: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "task.created", t.OwnerID, "task", t.ID, events.EventPayload{"title": t.Title}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

type TaskUpdateOptions struct {
	OwnerID     string
	ID          string
	Status      *string
	Priority    *string
	Title       *string
	Description *string
	DueDate     *string
	TimeSpent   *int
}

func (e Engine) UpdateTask(ctx context.Context, opts TaskUpdateOptions) (domain.Task, error) {
	t, err := e.Repo.GetTask(ctx, opts.OwnerID, opts.ID)
	if err != nil {
		return t, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	if opts.Status != nil {
		switch *opts.Status {
		case "todo", "doing", "done":
		default:
			return t, fmt.Errorf("invalid status %s", *opts.Status)
		}
		if *opts.Status == "done" && t.Status != "done" {
			t.CompletedAt = &now
		}
		if *opts.Status != "done" {
			t.CompletedAt = nil
		}
		t.Status = *opts.Status
	}
	if opts.Priority != nil {
		switch *opts.Priority {
		case "low", "medium", "high":
		default:
			return t, fmt.Errorf("invalid priority %s", *opts.Priority)
		}
		t.Priority = *opts.Priority
	}
	if opts.Title != nil {
		t.Title = *opts.Title
	}
	if opts.Description != nil {
		t.Description = opts.Description
	}
	if opts.DueDate != nil {
		t.DueDate = opts.DueDate
	}
	if opts.TimeSpent != nil {
		t.TimeSpent = *opts.TimeSpent
	}
	t.UpdatedAt = now
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return t, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
		return t, err
	}
	if err := e.Events.Append(ctx, tx, "task.updated", t.OwnerID, "task", t.ID, events.EventPayload{"status": t.Status}); err != nil {
		return t, err
	}
	return t, tx.Commit()
}

type TransactionCreateOptions struct {
	OwnerID     string
	Type        string
	Amount      float64
	Segment     string
	Description string
	Date        string
}

func (e Engine) CreateTransaction(ctx context.Context, opts TransactionCreateOptions) (domain.Transaction, error) {
	if opts.OwnerID == "" {
		return domain.Transaction{}, errors.New("owner is required")
	}
	txType := opts.Type
	if txType == "" {
		txType = "income"
	}
	if txType != "income" && txType != "expense" {
		return domain.Transaction{}, fmt.Errorf("invalid transaction type %s", opts.Type)
	}
	segment := opts.Segment
	if !e.Config.ValidSegment(segment) {
		segment = config.FallbackSegment
	}
	date := opts.Date
	if date == "" {
		date = e.now().UTC().Format("2006-01-02")
	}
	now := e.now().UTC().Format(time.RFC3339)
	t := domain.Transaction{
		ID:               uuid.New().String(),
		OwnerID:          opts.OwnerID,
		Type:             txType,
		Amount:           opts.Amount,
		Segment:          segment,
		Description:      opts.Description,
		Date:             date,
		CountsTowardGoal: txType == "income",
		CreatedAt:        now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Transaction{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertTransaction(ctx, tx, t); err != nil {
		return domain.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "transaction.created", t.OwnerID, "transaction", t.ID, events.EventPayload{"amount": t.Amount, "type": t.Type}); err != nil {
		return domain.Transaction{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Transaction{}, err
	}
	return t, nil
}

func (e Engine) CreateNote(ctx context.Context, ownerID, title, content string) (domain.Note, error) {
	if ownerID == "" {
		return domain.Note{}, errors.New("owner is required")
	}
	if title == "" {
		return domain.Note{}, errors.New("title is required")
	}
	now := e.now().UTC().Format(time.RFC3339)
	n := domain.Note{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Title:     title,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Note{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertNote(ctx, tx, n); err != nil {
		return domain.Note{}, fmt.Errorf("insert note: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "note.created", n.OwnerID, "note", n.ID, events.EventPayload{"title": n.Title}); err != nil {
		return domain.Note{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Note{}, err
	}
	return n, nil
}

// StatusSummary groups mission and task counts by status. Mission counts are
// scoped to a project; task counts cover everything the owner has.
type StatusSummary struct {
	Missions map[string]int
	Tasks    map[string]int
}

// StatusSummary returns the owner's task counts per status and, when a project
// is given, that project's mission counts per status.
func (e Engine) StatusSummary(ctx context.Context, ownerID, projectID string) (StatusSummary, error) {
	if ownerID == "" {
		return StatusSummary{}, errors.New("owner is required")
	}
	var out StatusSummary
	if projectID != "" {
		if _, err := e.Repo.GetProject(ctx, ownerID, projectID); err != nil {
			return out, err
		}
		missions, err := e.Repo.CountMissionsByStatus(ctx, ownerID, projectID)
		if err != nil {
			return out, err
		}
		out.Missions = missions
	}
	tasks, err := e.Repo.CountTasksByStatus(ctx, ownerID)
	if err != nil {
		return out, err
	}
	out.Tasks = tasks
	return out, nil
}

// CreateAPIKey generates a key, stores its hash and returns the plain key
// exactly once.
func (e Engine) CreateAPIKey(ctx context.Context, ownerID, name string) (string, domain.APIKey, error) {
	if ownerID == "" {
		return "", domain.APIKey{}, errors.New("owner is required")
	}
	if name == "" {
		return "", domain.APIKey{}, errors.New("name is required")
	}
	plain := "nvd_" + strings.ReplaceAll(uuid.New().String(), "-", "")
	key := domain.APIKey{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Name:      name,
		KeyHash:   repo.HashAPIKey(plain),
		CreatedAt: e.now().UTC().Format(time.RFC3339),
	}
	if err := e.Repo.InsertAPIKey(ctx, nil, key); err != nil {
		return "", domain.APIKey{}, err
	}
	return plain, key, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
