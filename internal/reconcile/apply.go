package reconcile

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"novadream/internal/domain"
	"novadream/internal/events"
	"novadream/internal/repo"
)

// Applier commits approved diffs against the mission store.
type Applier struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Now    func() time.Time
}

// Result reports what actually committed, not what was requested.
type Result struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

func (a Applier) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// Apply writes the create and update diffs for one project; identical diffs
// are never written. Creates go in one batch transaction with order_index
// values appended after the project's current maximum; updates are
// independent per-row writes so an insert failure does not block them. The
// first error is returned alongside the counts committed so far.
func (a Applier) Apply(ctx context.Context, ownerID, projectID string, diffs []Diff) (Result, error) {
	var res Result
	now := a.now().UTC().Format(time.RFC3339)

	var creates []Diff
	var updates []Diff
	for _, d := range diffs {
		switch d.Class {
		case ClassCreate:
			creates = append(creates, d)
		case ClassUpdate:
			updates = append(updates, d)
		}
	}

	var insertErr error
	if len(creates) > 0 {
		n, err := a.applyCreates(ctx, ownerID, projectID, creates, now)
		res.Created = n
		insertErr = err
	}

	for _, d := range updates {
		if err := a.applyUpdate(ctx, ownerID, d, now); err != nil {
			if insertErr != nil {
				return res, fmt.Errorf("insert batch: %v; update %s: %w", insertErr, d.MissionID, err)
			}
			return res, fmt.Errorf("update mission %s: %w", d.MissionID, err)
		}
		res.Updated++
	}

	if insertErr != nil {
		return res, fmt.Errorf("insert batch: %w", insertErr)
	}
	return res, nil
}

func (a Applier) applyCreates(ctx context.Context, ownerID, projectID string, creates []Diff, now string) (int, error) {
	max, err := a.Repo.MaxOrderIndex(ctx, ownerID, projectID)
	if err != nil {
		return 0, err
	}
	tx, err := a.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	next := max + 1
	for i, d := range creates {
		m := domain.Mission{
			ID:                uuid.New().String(),
			OwnerID:           ownerID,
			ProjectID:         projectID,
			Title:             d.Proposed.Title,
			Description:       d.Proposed.Description,
			Status:            "pending",
			OrderIndex:        next + i,
			EstimatedDuration: d.Proposed.EstimatedDuration,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := a.Repo.InsertMission(ctx, tx, m); err != nil {
			return 0, err
		}
	}
	if err := a.Events.Append(ctx, tx, "roadmap.applied", ownerID, "project", projectID, events.EventPayload{"created": len(creates)}); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(creates), nil
}

func (a Applier) applyUpdate(ctx context.Context, ownerID string, d Diff, now string) error {
	u := repo.MissionFieldUpdate{UpdatedAt: now}
	if d.Changes.Description != nil {
		u.Description = d.Changes.Description
	}
	if d.Changes.DurationChanged {
		u.EstimatedDuration = d.Changes.Duration
		u.DurationSet = true
	}
	return a.Repo.UpdateMissionFields(ctx, ownerID, d.MissionID, u)
}
