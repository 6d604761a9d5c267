package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"novadream/internal/domain"
	"novadream/internal/reconcile"
)

// RoadmapPreview classifies proposed missions against the project's stored
// ones. Pure comparison; nothing is written.
func (e Engine) RoadmapPreview(ctx context.Context, ownerID, projectID string, proposals []reconcile.Proposed) ([]reconcile.Diff, reconcile.Summary, error) {
	if _, err := e.Repo.GetProject(ctx, ownerID, projectID); err != nil {
		return nil, reconcile.Summary{}, err
	}
	stored, err := e.Repo.ListMissions(ctx, ownerID, projectID)
	if err != nil {
		return nil, reconcile.Summary{}, err
	}
	diffs := reconcile.Classify(proposals, stored, e.Config.Threshold())
	return diffs, reconcile.Summarize(diffs), nil
}

// RoadmapApplyResult carries the committed counts, the rendered report and,
// when a blob store is wired, where the report was filed. ReportWarning is set
// when the missions committed but the report could not be stored or filed.
type RoadmapApplyResult struct {
	Result        reconcile.Result
	Report        string
	ReportPath    string
	ReportWarning string
}

// RoadmapApply commits the approved diffs and files a markdown report. The
// report always reflects what actually committed, so it is generated even
// when the apply partially fails; the apply error is still returned.
func (e Engine) RoadmapApply(ctx context.Context, ownerID, projectID string, diffs []reconcile.Diff) (RoadmapApplyResult, error) {
	if ownerID == "" {
		return RoadmapApplyResult{}, errors.New("owner is required")
	}
	project, err := e.Repo.GetProject(ctx, ownerID, projectID)
	if err != nil {
		return RoadmapApplyResult{}, err
	}
	res, applyErr := e.Applier().Apply(ctx, ownerID, projectID, diffs)
	report := reconcile.Report(project.Title, diffs, res)

	out := RoadmapApplyResult{Result: res, Report: report}
	if e.Blobs != nil {
		path := fmt.Sprintf("reports/%s/%s.md", projectID, e.now().UTC().Format("20060102T150405"))
		if err := e.Blobs.Put(path, []byte(report)); err != nil {
			out.ReportWarning = fmt.Sprintf("report not stored: %v", err)
		} else {
			out.ReportPath = path
			if err := e.fileReportDocument(ctx, ownerID, path, len(report)); err != nil {
				out.ReportWarning = fmt.Sprintf("report stored but not filed as a document: %v", err)
			}
		}
	}
	return out, applyErr
}

func (e Engine) fileReportDocument(ctx context.Context, ownerID, path string, size int) error {
	now := e.now().UTC().Format(time.RFC3339)
	d := domain.Document{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Name:      "Roadmap import report",
		Path:      path,
		MimeType:  "text/markdown",
		SizeBytes: int64(size),
		CreatedAt: now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertDocument(ctx, tx, d); err != nil {
		return err
	}
	return tx.Commit()
}

// UploadDocument stores raw bytes in the blob store and records the row.
func (e Engine) UploadDocument(ctx context.Context, ownerID, name, mimeType string, data []byte) (domain.Document, error) {
	if ownerID == "" {
		return domain.Document{}, errors.New("owner is required")
	}
	if name == "" {
		return domain.Document{}, errors.New("name is required")
	}
	if e.Blobs == nil {
		return domain.Document{}, errors.New("blob store not configured")
	}
	id := uuid.New().String()
	path := fmt.Sprintf("documents/%s/%s", ownerID, id)
	if err := e.Blobs.Put(path, data); err != nil {
		return domain.Document{}, fmt.Errorf("store document: %w", err)
	}
	now := e.now().UTC().Format(time.RFC3339)
	d := domain.Document{
		ID:        id,
		OwnerID:   ownerID,
		Name:      name,
		Path:      path,
		MimeType:  mimeType,
		SizeBytes: int64(len(data)),
		CreatedAt: now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Document{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertDocument(ctx, tx, d); err != nil {
		return domain.Document{}, fmt.Errorf("insert document: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "document.uploaded", ownerID, "document", d.ID, map[string]any{"name": d.Name, "size": d.SizeBytes}); err != nil {
		return domain.Document{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Document{}, err
	}
	return d, nil
}

// DeleteDocument removes the row and its blob.
func (e Engine) DeleteDocument(ctx context.Context, ownerID, id string) error {
	d, err := e.Repo.GetDocument(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if err := e.Repo.DeleteDocument(ctx, ownerID, id); err != nil {
		return err
	}
	if e.Blobs != nil {
		return e.Blobs.Delete(d.Path)
	}
	return nil
}
