package reconcile_test

import (
	"strings"
	"testing"

	"novadream/internal/domain"
	"novadream/internal/reconcile"
)

func strPtr(s string) *string { return &s }

func mission(id, title string) domain.Mission {
	return domain.Mission{ID: id, Title: title, Status: "pending"}
}

func TestClassifyOneDiffPerProposal(t *testing.T) {
	stored := []domain.Mission{mission("m1", "Build landing page")}
	proposals := []reconcile.Proposed{
		{Title: "Build landing page"},
		{Title: "Ship newsletter"},
		{Title: "Record demo video"},
	}
	diffs := reconcile.Classify(proposals, stored, 0.85)
	if len(diffs) != len(proposals) {
		t.Fatalf("diffs = %d, want %d", len(diffs), len(proposals))
	}
	s := reconcile.Summarize(diffs)
	if s.Total != 3 || s.Create+s.Update+s.Identical != s.Total {
		t.Fatalf("summary = %+v", s)
	}
	if diffs[0].Class != reconcile.ClassIdentical {
		t.Fatalf("diffs[0] = %+v", diffs[0])
	}
	if diffs[1].Class != reconcile.ClassCreate || diffs[2].Class != reconcile.ClassCreate {
		t.Fatalf("unmatched proposals should be creates: %+v", diffs[1:])
	}
}

func TestClassifyExactMatchBeatsFuzzy(t *testing.T) {
	stored := []domain.Mission{
		mission("m1", "launch the mvp now"),
		mission("m2", "Launch the MVP!"),
	}
	diffs := reconcile.Classify([]reconcile.Proposed{{Title: "launch the mvp"}}, stored, 0.85)
	if diffs[0].MissionID != "m2" {
		t.Fatalf("exact normalized match should win, matched %s", diffs[0].MissionID)
	}
	if diffs[0].Score != 1.0 {
		t.Fatalf("score = %v", diffs[0].Score)
	}
}

func TestClassifyThresholdBoundary(t *testing.T) {
	// 17 of 20 runes match: score 0.85 exactly.
	stored := []domain.Mission{mission("m1", "aaaaaaaaaaaaaaaaaaaa")}
	at := []reconcile.Proposed{{Title: "aaaaaaaaaaaaaaaaabbb"}}
	diffs := reconcile.Classify(at, stored, 0.85)
	if diffs[0].Class == reconcile.ClassCreate {
		t.Fatalf("score exactly at threshold should match, got %+v", diffs[0])
	}
	// 16 of 20: score 0.80, below threshold.
	below := []reconcile.Proposed{{Title: "aaaaaaaaaaaaaaaabbbb"}}
	diffs = reconcile.Classify(below, stored, 0.85)
	if diffs[0].Class != reconcile.ClassCreate {
		t.Fatalf("score below threshold must not match, got %+v", diffs[0])
	}
}

func TestClassifyClaimsEachMissionOnce(t *testing.T) {
	stored := []domain.Mission{mission("m1", "write docs")}
	proposals := []reconcile.Proposed{
		{Title: "write docs"},
		{Title: "write docs"},
	}
	diffs := reconcile.Classify(proposals, stored, 0.85)
	if diffs[0].Class != reconcile.ClassIdentical || diffs[0].MissionID != "m1" {
		t.Fatalf("first proposal should claim the mission: %+v", diffs[0])
	}
	if diffs[1].Class != reconcile.ClassCreate {
		t.Fatalf("second proposal must not reuse a claimed mission: %+v", diffs[1])
	}
}

func TestFieldChangeAsymmetry(t *testing.T) {
	stored := []domain.Mission{{
		ID:                "m1",
		Title:             "design schema",
		Description:       "old words",
		EstimatedDuration: strPtr("2w"),
	}}

	// Empty proposed description is ignored; identical duration is no change.
	diffs := reconcile.Classify([]reconcile.Proposed{
		{Title: "design schema", Description: "", EstimatedDuration: strPtr("2w")},
	}, stored, 0.85)
	if diffs[0].Class != reconcile.ClassIdentical {
		t.Fatalf("empty description should not count as a change: %+v", diffs[0])
	}

	// Nil proposed duration against a stored one is a change to null.
	diffs = reconcile.Classify([]reconcile.Proposed{
		{Title: "design schema", EstimatedDuration: nil},
	}, stored, 0.85)
	d := diffs[0]
	if d.Class != reconcile.ClassUpdate || !d.Changes.DurationChanged || d.Changes.Duration != nil {
		t.Fatalf("nil vs set duration should be an update clearing it: %+v", d)
	}

	// Differing non-empty description is a change.
	diffs = reconcile.Classify([]reconcile.Proposed{
		{Title: "design schema", Description: "new words", EstimatedDuration: strPtr("2w")},
	}, stored, 0.85)
	d = diffs[0]
	if d.Class != reconcile.ClassUpdate || d.Changes.Description == nil || *d.Changes.Description != "new words" {
		t.Fatalf("description diff missing: %+v", d)
	}
	if d.Changes.DurationChanged {
		t.Fatalf("duration did not change: %+v", d.Changes)
	}
}

func TestReportSections(t *testing.T) {
	diffs := []reconcile.Diff{
		{Proposed: reconcile.Proposed{Title: "new one"}, Class: reconcile.ClassCreate},
		{Proposed: reconcile.Proposed{Title: "tweaked"}, Class: reconcile.ClassUpdate, MissionID: "m1", Score: 0.91},
		{Proposed: reconcile.Proposed{Title: "same"}, Class: reconcile.ClassIdentical, MissionID: "m2"},
	}
	out := reconcile.Report("Side Project", diffs, reconcile.Result{Created: 1, Updated: 1})
	for _, want := range []string{"Side Project", "new one", "tweaked", "same"} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
}
