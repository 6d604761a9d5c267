package reconcile

import (
	"strings"

	"novadream/internal/domain"
)

// Proposed is one candidate mission parsed from an external roadmap. It lives
// only for the duration of an import.
type Proposed struct {
	Title             string  `json:"title"`
	Description       string  `json:"description,omitempty"`
	EstimatedDuration *string `json:"estimated_duration,omitempty"`
}

type Classification string

const (
	ClassCreate    Classification = "create"
	ClassUpdate    Classification = "update"
	ClassIdentical Classification = "identical"
)

// ChangeSet lists the fields an update would write. Description is recorded
// only when the proposed value is non-empty and differs; estimated duration is
// recorded on any strict difference, including null against non-null.
type ChangeSet struct {
	Description     *string `json:"description,omitempty"`
	Duration        *string `json:"estimated_duration,omitempty"`
	DurationChanged bool    `json:"duration_changed,omitempty"`
}

func (c ChangeSet) Empty() bool {
	return c.Description == nil && !c.DurationChanged
}

// Diff is the reconciliation verdict for one proposed mission.
type Diff struct {
	Proposed  Proposed       `json:"proposed"`
	Class     Classification `json:"classification"`
	MissionID string         `json:"mission_id,omitempty"`
	Score     float64        `json:"score,omitempty"`
	Changes   ChangeSet      `json:"changes,omitempty"`
}

// match finds the stored mission a proposal refers to. Exact normalized-title
// equality wins immediately; otherwise the highest similarity at or above the
// threshold wins, first encountered on ties. claimed excludes missions already
// taken by an earlier proposal.
func match(p Proposed, stored []domain.Mission, threshold float64, claimed map[string]bool) (int, float64, bool) {
	normalized := NormalizeTitle(p.Title)
	for i, m := range stored {
		if claimed[m.ID] {
			continue
		}
		if NormalizeTitle(m.Title) == normalized {
			return i, 1.0, true
		}
	}
	bestIdx := -1
	bestScore := 0.0
	for i, m := range stored {
		if claimed[m.ID] {
			continue
		}
		score := Similarity(p.Title, m.Title)
		if score >= threshold && score > bestScore {
			bestIdx = i
			bestScore = score
		}
	}
	if bestIdx < 0 {
		return 0, 0, false
	}
	return bestIdx, bestScore, true
}

// Classify produces exactly one diff per proposal, in input order. A stored
// mission is the target of at most one diff.
func Classify(proposals []Proposed, stored []domain.Mission, threshold float64) []Diff {
	claimed := make(map[string]bool, len(stored))
	diffs := make([]Diff, 0, len(proposals))
	for _, p := range proposals {
		idx, score, ok := match(p, stored, threshold, claimed)
		if !ok {
			diffs = append(diffs, Diff{Proposed: p, Class: ClassCreate})
			continue
		}
		m := stored[idx]
		claimed[m.ID] = true
		changes := fieldChanges(p, m)
		class := ClassIdentical
		if !changes.Empty() {
			class = ClassUpdate
		}
		diffs = append(diffs, Diff{
			Proposed:  p,
			Class:     class,
			MissionID: m.ID,
			Score:     score,
			Changes:   changes,
		})
	}
	return diffs
}

// fieldChanges compares a matched pair. Descriptions are compared trimmed and
// empty proposed descriptions are ignored; durations are compared strictly.
// The asymmetry is deliberate.
func fieldChanges(p Proposed, m domain.Mission) ChangeSet {
	var c ChangeSet
	proposedDesc := strings.TrimSpace(p.Description)
	if proposedDesc != "" && proposedDesc != strings.TrimSpace(m.Description) {
		c.Description = &proposedDesc
	}
	if !equalDuration(p.EstimatedDuration, m.EstimatedDuration) {
		c.Duration = p.EstimatedDuration
		c.DurationChanged = true
	}
	return c
}

func equalDuration(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Summary aggregates a diff list in a single pass.
// Create + Update + Identical always equals Total.
type Summary struct {
	Create    int `json:"create"`
	Update    int `json:"update"`
	Identical int `json:"identical"`
	Total     int `json:"total"`
}

func Summarize(diffs []Diff) Summary {
	var s Summary
	for _, d := range diffs {
		switch d.Class {
		case ClassCreate:
			s.Create++
		case ClassUpdate:
			s.Update++
		case ClassIdentical:
			s.Identical++
		}
		s.Total++
	}
	return s
}
