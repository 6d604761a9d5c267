package directive

import (
	"strconv"
	"time"
)

// Action is the validated form of a directive: exactly one of the per-kind
// parameter structs is set, matching Kind. Decoding applies the per-type
// defaults so the executor never touches the raw string map.
type Action struct {
	Kind    Kind
	Task    *TaskParams
	Revenue *RevenueParams
	Project *ProjectParams
	Note    *NoteParams
}

type TaskParams struct {
	Title       string
	Description *string
	Priority    string
	DueDate     *string
}

type RevenueParams struct {
	Amount      float64
	Segment     string
	Description string
	Date        string
}

type ProjectParams struct {
	Title       string
	Segment     string
	Description string
}

type NoteParams struct {
	Title   string
	Content string
}

const (
	defaultTaskTitle    = "New task"
	defaultProjectTitle = "New project"
	defaultNoteTitle    = "New note"
)

// SegmentValidator reports whether a segment name is in the configured catalog.
type SegmentValidator func(segment string) bool

// Decode builds the typed Action for a directive. validSegment guards the
// segment enumeration ("other" is substituted for anything unrecognized);
// now supplies the default transaction date.
func Decode(d Directive, validSegment SegmentValidator, fallbackSegment string, now time.Time) Action {
	p := d.Params
	switch d.Kind() {
	case KindAddRevenue:
		amount := 0.0
		if v, err := strconv.ParseFloat(p["amount"], 64); err == nil {
			amount = v
		}
		date := p["date"]
		if date == "" {
			date = now.UTC().Format("2006-01-02")
		}
		return Action{Kind: KindAddRevenue, Revenue: &RevenueParams{
			Amount:      amount,
			Segment:     checkSegment(p["segment"], validSegment, fallbackSegment),
			Description: p["description"],
			Date:        date,
		}}
	case KindCreateProject:
		title := p["title"]
		if title == "" {
			title = defaultProjectTitle
		}
		return Action{Kind: KindCreateProject, Project: &ProjectParams{
			Title:       title,
			Segment:     checkSegment(p["segment"], validSegment, fallbackSegment),
			Description: p["description"],
		}}
	case KindCreateNote:
		title := p["title"]
		if title == "" {
			title = defaultNoteTitle
		}
		return Action{Kind: KindCreateNote, Note: &NoteParams{
			Title:   title,
			Content: p["content"],
		}}
	default:
		// CREATE_TASK, and the renderer fallback for unrecognized tokens.
		title := p["title"]
		if title == "" {
			title = defaultTaskTitle
		}
		priority := p["priority"]
		switch priority {
		case "low", "medium", "high":
		default:
			priority = "medium"
		}
		t := &TaskParams{Title: title, Priority: priority}
		if v, ok := p["description"]; ok {
			t.Description = &v
		}
		if v, ok := p["date"]; ok {
			t.DueDate = &v
		}
		return Action{Kind: KindCreateTask, Task: t}
	}
}

func checkSegment(segment string, valid SegmentValidator, fallback string) string {
	if segment != "" && valid != nil && valid(segment) {
		return segment
	}
	return fallback
}
