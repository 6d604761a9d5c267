package directive_test

import (
	"testing"
	"time"

	"novadream/internal/directive"
)

func TestParseSingleDirective(t *testing.T) {
	text := "Sure, I can do that.\n[[ACTION:CREATE_TASK|title=Buy milk|priority=high]]\nAnything else?"
	dirs := directive.Parse(text)
	if len(dirs) != 1 {
		t.Fatalf("expected 1 directive, got %d", len(dirs))
	}
	d := dirs[0]
	if d.RawType != "CREATE_TASK" {
		t.Fatalf("raw type = %q", d.RawType)
	}
	if d.Params["title"] != "Buy milk" || d.Params["priority"] != "high" {
		t.Fatalf("params = %v", d.Params)
	}
	if !d.Recognized() {
		t.Fatal("CREATE_TASK should be recognized")
	}
}

func TestParsePreservesOrder(t *testing.T) {
	text := "[[ACTION:ADD_REVENUE|amount=100]] then [[ACTION:CREATE_TASK|title=a]] then [[ACTION:CREATE_PROJECT|title=b]]"
	dirs := directive.Parse(text)
	if len(dirs) != 3 {
		t.Fatalf("expected 3 directives, got %d", len(dirs))
	}
	want := []string{"ADD_REVENUE", "CREATE_TASK", "CREATE_PROJECT"}
	for i, d := range dirs {
		if d.RawType != want[i] {
			t.Fatalf("directive %d = %s, want %s", i, d.RawType, want[i])
		}
	}
}

func TestParseSkipsMalformed(t *testing.T) {
	cases := []string{
		"[[ACTION:]]",
		"[[ACTION:CREATE TASK|title=x]]",
		"[ACTION:CREATE_TASK|title=x]]",
		"[[ACTION:CREATE_TASK|title=x]",
		"plain text with no markers",
	}
	for _, text := range cases {
		if dirs := directive.Parse(text); len(dirs) != 0 {
			t.Fatalf("%q: expected no directives, got %d", text, len(dirs))
		}
	}
}

func TestParseParamEdgeCases(t *testing.T) {
	dirs := directive.Parse("[[ACTION:CREATE_TASK|title=first|title=second|noequals|=novalue|empty=| spaced = v ]]")
	if len(dirs) != 1 {
		t.Fatalf("expected 1 directive, got %d", len(dirs))
	}
	p := dirs[0].Params
	if p["title"] != "second" {
		t.Fatalf("duplicate key should keep last value, got %q", p["title"])
	}
	if _, ok := p["empty"]; ok {
		t.Fatal("empty value should be dropped")
	}
	if p["spaced"] != "v" {
		t.Fatalf("keys and values should be trimmed, got %v", p)
	}
	if len(p) != 2 {
		t.Fatalf("params = %v", p)
	}
}

func TestValueCannotContainCloseBracket(t *testing.T) {
	// The first ] ends the match; the grammar has no escaping.
	dirs := directive.Parse("[[ACTION:CREATE_TASK|title=a]b]]")
	if len(dirs) != 0 {
		t.Fatalf("expected no directives, got %v", dirs)
	}
}

func TestStrip(t *testing.T) {
	text := "Done!\n[[ACTION:CREATE_TASK|title=Buy milk]]\nSee the card below."
	got := directive.Strip(text)
	want := "Done!\n\nSee the card below."
	if got != want {
		t.Fatalf("Strip = %q, want %q", got, want)
	}
	if directive.Strip(got) != got {
		t.Fatal("stripping twice should be a no-op")
	}
}

func TestUnknownTypeFallsBackToTask(t *testing.T) {
	dirs := directive.Parse("[[ACTION:LAUNCH_ROCKET|title=x]]")
	if len(dirs) != 1 {
		t.Fatalf("expected 1 directive, got %d", len(dirs))
	}
	d := dirs[0]
	if d.Recognized() {
		t.Fatal("LAUNCH_ROCKET should not be recognized")
	}
	if d.Kind() != directive.KindCreateTask {
		t.Fatalf("unknown type should fall back to %s, got %s", directive.KindCreateTask, d.Kind())
	}
	if d.RawType != "LAUNCH_ROCKET" {
		t.Fatalf("raw type must be preserved, got %s", d.RawType)
	}
}

func validSegment(s string) bool { return s == "saas" || s == "other" }

func TestDecodeRevenueDefaults(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	dirs := directive.Parse("[[ACTION:ADD_REVENUE|amount=not-a-number|segment=crypto]]")
	action := directive.Decode(dirs[0], validSegment, "other", now)
	if action.Kind != directive.KindAddRevenue || action.Revenue == nil {
		t.Fatalf("action = %+v", action)
	}
	if action.Revenue.Amount != 0 {
		t.Fatalf("unparsable amount should default to 0, got %v", action.Revenue.Amount)
	}
	if action.Revenue.Segment != "other" {
		t.Fatalf("unknown segment should fall back, got %q", action.Revenue.Segment)
	}
	if action.Revenue.Date != "2025-03-14" {
		t.Fatalf("missing date should default to today, got %q", action.Revenue.Date)
	}
}

func TestDecodeTaskDefaults(t *testing.T) {
	dirs := directive.Parse("[[ACTION:CREATE_TASK|priority=urgent]]")
	action := directive.Decode(dirs[0], validSegment, "other", time.Now())
	if action.Task == nil {
		t.Fatalf("action = %+v", action)
	}
	if action.Task.Title != "New task" {
		t.Fatalf("title default, got %q", action.Task.Title)
	}
	if action.Task.Priority != "medium" {
		t.Fatalf("invalid priority should default to medium, got %q", action.Task.Priority)
	}
	if action.Task.Description != nil || action.Task.DueDate != nil {
		t.Fatalf("absent params should stay nil: %+v", action.Task)
	}
}
