package roadmap_test

import (
	"testing"

	"novadream/internal/roadmap"
)

func TestParseBulletsAndNumbers(t *testing.T) {
	text := `# Launch plan

- Build landing page
* Set up analytics
+ Write launch post
1. Email the waitlist
2) Ship it
`
	proposals := roadmap.Parse(text)
	want := []string{
		"Build landing page",
		"Set up analytics",
		"Write launch post",
		"Email the waitlist",
		"Ship it",
	}
	if len(proposals) != len(want) {
		t.Fatalf("proposals = %d, want %d", len(proposals), len(want))
	}
	for i, w := range want {
		if proposals[i].Title != w {
			t.Fatalf("proposal %d = %q, want %q", i, proposals[i].Title, w)
		}
	}
}

func TestParseDurationSuffix(t *testing.T) {
	proposals := roadmap.Parse("- Design the schema (~2w)\n- Implement sync (3 days)\n- No duration here\n")
	if len(proposals) != 3 {
		t.Fatalf("proposals = %d", len(proposals))
	}
	if proposals[0].Title != "Design the schema" || proposals[0].EstimatedDuration == nil || *proposals[0].EstimatedDuration != "2w" {
		t.Fatalf("proposal 0 = %+v", proposals[0])
	}
	if proposals[1].EstimatedDuration == nil || *proposals[1].EstimatedDuration != "3 days" {
		t.Fatalf("proposal 1 = %+v", proposals[1])
	}
	if proposals[2].EstimatedDuration != nil {
		t.Fatalf("proposal 2 = %+v", proposals[2])
	}
}

func TestParseIndentedDescription(t *testing.T) {
	text := "- Build landing page\n    Hero, pricing and FAQ sections.\n    Mobile first.\n- Next item\n"
	proposals := roadmap.Parse(text)
	if len(proposals) != 2 {
		t.Fatalf("proposals = %d", len(proposals))
	}
	if proposals[0].Description != "Hero, pricing and FAQ sections.\nMobile first." {
		t.Fatalf("description = %q", proposals[0].Description)
	}
	if proposals[1].Description != "" {
		t.Fatalf("second item should have no description: %+v", proposals[1])
	}
}

func TestParseIgnoresProse(t *testing.T) {
	text := "This roadmap covers Q2.\n\n- Only real item\n\nClosing remarks, not an item.\n"
	proposals := roadmap.Parse(text)
	if len(proposals) != 1 || proposals[0].Title != "Only real item" {
		t.Fatalf("proposals = %+v", proposals)
	}
}

func TestParseEmptyInput(t *testing.T) {
	if got := roadmap.Parse(""); len(got) != 0 {
		t.Fatalf("expected no proposals, got %+v", got)
	}
	if got := roadmap.Parse("just prose\nwith lines\n"); len(got) != 0 {
		t.Fatalf("expected no proposals, got %+v", got)
	}
}
