package reconcile

import (
	"fmt"
	"strings"
)

// Report renders a markdown summary of a reconciliation run. Counts come from
// the apply result, so a partially failed apply reports what committed.
func Report(projectTitle string, diffs []Diff, res Result) string {
	s := Summarize(diffs)
	var b strings.Builder
	fmt.Fprintf(&b, "# Roadmap import: %s\n\n", projectTitle)
	fmt.Fprintf(&b, "Proposed %d missions: %d new, %d changed, %d unchanged.\n\n", s.Total, s.Create, s.Update, s.Identical)
	fmt.Fprintf(&b, "Applied: %d created, %d updated.\n", res.Created, res.Updated)

	writeSection := func(title string, class Classification, line func(Diff) string) {
		var lines []string
		for _, d := range diffs {
			if d.Class == class {
				lines = append(lines, line(d))
			}
		}
		if len(lines) == 0 {
			return
		}
		fmt.Fprintf(&b, "\n## %s\n\n", title)
		for _, l := range lines {
			fmt.Fprintf(&b, "- %s\n", l)
		}
	}

	writeSection("Created", ClassCreate, func(d Diff) string {
		if d.Proposed.EstimatedDuration != nil {
			return fmt.Sprintf("%s (~%s)", d.Proposed.Title, *d.Proposed.EstimatedDuration)
		}
		return d.Proposed.Title
	})
	writeSection("Updated", ClassUpdate, func(d Diff) string {
		var fields []string
		if d.Changes.Description != nil {
			fields = append(fields, "description")
		}
		if d.Changes.DurationChanged {
			fields = append(fields, "estimated duration")
		}
		return fmt.Sprintf("%s: %s", d.Proposed.Title, strings.Join(fields, ", "))
	})
	writeSection("Unchanged", ClassIdentical, func(d Diff) string {
		return d.Proposed.Title
	})

	return b.String()
}
