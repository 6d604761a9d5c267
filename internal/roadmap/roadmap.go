package roadmap

import (
	"bufio"
	"regexp"
	"strings"

	"novadream/internal/reconcile"
)

// Parse extracts proposed missions from a markdown roadmap document. Each top
// level bullet or numbered item becomes one proposal; a trailing "(~...)"
// marks the estimated duration; indented continuation lines under an item
// become its description.
func Parse(text string) []reconcile.Proposed {
	var proposals []reconcile.Proposed
	var current *reconcile.Proposed
	var descLines []string

	flush := func() {
		if current == nil {
			return
		}
		current.Description = strings.TrimSpace(strings.Join(descLines, "\n"))
		proposals = append(proposals, *current)
		current = nil
		descLines = nil
	}

	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := scanner.Text()
		if title, ok := itemTitle(line); ok {
			flush()
			p := reconcile.Proposed{}
			p.Title, p.EstimatedDuration = splitDuration(title)
			current = &p
			continue
		}
		if current != nil {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" {
				continue
			}
			if strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") {
				descLines = append(descLines, trimmed)
				continue
			}
			// A non-indented, non-item line ends the current item.
			flush()
		}
	}
	flush()
	return proposals
}

var (
	bulletRe   = regexp.MustCompile(`^\s*[-*+]\s+(.+)$`)
	numberedRe = regexp.MustCompile(`^\s*\d+[.)]\s+(.+)$`)
	durationRe = regexp.MustCompile(`\s*\(~?([^)]+)\)\s*$`)
)

func itemTitle(line string) (string, bool) {
	if m := bulletRe.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	if m := numberedRe.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	return "", false
}

// splitDuration strips a trailing parenthesized duration from an item title.
func splitDuration(title string) (string, *string) {
	m := durationRe.FindStringSubmatch(title)
	if m == nil {
		return title, nil
	}
	d := strings.TrimSpace(m[1])
	if d == "" {
		return title, nil
	}
	return strings.TrimSpace(durationRe.ReplaceAllString(title, "")), &d
}
