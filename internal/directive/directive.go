package directive

import (
	"regexp"
	"strings"
)

// Kind enumerates the recognized directive types.
type Kind string

const (
	KindCreateTask    Kind = "CREATE_TASK"
	KindAddRevenue    Kind = "ADD_REVENUE"
	KindCreateProject Kind = "CREATE_PROJECT"
	KindCreateNote    Kind = "CREATE_NOTE"
)

// DefaultKind is what the renderer falls back to for unrecognized type tokens.
const DefaultKind = KindCreateTask

// Ref identifies a directive within one rendering pass: the message it was
// scanned from plus its position in that scan. Stable for the lifetime of the
// message, not across messages.
type Ref struct {
	MessageID string `json:"message_id"`
	Index     int    `json:"index"`
}

// Directive is one parsed action request. RawType preserves the type token as
// written; Kind resolves it with the default fallback for unknown tokens.
type Directive struct {
	RawType string
	Params  map[string]string
}

// Kind resolves the type token, falling back to DefaultKind.
func (d Directive) Kind() Kind {
	if k, ok := KindFor(d.RawType); ok {
		return k
	}
	return DefaultKind
}

// Recognized reports whether the type token names a known kind.
func (d Directive) Recognized() bool {
	_, ok := KindFor(d.RawType)
	return ok
}

// KindFor maps a raw type token to a Kind.
func KindFor(raw string) (Kind, bool) {
	switch Kind(raw) {
	case KindCreateTask, KindAddRevenue, KindCreateProject, KindCreateNote:
		return Kind(raw), true
	}
	return "", false
}

// Grammar: [[ACTION:<TYPE>|k1=v1|k2=v2|...]] on a single line. The type token
// is alphanumeric/underscore; parameter values run until the next | or ]].
// There is no escaping: the first ] inside a value ends the match, so a value
// containing ] cannot be expressed. That is a known limitation of the grammar
// and is preserved here.
var directiveRe = regexp.MustCompile(`\[\[ACTION:([A-Za-z0-9_]+)((?:\|[^\]\r\n]*)*)\]\]`)

// Parse extracts all well-formed directives from text in order of occurrence.
// Malformed fragments never error; they are simply not matched.
func Parse(text string) []Directive {
	matches := directiveRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]Directive, 0, len(matches))
	for _, m := range matches {
		out = append(out, Directive{
			RawType: m[1],
			Params:  parseParams(m[2]),
		})
	}
	return out
}

// parseParams splits |-delimited segments on the first =. Segments without =
// or with an empty key or value are dropped; values are trimmed; the last
// occurrence of a duplicate key wins.
func parseParams(raw string) map[string]string {
	params := map[string]string{}
	for _, seg := range strings.Split(raw, "|") {
		if seg == "" {
			continue
		}
		eq := strings.Index(seg, "=")
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(seg[:eq])
		val := strings.TrimSpace(seg[eq+1:])
		if key == "" || val == "" {
			continue
		}
		params[key] = val
	}
	return params
}

// Strip removes every directive occurrence from text and trims the result.
// Text outside directive spans is untouched; stripping twice is a no-op.
func Strip(text string) string {
	return strings.TrimSpace(directiveRe.ReplaceAllString(text, ""))
}
