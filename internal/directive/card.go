package directive

// Card is a renderable, confirmable view of one directive instance.
type Card struct {
	Ref     Ref               `json:"ref"`
	Type    string            `json:"type"`
	Label   string            `json:"label"`
	Icon    string            `json:"icon"`
	Params  map[string]string `json:"params,omitempty"`
	State   State             `json:"state"`
	Unknown bool              `json:"unknown,omitempty"`
}

// BuildCards scans a stored message and renders one card per directive with
// its current lifecycle state. Directive identity is the message id plus the
// scan index, so re-rendering the same message yields the same refs.
func BuildCards(ex *Executor, messageID, text string) []Card {
	dirs := Parse(text)
	if len(dirs) == 0 {
		return nil
	}
	cards := make([]Card, 0, len(dirs))
	for i, d := range dirs {
		ref := Ref{MessageID: messageID, Index: i}
		label, icon := cardFace(d.Kind())
		cards = append(cards, Card{
			Ref:     ref,
			Type:    d.RawType,
			Label:   label,
			Icon:    icon,
			Params:  d.Params,
			State:   ex.State(ref),
			Unknown: !d.Recognized(),
		})
	}
	return cards
}

func cardFace(k Kind) (label, icon string) {
	switch k {
	case KindAddRevenue:
		return "Add revenue", "banknote"
	case KindCreateProject:
		return "Create project", "folder-plus"
	case KindCreateNote:
		return "Create note", "sticky-note"
	default:
		return "Create task", "check-square"
	}
}
