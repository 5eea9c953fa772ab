package tui

type navTarget int

const (
	navChat navTarget = iota
	navAPI
)

// Navigation tracks the two header tabs. At most one is active; both may be
// inactive.
type Navigation struct {
	ChatActive bool
	APIActive  bool
}

func NewNavigation() *Navigation {
	return &Navigation{ChatActive: true}
}

// Toggle handles a click on target. Clicking the active tab deactivates it.
// Otherwise both are reset and target becomes active; onChat runs only when
// the chat tab is activated.
func (n *Navigation) Toggle(target navTarget, onChat func()) {
	if target == navChat && n.ChatActive {
		n.ChatActive = false
		return
	}
	if target == navAPI && n.APIActive {
		n.APIActive = false
		return
	}

	n.ChatActive = false
	n.APIActive = false

	switch target {
	case navChat:
		n.ChatActive = true
		if onChat != nil {
			onChat()
		}
	case navAPI:
		n.APIActive = true
	}
}
