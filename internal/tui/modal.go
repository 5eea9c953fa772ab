package tui

// Modal is the visibility state of one named dialog.
type Modal struct {
	ID      string
	Visible bool
}

func NewModal(id string) *Modal {
	return &Modal{ID: id}
}

func (m *Modal) Show() { m.Visible = true }

func (m *Modal) Hide() { m.Visible = false }

func (m *Modal) Toggle() { m.Visible = !m.Visible }
