package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Run launches the interactive TUI mode (inline: output is printed above the
// prompt).
func Run(version string, deps Deps) error {
	m := initialModel(version, deps)

	p := tea.NewProgram(m)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}
