package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"friendchat/internal/config"
	"friendchat/internal/logging"
	"friendchat/internal/service"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ─── App mode ───────────────────────────────────────────────────────────────

type appMode int

const (
	modeIdle appMode = iota
	modeStreaming
	modeMenu
	modeConfirm
	modeRename
)

const idlePlaceholder = "Say something or type /help..."

// ─── Slash command registry ─────────────────────────────────────────────────

type slashCmd struct {
	name string
	desc string
}

var slashCommands = []slashCmd{
	{"/add", "Add a friend"},
	{"/api", "Set the selected friend's API id"},
	{"/clear", "Clear the conversation"},
	{"/config", "Show current configuration"},
	{"/friends", "List friends"},
	{"/help", "Show all commands"},
	{"/key", "Store an API key"},
	{"/menu", "Open a friend's action menu"},
	{"/model", "Set the selected friend's model"},
	{"/pin", "Pin or unpin a friend"},
	{"/quit", "Exit friendchat"},
	{"/rename", "Rename a friend"},
	{"/rm", "Delete a friend"},
	{"/select", "Select or deselect a friend"},
}

// Deps are the services the TUI drives.
type Deps struct {
	Config  *config.Config
	Friends *service.Friends
	Chat    *service.Chat
	Logger  *slog.Logger
}

// ─── Model ──────────────────────────────────────────────────────────────────

type model struct {
	width  int
	height int

	// Bubble Tea components
	input   textinput.Model
	spinner spinner.Model

	// App state
	mode    appMode
	cfg     *config.Config
	friends *service.Friends
	chat    *service.Chat
	logger  *slog.Logger
	version string

	// Streaming state
	updates      chan tea.Msg
	cancelStream context.CancelFunc
	streamFriend string

	// UI state machines
	nav     *Navigation
	menu    *ContextMenu
	menuIdx int
	tooltip *Tooltip
	confirm *Modal

	// UI state
	ready        bool
	cmdMenuIdx   int
	cmdMenuOpen  bool
	lastInputVal string

	// Command history
	history      []string
	historyIdx   int
	historySaved string
}

func initialModel(version string, deps Deps) model {
	ti := textinput.New()
	ti.Placeholder = idlePlaceholder
	ti.Focus()
	ti.CharLimit = 4096
	ti.Prompt = "❯ "
	ti.PromptStyle = promptSymbol
	ti.Cursor.Style = lipgloss.NewStyle().Foreground(colorAccent)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(colorAccent)

	updates := make(chan tea.Msg, 1)
	if deps.Chat != nil {
		deps.Chat.OnChange(notifyUpdates(updates))
	}

	tip := NewTooltip("")
	tip.Lift = 0

	return model{
		input:      ti,
		spinner:    sp,
		version:    version,
		cfg:        deps.Config,
		friends:    deps.Friends,
		chat:       deps.Chat,
		logger:     logging.OrDiscard(deps.Logger),
		mode:       modeIdle,
		updates:    updates,
		nav:        NewNavigation(),
		menu:       &ContextMenu{},
		tooltip:    tip,
		confirm:    NewModal("delete-friend"),
		history:    make([]string, 0),
		historyIdx: -1,
	}
}

// ─── Init ───────────────────────────────────────────────────────────────────

func (m model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		waitForUpdate(m.updates),
	)
}

// ─── Update ─────────────────────────────────────────────────────────────────

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = m.width - 6

		if !m.ready {
			m.ready = true
			cmds = append(cmds, tea.Println(m.welcome()))
		}

	case tea.KeyMsg:
		switch m.mode {
		case modeMenu:
			return m.updateMenu(msg)
		case modeConfirm:
			return m.updateConfirm(msg)
		}

		switch msg.Type {
		case tea.KeyCtrlC:
			if m.mode == modeStreaming {
				return m.cancel()
			}
			return m, tea.Quit

		case tea.KeyEsc:
			if m.mode == modeStreaming {
				return m.cancel()
			}
			if m.mode == modeRename {
				m.mode = modeIdle
				m.input.Placeholder = idlePlaceholder
				m.input.SetValue("")
				return m, tea.Println(warnMsgStyle.Render("  ! Rename cancelled."))
			}
			if m.cmdMenuOpen {
				m.cmdMenuOpen = false
				m.cmdMenuIdx = 0
				return m, nil
			}

		case tea.KeyUp:
			if m.mode == modeIdle {
				if m.cmdMenuOpen {
					matches := matchCommands(m.input.Value())
					if len(matches) > 0 {
						m.cmdMenuIdx--
						if m.cmdMenuIdx < 0 {
							m.cmdMenuIdx = len(matches) - 1
						}
						return m, nil
					}
				} else if len(m.history) > 0 {
					if m.historyIdx == -1 {
						m.historySaved = m.input.Value()
						m.historyIdx = len(m.history) - 1
					} else {
						m.historyIdx--
						if m.historyIdx < 0 {
							m.historyIdx = 0
						}
					}
					m.input.SetValue(m.history[m.historyIdx])
					m.input.CursorEnd()
					return m, nil
				}
			}

		case tea.KeyDown:
			if m.mode == modeIdle {
				if m.cmdMenuOpen {
					matches := matchCommands(m.input.Value())
					if len(matches) > 0 {
						m.cmdMenuIdx++
						if m.cmdMenuIdx >= len(matches) {
							m.cmdMenuIdx = 0
						}
						return m, nil
					}
				} else if m.historyIdx != -1 {
					m.historyIdx++
					if m.historyIdx >= len(m.history) {
						m.historyIdx = -1
						m.input.SetValue(m.historySaved)
						m.historySaved = ""
					} else {
						m.input.SetValue(m.history[m.historyIdx])
					}
					m.input.CursorEnd()
					return m, nil
				}
			}

		case tea.KeyTab:
			if m.mode == modeIdle && m.cmdMenuOpen {
				matches := matchCommands(m.input.Value())
				if len(matches) > 0 {
					idx := m.cmdMenuIdx
					if idx < 0 || idx >= len(matches) {
						idx = 0
					}
					m.input.SetValue(matches[idx].name + " ")
					m.input.CursorEnd()
					m.cmdMenuOpen = false
					m.cmdMenuIdx = 0
				}
				return m, nil
			}
			if m.mode == modeIdle {
				return m.switchTab()
			}

		case tea.KeyEnter:
			if m.mode == modeStreaming {
				return m, nil
			}
			if m.mode == modeIdle && m.cmdMenuOpen && m.cmdMenuIdx >= 0 {
				matches := matchCommands(m.input.Value())
				if m.cmdMenuIdx < len(matches) {
					m.input.SetValue(matches[m.cmdMenuIdx].name + " ")
					m.input.CursorEnd()
					m.cmdMenuOpen = false
					m.cmdMenuIdx = 0
					return m, nil
				}
			}
			return m.submit(msg.Alt)
		}

	// ── Stream messages ───────────────────────────────────────────────
	case chatUpdatedMsg:
		return m, waitForUpdate(m.updates)

	case replyDoneMsg:
		m.mode = modeIdle
		m.streamFriend = ""
		if m.cancelStream != nil {
			m.cancelStream()
			m.cancelStream = nil
		}
		if msg.err != nil {
			return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ %v", msg.err)))
		}
		return m, tea.Println(renderReply(msg.friend.Name, msg.reply, m.width))
	}

	// Update sub-components
	var cmd tea.Cmd

	if m.mode != modeStreaming {
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	m.spinner, cmd = m.spinner.Update(msg)
	cmds = append(cmds, cmd)

	newVal := m.input.Value()
	if newVal != m.lastInputVal {
		m.lastInputVal = newVal
		if m.historyIdx != -1 {
			if m.historyIdx < len(m.history) && m.history[m.historyIdx] != newVal {
				m.historyIdx = -1
				m.historySaved = ""
			}
		}
		if m.mode == modeIdle && strings.HasPrefix(newVal, "/") {
			m.cmdMenuOpen = true
			m.cmdMenuIdx = 0
		} else {
			m.cmdMenuOpen = false
			m.cmdMenuIdx = 0
		}
	}

	return m, tea.Batch(cmds...)
}

// submit handles Enter on the prompt. Commands go to the dispatcher; plain
// text goes through the composer's submit guard.
func (m model) submit(alt bool) (tea.Model, tea.Cmd) {
	raw := m.input.Value()
	value := strings.TrimSpace(raw)
	if value == "" {
		return m, nil
	}

	if len(m.history) == 0 || m.history[len(m.history)-1] != value {
		m.history = append(m.history, value)
		if len(m.history) > 1000 {
			m.history = m.history[len(m.history)-1000:]
		}
	}
	m.historyIdx = -1
	m.historySaved = ""
	m.cmdMenuOpen = false
	m.cmdMenuIdx = 0

	if m.mode == modeRename {
		m.input.SetValue("")
		return m.handleRenameSubmit(value)
	}
	if value == "?" || strings.HasPrefix(value, "/") {
		m.input.SetValue("")
		return m.dispatchCommand(value)
	}

	var cmd tea.Cmd
	composer := NewMessageInput(func(text string) {
		m, cmd = m.startSend(text)
	})
	composer.Text = raw
	composer.HandleKey("enter", alt)
	m.input.SetValue(composer.Text)
	return m, cmd
}

// startSend streams text to the selected friend.
func (m model) startSend(text string) (model, tea.Cmd) {
	friend, ok := m.friends.Selected()
	if !ok {
		return m, tea.Println(errorMsgStyle.Render("  ✗ No friend selected. Use /select <name> or /friends."))
	}

	m.logger.Debug("sending message", "friend", friend.Name, "model", friend.ModelName)
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelStream = cancel
	m.mode = modeStreaming
	m.streamFriend = friend.Name
	return m, tea.Sequence(
		tea.Println(renderUserMessage(text)),
		sendMessage(ctx, m.chat, friend, text),
	)
}

func (m model) cancel() (tea.Model, tea.Cmd) {
	if m.cancelStream != nil {
		m.cancelStream()
		m.cancelStream = nil
	}
	return m, tea.Println(warnMsgStyle.Render("  ! Cancelled."))
}

// switchTab cycles Chat → API → Chat through the navigation toggle.
func (m model) switchTab() (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	target := navChat
	if m.nav.ChatActive {
		target = navAPI
	}
	m.nav.Toggle(target, func() {
		cmd = m.printFriends()
	})
	return m, cmd
}

// ─── View ───────────────────────────────────────────────────────────────────
//
// Inline mode: View() only shows the live area, the prompt and hints.
// Finished output is printed above via tea.Println.

func (m model) View() string {
	if !m.ready {
		return ""
	}

	var s strings.Builder

	s.WriteString(m.renderHeader())
	s.WriteString("\n")

	if m.nav.APIActive {
		s.WriteString(renderAPIPanel(m.cfg.EndpointURL(), m.cfg.KeyIDs(), m.cfg.DefaultAPIID))
		s.WriteString("\n")
	}

	switch m.mode {
	case modeStreaming:
		if m.chat != nil {
			if reply, ok := streamingReply(m.chat.Messages()); ok {
				s.WriteString(renderLive(m.streamFriend, reply, m.liveLines()))
			}
		}
		s.WriteString(m.spinner.View() + " " + statusStyle.Render(m.streamFriend+" is typing..."))
	case modeMenu:
		s.WriteString(m.renderMenu())
	case modeConfirm:
		s.WriteString(renderConfirm(m.confirmText()))
	default:
		s.WriteString(m.input.View())
	}
	s.WriteString("\n")

	sepWidth := min(m.width, 80)
	if sepWidth < 20 {
		sepWidth = 20
	}
	s.WriteString(separatorStyle.Render(strings.Repeat("─", sepWidth)))
	s.WriteString("\n")

	s.WriteString(m.renderHints())

	return s.String()
}

func (m model) renderHeader() string {
	header := renderTabs(m.nav)
	if f, ok := m.friends.Selected(); ok {
		header += dimStyle.Render("   chatting with ") + selectedFriendStyle.Render(f.Name) +
			dimStyle.Render(" ("+f.ModelName+")")
	}
	return header
}

func (m model) liveLines() int {
	n := m.height - 8
	if n < 3 {
		n = 3
	}
	return n
}

// ─── Hint bar ───────────────────────────────────────────────────────────────

func (m model) renderHints() string {
	switch m.mode {
	case modeStreaming:
		return hintBarStyle.Render("  Esc cancel")
	case modeRename:
		return hintBarStyle.Render("  Enter submit   Esc cancel")
	case modeMenu, modeConfirm:
		return ""
	}

	if m.cmdMenuOpen {
		matches := matchCommands(m.input.Value())
		if len(matches) > 0 {
			return m.renderCommandMenu(matches)
		}
	}

	return hintBarStyle.Render("  ? for help   Tab switch tab")
}

func (m model) renderCommandMenu(matches []slashCmd) string {
	maxLen := 0
	for _, c := range matches {
		if len(c.name) > maxLen {
			maxLen = len(c.name)
		}
	}

	var lines []string
	for i, c := range matches {
		padded := fmt.Sprintf("%-*s", maxLen, c.name)
		var line string
		if i == m.cmdMenuIdx {
			line = "  " + cmdSelectedNameStyle.Render(padded) + "  " + cmdSelectedDescStyle.Render(c.desc)
		} else {
			line = "  " + cmdNameStyle.Render(padded) + "  " + cmdDescStyle.Render(c.desc)
		}
		lines = append(lines, line)
	}

	lines = append(lines, hintBarStyle.Render("  ↑↓ navigate  Tab/Enter select"))

	return strings.Join(lines, "\n")
}

// matchCommands returns all slash commands matching a prefix.
func matchCommands(prefix string) []slashCmd {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "/" {
		return slashCommands
	}
	var matches []slashCmd
	for _, c := range slashCommands {
		if strings.HasPrefix(c.name, prefix) {
			matches = append(matches, c)
		}
	}
	return matches
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func (m model) welcome() string {
	var selected string
	if f, ok := m.friends.Selected(); ok {
		selected = f.Name
	}
	return renderWelcome(m.version, m.cfg.EndpointURL(), len(m.friends.List()), selected)
}

func (m model) printFriends() tea.Cmd {
	rows := service.FormatFriendRows(m.friends.List(), m.friends.SelectedID())
	return tea.Println(renderFriendList(rows))
}
