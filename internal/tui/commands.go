package tui

import (
	"errors"
	"fmt"
	"strings"

	"friendchat/internal/config"
	"friendchat/internal/display"
	"friendchat/internal/service"

	tea "github.com/charmbracelet/bubbletea"
)

// ─── Input dispatcher ───────────────────────────────────────────────────────

func (m model) dispatchCommand(input string) (tea.Model, tea.Cmd) {
	if input == "?" {
		return m.cmdHelp()
	}

	parts := strings.Fields(input)
	if len(parts) == 0 {
		return m, nil
	}

	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "/help", "/h":
		return m.cmdHelp()
	case "/friends", "/ls":
		return m, m.printFriends()
	case "/add":
		return m.cmdAdd(args)
	case "/select", "/s":
		return m.cmdSelect(args)
	case "/pin":
		return m.cmdPin(args)
	case "/rm", "/delete":
		return m.cmdRemove(args)
	case "/rename":
		return m.cmdRename(args)
	case "/model":
		return m.cmdModel(args)
	case "/api":
		return m.cmdAPI(args)
	case "/key":
		return m.cmdKey(args)
	case "/menu":
		return m.cmdMenu(args)
	case "/config":
		return m.cmdConfig()
	case "/clear":
		return m.cmdClear()
	case "/quit", "/exit", "/q":
		return m, tea.Quit
	default:
		return m, printErr(fmt.Errorf("unknown command: %s, type /help", cmd))
	}
}

func printErr(err error) tea.Cmd {
	return tea.Println(errorMsgStyle.Render("  ✗ " + err.Error()))
}

func printOK(text string) tea.Cmd {
	return tea.Println(successMsgStyle.Render("  ✓ " + text))
}

func usage(text string) tea.Cmd {
	return tea.Println(dimStyle.Render("  Usage: " + text))
}

// resolve finds a friend by name or id.
func (m model) resolve(ref string) (service.Friend, error) {
	f, ok := m.friends.Find(ref)
	if !ok {
		return service.Friend{}, fmt.Errorf("no friend named %q", ref)
	}
	return f, nil
}

// ─── /help ──────────────────────────────────────────────────────────────────

func (m model) cmdHelp() (tea.Model, tea.Cmd) {
	pad := func(s string, w int) string {
		for len(s) < w {
			s += " "
		}
		return s
	}

	entries := [][2]string{
		{"/friends", "List friends"},
		{"/add <name>", "Add a friend"},
		{"/select <name>", "Select or deselect a friend"},
		{"/pin <name>", "Pin or unpin a friend"},
		{"/rename <name> <new>", "Rename a friend"},
		{"/rm <name>", "Delete a friend"},
		{"/menu <name>", "Open a friend's action menu"},
		{"/model <model>", "Set the selected friend's model"},
		{"/api <api-id>", "Set the selected friend's API id"},
		{"/key <api-id> <secret>", "Store an API key"},
		{"/config", "Show current configuration"},
		{"/clear", "Clear the conversation"},
		{"/quit", "Exit friendchat"},
	}

	lines := []tea.Cmd{
		tea.Println(""),
		tea.Println(dimStyle.Render("  Shortcuts:")),
		tea.Println(""),
	}
	for _, e := range entries {
		lines = append(lines, tea.Println("  "+pad(e[0], 26)+dimStyle.Render(e[1])))
	}
	lines = append(lines,
		tea.Println(""),
		tea.Println(dimStyle.Render("  Tab switches between the Chat and API tabs.")),
		tea.Println(dimStyle.Render("  Anything else you type is sent to the selected friend.")),
		tea.Println(""),
	)
	return m, tea.Sequence(lines...)
}

// ─── Friends ────────────────────────────────────────────────────────────────

func (m model) cmdAdd(args []string) (tea.Model, tea.Cmd) {
	if len(args) == 0 {
		return m, usage("/add <name>")
	}
	f, err := m.friends.Add(strings.Join(args, " "))
	if err != nil {
		return m, printErr(err)
	}
	return m, printOK(fmt.Sprintf("Added %s (%s)", f.Name, f.ModelName))
}

func (m model) cmdSelect(args []string) (tea.Model, tea.Cmd) {
	if len(args) == 0 {
		return m, usage("/select <name>")
	}
	f, err := m.resolve(strings.Join(args, " "))
	if err != nil {
		return m, printErr(err)
	}
	on, err := m.friends.Select(f.ID)
	if err != nil {
		return m, printErr(err)
	}
	if !on {
		return m, tea.Println(dimStyle.Render("  Deselected " + f.Name))
	}
	return m, printOK("Chatting with " + f.Name)
}

func (m model) cmdPin(args []string) (tea.Model, tea.Cmd) {
	if len(args) == 0 {
		return m, usage("/pin <name>")
	}
	f, err := m.resolve(strings.Join(args, " "))
	if err != nil {
		return m, printErr(err)
	}
	return m.togglePin(f)
}

func (m model) togglePin(f service.Friend) (tea.Model, tea.Cmd) {
	pinned, err := m.friends.TogglePin(f.ID)
	if err != nil {
		return m, printErr(err)
	}
	if pinned {
		return m, printOK("Pinned " + f.Name)
	}
	return m, printOK("Unpinned " + f.Name)
}

func (m model) cmdRemove(args []string) (tea.Model, tea.Cmd) {
	if len(args) == 0 {
		return m, usage("/rm <name>")
	}
	f, err := m.resolve(strings.Join(args, " "))
	if err != nil {
		return m, printErr(err)
	}
	return m.askDelete(f)
}

func (m model) askDelete(f service.Friend) (tea.Model, tea.Cmd) {
	m.menu.TargetID = f.ID
	m.confirm.Show()
	m.mode = modeConfirm
	return m, nil
}

func (m model) cmdRename(args []string) (tea.Model, tea.Cmd) {
	if len(args) == 0 {
		return m, usage("/rename <name> [new name]")
	}
	f, err := m.resolve(args[0])
	if err != nil {
		return m, printErr(err)
	}
	if len(args) == 1 {
		return m.beginRename(f)
	}
	return m.rename(f, strings.Join(args[1:], " "))
}

func (m model) beginRename(f service.Friend) (tea.Model, tea.Cmd) {
	m.menu.TargetID = f.ID
	m.mode = modeRename
	m.input.Placeholder = "New name for " + f.Name + "..."
	m.input.SetValue("")
	return m, tea.Println(dimStyle.Render("  Enter a new name for " + f.Name + ":"))
}

func (m model) handleRenameSubmit(value string) (tea.Model, tea.Cmd) {
	m.mode = modeIdle
	m.input.Placeholder = idlePlaceholder
	f, ok := m.friends.Get(m.menu.TargetID)
	if !ok {
		return m, printErr(service.ErrFriendNotFound)
	}
	return m.rename(f, value)
}

func (m model) rename(f service.Friend, name string) (tea.Model, tea.Cmd) {
	name = strings.TrimSpace(name)
	if name == "" {
		return m, printErr(errors.New("name is required"))
	}
	if _, err := m.friends.Update(f.ID, service.FriendUpdate{Name: &name}); err != nil {
		return m, printErr(err)
	}
	return m, printOK(fmt.Sprintf("Renamed %s to %s", f.Name, name))
}

func (m model) cmdModel(args []string) (tea.Model, tea.Cmd) {
	if len(args) != 1 {
		return m, usage("/model <model-name>")
	}
	f, ok := m.friends.Selected()
	if !ok {
		return m, printErr(errors.New("no friend selected"))
	}
	if _, err := m.friends.Update(f.ID, service.FriendUpdate{ModelName: &args[0]}); err != nil {
		return m, printErr(err)
	}
	return m, printOK(fmt.Sprintf("%s now uses %s", f.Name, args[0]))
}

func (m model) cmdAPI(args []string) (tea.Model, tea.Cmd) {
	if len(args) != 1 {
		return m, usage("/api <api-id>")
	}
	f, ok := m.friends.Selected()
	if !ok {
		return m, printErr(errors.New("no friend selected"))
	}
	if _, err := m.friends.Update(f.ID, service.FriendUpdate{APIID: &args[0]}); err != nil {
		return m, printErr(err)
	}
	cmds := []tea.Cmd{printOK(fmt.Sprintf("%s now uses API %s", f.Name, args[0]))}
	if _, ok := m.cfg.APIKeys[args[0]]; !ok {
		cmds = append(cmds, tea.Println(warnMsgStyle.Render("  ! No key stored for "+args[0]+"; /key "+args[0]+" <secret>")))
	}
	return m, tea.Sequence(cmds...)
}

func (m model) cmdKey(args []string) (tea.Model, tea.Cmd) {
	if len(args) != 2 {
		return m, usage("/key <api-id> <secret>")
	}
	m.cfg.SetKey(args[0], args[1])
	if err := m.cfg.Save(); err != nil {
		return m, printErr(fmt.Errorf("saving config: %w", err))
	}
	return m, printOK(fmt.Sprintf("Stored key for %s (%s)", args[0], display.MaskSecret(args[1])))
}

// ─── /config ────────────────────────────────────────────────────────────────

func (m model) cmdConfig() (tea.Model, tea.Cmd) {
	row := func(label, value string) tea.Cmd {
		return tea.Println(dimStyle.Render(fmt.Sprintf("  %-16s", label)) + value)
	}
	keys := "(none)"
	if ids := m.cfg.KeyIDs(); len(ids) > 0 {
		keys = strings.Join(ids, ", ")
	}
	dataPath, _ := m.cfg.DataPath()
	logPath, _ := m.cfg.LogPath()
	return m, tea.Sequence(
		tea.Println(""),
		row("Profile", config.ProfileName(m.cfg.Profile)),
		row("Endpoint", m.cfg.EndpointURL()),
		row("Default model", m.cfg.DefaultModel),
		row("Default API", m.cfg.DefaultAPIID),
		row("API keys", keys),
		row("Storage", m.cfg.Storage+" ("+dataPath+")"),
		row("Log", m.cfg.LogLevel+" ("+logPath+")"),
		tea.Println(""),
	)
}

// ─── /clear ─────────────────────────────────────────────────────────────────

func (m model) cmdClear() (tea.Model, tea.Cmd) {
	m.chat.Clear()
	return m, tea.Sequence(tea.ClearScreen, tea.Println(m.welcome()))
}

// ─── Context menu ───────────────────────────────────────────────────────────

func (m model) cmdMenu(args []string) (tea.Model, tea.Cmd) {
	if len(args) == 0 {
		return m, usage("/menu <name>")
	}
	f, err := m.resolve(strings.Join(args, " "))
	if err != nil {
		return m, printErr(err)
	}

	row := 0
	for i, fr := range m.friends.List() {
		if fr.ID == f.ID {
			row = i
			break
		}
	}
	m.menu.Open(2, row, f.ID)
	m.menuIdx = 0
	m.mode = modeMenu
	m.hoverMenuItem()
	return m, nil
}

func (m model) menuTarget() (service.Friend, bool) {
	return m.friends.Get(m.menu.TargetID)
}

// hoverMenuItem moves the tooltip onto the highlighted item.
func (m model) hoverMenuItem() {
	f, _ := m.menuTarget()
	items := menuItems(f.IsPinned)
	if m.menuIdx < 0 || m.menuIdx >= len(items) {
		m.tooltip.Leave()
		return
	}
	it := items[m.menuIdx]
	m.tooltip.Leave()
	m.tooltip.Text = it.hint
	m.tooltip.Enter(menuItemRect(m.menu.X, m.menu.Y, m.menuIdx, it.label), 2, 0)
}

func (m model) closeMenu() model {
	m.menu.Close()
	m.tooltip.Leave()
	m.mode = modeIdle
	return m
}

func (m model) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	f, ok := m.menuTarget()
	if !ok {
		return m.closeMenu(), nil
	}
	items := menuItems(f.IsPinned)

	switch msg.Type {
	case tea.KeyEsc, tea.KeyCtrlC:
		return m.closeMenu(), nil
	case tea.KeyUp:
		m.menuIdx = (m.menuIdx - 1 + len(items)) % len(items)
		m.hoverMenuItem()
		return m, nil
	case tea.KeyDown, tea.KeyTab:
		m.menuIdx = (m.menuIdx + 1) % len(items)
		m.hoverMenuItem()
		return m, nil
	case tea.KeyEnter:
		choice := items[m.menuIdx].label
		m = m.closeMenu()
		switch choice {
		case "Pin", "Unpin":
			return m.togglePin(f)
		case "Rename":
			return m.beginRename(f)
		case "Delete":
			return m.askDelete(f)
		}
	}
	return m, nil
}

func (m model) renderMenu() string {
	f, _ := m.menuTarget()
	return renderContextMenu(f.Name, m.menu, menuItems(f.IsPinned), m.menuIdx, m.tooltip)
}

// ─── Confirm modal ──────────────────────────────────────────────────────────

func (m model) confirmText() string {
	f, ok := m.friends.Get(m.menu.TargetID)
	if !ok {
		return "Delete friend?"
	}
	return fmt.Sprintf("Delete %s? This cannot be undone.", f.Name)
}

func (m model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch strings.ToLower(msg.String()) {
	case "y", "enter":
		m.confirm.Hide()
		m.mode = modeIdle
		f, ok := m.friends.Get(m.menu.TargetID)
		if !ok {
			return m, printErr(service.ErrFriendNotFound)
		}
		if err := m.friends.Delete(f.ID); err != nil {
			return m, printErr(err)
		}
		return m, printOK("Deleted " + f.Name)
	case "n", "esc", "ctrl+c":
		m.confirm.Hide()
		m.mode = modeIdle
		return m, tea.Println(dimStyle.Render("  Kept friend."))
	}
	return m, nil
}
