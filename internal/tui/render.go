package tui

import (
	"fmt"
	"strings"

	"friendchat/internal/display"
	"friendchat/internal/service"
)

// ─── Welcome Screen ─────────────────────────────────────────────────────────

const logo = ` ╭─╮ ╭─╮
 │ ╰─╯ │
 ╰─────╯`

func renderWelcome(version, endpoint string, friendCount int, selected string) string {
	titleLine := logoTitleStyle.Render("friendchat") + " " + versionStyle.Render("v"+version)

	endpointDisplay := endpoint
	if len(endpointDisplay) > 48 {
		endpointDisplay = endpointDisplay[:45] + "..."
	}

	var infoLine string
	switch {
	case friendCount == 0:
		infoLine = welcomeHintStyle.Render("Type /add <name> to make your first friend")
	case selected == "":
		infoLine = welcomeInfoLabel.Render(fmt.Sprintf("%s · %d friends · none selected", endpointDisplay, friendCount))
	default:
		infoLine = welcomeInfoLabel.Render(fmt.Sprintf("%s · %d friends · chatting with %s", endpointDisplay, friendCount, selected))
	}

	return fmt.Sprintf("\n%s\n\n%s\n%s\n", logoStyle.Render(logo), titleLine, infoLine)
}

// ─── Friends ────────────────────────────────────────────────────────────────

func renderFriendList(rows []service.FriendDisplay) string {
	if len(rows) == 0 {
		return dimStyle.Render("  No friends yet. /add <name> to create one.")
	}

	nameWidth := 0
	for _, r := range rows {
		if len(r.Name) > nameWidth {
			nameWidth = len(r.Name)
		}
	}

	var b strings.Builder
	for i, r := range rows {
		marker := "  "
		name := fmt.Sprintf("%-*s", nameWidth, r.Name)
		if r.Selected {
			marker = selectedFriendStyle.Render("▸ ")
			name = selectedFriendStyle.Render(name)
		}
		fmt.Fprintf(&b, "  %s%s %s  %s", marker, r.PinIcon, name,
			dimStyle.Render(fmt.Sprintf("%s · %s · %s", r.Model, r.APIID, r.Description)))
		if i < len(rows)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// ─── Messages ───────────────────────────────────────────────────────────────

func renderUserMessage(text string) string {
	return userPromptStyle.Render("❯ ") + text
}

// renderReply formats a finished assistant message for printing above the
// prompt. The answer is rendered as markdown.
func renderReply(name string, msg service.ChatMessage, width int) string {
	var b strings.Builder
	b.WriteString(friendNameStyle.Render("  " + name))
	b.WriteString("\n")

	if msg.ReasoningContent != "" {
		b.WriteString(reasoningHeaderStyle.Render("  💭 thinking"))
		b.WriteString("\n")
		b.WriteString(reasoningStyle.Render(indentText(strings.TrimSpace(msg.ReasoningContent), "    ")))
		b.WriteString("\n")
	}

	content, failed := strings.CutSuffix(msg.Content, service.FailureMarker)
	if strings.TrimSpace(content) != "" {
		wrap := width - 4
		if wrap < 20 {
			wrap = 0
		}
		b.WriteString(display.Markdown(content, display.MarkdownOptions{Style: "dark", Width: wrap}))
		b.WriteString("\n")
	}
	if failed {
		b.WriteString(errorMsgStyle.Render("  ✗ message failed to send"))
		b.WriteString("\n")
	}
	return b.String()
}

// renderLive shows the tail of the reply being streamed.
func renderLive(name string, msg service.ChatMessage, maxLines int) string {
	var b strings.Builder
	if msg.ReasoningContent != "" && msg.Content == "" {
		b.WriteString(reasoningHeaderStyle.Render("  💭 " + name + " is thinking"))
		b.WriteString("\n")
		b.WriteString(reasoningStyle.Render(indentText(tailLines(msg.ReasoningContent, maxLines), "    ")))
		b.WriteString("\n")
		return b.String()
	}
	if msg.Content != "" {
		b.WriteString(friendNameStyle.Render("  " + name))
		b.WriteString("\n")
		b.WriteString(indentText(tailLines(msg.Content, maxLines), "  "))
		b.WriteString("\n")
	}
	return b.String()
}

// ─── Header / panels ────────────────────────────────────────────────────────

func renderTabs(nav *Navigation) string {
	chat := tabInactiveStyle.Render("Chat")
	if nav.ChatActive {
		chat = tabActiveStyle.Render("Chat")
	}
	apis := tabInactiveStyle.Render("API")
	if nav.APIActive {
		apis = tabActiveStyle.Render("API")
	}
	return "  " + chat + "  " + apis
}

func renderAPIPanel(endpoint string, keyIDs []string, defaultAPI string) string {
	var b strings.Builder
	b.WriteString(dimStyle.Render("  Endpoint: ") + endpoint + "\n")
	if len(keyIDs) == 0 {
		b.WriteString(dimStyle.Render("  No API keys configured. /key <api-id> <secret>"))
		return b.String()
	}
	b.WriteString(dimStyle.Render("  API keys:"))
	for _, id := range keyIDs {
		mark := " "
		if id == defaultAPI {
			mark = "*"
		}
		b.WriteString("\n    " + mark + " " + id)
	}
	return b.String()
}

// ─── Context menu ───────────────────────────────────────────────────────────

type menuItem struct {
	label string
	hint  string
}

func menuItems(pinned bool) []menuItem {
	pin := menuItem{"Pin", "Keep this friend at the top"}
	if pinned {
		pin = menuItem{"Unpin", "Move back below pinned friends"}
	}
	return []menuItem{
		pin,
		{"Rename", "Give this friend a new name"},
		{"Delete", "Remove this friend"},
	}
}

// menuItemRect is the cell box of item i in a menu anchored at (x, y).
func menuItemRect(x, y, i int, label string) Rect {
	return Rect{Left: x, Top: y + i, Right: x + len(label) + 4, Bottom: y + i + 1}
}

// renderContextMenu draws the menu with the tooltip next to the item it is
// anchored on.
func renderContextMenu(title string, menu *ContextMenu, items []menuItem, idx int, tip *Tooltip) string {
	var lines []string
	lines = append(lines, strings.Repeat(" ", menu.X)+menuTitleStyle.Render(title))
	tx, ty, shown := tip.Position()
	for i, it := range items {
		line := strings.Repeat(" ", menu.X)
		if i == idx {
			line += cmdSelectedNameStyle.Render(" " + it.label + " ")
		} else {
			line += cmdNameStyle.Render(" " + it.label + " ")
		}
		rect := menuItemRect(menu.X, menu.Y, i, it.label)
		if shown && ty == rect.Top {
			pad := tx - (menu.X + len(it.label) + 2)
			if pad < 1 {
				pad = 1
			}
			line += strings.Repeat(" ", pad) + tooltipStyle.Render(tip.Text)
		}
		lines = append(lines, line)
	}
	lines = append(lines, hintBarStyle.Render("  ↑↓ navigate  Enter select  Esc close"))
	return strings.Join(lines, "\n")
}

func renderConfirm(text string) string {
	return modalStyle.Render(text + "\n" + hintKeyStyle.Render("y") + dimStyle.Render(" confirm  ") + hintKeyStyle.Render("n") + dimStyle.Render(" cancel"))
}

func indentText(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
