package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"friendchat/internal/api"
	"friendchat/internal/config"
	"friendchat/internal/display"
	"friendchat/internal/logging"
	"friendchat/internal/roster"
	"friendchat/internal/service"
	"friendchat/internal/storage"
	"friendchat/internal/tui"
)

const version = "0.1.0"

var activeProfile string

func main() {
	args := os.Args[1:]

	// Parse global flags first (--profile)
	args = parseGlobalFlags(args)

	// No args → launch interactive mode (default)
	if len(args) == 0 || args[0] == "-i" || args[0] == "--interactive" || args[0] == "interactive" {
		if err := runInteractive(); err != nil {
			display.Error(err.Error())
			os.Exit(1)
		}
		return
	}

	var err error

	switch args[0] {
	case "friends", "ls":
		err = cmdFriends()
	case "add":
		err = cmdAdd(args[1:])
	case "rm", "delete":
		err = cmdRemove(args[1:])
	case "pin":
		err = cmdPin(args[1:])
	case "rename":
		err = cmdRename(args[1:])
	case "import":
		err = cmdImport(args[1:])
	case "export":
		err = cmdExport(args[1:])
	case "ask", "chat":
		err = cmdAsk(args[1:])
	case "set":
		err = cmdSet(args[1:])
	case "config":
		err = cmdConfig()
	case "profiles":
		err = cmdProfiles()
	case "help", "--help", "-h":
		printUsage()
	case "version", "--version", "-v":
		fmt.Printf("friendchat %s\n", version)
	default:
		display.Error(fmt.Sprintf("Unknown command: %s", args[0]))
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		display.Error(err.Error())
		os.Exit(1)
	}
}

// ─── wiring ─────────────────────────────────────────────────────────────────

// app holds the services shared by the TUI and the one-shot commands.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	kv      storage.KV
	friends *service.Friends
	closers []func() error
}

func openApp() (*app, error) {
	cfg, err := config.Load(activeProfile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logging.Discard()}

	if logPath, err := cfg.LogPath(); err == nil {
		logger, closeLog, err := logging.Open(logPath, cfg.LogLevel)
		if err != nil {
			display.Warn(fmt.Sprintf("Logging disabled: %v", err))
		} else {
			a.logger = logger
			a.closers = append(a.closers, closeLog)
		}
	}

	dataPath, err := cfg.DataPath()
	if err != nil {
		a.close()
		return nil, err
	}
	kv, err := storage.Open(cfg.Storage, dataPath)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("opening friend store: %w", err)
	}
	a.kv = kv
	a.closers = append(a.closers, kv.Close)

	a.friends = service.NewFriends(kv, service.FriendsOptions{
		DefaultAPIID: cfg.DefaultAPIID,
		DefaultModel: cfg.DefaultModel,
		Logger:       a.logger,
	})
	if err := a.friends.Load(); err != nil {
		a.close()
		return nil, err
	}

	a.logger.Debug("app opened",
		"profile", config.ProfileName(activeProfile),
		"storage", cfg.Storage,
		"friends", len(a.friends.List()))
	return a, nil
}

func (a *app) newChat() *service.Chat {
	client := api.NewClient(a.cfg, a.logger)
	return service.NewChat(client, service.ChatOptions{
		Credential: a.cfg.Credential,
		Logger:     a.logger,
	})
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}

func runInteractive() error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	return tui.Run(version, tui.Deps{
		Config:  a.cfg,
		Friends: a.friends,
		Chat:    a.newChat(),
		Logger:  a.logger,
	})
}

// ─── friends ────────────────────────────────────────────────────────────────

func cmdFriends() error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	list := a.friends.List()
	display.Header(fmt.Sprintf("Friends (%d)", len(list)))

	if len(list) == 0 {
		display.Warn("No friends yet.")
		fmt.Fprintf(display.Out, "  Run %s to create one.\n\n", display.Paint(display.Cyan, "friendchat add <name>"))
		return nil
	}

	for _, row := range service.FormatFriendRows(list, a.friends.SelectedID()) {
		fmt.Fprintf(display.Out, "  %s %s %-20s %s\n",
			row.PinIcon, display.Paint(display.Dim, fmt.Sprintf("%-4d", row.ID)),
			truncate(row.Name, 20),
			display.Paint(display.Dim, row.Model+" · "+row.APIID))
	}
	fmt.Fprintln(display.Out)
	return nil
}

func cmdAdd(args []string) error {
	var model, apiID string
	var positional []string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-m", "--model":
			if i+1 < len(args) {
				i++
				model = args[i]
			} else {
				return fmt.Errorf("--model requires a value")
			}
		case "-a", "--api":
			if i+1 < len(args) {
				i++
				apiID = args[i]
			} else {
				return fmt.Errorf("--api requires a value")
			}
		default:
			positional = append(positional, args[i])
		}
	}

	if len(positional) == 0 {
		fmt.Println("Usage: friendchat add <name> [--model <model>] [--api <api-id>]")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  friendchat add Alice")
		fmt.Println("  friendchat add Bob --model doubao-pro --api work")
		return nil
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	f, err := a.friends.Add(strings.Join(positional, " "))
	if err != nil {
		return err
	}

	var u service.FriendUpdate
	if model != "" {
		u.ModelName = &model
	}
	if apiID != "" {
		u.APIID = &apiID
	}
	if u.ModelName != nil || u.APIID != nil {
		if f, err = a.friends.Update(f.ID, u); err != nil {
			return err
		}
	}

	display.Success(fmt.Sprintf("Added %s (id %d)", f.Name, f.ID))
	display.Info("Model:", f.ModelName)
	display.Info("API:", f.APIID)
	fmt.Println()
	return nil
}

// resolveFriend looks a friend up by id or name.
func resolveFriend(a *app, ref string) (service.Friend, error) {
	f, ok := a.friends.Find(ref)
	if !ok {
		return service.Friend{}, fmt.Errorf("no friend matches %s", friendRef(ref))
	}
	return f, nil
}

func cmdRemove(args []string) error {
	if len(args) == 0 {
		fmt.Println("Usage: friendchat rm <friend>")
		return nil
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	f, err := resolveFriend(a, strings.Join(args, " "))
	if err != nil {
		return err
	}
	if err := a.friends.Delete(f.ID); err != nil {
		return err
	}
	display.Success(fmt.Sprintf("Deleted %s", f.Name))
	return nil
}

func cmdPin(args []string) error {
	if len(args) == 0 {
		fmt.Println("Usage: friendchat pin <friend>")
		return nil
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	f, err := resolveFriend(a, strings.Join(args, " "))
	if err != nil {
		return err
	}
	pinned, err := a.friends.TogglePin(f.ID)
	if err != nil {
		return err
	}
	if pinned {
		display.Success(fmt.Sprintf("Pinned %s", f.Name))
	} else {
		display.Success(fmt.Sprintf("Unpinned %s", f.Name))
	}
	return nil
}

func cmdRename(args []string) error {
	if len(args) < 2 {
		fmt.Println("Usage: friendchat rename <friend> <new name>")
		return nil
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	f, err := resolveFriend(a, args[0])
	if err != nil {
		return err
	}
	name := strings.TrimSpace(strings.Join(args[1:], " "))
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	updated, err := a.friends.Update(f.ID, service.FriendUpdate{Name: &name})
	if err != nil {
		return err
	}
	display.Success(fmt.Sprintf("Renamed %s to %s", f.Name, updated.Name))
	return nil
}

// ─── import / export ────────────────────────────────────────────────────────

func cmdImport(args []string) error {
	var count int
	var filename string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-n", "--count":
			if i+1 < len(args) {
				i++
				n, err := strconv.Atoi(args[i])
				if err != nil || n < 0 {
					return fmt.Errorf("invalid count: %s", args[i])
				}
				count = n
			} else {
				return fmt.Errorf("--count requires a value")
			}
		default:
			filename = args[i]
		}
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	source := filename
	if source == "" {
		source = "built-in roster"
	}
	display.Header("Importing friends from " + source)

	done, err := roster.Import(a.friends, filename, roster.Input{Count: count})
	for _, imp := range done {
		pin := ""
		if imp.Friend.IsPinned {
			pin = " 📌"
		}
		display.Success(fmt.Sprintf("%s%s (id %d)", imp.Friend.Name, pin, imp.Friend.ID))
	}
	if err != nil {
		return err
	}
	fmt.Println()
	return nil
}

func cmdExport(args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	if len(args) == 0 || args[0] == "-" {
		return roster.Export(display.Out, a.friends.List())
	}

	f, err := os.Create(args[0])
	if err != nil {
		return fmt.Errorf("creating %s: %w", args[0], err)
	}
	if err := roster.Export(f, a.friends.List()); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	display.Success(fmt.Sprintf("Exported %d friends to %s", len(a.friends.List()), args[0]))
	return nil
}

// ─── ask ────────────────────────────────────────────────────────────────────

func cmdAsk(args []string) error {
	var markdown bool
	var positional []string

	for _, arg := range args {
		switch arg {
		case "--markdown", "--md":
			markdown = true
		default:
			positional = append(positional, arg)
		}
	}

	if len(positional) < 2 {
		fmt.Println("Usage: friendchat ask <friend> <message> [--markdown]")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println(`  friendchat ask Alice "How was your day?"`)
		fmt.Println(`  friendchat ask 3 "Explain goroutines" --markdown`)
		return nil
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	friend, err := resolveFriend(a, positional[0])
	if err != nil {
		return err
	}
	text := strings.Join(positional[1:], " ")

	chat := a.newChat()
	printer := display.NewStreamPrinter(display.Out, friend.Name)
	tracker := &replyTracker{printer: printer, streamAnswer: !markdown}
	chat.OnChange(func() { tracker.update(chat.Messages()) })

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Println()
	reply, err := chat.SendMessage(ctx, friend, text)
	if errors.Is(err, service.ErrEmptyMessage) {
		return fmt.Errorf("message is empty")
	}
	if err != nil {
		return err
	}
	tracker.update([]service.ChatMessage{reply})

	content, failed := strings.CutSuffix(reply.Content, service.FailureMarker)
	if markdown && strings.TrimSpace(content) != "" {
		printer.Finish()
		fmt.Fprint(display.Out, display.Markdown(content, display.MarkdownOptions{NoColor: !display.ColorEnabled()}))
	}
	if failed {
		printer.Fail("✗ message failed to send")
		return fmt.Errorf("reply from %s was interrupted", friend.Name)
	}
	printer.Finish()
	fmt.Println()
	return nil
}

// replyTracker prints the part of the latest reply that has not been printed
// yet. Folding may drop newlines from text already on screen, so each snapshot
// is diffed against the previous one rather than sliced by length.
type replyTracker struct {
	printer      *display.StreamPrinter
	streamAnswer bool

	reasoning string
	answer    string
}

func (t *replyTracker) update(msgs []service.ChatMessage) {
	if len(msgs) == 0 {
		return
	}
	reply := msgs[len(msgs)-1]
	if reply.IsUser {
		return
	}

	if r := reply.ReasoningContent; r != t.reasoning {
		if add := appended(t.reasoning, r); add != "" {
			t.printer.Reasoning(add)
		}
		t.reasoning = r
	}

	if !t.streamAnswer {
		return
	}
	content := strings.TrimSuffix(reply.Content, service.FailureMarker)
	if content != t.answer {
		if add := appended(t.answer, content); add != "" {
			t.printer.Answer(add)
		}
		t.answer = content
	}
}

// appended returns the text cur adds to prev, where cur is prev with some
// newlines removed and text appended. If cur is not of that shape the whole
// differing tail of cur is returned.
func appended(prev, cur string) string {
	p := 0
	for p < len(prev) && p < len(cur) && prev[p] == cur[p] {
		p++
	}
	oldTail, newTail := prev[p:], cur[p:]

	i := 0
	for j := 0; j < len(oldTail); j++ {
		switch {
		case i < len(newTail) && oldTail[j] == newTail[i]:
			i++
		case oldTail[j] == '\n':
		default:
			return newTail
		}
	}
	return newTail[i:]
}

// ─── set ────────────────────────────────────────────────────────────────────

func cmdSet(args []string) error {
	if len(args) < 2 {
		fmt.Println("Usage: friendchat set <key> <value>")
		fmt.Println()
		fmt.Println("Keys:")
		fmt.Println("  endpoint   Chat-completions URL")
		fmt.Println("  model      Default model for new friends")
		fmt.Println("  api-id     Default API id for new friends")
		fmt.Println("  storage    Friend store backend (json, sqlite)")
		fmt.Println("  log-level  Log level (trace, debug, info, warn, error)")
		fmt.Println("  key        API key: set key <api-id> <secret>")
		return nil
	}

	cfg, err := config.Load(activeProfile)
	if err != nil {
		return err
	}

	key, value := args[0], args[1]

	switch key {
	case "endpoint":
		cfg.Endpoint = value
	case "model":
		cfg.DefaultModel = value
	case "api-id", "api":
		cfg.DefaultAPIID = value
	case "storage":
		cfg.Storage = value
	case "log-level":
		cfg.LogLevel = value
	case "key":
		if len(args) < 3 {
			return fmt.Errorf("usage: friendchat set key <api-id> <secret>")
		}
		cfg.SetKey(args[1], args[2])
		value = display.MaskSecret(args[2])
		key = "key " + args[1]
	default:
		return fmt.Errorf("unknown config key: %s (valid: endpoint, model, api-id, storage, log-level, key)", key)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.Save(); err != nil {
		return err
	}

	display.Success(fmt.Sprintf("%s set to %s", key, value))
	return nil
}

// ─── config ─────────────────────────────────────────────────────────────────

func cmdConfig() error {
	cfg, err := config.Load(activeProfile)
	if err != nil {
		return err
	}

	display.Header("friendchat Configuration")

	display.Info("Profile:", config.ProfileName(activeProfile))
	display.Info("Endpoint:", cfg.EndpointURL())
	display.Info("Default Model:", orNotSet(cfg.DefaultModel))
	display.Info("Default API:", orNotSet(cfg.DefaultAPIID))
	display.Info("Storage:", cfg.Storage)
	display.Info("Log Level:", cfg.LogLevel)

	if dataPath, err := cfg.DataPath(); err == nil {
		display.Info("Data:", dataPath)
	}
	if logPath, err := cfg.LogPath(); err == nil {
		display.Info("Log:", logPath)
	}

	ids := cfg.KeyIDs()
	if len(ids) == 0 {
		display.Info("API Keys:", display.Paint(display.Dim, "(none)"))
	}
	for _, id := range ids {
		display.Info("Key "+id+":", display.MaskSecret(cfg.APIKeys[id]))
	}
	fmt.Println()

	return nil
}

// ─── profiles ───────────────────────────────────────────────────────────────

func cmdProfiles() error {
	profiles, err := config.ListProfiles()
	if err != nil {
		return err
	}

	display.Header(fmt.Sprintf("Profiles (%d)", len(profiles)))

	if len(profiles) == 0 {
		display.Warn("No profiles found.")
		return nil
	}

	for _, p := range profiles {
		marker := " "
		if p == config.ProfileName(activeProfile) {
			marker = display.Paint(display.Green, "●")
		}
		fmt.Fprintf(display.Out, "  %s %s\n", marker, p)
	}
	fmt.Println()

	return nil
}

// ─── helpers ────────────────────────────────────────────────────────────────

func parseGlobalFlags(args []string) []string {
	var remaining []string
	for i := 0; i < len(args); i++ {
		if args[i] == "--profile" {
			if i+1 < len(args) {
				i++
				activeProfile = args[i]
			}
			continue
		}
		if v, ok := strings.CutPrefix(args[i], "--profile="); ok {
			activeProfile = v
			continue
		}
		remaining = append(remaining, args[i])
	}
	return remaining
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func orNotSet(s string) string {
	if s == "" {
		return display.Paint(display.Dim, "(not set)")
	}
	return s
}

// friendRef formats a lookup reference for messages: ids as #n, names quoted.
func friendRef(ref string) string {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return "#" + strconv.FormatInt(id, 10)
	}
	return strconv.Quote(ref)
}

// ─── usage ──────────────────────────────────────────────────────────────────

func printUsage() {
	h := func(s string) string { return display.Paint(display.Cyan, s) }
	fmt.Printf(`%s · chat with AI friends from the terminal (v%s)

%s
  friendchat                                            Launch interactive mode (default)
  friendchat [--profile <name>] <command> [arguments]   Run a specific command

%s
  friends                          List friends (pinned first)
  add <name>                       Add a friend
    -m, --model <model>            Model to chat with
    -a, --api <api-id>             API key id to use
  rm <friend>                      Delete a friend (by id or name)
  pin <friend>                     Pin or unpin a friend
  rename <friend> <new name>       Rename a friend
  import [file.yaml]               Add friends from a YAML roster (built-in if omitted)
    -n, --count <count>            Import only the first entries
  export [file.yaml]               Write friends as a YAML roster (stdout if omitted)

%s
  ask <friend> "<message>"         Send one message and stream the reply
    --markdown                     Render the answer as markdown when done

%s
  set endpoint <url>               Chat-completions URL
  set model <model>                Default model for new friends
  set api-id <id>                  Default API id for new friends
  set key <api-id> <secret>        Store an API key
  set storage <json|sqlite>        Friend store backend
  set log-level <level>            trace, debug, info, warn, error
  config                           Show current configuration

%s
  profiles                         List all config profiles
  --profile <name>                 Use a named config profile (default: unnamed)

%s
  friendchat                                   # Start interactive mode
  friendchat add Alice --model doubao-pro --api work
  friendchat set key work sk-xxxxxxxx
  friendchat ask Alice "What should I cook tonight?"
  friendchat --profile home friends

`, display.Paint(display.Bold, "friendchat"), version,
		h("Usage:"), h("Friends:"), h("Chat:"), h("Settings:"), h("Profiles:"), h("Examples:"))
}
