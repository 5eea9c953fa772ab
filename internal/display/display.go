package display

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
)

const (
	Reset   = "\033[0m"
	Bold    = "\033[1m"
	Dim     = "\033[2m"
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
	White   = "\033[37m"
	Gray    = "\033[90m"
)

var (
	Out    io.Writer = os.Stdout
	ErrOut io.Writer = os.Stderr

	color = detectColor(os.Stdout)
)

// detectColor reports whether f is a terminal and NO_COLOR is unset.
func detectColor(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// SetColor forces ANSI styling on or off.
func SetColor(on bool) { color = on }

func ColorEnabled() bool { return color }

// Paint wraps s in code when color is enabled.
func Paint(code, s string) string {
	if !color || s == "" {
		return s
	}
	return code + s + Reset
}

func Header(text string) {
	fmt.Fprintf(Out, "\n%s\n", Paint(Bold+Cyan, text))
	fmt.Fprintln(Out, strings.Repeat("─", min(len(text)+4, 80)))
}

func SubHeader(text string) {
	fmt.Fprintln(Out, Paint(Bold+White, text))
}

func Success(text string) {
	fmt.Fprintf(Out, "%s %s\n", Paint(Green, "✓"), text)
}

func Error(text string) {
	fmt.Fprintf(ErrOut, "%s %s\n", Paint(Red, "✗"), text)
}

func Warn(text string) {
	fmt.Fprintf(Out, "%s %s\n", Paint(Yellow, "!"), text)
}

func Info(label, value string) {
	fmt.Fprintf(Out, "  %s %s\n", Paint(Dim, fmt.Sprintf("%-20s", label)), value)
}

func Spinner(text string) {
	if !color {
		return
	}
	fmt.Fprintf(Out, "\r%s %s", Paint(Yellow, "⟳"), text)
}

func ClearLine() {
	if !color {
		return
	}
	fmt.Fprint(Out, "\r\033[K")
}

// FormatTimestamp renders a millisecond Unix timestamp in local time.
func FormatTimestamp(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04:05")
}

// MaskSecret keeps the last four characters of a credential.
func MaskSecret(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}
