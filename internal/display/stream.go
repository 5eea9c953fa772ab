package display

import (
	"fmt"
	"io"
)

// StreamPrinter writes a two-channel reply as it arrives. Reasoning is shown
// dimmed under a "thinking" label, the answer under the friend's name.
type StreamPrinter struct {
	w    io.Writer
	name string

	inReasoning bool
	inAnswer    bool
	lastByte    byte
}

func NewStreamPrinter(w io.Writer, name string) *StreamPrinter {
	return &StreamPrinter{w: w, name: name}
}

// Reasoning prints a reasoning fragment.
func (p *StreamPrinter) Reasoning(text string) {
	if text == "" {
		return
	}
	if !p.inReasoning {
		p.breakLine()
		fmt.Fprintln(p.w, Paint(Magenta, "💭 thinking"))
		p.inReasoning = true
		p.inAnswer = false
	}
	p.write(Paint(Dim, text), text)
}

// Answer prints an answer fragment.
func (p *StreamPrinter) Answer(text string) {
	if text == "" {
		return
	}
	if !p.inAnswer {
		p.breakLine()
		if p.inReasoning {
			fmt.Fprintln(p.w)
		}
		fmt.Fprintln(p.w, Paint(Bold+Green, p.name+":"))
		p.inAnswer = true
		p.inReasoning = false
	}
	p.write(text, text)
}

// Fail prints a failure line.
func (p *StreamPrinter) Fail(msg string) {
	p.breakLine()
	fmt.Fprintln(p.w, Paint(Red, msg))
}

// Finish terminates the last line.
func (p *StreamPrinter) Finish() {
	p.breakLine()
}

func (p *StreamPrinter) write(styled, raw string) {
	fmt.Fprint(p.w, styled)
	p.lastByte = raw[len(raw)-1]
}

func (p *StreamPrinter) breakLine() {
	if p.lastByte != 0 && p.lastByte != '\n' {
		fmt.Fprintln(p.w)
	}
	p.lastByte = 0
}
