package tui

// DefaultTooltipLift is how far above an element's top edge a tooltip sits.
const DefaultTooltipLift = 10

// Rect is the bounding box of an element.
type Rect struct {
	Left, Top, Right, Bottom int
}

// Tooltip is a hover hint with two states: hidden, or shown at a position.
type Tooltip struct {
	Text string
	Lift int

	shown bool
	x, y  int
}

func NewTooltip(text string) *Tooltip {
	return &Tooltip{Text: text, Lift: DefaultTooltipLift}
}

// Enter shows the tooltip to the right of rect, Lift above its top edge,
// offset by the current scroll position.
func (t *Tooltip) Enter(rect Rect, scrollX, scrollY int) {
	t.shown = true
	t.x = rect.Right + scrollX
	t.y = rect.Top + scrollY - t.Lift
}

// Leave hides the tooltip. It is a no-op when already hidden.
func (t *Tooltip) Leave() {
	if !t.shown {
		return
	}
	t.shown = false
}

// Position reports where the tooltip is drawn and whether it is shown.
func (t *Tooltip) Position() (x, y int, shown bool) {
	if !t.shown {
		return 0, 0, false
	}
	return t.x, t.y, true
}

func (t *Tooltip) Shown() bool { return t.shown }
