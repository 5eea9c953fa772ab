package tui

// ContextMenu is the per-friend action menu. X and Y are the terminal cell
// the menu is anchored at.
type ContextMenu struct {
	Show     bool
	X, Y     int
	TargetID int64
}

// Open shows the menu at (x, y) for the friend id.
func (c *ContextMenu) Open(x, y int, id int64) {
	*c = ContextMenu{Show: true, X: x, Y: y, TargetID: id}
}

// Close hides the menu. Position and target are kept.
func (c *ContextMenu) Close() {
	c.Show = false
}
