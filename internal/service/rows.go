package service

// FriendDisplay holds display-ready friend info.
type FriendDisplay struct {
	ID          int64
	Name        string
	Description string
	Model       string
	APIID       string
	PinIcon     string
	Pinned      bool
	Selected    bool
}

// FormatFriendRow maps a Friend to a display-ready struct.
func FormatFriendRow(f Friend, selectedID int64) FriendDisplay {
	name := f.Name
	if name == "" {
		name = "(unnamed)"
	}

	pinIcon := " "
	if f.IsPinned {
		pinIcon = "📌"
	}

	return FriendDisplay{
		ID:          f.ID,
		Name:        name,
		Description: f.Description,
		Model:       f.ModelName,
		APIID:       f.APIID,
		PinIcon:     pinIcon,
		Pinned:      f.IsPinned,
		Selected:    f.ID != 0 && f.ID == selectedID,
	}
}

// FormatFriendRows formats a whole list in order.
func FormatFriendRows(list []Friend, selectedID int64) []FriendDisplay {
	rows := make([]FriendDisplay, len(list))
	for i, f := range list {
		rows[i] = FormatFriendRow(f, selectedID)
	}
	return rows
}
