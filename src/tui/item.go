package tui

import (
	"fmt"

	"bkfetch/src/snapshot"
)

// Item is one captured step in the list. It implements bubbles/list.Item.
type Item struct {
	Step snapshot.StepEntry
}

// FilterValue is the value used for fuzzy filtering.
func (i Item) FilterValue() string { return i.Step.Label }

// Title returns the primary text for the item (required by list.Item).
func (i Item) Title() string { return i.Step.Label }

// Description returns the secondary text for the item (required by list.Item).
func (i Item) Description() string { return i.Step.ID }

// ExitText renders the exit status, or "-" when the job has none yet.
func (i Item) ExitText() string {
	if i.Step.ExitStatus == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *i.Step.ExitStatus)
}

// Captured reports whether the step's log is on disk.
func (i Item) Captured() bool {
	return i.Step.FetchStatus == snapshot.FetchSuccess
}

func itemsFromManifest(m *snapshot.Manifest) []Item {
	items := make([]Item, len(m.Steps))
	for i, s := range m.Steps {
		items[i] = Item{Step: s}
	}
	return items
}
