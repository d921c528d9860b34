package tui

import (
	"strings"

	"bkfetch/src/snapshot"
)

// applyFilter filters items by capture status and search query.
func (m *MainModel) applyFilter() {
	var filtered []Item
	for _, item := range m.items {
		if m.header.Filter() == FilterFailed && !failedItem(item) {
			continue
		}
		if !matchesQuery(item, m.searchQuery) {
			continue
		}
		filtered = append(filtered, item)
	}

	m.listView.SetItems(filtered)
	if selectedItem, ok := m.listView.GetSelectedItem(); ok {
		m.updateDetailContent(selectedItem)
	} else {
		m.detailViewport.SetContent("")
	}
}

// failedItem reports whether a step failed or could not be captured.
func failedItem(item Item) bool {
	if item.Step.FetchStatus != snapshot.FetchSuccess {
		return true
	}
	return item.Step.ExitStatus != nil && *item.Step.ExitStatus != 0
}

func matchesQuery(item Item, query string) bool {
	if query == "" {
		return true
	}
	query = strings.ToLower(query)
	for _, field := range []string{item.Step.Label, item.Step.State, item.Step.ID, item.Step.JobID} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}
