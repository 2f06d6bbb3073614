package directory

import (
	"slices"
	"strings"
)

// Item is one selectable directory entry
type Item struct {
	Label string `json:"label"`
	ID    string `json:"id"`
}

// Assignment is the prior assignment recorded for an asset. Empty fields were
// not present in the directory.
type Assignment struct {
	ResponsibleLabel string `json:"responsible_label,omitempty"`
	RoomID           string `json:"room_id,omitempty"`
}

// IsZero reports whether nothing was found
func (a Assignment) IsZero() bool {
	return a.ResponsibleLabel == "" && a.RoomID == ""
}

// FindByID returns the index of the item with the given id, or -1
func FindByID(items []Item, id string) int {
	return slices.IndexFunc(items, func(it Item) bool { return it.ID == id })
}

// FindByLabel returns the index of the item whose label matches
// case-insensitively, or -1
func FindByLabel(items []Item, label string) int {
	return slices.IndexFunc(items, func(it Item) bool { return strings.EqualFold(it.Label, label) })
}

// sortByLabel orders items by label, keeping directory order for equal labels
func sortByLabel(items []Item) {
	slices.SortStableFunc(items, func(a, b Item) int { return strings.Compare(a.Label, b.Label) })
}

// dedupe keeps the first item for each id
func dedupe(items []Item) []Item {
	seen := make(map[string]bool, len(items))
	out := items[:0]
	for _, it := range items {
		if seen[it.ID] {
			continue
		}
		seen[it.ID] = true
		out = append(out, it)
	}
	return out
}
