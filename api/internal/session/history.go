package session

import "alpd/api/internal/plate"

// HistoryCapacity — how many recent results a session keeps.
const HistoryCapacity = 6

// History is a bounded most-recent-first list. Not safe for concurrent use on its own;
// Session guards it with its mutex.
type History struct {
	items []plate.HistoryItem
}

// Add prepends item and drops everything past HistoryCapacity.
func (h *History) Add(item plate.HistoryItem) {
	next := make([]plate.HistoryItem, 0, HistoryCapacity)
	next = append(next, item)
	next = append(next, h.items...)
	if len(next) > HistoryCapacity {
		next = next[:HistoryCapacity]
	}
	h.items = next
}

// Items returns a copy, newest first.
func (h *History) Items() []plate.HistoryItem {
	out := make([]plate.HistoryItem, len(h.items))
	copy(out, h.items)
	return out
}

func (h *History) Get(id string) (plate.HistoryItem, bool) {
	for _, it := range h.items {
		if it.ID == id {
			return it, true
		}
	}
	return plate.HistoryItem{}, false
}

func (h *History) Len() int { return len(h.items) }
