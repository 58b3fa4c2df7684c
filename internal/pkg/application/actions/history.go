package actions

import (
	"sync"

	"github.com/freddez/eplumber/pkg/types"
)

const historyCapacity = 100

// History is the action-history ring buffer: capacity 100, oldest
// evicted first, guarded by a single mutex — mirroring the
// window-buffer discipline used by the sensor package's base type.
type History struct {
	mu      sync.Mutex
	entries []types.ActionHistoryEntry
}

func NewHistory() *History {
	return &History{entries: make([]types.ActionHistoryEntry, 0, historyCapacity)}
}

// Append records entry, evicting the oldest record once the ring is
// full.
func (h *History) Append(entry types.ActionHistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, entry)
	if len(h.entries) > historyCapacity {
		h.entries = h.entries[len(h.entries)-historyCapacity:]
	}
}

// Entries returns the recorded history, oldest first.
func (h *History) Entries() []types.ActionHistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]types.ActionHistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}
