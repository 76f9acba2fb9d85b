package query

import (
	"sync"
	"time"
)

type HistoryEntry struct {
	SQL        string
	JobID      string
	Rows       int
	ExecutedAt time.Time
	Duration   time.Duration
}

// History keeps the statements executed during the life of the process. It is
// never persisted. When full, the oldest entry is evicted.
type History struct {
	mu      sync.Mutex
	limit   int
	entries []HistoryEntry
}

func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = 100
	}
	return &History{limit: limit}
}

func (h *History) Record(entry HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) == h.limit {
		copy(h.entries, h.entries[1:])
		h.entries = h.entries[:len(h.entries)-1]
	}
	h.entries = append(h.entries, entry)
}

// List returns a copy of the entries, oldest first.
func (h *History) List() []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]HistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}
