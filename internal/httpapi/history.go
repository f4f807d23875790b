package httpapi

import "github.com/TheKrainBow/mnk/engine"

type HistoryEntry struct {
	Move      engine.Move `json:"move"`
	Side      engine.Cell `json:"side"`
	ElapsedMs float64     `json:"elapsed_ms"`
	IsAI      bool        `json:"is_ai"`
	Depth     int         `json:"depth,omitempty"`
	Score     int         `json:"score,omitempty"`
}

type MoveHistory struct {
	entries []HistoryEntry
}

func (h *MoveHistory) Push(entry HistoryEntry) {
	h.entries = append(h.entries, entry)
}

func (h MoveHistory) Last() (HistoryEntry, bool) {
	if len(h.entries) == 0 {
		return HistoryEntry{}, false
	}
	return h.entries[len(h.entries)-1], true
}

func (h MoveHistory) All() []HistoryEntry {
	return append([]HistoryEntry(nil), h.entries...)
}
