package hub

import "github.com/AleutianAI/huddle/datatypes"

// DefaultHistoryCapacity bounds the in-memory message history.
const DefaultHistoryCapacity = 1000

// History is a bounded, ordered log of message events. On overflow the
// oldest entry is evicted. It is owned by the hub's event loop and needs
// no locking.
type History struct {
	entries  []datatypes.Message
	capacity int
}

// NewHistory creates an empty history. A non-positive capacity falls back
// to DefaultHistoryCapacity.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &History{
		entries:  make([]datatypes.Message, 0, capacity),
		capacity: capacity,
	}
}

// Append adds a message, evicting the oldest entry if the buffer is full.
func (h *History) Append(msg datatypes.Message) {
	if len(h.entries) >= h.capacity {
		// Shift instead of reslicing so the backing array does not grow
		// without bound.
		copy(h.entries, h.entries[1:])
		h.entries[len(h.entries)-1] = msg
		return
	}
	h.entries = append(h.entries, msg)
}

// Recent returns the last n entries in order. n larger than the buffer
// returns everything; n below zero returns nothing.
func (h *History) Recent(n int) []datatypes.Message {
	if n < 0 {
		n = 0
	}
	if n > len(h.entries) {
		n = len(h.entries)
	}
	out := make([]datatypes.Message, n)
	copy(out, h.entries[len(h.entries)-n:])
	return out
}

// Filter returns the entries matching pred, in order.
func (h *History) Filter(pred func(datatypes.Message) bool) []datatypes.Message {
	var out []datatypes.Message
	for _, msg := range h.entries {
		if pred(msg) {
			out = append(out, msg)
		}
	}
	return out
}

// CountWhere returns the number of entries matching pred.
func (h *History) CountWhere(pred func(datatypes.Message) bool) int {
	count := 0
	for _, msg := range h.entries {
		if pred(msg) {
			count++
		}
	}
	return count
}

// Len returns the current number of entries.
func (h *History) Len() int { return len(h.entries) }
