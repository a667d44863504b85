package transport

import (
	"propchat/internal/message"
)

// DefaultPageSize is the number of messages per snapshot or page.
const DefaultPageSize = 30

// history is the server-side message log behind an adapter, exposed to the
// client through a window that grows one page at a time. Not safe for
// concurrent use.
type history struct {
	msgs     []message.Message // arrival order, oldest first
	window   int               // how many of the newest messages the client has seen
	pageSize int
}

func newHistory(pageSize int) *history {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &history{pageSize: pageSize, window: pageSize}
}

func (h *history) index(id string) int {
	for i := len(h.msgs) - 1; i >= 0; i-- {
		if h.msgs[i].ID == id {
			return i
		}
	}
	return -1
}

func (h *history) find(id string) (message.Message, bool) {
	if i := h.index(id); i >= 0 {
		return h.msgs[i], true
	}
	return message.Message{}, false
}

// add appends m, or replaces the entry with the same id. A new message
// widens the window so that older pages keep their boundaries.
func (h *history) add(m message.Message) {
	if i := h.index(m.ID); i >= 0 {
		h.msgs[i] = m
		return
	}
	h.msgs = append(h.msgs, m)
	h.window++
}

func (h *history) remove(id string) bool {
	i := h.index(id)
	if i < 0 {
		return false
	}
	h.msgs = append(h.msgs[:i], h.msgs[i+1:]...)
	if h.window > 0 && len(h.msgs)-i < h.window {
		h.window--
	}
	return true
}

// setStatus merges status into the message and reports whether it changed.
func (h *history) setStatus(id string, status message.Status) (message.Message, bool) {
	i := h.index(id)
	if i < 0 {
		return message.Message{}, false
	}
	next := message.Merge(h.msgs[i].Status, status)
	if next == h.msgs[i].Status {
		return h.msgs[i], false
	}
	h.msgs[i].Status = next
	return h.msgs[i], true
}

// snapshot resets the window to one page and returns it newest-first.
func (h *history) snapshot() Conversation {
	h.window = h.pageSize
	return Conversation{
		Messages: h.newestFirst(max(0, len(h.msgs)-h.window), len(h.msgs)),
		HasMore:  len(h.msgs) > h.window,
	}
}

// more widens the window by one page and returns only the newly exposed
// older messages, newest-first.
func (h *history) more() Conversation {
	hi := max(0, len(h.msgs)-h.window)
	h.window += h.pageSize
	lo := max(0, len(h.msgs)-h.window)
	return Conversation{
		Messages: h.newestFirst(lo, hi),
		HasMore:  lo > 0,
	}
}

func (h *history) newestFirst(lo, hi int) []message.Message {
	out := make([]message.Message, 0, hi-lo)
	for i := hi - 1; i >= lo; i-- {
		out = append(out, h.msgs[i].Clone())
	}
	return out
}
