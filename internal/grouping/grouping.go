// Package grouping derives per-message rendering facts (avatar visibility,
// bubble shape, date separators) from message adjacency.
//
// The conversation list is displayed newest-first while grouping reasons in
// conversational order. Timeline is the only place that inversion happens:
// build it from the display slice with Chronological and address messages
// either by chronological index (Facts) or by display index (DisplayFacts).
package grouping

import (
	"time"

	"propchat/internal/message"
)

// Facts are the rendering decisions for one message.
type Facts struct {
	Own                bool
	ShowAvatar         bool
	PreviousSameSender bool
	NextSameSender     bool
	ShowDateSeparator  bool
	Corners            Corners

	// Date is the calendar day used for the separator; DateKnown is false
	// when the timestamp could not be parsed.
	Date      time.Time
	DateKnown bool
}

// Options control how facts are derived.
type Options struct {
	CurrentUserID string
	// Location decides calendar-day boundaries. Nil means time.Local.
	Location *time.Location
}

// Timeline is a chronological (oldest-first) view over a conversation.
type Timeline struct {
	msgs []message.Message
	opts Options
	// newestBySender maps sender id to the chronological index of their
	// latest message.
	newestBySender map[string]int
}

// Chronological builds a Timeline from a newest-first display slice.
func Chronological(display []message.Message, opts Options) Timeline {
	msgs := make([]message.Message, len(display))
	for i, m := range display {
		msgs[len(display)-1-i] = m
	}
	return newTimeline(msgs, opts)
}

// FromChronological builds a Timeline from an oldest-first slice.
func FromChronological(msgs []message.Message, opts Options) Timeline {
	cp := make([]message.Message, len(msgs))
	copy(cp, msgs)
	return newTimeline(cp, opts)
}

func newTimeline(msgs []message.Message, opts Options) Timeline {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	newest := make(map[string]int, 8)
	for i, m := range msgs {
		newest[m.SenderID] = i
	}
	return Timeline{msgs: msgs, opts: opts, newestBySender: newest}
}

// Len returns the number of messages.
func (t Timeline) Len() int { return len(t.msgs) }

// At returns the message at chronological index i.
func (t Timeline) At(i int) message.Message { return t.msgs[i] }

// DisplayIndex converts a chronological index to a newest-first index and
// back; the mapping is its own inverse.
func (t Timeline) DisplayIndex(i int) int { return len(t.msgs) - 1 - i }

// DisplayFacts returns facts for the message at newest-first index i.
func (t Timeline) DisplayFacts(i int) Facts {
	return t.Facts(t.DisplayIndex(i))
}

// Facts returns facts for the message at chronological index i. Out of
// range indices yield zero Facts.
func (t Timeline) Facts(i int) Facts {
	if i < 0 || i >= len(t.msgs) {
		return Facts{}
	}
	cur := t.msgs[i]

	var f Facts
	f.Own = cur.IsOwn(t.opts.CurrentUserID)

	if i > 0 {
		f.PreviousSameSender = t.msgs[i-1].SenderID == cur.SenderID
	}
	if i+1 < len(t.msgs) {
		f.NextSameSender = t.msgs[i+1].SenderID == cur.SenderID
	}

	if !f.Own {
		f.ShowAvatar = !f.PreviousSameSender || t.newestBySender[cur.SenderID] == i
	}

	f.Corners = BubbleCorners(f.Own, f.PreviousSameSender, f.NextSameSender)

	f.Date, f.DateKnown = t.day(i)
	f.ShowDateSeparator = t.separatorBefore(i, f.Date, f.DateKnown)

	return f
}

func (t Timeline) day(i int) (time.Time, bool) {
	ts, ok := t.msgs[i].TimeIn(t.opts.Location)
	if !ok {
		return time.Time{}, false
	}
	y, m, d := ts.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.opts.Location), true
}

func (t Timeline) separatorBefore(i int, day time.Time, known bool) bool {
	if i == 0 || !known {
		return true
	}
	prev, ok := t.day(i - 1)
	if !ok {
		return true
	}
	return !prev.Equal(day)
}

// All returns facts for every message in chronological order.
func (t Timeline) All() []Facts {
	out := make([]Facts, len(t.msgs))
	for i := range t.msgs {
		out[i] = t.Facts(i)
	}
	return out
}
