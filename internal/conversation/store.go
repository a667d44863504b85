// Package conversation keeps the client-side view of one chat thread: the
// merged message set, remote typing, pagination state, and the outbox that
// turns composed messages into Transport sends.
package conversation

import (
	"propchat/internal/message"
	"propchat/internal/metrics"
	"propchat/internal/transport"

	"go.uber.org/zap"
)

// Store is the merged message set, kept in chronological order.
//
// Reconciliation: an optimistic message uses its client token as its
// provisional id. When Transport delivers a message carrying the same
// token under a canonical id, the provisional entry is replaced, the higher
// status wins, and the provisional id stays resolvable as an alias.
//
// Store is not safe for concurrent use; Surface serializes access.
type Store struct {
	msgs    []message.Message // oldest first
	aliases map[string]string // provisional id -> canonical id
	tokens  map[string]string // client token -> current id
	log     *zap.Logger
}

// NewStore returns an empty store.
func NewStore(log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		aliases: make(map[string]string),
		tokens:  make(map[string]string),
		log:     log,
	}
}

// Len is the number of messages.
func (s *Store) Len() int { return len(s.msgs) }

// Resolve maps a provisional id to its canonical id.
func (s *Store) Resolve(id string) string {
	if c, ok := s.aliases[id]; ok {
		return c
	}
	return id
}

// Get looks a message up by id or alias.
func (s *Store) Get(id string) (message.Message, bool) {
	if i := s.index(s.Resolve(id)); i >= 0 {
		return s.msgs[i].Clone(), true
	}
	return message.Message{}, false
}

// Chronological returns a copy of the messages, oldest first.
func (s *Store) Chronological() []message.Message {
	out := make([]message.Message, len(s.msgs))
	for i, m := range s.msgs {
		out[i] = m.Clone()
	}
	return out
}

// Display returns a copy of the messages, newest first.
func (s *Store) Display() []message.Message {
	out := make([]message.Message, len(s.msgs))
	for i, m := range s.msgs {
		out[len(s.msgs)-1-i] = m.Clone()
	}
	return out
}

func (s *Store) index(id string) int {
	for i := len(s.msgs) - 1; i >= 0; i-- {
		if s.msgs[i].ID == id {
			return i
		}
	}
	return -1
}

// Upsert merges m into the store. It reports false only when m is dropped.
func (s *Store) Upsert(m message.Message) bool {
	m = m.Clone()
	if m.ID == "" {
		s.log.Warn("dropping message without id", zap.String("client_token", m.ClientToken))
		return false
	}

	if i := s.index(s.Resolve(m.ID)); i >= 0 {
		merged := merge(s.msgs[i], m)
		// a late copy under the provisional id keeps the canonical id
		merged.ID = s.msgs[i].ID
		s.replace(i, merged)
		return true
	}

	if m.ClientToken != "" {
		if prov, ok := s.tokens[m.ClientToken]; ok && prov != m.ID {
			if i := s.index(prov); i >= 0 {
				s.reconcile(i, m)
				return true
			}
		}
		s.tokens[m.ClientToken] = m.ID
	}
	s.insert(m)
	return true
}

// reconcile swaps the provisional entry at i for its canonical version.
func (s *Store) reconcile(i int, canonical message.Message) {
	prov := s.msgs[i]
	merged := merge(prov, canonical)
	merged.ID = canonical.ID

	s.aliases[prov.ID] = canonical.ID
	s.tokens[canonical.ClientToken] = canonical.ID
	s.replace(i, merged)

	s.log.Debug("reconciled provisional message",
		zap.String("provisional", prov.ID),
		zap.String("canonical", canonical.ID),
		zap.String("status", string(merged.Status)))
}

// merge combines what is known about one message. Status never regresses
// and the reply snapshot taken at compose time is kept.
func merge(cur, next message.Message) message.Message {
	status := message.Merge(cur.Status, next.Status)
	out := next
	out.Status = status
	if cur.ReplyTo != nil {
		out.ReplyTo = cur.ReplyTo
	}
	if out.ClientToken == "" {
		out.ClientToken = cur.ClientToken
	}
	if out.Timestamp == "" {
		out.Timestamp = cur.Timestamp
	}
	return out
}

// replace updates the entry at i, moving it if its timestamp changed.
func (s *Store) replace(i int, m message.Message) {
	if s.msgs[i].Timestamp == m.Timestamp {
		s.msgs[i] = m
		return
	}
	s.msgs = append(s.msgs[:i], s.msgs[i+1:]...)
	s.insert(m)
}

// insert places m after the newest message that is not newer than it.
// A message with an unparseable timestamp is appended.
func (s *Store) insert(m message.Message) {
	at := len(s.msgs)
	if t, ok := m.Time(); ok {
		for at > 0 {
			if prev, ok := s.msgs[at-1].Time(); ok && !prev.After(t) {
				break
			}
			at--
		}
	}
	s.msgs = append(s.msgs, message.Message{})
	copy(s.msgs[at+1:], s.msgs[at:])
	s.msgs[at] = m
}

// ApplyStatus merges a status update. It reports whether the message
// changed; stale updates that would regress it are counted and ignored.
func (s *Store) ApplyStatus(u transport.StatusUpdate) bool {
	id := s.Resolve(u.ID)
	i := s.index(id)
	if i < 0 && u.ClientToken != "" {
		if tid, ok := s.tokens[u.ClientToken]; ok {
			i = s.index(tid)
		}
	}
	if i < 0 {
		s.log.Debug("status for unknown message", zap.String("id", u.ID), zap.String("client_token", u.ClientToken))
		return false
	}

	cur := s.msgs[i].Status
	next := message.Merge(cur, u.Status)
	if next == cur {
		if u.Status != cur {
			metrics.StaleStatusUpdates.Inc()
			s.log.Debug("ignoring stale status",
				zap.String("id", s.msgs[i].ID),
				zap.String("current", string(cur)),
				zap.String("incoming", string(u.Status)))
		}
		return false
	}
	s.msgs[i].Status = next
	metrics.StatusTransitions.WithLabelValues(string(next)).Inc()
	return true
}

// Remove deletes a message by id or alias.
func (s *Store) Remove(id string) bool {
	i := s.index(s.Resolve(id))
	if i < 0 {
		return false
	}
	if tok := s.msgs[i].ClientToken; tok != "" {
		delete(s.tokens, tok)
	}
	s.msgs = append(s.msgs[:i], s.msgs[i+1:]...)
	return true
}

// ApplySnapshot replaces the server-known messages with msgs. Local
// messages still sending or failed, whose token the snapshot does not
// contain, are kept. Statuses already known locally do not regress.
func (s *Store) ApplySnapshot(msgs []message.Message) {
	old := s.msgs
	oldByID := make(map[string]message.Message, len(old))
	for _, m := range old {
		oldByID[m.ID] = m
	}

	s.msgs = nil
	seen := make(map[string]bool, len(msgs))
	for _, m := range msgs {
		prev, ok := oldByID[s.Resolve(m.ID)]
		if m.ClientToken != "" {
			seen[m.ClientToken] = true
			if pid, found := s.tokens[m.ClientToken]; !ok && found {
				prev, ok = oldByID[pid]
			}
		}
		if ok {
			if prev.ID != m.ID {
				s.aliases[prev.ID] = m.ID
			}
			m = merge(prev, m)
		}
		s.Upsert(m)
	}

	for _, m := range old {
		if !isLocalOnly(m) || seen[m.ClientToken] {
			continue
		}
		if s.index(m.ID) < 0 {
			s.insert(m)
		}
	}

	for tok, id := range s.tokens {
		if s.index(id) < 0 {
			delete(s.tokens, tok)
		}
	}
}

// isLocalOnly reports whether m exists only on this client: it was composed
// here and never acknowledged.
func isLocalOnly(m message.Message) bool {
	if m.ClientToken == "" || m.ClientToken != m.ID {
		return false
	}
	return m.Status == message.StatusSending || m.Status == message.StatusFailed
}

// AppendPage merges an older page.
func (s *Store) AppendPage(msgs []message.Message) {
	for _, m := range msgs {
		s.Upsert(m)
	}
}
