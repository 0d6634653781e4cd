package hub

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/shootingstars/internal/rpc"
)

type docKey struct {
	collection string
	key        string
}

// sentDoc is the client's copy of one record: the full body it was derived
// from and the projected fields the client holds.
type sentDoc struct {
	doc    map[string]any
	fields map[string]any
}

type subscription struct {
	id      string
	name    string
	cursors []rpc.Cursor
}

// Session is one client's view of the store: its subscriptions and the records
// it has been sent.
type Session struct {
	ID     uuid.UUID
	Caller rpc.Caller

	out    chan Message
	done   chan struct{}
	closer sync.Once

	mu   sync.Mutex
	subs map[string]*subscription
	// sent tracks what the client holds for each record, so a change that hides
	// a record or narrows its projection can be turned into removed or cleared
	// fields.
	sent map[docKey]sentDoc
}

func newSession(c rpc.Caller, buffer int) *Session {
	return &Session{
		ID:     c.ConnID,
		Caller: c,
		out:    make(chan Message, buffer),
		done:   make(chan struct{}),
		subs:   make(map[string]*subscription),
		sent:   make(map[docKey]sentDoc),
	}
}

// Out yields messages queued for the client.
func (s *Session) Out() <-chan Message { return s.out }

// Done is closed once the session has been dropped.
func (s *Session) Done() <-chan struct{} { return s.done }

// Send queues msg without blocking. It reports false when the session's queue
// is full or the session is already closed.
func (s *Session) Send(msg Message) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.out <- msg:
		return true
	default:
		return false
	}
}

func (s *Session) close() {
	s.closer.Do(func() { close(s.done) })
}

// fieldsFor merges the projections of every cursor that shows the record.
// ok is false when no subscription shows it.
func (s *Session) fieldsFor(collection, key string, doc map[string]any) (map[string]any, bool) {
	var fields map[string]any
	for _, sub := range s.subs {
		for _, cur := range sub.cursors {
			if cur.Collection != collection || !cur.Visible(key, doc) {
				continue
			}
			if fields == nil {
				fields = make(map[string]any)
			}
			for k, v := range cur.Project(doc) {
				fields[k] = v
			}
		}
	}
	return fields, fields != nil
}

// diff produces the message that moves the client's copy of the record to doc,
// or false when nothing needs sending. Fields the client holds that no cursor
// projects any more are listed in Cleared. Must be called with s.mu held.
func (s *Session) diff(collection, key string, doc map[string]any) (Message, bool) {
	dk := docKey{collection, key}
	prev, known := s.sent[dk]
	fields, visible := s.fieldsFor(collection, key, doc)
	switch {
	case visible && !known:
		s.sent[dk] = sentDoc{doc: doc, fields: fields}
		return Message{Msg: MsgAdded, Collection: collection, ID: key, Fields: fields}, true
	case visible && known:
		s.sent[dk] = sentDoc{doc: doc, fields: fields}
		return Message{Msg: MsgChanged, Collection: collection, ID: key, Fields: fields, Cleared: cleared(prev.fields, fields)}, true
	case !visible && known:
		delete(s.sent, dk)
		return Message{Msg: MsgRemoved, Collection: collection, ID: key}, true
	}
	return Message{}, false
}

func cleared(before, after map[string]any) []string {
	var out []string
	for k := range before {
		if _, ok := after[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// subscriptionCount reports how many subscriptions are live.
func (s *Session) subscriptionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
