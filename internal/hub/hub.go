package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/shootingstars/internal/metrics"
	"github.com/jason-s-yu/shootingstars/internal/rpc"
	"github.com/jason-s-yu/shootingstars/internal/schema"
	"github.com/jason-s-yu/shootingstars/internal/store"
	"github.com/sirupsen/logrus"
)

// DefaultBuffer is the number of messages a session may fall behind before it
// is dropped.
const DefaultBuffer = 256

// Hub tracks every connected session and implements store.Notifier.
type Hub struct {
	registry *rpc.Registry
	store    *store.StateStore
	logger   *logrus.Logger
	buffer   int

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

// Option configures a Hub.
type Option func(*Hub)

// WithBuffer sets the per-session queue length.
func WithBuffer(n int) Option {
	return func(h *Hub) { h.buffer = n }
}

// New returns a hub resolving subscriptions through registry and reading initial
// snapshots from st. The caller registers the hub as a notifier on st.
func New(registry *rpc.Registry, st *store.StateStore, logger *logrus.Logger, opts ...Option) *Hub {
	h := &Hub{
		registry: registry,
		store:    st,
		logger:   logger,
		buffer:   DefaultBuffer,
		sessions: make(map[uuid.UUID]*Session),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Connect registers a session for c.
func (h *Hub) Connect(c rpc.Caller) *Session {
	s := newSession(c, h.buffer)
	h.mu.Lock()
	h.sessions[s.ID] = s
	h.mu.Unlock()
	metrics.ActiveSessions.Inc()
	return s
}

// Disconnect forgets s and all of its subscriptions.
func (h *Hub) Disconnect(s *Session) {
	h.mu.Lock()
	_, ok := h.sessions[s.ID]
	delete(h.sessions, s.ID)
	h.mu.Unlock()
	if !ok {
		return
	}
	metrics.ActiveSessions.Dec()

	s.mu.Lock()
	for _, sub := range s.subs {
		metrics.ActiveSubscriptions.WithLabelValues(sub.name).Dec()
	}
	s.subs = map[string]*subscription{}
	s.sent = map[docKey]sentDoc{}
	s.mu.Unlock()
	s.close()
}

// Sessions reports how many sessions are connected.
func (h *Hub) Sessions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *Hub) drop(s *Session, reason string) {
	h.logger.WithFields(logrus.Fields{
		"session": s.ID,
		"remote":  s.Caller.RemoteAddr,
	}).Warnf("Dropping sync session: %s", reason)
	metrics.DroppedSessions.Inc()
	s.close()
}

// Reply queues msg for s like any pushed change: a session that cannot take it
// is dropped rather than left waiting for a reply that never comes.
func (h *Hub) Reply(s *Session, msg Message) {
	h.send(s, msg)
}

func (h *Hub) send(s *Session, msg Message) {
	if s.Send(msg) {
		return
	}
	select {
	case <-s.done:
	default:
		h.drop(s, "outbound queue full")
	}
}

// Subscribe starts subscription id on s. The current records are queued as
// added messages followed by ready. A failed subscription is answered with
// nosub and its error is also returned.
func (h *Hub) Subscribe(ctx context.Context, s *Session, id, name string, params []json.RawMessage) error {
	cursors, err := h.registry.Subscribe(ctx, s.Caller, name, params)
	if err == nil && id == "" {
		err = &schema.Violation{Path: "id", Reason: "is required"}
	}
	if err != nil {
		h.send(s, Message{Msg: MsgNoSub, ID: id, Error: rpc.WireError(err)})
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.subs[id]; dup {
		err := &schema.Violation{Path: "id", Reason: fmt.Sprintf("%q is already subscribed", id)}
		h.send(s, Message{Msg: MsgNoSub, ID: id, Error: rpc.WireError(err)})
		return err
	}
	s.subs[id] = &subscription{id: id, name: name, cursors: cursors}
	metrics.ActiveSubscriptions.WithLabelValues(name).Inc()

	for _, cur := range cursors {
		docs, err := h.store.List(ctx, cur.Collection)
		if err != nil {
			return h.failSubscription(s, id, fmt.Errorf("snapshot %s: %w", cur.Collection, err))
		}
		for _, d := range docs {
			doc, err := decodeDoc(d.Body)
			if err != nil {
				return h.failSubscription(s, id, fmt.Errorf("snapshot %s/%s: %w", d.Collection, d.Key, err))
			}
			if msg, ok := s.diff(d.Collection, d.Key, doc); ok {
				h.send(s, msg)
			}
		}
	}
	h.send(s, Message{Msg: MsgReady, Subs: []string{id}})
	return nil
}

// failSubscription unwinds a subscription whose snapshot failed. Must be called
// with s.mu held.
func (h *Hub) failSubscription(s *Session, id string, err error) error {
	if sub, ok := s.subs[id]; ok {
		delete(s.subs, id)
		metrics.ActiveSubscriptions.WithLabelValues(sub.name).Dec()
	}
	h.logger.WithError(err).Errorf("Subscription %s failed for session %s", id, s.ID)
	h.send(s, Message{Msg: MsgNoSub, ID: id, Error: rpc.WireError(err)})
	return err
}

// Unsubscribe stops subscription id. Records no longer shown by any remaining
// subscription are removed from the client, records still shown with fewer
// fields have the rest cleared, then nosub confirms the stop.
func (h *Hub) Unsubscribe(s *Session, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if ok {
		delete(s.subs, id)
		metrics.ActiveSubscriptions.WithLabelValues(sub.name).Dec()
		for dk, sd := range s.sent {
			msg, ok := s.diff(dk.collection, dk.key, sd.doc)
			if ok && (msg.Msg == MsgRemoved || len(msg.Cleared) > 0) {
				h.send(s, msg)
			}
		}
	}
	h.send(s, Message{Msg: MsgNoSub, ID: id})
}

// Notify pushes ch to every session with a subscription that shows the record.
func (h *Hub) Notify(_ context.Context, ch store.Change) {
	doc, err := decodeDoc(ch.Body)
	if err != nil {
		h.logger.WithError(err).Errorf("Undecodable change for %s/%s", ch.Collection, ch.Key)
		return
	}

	h.mu.RLock()
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	for _, s := range sessions {
		s.mu.Lock()
		if prev, ok := s.sent[docKey{ch.Collection, ch.Key}]; ok && reflect.DeepEqual(prev.doc, doc) {
			s.mu.Unlock()
			continue
		}
		if msg, ok := s.diff(ch.Collection, ch.Key, doc); ok {
			h.send(s, msg)
		}
		s.mu.Unlock()
	}
}

var errNotObject = errors.New("record is not a JSON object")

func decodeDoc(body json.RawMessage) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, errNotObject
	}
	return doc, nil
}
