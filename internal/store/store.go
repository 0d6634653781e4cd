// internal/store/store.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned by a Backend when no document exists for a key.
var ErrNotFound = errors.New("record not found")

// Document is one stored record.
type Document struct {
	Collection string
	Key        string
	Body       json.RawMessage
	UpdatedAt  time.Time
}

// Backend persists whole documents. A Save replaces the previous body for the
// same collection and key; there is no partial update.
type Backend interface {
	Load(ctx context.Context, collection, key string) (Document, error)
	Save(ctx context.Context, doc Document) error
	List(ctx context.Context, collection string) ([]Document, error)
	Close() error
}

// Change is emitted once for every committed upsert.
type Change struct {
	Collection string
	Key        string
	Body       json.RawMessage
	UpdatedAt  time.Time
}

// Notifier receives committed changes. Notify must not block for long; it runs
// on the writer's goroutine after the write has been committed.
type Notifier interface {
	Notify(ctx context.Context, ch Change)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, ch Change)

func (f NotifierFunc) Notify(ctx context.Context, ch Change) { f(ctx, ch) }

// StateStore is the process-wide owner of every state record. It layers the
// read-modify-write upsert protocol and change notification over a Backend.
//
// Upserts to the same collection and key are serialized inside this process.
// Separate processes sharing one database still race last-write-wins.
type StateStore struct {
	backend   Backend
	notifiers []Notifier
	logger    *logrus.Logger
	now       func() time.Time

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// Option configures a StateStore.
type Option func(*StateStore)

// WithNotifier registers n to receive committed changes.
func WithNotifier(n Notifier) Option {
	return func(s *StateStore) { s.notifiers = append(s.notifiers, n) }
}

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *StateStore) { s.now = now }
}

// WithLogger sets the logger used for store diagnostics.
func WithLogger(l *logrus.Logger) Option {
	return func(s *StateStore) { s.logger = l }
}

// New returns a StateStore over backend.
func New(backend Backend, opts ...Option) *StateStore {
	s := &StateStore{
		backend: backend,
		logger:  logrus.StandardLogger(),
		now:     time.Now,
		locks:   make(map[string]*sync.Mutex),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// AddNotifier registers n after construction, for components built later.
func (s *StateStore) AddNotifier(n Notifier) {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	s.notifiers = append(s.notifiers, n)
}

// Now returns the store's current time.
func (s *StateStore) Now() time.Time {
	return s.now()
}

// Backend exposes the underlying backend.
func (s *StateStore) Backend() Backend {
	return s.backend
}

// Close closes the backend.
func (s *StateStore) Close() error {
	return s.backend.Close()
}

func (s *StateStore) keyLock(collection, key string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	id := collection + "/" + key
	m, ok := s.locks[id]
	if !ok {
		m = &sync.Mutex{}
		s.locks[id] = m
	}
	return m
}

func (s *StateStore) snapshotNotifiers() []Notifier {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	out := make([]Notifier, len(s.notifiers))
	copy(out, s.notifiers)
	return out
}

// Upsert reads the record at collection/key, or def() when none exists, applies
// mutate and writes the result back. If mutate returns an error nothing is
// written. The committed record is returned and announced to every notifier.
func Upsert[T any](ctx context.Context, s *StateStore, collection, key string, def func() T, mutate func(*T) error) (T, error) {
	var zero T

	lock := s.keyLock(collection, key)
	lock.Lock()
	defer lock.Unlock()

	rec, err := load(ctx, s, collection, key, def)
	if err != nil {
		return zero, err
	}
	if err := mutate(&rec); err != nil {
		return zero, err
	}

	body, err := json.Marshal(rec)
	if err != nil {
		return zero, fmt.Errorf("encode %s/%s: %w", collection, key, err)
	}
	doc := Document{Collection: collection, Key: key, Body: body, UpdatedAt: s.now()}
	if err := s.backend.Save(ctx, doc); err != nil {
		return zero, fmt.Errorf("save %s/%s: %w", collection, key, err)
	}

	ch := Change{Collection: collection, Key: key, Body: body, UpdatedAt: doc.UpdatedAt}
	for _, n := range s.snapshotNotifiers() {
		n.Notify(ctx, ch)
	}
	s.logger.WithFields(logrus.Fields{
		"collection": collection,
		"key":        key,
	}).Debug("record committed")
	return rec, nil
}

// Insert writes def() at collection/key only when no record exists yet.
// It reports whether a record was created.
func Insert[T any](ctx context.Context, s *StateStore, collection, key string, def func() T) (bool, error) {
	created := false
	_, err := Upsert(ctx, s, collection, key, func() T {
		created = true
		return def()
	}, func(*T) error {
		if !created {
			return errExists
		}
		return nil
	})
	if errors.Is(err, errExists) {
		return false, nil
	}
	return created, err
}

var errExists = errors.New("record exists")

// Get decodes the record at collection/key. It returns ErrNotFound when the
// record has never been written.
func Get[T any](ctx context.Context, s *StateStore, collection, key string) (T, error) {
	var rec T
	doc, err := s.backend.Load(ctx, collection, key)
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(doc.Body, &rec); err != nil {
		return rec, fmt.Errorf("decode %s/%s: %w", collection, key, err)
	}
	return rec, nil
}

// List returns every document in collection ordered by key.
func (s *StateStore) List(ctx context.Context, collection string) ([]Document, error) {
	return s.backend.List(ctx, collection)
}

func load[T any](ctx context.Context, s *StateStore, collection, key string, def func() T) (T, error) {
	doc, err := s.backend.Load(ctx, collection, key)
	if errors.Is(err, ErrNotFound) {
		return def(), nil
	}
	if err != nil {
		var zero T
		return zero, fmt.Errorf("load %s/%s: %w", collection, key, err)
	}
	var rec T
	if err := json.Unmarshal(doc.Body, &rec); err != nil {
		return rec, fmt.Errorf("decode %s/%s: %w", collection, key, err)
	}
	return rec, nil
}
