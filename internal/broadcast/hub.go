// Package broadcast fans workflow events out to live subscribers keyed by
// patient, by department, or globally. Each key kind has its own registry and
// lock, so publishes on unrelated keys never serialize against each other.
package broadcast

import (
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Conn is the opaque bidirectional channel of one live connection. The
// transport handshake lives in the handler layer; the hub only writes.
type Conn interface {
	Send(ev Event) error
}

type KeyKind string

const (
	KeyPatient    KeyKind = "patient"
	KeyDepartment KeyKind = "department"
	KeyGlobal     KeyKind = "global"
)

// Per-subscriber buffer. A subscriber that falls this far behind is treated
// as dead and removed rather than stalling the publisher.
const sendBuffer = 32

// Subscriber is a live registration. Owned by the hub until Close or a failed
// delivery removes it; Close is idempotent and safe during in-flight publishes.
type Subscriber struct {
	hub  *Hub
	kind KeyKind
	key  string
	conn Conn

	ch   chan Event
	done chan struct{}
	once sync.Once
}

// Close unregisters the subscriber and stops its writer.
func (s *Subscriber) Close() {
	s.hub.unsubscribe(s)
}

// The event channel is never closed: a publish racing an unsubscribe may
// still buffer into it harmlessly. The writer exits via done instead.
func (s *Subscriber) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case ev := <-s.ch:
			if err := s.conn.Send(ev); err != nil {
				// Dead connection: drop the registration, never propagate.
				s.hub.log.Debug("subscriber send failed, removing",
					zap.String("kind", string(s.kind)),
					zap.String("key", s.key),
					zap.Error(err),
				)
				s.hub.unsubscribe(s)
				return
			}
		}
	}
}

type registry struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscriber]struct{}
}

func newRegistry() *registry {
	return &registry{subs: make(map[string]map[*Subscriber]struct{})}
}

func (r *registry) add(s *Subscriber) {
	r.mu.Lock()
	set, ok := r.subs[s.key]
	if !ok {
		set = make(map[*Subscriber]struct{})
		r.subs[s.key] = set
	}
	set[s] = struct{}{}
	r.mu.Unlock()
}

// remove reports whether s was still registered, so removal side effects run
// exactly once even when Close races a failed delivery.
func (r *registry) remove(s *Subscriber) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.subs[s.key]
	if !ok {
		return false
	}
	if _, present := set[s]; !present {
		return false
	}
	delete(set, s)
	if len(set) == 0 {
		delete(r.subs, s.key)
	}
	return true
}

// snapshot copies the current subscriber set so delivery happens outside the
// lock.
func (r *registry) snapshot(key string) []*Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.subs[key]
	if len(set) == 0 {
		return nil
	}
	out := make([]*Subscriber, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	return out
}

func (r *registry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, set := range r.subs {
		n += len(set)
	}
	return n
}

type Hub struct {
	patients    *registry
	departments *registry
	global      *registry

	log *zap.Logger

	// Observability hooks, wired to metrics in the composition root.
	dropped   func(kind KeyKind)
	published func(evType EventType)
	subsDelta func(kind KeyKind, delta int)
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		patients:    newRegistry(),
		departments: newRegistry(),
		global:      newRegistry(),
		log:         log,
	}
}

// OnDrop installs a callback fired whenever a subscriber is dropped for
// falling behind. Call before the hub is shared.
func (h *Hub) OnDrop(fn func(kind KeyKind)) {
	h.dropped = fn
}

// OnPublish installs a callback fired once per Publish call.
func (h *Hub) OnPublish(fn func(evType EventType)) {
	h.published = fn
}

// OnSubscriptionChange installs a callback fired with +1 or -1 whenever a
// subscriber registers or leaves.
func (h *Hub) OnSubscriptionChange(fn func(kind KeyKind, delta int)) {
	h.subsDelta = fn
}

func (h *Hub) registryFor(kind KeyKind) *registry {
	switch kind {
	case KeyPatient:
		return h.patients
	case KeyDepartment:
		return h.departments
	default:
		return h.global
	}
}

// normalizeKey folds department keys so "Pharmacy" and "pharmacy" subscribers
// land in one set. Patient keys are IDs and pass through; global ignores the
// key entirely.
func normalizeKey(kind KeyKind, key string) string {
	switch kind {
	case KeyDepartment:
		return strings.ToLower(strings.TrimSpace(key))
	case KeyGlobal:
		return ""
	}
	return key
}

// Subscribe registers a connection under one key and starts its writer.
func (h *Hub) Subscribe(kind KeyKind, key string, conn Conn) *Subscriber {
	s := &Subscriber{
		hub:  h,
		kind: kind,
		key:  normalizeKey(kind, key),
		conn: conn,
		ch:   make(chan Event, sendBuffer),
		done: make(chan struct{}),
	}
	h.registryFor(kind).add(s)
	if h.subsDelta != nil {
		h.subsDelta(kind, 1)
	}
	go s.writeLoop()
	return s
}

func (h *Hub) unsubscribe(s *Subscriber) {
	if h.registryFor(s.kind).remove(s) && h.subsDelta != nil {
		h.subsDelta(s.kind, -1)
	}
	s.once.Do(func() { close(s.done) })
}

// Publish delivers ev to every current subscriber of (kind, key). Delivery is
// fire-and-forget per subscriber: a full buffer marks the subscriber dead and
// removes it, and no subscriber's failure affects the others or the caller.
func (h *Hub) Publish(kind KeyKind, key string, ev Event) {
	if h.published != nil {
		h.published(ev.Type)
	}
	key = normalizeKey(kind, key)
	for _, s := range h.registryFor(kind).snapshot(key) {
		select {
		case s.ch <- ev:
		default:
			h.log.Warn("subscriber buffer full, dropping connection",
				zap.String("kind", string(kind)),
				zap.String("key", key),
			)
			if h.dropped != nil {
				h.dropped(kind)
			}
			h.unsubscribe(s)
		}
	}
}

// SubscriberCount reports the live registrations for one key kind.
func (h *Hub) SubscriberCount(kind KeyKind) int {
	return h.registryFor(kind).count()
}
