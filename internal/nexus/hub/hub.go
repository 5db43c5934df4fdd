// Package hub fans agent events out to the SSE subscribers of each
// conversation.
package hub

import (
	"errors"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/fintellect/nexus/pkg/logger"
	"github.com/fintellect/nexus/pkg/utils/json"
)

const moduleName = "nexus.hub"

// ErrClosed is returned by Subscribe after Close.
var ErrClosed = errors.New("hub is closed")

// Event is one frame relayed to subscribers. Data is the raw JSON payload.
type Event struct {
	ID   string
	Name string
	Data []byte
}

// Subscriber receives the events of one conversation until it is removed.
type Subscriber struct {
	conversationID string
	ch             chan Event
	once           sync.Once
	dropped        atomic.Bool
}

// Events is closed when the subscriber is removed or dropped.
func (s *Subscriber) Events() <-chan Event { return s.ch }

// Dropped reports whether the subscriber was removed for falling behind.
func (s *Subscriber) Dropped() bool { return s.dropped.Load() }

func (s *Subscriber) close() {
	s.once.Do(func() { close(s.ch) })
}

// Hub holds per-conversation subscriber sets. Publishing never blocks: a
// subscriber whose buffer is full is dropped and its stream ends.
type Hub struct {
	buffer int
	seq    atomic.Uint64

	mu     sync.RWMutex
	subs   map[string]map[*Subscriber]struct{}
	closed bool
}

// New creates a hub buffering up to buffer events per subscriber.
func New(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 256
	}
	return &Hub{
		buffer: buffer,
		subs:   make(map[string]map[*Subscriber]struct{}),
	}
}

// Subscribe registers a subscriber for conversationID. Its first event is
// always "connected".
func (h *Hub) Subscribe(conversationID string) (*Subscriber, error) {
	s := &Subscriber{conversationID: conversationID, ch: make(chan Event, h.buffer)}
	s.ch <- h.newEvent("connected", map[string]any{"type": "connected", "conversation_id": conversationID})

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}
	set, ok := h.subs[conversationID]
	if !ok {
		set = make(map[*Subscriber]struct{})
		h.subs[conversationID] = set
	}
	set[s] = struct{}{}
	logger.InfoX(moduleName, "[Hub] subscriber added", "conversation", conversationID, "subscribers", len(set))
	return s, nil
}

// Unsubscribe removes s. It is safe to call more than once.
func (h *Hub) Unsubscribe(s *Subscriber) {
	h.mu.Lock()
	h.remove(s)
	h.mu.Unlock()
}

func (h *Hub) remove(s *Subscriber) {
	set := h.subs[s.conversationID]
	if _, ok := set[s]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.subs, s.conversationID)
		}
	}
	s.close()
}

// Publish relays a raw JSON payload to every subscriber of conversationID
// and returns how many received it.
func (h *Hub) Publish(conversationID, name string, data []byte) int {
	ev := Event{ID: strconv.FormatUint(h.seq.Add(1), 10), Name: name, Data: data}

	var slow []*Subscriber
	delivered := 0
	h.mu.RLock()
	for s := range h.subs[conversationID] {
		select {
		case s.ch <- ev:
			delivered++
		default:
			slow = append(slow, s)
		}
	}
	h.mu.RUnlock()

	if len(slow) > 0 {
		h.mu.Lock()
		for _, s := range slow {
			s.dropped.Store(true)
			h.remove(s)
		}
		h.mu.Unlock()
		logger.WarnX(moduleName, "[Hub] dropped slow subscribers", "conversation", conversationID, "count", len(slow))
	}
	return delivered
}

// Subscribers returns the number of live subscribers of conversationID.
func (h *Hub) Subscribers(conversationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[conversationID])
}

// Close ends every subscription. Later Subscribe calls fail.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, set := range h.subs {
		for s := range set {
			s.close()
		}
	}
	h.subs = map[string]map[*Subscriber]struct{}{}
}

func (h *Hub) newEvent(name string, payload map[string]any) Event {
	data, _ := json.Marshal(payload)
	return Event{ID: strconv.FormatUint(h.seq.Add(1), 10), Name: name, Data: data}
}
