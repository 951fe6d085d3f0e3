// Package progress streams generation progress to subscribers keyed by session.
package progress

import (
	"fmt"
	"log/slog"
	"sync"
)

const (
	TypeProgress = "progress"
	TypeError    = "error"
)

// Event is one progress notification. Within a job Current never decreases
// and the terminal event of a successful job has Current == Total.
type Event struct {
	Type    string `json:"type"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Message string `json:"message"`
	Done    bool   `json:"done,omitempty"`
}

// Hub fans events out to every subscriber of a session. Publishing never
// blocks: a subscriber that falls behind misses events.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[*Subscription]struct{}
	last   map[string]Event
	buffer int
	logger *slog.Logger
}

func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:   make(map[string]map[*Subscription]struct{}),
		last:   make(map[string]Event),
		buffer: buffer,
		logger: logger,
	}
}

type Subscription struct {
	C <-chan Event

	c       chan Event
	hub     *Hub
	session string
	once    sync.Once
}

// Subscribe registers a listener. The most recent event of the session, if
// any, is delivered first so late subscribers see the current state.
func (h *Hub) Subscribe(sessionID string) *Subscription {
	c := make(chan Event, h.buffer)
	s := &Subscription{C: c, c: c, hub: h, session: sessionID}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[*Subscription]struct{})
	}
	h.subs[sessionID][s] = struct{}{}
	if e, ok := h.last[sessionID]; ok {
		c <- e
	}
	return s
}

// Close unregisters the subscription and closes its channel.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		defer s.hub.mu.Unlock()
		if subs := s.hub.subs[s.session]; subs != nil {
			delete(subs, s)
			if len(subs) == 0 {
				delete(s.hub.subs, s.session)
			}
		}
		close(s.c)
	})
}

func (h *Hub) Publish(sessionID string, e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last[sessionID] = e
	for s := range h.subs[sessionID] {
		select {
		case s.c <- e:
		default:
			h.logger.Debug("progress event dropped for slow subscriber",
				"session_id", sessionID, "current", e.Current, "total", e.Total)
		}
	}
}

// Forget drops the remembered last event of a session.
func (h *Hub) Forget(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.last, sessionID)
}

func (h *Hub) Subscribers(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[sessionID])
}

type update struct {
	step    bool
	message string
}

// Reporter serialises progress for one job. Workers call Step concurrently;
// a single aggregator goroutine turns those calls into events with a
// monotonically increasing Current.
type Reporter struct {
	hub     *Hub
	session string
	total   int

	mu      sync.Mutex
	closed  bool
	updates chan update
	done    chan struct{}
	current int
}

// NewReporter starts the aggregator for a job of total batches.
func (h *Hub) NewReporter(sessionID string, total int) *Reporter {
	r := &Reporter{
		hub:     h,
		session: sessionID,
		total:   total,
		updates: make(chan update, max(total, 1)+8),
		done:    make(chan struct{}),
	}
	h.Forget(sessionID)
	go r.run()
	return r
}

func (r *Reporter) run() {
	defer close(r.done)
	for u := range r.updates {
		if u.step && r.current < r.total {
			r.current++
		}
		msg := u.message
		if msg == "" {
			msg = fmt.Sprintf("Rendering document %d of %d", r.current, r.total)
		}
		r.hub.Publish(r.session, Event{Type: TypeProgress, Current: r.current, Total: r.total, Message: msg})
	}
}

func (r *Reporter) send(u update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.updates <- u
}

// Step records one completed batch. message overrides the default status line.
func (r *Reporter) Step(message string) { r.send(update{step: true, message: message}) }

// Note publishes a status line without advancing the counter.
func (r *Reporter) Note(message string) { r.send(update{message: message}) }

// Finish stops the aggregator and publishes the terminal event with
// Current == Total.
func (r *Reporter) Finish() {
	r.stop(func() Event {
		return Event{Type: TypeProgress, Current: r.total, Total: r.total, Message: "Generation complete", Done: true}
	})
}

// Fail stops the aggregator and publishes a terminal error event.
func (r *Reporter) Fail(message string) {
	r.stop(func() Event {
		return Event{Type: TypeError, Current: r.current, Total: r.total, Message: message, Done: true}
	})
}

func (r *Reporter) stop(final func() Event) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.updates)
	r.mu.Unlock()

	<-r.done
	r.hub.Publish(r.session, final())
}
