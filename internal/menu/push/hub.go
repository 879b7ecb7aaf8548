package push

import (
	"log/slog"
	"slices"
	"sync"

	"menuboard/internal/menu/metrics"
)

type listener struct {
	id      uint64
	handler Handler
}

// Hub is an in-process listener registry. Listener lists are copied on update
// so Dispatch can run without holding the lock.
type Hub struct {
	mu        sync.Mutex
	nextID    uint64
	listeners map[Kind][]listener

	logger  *slog.Logger
	metrics *metrics.Metrics
}

type HubOption func(*Hub)

func WithHubLogger(logger *slog.Logger) HubOption {
	return func(h *Hub) {
		h.logger = logger
	}
}

func WithHubMetrics(m *metrics.Metrics) HubOption {
	return func(h *Hub) {
		h.metrics = m
	}
}

func NewHub(opts ...HubOption) *Hub {
	h := &Hub{listeners: make(map[Kind][]listener)}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.New(slog.DiscardHandler)
	}
	return h
}

// Subscribe registers h for kind. The returned function removes exactly this
// registration and is safe to call more than once.
func (h *Hub) Subscribe(kind Kind, handler Handler) func() {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	next := slices.Clone(h.listeners[kind])
	h.listeners[kind] = append(next, listener{id: id, handler: handler})
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { h.remove(kind, id) })
	}
}

func (h *Hub) remove(kind Kind, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	current := h.listeners[kind]
	i := slices.IndexFunc(current, func(l listener) bool { return l.id == id })
	if i < 0 {
		return
	}
	next := slices.Delete(slices.Clone(current), i, i+1)
	if len(next) == 0 {
		delete(h.listeners, kind)
		return
	}
	h.listeners[kind] = next
}

// ListenerCount returns the number of listeners registered for kind.
func (h *Hub) ListenerCount(kind Kind) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners[kind])
}

// Dispatch delivers env to every listener of its kind, in registration order,
// on the caller's goroutine. A panicking listener is logged and skipped.
func (h *Hub) Dispatch(env Envelope) {
	h.mu.Lock()
	targets := h.listeners[env.Type]
	h.mu.Unlock()

	h.metrics.IncrementEnvelope(string(env.Type))
	for _, l := range targets {
		h.deliver(env, l)
	}
}

func (h *Hub) deliver(env Envelope, l listener) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("push listener panicked",
				"kind", env.Type,
				"listener_id", l.id,
				"panic", r,
			)
		}
	}()
	l.handler(env.Payload)
}

// DispatchRaw decodes a wire frame and dispatches it. Malformed frames are
// logged and dropped; the error is returned for the caller's bookkeeping.
func (h *Hub) DispatchRaw(data []byte) error {
	env, err := DecodeEnvelope(data)
	if err != nil {
		h.logger.Warn("dropping malformed push frame", "error", err, "bytes", len(data))
		return err
	}
	h.Dispatch(env)
	return nil
}
