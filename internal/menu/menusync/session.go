package menusync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"menuboard/internal/menu/metrics"
	"menuboard/internal/menu/models"
	"menuboard/internal/menu/push"
	"menuboard/pkg/platform/sentinel"
	"menuboard/pkg/platform/strings"
)

var tracer = otel.Tracer("menuboard/internal/menu/menusync")

const (
	defaultLoadTimeout = 30 * time.Second
	opsBuffer          = 256
)

// State is one published version of a session. Values are immutable: the
// projection map and its buckets must not be modified by readers.
type State struct {
	SessionID     uuid.UUID
	Version       uint64
	Projection    models.Projection
	Categories    []string
	ResolvedNames map[models.CategoryID]string
	Loading       bool
	Err           error
}

// ErrorMessage returns the human readable failure of the last load, or "".
func (s State) ErrorMessage() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}

// Session owns the projection for one view. All mutations (snapshot
// completions and push events) run on a single goroutine in arrival order;
// readers see whole published States.
type Session struct {
	id          uuid.UUID
	catalog     Catalog
	subs        *subscriptions
	logger      *slog.Logger
	metrics     *metrics.Metrics
	loadTimeout time.Duration

	ops       chan func()
	quit      chan struct{}
	done      chan struct{}
	closed    atomic.Bool
	closeOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc

	state     atomic.Pointer[State]
	changesMu sync.Mutex
	changes   chan struct{}

	// owned by the loop goroutine
	named    bool
	ids      []models.CategoryID
	names    []string
	resolved map[models.CategoryID]string
	seq      uint64
	waiters  map[uint64][]chan<- error
}

type Option func(*Session)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// WithLoadTimeout bounds one resolve+load round.
func WithLoadTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.loadTimeout = d
	}
}

// NewCategorySession tracks the given category ids. Names are resolved through
// the catalog on the first load and cached for the life of the session. The
// session subscribes to push events and starts its first load immediately.
func NewCategorySession(catalog Catalog, subscriber push.Subscriber, ids []models.CategoryID, opts ...Option) *Session {
	s := newSession(catalog, subscriber, opts...)
	s.ids = strings.Dedupe(slices.Clone(ids))
	s.start()
	return s
}

// NewNamedSession tracks categories by name, skipping resolution.
func NewNamedSession(catalog Catalog, subscriber push.Subscriber, names []string, opts ...Option) *Session {
	s := newSession(catalog, subscriber, opts...)
	s.named = true
	s.names = strings.DedupeAndTrim(names)
	s.start()
	return s
}

func newSession(catalog Catalog, subscriber push.Subscriber, opts ...Option) *Session {
	s := &Session{
		id:          uuid.New(),
		catalog:     catalog,
		subs:        newSubscriptions(subscriber),
		loadTimeout: defaultLoadTimeout,
		ops:         make(chan func(), opsBuffer),
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
		changes:     make(chan struct{}),
		resolved:    make(map[models.CategoryID]string),
		waiters:     make(map[uint64][]chan<- error),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	s.logger = s.logger.With("session_id", s.id.String())
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.state.Store(&State{SessionID: s.id, Projection: models.Projection{}})
	return s
}

func (s *Session) start() {
	s.subs.Replace(s.handleEvent)
	s.startLoad(nil)
	go s.loop()
}

// ID identifies the session in logs and state.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// State returns the latest published state.
func (s *Session) State() State {
	return *s.state.Load()
}

// Changes returns a channel that is closed on the next state transition.
// Call Changes before State to avoid missing a transition.
func (s *Session) Changes() <-chan struct{} {
	s.changesMu.Lock()
	defer s.changesMu.Unlock()
	return s.changes
}

// Refetch starts a fresh load and waits for it. It returns the load's error.
// A load superseded by a later one returns nil without touching state.
func (s *Session) Refetch(ctx context.Context) error {
	wait := make(chan error, 1)
	if err := s.call(ctx, func() { s.startLoad(wait) }); err != nil {
		return err
	}
	select {
	case err := <-wait:
		return err
	case <-s.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Retarget switches a category session to a new id set. Listeners are torn
// down and registered again and a new load is started. Retargeting to the
// current set is a no-op.
func (s *Session) Retarget(ctx context.Context, ids []models.CategoryID) error {
	next := strings.Dedupe(slices.Clone(ids))
	var err error
	callErr := s.call(ctx, func() {
		if s.named {
			err = fmt.Errorf("%w: named sessions cannot be retargeted", sentinel.ErrInvalidState)
			return
		}
		if slices.Equal(next, s.ids) {
			return
		}
		s.logger.Info("retargeting session", "from", s.ids, "to", next)
		s.subs.Replace(s.handleEvent)
		s.ids = next
		s.startLoad(nil)
	})
	if callErr != nil {
		return callErr
	}
	return err
}

// Close deregisters every listener and stops the session. In-flight loads are
// cancelled and their results discarded. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.subs.Close()
		s.cancel()
		close(s.quit)
		<-s.done
		s.logger.Debug("session closed")
	})
}

func (s *Session) loop() {
	defer close(s.done)
	for {
		select {
		case op := <-s.ops:
			op()
		case <-s.quit:
			for _, waiters := range s.waiters {
				for _, w := range waiters {
					w <- ErrClosed
				}
			}
			return
		}
	}
}

// submit queues op without waiting for it.
func (s *Session) submit(op func()) {
	select {
	case s.ops <- op:
	case <-s.quit:
	}
}

// call queues op and waits until the loop has run it.
func (s *Session) call(ctx context.Context, op func()) error {
	if s.closed.Load() {
		return ErrClosed
	}
	ran := make(chan struct{})
	select {
	case s.ops <- func() { op(); close(ran) }:
	case <-s.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ran:
		return nil
	case <-s.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) publish(next State) {
	cur := s.state.Load()
	next.SessionID = s.id
	next.Version = cur.Version + 1
	s.state.Store(&next)

	s.changesMu.Lock()
	close(s.changes)
	s.changes = make(chan struct{})
	s.changesMu.Unlock()
}

// handleEvent runs on the push dispatcher's goroutine.
func (s *Session) handleEvent(kind push.Kind, payload json.RawMessage) {
	if s.closed.Load() {
		return
	}
	s.submit(func() { s.applyEvent(kind, payload) })
}

func (s *Session) applyEvent(kind push.Kind, payload json.RawMessage) {
	cur := s.state.Load()
	next, err := Apply(cur.Projection, kind, payload)
	if err != nil {
		s.logger.Warn("skipping malformed push event", "kind", kind, "error", err)
		s.metrics.IncrementEvent(string(kind), "malformed")
		return
	}
	if next.Same(cur.Projection) {
		s.metrics.IncrementEvent(string(kind), "ignored")
		return
	}

	st := *cur
	st.Projection = next
	s.publish(st)
	s.metrics.IncrementEvent(string(kind), "applied")
}

type loadResult struct {
	seq        uint64
	resolved   map[models.CategoryID]string
	categories []string
	projection models.Projection
	err        error
	duration   time.Duration
}

// startLoad tags a new load with the next sequence number and runs it in the
// background. Only the completion of the latest load may change state.
func (s *Session) startLoad(wait chan<- error) {
	s.seq++
	seq := s.seq
	if wait != nil {
		s.waiters[seq] = append(s.waiters[seq], wait)
	}

	if len(s.ids) == 0 && len(s.names) == 0 {
		s.finishLoad(loadResult{seq: seq, projection: models.Projection{}, categories: []string{}})
		return
	}

	st := *s.state.Load()
	st.Loading = true
	s.publish(st)

	ids := slices.Clone(s.ids)
	names := slices.Clone(s.names)
	known := maps.Clone(s.resolved)
	named := s.named
	go func() {
		res := s.load(seq, named, ids, names, known)
		s.submit(func() { s.finishLoad(res) })
	}()
}

func (s *Session) load(seq uint64, named bool, ids []models.CategoryID, names []string, known map[models.CategoryID]string) (res loadResult) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(s.ctx, s.loadTimeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "menusync.load")
	span.SetAttributes(
		attribute.String("session_id", s.id.String()),
		attribute.Int64("seq", int64(seq)),
	)
	defer span.End()

	res.seq = seq
	defer func() {
		res.duration = time.Since(start)
		if res.err != nil {
			span.RecordError(res.err)
			span.SetStatus(codes.Error, "load failed")
		}
	}()

	if !named {
		resolved, err := resolveMissing(ctx, s.catalog, ids, known)
		if err != nil {
			res.err = err
			return res
		}
		res.resolved = resolved
		names = DisplayOrder(ids, resolved)
	}
	res.categories = names

	projection, err := LoadSnapshot(ctx, s.catalog, names)
	if err != nil {
		res.err = err
		return res
	}
	res.projection = projection
	return res
}

func (s *Session) finishLoad(res loadResult) {
	waiters := s.waiters[res.seq]
	delete(s.waiters, res.seq)
	defer func() {
		for _, w := range waiters {
			if res.seq == s.seq {
				w <- res.err
			} else {
				w <- nil
			}
		}
	}()

	// resolved names are immutable for the session, whichever load found them
	for id, name := range res.resolved {
		if _, ok := s.resolved[id]; !ok {
			s.resolved[id] = name
		}
	}

	if res.seq != s.seq {
		s.logger.Debug("discarding stale load", "seq", res.seq, "latest", s.seq)
		s.metrics.IncrementSnapshotLoad("stale")
		return
	}

	s.metrics.ObserveSnapshotLatency(res.duration)
	st := *s.state.Load()
	st.Loading = false
	if !s.named {
		st.ResolvedNames = maps.Clone(s.resolved)
	}

	if res.err != nil {
		s.logger.Warn("snapshot load failed", "seq", res.seq, "error", res.err)
		s.metrics.IncrementSnapshotLoad("failed")
		st.Err = res.err
		s.publish(st)
		return
	}

	s.logger.Debug("snapshot applied", "seq", res.seq, "categories", len(res.categories), "items", res.projection.Len())
	s.metrics.IncrementSnapshotLoad("applied")
	st.Projection = res.projection
	st.Categories = res.categories
	st.Err = nil
	s.publish(st)
}
