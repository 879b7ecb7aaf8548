package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"menuboard/internal/menu/metrics"
)

// Settings tunes a push transport connection.
type Settings struct {
	HandshakeTimeout time.Duration
	ReconnectMin     time.Duration
	ReconnectMax     time.Duration
	PingInterval     time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		HandshakeTimeout: 5 * time.Second,
		ReconnectMin:     time.Second,
		ReconnectMax:     30 * time.Second,
		PingInterval:     15 * time.Second,
		ReadTimeout:      45 * time.Second,
		WriteTimeout:     5 * time.Second,
	}
}

func (s Settings) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.ReconnectMin
	b.MaxInterval = s.ReconnectMax
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Dispatcher receives raw frames from a source.
type Dispatcher interface {
	DispatchRaw(data []byte) error
}

// WebsocketSource keeps a websocket connection to the notification endpoint
// open and forwards every frame to a Dispatcher. Frames from one connection
// are forwarded sequentially in arrival order.
type WebsocketSource struct {
	url      string
	header   http.Header
	target   Dispatcher
	settings Settings
	dialer   *websocket.Dialer
	logger   *slog.Logger
	metrics  *metrics.Metrics

	connected chan struct{}
}

type WebsocketOption func(*WebsocketSource)

func WithWebsocketHeader(h http.Header) WebsocketOption {
	return func(w *WebsocketSource) {
		w.header = h
	}
}

func WithWebsocketSettings(s Settings) WebsocketOption {
	return func(w *WebsocketSource) {
		w.settings = s
	}
}

func WithWebsocketLogger(logger *slog.Logger) WebsocketOption {
	return func(w *WebsocketSource) {
		w.logger = logger
	}
}

func WithWebsocketMetrics(m *metrics.Metrics) WebsocketOption {
	return func(w *WebsocketSource) {
		w.metrics = m
	}
}

func NewWebsocketSource(url string, target Dispatcher, opts ...WebsocketOption) (*WebsocketSource, error) {
	if url == "" {
		return nil, fmt.Errorf("push URL is required")
	}
	if target == nil {
		return nil, fmt.Errorf("push dispatcher is required")
	}

	w := &WebsocketSource{
		url:       url,
		target:    target,
		settings:  DefaultSettings(),
		connected: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = slog.New(slog.DiscardHandler)
	}
	w.dialer = &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: w.settings.HandshakeTimeout,
	}
	return w, nil
}

// Connected signals each successful (re)connection. Buffered; missed signals
// are coalesced.
func (w *WebsocketSource) Connected() <-chan struct{} {
	return w.connected
}

// Run connects and reconnects with exponential backoff until ctx is done.
func (w *WebsocketSource) Run(ctx context.Context) error {
	b := w.settings.newBackOff()

	for {
		conn, _, err := w.dialer.DialContext(ctx, w.url, w.header)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			wait := b.NextBackOff()
			w.logger.Warn("push connect failed", "url", w.url, "error", err, "retry_in", wait)
			w.metrics.IncrementReconnect("websocket")
			if err := sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}

		b.Reset()
		w.logger.Info("push connected", "url", w.url)
		select {
		case w.connected <- struct{}{}:
		default:
		}

		err = w.serve(ctx, conn)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		wait := b.NextBackOff()
		w.logger.Warn("push connection lost", "url", w.url, "error", err, "retry_in", wait)
		w.metrics.IncrementReconnect("websocket")
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (w *WebsocketSource) serve(ctx context.Context, conn *websocket.Conn) error {
	defer conn.Close()

	handleCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(w.settings.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(w.settings.ReadTimeout))
	})

	go func() {
		defer cancel()
		ticker := time.NewTicker(w.settings.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-handleCtx.Done():
				// unblocks ReadMessage
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(w.settings.WriteTimeout))
				_ = conn.Close()
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(w.settings.WriteTimeout)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if errors.Is(handleCtx.Err(), context.Canceled) && ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(w.settings.ReadTimeout))

		switch messageType {
		case websocket.TextMessage, websocket.BinaryMessage:
			if len(message) == 0 {
				continue
			}
			// malformed frames are logged by the dispatcher and skipped
			_ = w.target.DispatchRaw(message)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
