package onebot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultReconnectInterval is the fixed delay between reconnect attempts.
// No backoff growth and no retry cap: the bridge process is locally
// supervised, so outages are expected to be short.
const DefaultReconnectInterval = 5 * time.Second

// MonitorOptions configures a Monitor.
type MonitorOptions struct {
	WSURL             string
	AccessToken       string        // sent as "Authorization: Bearer <token>" when non-empty
	ReconnectInterval time.Duration // 0 = DefaultReconnectInterval

	// OnEvent receives every successfully parsed event.
	OnEvent func(ev *Event)
	// OnMessage additionally receives message-type events.
	OnMessage func(ev *Event)
	// OnError receives socket errors. The subsequent close handles recovery;
	// the callback is informational.
	OnError func(err error)
}

// Monitor owns one persistent WebSocket connection to the bridge's event
// stream. On non-deliberate disconnect it reconnects after a fixed interval,
// indefinitely, until Close is called or the start context is cancelled.
//
// Callbacks for a single monitor are invoked sequentially in frame order;
// there is no concurrent overlap between OnEvent/OnMessage invocations.
type Monitor struct {
	opts   MonitorOptions
	dialer *websocket.Dialer

	mu        sync.Mutex
	conn      *websocket.Conn
	reconnect *time.Timer
	closing   bool

	done chan struct{}
}

// StartMonitor opens the event stream and begins dispatching frames.
// A missing WSURL is a fatal misconfiguration and fails synchronously;
// connection failures after that are transient and retried.
// Cancelling ctx is equivalent to calling Close.
func StartMonitor(ctx context.Context, opts MonitorOptions) (*Monitor, error) {
	if opts.WSURL == "" {
		return nil, fmt.Errorf("onebot: ws_url is required")
	}
	if opts.ReconnectInterval <= 0 {
		opts.ReconnectInterval = DefaultReconnectInterval
	}

	m := &Monitor{
		opts:   opts,
		dialer: websocket.DefaultDialer,
		done:   make(chan struct{}),
	}

	go m.connect()
	go func() {
		select {
		case <-ctx.Done():
			m.Close()
		case <-m.done:
		}
	}()

	return m, nil
}

// Close tears the monitor down: marks the deliberate-close state, cancels any
// pending reconnect timer, and closes the live socket. Idempotent; after the
// first call no further reconnect attempts occur.
func (m *Monitor) Close() {
	m.mu.Lock()
	if m.closing {
		m.mu.Unlock()
		return
	}
	m.closing = true
	if m.reconnect != nil {
		m.reconnect.Stop()
		m.reconnect = nil
	}
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	close(m.done)
	if conn != nil {
		conn.Close()
	}
}

func (m *Monitor) connect() {
	header := http.Header{}
	if m.opts.AccessToken != "" {
		header.Set("Authorization", "Bearer "+m.opts.AccessToken)
	}

	conn, resp, err := m.dialer.Dial(m.opts.WSURL, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		m.reportError(fmt.Errorf("onebot: ws dial: %w", err))
		m.scheduleReconnect()
		return
	}

	m.mu.Lock()
	if m.closing {
		m.mu.Unlock()
		conn.Close()
		return
	}
	m.conn = conn
	m.mu.Unlock()

	slog.Info("onebot event stream connected", "ws_url", m.opts.WSURL)
	m.readLoop(conn)
}

// readLoop reads frames until the connection drops. Frames are dispatched
// one at a time, preserving wire order.
func (m *Monitor) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.mu.Lock()
			deliberate := m.closing
			if m.conn == conn {
				m.conn = nil
			}
			m.mu.Unlock()

			conn.Close()
			if deliberate {
				return
			}
			m.reportError(err)
			slog.Warn("onebot event stream closed, scheduling reconnect", "error", err)
			m.scheduleReconnect()
			return
		}
		m.handleFrame(data)
	}
}

// handleFrame parses one JSON frame and dispatches callbacks.
// A malformed frame is logged and dropped; it never crashes the connection.
func (m *Monitor) handleFrame(data []byte) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		slog.Warn("onebot: dropping unparseable frame", "error", err)
		return
	}

	if m.opts.OnEvent != nil {
		m.opts.OnEvent(&ev)
	}
	if ev.IsMessage() && m.opts.OnMessage != nil {
		m.opts.OnMessage(&ev)
	}
}

// scheduleReconnect arms the reconnect timer unless the monitor is closing
// or a reconnect is already pending.
func (m *Monitor) scheduleReconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closing || m.reconnect != nil {
		return
	}
	m.reconnect = time.AfterFunc(m.opts.ReconnectInterval, func() {
		m.mu.Lock()
		m.reconnect = nil
		closing := m.closing
		m.mu.Unlock()
		if !closing {
			m.connect()
		}
	})
}

func (m *Monitor) reportError(err error) {
	if m.opts.OnError != nil {
		m.opts.OnError(err)
	}
}
