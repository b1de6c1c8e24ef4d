package brokerclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Reconnect/keepalive constants, same shape as the teacher's
// internal/platform/polymarket/ws.go.
const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	reconnectDelay    = 2 * time.Second
	maxReconnectDelay = 60 * time.Second
)

// NewDataNotifier is notified when the brokerage pushes a "new candle data
// available" message; it is the market-data-sync periodic's ForceUpdate.
type NewDataNotifier interface {
	ForceUpdate()
}

// Stream is a push-notification WebSocket client: on every "new data"
// message it calls the wired notifier instead of delivering any payload
// itself, letting the regular market-data-sync tick do the actual fetch.
type Stream struct {
	wsURL    string
	notifier NewDataNotifier
	logger   *slog.Logger

	mu     sync.RWMutex
	conn   *websocket.Conn
	closed bool
	done   chan struct{}
}

// NewStream creates a Stream pointed at wsURL.
func NewStream(wsURL string, notifier NewDataNotifier, logger *slog.Logger) *Stream {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stream{wsURL: wsURL, notifier: notifier, logger: logger, done: make(chan struct{})}
}

// Connect establishes the WebSocket connection and starts the read/ping
// loops in the background.
func (s *Stream) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("brokerclient: stream closed")
	}

	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.wsURL, nil)
	if err != nil {
		return fmt.Errorf("brokerclient: stream connect: %w", err)
	}

	s.conn = conn
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go s.readLoop()
	go s.pingLoop()

	return nil
}

// Close shuts down the stream and stops its background loops.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)

	if s.conn != nil {
		_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		return s.conn.Close()
	}
	return nil
}

type notifyEnvelope struct {
	Type string `json:"type"`
}

func (s *Stream) readLoop() {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		return
	}
	// Close only the connection this loop reads; after a reconnect s.conn
	// holds the replacement, which its own readLoop owns.
	defer conn.Close()

	for {
		select {
		case <-s.done:
			return
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			s.reconnect()
			return
		}

		s.handleMessage(message)
	}
}

func (s *Stream) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.RLock()
			conn := s.conn
			s.mu.RUnlock()
			if conn == nil {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Stream) handleMessage(raw []byte) {
	var env notifyEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.logger.Warn("brokerclient stream: unparseable message", "error", err)
		return
	}

	if env.Type == "new_data" {
		s.notifier.ForceUpdate()
	}
}

func (s *Stream) reconnect() {
	delay := reconnectDelay

	for {
		select {
		case <-s.done:
			return
		default:
		}

		time.Sleep(delay)

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := s.Connect(ctx)
		cancel()

		if err == nil {
			return
		}

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}
