package connection

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the subset of *websocket.Conn the connection relies on.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Dialer opens a Conn to an endpoint. Dial must return when ctx is cancelled.
type Dialer interface {
	Dial(ctx context.Context, endpoint string) (Conn, error)
}

// WebsocketDialer dials with gorilla/websocket.
type WebsocketDialer struct {
	Dialer *websocket.Dialer
	Header http.Header
}

// Dial implements Dialer.
func (d WebsocketDialer) Dial(ctx context.Context, endpoint string) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, resp, err := dialer.DialContext(ctx, endpoint, d.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to %s (%s): %w", endpoint, resp.Status, err)
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", endpoint, err)
	}
	return conn, nil
}

type readyState uint8

const (
	stateConnecting readyState = iota
	stateOpen
	stateClosing
	stateClosed
)

const (
	closeGracePeriod = time.Second
	writeTimeout     = 5 * time.Second
)

// channel is one attempt at a transport connection. Its handle exists from
// the moment dialing starts until the close handler has run.
type channel struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	conn  Conn
	state readyState
}

func newChannel() *channel {
	ctx, cancel := context.WithCancel(context.Background())
	return &channel{ctx: ctx, cancel: cancel}
}

// attach records a dialled connection. It fails if the channel was closed
// while dialing.
func (ch *channel) attach(conn Conn) bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.state != stateConnecting {
		return false
	}
	ch.conn = conn
	ch.state = stateOpen
	return true
}

func (ch *channel) isOpen() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.state == stateOpen
}

func (ch *channel) isClosing() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.state >= stateClosing
}

func (ch *channel) markClosed() {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.state = stateClosed
}

// write sends a text frame if the channel is open.
func (ch *channel) write(data []byte) (bool, error) {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.state != stateOpen {
		return false, nil
	}
	if err := ch.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return false, err
	}
	if err := ch.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return false, err
	}
	return true, nil
}

// close cancels a pending dial or closes the open connection with a normal
// closure frame.
func (ch *channel) close() {
	ch.cancel()

	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.state >= stateClosing {
		return
	}
	ch.state = stateClosing
	if ch.conn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = ch.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
		_ = ch.conn.Close()
	}
}
