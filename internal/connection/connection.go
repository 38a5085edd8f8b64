// Package connection owns the websocket channel to the launcher backend. It
// publishes the channel's lifecycle as a Status store plus boolean views, and
// forwards every inbound message to the bus.
//
// All transitions run as tasks on the shared store.Scheduler. Transport
// events arrive on the dial/read goroutine and are queued behind whatever the
// scheduler is currently delivering, so subscribers never observe two
// transitions at once.
package connection

import (
	"sync"
	"time"

	"github.com/computehome/launcher/internal/bus"
	"github.com/computehome/launcher/internal/logger"
	"github.com/computehome/launcher/internal/protocol"
	"github.com/computehome/launcher/internal/recovery"
	"github.com/computehome/launcher/internal/store"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Connection is the connection state machine.
type Connection struct {
	sched    *store.Scheduler
	bus      *bus.Bus
	dialer   Dialer
	endpoint string
	policy   ReconnectPolicy
	log      zerolog.Logger

	status         *store.Writable[Status]
	isConnecting   *store.Derived[bool]
	isConnected    *store.Derived[bool]
	isDisconnected *store.Derived[bool]
	isShutDown     *store.Derived[bool]

	mu      sync.Mutex
	current *channel

	// Only touched from scheduler tasks.
	attempts   int
	retryGen   int
	retryTimer *time.Timer
}

// Option configures a Connection.
type Option func(*Connection)

// WithDialer replaces the gorilla/websocket dialer.
func WithDialer(d Dialer) Option {
	return func(c *Connection) {
		c.dialer = d
	}
}

// WithReconnect enables automatic reconnection with the given policy.
func WithReconnect(p ReconnectPolicy) Option {
	return func(c *Connection) {
		c.policy = p
	}
}

// WithLogger overrides the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Connection) {
		c.log = l
	}
}

// New creates a connection to endpoint that publishes on b and binds itself
// as b's outbound path. Nothing is dialled until Connect.
func New(sched *store.Scheduler, b *bus.Bus, endpoint string, opts ...Option) *Connection {
	c := &Connection{
		sched:    sched,
		bus:      b,
		dialer:   WebsocketDialer{},
		endpoint: endpoint,
		log:      logger.Component("connection"),
		status:   store.NewComparable(sched, StatusInitial),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.isConnecting = store.Derive(sched, c.status, is(StatusConnecting))
	c.isConnected = store.Derive(sched, c.status, is(StatusConnected))
	c.isDisconnected = store.Derive(sched, c.status, is(StatusDisconnected))
	c.isShutDown = store.Derive(sched, c.status, is(StatusShutDown))

	b.Bind(c)
	return c
}

func is(want Status) func(Status) bool {
	return func(s Status) bool { return s == want }
}

// Endpoint returns the websocket URL the connection dials.
func (c *Connection) Endpoint() string {
	return c.endpoint
}

// Status is the current lifecycle state.
func (c *Connection) Status() store.Readable[Status] {
	return c.status
}

func (c *Connection) IsConnecting() store.Readable[bool] {
	return c.isConnecting
}

func (c *Connection) IsConnected() store.Readable[bool] {
	return c.isConnected
}

func (c *Connection) IsDisconnected() store.Readable[bool] {
	return c.isDisconnected
}

func (c *Connection) IsShutDown() store.Readable[bool] {
	return c.isShutDown
}

// Connect opens the channel unless one already exists. ShutDown is terminal:
// Connect after Shutdown does nothing.
func (c *Connection) Connect() {
	c.sched.Schedule(c.connect)
}

// Shutdown moves to StatusShutDown and closes the channel. A later transport
// close does not move the status back to disconnected.
func (c *Connection) Shutdown() {
	c.sched.Schedule(c.shutdown)
}

// Send transmits m if the channel is open and reports whether it was written.
// Messages are never queued: callers that need delivery should check
// IsConnected first.
func (c *Connection) Send(m protocol.Message) bool {
	if m.Type.Synthetic() {
		c.log.Debug().Str("type", string(m.Type)).Msg("not sending local-only message")
		return false
	}

	ch := c.channel()
	if ch == nil {
		return false
	}

	data, err := protocol.Encode(m)
	if err != nil {
		c.log.Warn().Err(err).Msg("dropping outbound message")
		return false
	}

	sent, err := ch.write(data)
	if err != nil {
		c.log.Warn().Err(err).Str("type", string(m.Type)).Msg("send failed")
	}
	return sent
}

func (c *Connection) channel() *channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *Connection) isCurrent(ch *channel) bool {
	return c.channel() == ch
}

func (c *Connection) connect() {
	if c.status.Get() == StatusShutDown {
		return
	}
	c.mu.Lock()
	if c.current != nil {
		c.mu.Unlock()
		return
	}
	ch := newChannel()
	c.current = ch
	c.mu.Unlock()

	c.stopRetry()
	c.status.Set(StatusConnecting)
	c.log.Debug().Str("endpoint", c.endpoint).Msg("connecting")

	recovery.SafeGo("connection", func() { c.run(ch) })
}

// run dials and then reads until the transport fails. Every outcome is
// handed back to the scheduler.
func (c *Connection) run(ch *channel) {
	conn, err := c.dialer.Dial(ch.ctx, c.endpoint)
	if err != nil {
		if !ch.isClosing() {
			c.log.Warn().Err(err).Msg("connection failed")
		}
		c.sched.Schedule(func() { c.handleClose(ch) })
		return
	}
	if !ch.attach(conn) {
		_ = conn.Close()
		c.sched.Schedule(func() { c.handleClose(ch) })
		return
	}
	c.sched.Schedule(func() { c.handleOpen(ch) })

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !ch.isClosing() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Info().Err(err).Msg("connection lost")
			}
			c.sched.Schedule(func() { c.handleClose(ch) })
			return
		}
		c.sched.Schedule(func() { c.handleMessage(ch, data) })
	}
}

func (c *Connection) handleOpen(ch *channel) {
	if !c.isCurrent(ch) || !ch.isOpen() {
		return
	}
	c.attempts = 0
	c.log.Info().Str("endpoint", c.endpoint).Msg("connected")
	c.status.Set(StatusConnected)
	c.bus.Publish(protocol.Connected())
}

func (c *Connection) handleClose(ch *channel) {
	ch.markClosed()

	c.mu.Lock()
	if c.current != ch {
		c.mu.Unlock()
		return
	}
	c.current = nil
	c.mu.Unlock()

	shutDown := c.status.Get() == StatusShutDown
	if !shutDown {
		c.status.Set(StatusDisconnected)
	}
	c.bus.Publish(protocol.Disconnected())

	if !shutDown {
		c.scheduleRetry()
	}
}

// handleMessage publishes a decoded frame. Frames still queued after Shutdown
// was requested are discarded.
func (c *Connection) handleMessage(ch *channel, data []byte) {
	if !c.isCurrent(ch) || ch.isClosing() {
		return
	}
	m, err := protocol.Decode(data)
	if err != nil {
		c.log.Debug().Err(err).Int("bytes", len(data)).Msg("dropping inbound frame")
		return
	}
	c.bus.Publish(m)
}

func (c *Connection) shutdown() {
	c.stopRetry()
	c.status.Set(StatusShutDown)

	if ch := c.channel(); ch != nil {
		ch.close()
	}
}

func (c *Connection) scheduleRetry() {
	if !c.policy.Enabled {
		return
	}
	c.stopRetry()
	c.attempts++
	delay := c.policy.Delay(c.attempts)
	gen := c.retryGen

	c.log.Info().Int("attempt", c.attempts).Dur("delay", delay).Msg("reconnecting")
	c.retryTimer = time.AfterFunc(delay, func() {
		c.sched.Schedule(func() {
			if gen != c.retryGen || c.status.Get() == StatusShutDown {
				return
			}
			c.retryTimer = nil
			c.connect()
		})
	})
}

func (c *Connection) stopRetry() {
	c.retryGen++
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
}
