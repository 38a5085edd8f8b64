// Package client assembles the connection, the message bus, the activity
// tracker and the domain stores into one application context. A Client owns
// every store instance; nothing is kept in package globals, so several
// independent clients can coexist.
package client

import (
	"fmt"
	"sync"

	"github.com/computehome/launcher/internal/activity"
	"github.com/computehome/launcher/internal/bus"
	"github.com/computehome/launcher/internal/config"
	"github.com/computehome/launcher/internal/connection"
	"github.com/computehome/launcher/internal/logger"
	"github.com/computehome/launcher/internal/protocol"
	"github.com/computehome/launcher/internal/store"
	"github.com/computehome/launcher/internal/stores"
	"github.com/rs/zerolog"
)

// Client is the public surface of the state layer.
type Client struct {
	bus        *bus.Bus
	conn       *connection.Connection
	activity   *activity.Tracker
	config     *stores.ConfigStore
	user       *stores.UserStore
	containers *stores.ContainersStore
	log        zerolog.Logger

	shutdownOnce sync.Once
}

// Option configures a Client.
type Option func(*options)

type options struct {
	connection []connection.Option
}

// WithConnectionOptions passes options through to the connection, e.g. a
// custom dialer.
func WithConnectionOptions(opts ...connection.Option) Option {
	return func(o *options) {
		o.connection = append(o.connection, opts...)
	}
}

// New builds a client for cfg. Nothing connects until Connect.
func New(cfg config.ClientConfig, opts ...Option) (*Client, error) {
	endpoint, err := cfg.Endpoint()
	if err != nil {
		return nil, fmt.Errorf("resolving endpoint: %w", err)
	}

	var o options
	if cfg.Reconnect.Enabled {
		o.connection = append(o.connection, connection.WithReconnect(cfg.Reconnect))
	}
	for _, opt := range opts {
		opt(&o)
	}

	sched := store.NewScheduler()
	b := bus.New(sched)
	tracker := activity.NewTracker(sched)

	c := &Client{
		bus:      b,
		conn:     connection.New(sched, b, endpoint, o.connection...),
		activity: tracker,
		log:      logger.Component("client"),
	}
	// Subscription order is delivery order: config before user before
	// containers, matching the order the backend answers in.
	c.config = stores.NewConfigStore(sched, b, tracker)
	c.user = stores.NewUserStore(sched, b, tracker)
	c.containers = stores.NewContainersStore(sched, b, tracker)

	return c, nil
}

// DefaultScenario is the progress shown while connecting.
func DefaultScenario() activity.Settings {
	return activity.Settings{
		Title:   "Starting the launcher",
		Message: "Connecting...",
		Activities: []activity.Descriptor{
			{ID: stores.StepConnect, Title: "Connecting"},
			{ID: stores.StepConfig, Title: "Authenticating"},
			{ID: stores.StepUser, Title: "Fetching your details"},
			{ID: stores.StepContainers, Title: "Fetching your containers"},
		},
	}
}

// Connect opens the channel and shows the connection scenario. It does
// nothing while a channel is already connecting or connected, or once the
// client has shut down.
func (c *Client) Connect() {
	switch c.conn.Status().Get() {
	case connection.StatusConnecting, connection.StatusConnected, connection.StatusShutDown:
		return
	}
	c.log.Info().Str("endpoint", c.conn.Endpoint()).Msg("starting")
	c.activity.Initialise(DefaultScenario())
	c.activity.Start(stores.StepConnect, "Connecting...")
	c.conn.Connect()
}

// Shutdown detaches every store from the bus and shuts the connection down.
// Only the first call has an effect.
func (c *Client) Shutdown() {
	c.shutdownOnce.Do(func() {
		c.config.Shutdown()
		c.user.Shutdown()
		c.containers.Shutdown()
		c.conn.Shutdown()
		c.log.Info().Msg("shut down")
	})
}

// Send transmits m if the channel is open. See connection.Connection.Send.
func (c *Client) Send(m protocol.Message) bool {
	return c.bus.Send(m)
}

func (c *Client) Endpoint() string {
	return c.conn.Endpoint()
}

// Message is the most recent inbound or locally published message.
func (c *Client) Message() store.Readable[protocol.Message] {
	return c.bus.Messages()
}

func (c *Client) Status() store.Readable[connection.Status] {
	return c.conn.Status()
}

func (c *Client) IsConnecting() store.Readable[bool] {
	return c.conn.IsConnecting()
}

func (c *Client) IsConnected() store.Readable[bool] {
	return c.conn.IsConnected()
}

func (c *Client) IsDisconnected() store.Readable[bool] {
	return c.conn.IsDisconnected()
}

func (c *Client) IsShutDown() store.Readable[bool] {
	return c.conn.IsShutDown()
}

func (c *Client) Activity() *activity.Tracker {
	return c.activity
}

func (c *Client) Config() store.Readable[*protocol.Config] {
	return c.config.Config()
}

func (c *Client) User() store.Readable[*protocol.User] {
	return c.user.User()
}

func (c *Client) Containers() store.Readable[[]protocol.Container] {
	return c.containers.Containers()
}

// RunningContainers lists the containers that can be opened.
func (c *Client) RunningContainers() []protocol.Container {
	return c.containers.Running()
}

// RefreshContainers asks the backend for the container list again.
func (c *Client) RefreshContainers() bool {
	return c.containers.Refresh()
}

func (c *Client) IsUnauthorised() store.Readable[bool] {
	return c.user.IsUnauthorised()
}

func (c *Client) IsLoggedOut() store.Readable[bool] {
	return c.user.IsLoggedOut()
}
