// Package devserver is a small in-process launcher backend. It speaks the
// /api websocket protocol well enough to drive a client end to end: it pushes
// the configuration when a session opens, answers request-* messages, and
// lets the caller push auth changes or drop connections.
package devserver

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/computehome/launcher/internal/logger"
	"github.com/computehome/launcher/internal/protocol"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Options describe what the backend serves.
type Options struct {
	Config     protocol.Config
	User       *protocol.User
	Containers []protocol.Container
	// Unauthorised makes new sessions receive unauthorised instead of config.
	Unauthorised bool
}

// DemoOptions returns a populated backend for local use.
func DemoOptions() Options {
	return Options{
		Config: protocol.Config{
			Title: "Compute Home",
			VLE:   protocol.VLE{URL: "https://vle.example.com"},
		},
		Containers: []protocol.Container{
			protocol.RunningContainer("jupyterlab", "JupyterLab", "Python notebooks", "/containers/jupyterlab/"),
			protocol.PausedContainer("rstudio", "RStudio", "R development environment"),
		},
	}
}

type session struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *session) send(m protocol.Message) error {
	data, err := protocol.Encode(m)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Server is the fake backend.
type Server struct {
	app *fiber.App
	log zerolog.Logger

	mu       sync.Mutex
	opts     Options
	sessions map[string]*session
	received []protocol.Message
	addr     string
}

// New creates a server. Without a user in opts a demo user is generated.
func New(opts Options) *Server {
	if opts.User == nil {
		opts.User = &protocol.User{ID: uuid.NewString(), Name: "Demo User"}
	}

	s := &Server{
		opts:     opts,
		sessions: make(map[string]*session),
		log:      logger.Component("devserver"),
	}

	s.app = fiber.New(fiber.Config{DisableStartupMessage: true})
	s.app.Use("/api", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.app.Get("/api", websocket.New(s.handleConnection))
	s.app.Get("/app", func(c *fiber.Ctx) error {
		s.mu.Lock()
		title := s.opts.Config.Title
		s.mu.Unlock()
		return c.SendString(title)
	})

	return s
}

// App exposes the fiber app, e.g. to mount it elsewhere.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start listens on addr ("127.0.0.1:0" picks a free port) and serves in the
// background. It returns the bound address.
func (s *Server) Start(addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.mu.Unlock()

	go func() {
		if err := s.app.Listener(ln); err != nil && !errors.Is(err, net.ErrClosed) {
			s.log.Error().Err(err).Msg("server stopped")
		}
	}()

	s.log.Info().Str("addr", s.addr).Msg("dev backend listening")
	return s.addr, nil
}

// URL is the launcher page URL for a started server.
func (s *Server) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return "http://" + s.addr + "/app"
}

// Close drops every session and stops the server.
func (s *Server) Close() error {
	s.DropAll()
	return s.app.ShutdownWithTimeout(time.Second)
}

// SetUnauthorised controls what new sessions receive on connect.
func (s *Server) SetUnauthorised(unauthorised bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts.Unauthorised = unauthorised
}

// SetContainers replaces the served container list.
func (s *Server) SetContainers(containers []protocol.Container) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts.Containers = containers
}

// Broadcast pushes m to every open session.
func (s *Server) Broadcast(m protocol.Message) {
	for _, sess := range s.snapshot() {
		if err := sess.send(m); err != nil {
			s.log.Debug().Err(err).Str("session", sess.id).Msg("broadcast failed")
		}
	}
}

// LogOut tells every session it has been logged out.
func (s *Server) LogOut() {
	s.Broadcast(protocol.Message{Type: protocol.TypeLoggedOut})
}

// DropAll ends every session without a close handshake. Expiring the read
// deadline unblocks the session's read loop; the socket is closed once its
// handler returns.
func (s *Server) DropAll() {
	for _, sess := range s.snapshot() {
		if err := sess.conn.SetReadDeadline(time.Now()); err != nil {
			s.log.Debug().Err(err).Str("session", sess.id).Msg("drop failed")
		}
	}
}

// Sessions returns the number of open sessions.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Received returns every message received so far, in arrival order.
func (s *Server) Received() []protocol.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.Message(nil), s.received...)
}

func (s *Server) snapshot() []*session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

func (s *Server) handleConnection(conn *websocket.Conn) {
	sess := &session{id: uuid.NewString(), conn: conn}
	log := s.log.With().Str("session", sess.id).Logger()

	s.mu.Lock()
	s.sessions[sess.id] = sess
	unauthorised := s.opts.Unauthorised
	cfg := s.opts.Config
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.sessions, sess.id)
		s.mu.Unlock()
		log.Debug().Msg("session closed")
	}()

	log.Debug().Msg("session opened")
	greeting := protocol.Message{Type: protocol.TypeConfig, Config: &cfg}
	if unauthorised {
		greeting = protocol.Message{Type: protocol.TypeUnauthorised}
	}
	if err := sess.send(greeting); err != nil {
		log.Debug().Err(err).Msg("greeting failed")
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		m, err := protocol.Decode(data)
		if err != nil {
			log.Debug().Err(err).Msg("ignoring frame")
			continue
		}

		s.mu.Lock()
		s.received = append(s.received, m)
		s.mu.Unlock()

		reply, ok := s.reply(m)
		if !ok {
			log.Debug().Str("type", string(m.Type)).Msg("no reply")
			continue
		}
		if err := sess.send(reply); err != nil {
			log.Debug().Err(err).Msg("reply failed")
			return
		}
	}
}

func (s *Server) reply(m protocol.Message) (protocol.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch m.Type {
	case protocol.TypeRequestConfig:
		if s.opts.Unauthorised {
			return protocol.Message{Type: protocol.TypeUnauthorised}, true
		}
		cfg := s.opts.Config
		return protocol.Message{Type: protocol.TypeConfig, Config: &cfg}, true
	case protocol.TypeRequestUser:
		user := *s.opts.User
		return protocol.Message{Type: protocol.TypeUser, User: &user}, true
	case protocol.TypeRequestContainers:
		containers := append([]protocol.Container{}, s.opts.Containers...)
		return protocol.Message{Type: protocol.TypeContainers, Containers: containers}, true
	}
	return protocol.Message{}, false
}
