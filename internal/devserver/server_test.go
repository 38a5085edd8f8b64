package devserver

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/computehome/launcher/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, opts Options) *Server {
	t.Helper()
	s := New(opts)
	_, err := s.Start("127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func dial(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+s.addr+"/api", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) protocol.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	m, err := protocol.Decode(data)
	require.NoError(t, err)
	return m
}

func write(t *testing.T, conn *websocket.Conn, m protocol.Message) {
	t.Helper()
	data, err := protocol.Encode(m)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func TestServer_Handshake(t *testing.T) {
	opts := DemoOptions()
	opts.User = &protocol.User{ID: "u1", Name: "Ada"}
	s := startServer(t, opts)
	conn := dial(t, s)

	greeting := read(t, conn)
	assert.Equal(t, protocol.TypeConfig, greeting.Type)
	require.NotNil(t, greeting.Config)
	assert.Equal(t, "Compute Home", greeting.Config.Title)

	write(t, conn, protocol.RequestUser())
	user := read(t, conn)
	assert.Equal(t, protocol.TypeUser, user.Type)
	assert.Equal(t, &protocol.User{ID: "u1", Name: "Ada"}, user.User)

	write(t, conn, protocol.RequestContainers())
	containers := read(t, conn)
	assert.Equal(t, protocol.TypeContainers, containers.Type)
	assert.Equal(t, opts.Containers, containers.Containers)

	write(t, conn, protocol.RequestConfig())
	assert.Equal(t, protocol.TypeConfig, read(t, conn).Type)

	assert.Equal(t, []protocol.Type{
		protocol.TypeRequestUser,
		protocol.TypeRequestContainers,
		protocol.TypeRequestConfig,
	}, types(s.Received()))
}

func TestServer_GeneratesUser(t *testing.T) {
	s := New(Options{})
	reply, ok := s.reply(protocol.RequestUser())
	require.True(t, ok)
	require.NotNil(t, reply.User)
	assert.NotEmpty(t, reply.User.ID)
}

func TestServer_Unauthorised(t *testing.T) {
	s := startServer(t, Options{Unauthorised: true})
	conn := dial(t, s)

	assert.Equal(t, protocol.TypeUnauthorised, read(t, conn).Type)

	write(t, conn, protocol.RequestConfig())
	assert.Equal(t, protocol.TypeUnauthorised, read(t, conn).Type)
}

func TestServer_BroadcastAndDrop(t *testing.T) {
	s := startServer(t, DemoOptions())
	first := dial(t, s)
	second := dial(t, s)
	read(t, first)
	read(t, second)
	require.Eventually(t, func() bool { return s.Sessions() == 2 }, 2*time.Second, 10*time.Millisecond)

	s.LogOut()
	assert.Equal(t, protocol.TypeLoggedOut, read(t, first).Type)
	assert.Equal(t, protocol.TypeLoggedOut, read(t, second).Type)

	s.DropAll()
	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := first.ReadMessage()
	assert.Error(t, err)
	assert.Eventually(t, func() bool { return s.Sessions() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServer_DropAllKeepsAccepting(t *testing.T) {
	s := startServer(t, DemoOptions())
	first := dial(t, s)
	read(t, first)

	s.DropAll()
	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := first.ReadMessage()
	require.Error(t, err)
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		assert.False(t, netErr.Timeout(), "the server must close the socket, not leave it idle")
	}
	require.Eventually(t, func() bool { return s.Sessions() == 0 }, 2*time.Second, 10*time.Millisecond)

	second := dial(t, s)
	assert.Equal(t, protocol.TypeConfig, read(t, second).Type)
	assert.Equal(t, 1, s.Sessions())
}

func TestServer_CloseEndsSessions(t *testing.T) {
	s := New(DemoOptions())
	_, err := s.Start("127.0.0.1:0")
	require.NoError(t, err)
	conn := dial(t, s)
	read(t, conn)

	require.NoError(t, s.Close())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		assert.False(t, netErr.Timeout())
	}
	assert.Eventually(t, func() bool { return s.Sessions() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServer_IgnoresMalformedFrames(t *testing.T) {
	s := startServer(t, DemoOptions())
	conn := dial(t, s)
	read(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	write(t, conn, protocol.RequestConfig())

	assert.Equal(t, protocol.TypeConfig, read(t, conn).Type)
	assert.Equal(t, []protocol.Type{protocol.TypeRequestConfig}, types(s.Received()))
}

func TestServer_RequiresUpgrade(t *testing.T) {
	s := New(DemoOptions())

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/api", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)

	resp, err = s.App().Test(httptest.NewRequest(http.MethodGet, "/app", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func types(messages []protocol.Message) []protocol.Type {
	out := make([]protocol.Type, 0, len(messages))
	for _, m := range messages {
		out = append(out, m.Type)
	}
	return out
}
