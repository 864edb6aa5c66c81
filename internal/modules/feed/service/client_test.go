package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"signal_agent/internal/models"
	"signal_agent/internal/modules/config"
	"signal_agent/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	if err := logger.Init(logger.Config{Level: "fatal"}); err != nil {
		panic(err)
	}
	m.Run()
}

var upgrader = websocket.Upgrader{}

func feedConfig(url string) *config.Config {
	cfg := &config.Config{}
	cfg.Feed.URL = url
	cfg.Feed.Token = "tok-123"
	cfg.Feed.ClientID = "cid-1"
	cfg.PingInterval = time.Minute // keepalive в тестах не мешает
	cfg.StaleAfter = 5 * time.Second
	cfg.AuthTimeout = 2 * time.Second
	cfg.ReconnectMin = 10 * time.Millisecond
	cfg.ReconnectMax = 50 * time.Millisecond
	return cfg
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// acceptAuth проводит серверную половину рукопожатия.
func acceptAuth(t *testing.T, conn *websocket.Conn) authRequest {
	t.Helper()
	var req authRequest
	require.NoError(t, conn.ReadJSON(&req))
	require.NoError(t, conn.WriteJSON(authResponse{Type: "auth_ok"}))
	return req
}

func TestClientDeliversFramesAfterAuth(t *testing.T) {
	payload := `{"type":"CLOSE_SIGNAL","signal_id":"s1","symbol":"BTC-USDT-SWAP"}`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		req := acceptAuth(t, conn)
		assert.Equal(t, "auth", req.Type)
		assert.Equal(t, "tok-123", req.Token)
		assert.Equal(t, "cid-1", req.ClientID)

		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(payload)))
		// держим соединение, пока клиент не уйдёт
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	c := NewClient(feedConfig(wsURL(srv)))
	out := make(chan RawFrame, 4)
	states := make(chan models.ConnState, 16)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = c.Run(ctx, out, states)
		close(done)
	}()

	select {
	case frame := <-out:
		assert.Equal(t, payload, string(frame))
	case <-time.After(3 * time.Second):
		t.Fatal("frame not delivered")
	}
	assert.Equal(t, models.ConnConnected, c.State().Phase)

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestClientAuthErrorIsFatal(t *testing.T) {
	var dials atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dials.Add(1)
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		var req authRequest
		require.NoError(t, conn.ReadJSON(&req))
		require.NoError(t, conn.WriteJSON(authResponse{Type: "auth_error", Message: "bad token"}))
	}))
	defer srv.Close()

	c := NewClient(feedConfig(wsURL(srv)))
	err := c.Run(context.Background(), make(chan RawFrame, 1), nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAuth), "want ErrAuth, got %v", err)
	// битый токен не ретраим
	assert.Equal(t, int32(1), dials.Load())
	assert.Equal(t, models.ConnDisconnected, c.State().Phase)
}

func TestClientHandshakeRejectIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(feedConfig(wsURL(srv)))
	err := c.Run(context.Background(), make(chan RawFrame, 1), nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAuth), "want ErrAuth, got %v", err)
}

func TestClientReconnectsAfterDrop(t *testing.T) {
	payload := `{"type":"UPDATE_LEVERAGE","signal_id":"s2","symbol":"ETH-USDT-SWAP","leverage":5}`
	var dials atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := dials.Add(1)
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		acceptAuth(t, conn)
		if n == 1 {
			// первое соединение рвём сразу после auth
			return
		}
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(payload)))
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	c := NewClient(feedConfig(wsURL(srv)))
	out := make(chan RawFrame, 4)
	states := make(chan models.ConnState, 32)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = c.Run(ctx, out, states)
		close(done)
	}()

	select {
	case frame := <-out:
		assert.Equal(t, payload, string(frame))
	case <-time.After(5 * time.Second):
		t.Fatal("frame not delivered after reconnect")
	}
	assert.GreaterOrEqual(t, dials.Load(), int32(2))

	// машина состояний прошла через reconnecting с номером попытки
	var sawReconnecting bool
drain:
	for {
		select {
		case st := <-states:
			if st.Phase == models.ConnReconnecting {
				sawReconnecting = true
				assert.Greater(t, st.Attempt, 0)
				assert.Greater(t, st.Delay, time.Duration(0))
			}
		default:
			break drain
		}
	}
	assert.True(t, sawReconnecting)

	cancel()
	<-done
}

func TestClientAnswersServerPing(t *testing.T) {
	got := make(chan string, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		acceptAuth(t, conn)
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))

		_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err == nil {
			got <- string(msg)
		}
	}))
	defer srv.Close()

	c := NewClient(feedConfig(wsURL(srv)))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = c.Run(ctx, make(chan RawFrame, 1), nil)
		close(done)
	}()

	select {
	case msg := <-got:
		assert.Equal(t, "pong", msg)
	case <-time.After(4 * time.Second):
		t.Fatal("server did not receive pong")
	}

	cancel()
	<-done
}
