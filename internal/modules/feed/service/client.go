package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"signal_agent/internal/models"
	"signal_agent/internal/modules/config"
	"signal_agent/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
)

// RawFrame — сырой кадр фида. ping/pong сюда не попадают.
type RawFrame []byte

// Client держит постоянное соединение с бродкастером: dial, auth-рукопожатие,
// keepalive, реконнект с бэкоффом. Кадры с сигналами уходят в out как есть,
// декодирует их раннер.
type Client struct {
	cfg      *config.Config
	wsDialer *websocket.Dialer

	writeMu sync.Mutex // у gorilla один писатель на соединение

	mu    sync.RWMutex
	state models.ConnState
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		cfg:      cfg,
		wsDialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		state:    models.ConnState{Phase: models.ConnDisconnected, At: time.Now()},
	}
}

// State — текущий снапшот машины состояний (для health/статуса).
func (c *Client) State() models.ConnState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Run — цикл жизни соединения:
// dial → auth → read-loop → (ошибка) → Disconnected → Reconnecting(n, delay) → dial ...
// Возвращается по отмене ctx или по фатальному ErrAuth — его не ретраим.
func (c *Client) Run(ctx context.Context, out chan<- RawFrame, states chan<- models.ConnState) error {
	bo := &backoff.Backoff{
		Min:    c.cfg.ReconnectMin,
		Max:    c.cfg.ReconnectMax,
		Factor: 2,
		Jitter: true,
	}
	attempt := 0

	for {
		conn, err := c.dial(ctx)
		if err != nil {
			if errors.Is(err, ErrAuth) {
				// битый секрет — ретраи бессмысленны, эскалируем наверх
				c.transition(states, models.ConnState{Phase: models.ConnDisconnected, At: time.Now()})
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			attempt++
			delay := bo.Duration()
			logger.Error("[FEED] dial %s failed: %v (retry %d in %s)", c.cfg.Feed.URL, err, attempt, delay)
			c.transition(states, models.ConnState{
				Phase:   models.ConnReconnecting,
				Attempt: attempt,
				Delay:   delay,
				At:      time.Now(),
			})
			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		bo.Reset()
		attempt = 0
		logger.Info("[FEED] connected to %s", c.cfg.Feed.URL)
		c.transition(states, models.ConnState{Phase: models.ConnConnected, At: time.Now()})

		err = c.readLoop(ctx, conn, out)
		_ = conn.Close()

		if ctx.Err() != nil {
			return ctx.Err()
		}

		logger.Error("[FEED] connection lost: %v", err)
		c.transition(states, models.ConnState{Phase: models.ConnDisconnected, At: time.Now()})

		attempt++
		delay := bo.Duration()
		c.transition(states, models.ConnState{
			Phase:   models.ConnReconnecting,
			Attempt: attempt,
			Delay:   delay,
			At:      time.Now(),
		})
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// dial открывает соединение и проводит auth-рукопожатие до того, как
// наружу уйдёт хоть один кадр.
func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, resp, err := c.wsDialer.DialContext(ctx, c.cfg.Feed.URL, nil)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: handshake got http %d", ErrAuth, resp.StatusCode)
		}
		return nil, err
	}

	if err := c.authenticate(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

// readLoop гоняет keepalive и читает кадры до первой ошибки.
// Любой входящий трафик сдвигает read deadline: тишина дольше StaleAfter —
// соединение считается протухшим и рвётся.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, out chan<- RawFrame) error {
	done := make(chan struct{})
	defer close(done)

	go func() {
		t := time.NewTicker(c.cfg.PingInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				// рвём соединение, чтобы заблокированный ReadMessage не ждал StaleAfter
				_ = conn.Close()
				return
			case <-done:
				return
			case <-t.C:
				if err := c.writeText(conn, "ping"); err != nil {
					return
				}
			}
		}
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(c.cfg.StaleAfter))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		switch string(msg) {
		case "pong":
			continue
		case "ping":
			_ = c.writeText(conn, "pong")
			continue
		}

		select {
		case out <- RawFrame(msg):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) writeText(conn *websocket.Conn, s string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, []byte(s))
}

// transition публикует переход. Канал состояний не должен тормозить чтение:
// переполнился — событие дропаем, актуальное состояние всегда в c.state.
func (c *Client) transition(states chan<- models.ConnState, st models.ConnState) {
	c.mu.Lock()
	c.state = st
	c.mu.Unlock()

	if states == nil {
		return
	}
	select {
	case states <- st:
	default:
	}
}
