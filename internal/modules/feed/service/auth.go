package service

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// ErrAuth — фид отверг наш токен. Реконнект с тем же секретом не поможет,
// поэтому ошибка фатальна для всего агента.
var ErrAuth = errors.New("feed rejected credentials")

type authRequest struct {
	Type     string `json:"type"`
	Token    string `json:"token"`
	ClientID string `json:"client_id"`
}

type authResponse struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// authenticate шлёт auth-кадр и ждёт ack. Пока ack не пришёл, соединение
// не считается установленным и кадры наружу не отдаются.
func (c *Client) authenticate(conn *websocket.Conn) error {
	req := authRequest{
		Type:     "auth",
		Token:    c.cfg.Feed.Token,
		ClientID: c.cfg.Feed.ClientID,
	}

	if err := conn.SetWriteDeadline(time.Now().Add(c.cfg.AuthTimeout)); err != nil {
		return err
	}
	if err := conn.WriteJSON(req); err != nil {
		return errors.Wrap(err, "send auth frame")
	}
	_ = conn.SetWriteDeadline(time.Time{})

	if err := conn.SetReadDeadline(time.Now().Add(c.cfg.AuthTimeout)); err != nil {
		return err
	}
	_, msg, err := conn.ReadMessage()
	if err != nil {
		if ce, ok := err.(*websocket.CloseError); ok && ce.Code == websocket.ClosePolicyViolation {
			return fmt.Errorf("%w: %v", ErrAuth, err)
		}
		return errors.Wrap(err, "await auth ack")
	}
	_ = conn.SetReadDeadline(time.Time{})

	var resp authResponse
	if err := json.Unmarshal(msg, &resp); err != nil {
		return errors.Wrap(err, "decode auth ack")
	}

	switch resp.Type {
	case "auth_ok":
		return nil
	case "auth_error":
		return fmt.Errorf("%w: %s", ErrAuth, resp.Message)
	default:
		return fmt.Errorf("unexpected frame %q before auth ack", resp.Type)
	}
}
