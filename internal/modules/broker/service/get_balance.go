package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// GetBalance возвращает доступный USDT на торговом счёте.
func (c *Client) GetBalance(ctx context.Context) (float64, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/v5/account/balance?ccy=USDT", nil)
	if err != nil {
		return 0, fmt.Errorf("GetBalance: %w", err)
	}

	var r struct {
		Code string `json:"code"`
		Msg  string `json:"msg"`
		Data []struct {
			Details []struct {
				Ccy      string `json:"ccy"`
				AvailBal string `json:"availBal"`
				Eq       string `json:"eq"`
			} `json:"details"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return 0, fmt.Errorf("GetBalance decode: %w; body=%s", err, string(data))
	}
	if r.Code != "0" {
		return 0, &APIError{Status: http.StatusOK, Code: r.Code, Msg: r.Msg}
	}

	for _, d := range r.Data {
		for _, det := range d.Details {
			if det.Ccy != "USDT" {
				continue
			}
			s := det.AvailBal
			if s == "" {
				s = det.Eq
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return 0, fmt.Errorf("GetBalance parse %q: %w", s, err)
			}
			return v, nil
		}
	}
	// счёт без USDT — баланс нулевой, это не ошибка
	return 0, nil
}
