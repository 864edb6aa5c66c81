package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// GetMarkPrice — последняя цена тикера, по ней считаем размер позиции.
func (c *Client) GetMarkPrice(ctx context.Context, symbol string) (float64, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/v5/market/ticker?instId="+url.QueryEscape(symbol), nil)
	if err != nil {
		return 0, fmt.Errorf("GetMarkPrice %s: %w", symbol, err)
	}

	var r struct {
		Code string `json:"code"`
		Msg  string `json:"msg"`
		Data []struct {
			Last   string `json:"last"`
			MarkPx string `json:"markPx"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return 0, fmt.Errorf("GetMarkPrice decode: %w; body=%s", err, string(data))
	}
	if r.Code != "0" {
		return 0, &APIError{Status: http.StatusOK, Code: r.Code, Msg: r.Msg}
	}
	if len(r.Data) == 0 {
		return 0, fmt.Errorf("GetMarkPrice %s: empty data", symbol)
	}

	s := r.Data[0].Last
	if s == "" {
		s = r.Data[0].MarkPx
	}
	px, err := strconv.ParseFloat(s, 64)
	if err != nil || px <= 0 {
		return 0, fmt.Errorf("GetMarkPrice %s: bad price %q", symbol, s)
	}
	return px, nil
}
