package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/bytedance/sonic"
)

// UpdateLeverage задаёт плечо инструмента для cross-маржи.
func (c *Client) UpdateLeverage(ctx context.Context, symbol string, leverage int) error {
	if leverage < 1 {
		return fmt.Errorf("UpdateLeverage: leverage < 1")
	}

	body := map[string]string{
		"instId":  symbol,
		"lever":   strconv.Itoa(leverage),
		"mgnMode": "cross",
	}
	payload, _ := sonic.Marshal(body)

	data, err := c.do(ctx, http.MethodPost, "/api/v5/account/set-leverage", payload)
	if err != nil {
		return fmt.Errorf("UpdateLeverage: %w", err)
	}

	var r struct {
		Code string `json:"code"`
		Msg  string `json:"msg"`
	}
	_ = json.Unmarshal(data, &r)
	if r.Code != "0" {
		return fmt.Errorf("UpdateLeverage error: code=%s msg=%s RAW=%s", r.Code, r.Msg, string(data))
	}
	return nil
}
