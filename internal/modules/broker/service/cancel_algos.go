package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/bytedance/sonic"
)

// pendingAlgos возвращает id висящих conditional/oco ордеров по инструменту.
func (c *Client) pendingAlgos(ctx context.Context, symbol string) ([]string, error) {
	data, err := c.do(ctx, http.MethodGet,
		"/api/v5/trade/orders-algo-pending?ordType=conditional,oco&instId="+url.QueryEscape(symbol), nil)
	if err != nil {
		return nil, fmt.Errorf("pendingAlgos: %w", err)
	}

	var r struct {
		Code string `json:"code"`
		Msg  string `json:"msg"`
		Data []struct {
			AlgoID string `json:"algoId"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("pendingAlgos decode: %w; body=%s", err, string(data))
	}
	if r.Code != "0" {
		return nil, fmt.Errorf("pendingAlgos error: code=%s msg=%s", r.Code, r.Msg)
	}

	ids := make([]string, 0, len(r.Data))
	for _, d := range r.Data {
		if d.AlgoID != "" {
			ids = append(ids, d.AlgoID)
		}
	}
	return ids, nil
}

// cancelAlgos снимает пачку algo-ордеров одним запросом.
func (c *Client) cancelAlgos(ctx context.Context, symbol string, algoIDs []string) error {
	if len(algoIDs) == 0 {
		return nil
	}

	body := make([]map[string]string, 0, len(algoIDs))
	for _, id := range algoIDs {
		body = append(body, map[string]string{"instId": symbol, "algoId": id})
	}
	payload, _ := sonic.Marshal(body)

	data, err := c.do(ctx, http.MethodPost, "/api/v5/trade/cancel-algos", payload)
	if err != nil {
		return fmt.Errorf("cancelAlgos: %w", err)
	}

	var r struct {
		Code string `json:"code"`
		Msg  string `json:"msg"`
		Data []struct {
			AlgoID string `json:"algoId"`
			SCode  string `json:"sCode"`
			SMsg   string `json:"sMsg"`
		} `json:"data"`
	}
	_ = json.Unmarshal(data, &r)

	if r.Code != "0" {
		return fmt.Errorf("cancelAlgos error: code=%s msg=%s RAW=%s", r.Code, r.Msg, string(data))
	}
	for _, d := range r.Data {
		if d.SCode != "0" {
			return fmt.Errorf("cancelAlgos reject: algoId=%s sCode=%s sMsg=%s", d.AlgoID, d.SCode, d.SMsg)
		}
	}
	return nil
}
