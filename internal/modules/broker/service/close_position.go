package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"signal_agent/internal/helper"
	"signal_agent/internal/models"

	"github.com/bytedance/sonic"
)

// ClosePosition закрывает позицию. Полное закрытие идёт через close-position
// (биржа сама снимает висящие SL/TP), частичное — reduce-only маркетом.
// Реализованный PnL оцениваем по последней цене после закрытия.
func (c *Client) ClosePosition(ctx context.Context, req models.CloseRequest) (models.CloseResult, error) {
	var posSide string
	switch req.Side {
	case models.SideLong:
		posSide = "long"
	case models.SideShort:
		posSide = "short"
	default:
		return models.CloseResult{}, fmt.Errorf("ClosePosition: unsupported side %q", req.Side)
	}

	var err error
	if req.Full {
		err = c.closeFull(ctx, req.Symbol, posSide)
	} else {
		err = c.closeReduce(ctx, req.Symbol, posSide, req.Qty)
	}
	if err != nil {
		return models.CloseResult{}, err
	}
	return c.estimateRealized(ctx, req), nil
}

// estimateRealized считает PnL закрытой части по последней цене.
// Биржа точную цифру в ответе close не отдаёт, поэтому это оценка;
// не получили цену — PnL нулевой, но закрытие уже состоялось.
func (c *Client) estimateRealized(ctx context.Context, req models.CloseRequest) models.CloseResult {
	px, err := c.GetMarkPrice(ctx, req.Symbol)
	if err != nil || req.EntryPrice <= 0 {
		return models.CloseResult{}
	}

	ctVal := 1.0
	if m, ok := c.cachedMeta(req.Symbol); ok && m.CtVal > 0 {
		ctVal = m.CtVal
	}

	diff := px - req.EntryPrice
	if req.Side == models.SideShort {
		diff = -diff
	}
	return models.CloseResult{
		RealizedPnl: diff * req.Qty * ctVal,
		ExitPrice:   px,
	}
}

func (c *Client) closeFull(ctx context.Context, symbol, posSide string) error {
	body := map[string]string{
		"instId":  symbol,
		"posSide": posSide,
		"mgnMode": "cross",
		"autoCxl": "true",
	}
	payload, _ := sonic.Marshal(body)

	data, err := c.do(ctx, http.MethodPost, "/api/v5/trade/close-position", payload)
	if err != nil {
		return fmt.Errorf("ClosePosition: %w", err)
	}

	var r struct {
		Code string `json:"code"`
		Msg  string `json:"msg"`
	}
	_ = json.Unmarshal(data, &r)
	if r.Code != "0" {
		return fmt.Errorf("ClosePosition error: code=%s msg=%s RAW=%s", r.Code, r.Msg, string(data))
	}
	return nil
}

func (c *Client) closeReduce(ctx context.Context, symbol, posSide string, qty float64) error {
	if qty <= 0 {
		return fmt.Errorf("ClosePosition: qty <= 0")
	}

	side := "sell" // закрываем long
	if posSide == "short" {
		side = "buy" // закрываем short
	}

	step := 0.0
	if m, ok := c.cachedMeta(symbol); ok {
		step = m.LotSz
	}

	body := map[string]any{
		"instId":     symbol,
		"tdMode":     "cross",
		"side":       side,
		"posSide":    posSide,
		"ordType":    "market",
		"sz":         helper.FormatQty(qty, step),
		"reduceOnly": true,
	}
	payload, _ := sonic.Marshal(body)

	data, err := c.do(ctx, http.MethodPost, "/api/v5/trade/order", payload)
	if err != nil {
		return fmt.Errorf("ClosePosition: %w", err)
	}

	var r struct {
		Code string `json:"code"`
		Msg  string `json:"msg"`
		Data []struct {
			OrdID string `json:"ordId"`
			SCode string `json:"sCode"`
			SMsg  string `json:"sMsg"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return fmt.Errorf("ClosePosition decode: %w; body=%s", err, string(data))
	}
	if len(r.Data) == 0 {
		return fmt.Errorf("ClosePosition: empty data code=%s msg=%s", r.Code, r.Msg)
	}
	d := r.Data[0]
	if r.Code != "0" || d.SCode != "0" {
		return fmt.Errorf("ClosePosition error: code=%s msg=%s sCode=%s sMsg=%s", r.Code, r.Msg, d.SCode, d.SMsg)
	}
	return nil
}
