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

// UpdateStopTakeProfit переставляет SL/TP на открытой позиции:
// снимает старые conditional-ордера и вешает новый на весь остаток позиции.
// nil оставляет соответствующий уровень не выставленным.
func (c *Client) UpdateStopTakeProfit(ctx context.Context, symbol string, side models.Side, sl, tp *float64) error {
	ids, err := c.pendingAlgos(ctx, symbol)
	if err != nil {
		return fmt.Errorf("UpdateStopTakeProfit: %w", err)
	}
	if err := c.cancelAlgos(ctx, symbol, ids); err != nil {
		return fmt.Errorf("UpdateStopTakeProfit: %w", err)
	}
	if sl == nil && tp == nil {
		return nil
	}
	return c.placeTpsl(ctx, symbol, side, sl, tp)
}

// placeTpsl вешает conditional-ордер на закрытие всей позиции по триггеру.
func (c *Client) placeTpsl(ctx context.Context, symbol string, posSide models.Side, sl, tp *float64) error {
	var side, ps string
	switch posSide {
	case models.SideLong:
		side, ps = "sell", "long"
	case models.SideShort:
		side, ps = "buy", "short"
	default:
		return fmt.Errorf("placeTpsl: unsupported side %q", posSide)
	}

	body := map[string]string{
		"instId":        symbol,
		"tdMode":        "cross",
		"side":          side,
		"posSide":       ps,
		"ordType":       "conditional",
		"closeFraction": "1",
	}

	if sl != nil {
		body["slTriggerPx"] = helper.FormatPrice(*sl)
		body["slOrdPx"] = "-1"
		body["slTriggerPxType"] = "last"
	}
	if tp != nil {
		body["tpTriggerPx"] = helper.FormatPrice(*tp)
		body["tpOrdPx"] = "-1"
		body["tpTriggerPxType"] = "last"
	}

	payload, err := sonic.Marshal(body)
	if err != nil {
		return fmt.Errorf("placeTpsl marshal: %w", err)
	}

	data, err := c.do(ctx, http.MethodPost, "/api/v5/trade/order-algo", payload)
	if err != nil {
		return fmt.Errorf("placeTpsl: %w", err)
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
	if err := json.Unmarshal(data, &r); err != nil {
		return fmt.Errorf("placeTpsl decode: %w; body=%s", err, string(data))
	}

	if len(r.Data) > 0 && r.Data[0].SCode != "0" {
		return fmt.Errorf("placeTpsl reject: sCode=%s sMsg=%s RAW=%s", r.Data[0].SCode, r.Data[0].SMsg, string(data))
	}
	if r.Code != "0" {
		return fmt.Errorf("placeTpsl error: code=%s msg=%s RAW=%s", r.Code, r.Msg, string(data))
	}
	return nil
}
