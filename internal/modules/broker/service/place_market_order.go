package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"signal_agent/internal/helper"
	"signal_agent/internal/models"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

// PlaceMarketOrder открывает позицию маркетом: сначала выставляет плечо,
// затем шлёт ордер. SL/TP, если заданы, прикрепляются через attachAlgoOrds.
func (c *Client) PlaceMarketOrder(ctx context.Context, req models.OrderRequest) (models.OrderAck, error) {
	if req.Qty <= 0 {
		return models.OrderAck{}, fmt.Errorf("PlaceMarketOrder: qty <= 0")
	}

	var side, posSide string
	switch req.Side {
	case models.SideLong:
		side, posSide = "buy", "long"
	case models.SideShort:
		side, posSide = "sell", "short"
	default:
		return models.OrderAck{}, fmt.Errorf("PlaceMarketOrder: unsupported side %q", req.Side)
	}

	if req.Leverage > 0 {
		if err := c.UpdateLeverage(ctx, req.Symbol, req.Leverage); err != nil {
			return models.OrderAck{}, fmt.Errorf("PlaceMarketOrder: %w", err)
		}
	}

	step := 0.0
	if m, ok := c.cachedMeta(req.Symbol); ok {
		step = m.LotSz
	}

	// clOrdId — максимум 32 символа, uuid без дефисов влезает ровно
	clOrdID := strings.ReplaceAll(uuid.NewString(), "-", "")

	body := map[string]any{
		"instId":  req.Symbol,
		"tdMode":  "cross",
		"side":    side,
		"posSide": posSide,
		"ordType": "market",
		"sz":      helper.FormatQty(req.Qty, step),
		"clOrdId": clOrdID,
	}

	if req.StopLoss != nil || req.TakeProfit != nil {
		attach := map[string]string{}
		if req.TakeProfit != nil {
			attach["tpTriggerPx"] = helper.FormatPrice(*req.TakeProfit)
			attach["tpOrdPx"] = "-1"
			attach["tpTriggerPxType"] = "last"
		}
		if req.StopLoss != nil {
			attach["slTriggerPx"] = helper.FormatPrice(*req.StopLoss)
			attach["slOrdPx"] = "-1"
			attach["slTriggerPxType"] = "last"
		}
		body["attachAlgoOrds"] = []map[string]string{attach}
	}

	payload, err := sonic.Marshal(body)
	if err != nil {
		return models.OrderAck{}, fmt.Errorf("PlaceMarketOrder marshal: %w", err)
	}

	data, err := c.do(ctx, http.MethodPost, "/api/v5/trade/order", payload)
	if err != nil {
		return models.OrderAck{}, fmt.Errorf("PlaceMarketOrder: %w", err)
	}

	var r struct {
		Code string `json:"code"`
		Msg  string `json:"msg"`
		Data []struct {
			OrdID   string `json:"ordId"`
			ClOrdID string `json:"clOrdId"`
			SCode   string `json:"sCode"`
			SMsg    string `json:"sMsg"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return models.OrderAck{}, fmt.Errorf("PlaceMarketOrder decode: %w; body=%s", err, string(data))
	}

	if len(r.Data) > 0 && r.Data[0].SCode != "0" {
		return models.OrderAck{}, fmt.Errorf(
			"PlaceMarketOrder rejected: sCode=%s sMsg=%s RAW=%s",
			r.Data[0].SCode, r.Data[0].SMsg, string(data),
		)
	}
	if r.Code != "0" {
		return models.OrderAck{}, fmt.Errorf(
			"PlaceMarketOrder error: code=%s msg=%s RAW=%s",
			r.Code, r.Msg, string(data),
		)
	}
	if len(r.Data) == 0 || r.Data[0].OrdID == "" {
		return models.OrderAck{}, fmt.Errorf("PlaceMarketOrder: empty ordId RAW=%s", string(data))
	}

	return models.OrderAck{OrderID: r.Data[0].OrdID, ClientOrderID: clOrdID}, nil
}
