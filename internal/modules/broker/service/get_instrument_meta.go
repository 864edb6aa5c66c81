package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"signal_agent/internal/models"
)

// GetInstrumentMeta тянет метаданные инструмента (шаг и минимум размера,
// номинал контракта). Ответ кэшируется: шаги меняются только при релистинге.
func (c *Client) GetInstrumentMeta(ctx context.Context, symbol string) (models.Instrument, error) {
	if m, ok := c.cachedMeta(symbol); ok {
		return m, nil
	}

	data, err := c.do(ctx, http.MethodGet,
		"/api/v5/public/instruments?instType=SWAP&instId="+url.QueryEscape(symbol), nil)
	if err != nil {
		return models.Instrument{}, fmt.Errorf("GetInstrumentMeta %s: %w", symbol, err)
	}

	var r struct {
		Code string `json:"code"`
		Msg  string `json:"msg"`
		Data []struct {
			InstID string `json:"instId"`
			State  string `json:"state"`
			LotSz  string `json:"lotSz"`
			MinSz  string `json:"minSz"`
			TickSz string `json:"tickSz"`
			CtVal  string `json:"ctVal"`
			CtMult string `json:"ctMult"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return models.Instrument{}, fmt.Errorf("GetInstrumentMeta decode: %w; body=%s", err, string(data))
	}
	if r.Code != "0" {
		return models.Instrument{}, &APIError{Status: http.StatusOK, Code: r.Code, Msg: r.Msg}
	}
	if len(r.Data) == 0 {
		return models.Instrument{}, fmt.Errorf("instrument %s not found", symbol)
	}

	inst := r.Data[0]
	if inst.State != "" && inst.State != "live" {
		return models.Instrument{}, fmt.Errorf("instrument %s not live: state=%s", symbol, inst.State)
	}

	parsePos := func(name, s string) (float64, error) {
		if s == "" {
			return 0, fmt.Errorf("%s empty", name)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v <= 0 {
			return 0, fmt.Errorf("%s parse: %v (%q)", name, err, s)
		}
		return v, nil
	}

	lotSz, err := parsePos("lotSz", inst.LotSz)
	if err != nil {
		return models.Instrument{}, err
	}
	minSz, err := parsePos("minSz", inst.MinSz)
	if err != nil {
		return models.Instrument{}, err
	}
	tickSz, err := parsePos("tickSz", inst.TickSz)
	if err != nil {
		return models.Instrument{}, err
	}

	ctVal := 1.0
	if inst.CtVal != "" {
		if v, e := strconv.ParseFloat(inst.CtVal, 64); e == nil && v > 0 {
			ctVal = v
		}
	}
	if inst.CtMult != "" {
		if v, e := strconv.ParseFloat(inst.CtMult, 64); e == nil && v > 0 {
			ctVal *= v
		}
	}

	m := models.Instrument{
		Symbol: inst.InstID,
		LotSz:  lotSz,
		MinSz:  minSz,
		TickSz: tickSz,
		CtVal:  ctVal,
	}
	c.storeMeta(m)
	return m, nil
}
