package models

import "time"

// Position — открытая экспозиция по символу. Мутирует её только леджер.
type Position struct {
	Symbol      string    `json:"symbol"`
	Side        Side      `json:"side"`
	EntryPrice  float64   `json:"entryPrice"`
	Size        float64   `json:"size"` // базовая валюта
	Leverage    int       `json:"leverage"`
	StopLoss    *float64  `json:"stopLoss,omitempty"`
	TakeProfit  *float64  `json:"takeProfit,omitempty"`
	OpenedAt    time.Time `json:"openedAt"`
	RealizedPnl float64   `json:"realizedPnl"` // накоплено по частичным закрытиям
	SignalID    string    `json:"signalId"`    // сигнал, открывший позицию
}
