package models

// RiskState — дневные счётчики риска. Сбрасываются на границе суток UTC.
type RiskState struct {
	Day               string  `json:"day"` // дата UTC, "2006-01-02"
	TradesToday       int     `json:"tradesToday"`
	DailyRealizedPnl  float64 `json:"dailyRealizedPnl"`
	OpenPositionCount int     `json:"openPositionCount"`
}
