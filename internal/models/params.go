package models

// TradingParameters — иммутабельный снимок торговых настроек из конфига.
// Ядро их не перечитывает: что загрузили на старте, с тем и работаем.
type TradingParameters struct {
	TradeAmountUsdt  float64
	MaxLeverage      int
	MinOrderValue    float64
	AutoExecute      bool
	MaxDailyTrades   int
	MaxOpenPositions int
	StopOnDailyLoss  float64 // 0 = выключено
	MinBalance       float64 // 0 = выключено
}
