package models

// OrderRequest — рыночный ордер на открытие позиции. Leverage выставляется
// брокером до входа, SL/TP вешаются на ордер сразу.
type OrderRequest struct {
	Symbol     string
	Side       Side
	Qty        float64 // уже округлено вниз до шага инструмента
	Leverage   int
	StopLoss   *float64
	TakeProfit *float64
}

// OrderAck — подтверждение брокера.
type OrderAck struct {
	OrderID       string
	ClientOrderID string
}

// CloseRequest — закрытие позиции целиком или частями.
// Full=true закрывает через close-position, частичное — reduce-only маркетом.
// EntryPrice нужен брокеру для оценки реализованного PnL.
type CloseRequest struct {
	Symbol     string
	Side       Side
	Qty        float64
	Full       bool
	EntryPrice float64
}

// CloseResult — итог закрытия. ExitPrice == 0 — цену выхода получить
// не удалось, PnL в этом случае нулевой.
type CloseResult struct {
	RealizedPnl float64
	ExitPrice   float64
}
