package models

import "time"

// SignalKind — закрытый набор видов сигналов от бродкастера.
// Новый вид = новая константа + явная ветка в декодере и в раннере.
type SignalKind string

const (
	KindNewPosition        SignalKind = "NEW_SIGNAL"
	KindClosePosition      SignalKind = "CLOSE_SIGNAL"
	KindEditStopTakeProfit SignalKind = "EDIT_SLTP"
	KindUpdateLeverage     SignalKind = "UPDATE_LEVERAGE"
)

type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

type OrderType string

const (
	OrderMarket OrderType = "MARKET"
	OrderLimit  OrderType = "LIMIT"
)

// Signal — иммутабельное значение из фида. Для kind != NewPosition
// валиден только символ с уже открытой позицией.
type Signal struct {
	Kind       SignalKind
	SignalID   string
	Symbol     string
	Side       Side      // только NewPosition
	OrderType  OrderType // только NewPosition
	EntryPrice float64   // 0 = маркет
	StopLoss   *float64
	TakeProfit *float64
	Leverage   int     // 0 = не задан
	ClosePct   float64 // только ClosePosition, (0;100]
	ReceivedAt time.Time
}
