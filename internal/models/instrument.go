package models

// Instrument — метаданные инструмента, нужные для округления размера.
type Instrument struct {
	Symbol string
	LotSz  float64 // шаг количества
	MinSz  float64 // минимальный размер ордера
	TickSz float64 // шаг цены
	CtVal  float64 // номинал контракта; 1 — размер сразу в монетах
}
