package helper

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// QtyForNotional — размер ордера в базовой валюте:
// (сумма в USDT * плечо) / цена. Нулевая цена = нулевой размер.
func QtyForNotional(amountUsdt float64, leverage int, price float64) float64 {
	if price <= 0 || amountUsdt <= 0 {
		return 0
	}
	if leverage < 1 {
		leverage = 1
	}
	amt := decimal.NewFromFloat(amountUsdt).Mul(decimal.NewFromInt(int64(leverage)))
	q, _ := amt.Div(decimal.NewFromFloat(price)).Float64()
	return q
}

// RoundDownToStep режет количество вниз до шага инструмента.
// Вниз, а не к ближайшему: задуманный нотионал превышать нельзя.
func RoundDownToStep(qty, step float64) float64 {
	if step <= 0 {
		return qty
	}
	q := decimal.NewFromFloat(qty)
	s := decimal.NewFromFloat(step)
	f, _ := q.Div(s).Floor().Mul(s).Float64()
	return f
}

// FormatQty печатает количество с точностью шага: step=0.001 -> "0.125",
// step>=1 -> целое. Лишние знаки усекаются, не округляются: вверх
// количество уходить не должно никогда.
func FormatQty(qty, step float64) string {
	if step <= 0 {
		return strconv.FormatFloat(qty, 'f', -1, 64)
	}
	s := decimal.NewFromFloat(step)
	places := int32(0)
	if s.Exponent() < 0 {
		places = -s.Exponent()
	}
	return decimal.NewFromFloat(qty).Truncate(places).String()
}

// FormatPrice — цена без хвостовых нулей, для тел запросов.
func FormatPrice(px float64) string {
	return strconv.FormatFloat(px, 'f', -1, 64)
}
