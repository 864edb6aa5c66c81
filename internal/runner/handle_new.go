package runner

import (
	"context"
	"fmt"
	"time"

	"signal_agent/internal/helper"
	"signal_agent/internal/models"
	"signal_agent/pkg/logger"

	"github.com/opentracing/opentracing-go"
)

func (r *Runner) handleNew(ctx context.Context, sig models.Signal) models.ExecutionOutcome {
	o := outcomeFor(sig)

	// 1. Конфликт: по символу уже есть позиция. Сигнал не мержим, а отклоняем.
	if _, ok := r.led.Get(sig.Symbol); ok {
		return denied(o, ReasonConflict, "позиция по символу уже открыта")
	}

	// 2. Риск-гейт. Баланс тянем только при включённом пороге.
	balance, err := r.balanceFor(ctx)
	if err != nil {
		return failed(o, fmt.Sprintf("balance: %v", err))
	}
	v := r.gate.Authorize(sig, r.led.Risk(), balance)
	if !v.Allowed {
		return denied(o, string(v.Reason), "")
	}
	if v.Clamped {
		logger.Info("[RISK] %s: плечо x%d срезано до x%d", sig.Symbol, sig.Leverage, v.Leverage)
	}

	// 3. Размер: нотионал → монеты → контракты → шаг инструмента.
	price, err := r.broker.GetMarkPrice(ctx, sig.Symbol)
	if err != nil {
		return failed(o, fmt.Sprintf("mark price: %v", err))
	}
	meta, err := r.broker.GetInstrumentMeta(ctx, sig.Symbol)
	if err != nil {
		return failed(o, fmt.Sprintf("instrument meta: %v", err))
	}

	qty := helper.QtyForNotional(r.params.TradeAmountUsdt, v.Leverage, price)
	if meta.CtVal > 0 && meta.CtVal != 1 {
		qty /= meta.CtVal
	}
	qty = helper.RoundDownToStep(qty, meta.LotSz)
	if qty <= 0 || qty < meta.MinSz {
		return failed(o, fmt.Sprintf("размер %.8f меньше минимума %v", qty, meta.MinSz))
	}

	// 4. Ордер. Таймаут — особый случай: заявка могла пройти, пересабмит запрещён.
	sp, spctx := opentracing.StartSpanFromContext(ctx, "broker.place_order")
	ack, err := r.broker.PlaceMarketOrder(spctx, models.OrderRequest{
		Symbol:     sig.Symbol,
		Side:       sig.Side,
		Qty:        qty,
		Leverage:   v.Leverage,
		StopLoss:   sig.StopLoss,
		TakeProfit: sig.TakeProfit,
	})
	sp.Finish()
	if err != nil {
		if isTimeout(err) {
			return unknown(o, fmt.Sprintf("place order: %v", err))
		}
		return failed(o, fmt.Sprintf("place order: %v", err))
	}

	// 5. Фиксируем позицию и дневной счётчик.
	r.led.Upsert(models.Position{
		Symbol:     sig.Symbol,
		Side:       sig.Side,
		EntryPrice: price,
		Size:       qty,
		Leverage:   v.Leverage,
		StopLoss:   sig.StopLoss,
		TakeProfit: sig.TakeProfit,
		OpenedAt:   time.Now(),
		SignalID:   sig.SignalID,
	})
	r.led.BumpTrade()
	r.persistDay(ctx)

	return executed(o, fmt.Sprintf("OPEN %s qty=%v x%d @ %v ordId=%s", sig.Side, qty, v.Leverage, price, ack.OrderID))
}
