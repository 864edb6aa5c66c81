package runner

import (
	"context"
	"fmt"

	"signal_agent/internal/helper"
	"signal_agent/internal/models"

	"github.com/opentracing/opentracing-go"
)

func (r *Runner) handleClose(ctx context.Context, sig models.Signal) models.ExecutionOutcome {
	o := outcomeFor(sig)

	// 1. Закрывать нечего — отклоняем без похода к брокеру.
	pos, ok := r.led.Get(sig.Symbol)
	if !ok {
		return denied(o, ReasonNoOpenPosition, "")
	}

	// 2. Риск-гейт (дневной лимит сделок распространяется и на закрытия).
	balance, err := r.balanceFor(ctx)
	if err != nil {
		return failed(o, fmt.Sprintf("balance: %v", err))
	}
	if v := r.gate.Authorize(sig, r.led.Risk(), balance); !v.Allowed {
		return denied(o, string(v.Reason), "")
	}

	// 3. Размер закрываемой части.
	full := sig.ClosePct >= 100
	qty := pos.Size
	if !full {
		qty = pos.Size * sig.ClosePct / 100
		if meta, err := r.broker.GetInstrumentMeta(ctx, sig.Symbol); err == nil {
			qty = helper.RoundDownToStep(qty, meta.LotSz)
		}
		if qty <= 0 {
			return failed(o, fmt.Sprintf("доля %.2f%% от %.8f меньше шага инструмента", sig.ClosePct, pos.Size))
		}
	}

	// 4. Закрытие.
	sp, spctx := opentracing.StartSpanFromContext(ctx, "broker.close_position")
	res, err := r.broker.ClosePosition(spctx, models.CloseRequest{
		Symbol:     sig.Symbol,
		Side:       pos.Side,
		Qty:        qty,
		Full:       full,
		EntryPrice: pos.EntryPrice,
	})
	sp.Finish()
	if err != nil {
		if isTimeout(err) {
			return unknown(o, fmt.Sprintf("close: %v", err))
		}
		return failed(o, fmt.Sprintf("close: %v", err))
	}

	// 5. Леджер и дневной PnL.
	if full {
		r.led.Remove(sig.Symbol)
	} else {
		pos.Size -= qty
		pos.RealizedPnl += res.RealizedPnl
		r.led.Upsert(pos)
	}
	r.led.AddRealizedPnl(res.RealizedPnl)
	r.led.BumpTrade()
	r.persistDay(ctx)

	return executed(o, fmt.Sprintf("CLOSE %.2f%% qty=%v pnl=%.4f", sig.ClosePct, qty, res.RealizedPnl))
}
