package runner

import (
	"context"
	"fmt"

	"signal_agent/internal/models"

	"github.com/opentracing/opentracing-go"
)

func (r *Runner) handleEdit(ctx context.Context, sig models.Signal) models.ExecutionOutcome {
	o := outcomeFor(sig)

	pos, ok := r.led.Get(sig.Symbol)
	if !ok {
		return denied(o, ReasonNoOpenPosition, "")
	}

	balance, err := r.balanceFor(ctx)
	if err != nil {
		return failed(o, fmt.Sprintf("balance: %v", err))
	}
	if v := r.gate.Authorize(sig, r.led.Risk(), balance); !v.Allowed {
		return denied(o, string(v.Reason), "")
	}

	// Отсутствующий уровень не трогаем: прислали только SL — TP остаётся прежним.
	sl := pos.StopLoss
	if sig.StopLoss != nil {
		sl = sig.StopLoss
	}
	tp := pos.TakeProfit
	if sig.TakeProfit != nil {
		tp = sig.TakeProfit
	}

	sp, spctx := opentracing.StartSpanFromContext(ctx, "broker.update_sltp")
	err = r.broker.UpdateStopTakeProfit(spctx, sig.Symbol, pos.Side, sl, tp)
	sp.Finish()
	if err != nil {
		if isTimeout(err) {
			// применилось или нет — неизвестно, леджер не трогаем
			return unknown(o, fmt.Sprintf("sl/tp: %v", err))
		}
		return failed(o, fmt.Sprintf("sl/tp: %v", err))
	}

	// Правка уровней сделкой не считается: tradesToday не трогаем.
	pos.StopLoss = sl
	pos.TakeProfit = tp
	r.led.Upsert(pos)

	return executed(o, fmt.Sprintf("EDIT sl=%s tp=%s", fmtLevel(sl), fmtLevel(tp)))
}

func fmtLevel(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.4f", *v)
}
