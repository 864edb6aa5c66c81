package runner

import (
	"context"
	"fmt"

	"signal_agent/internal/models"
	"signal_agent/pkg/logger"

	"github.com/opentracing/opentracing-go"
)

func (r *Runner) handleLeverage(ctx context.Context, sig models.Signal) models.ExecutionOutcome {
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

	lev, clamped := r.gate.ClampLeverage(sig.Leverage)
	if clamped {
		logger.Info("[RISK] %s: плечо x%d срезано до x%d", sig.Symbol, sig.Leverage, lev)
	}

	sp, spctx := opentracing.StartSpanFromContext(ctx, "broker.set_leverage")
	err = r.broker.UpdateLeverage(spctx, sig.Symbol, lev)
	sp.Finish()
	if err != nil {
		if isTimeout(err) {
			return unknown(o, fmt.Sprintf("leverage: %v", err))
		}
		return failed(o, fmt.Sprintf("leverage: %v", err))
	}

	pos.Leverage = lev
	r.led.Upsert(pos)

	return executed(o, fmt.Sprintf("LEVERAGE x%d", lev))
}
