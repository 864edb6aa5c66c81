package risk

import (
	"signal_agent/internal/models"
)

// Reason — причина отказа. Попадает в лог исполнения как есть.
type Reason string

const (
	ReasonExecutionDisabled      Reason = "ExecutionDisabled"
	ReasonInsufficientBalance    Reason = "InsufficientBalance"
	ReasonTooManyPositions       Reason = "TooManyPositions"
	ReasonBelowMinimumOrder      Reason = "BelowMinimumOrder"
	ReasonDailyTradeLimitReached Reason = "DailyTradeLimitReached"
	ReasonDailyLossLimitReached  Reason = "DailyLossLimitReached"
)

// Verdict — решение гейта. Leverage — эффективное плечо после клампа,
// валидно и при отказе (для лога).
type Verdict struct {
	Allowed  bool
	Reason   Reason
	Leverage int
	Clamped  bool
}

func allow(lev int, clamped bool) Verdict {
	return Verdict{Allowed: true, Leverage: lev, Clamped: clamped}
}

func deny(r Reason, lev int, clamped bool) Verdict {
	return Verdict{Allowed: false, Reason: r, Leverage: lev, Clamped: clamped}
}

// Gate — единственная инстанция, решающая «можно ли исполнять».
// Ни один путь к брокеру не обходит Authorize.
type Gate struct {
	params models.TradingParameters
}

func NewGate(params models.TradingParameters) *Gate {
	return &Gate{params: params}
}

// ClampLeverage режет запрошенное плечо до максимума из конфига.
// Высокое плечо не повод отклонять сигнал — просто исполняем с меньшим.
func (g *Gate) ClampLeverage(requested int) (int, bool) {
	if requested < 1 {
		requested = 1
	}
	if g.params.MaxLeverage > 0 && requested > g.params.MaxLeverage {
		return g.params.MaxLeverage, true
	}
	return requested, false
}

// Authorize прогоняет сигнал через упорядоченные проверки, первая
// сработавшая побеждает. balance запрашивается вызывающим у брокера
// (гейт остаётся синхронным и чистым).
func (g *Gate) Authorize(sig models.Signal, state models.RiskState, balance float64) Verdict {
	lev, clamped := g.ClampLeverage(sig.Leverage)

	// 1. Глобальный рубильник.
	if !g.params.AutoExecute {
		return deny(ReasonExecutionDisabled, lev, clamped)
	}

	// 2. Минимальный баланс (0 = проверка выключена).
	if g.params.MinBalance > 0 && balance < g.params.MinBalance {
		return deny(ReasonInsufficientBalance, lev, clamped)
	}

	// 3. Только для новых позиций: лимит открытых и минимальный нотионал.
	if sig.Kind == models.KindNewPosition {
		if g.params.MaxOpenPositions > 0 && state.OpenPositionCount >= g.params.MaxOpenPositions {
			return deny(ReasonTooManyPositions, lev, clamped)
		}
		notional := g.params.TradeAmountUsdt * float64(lev)
		if notional < g.params.MinOrderValue {
			return deny(ReasonBelowMinimumOrder, lev, clamped)
		}
	}

	// 4. Дневной лимит сделок — для видов, порождающих исполнение.
	if sig.Kind == models.KindNewPosition || sig.Kind == models.KindClosePosition {
		if g.params.MaxDailyTrades > 0 && state.TradesToday >= g.params.MaxDailyTrades {
			return deny(ReasonDailyTradeLimitReached, lev, clamped)
		}
	}

	// 5. Дневной стоп-лосс. Блокирует только новые позиции: закрытие и
	// правка SL/TP разрешены, чтобы риск можно было снижать и после срабатывания.
	if sig.Kind == models.KindNewPosition {
		if g.params.StopOnDailyLoss > 0 && state.DailyRealizedPnl <= -g.params.StopOnDailyLoss {
			return deny(ReasonDailyLossLimitReached, lev, clamped)
		}
	}

	return allow(lev, clamped)
}
