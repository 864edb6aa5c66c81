package runner

import (
	"context"
	"time"

	"signal_agent/internal/models"
	"signal_agent/pkg/logger"

	"go.uber.org/zap"
)

// Причины, которые выставляет сам координатор (в дополнение к risk.Reason).
const (
	ReasonConflict       = "Conflict"
	ReasonNoOpenPosition = "NoOpenPosition"
	ReasonBrokerError    = "BrokerError"
	ReasonTimeoutUnknown = "TimeoutUnknown"
)

func outcomeFor(sig models.Signal) models.ExecutionOutcome {
	return models.ExecutionOutcome{
		SignalID: sig.SignalID,
		Kind:     sig.Kind,
		Symbol:   sig.Symbol,
		At:       time.Now(),
	}
}

func denied(o models.ExecutionOutcome, reason, detail string) models.ExecutionOutcome {
	o.Decision = models.DecisionDenied
	o.Reason = reason
	o.Detail = detail
	return o
}

func failed(o models.ExecutionOutcome, detail string) models.ExecutionOutcome {
	o.Decision = models.DecisionFailed
	o.Reason = ReasonBrokerError
	o.Detail = detail
	return o
}

func unknown(o models.ExecutionOutcome, detail string) models.ExecutionOutcome {
	o.Decision = models.DecisionUnknown
	o.Reason = ReasonTimeoutUnknown
	o.Detail = detail
	return o
}

func executed(o models.ExecutionOutcome, detail string) models.ExecutionOutcome {
	o.Decision = models.DecisionExecuted
	o.Detail = detail
	return o
}

// emit — единая точка выхода: структурный лог, журнал, уведомление.
// Ни один исход не проглатывается молча.
func (r *Runner) emit(ctx context.Context, o models.ExecutionOutcome) {
	logger.Event("execution outcome",
		zap.String("signal_id", o.SignalID),
		zap.String("kind", string(o.Kind)),
		zap.String("symbol", o.Symbol),
		zap.String("decision", string(o.Decision)),
		zap.String("reason", o.Reason),
		zap.String("detail", o.Detail),
	)

	if err := r.jrnl.RecordOutcome(ctx, o); err != nil {
		logger.Error("[JOURNAL] record outcome: %v", err)
	}

	switch o.Decision {
	case models.DecisionExecuted:
		r.n.Sendf("✅ [%s] %s исполнен | %s", o.Symbol, o.Kind, o.Detail)
	case models.DecisionDenied:
		r.n.Sendf("⛔️ [%s] %s отклонён: %s", o.Symbol, o.Kind, o.Reason)
	case models.DecisionFailed:
		r.n.Sendf("❗️ [%s] %s не прошёл: %s", o.Symbol, o.Kind, o.Detail)
	case models.DecisionUnknown:
		r.n.Sendf("⚠️ [%s] %s без подтверждения (%s). Пересабмита не будет, сверь позицию на бирже вручную", o.Symbol, o.Kind, o.Detail)
	}
}
