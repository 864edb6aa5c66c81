package models

import "time"

// Decision — итоговая классификация обработки одного сигнала.
type Decision string

const (
	DecisionExecuted Decision = "executed"
	DecisionDenied   Decision = "denied"
	DecisionFailed   Decision = "failed"
	// DecisionUnknown — таймаут брокера: исход ордера не подтверждён и не
	// опровергнут, нужна ручная сверка. Никогда не ресабмитим.
	DecisionUnknown Decision = "unknown"
)

// ExecutionOutcome — структурированное событие для лога исполнения.
// Каждый обработанный сигнал завершается ровно одним Outcome.
type ExecutionOutcome struct {
	SignalID string
	Kind     SignalKind
	Symbol   string
	Decision Decision
	Reason   string
	Detail   string
	At       time.Time
}
