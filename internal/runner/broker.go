package runner

import (
	"context"
	"errors"
	"net"

	"signal_agent/internal/models"
)

// Broker — всё, что координатору нужно от биржи.
type Broker interface {
	GetBalance(ctx context.Context) (float64, error)
	GetMarkPrice(ctx context.Context, symbol string) (float64, error)
	GetInstrumentMeta(ctx context.Context, symbol string) (models.Instrument, error)
	PlaceMarketOrder(ctx context.Context, req models.OrderRequest) (models.OrderAck, error)
	ClosePosition(ctx context.Context, req models.CloseRequest) (models.CloseResult, error)
	UpdateStopTakeProfit(ctx context.Context, symbol string, side models.Side, sl, tp *float64) error
	UpdateLeverage(ctx context.Context, symbol string, leverage int) error
}

// Journal — дневник исполнения. При пустом DSN подставляется no-op,
// поэтому вызовы безусловные.
type Journal interface {
	LoadDay(ctx context.Context, day string) (trades int, pnl float64, err error)
	SaveDay(ctx context.Context, day string, trades int, pnl float64) error
	RecordOutcome(ctx context.Context, o models.ExecutionOutcome) error
}

// isTimeout — просрочка вызова брокера. Для мутирующих вызовов судьба
// заявки в этом случае неизвестна, и пересабмит запрещён.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return false
}
