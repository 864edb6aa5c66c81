package service

import (
	"context"
	"strings"
	"sync"

	"signal_agent/internal/models"
	"signal_agent/pkg/logger"

	"github.com/google/uuid"
)

// Sim — брокер-заглушка: исполняет всё мгновенно и ничего не шлёт наружу.
// Включается broker.simulated, удобен для обкатки фида без живых ключей.
type Sim struct {
	mu      sync.Mutex
	balance float64
	prices  map[string]float64
}

func NewSim() *Sim {
	return &Sim{
		balance: 10000,
		prices:  make(map[string]float64),
	}
}

// SetPrice подменяет цену инструмента, по умолчанию всё стоит 100.
func (s *Sim) SetPrice(symbol string, px float64) {
	s.mu.Lock()
	s.prices[symbol] = px
	s.mu.Unlock()
}

func (s *Sim) GetBalance(ctx context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance, nil
}

func (s *Sim) GetMarkPrice(ctx context.Context, symbol string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if px, ok := s.prices[symbol]; ok {
		return px, nil
	}
	return 100.0, nil
}

func (s *Sim) GetInstrumentMeta(ctx context.Context, symbol string) (models.Instrument, error) {
	return models.Instrument{
		Symbol: symbol,
		LotSz:  0.001,
		MinSz:  0.001,
		TickSz: 0.01,
		CtVal:  1,
	}, nil
}

func (s *Sim) PlaceMarketOrder(ctx context.Context, req models.OrderRequest) (models.OrderAck, error) {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	logger.Info("[SIM] market %s %s qty=%v", req.Side, req.Symbol, req.Qty)
	return models.OrderAck{OrderID: "sim-" + id[:12], ClientOrderID: id}, nil
}

func (s *Sim) ClosePosition(ctx context.Context, req models.CloseRequest) (models.CloseResult, error) {
	logger.Info("[SIM] close %s %s qty=%v full=%v", req.Side, req.Symbol, req.Qty, req.Full)

	px, _ := s.GetMarkPrice(ctx, req.Symbol)
	if req.EntryPrice <= 0 {
		return models.CloseResult{ExitPrice: px}, nil
	}
	diff := px - req.EntryPrice
	if req.Side == models.SideShort {
		diff = -diff
	}
	return models.CloseResult{RealizedPnl: diff * req.Qty, ExitPrice: px}, nil
}

func (s *Sim) UpdateStopTakeProfit(ctx context.Context, symbol string, side models.Side, sl, tp *float64) error {
	logger.Info("[SIM] sl/tp %s", symbol)
	return nil
}

func (s *Sim) UpdateLeverage(ctx context.Context, symbol string, leverage int) error {
	logger.Info("[SIM] leverage %s -> x%d", symbol, leverage)
	return nil
}
