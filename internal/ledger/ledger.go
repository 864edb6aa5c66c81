package ledger

import (
	"sort"
	"sync"
	"time"

	"signal_agent/internal/models"
)

const dayFormat = "2006-01-02"

// Ledger — единственный источник правды по открытым позициям и дневным
// счётчикам. Пишет в него только воркер раннера; мьютекс здесь ради
// читателей с других горутин (health, статус), они получают копии.
type Ledger struct {
	mu        sync.RWMutex
	positions map[string]models.Position // symbol -> position
	day       string                     // дата UTC
	trades    int
	pnl       float64
}

func New(now time.Time) *Ledger {
	return &Ledger{
		positions: make(map[string]models.Position),
		day:       now.UTC().Format(dayFormat),
	}
}

// Upsert кладёт позицию по символу, затирая предыдущую.
func (l *Ledger) Upsert(p models.Position) {
	l.mu.Lock()
	l.positions[p.Symbol] = p
	l.mu.Unlock()
}

func (l *Ledger) Remove(symbol string) {
	l.mu.Lock()
	delete(l.positions, symbol)
	l.mu.Unlock()
}

// Get возвращает копию позиции. Менять её и класть обратно через Upsert —
// единственный способ мутации.
func (l *Ledger) Get(symbol string) (models.Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.positions[symbol]
	return p, ok
}

// Snapshot — копии всех позиций, отсортированные по символу.
func (l *Ledger) Snapshot() []models.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func (l *Ledger) OpenCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.positions)
}

// Risk — копия дневных счётчиков вместе с производным числом позиций.
func (l *Ledger) Risk() models.RiskState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return models.RiskState{
		Day:               l.day,
		TradesToday:       l.trades,
		DailyRealizedPnl:  l.pnl,
		OpenPositionCount: len(l.positions),
	}
}

func (l *Ledger) BumpTrade() {
	l.mu.Lock()
	l.trades++
	l.mu.Unlock()
}

func (l *Ledger) AddRealizedPnl(v float64) {
	l.mu.Lock()
	l.pnl += v
	l.mu.Unlock()
}

// RolloverIfNeeded сбрасывает счётчики, если сутки UTC сменились.
// Вызывается раннером перед обработкой каждого сигнала.
func (l *Ledger) RolloverIfNeeded(now time.Time) bool {
	today := now.UTC().Format(dayFormat)

	l.mu.Lock()
	defer l.mu.Unlock()
	if today == l.day {
		return false
	}
	l.day = today
	l.trades = 0
	l.pnl = 0
	return true
}

// SeedDay восстанавливает счётчики из журнала на старте. Чужой день
// игнорируем: рестарт после полуночи начинает с нуля.
func (l *Ledger) SeedDay(day string, trades int, pnl float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if day != l.day {
		return
	}
	l.trades = trades
	l.pnl = pnl
}
