package runner

import (
	"context"
	"sync"
	"time"

	"signal_agent/internal/decode"
	"signal_agent/internal/ledger"
	"signal_agent/internal/models"
	"signal_agent/internal/modules/config"
	feedsvc "signal_agent/internal/modules/feed/service"
	healthsvc "signal_agent/internal/modules/health/service"
	"signal_agent/internal/notify"
	"signal_agent/internal/risk"
	"signal_agent/pkg/logger"

	"github.com/opentracing/opentracing-go"
)

// Runner — координатор исполнения: принимает кадры фида, декодирует,
// прогоняет через риск-гейт и исполняет строго по одному. Леджер мутирует
// только воркер, поэтому гонок между проверками и исполнением нет.
type Runner struct {
	ctx    context.Context
	cancel context.CancelFunc

	params models.TradingParameters
	gate   *risk.Gate
	led    *ledger.Ledger
	broker Broker
	jrnl   Journal
	n      notify.Notifier
	hs     *healthsvc.State

	queue chan models.Signal
	quit  chan struct{}
	grace time.Duration

	wg sync.WaitGroup
}

func New(
	cfg *config.Config,
	gate *risk.Gate,
	led *ledger.Ledger,
	broker Broker,
	jrnl Journal,
	n notify.Notifier,
	hs *healthsvc.State,
) *Runner {
	return &Runner{
		params: cfg.TradingParameters(),
		gate:   gate,
		led:    led,
		broker: broker,
		jrnl:   jrnl,
		n:      n,
		hs:     hs,
		queue:  make(chan models.Signal, 64),
		quit:   make(chan struct{}),
		grace:  cfg.ShutdownGrace,
	}
}

func (r *Runner) Start(parent context.Context, frames <-chan feedsvc.RawFrame, states <-chan models.ConnState) {
	r.ctx, r.cancel = context.WithCancel(parent)

	r.seedDay(r.ctx)

	r.wg.Add(1)
	go r.worker()
	go r.intake(r.ctx, frames)
	go r.connWatch(r.ctx, states)

	r.hs.SetReady(true)
	logger.Info("[RUNNER] started: amount=%.2f USDT, maxLev=x%d, autoExecute=%v",
		r.params.TradeAmountUsdt, r.params.MaxLeverage, r.params.AutoExecute)
}

// Stop гасит приём и даёт текущему ордеру дорешаться в пределах grace.
func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	close(r.quit)

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Info("[RUNNER] stopped")
	case <-time.After(r.grace):
		logger.Error("[RUNNER] shutdown grace %s expired, abandoning in-flight work", r.grace)
	}
}

// intake: кадр → сигнал → очередь. Битые кадры дропаем и едем дальше.
func (r *Runner) intake(ctx context.Context, frames <-chan feedsvc.RawFrame) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-frames:
			if !ok {
				return
			}
			sig, err := decode.Decode(raw, time.Now())
			if err != nil {
				logger.Error("[DECODE] drop frame: %v", err)
				continue
			}
			r.hs.TouchSignal(sig.ReceivedAt)
			logger.Info("[SIGNAL] %s %s %s", sig.Kind, sig.Symbol, sig.SignalID)

			select {
			case r.queue <- sig:
			default:
				// исполнение не успевает; старый сигнал ценнее не становится
				logger.Error("[QUEUE] full, drop %s %s", sig.Kind, sig.Symbol)
			}
		}
	}
}

// worker — единственный поток исполнения.
func (r *Runner) worker() {
	defer r.wg.Done()
	for {
		select {
		case <-r.quit:
			return
		default:
		}

		select {
		case <-r.quit:
			return
		case sig := <-r.queue:
			r.process(sig)
		}
	}
}

func (r *Runner) process(sig models.Signal) {
	span := opentracing.StartSpan("signal")
	span.SetTag("kind", string(sig.Kind))
	span.SetTag("symbol", sig.Symbol)
	span.SetTag("signal_id", sig.SignalID)
	defer span.Finish()

	// воркер живёт на собственном контексте: Stop не убивает вызов на полпути,
	// таймауты брокера и так ограничены клиентом
	ctx := opentracing.ContextWithSpan(context.Background(), span)

	if r.led.RolloverIfNeeded(time.Now()) {
		logger.Info("[DAY] новый торговый день, дневные счётчики сброшены")
		r.persistDay(ctx)
	}

	var o models.ExecutionOutcome
	switch sig.Kind {
	case models.KindNewPosition:
		o = r.handleNew(ctx, sig)
	case models.KindClosePosition:
		o = r.handleClose(ctx, sig)
	case models.KindEditStopTakeProfit:
		o = r.handleEdit(ctx, sig)
	case models.KindUpdateLeverage:
		o = r.handleLeverage(ctx, sig)
	default:
		// декодер такое не пропускает
		return
	}

	span.SetTag("decision", string(o.Decision))
	r.emit(ctx, o)
}

// balanceFor достаёт баланс для гейта. Порог выключен — брокера не дёргаем.
func (r *Runner) balanceFor(ctx context.Context) (float64, error) {
	if r.params.MinBalance <= 0 {
		return 0, nil
	}
	return r.broker.GetBalance(ctx)
}

func (r *Runner) connWatch(ctx context.Context, states <-chan models.ConnState) {
	for {
		select {
		case <-ctx.Done():
			return
		case st := <-states:
			r.hs.SetFeedConnected(st.Phase == models.ConnConnected)
			switch st.Phase {
			case models.ConnConnected:
				r.n.Send("🔌 Фид подключен")
			case models.ConnReconnecting:
				logger.Info("[FEED] reconnect #%d через %s", st.Attempt, st.Delay)
			case models.ConnDisconnected:
				r.n.Send("⚡️ Фид отвалился, переподключаемся")
			}
		}
	}
}

// seedDay восстанавливает дневные счётчики из журнала после рестарта.
func (r *Runner) seedDay(ctx context.Context) {
	day := r.led.Risk().Day
	trades, pnl, err := r.jrnl.LoadDay(ctx, day)
	if err != nil {
		logger.Error("[JOURNAL] day restore failed: %v", err)
		return
	}
	if trades > 0 || pnl != 0 {
		r.led.SeedDay(day, trades, pnl)
		logger.Info("[JOURNAL] день %s восстановлен: trades=%d pnl=%.2f", day, trades, pnl)
	}
}

func (r *Runner) persistDay(ctx context.Context) {
	st := r.led.Risk()
	if err := r.jrnl.SaveDay(ctx, st.Day, st.TradesToday, st.DailyRealizedPnl); err != nil {
		logger.Error("[JOURNAL] save day: %v", err)
	}
}
