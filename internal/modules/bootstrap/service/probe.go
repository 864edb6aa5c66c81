package service

import (
	"context"
	"fmt"
	"net/http"

	brokersvc "signal_agent/internal/modules/broker/service"
	"signal_agent/internal/notify"
	"signal_agent/internal/runner"
	"signal_agent/pkg/logger"

	"github.com/pkg/errors"
)

// Probe — стартовая проверка брокера: один запрос баланса до подписки
// на фид. Битые ключи валят запуск сразу, а не на первом сигнале.
type Probe struct {
	broker runner.Broker
	n      notify.Notifier
}

func NewProbe(broker runner.Broker, n notify.Notifier) *Probe {
	return &Probe{broker: broker, n: n}
}

func (p *Probe) Run(ctx context.Context) error {
	bal, err := p.broker.GetBalance(ctx)
	if err != nil {
		var apiErr *brokersvc.APIError
		if errors.As(err, &apiErr) &&
			(apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden) {
			p.n.Sendf("⛔️ Брокер отклонил ключи (http %d)", apiErr.Status)
			return fmt.Errorf(
				"broker rejected credentials (http %d): проверь BROKER_API_KEY / BROKER_API_SECRET / BROKER_PASSPHRASE: %w",
				apiErr.Status, err,
			)
		}
		// биржа может быть временно недоступна — не блокируем запуск
		logger.Error("[BOOT] balance probe failed: %v", err)
		return nil
	}

	logger.Info("[BOOT] брокер ответил, доступно %.2f USDT", bal)
	p.n.Sendf("🔰 Агент запущен, на счёте %.2f USDT", bal)
	return nil
}
