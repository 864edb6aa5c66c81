package notify

import (
	"context"
	"fmt"
	"log"
	"strings"

	"signal_agent/internal/models"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type Notifier interface {
	Send(msg string)
	Sendf(format string, args ...any)
}

// StatusSource — то, что нотифайер показывает по командам.
// Реализуется леджером, брокера отсюда не дёргаем.
type StatusSource interface {
	Snapshot() []models.Position
	Risk() models.RiskState
}

// Telegram — пассивный нотифайер + обработка команд /status и /positions.
type Telegram struct {
	bot    *tgbot.BotAPI
	chatID int64
	src    StatusSource
}

func NewTelegram(token string, chatID int64, src StatusSource) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Telegram{bot: b, chatID: chatID, src: src}, nil
}

func (t *Telegram) Send(msg string) {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return
	}
	_, _ = t.bot.Send(tgbot.NewMessage(t.chatID, msg))
}

func (t *Telegram) Sendf(format string, args ...any) { t.Send(fmt.Sprintf(format, args...)) }

// /positions — открытые позиции из леджера.
func (t *Telegram) handlePositions() {
	if t.src == nil {
		t.Send("❗️ Леджер не подключен")
		return
	}
	positions := t.src.Snapshot()
	if len(positions) == 0 {
		t.Send("📭 Открытых позиций нет")
		return
	}

	var b strings.Builder
	b.WriteString("📊 Открытые позиции:\n")
	for _, p := range positions {
		fmt.Fprintf(&b, "- %s [%s] size=%.4f @ %.4f lev=%dx realised=%.4f\n",
			p.Symbol, p.Side, p.Size, p.EntryPrice, p.Leverage, p.RealizedPnl)
	}
	t.Send(b.String())
}

// /status — дневные счётчики риска.
func (t *Telegram) handleStatus() {
	if t.src == nil {
		t.Send("❗️ Леджер не подключен")
		return
	}
	st := t.src.Risk()
	t.Sendf("🩺 STATUS | день=%s | сделок=%d | pnl=%.2f | открыто=%d",
		st.Day, st.TradesToday, st.DailyRealizedPnl, st.OpenPositionCount)
}

// Start: long-polling для команд.
func (t *Telegram) Start(ctx context.Context) error {
	if t == nil || t.bot == nil {
		return nil
	}

	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message"}

	updates := t.bot.GetUpdatesChan(u)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case upd := <-updates:
				if upd.Message == nil || upd.Message.Chat == nil ||
					upd.Message.Chat.ID != t.chatID || !upd.Message.IsCommand() {
					continue
				}
				switch upd.Message.Command() {
				case "positions":
					go t.handlePositions()
				case "status":
					go t.handleStatus()
				}
			}
		}
	}()
	return nil
}

func (t *Telegram) Stop() {
	if t != nil && t.bot != nil {
		t.bot.StopReceivingUpdates()
	}
}

// Stdout — заглушка, всё пишет в лог.
type Stdout struct{}

func NewStdout() *Stdout                           { return &Stdout{} }
func (s *Stdout) Send(msg string)                  { log.Println(msg) }
func (s *Stdout) Sendf(format string, args ...any) { log.Printf(format, args...) }
