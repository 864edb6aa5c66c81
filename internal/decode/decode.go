package decode

import (
	"errors"
	"fmt"
	"time"

	"signal_agent/internal/models"

	"github.com/bytedance/sonic"
)

var (
	// ErrMalformed — битый JSON или отсутствует обязательное для вида поле.
	// Сообщение дропается целиком, частично не обрабатываем.
	ErrMalformed = errors.New("malformed message")
	// ErrUnknownKind — неизвестный type. Новые виды от бродкастера не должны
	// ронять клиент: дропаем и логируем.
	ErrUnknownKind = errors.New("unknown message kind")
)

// envelope — сырой кадр бродкастера. NEW_SIGNAL кладёт payload во вложенный
// объект "signal", остальные виды — плоские.
type envelope struct {
	Type   string     `json:"type"`
	Signal *newSignal `json:"signal"`

	SignalID   *string  `json:"signal_id"`
	Symbol     *string  `json:"symbol"`
	Percentage *float64 `json:"percentage"`
	StopLoss   *float64 `json:"stop_loss"`
	TakeProfit *float64 `json:"take_profit"`
	Leverage   *int     `json:"leverage"`
}

type newSignal struct {
	SignalID   *string  `json:"signal_id"`
	Symbol     *string  `json:"symbol"`
	SignalType *string  `json:"signal_type"`
	OrderType  *string  `json:"order_type"`
	EntryPrice *float64 `json:"entry_price"`
	StopLoss   *float64 `json:"stop_loss"`
	TakeProfit *float64 `json:"take_profit"`
	Leverage   *int     `json:"leverage"`
}

// Decode разбирает кадр в models.Signal. Чистая функция: никаких побочных
// эффектов, весь контекст приходит аргументами.
func Decode(raw []byte, now time.Time) (models.Signal, error) {
	var env envelope
	if err := sonic.Unmarshal(raw, &env); err != nil {
		return models.Signal{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return models.Signal{}, fmt.Errorf("%w: empty type", ErrMalformed)
	}

	switch models.SignalKind(env.Type) {
	case models.KindNewPosition:
		return decodeNew(env, now)
	case models.KindClosePosition:
		return decodeClose(env, now)
	case models.KindEditStopTakeProfit:
		return decodeEdit(env, now)
	case models.KindUpdateLeverage:
		return decodeLeverage(env, now)
	default:
		return models.Signal{}, fmt.Errorf("%w: %q", ErrUnknownKind, env.Type)
	}
}

func decodeNew(env envelope, now time.Time) (models.Signal, error) {
	p := env.Signal
	if p == nil {
		return models.Signal{}, fmt.Errorf("%w: NEW_SIGNAL without signal payload", ErrMalformed)
	}
	if p.SignalID == nil || *p.SignalID == "" {
		return models.Signal{}, fmt.Errorf("%w: NEW_SIGNAL missing signal_id", ErrMalformed)
	}
	if p.Symbol == nil || *p.Symbol == "" {
		return models.Signal{}, fmt.Errorf("%w: NEW_SIGNAL missing symbol", ErrMalformed)
	}
	if p.SignalType == nil {
		return models.Signal{}, fmt.Errorf("%w: NEW_SIGNAL missing signal_type", ErrMalformed)
	}
	var side models.Side
	switch models.Side(*p.SignalType) {
	case models.SideLong:
		side = models.SideLong
	case models.SideShort:
		side = models.SideShort
	default:
		return models.Signal{}, fmt.Errorf("%w: bad signal_type %q", ErrMalformed, *p.SignalType)
	}
	if p.OrderType == nil {
		return models.Signal{}, fmt.Errorf("%w: NEW_SIGNAL missing order_type", ErrMalformed)
	}
	var ot models.OrderType
	switch models.OrderType(*p.OrderType) {
	case models.OrderMarket:
		ot = models.OrderMarket
	case models.OrderLimit:
		ot = models.OrderLimit
	default:
		return models.Signal{}, fmt.Errorf("%w: bad order_type %q", ErrMalformed, *p.OrderType)
	}

	lev := 1
	if p.Leverage != nil {
		if *p.Leverage <= 0 {
			return models.Signal{}, fmt.Errorf("%w: leverage %d", ErrMalformed, *p.Leverage)
		}
		lev = *p.Leverage
	}

	sig := models.Signal{
		Kind:       models.KindNewPosition,
		SignalID:   *p.SignalID,
		Symbol:     *p.Symbol,
		Side:       side,
		OrderType:  ot,
		StopLoss:   p.StopLoss,
		TakeProfit: p.TakeProfit,
		Leverage:   lev,
		ReceivedAt: now,
	}
	if p.EntryPrice != nil {
		sig.EntryPrice = *p.EntryPrice
	}
	return sig, nil
}

func decodeClose(env envelope, now time.Time) (models.Signal, error) {
	if env.SignalID == nil || *env.SignalID == "" {
		return models.Signal{}, fmt.Errorf("%w: CLOSE_SIGNAL missing signal_id", ErrMalformed)
	}
	if env.Symbol == nil || *env.Symbol == "" {
		return models.Signal{}, fmt.Errorf("%w: CLOSE_SIGNAL missing symbol", ErrMalformed)
	}
	pct := 100.0
	if env.Percentage != nil {
		pct = *env.Percentage
	}
	if pct <= 0 || pct > 100 {
		return models.Signal{}, fmt.Errorf("%w: percentage %v out of (0;100]", ErrMalformed, pct)
	}
	return models.Signal{
		Kind:       models.KindClosePosition,
		SignalID:   *env.SignalID,
		Symbol:     *env.Symbol,
		ClosePct:   pct,
		ReceivedAt: now,
	}, nil
}

func decodeEdit(env envelope, now time.Time) (models.Signal, error) {
	if env.SignalID == nil || *env.SignalID == "" {
		return models.Signal{}, fmt.Errorf("%w: EDIT_SLTP missing signal_id", ErrMalformed)
	}
	if env.Symbol == nil || *env.Symbol == "" {
		return models.Signal{}, fmt.Errorf("%w: EDIT_SLTP missing symbol", ErrMalformed)
	}
	if env.StopLoss == nil && env.TakeProfit == nil {
		return models.Signal{}, fmt.Errorf("%w: EDIT_SLTP without stop_loss and take_profit", ErrMalformed)
	}
	return models.Signal{
		Kind:       models.KindEditStopTakeProfit,
		SignalID:   *env.SignalID,
		Symbol:     *env.Symbol,
		StopLoss:   env.StopLoss,
		TakeProfit: env.TakeProfit,
		ReceivedAt: now,
	}, nil
}

func decodeLeverage(env envelope, now time.Time) (models.Signal, error) {
	if env.SignalID == nil || *env.SignalID == "" {
		return models.Signal{}, fmt.Errorf("%w: UPDATE_LEVERAGE missing signal_id", ErrMalformed)
	}
	if env.Symbol == nil || *env.Symbol == "" {
		return models.Signal{}, fmt.Errorf("%w: UPDATE_LEVERAGE missing symbol", ErrMalformed)
	}
	if env.Leverage == nil {
		return models.Signal{}, fmt.Errorf("%w: UPDATE_LEVERAGE missing leverage", ErrMalformed)
	}
	if *env.Leverage <= 0 {
		return models.Signal{}, fmt.Errorf("%w: leverage %d", ErrMalformed, *env.Leverage)
	}
	return models.Signal{
		Kind:       models.KindUpdateLeverage,
		SignalID:   *env.SignalID,
		Symbol:     *env.Symbol,
		Leverage:   *env.Leverage,
		ReceivedAt: now,
	}, nil
}
