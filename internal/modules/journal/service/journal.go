package service

import (
	"context"

	"signal_agent/internal/models"
	"signal_agent/pkg/db"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS trade_days (
	day        text PRIMARY KEY,
	trades     int NOT NULL DEFAULT 0,
	pnl        double precision NOT NULL DEFAULT 0,
	updated_at timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS outcomes (
	id        bigserial PRIMARY KEY,
	signal_id text NOT NULL,
	kind      text NOT NULL,
	symbol    text NOT NULL,
	decision  text NOT NULL,
	reason    text NOT NULL DEFAULT '',
	detail    text NOT NULL DEFAULT '',
	at        timestamptz NOT NULL
);`

// Journal — дневник исполнения: дневные счётчики риска (переживают рестарт)
// и лента исходов. По ленте сверяют руками исходы со статусом Unknown.
type Journal struct {
	tm *db.TxManager
}

func New(tm *db.TxManager) *Journal {
	return &Journal{tm: tm}
}

func (j *Journal) Migrate(ctx context.Context) error {
	_, err := j.tm.Conn().Exec(ctx, schema)
	return errors.Wrap(err, "journal migrate")
}

func (j *Journal) LoadDay(ctx context.Context, day string) (int, float64, error) {
	var (
		trades int
		pnl    float64
	)
	err := j.tm.Conn().
		QueryRow(ctx, `SELECT trades, pnl FROM trade_days WHERE day = $1`, day).
		Scan(&trades, &pnl)
	if err == pgx.ErrNoRows {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, errors.Wrap(err, "load day")
	}
	return trades, pnl, nil
}

func (j *Journal) SaveDay(ctx context.Context, day string, trades int, pnl float64) error {
	return j.tm.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO trade_days (day, trades, pnl, updated_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (day) DO UPDATE
			SET trades = EXCLUDED.trades, pnl = EXCLUDED.pnl, updated_at = now()`,
			day, trades, pnl,
		)
		return err
	})
}

func (j *Journal) RecordOutcome(ctx context.Context, o models.ExecutionOutcome) error {
	return j.tm.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO outcomes (signal_id, kind, symbol, decision, reason, detail, at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			o.SignalID, string(o.Kind), o.Symbol, string(o.Decision), o.Reason, o.Detail, o.At,
		)
		return err
	})
}

// Noop — журнал без базы: агент полноценно работает, просто дневные
// счётчики не переживают рестарт.
type Noop struct{}

func NewNoop() *Noop { return &Noop{} }

func (*Noop) LoadDay(context.Context, string) (int, float64, error) { return 0, 0, nil }

func (*Noop) SaveDay(context.Context, string, int, float64) error { return nil }

func (*Noop) RecordOutcome(context.Context, models.ExecutionOutcome) error { return nil }
