package checkout

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PaymentRecord is the storefront's own bookkeeping per transaction uuid:
// which points were already redeemed and which gateway token was issued.
type PaymentRecord struct {
	TransactionUUID string
	UserID          string
	PointsRedeemed  int
	Token           string
	RedirectURL     string
	GrossAmount     int64
	Outcome         string
	UpdatedAt       time.Time
}

type Ledger interface {
	Get(ctx context.Context, txUUID string) (PaymentRecord, bool, error)
	RecordRedemption(ctx context.Context, txUUID, userID string, points int) error
	RecordToken(ctx context.Context, txUUID, userID, token, redirectURL string, gross int64) error
	RecordOutcome(ctx context.Context, txUUID, outcome string) error
}

const LedgerSchema = `
CREATE TABLE IF NOT EXISTS checkout_payments (
	transaction_uuid TEXT PRIMARY KEY,
	user_id          TEXT NOT NULL,
	points_redeemed  INT NOT NULL DEFAULT 0,
	token            TEXT NOT NULL DEFAULT '',
	redirect_url     TEXT NOT NULL DEFAULT '',
	gross_amount     BIGINT NOT NULL DEFAULT 0,
	outcome          TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
)`

type PgLedger struct{ DB *pgxpool.Pool }

func (l *PgLedger) Get(ctx context.Context, txUUID string) (PaymentRecord, bool, error) {
	var r PaymentRecord
	err := l.DB.QueryRow(ctx, `
		SELECT transaction_uuid, user_id, points_redeemed, token, redirect_url, gross_amount, outcome, updated_at
		FROM checkout_payments WHERE transaction_uuid=$1`, txUUID).
		Scan(&r.TransactionUUID, &r.UserID, &r.PointsRedeemed, &r.Token, &r.RedirectURL, &r.GrossAmount, &r.Outcome, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return PaymentRecord{}, false, nil
	}
	if err != nil {
		return PaymentRecord{}, false, err
	}
	return r, true, nil
}

// RecordRedemption is write-once: a second call for the same uuid keeps the
// first count. Row lock (FOR UPDATE) serializes concurrent submits.
func (l *PgLedger) RecordRedemption(ctx context.Context, txUUID, userID string, points int) error {
	tx, err := l.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO checkout_payments(transaction_uuid, user_id)
		VALUES ($1, $2)
		ON CONFLICT (transaction_uuid) DO NOTHING`, txUUID, userID); err != nil {
		return err
	}
	var already int
	if err := tx.QueryRow(ctx, `
		SELECT points_redeemed FROM checkout_payments
		WHERE transaction_uuid=$1 FOR UPDATE`, txUUID).Scan(&already); err != nil {
		return err
	}
	if already == 0 {
		if _, err := tx.Exec(ctx, `
			UPDATE checkout_payments SET points_redeemed=$2, updated_at=now()
			WHERE transaction_uuid=$1`, txUUID, points); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (l *PgLedger) RecordToken(ctx context.Context, txUUID, userID, token, redirectURL string, gross int64) error {
	_, err := l.DB.Exec(ctx, `
		INSERT INTO checkout_payments(transaction_uuid, user_id, token, redirect_url, gross_amount)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (transaction_uuid) DO UPDATE
		SET token=EXCLUDED.token, redirect_url=EXCLUDED.redirect_url,
		    gross_amount=EXCLUDED.gross_amount, outcome='', updated_at=now()`,
		txUUID, userID, token, redirectURL, gross)
	return err
}

func (l *PgLedger) RecordOutcome(ctx context.Context, txUUID, outcome string) error {
	_, err := l.DB.Exec(ctx, `
		UPDATE checkout_payments SET outcome=$2, updated_at=now()
		WHERE transaction_uuid=$1`, txUUID, outcome)
	return err
}

// MemoryLedger is the in-process Ledger used when no database is configured.
type MemoryLedger struct {
	mu sync.Mutex
	m  map[string]PaymentRecord
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{m: map[string]PaymentRecord{}}
}

func (l *MemoryLedger) Get(_ context.Context, txUUID string) (PaymentRecord, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.m[txUUID]
	return r, ok, nil
}

func (l *MemoryLedger) RecordRedemption(_ context.Context, txUUID, userID string, points int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	r := l.m[txUUID]
	r.TransactionUUID, r.UserID = txUUID, userID
	if r.PointsRedeemed == 0 {
		r.PointsRedeemed = points
	}
	r.UpdatedAt = time.Now()
	l.m[txUUID] = r
	return nil
}

func (l *MemoryLedger) RecordToken(_ context.Context, txUUID, userID, token, redirectURL string, gross int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	r := l.m[txUUID]
	r.TransactionUUID, r.UserID = txUUID, userID
	r.Token, r.RedirectURL, r.GrossAmount, r.Outcome = token, redirectURL, gross, ""
	r.UpdatedAt = time.Now()
	l.m[txUUID] = r
	return nil
}

func (l *MemoryLedger) RecordOutcome(_ context.Context, txUUID, outcome string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.m[txUUID]
	if !ok {
		return nil
	}
	r.Outcome = outcome
	r.UpdatedAt = time.Now()
	l.m[txUUID] = r
	return nil
}

var (
	_ Ledger = (*PgLedger)(nil)
	_ Ledger = (*MemoryLedger)(nil)
)
