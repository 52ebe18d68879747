package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
)

type DividendPayment struct {
	ID                    string    `db:"id"`
	ExternalID            string    `db:"external_id"`
	CompanyID             string    `db:"company_id"`
	TransferID            *string   `db:"transfer_id"`
	ProcessorName         string    `db:"processor_name"`
	TotalTransactionCents int64     `db:"total_transaction_cents"`
	Status                string    `db:"status"`
	CreatedAt             time.Time `db:"created_at"`
	UpdatedAt             time.Time `db:"updated_at"`
}

type Dividend struct {
	ID                string     `db:"id"`
	CompanyID         string     `db:"company_id"`
	UserID            string     `db:"user_id"`
	DividendPaymentID *string    `db:"dividend_payment_id"`
	TotalAmountCents  int64      `db:"total_amount_cents"`
	Status            string     `db:"status"`
	PaidAt            *time.Time `db:"paid_at"`
	CreatedAt         time.Time  `db:"created_at"`
}

// DividendTx covers one transfer-status transition: the payment row is
// locked so concurrent processor callbacks for the same transfer serialize.
type DividendTx interface {
	GetPaymentByTransferIDForUpdate(ctx context.Context, transferID string) (*DividendPayment, error)
	UpdatePaymentStatus(ctx context.Context, paymentID, status string) error
	MarkDividendsPaid(ctx context.Context, paymentID string) error
	ReopenDividends(ctx context.Context, paymentID string) error
}

type DividendRepository interface {
	InTx(ctx context.Context, fn func(tx DividendTx) error) error
	ListPendingPayments(ctx context.Context, olderThan time.Duration) ([]*DividendPayment, error)
	ListDividendsByPayment(ctx context.Context, paymentID string) ([]*Dividend, error)
}

type sqlxDividendRepository struct {
	db *sqlx.DB
}

func NewDividendRepository(db *sqlx.DB) DividendRepository {
	return &sqlxDividendRepository{db: db}
}

func (r *sqlxDividendRepository) InTx(ctx context.Context, fn func(tx DividendTx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(&sqlxDividendTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// ListPendingPayments returns pending payments that have not changed state
// for at least olderThan. The reconcile sweep logs these for follow-up.
func (r *sqlxDividendRepository) ListPendingPayments(ctx context.Context, olderThan time.Duration) ([]*DividendPayment, error) {
	var payments []*DividendPayment
	threshold := time.Now().Add(-olderThan)
	err := r.db.SelectContext(ctx, &payments, `
		SELECT id, external_id, company_id, transfer_id, processor_name,
		       total_transaction_cents, status, created_at, updated_at
		FROM dividend_payments
		WHERE status = 'pending' AND updated_at < $1
		ORDER BY updated_at
	`, threshold)
	return payments, err
}

func (r *sqlxDividendRepository) ListDividendsByPayment(ctx context.Context, paymentID string) ([]*Dividend, error) {
	var dividends []*Dividend
	err := r.db.SelectContext(ctx, &dividends, `
		SELECT id, company_id, user_id, dividend_payment_id, total_amount_cents, status, paid_at, created_at
		FROM dividends WHERE dividend_payment_id = $1
	`, paymentID)
	return dividends, err
}

type sqlxDividendTx struct {
	tx *sqlx.Tx
}

func (t *sqlxDividendTx) GetPaymentByTransferIDForUpdate(ctx context.Context, transferID string) (*DividendPayment, error) {
	payment := &DividendPayment{}
	err := t.tx.GetContext(ctx, payment, `
		SELECT id, external_id, company_id, transfer_id, processor_name,
		       total_transaction_cents, status, created_at, updated_at
		FROM dividend_payments WHERE transfer_id = $1
		FOR UPDATE
	`, transferID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return payment, nil
}

func (t *sqlxDividendTx) UpdatePaymentStatus(ctx context.Context, paymentID, status string) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE dividend_payments SET status = $2, updated_at = NOW() WHERE id = $1
	`, paymentID, status)
	return err
}

func (t *sqlxDividendTx) MarkDividendsPaid(ctx context.Context, paymentID string) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE dividends SET status = 'paid', paid_at = NOW()
		WHERE dividend_payment_id = $1 AND status <> 'paid'
	`, paymentID)
	return err
}

func (t *sqlxDividendTx) ReopenDividends(ctx context.Context, paymentID string) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE dividends SET status = 'issued', paid_at = NULL
		WHERE dividend_payment_id = $1
	`, paymentID)
	return err
}
