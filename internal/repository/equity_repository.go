package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
)

type EquityGrant struct {
	ID                 string         `db:"id"`
	ExternalID         string         `db:"external_id"`
	CompanyID          string         `db:"company_id"`
	UserID             string         `db:"user_id"`
	OptionPoolID       *string        `db:"option_pool_id"`
	NumberOfShares     int64          `db:"number_of_shares"`
	VestedShares       int64          `db:"vested_shares"`
	UnvestedShares     int64          `db:"unvested_shares"`
	ForfeitedShares    int64          `db:"forfeited_shares"`
	SharePriceUSD      string         `db:"share_price_usd"`
	Status             string         `db:"status"`
	CancellationReason sql.NullString `db:"cancellation_reason"`
	CancelledAt        *time.Time     `db:"cancelled_at"`
	CreatedAt          time.Time      `db:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at"`
}

type OptionPool struct {
	ID               string    `db:"id"`
	CompanyID        string    `db:"company_id"`
	Name             string    `db:"name"`
	AuthorizedShares int64     `db:"authorized_shares"`
	IssuedShares     int64     `db:"issued_shares"`
	AvailableShares  int64     `db:"available_shares"`
	CreatedAt        time.Time `db:"created_at"`
}

type Invoice struct {
	ID                string    `db:"id"`
	ExternalID        string    `db:"external_id"`
	CompanyID         string    `db:"company_id"`
	UserID            string    `db:"user_id"`
	TotalAmountCents  int64     `db:"total_amount_cents"`
	EquityPercentage  int       `db:"equity_percentage"`
	EquityAmountCents int64     `db:"equity_amount_cents"`
	EquityShares      int64     `db:"equity_shares"`
	Status            string    `db:"status"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

// EquityTx covers the mutations of one grant-cancellation transaction:
// the grant is locked, flipped to cancelled, and its unvested shares are
// returned to the pool atomically.
type EquityTx interface {
	GetGrantForUpdate(ctx context.Context, grantID string) (*EquityGrant, error)
	UpdateGrantCancelled(ctx context.Context, grantID, reason string, forfeited int64) error
	AddPoolAvailableShares(ctx context.Context, poolID string, shares int64) error
}

type EquityRepository interface {
	InTx(ctx context.Context, fn func(tx EquityTx) error) error
	FindGrantByID(ctx context.Context, grantID string) (*EquityGrant, error)
	ListGrantsByCompany(ctx context.Context, companyID string) ([]*EquityGrant, error)
	FindInvoiceByID(ctx context.Context, invoiceID string) (*Invoice, error)
	UpdateInvoiceEquity(ctx context.Context, invoiceID string, pct int, amountCents, shares int64) error
	FindPoolByCompany(ctx context.Context, companyID string) (*OptionPool, error)
}

type sqlxEquityRepository struct {
	db *sqlx.DB
}

func NewEquityRepository(db *sqlx.DB) EquityRepository {
	return &sqlxEquityRepository{db: db}
}

func (r *sqlxEquityRepository) InTx(ctx context.Context, fn func(tx EquityTx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(&sqlxEquityTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *sqlxEquityRepository) FindGrantByID(ctx context.Context, grantID string) (*EquityGrant, error) {
	grant := &EquityGrant{}
	err := r.db.GetContext(ctx, grant, `
		SELECT id, external_id, company_id, user_id, option_pool_id, number_of_shares,
		       vested_shares, unvested_shares, forfeited_shares, share_price_usd::text,
		       status, cancellation_reason, cancelled_at, created_at, updated_at
		FROM equity_grants WHERE id = $1
	`, grantID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return grant, nil
}

func (r *sqlxEquityRepository) ListGrantsByCompany(ctx context.Context, companyID string) ([]*EquityGrant, error) {
	var grants []*EquityGrant
	err := r.db.SelectContext(ctx, &grants, `
		SELECT id, external_id, company_id, user_id, option_pool_id, number_of_shares,
		       vested_shares, unvested_shares, forfeited_shares, share_price_usd::text,
		       status, cancellation_reason, cancelled_at, created_at, updated_at
		FROM equity_grants WHERE company_id = $1
		ORDER BY created_at DESC
	`, companyID)
	return grants, err
}

func (r *sqlxEquityRepository) FindInvoiceByID(ctx context.Context, invoiceID string) (*Invoice, error) {
	invoice := &Invoice{}
	err := r.db.GetContext(ctx, invoice, `
		SELECT id, external_id, company_id, user_id, total_amount_cents, equity_percentage,
		       equity_amount_cents, equity_shares, status, created_at, updated_at
		FROM invoices WHERE id = $1
	`, invoiceID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

func (r *sqlxEquityRepository) UpdateInvoiceEquity(ctx context.Context, invoiceID string, pct int, amountCents, shares int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE invoices
		SET equity_percentage = $2, equity_amount_cents = $3, equity_shares = $4, updated_at = NOW()
		WHERE id = $1
	`, invoiceID, pct, amountCents, shares)
	return err
}

func (r *sqlxEquityRepository) FindPoolByCompany(ctx context.Context, companyID string) (*OptionPool, error) {
	pool := &OptionPool{}
	err := r.db.GetContext(ctx, pool, `
		SELECT id, company_id, name, authorized_shares, issued_shares, available_shares, created_at
		FROM option_pools WHERE company_id = $1
		ORDER BY created_at LIMIT 1
	`, companyID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return pool, nil
}

type sqlxEquityTx struct {
	tx *sqlx.Tx
}

func (t *sqlxEquityTx) GetGrantForUpdate(ctx context.Context, grantID string) (*EquityGrant, error) {
	grant := &EquityGrant{}
	err := t.tx.GetContext(ctx, grant, `
		SELECT id, external_id, company_id, user_id, option_pool_id, number_of_shares,
		       vested_shares, unvested_shares, forfeited_shares, share_price_usd::text,
		       status, cancellation_reason, cancelled_at, created_at, updated_at
		FROM equity_grants WHERE id = $1
		FOR UPDATE
	`, grantID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return grant, nil
}

func (t *sqlxEquityTx) UpdateGrantCancelled(ctx context.Context, grantID, reason string, forfeited int64) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE equity_grants
		SET status = 'cancelled', cancellation_reason = $2, forfeited_shares = $3,
		    unvested_shares = 0, cancelled_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`, grantID, reason, forfeited)
	return err
}

func (t *sqlxEquityTx) AddPoolAvailableShares(ctx context.Context, poolID string, shares int64) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE option_pools
		SET available_shares = available_shares + $2, issued_shares = issued_shares - $2
		WHERE id = $1
	`, poolID, shares)
	return err
}
