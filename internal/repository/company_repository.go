package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Company struct {
	ID            string
	ExternalID    string
	Name          string
	OwnerID       string
	SharePriceUSD *string
	EquityEnabled bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type CompanyRepository interface {
	Create(ctx context.Context, company *Company) error
	FindByID(ctx context.Context, id string) (*Company, error)
	FindByUserID(ctx context.Context, userID string) ([]*Company, error)
	Update(ctx context.Context, company *Company) error
}

type pgCompanyRepository struct {
	pool *pgxpool.Pool
}

func NewCompanyRepository(pool *pgxpool.Pool) CompanyRepository {
	return &pgCompanyRepository{pool: pool}
}

func (r *pgCompanyRepository) Create(ctx context.Context, company *Company) error {
	if company.ExternalID == "" {
		company.ExternalID = NewExternalID()
	}
	query := `
		INSERT INTO companies (external_id, name, owner_id, share_price_usd, equity_enabled)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	return r.pool.QueryRow(ctx, query,
		company.ExternalID, company.Name, company.OwnerID, company.SharePriceUSD, company.EquityEnabled,
	).Scan(&company.ID, &company.CreatedAt, &company.UpdatedAt)
}

func (r *pgCompanyRepository) FindByID(ctx context.Context, id string) (*Company, error) {
	query := `
		SELECT id, external_id, name, owner_id, share_price_usd::text, equity_enabled, created_at, updated_at
		FROM companies WHERE id = $1
	`
	c := &Company{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.ExternalID, &c.Name, &c.OwnerID, &c.SharePriceUSD,
		&c.EquityEnabled, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// FindByUserID lists companies where the user holds any role or is the owner.
func (r *pgCompanyRepository) FindByUserID(ctx context.Context, userID string) ([]*Company, error) {
	query := `
		SELECT DISTINCT c.id, c.external_id, c.name, c.owner_id, c.share_price_usd::text,
		       c.equity_enabled, c.created_at, c.updated_at
		FROM companies c
		LEFT JOIN company_administrators ca ON ca.company_id = c.id
		LEFT JOIN company_lawyers cl ON cl.company_id = c.id
		WHERE c.owner_id = $1 OR ca.user_id = $1 OR cl.user_id = $1
		ORDER BY c.name
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var companies []*Company
	for rows.Next() {
		c := &Company{}
		if err := rows.Scan(
			&c.ID, &c.ExternalID, &c.Name, &c.OwnerID, &c.SharePriceUSD,
			&c.EquityEnabled, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		companies = append(companies, c)
	}
	return companies, rows.Err()
}

func (r *pgCompanyRepository) Update(ctx context.Context, company *Company) error {
	query := `
		UPDATE companies
		SET name = $2, share_price_usd = $3, equity_enabled = $4, updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query, company.ID, company.Name, company.SharePriceUSD, company.EquityEnabled)
	return err
}
