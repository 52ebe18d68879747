package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Invitation struct {
	ID          string
	Email       string
	Token       string
	CompanyID   string
	Role        string
	InvitedByID *string
	Status      string // pending, accepted, expired
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

type InvitationRepository interface {
	Create(ctx context.Context, invitation *Invitation) error
	FindByToken(ctx context.Context, token string) (*Invitation, error)
	FindPendingByEmail(ctx context.Context, email string) ([]*Invitation, error)
	FindPendingByCompany(ctx context.Context, companyID string) ([]*Invitation, error)
	Update(ctx context.Context, invitation *Invitation) error
	DeleteExpired(ctx context.Context) (int, error)
}

type pgInvitationRepository struct {
	pool *pgxpool.Pool
}

func NewInvitationRepository(pool *pgxpool.Pool) InvitationRepository {
	return &pgInvitationRepository{pool: pool}
}

func (r *pgInvitationRepository) Create(ctx context.Context, invitation *Invitation) error {
	invitation.Token = uuid.New().String()
	query := `
		INSERT INTO company_invitations (email, token, company_id, role, invited_by_id, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`
	return r.pool.QueryRow(ctx, query,
		invitation.Email, invitation.Token, invitation.CompanyID,
		invitation.Role, invitation.InvitedByID, invitation.Status, invitation.ExpiresAt,
	).Scan(&invitation.ID, &invitation.CreatedAt)
}

func (r *pgInvitationRepository) FindByToken(ctx context.Context, token string) (*Invitation, error) {
	query := `
		SELECT id, email, token, company_id, role, invited_by_id, status, expires_at, created_at
		FROM company_invitations WHERE token = $1
	`
	invitation := &Invitation{}
	err := r.pool.QueryRow(ctx, query, token).Scan(
		&invitation.ID, &invitation.Email, &invitation.Token, &invitation.CompanyID,
		&invitation.Role, &invitation.InvitedByID, &invitation.Status,
		&invitation.ExpiresAt, &invitation.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return invitation, nil
}

func (r *pgInvitationRepository) FindPendingByEmail(ctx context.Context, email string) ([]*Invitation, error) {
	query := `
		SELECT id, email, token, company_id, role, invited_by_id, status, expires_at, created_at
		FROM company_invitations WHERE LOWER(email) = LOWER($1) AND status = 'pending'
		ORDER BY created_at DESC
	`
	return r.queryMany(ctx, query, email)
}

func (r *pgInvitationRepository) FindPendingByCompany(ctx context.Context, companyID string) ([]*Invitation, error) {
	query := `
		SELECT id, email, token, company_id, role, invited_by_id, status, expires_at, created_at
		FROM company_invitations WHERE company_id = $1 AND status = 'pending'
		ORDER BY created_at DESC
	`
	return r.queryMany(ctx, query, companyID)
}

func (r *pgInvitationRepository) Update(ctx context.Context, invitation *Invitation) error {
	query := `UPDATE company_invitations SET status = $2 WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, invitation.ID, invitation.Status)
	return err
}

func (r *pgInvitationRepository) DeleteExpired(ctx context.Context) (int, error) {
	query := `DELETE FROM company_invitations WHERE expires_at < NOW() AND status = 'pending'`
	result, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return int(result.RowsAffected()), nil
}

func (r *pgInvitationRepository) queryMany(ctx context.Context, query string, arg any) ([]*Invitation, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invitations []*Invitation
	for rows.Next() {
		invitation := &Invitation{}
		if err := rows.Scan(
			&invitation.ID, &invitation.Email, &invitation.Token, &invitation.CompanyID,
			&invitation.Role, &invitation.InvitedByID, &invitation.Status,
			&invitation.ExpiresAt, &invitation.CreatedAt,
		); err != nil {
			return nil, err
		}
		invitations = append(invitations, invitation)
	}
	return invitations, rows.Err()
}
