package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type User struct {
	ID               string
	Email            string
	Password         string
	Name             string
	Status           string
	InvitationToken  *string
	InvitedByID      *string
	InvitationSentAt *time.Time
	LastActiveAt     *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type RefreshToken struct {
	ID        string
	Token     string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// MemberSnapshot is the per-user view the reconciliation planner works from:
// does this email belong to a persisted user, and which roles does that user
// currently hold in the company.
type MemberSnapshot struct {
	UserID   string
	Email    string
	IsAdmin  bool
	IsLawyer bool
}

type UserRepository interface {
	Create(ctx context.Context, user *User) error
	CreateInvited(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByInvitationToken(ctx context.Context, token string) (*User, error)
	ActivateInvited(ctx context.Context, userID, name, hashedPassword string) error
	FindMemberSnapshots(ctx context.Context, companyID string, emails []string) ([]*MemberSnapshot, error)
	Update(ctx context.Context, user *User) error
	UpdateLastActive(ctx context.Context, userID string) error
	UpdateStatusForInactive(ctx context.Context, inactiveDuration time.Duration) error
	SaveRefreshToken(ctx context.Context, token *RefreshToken) error
	FindRefreshToken(ctx context.Context, token string) (*RefreshToken, error)
	DeleteRefreshToken(ctx context.Context, token string) error
}

type pgUserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &pgUserRepository{pool: pool}
}

func (r *pgUserRepository) Create(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (email, password, name, status, last_active_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	now := time.Now()
	user.LastActiveAt = &now
	if user.Status == "" {
		user.Status = "online"
	}
	return r.pool.QueryRow(ctx, query,
		user.Email, user.Password, user.Name, user.Status, now,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
}

func (r *pgUserRepository) CreateInvited(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (email, name, status, invitation_token, invited_by_id, invitation_sent_at)
		VALUES ($1, $2, 'invited', $3, $4, NOW())
		RETURNING id, created_at, updated_at
	`
	return r.pool.QueryRow(ctx, query,
		user.Email, user.Name, user.InvitationToken, user.InvitedByID,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
}

func (r *pgUserRepository) FindByID(ctx context.Context, id string) (*User, error) {
	query := `
		SELECT id, email, password, name, status, invitation_token, invited_by_id,
		       invitation_sent_at, last_active_at, created_at, updated_at
		FROM users WHERE id = $1
	`
	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

func (r *pgUserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT id, email, password, name, status, invitation_token, invited_by_id,
		       invitation_sent_at, last_active_at, created_at, updated_at
		FROM users WHERE LOWER(email) = LOWER($1)
	`
	return r.scanOne(r.pool.QueryRow(ctx, query, email))
}

func (r *pgUserRepository) FindByInvitationToken(ctx context.Context, token string) (*User, error) {
	query := `
		SELECT id, email, password, name, status, invitation_token, invited_by_id,
		       invitation_sent_at, last_active_at, created_at, updated_at
		FROM users WHERE invitation_token = $1 AND status = 'invited'
	`
	return r.scanOne(r.pool.QueryRow(ctx, query, token))
}

// ActivateInvited turns an invited placeholder into a real account.
func (r *pgUserRepository) ActivateInvited(ctx context.Context, userID, name, hashedPassword string) error {
	query := `
		UPDATE users
		SET name = $2, password = $3, status = 'online',
		    invitation_token = NULL, last_active_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query, userID, name, hashedPassword)
	return err
}

// FindMemberSnapshots loads every persisted user matching the given emails
// together with their current role rows for the company, in one statement.
// Emails with no matching user are simply absent from the result.
func (r *pgUserRepository) FindMemberSnapshots(ctx context.Context, companyID string, emails []string) ([]*MemberSnapshot, error) {
	query := `
		SELECT u.id, u.email,
		       ca.id IS NOT NULL AS is_admin,
		       cl.id IS NOT NULL AS is_lawyer
		FROM users u
		LEFT JOIN company_administrators ca ON ca.user_id = u.id AND ca.company_id = $1
		LEFT JOIN company_lawyers cl ON cl.user_id = u.id AND cl.company_id = $1
		WHERE LOWER(u.email) = ANY($2)
	`
	rows, err := r.pool.Query(ctx, query, companyID, emails)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []*MemberSnapshot
	for rows.Next() {
		s := &MemberSnapshot{}
		if err := rows.Scan(&s.UserID, &s.Email, &s.IsAdmin, &s.IsLawyer); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

func (r *pgUserRepository) Update(ctx context.Context, user *User) error {
	query := `
		UPDATE users SET email = $2, name = $3, status = $4, updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query, user.ID, user.Email, user.Name, user.Status)
	return err
}

func (r *pgUserRepository) UpdateLastActive(ctx context.Context, userID string) error {
	query := `UPDATE users SET last_active_at = NOW(), status = 'online' WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, userID)
	return err
}

func (r *pgUserRepository) UpdateStatusForInactive(ctx context.Context, inactiveDuration time.Duration) error {
	query := `
		UPDATE users SET status = 'away'
		WHERE status = 'online' AND last_active_at < $1
	`
	threshold := time.Now().Add(-inactiveDuration)
	_, err := r.pool.Exec(ctx, query, threshold)
	return err
}

func (r *pgUserRepository) SaveRefreshToken(ctx context.Context, token *RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (token, user_id, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	return r.pool.QueryRow(ctx, query, token.Token, token.UserID, token.ExpiresAt).
		Scan(&token.ID, &token.CreatedAt)
}

func (r *pgUserRepository) FindRefreshToken(ctx context.Context, token string) (*RefreshToken, error) {
	query := `
		SELECT id, token, user_id, expires_at, created_at
		FROM refresh_tokens WHERE token = $1
	`
	rt := &RefreshToken{}
	err := r.pool.QueryRow(ctx, query, token).Scan(
		&rt.ID, &rt.Token, &rt.UserID, &rt.ExpiresAt, &rt.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rt, nil
}

func (r *pgUserRepository) DeleteRefreshToken(ctx context.Context, token string) error {
	query := `DELETE FROM refresh_tokens WHERE token = $1`
	_, err := r.pool.Exec(ctx, query, token)
	return err
}

func (r *pgUserRepository) scanOne(row pgx.Row) (*User, error) {
	user := &User{}
	err := row.Scan(
		&user.ID, &user.Email, &user.Password, &user.Name, &user.Status,
		&user.InvitationToken, &user.InvitedByID, &user.InvitationSentAt,
		&user.LastActiveAt, &user.CreatedAt, &user.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}
