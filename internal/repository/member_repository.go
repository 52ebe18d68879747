package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CompanyAdministrator struct {
	ID         string
	ExternalID string
	CompanyID  string
	UserID     string
	CreatedAt  time.Time
}

type CompanyLawyer struct {
	ID         string
	ExternalID string
	CompanyID  string
	UserID     string
	CreatedAt  time.Time
}

// CompanyMember is the joined read model for member listings.
type CompanyMember struct {
	ExternalID string
	UserID     string
	Email      string
	Name       string
	Role       string
	JoinedAt   time.Time
}

// MemberTx is the narrow set of mutations available inside one membership
// transaction. The reconciliation executor runs entirely against it, which
// keeps the transaction boundary in one place and the executor testable.
type MemberTx interface {
	RemoveAdmins(ctx context.Context, companyID string, userIDs []string) error
	RemoveLawyers(ctx context.Context, companyID string, userIDs []string) error
	CreateAdmin(ctx context.Context, m *CompanyAdministrator) error
	CreateLawyer(ctx context.Context, m *CompanyLawyer) error
	CreateAdminsBatch(ctx context.Context, ms []*CompanyAdministrator) error
	CreateLawyersBatch(ctx context.Context, ms []*CompanyLawyer) error
	EndContractorEngagements(ctx context.Context, companyID, userID string) error
}

type MemberRepository interface {
	InTx(ctx context.Context, fn func(tx MemberTx) error) error
	ListMembers(ctx context.Context, companyID string) ([]*CompanyMember, error)
	IsAdmin(ctx context.Context, companyID, userID string) (bool, error)
	CountAdmins(ctx context.Context, companyID string) (int, error)
	AddAdmin(ctx context.Context, m *CompanyAdministrator) error
	AddLawyer(ctx context.Context, m *CompanyLawyer) error
}

type pgMemberRepository struct {
	pool *pgxpool.Pool
}

func NewMemberRepository(pool *pgxpool.Pool) MemberRepository {
	return &pgMemberRepository{pool: pool}
}

func (r *pgMemberRepository) InTx(ctx context.Context, fn func(tx MemberTx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgMemberTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *pgMemberRepository) ListMembers(ctx context.Context, companyID string) ([]*CompanyMember, error) {
	query := `
		SELECT m.external_id, m.user_id, u.email, u.name, m.role, m.created_at
		FROM (
			SELECT external_id, user_id, company_id, created_at, 'admin' AS role FROM company_administrators
			UNION ALL
			SELECT external_id, user_id, company_id, created_at, 'lawyer' AS role FROM company_lawyers
		) m
		JOIN users u ON u.id = m.user_id
		WHERE m.company_id = $1
		ORDER BY m.created_at
	`
	rows, err := r.pool.Query(ctx, query, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*CompanyMember
	for rows.Next() {
		m := &CompanyMember{}
		if err := rows.Scan(&m.ExternalID, &m.UserID, &m.Email, &m.Name, &m.Role, &m.JoinedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *pgMemberRepository) IsAdmin(ctx context.Context, companyID, userID string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM company_administrators
			WHERE company_id = $1 AND user_id = $2
		)
	`
	var exists bool
	err := r.pool.QueryRow(ctx, query, companyID, userID).Scan(&exists)
	return exists, err
}

func (r *pgMemberRepository) CountAdmins(ctx context.Context, companyID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM company_administrators WHERE company_id = $1`, companyID,
	).Scan(&count)
	return count, err
}

// AddAdmin inserts a single admin row outside a reconciliation transaction
// (company creation, invitation acceptance, seeding).
func (r *pgMemberRepository) AddAdmin(ctx context.Context, m *CompanyAdministrator) error {
	return createAdmin(ctx, r.pool, m)
}

func (r *pgMemberRepository) AddLawyer(ctx context.Context, m *CompanyLawyer) error {
	if m.ExternalID == "" {
		m.ExternalID = NewExternalID()
	}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO company_lawyers (external_id, company_id, user_id)
		 VALUES ($1, $2, $3) RETURNING id, created_at`,
		m.ExternalID, m.CompanyID, m.UserID,
	).Scan(&m.ID, &m.CreatedAt)
	return translateRowError(err)
}

// ============================================
// Transaction-scoped implementation
// ============================================

type pgMemberTx struct {
	tx pgx.Tx
}

func (t *pgMemberTx) RemoveAdmins(ctx context.Context, companyID string, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := t.tx.Exec(ctx,
		`DELETE FROM company_administrators WHERE company_id = $1 AND user_id = ANY($2)`,
		companyID, userIDs,
	)
	return err
}

func (t *pgMemberTx) RemoveLawyers(ctx context.Context, companyID string, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := t.tx.Exec(ctx,
		`DELETE FROM company_lawyers WHERE company_id = $1 AND user_id = ANY($2)`,
		companyID, userIDs,
	)
	return err
}

// Creates run inside a savepoint (pgx nested transaction) so a failed row
// or batch does not poison the surrounding reconciliation transaction.

func (t *pgMemberTx) CreateAdmin(ctx context.Context, m *CompanyAdministrator) error {
	return t.inSavepoint(ctx, func(sp pgx.Tx) error {
		return translateRowError(createAdmin(ctx, sp, m))
	})
}

func (t *pgMemberTx) CreateLawyer(ctx context.Context, m *CompanyLawyer) error {
	if m.ExternalID == "" {
		m.ExternalID = NewExternalID()
	}
	return t.inSavepoint(ctx, func(sp pgx.Tx) error {
		err := sp.QueryRow(ctx,
			`INSERT INTO company_lawyers (external_id, company_id, user_id)
			 VALUES ($1, $2, $3) RETURNING id, created_at`,
			m.ExternalID, m.CompanyID, m.UserID,
		).Scan(&m.ID, &m.CreatedAt)
		return translateRowError(err)
	})
}

func (t *pgMemberTx) CreateAdminsBatch(ctx context.Context, ms []*CompanyAdministrator) error {
	if len(ms) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(ms)*3)
	values := make([]string, 0, len(ms))
	for i, m := range ms {
		if m.ExternalID == "" {
			m.ExternalID = NewExternalID()
		}
		values = append(values, fmt.Sprintf("($%d, $%d, $%d)", i*3+1, i*3+2, i*3+3))
		args = append(args, m.ExternalID, m.CompanyID, m.UserID)
	}
	query := `INSERT INTO company_administrators (external_id, company_id, user_id) VALUES ` +
		strings.Join(values, ", ")
	return t.inSavepoint(ctx, func(sp pgx.Tx) error {
		_, err := sp.Exec(ctx, query, args...)
		return translateBatchError(err)
	})
}

func (t *pgMemberTx) CreateLawyersBatch(ctx context.Context, ms []*CompanyLawyer) error {
	if len(ms) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(ms)*3)
	values := make([]string, 0, len(ms))
	for i, m := range ms {
		if m.ExternalID == "" {
			m.ExternalID = NewExternalID()
		}
		values = append(values, fmt.Sprintf("($%d, $%d, $%d)", i*3+1, i*3+2, i*3+3))
		args = append(args, m.ExternalID, m.CompanyID, m.UserID)
	}
	query := `INSERT INTO company_lawyers (external_id, company_id, user_id) VALUES ` +
		strings.Join(values, ", ")
	return t.inSavepoint(ctx, func(sp pgx.Tx) error {
		_, err := sp.Exec(ctx, query, args...)
		return translateBatchError(err)
	})
}

func (t *pgMemberTx) inSavepoint(ctx context.Context, fn func(sp pgx.Tx) error) error {
	sp, err := t.tx.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(sp); err != nil {
		_ = sp.Rollback(ctx)
		return err
	}
	return sp.Commit(ctx)
}

func (t *pgMemberTx) EndContractorEngagements(ctx context.Context, companyID, userID string) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE company_contractors SET ended_at = NOW()
		 WHERE company_id = $1 AND user_id = $2 AND ended_at IS NULL`,
		companyID, userID,
	)
	return err
}

type execer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func createAdmin(ctx context.Context, q execer, m *CompanyAdministrator) error {
	if m.ExternalID == "" {
		m.ExternalID = NewExternalID()
	}
	err := q.QueryRow(ctx,
		`INSERT INTO company_administrators (external_id, company_id, user_id)
		 VALUES ($1, $2, $3) RETURNING id, created_at`,
		m.ExternalID, m.CompanyID, m.UserID,
	).Scan(&m.ID, &m.CreatedAt)
	return translateRowError(err)
}

// translateRowError maps single-row insert failures to sentinel errors the
// service layer can attribute to an email without importing pgx.
func translateRowError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrDuplicateMember, pgErr.ConstraintName)
	}
	return err
}

// translateBatchError wraps statement failures that warrant a row-by-row
// retry. Classes: 22 data exception, 23 integrity violation, 40 transaction
// rollback, 08 connection. Everything else aborts the whole transaction.
func translateBatchError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "22"),
			strings.HasPrefix(pgErr.Code, "23"),
			strings.HasPrefix(pgErr.Code, "40"),
			strings.HasPrefix(pgErr.Code, "08"):
			return fmt.Errorf("%w: %v", ErrBatchStatement, err)
		}
	}
	return err
}
