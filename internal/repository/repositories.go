package repository

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
)

type Repositories struct {
	// Core repositories (pgxpool)
	UserRepo       UserRepository
	CompanyRepo    CompanyRepository
	MemberRepo     MemberRepository
	InvitationRepo InvitationRepository

	// Ledger repositories (sqlx)
	EquityRepo   EquityRepository
	DividendRepo DividendRepository
}

func NewRepositories(pool *pgxpool.Pool, db *sqlx.DB) *Repositories {
	return &Repositories{
		// pgxpool repos
		UserRepo:       NewUserRepository(pool),
		CompanyRepo:    NewCompanyRepository(pool),
		MemberRepo:     NewMemberRepository(pool),
		InvitationRepo: NewInvitationRepository(pool),

		// sqlx repos (equity and dividend ledgers)
		EquityRepo:   NewEquityRepository(db),
		DividendRepo: NewDividendRepository(db),
	}
}
