package service

import (
	"errors"

	"github.com/capstack-hq/capstack-backend/internal/config"
	"github.com/capstack-hq/capstack-backend/internal/email"
	"github.com/capstack-hq/capstack-backend/internal/jobs"
	"github.com/capstack-hq/capstack-backend/internal/repository"
	"github.com/capstack-hq/capstack-backend/internal/socket"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidToken       = errors.New("invalid token")
	ErrNotFound           = errors.New("resource not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidInput       = errors.New("invalid input")
	ErrLastAdmin          = errors.New("cannot remove the last administrator")
	ErrEquityDisabled     = errors.New("equity is not enabled for this company")
	ErrGrantNotActive     = errors.New("grant is not active")
	ErrInvalidStatus      = errors.New("invalid status")
)

// ============================================
// Services Container
// ============================================

type Services struct {
	Auth        AuthService
	Company     CompanyService
	Member      MemberService
	BulkMember  BulkMemberService
	Equity      EquityService
	Dividend    DividendService
	Broadcaster *socket.Broadcaster
}

// ServiceDeps contains all dependencies needed to create services
type ServiceDeps struct {
	Config      *config.Config
	Repos       *repository.Repositories
	EmailSvc    *email.Service
	Queue       jobs.Queue
	Broadcaster *socket.Broadcaster
}

func NewServices(deps *ServiceDeps) *Services {
	return &Services{
		Auth: NewAuthService(
			deps.Config,
			deps.Repos.UserRepo,
			deps.Repos.InvitationRepo,
			deps.Repos.MemberRepo,
		),
		Company: NewCompanyService(deps.Repos.CompanyRepo, deps.Repos.MemberRepo),
		Member: NewMemberService(
			deps.Repos.MemberRepo,
			deps.Repos.UserRepo,
			deps.Repos.InvitationRepo,
			deps.Broadcaster,
		),
		BulkMember: NewBulkMemberService(
			deps.Repos.UserRepo,
			deps.Repos.MemberRepo,
			deps.Queue,
			deps.Broadcaster,
		),
		Equity: NewEquityService(
			deps.Repos.EquityRepo,
			deps.Repos.CompanyRepo,
			deps.Repos.UserRepo,
			deps.EmailSvc,
			deps.Broadcaster,
		),
		Dividend: NewDividendService(
			deps.Repos.DividendRepo,
			deps.Repos.CompanyRepo,
			deps.Repos.UserRepo,
			deps.EmailSvc,
			deps.Config.FrontendURL,
			deps.Broadcaster,
		),
		Broadcaster: deps.Broadcaster,
	}
}
