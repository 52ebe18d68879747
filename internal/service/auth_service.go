package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/capstack-hq/capstack-backend/internal/config"
	"github.com/capstack-hq/capstack-backend/internal/repository"
	"github.com/capstack-hq/capstack-backend/internal/types"
)

// ============================================
// Auth Service
// ============================================

type AuthService interface {
	Register(ctx context.Context, name, email, password string) (*repository.User, string, string, error)
	Login(ctx context.Context, email, password string) (*repository.User, string, string, error)
	AcceptInvitation(ctx context.Context, token, name, password string) (*repository.User, string, string, error)
	RefreshToken(ctx context.Context, refreshToken string) (string, string, error)
	Logout(ctx context.Context, refreshToken string) error
	CurrentUser(ctx context.Context, userID string) (*repository.User, error)
	UpdateProfile(ctx context.Context, userID, name string) (*repository.User, error)
	InvitationPreview(ctx context.Context, token string) (*repository.Invitation, error)
	ValidateToken(token string) (*jwt.Token, error)
	GetUserIDFromToken(token *jwt.Token) (string, error)
}

type authService struct {
	cfg            *config.Config
	userRepo       repository.UserRepository
	invitationRepo repository.InvitationRepository
	memberRepo     repository.MemberRepository
}

func NewAuthService(
	cfg *config.Config,
	userRepo repository.UserRepository,
	invitationRepo repository.InvitationRepository,
	memberRepo repository.MemberRepository,
) AuthService {
	return &authService{
		cfg:            cfg,
		userRepo:       userRepo,
		invitationRepo: invitationRepo,
		memberRepo:     memberRepo,
	}
}

func (s *authService) Register(ctx context.Context, name, email, password string) (*repository.User, string, string, error) {
	existingUser, _ := s.userRepo.FindByEmail(ctx, email)
	if existingUser != nil {
		return nil, "", "", ErrUserExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to hash password: %w", err)
	}

	user := &repository.User{
		Name:     name,
		Email:    email,
		Password: string(hashedPassword),
		Status:   "online",
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, "", "", fmt.Errorf("failed to create user: %w", err)
	}

	accessToken, refreshToken, err := s.generateTokens(ctx, user.ID)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to generate tokens: %w", err)
	}

	return user, accessToken, refreshToken, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*repository.User, string, string, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil || user == nil {
		return nil, "", "", ErrInvalidCredentials
	}

	if user.Password == "" {
		// Invited placeholder account, no password set yet
		return nil, "", "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, "", "", ErrInvalidCredentials
	}

	user.Status = "online"
	s.userRepo.Update(ctx, user)
	s.userRepo.UpdateLastActive(ctx, user.ID)

	accessToken, refreshToken, err := s.generateTokens(ctx, user.ID)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to generate tokens: %w", err)
	}

	return user, accessToken, refreshToken, nil
}

// AcceptInvitation activates an invited placeholder account: the user sets
// their name and password against the token they received by email. The
// token is the company invitation's token from the invite link; the user's
// own placeholder token is accepted as a fallback for older emails.
func (s *authService) AcceptInvitation(ctx context.Context, token, name, password string) (*repository.User, string, string, error) {
	user, err := s.resolveInvitedUser(ctx, token)
	if err != nil {
		return nil, "", "", err
	}

	if user.Password == "" {
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, "", "", fmt.Errorf("failed to hash password: %w", err)
		}
		if err := s.userRepo.ActivateInvited(ctx, user.ID, name, string(hashedPassword)); err != nil {
			return nil, "", "", err
		}
		user.Name = name
		user.Status = "online"
		user.InvitationToken = nil
	}

	s.claimPendingInvitations(ctx, user)

	accessToken, refreshToken, err := s.generateTokens(ctx, user.ID)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to generate tokens: %w", err)
	}

	return user, accessToken, refreshToken, nil
}

// resolveInvitedUser maps an accept token to the account being activated.
func (s *authService) resolveInvitedUser(ctx context.Context, token string) (*repository.User, error) {
	invitation, err := s.invitationRepo.FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if invitation != nil {
		if invitation.Status != types.InvitationPending || time.Now().After(invitation.ExpiresAt) {
			return nil, ErrInvalidToken
		}
		user, err := s.userRepo.FindByEmail(ctx, invitation.Email)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, ErrInvalidToken
		}
		return user, nil
	}

	user, err := s.userRepo.FindByInvitationToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidToken
	}
	return user, nil
}

// claimPendingInvitations grants the roles from every pending company
// invitation addressed to the user's email and marks them accepted.
// Failures here must not block account activation.
func (s *authService) claimPendingInvitations(ctx context.Context, user *repository.User) {
	invitations, err := s.invitationRepo.FindPendingByEmail(ctx, user.Email)
	if err != nil {
		log.Printf("[Auth] Failed to load pending invitations for %s: %v", user.Email, err)
		return
	}

	for _, inv := range invitations {
		if time.Now().After(inv.ExpiresAt) {
			continue
		}

		var seatErr error
		switch inv.Role {
		case types.RoleAdmin:
			seatErr = s.memberRepo.AddAdmin(ctx, &repository.CompanyAdministrator{
				CompanyID: inv.CompanyID,
				UserID:    user.ID,
			})
		case types.RoleLawyer:
			seatErr = s.memberRepo.AddLawyer(ctx, &repository.CompanyLawyer{
				CompanyID: inv.CompanyID,
				UserID:    user.ID,
			})
		default:
			log.Printf("[Auth] Skipping invitation %s with unknown role %q", inv.ID, inv.Role)
			continue
		}
		if seatErr != nil && !errors.Is(seatErr, repository.ErrDuplicateMember) {
			log.Printf("[Auth] Failed to grant %s role in company %s to user %s: %v",
				inv.Role, inv.CompanyID, user.ID, seatErr)
			continue
		}

		inv.Status = types.InvitationAccepted
		if err := s.invitationRepo.Update(ctx, inv); err != nil {
			log.Printf("[Auth] Failed to mark invitation %s accepted: %v", inv.ID, err)
		}
	}
}

func (s *authService) UpdateProfile(ctx context.Context, userID, name string) (*repository.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	user.Name = name
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// InvitationPreview looks up an invitation by token so the accept page can
// show who is being invited, to which company, and in what role.
func (s *authService) InvitationPreview(ctx context.Context, token string) (*repository.Invitation, error) {
	invitation, err := s.invitationRepo.FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if invitation == nil || invitation.Status != types.InvitationPending || time.Now().After(invitation.ExpiresAt) {
		return nil, ErrInvalidToken
	}
	return invitation, nil
}

func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (string, string, error) {
	rt, err := s.userRepo.FindRefreshToken(ctx, refreshToken)
	if err != nil || rt == nil {
		return "", "", ErrInvalidToken
	}

	if time.Now().After(rt.ExpiresAt) {
		s.userRepo.DeleteRefreshToken(ctx, refreshToken)
		return "", "", ErrInvalidToken
	}

	s.userRepo.DeleteRefreshToken(ctx, refreshToken)
	s.userRepo.UpdateLastActive(ctx, rt.UserID)

	accessToken, newRefreshToken, err := s.generateTokens(ctx, rt.UserID)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate tokens: %w", err)
	}

	return accessToken, newRefreshToken, nil
}

func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	return s.userRepo.DeleteRefreshToken(ctx, refreshToken)
}

func (s *authService) CurrentUser(ctx context.Context, userID string) (*repository.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *authService) ValidateToken(tokenString string) (*jwt.Token, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}
	return token, nil
}

func (s *authService) GetUserIDFromToken(token *jwt.Token) (string, error) {
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	userID, ok := claims["sub"].(string)
	if !ok {
		return "", ErrInvalidToken
	}
	return userID, nil
}

func (s *authService) generateTokens(ctx context.Context, userID string) (string, string, error) {
	accessToken := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour * time.Duration(s.cfg.JWTExpiry)).Unix(),
		"iat": time.Now().Unix(),
	})

	accessTokenString, err := accessToken.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", "", err
	}

	refreshTokenString := uuid.New().String()
	refreshTokenExpiry := time.Now().Add(time.Hour * 24 * time.Duration(s.cfg.RefreshExpiry))

	rt := &repository.RefreshToken{
		Token:     refreshTokenString,
		UserID:    userID,
		ExpiresAt: refreshTokenExpiry,
	}

	if err := s.userRepo.SaveRefreshToken(ctx, rt); err != nil {
		return "", "", err
	}

	return accessTokenString, refreshTokenString, nil
}
