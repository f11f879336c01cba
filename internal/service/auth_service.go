package service

import (
	"context"
	"time"

	"github.com/clavis-health/clavis/internal/domain"
	"github.com/clavis-health/clavis/pkg/auth"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateLastLogin(ctx context.Context, user *domain.User) error
}

// AuthService is the identity collaborator: it authenticates staff and issues
// the role-carrying tokens every workflow request presents.
type AuthService struct {
	users    UserRepository
	jwt      *auth.JWTManager
	auditSvc *AuditService
	log      *zap.Logger
}

func NewAuthService(users UserRepository, jwt *auth.JWTManager, auditSvc *AuditService, log *zap.Logger) *AuthService {
	return &AuthService{users: users, jwt: jwt, auditSvc: auditSvc, log: log}
}

func (s *AuthService) Login(ctx context.Context, email, password, ip string) (*domain.TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		// Same failure for unknown email and bad password.
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.log.Warn("failed login attempt", zap.String("email", email), zap.String("ip", ip))
		return nil, ErrInvalidCredentials
	}

	pair, err := s.jwt.GenerateTokenPair(&domain.Claims{
		UserID:     user.ID,
		Email:      user.Email,
		Role:       user.Role,
		Department: user.Department,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user.LastLoginAt = &now
	if err := s.users.UpdateLastLogin(ctx, user); err != nil {
		s.log.Warn("failed to record last login", zap.Error(err))
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID: user.ID, UserRole: string(user.Role),
		Action: "login", ResourceType: "user", ResourceID: user.ID.String(), IPAddress: ip,
	})

	return pair, nil
}

func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	claims, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, claims.Email)
	if err != nil || !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	return s.jwt.GenerateTokenPair(&domain.Claims{
		UserID:     user.ID,
		Email:      user.Email,
		Role:       user.Role,
		Department: user.Department,
	})
}

// HashPassword is used by seeding and user provisioning.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
