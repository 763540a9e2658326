// Package auth signs principals in and out and resolves bearer tokens.
package auth

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "sparkpark/backend/services/parking-service/internal/errors"
	"sparkpark/backend/services/parking-service/internal/models"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

// PrincipalStore is the storage the service needs.
type PrincipalStore interface {
	Create(ctx context.Context, email, passwordHash string) (*models.Principal, error)
	CreateAnonymous(ctx context.Context) (*models.Principal, error)
	GetByEmail(ctx context.Context, email string) (*models.Principal, error)
	Get(ctx context.Context, id string) (*models.Principal, error)
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
}

// Revoker remembers signed-out token ids until they would have expired anyway.
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Session is a signed-in principal and its bearer token.
type Session struct {
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expires_at"`
	Principal *models.Principal `json:"principal"`
}

// Service contains sign-up, sign-in and sign-out logic.
type Service struct {
	principals PrincipalStore
	hasher     Hasher
	tokens     *TokenService
	revoker    Revoker
	logger     *zap.Logger
}

// NewService builds Service. revoker may be nil, in which case sign-out only ends the client side.
func NewService(principals PrincipalStore, hasher Hasher, tokens *TokenService, revoker Revoker, logger *zap.Logger) *Service {
	return &Service{
		principals: principals,
		hasher:     hasher,
		tokens:     tokens,
		revoker:    revoker,
		logger:     logger,
	}
}

// SignUp registers an e-mail principal and signs it in.
func (s *Service) SignUp(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return nil, apperrors.Validation("a valid email is required")
	}
	if len(password) < MinPasswordLength {
		return nil, apperrors.Validation("password must be at least 6 characters")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "could not hash password", err)
	}

	principal, err := s.principals.Create(ctx, email, hash)
	if err != nil {
		return nil, err
	}

	s.logger.Info("principal signed up", zap.String("principal_id", principal.ID))
	return s.issue(principal)
}

// SignIn authenticates an e-mail principal.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperrors.Auth("invalid credentials")
	}

	principal, err := s.principals.GetByEmail(ctx, email)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.Auth("invalid credentials")
		}
		return nil, err
	}
	if principal.Anonymous || principal.PasswordHash == "" {
		return nil, apperrors.Auth("invalid credentials")
	}
	if err := s.hasher.Compare(principal.PasswordHash, password); err != nil {
		return nil, apperrors.Auth("invalid credentials")
	}

	return s.issue(principal)
}

// SignInAnonymously creates an anonymous principal and signs it in.
func (s *Service) SignInAnonymously(ctx context.Context) (*Session, error) {
	principal, err := s.principals.CreateAnonymous(ctx)
	if err != nil {
		if apperrors.IsAuth(err) {
			return nil, err
		}
		return nil, apperrors.Wrap(apperrors.CodeAuth, "could not create anonymous principal", err)
	}
	s.logger.Info("anonymous principal signed in", zap.String("principal_id", principal.ID))
	return s.issue(principal)
}

// IssueFor signs in an already stored principal, used when one was created mid-request.
func (s *Service) IssueFor(principalID string, anonymous bool) (*Session, error) {
	return s.issue(&models.Principal{ID: principalID, Anonymous: anonymous})
}

// SignOut revokes the token described by claims.
func (s *Service) SignOut(ctx context.Context, claims *Claims) error {
	if claims == nil {
		return apperrors.Auth("not signed in")
	}
	if s.revoker == nil {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	if err := s.revoker.Revoke(ctx, claims.ID, ttl); err != nil {
		return apperrors.Transport(err)
	}
	s.logger.Info("principal signed out", zap.String("principal_id", claims.PrincipalID))
	return nil
}

// RequestPasswordReset returns a reset token for the registered principal with email. Unknown and
// anonymous addresses yield an empty token and no error, so callers cannot enumerate accounts.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", apperrors.Validation("email is required")
	}

	principal, err := s.principals.GetByEmail(ctx, email)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return "", nil
		}
		return "", err
	}
	if principal.Anonymous || principal.PasswordHash == "" {
		return "", nil
	}

	token, _, err := s.tokens.GenerateResetToken(principal.ID, principal.PasswordHash)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeInternal, "could not issue reset token", err)
	}
	s.logger.Info("password reset requested", zap.String("principal_id", principal.ID))
	return token, nil
}

// ResetPassword sets a new password using a reset token and signs the principal in. A token only
// works until the password it was issued against changes.
func (s *Service) ResetPassword(ctx context.Context, token, password string) (*Session, error) {
	claims, err := s.tokens.ValidateResetToken(token)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeAuth, "invalid reset token", err)
	}
	if len(password) < MinPasswordLength {
		return nil, apperrors.Validation("password must be at least 6 characters")
	}

	principal, err := s.principals.Get(ctx, claims.PrincipalID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.Auth("invalid reset token")
		}
		return nil, err
	}
	if principal.Anonymous || !StampMatches(claims, principal.PasswordHash) {
		return nil, apperrors.Auth("invalid reset token")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "could not hash password", err)
	}
	if err := s.principals.UpdatePasswordHash(ctx, principal.ID, hash); err != nil {
		return nil, err
	}
	principal.PasswordHash = hash

	s.logger.Info("password reset", zap.String("principal_id", principal.ID))
	return s.issue(principal)
}

// Verify validates tokenString and checks it has not been signed out.
func (s *Service) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	claims, err := s.tokens.ValidateToken(tokenString)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeAuth, "invalid token", err)
	}
	if s.revoker != nil {
		revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, apperrors.Transport(err)
		}
		if revoked {
			return nil, apperrors.Auth("token has been revoked")
		}
	}
	return claims, nil
}

func (s *Service) issue(principal *models.Principal) (*Session, error) {
	token, claims, err := s.tokens.GenerateToken(principal.ID, principal.Anonymous)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "could not issue token", err)
	}
	return &Session{Token: token, ExpiresAt: claims.ExpiresAt.Time, Principal: principal}, nil
}
