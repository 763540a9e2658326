package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the JWT payload identifying a principal.
type Claims struct {
	PrincipalID string `json:"principal_id"`
	Anonymous   bool   `json:"anonymous"`
	// Purpose is empty for access tokens and PurposePasswordReset for reset tokens.
	Purpose string `json:"purpose,omitempty"`
	// Stamp fingerprints the password hash a reset token was issued against.
	Stamp string `json:"stamp,omitempty"`
	jwt.RegisteredClaims
}

// PurposePasswordReset marks tokens that may only be used to set a new password.
const PurposePasswordReset = "password_reset"

// ResetTokenTTL bounds how long a reset token stays usable.
const ResetTokenTTL = 30 * time.Minute

// TokenService issues and validates HS256 tokens.
type TokenService struct {
	secret    []byte
	expiresIn time.Duration
	now       func() time.Time
}

// NewTokenService returns a token service. A non-positive expiresIn defaults to one hour.
func NewTokenService(secret string, expiresIn time.Duration) *TokenService {
	if expiresIn <= 0 {
		expiresIn = time.Hour
	}
	return &TokenService{secret: []byte(secret), expiresIn: expiresIn, now: time.Now}
}

// GenerateToken issues an access token for principalID.
func (t *TokenService) GenerateToken(principalID string, anonymous bool) (string, *Claims, error) {
	return t.sign(&Claims{PrincipalID: principalID, Anonymous: anonymous}, t.expiresIn)
}

// GenerateResetToken issues a password reset token bound to the principal's current hash, so it
// stops working once the password changes.
func (t *TokenService) GenerateResetToken(principalID, passwordHash string) (string, *Claims, error) {
	return t.sign(&Claims{
		PrincipalID: principalID,
		Purpose:     PurposePasswordReset,
		Stamp:       passwordStamp(passwordHash),
	}, ResetTokenTTL)
}

func (t *TokenService) sign(claims *Claims, ttl time.Duration) (string, *Claims, error) {
	if claims.PrincipalID == "" {
		return "", nil, errors.New("token: principal id is required")
	}

	now := t.now().UTC()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   claims.PrincipalID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// ValidateToken verifies and decodes an access token.
func (t *TokenService) ValidateToken(tokenString string) (*Claims, error) {
	claims, err := t.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != "" {
		return nil, errors.New("token: not an access token")
	}
	return claims, nil
}

// ValidateResetToken verifies a reset token. The caller still has to compare the stamp with the
// principal's current hash using StampMatches.
func (t *TokenService) ValidateResetToken(tokenString string) (*Claims, error) {
	claims, err := t.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != PurposePasswordReset {
		return nil, errors.New("token: not a reset token")
	}
	return claims, nil
}

// StampMatches reports whether claims were issued against passwordHash.
func StampMatches(claims *Claims, passwordHash string) bool {
	return claims.Stamp != "" && subtle.ConstantTimeCompare([]byte(claims.Stamp), []byte(passwordStamp(passwordHash))) == 1
}

func passwordStamp(passwordHash string) string {
	sum := sha256.Sum256([]byte(passwordHash))
	return hex.EncodeToString(sum[:8])
}

func (t *TokenService) parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("token: unexpected signing method")
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid && claims.PrincipalID != "" {
		return claims, nil
	}
	return nil, errors.New("token: invalid claims")
}
