package services

import (
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"golang.org/x/crypto/bcrypt"

	"github.com/calliope-fm/calliope/internal/models"
	"github.com/calliope-fm/calliope/internal/shared"
)

const bcryptCost = 12

// Identity is the authenticated principal carried by a verified token.
type Identity struct {
	UserID int64
	Role   models.Role
}

// AuthService hashes credentials and issues signed session tokens. Tokens
// are HS256 JWTs carrying the user id as subject and the role as a private
// claim.
type AuthService struct {
	key    []byte
	expiry time.Duration
}

// NewAuthService creates an [AuthService] signing with the given secret.
func NewAuthService(cfg shared.AuthConfig) *AuthService {
	return &AuthService{
		key:    []byte(cfg.TokenSecret),
		expiry: time.Duration(cfg.ExpiryMinutes) * time.Minute,
	}
}

// HashPassword derives a bcrypt hash of the plaintext password.
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword compares a stored hash against a candidate password. A
// mismatch fails with [shared.ErrUnauthorized].
func (s *AuthService) CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return fmt.Errorf("%w: invalid credentials", shared.ErrUnauthorized)
	}
	return nil
}

// IssueToken signs a session token for the identity.
func (s *AuthService) IssueToken(id Identity) (string, error) {
	now := time.Now().UTC()
	token, err := jwt.NewBuilder().
		Subject(fmt.Sprintf("%d", id.UserID)).
		IssuedAt(now).
		Expiration(now.Add(s.expiry)).
		Claim("role", string(id.Role)).
		Build()
	if err != nil {
		return "", fmt.Errorf("failed to build token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, s.key))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return string(signed), nil
}

// VerifyToken validates signature and expiry and recovers the identity.
// Any failure maps to [shared.ErrUnauthorized].
func (s *AuthService) VerifyToken(raw string) (Identity, error) {
	token, err := jwt.Parse([]byte(raw), jwt.WithKey(jwa.HS256, s.key), jwt.WithValidate(true))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", shared.ErrUnauthorized, err)
	}

	var userID int64
	if _, err := fmt.Sscanf(token.Subject(), "%d", &userID); err != nil {
		return Identity{}, fmt.Errorf("%w: malformed subject", shared.ErrUnauthorized)
	}

	roleClaim, ok := token.Get("role")
	if !ok {
		return Identity{}, fmt.Errorf("%w: missing role", shared.ErrUnauthorized)
	}
	roleStr, ok := roleClaim.(string)
	if !ok || !models.Role(roleStr).Valid() {
		return Identity{}, fmt.Errorf("%w: malformed role", shared.ErrUnauthorized)
	}

	return Identity{UserID: userID, Role: models.Role(roleStr)}, nil
}
