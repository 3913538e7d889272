package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrInvalidAccount = errors.New("invalid account id")
)

// Roles carried in tokens.
const (
	RoleService = "service"
	RoleAdmin   = "admin"
)

// Claims identifies the calling account. Accounts are "label.audience", e.g.
// "event.svc.example.org" has label "event" and audience "svc.example.org".
type Claims struct {
	Account string `json:"account"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// Label returns the first component of the account id.
func (c *Claims) Label() string {
	label, _, _ := SplitAccount(c.Account)
	return label
}

// Audience returns the account id without its label.
func (c *Claims) Audience() string {
	_, audience, _ := SplitAccount(c.Account)
	return audience
}

// SplitAccount splits "label.audience" at the first dot.
func SplitAccount(account string) (label, audience string, err error) {
	label, audience, ok := strings.Cut(account, ".")
	if !ok || label == "" || audience == "" {
		return "", "", ErrInvalidAccount
	}
	return label, audience, nil
}

// JWTService handles token generation and validation.
type JWTService struct {
	secret      []byte
	expireHours int
}

// NewJWTService creates a JWT service.
func NewJWTService(secret string, expireHours int) *JWTService {
	return &JWTService{
		secret:      []byte(secret),
		expireHours: expireHours,
	}
}

// Generate issues a token for account. Used by operators and tests; callers in
// production bring tokens issued by the same secret.
func (s *JWTService) Generate(account, role string) (string, error) {
	if _, _, err := SplitAccount(account); err != nil {
		return "", err
	}
	claims := Claims{
		Account: account,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(s.expireHours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ID:        uuid.New().String(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Validate parses and validates a JWT, returning claims or error.
func (s *JWTService) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if _, _, err := SplitAccount(claims.Account); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
