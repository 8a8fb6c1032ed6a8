package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"study-hub/errors"
)

// SubjectClaims is the data carried by a session token. The Subject of the
// registered claims is the providerId: the same opaque string the
// membership registry, presence tracker and rate limiter key on.
type SubjectClaims struct {
	Nickname string   `json:"nickname,omitempty"`
	Roles    []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and validates HS256 session tokens. The secret is
// injected from configuration; it must never be hardcoded.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

// Issue creates a signed JWT whose subject is the providerId.
func (t *TokenIssuer) Issue(providerID, nickname string, roles []string) (string, error) {
	now := time.Now()
	claims := &SubjectClaims{
		Nickname: nickname,
		Roles:    roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   providerID,
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "study-hub",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return signed, nil
}

// Validate parses a token and returns its claims. Expired or tampered
// tokens return ErrInvalidToken.
func (t *TokenIssuer) Validate(tokenString string) (*SubjectClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SubjectClaims{}, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	})
	if err != nil {
		return nil, errors.ErrInvalidToken
	}
	if claims, ok := token.Claims.(*SubjectClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.ErrInvalidToken
}
