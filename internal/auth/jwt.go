package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Principal is the verified caller of a request. Handlers pass it
// explicitly into services.
type Principal struct {
	UserID string
	Role   Role
	Email  string
}

// Token is a signed access token.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Claims represents JWT payload.
type Claims struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Issue signs an HS256 access token for p.
func Issue(p Principal, issuer, key string, ttl time.Duration) (Token, error) {
	if p.UserID == "" {
		return Token{}, errors.New("user id required")
	}
	now := time.Now()
	exp := now.Add(ttl)

	claims := Claims{
		UserID: p.UserID,
		Role:   string(p.Role),
		Email:  p.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   p.UserID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		return Token{}, err
	}
	return Token{Value: signed, ExpiresAt: exp}, nil
}

// Parse validates a token and returns the principal it carries.
func Parse(tokenStr, key, issuer string) (Principal, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(key), nil
	})
	if err != nil {
		return Principal{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Principal{}, errors.New("invalid token")
	}
	if issuer != "" && claims.Issuer != issuer {
		return Principal{}, errors.New("issuer mismatch")
	}
	role, err := ParseRole(claims.Role)
	if err != nil {
		return Principal{}, err
	}
	if claims.UserID == "" {
		return Principal{}, errors.New("token has no user")
	}
	return Principal{UserID: claims.UserID, Role: role, Email: claims.Email}, nil
}
