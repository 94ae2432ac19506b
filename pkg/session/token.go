package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"fleetservice/internal/actor"
)

type Claims struct {
	jwt.RegisteredClaims

	Role string `json:"role"`
}

type Verified struct {
	ActorID   string
	Role      actor.Role
	ExpiresAt time.Time
}

// Sign issues an HS256 session token for an actor. The identity provider
// that authenticates users lives outside this service; callers hand us an
// already-authenticated id + role.
func Sign(actorID string, role actor.Role, secret string, ttl time.Duration, now time.Time) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("missing session secret")
	}
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actorID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: string(role),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString([]byte(secret))
}

// Verify validates a session token and returns the actor identity it carries.
func Verify(tokenString string, secret string, now time.Time) (*Verified, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("missing token")
	}
	if secret == "" {
		return nil, fmt.Errorf("missing session secret")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	claims := &Claims{}
	tok, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	if claims.ExpiresAt == nil || claims.ExpiresAt.Time.Before(now) {
		return nil, fmt.Errorf("token expired")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("missing subject")
	}
	role, err := actor.ParseRole(claims.Role)
	if err != nil {
		return nil, err
	}

	return &Verified{
		ActorID:   claims.Subject,
		Role:      role,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
