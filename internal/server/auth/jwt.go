// Package auth issues and verifies the HS256 access tokens handed out by
// Login and checked by the gRPC interceptor.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/keyescrow/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the acting actor's identifier next to the registered claims.
type Claims struct {
	jwt.RegisteredClaims
	ActorID string `json:"actor_id"`
}

const issuer = "keyescrow"

func GenerateToken(actorID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   actorID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		ActorID: actorID,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// GetActorIDFromToken validates tokenString and returns the actor it was
// issued to. Expired tokens yield common.ErrTokenExpired, anything else
// that fails validation common.ErrInvalidToken.
func GetActorIDFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !token.Valid || claims.ActorID == "" {
		return "", common.ErrInvalidToken
	}

	return claims.ActorID, nil
}
