package utils

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidSession = errors.New("invalid session token")

type SessionClaims struct {
	jwt.RegisteredClaims
}

// UserID parses the subject back into the user's primary key.
func (c SessionClaims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 0)
	if err != nil {
		return 0, ErrInvalidSession
	}
	return uint(id), nil
}

// GenerateJWT signs a session token for the user. The token carries a random
// ID so that it can be revoked before it expires.
func GenerateJWT(signingKey string, userID uint, lifetime time.Duration) (string, SessionClaims, error) {
	now := time.Now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-30 * time.Second)),
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(signingKey))
	if err != nil {
		return "", claims, err
	}
	return signedToken, claims, nil
}

func VerifyJWT(signingKey string, tokenString string) (SessionClaims, error) {
	var claims SessionClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return []byte(signingKey), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return claims, errors.Join(ErrInvalidSession, err)
	}
	if !token.Valid || claims.ID == "" {
		return claims, ErrInvalidSession
	}
	if _, err := claims.UserID(); err != nil {
		return claims, err
	}
	return claims, nil
}
