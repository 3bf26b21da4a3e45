package utils_test

import (
	"errors"
	"testing"
	"time"

	"github.com/USA-RedDragon/crashula/internal/utils"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateVerify(t *testing.T) {
	t.Parallel()

	secret := "changeme"
	uid := uint(42)
	token, claims, err := utils.GenerateJWT(secret, uid, time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, claims.ID)

	got, err := utils.VerifyJWT(secret, token)
	require.NoError(t, err)
	gotUID, err := got.UserID()
	require.NoError(t, err)
	assert.Equal(t, uid, gotUID)
	assert.Equal(t, claims.ID, got.ID)
}

func TestUniqueTokenIDs(t *testing.T) {
	t.Parallel()

	_, first, err := utils.GenerateJWT("changeme", 1, time.Hour)
	require.NoError(t, err)
	_, second, err := utils.GenerateJWT("changeme", 1, time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestVerifyWrongSecret(t *testing.T) {
	t.Parallel()

	token, _, err := utils.GenerateJWT("changeme", 1, time.Hour)
	require.NoError(t, err)
	_, err = utils.VerifyJWT("different", token)
	assert.ErrorIs(t, err, utils.ErrInvalidSession)
}

func TestVerifyExpired(t *testing.T) {
	t.Parallel()

	token, _, err := utils.GenerateJWT("changeme", 1, -time.Minute)
	require.NoError(t, err)
	_, err = utils.VerifyJWT("changeme", token)
	assert.ErrorIs(t, err, utils.ErrInvalidSession)
	assert.True(t, errors.Is(err, jwt.ErrTokenExpired))
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	claims := jwt.RegisteredClaims{
		ID:        "abc",
		Subject:   "1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("changeme"))
	require.NoError(t, err)
	_, err = utils.VerifyJWT("changeme", token)
	assert.ErrorIs(t, err, utils.ErrInvalidSession)
}

func TestVerifyGarbage(t *testing.T) {
	t.Parallel()

	_, err := utils.VerifyJWT("changeme", "not-a-token")
	assert.ErrorIs(t, err, utils.ErrInvalidSession)
}
