package auth

import (
	"testing"
	"time"

	"github.com/fiscalerp/backend/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(expiration time.Duration) *JWTService {
	return NewJWTService(config.JWTConfig{
		Secret:                "test-secret-key-for-jwt-signing",
		AccessTokenExpiration: expiration,
		Issuer:                "fiscal-backend",
	})
}

func TestGenerateAndValidateToken(t *testing.T) {
	svc := newService(15 * time.Minute)
	tenantID := uuid.New()
	userID := uuid.New()

	token, expiresAt, err := svc.GenerateToken(tenantID, userID, "contador")
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, tenantID.String(), claims.TenantID)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, "contador", claims.Username)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	svc := newService(-time.Minute)
	token, _, err := svc.GenerateToken(uuid.New(), uuid.New(), "contador")
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidateRejectsForeignSignature(t *testing.T) {
	svc := newService(15 * time.Minute)
	other := NewJWTService(config.JWTConfig{
		Secret:                "a-different-secret-entirely",
		AccessTokenExpiration: 15 * time.Minute,
		Issuer:                "fiscal-backend",
	})
	token, _, err := other.GenerateToken(uuid.New(), uuid.New(), "contador")
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsGarbage(t *testing.T) {
	svc := newService(15 * time.Minute)
	_, err := svc.ValidateAccessToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
