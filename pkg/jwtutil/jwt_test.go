package jwtutil

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/riveredge/platform/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	Initialize(&config.JWTConfig{SigningKey: "test-key", ExpirationMinutes: 60})

	tenantID := uint(7)
	token, err := GenerateToken(42, "alice", &tenantID, false, true)
	require.NoError(t, err)

	claims, err := ValidateToken(token)
	require.NoError(t, err)

	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	require.NotNil(t, claims.TenantID)
	assert.Equal(t, uint(7), *claims.TenantID)
	assert.False(t, claims.IsPlatformAdmin)
	assert.True(t, claims.IsTenantAdmin)
}

func TestPlatformAdminTokenHasNilTenant(t *testing.T) {
	Initialize(&config.JWTConfig{SigningKey: "test-key", ExpirationMinutes: 60})

	token, err := GenerateToken(1, "root", nil, true, false)
	require.NoError(t, err)

	claims, err := ValidateToken(token)
	require.NoError(t, err)

	assert.Nil(t, claims.TenantID)
	assert.True(t, claims.IsPlatformAdmin)
}

func TestValidateTokenRejectsWrongKey(t *testing.T) {
	Initialize(&config.JWTConfig{SigningKey: "key-one", ExpirationMinutes: 60})
	token, err := GenerateToken(1, "alice", nil, false, false)
	require.NoError(t, err)

	Initialize(&config.JWTConfig{SigningKey: "key-two", ExpirationMinutes: 60})
	_, err = ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsUnexpectedAlg(t *testing.T) {
	Initialize(&config.JWTConfig{SigningKey: "test-key", ExpirationMinutes: 60})

	claims := UserClaims{
		UserID:   1,
		Username: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ValidateToken(unsigned)
	assert.Error(t, err)
}

func TestGuestToken(t *testing.T) {
	Initialize(&config.JWTConfig{SigningKey: "test-key", ExpirationMinutes: 30})

	token, err := GenerateGuestToken(nil)
	require.NoError(t, err)

	claims, err := ValidateToken(token)
	require.NoError(t, err)
	assert.True(t, claims.IsGuest)
	assert.Equal(t, "guest", claims.Username)
	assert.Equal(t, 30*60, ExpiresIn())
}
