package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/stem-dashboard-api/internal/models"
	"github.com/noah-isme/stem-dashboard-api/pkg/config"
	appErrors "github.com/noah-isme/stem-dashboard-api/pkg/errors"
)

func testTokenService() *TokenService {
	return NewTokenService(config.JWTConfig{Secret: "test-secret", Issuer: "stem-dashboard", Expiration: time.Hour})
}

func TestTokenServiceRoundTrip(t *testing.T) {
	svc := testTokenService()

	token, expiresAt, err := svc.Mint("", "registrar@example.edu", models.RoleDataAdmin)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleDataAdmin, claims.Role)
	assert.Equal(t, "registrar@example.edu", claims.Email)
	assert.NotEmpty(t, claims.UserID)
	assert.Equal(t, claims.UserID, claims.Subject)
}

func TestTokenServiceRejectsBadTokens(t *testing.T) {
	svc := testTokenService()
	valid, _, err := svc.Mint("u-1", "viewer@example.edu", models.RoleViewer)
	require.NoError(t, err)

	otherIssuer := NewTokenService(config.JWTConfig{Secret: "test-secret", Issuer: "someone-else"})
	foreign, _, err := otherIssuer.Mint("u-1", "viewer@example.edu", models.RoleViewer)
	require.NoError(t, err)

	wrongKey := NewTokenService(config.JWTConfig{Secret: "other-secret", Issuer: "stem-dashboard"})
	forged, _, err := wrongKey.Mint("u-1", "viewer@example.edu", models.RoleAdmin)
	require.NoError(t, err)

	expired := testTokenService()
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	stale, _, err := expired.Mint("u-1", "viewer@example.edu", models.RoleViewer)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"role": "ADMIN"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	cases := map[string]string{
		"garbage":   "not-a-token",
		"issuer":    foreign,
		"signature": forged,
		"expired":   stale,
		"alg none":  none,
		"truncated": valid[:len(valid)-4],
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			require.Error(t, err)
			assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
		})
	}
}

func TestTokenServiceMintValidation(t *testing.T) {
	svc := testTokenService()

	_, _, err := svc.Mint("", "x@example.edu", models.UserRole("ROOT"))
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, _, err = svc.Mint("", " ", models.RoleAdmin)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}
