package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/placement-approval-api/internal/models"
	appErrors "github.com/noah-isme/placement-approval-api/pkg/errors"
)

func signToken(t *testing.T, secret string, claims models.JWTClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func validClaims() models.JWTClaims {
	return models.JWTClaims{
		UserID: 42,
		Role:   models.RoleCoordinator,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "placement-idp",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestTokenVerifierValidateToken(t *testing.T) {
	verifier := NewTokenVerifier(TokenConfig{Secret: "s3cret", Issuer: "placement-idp"})

	claims, err := verifier.ValidateToken(signToken(t, "s3cret", validClaims()))
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, models.RoleCoordinator, claims.Role)
}

func TestTokenVerifierRejects(t *testing.T) {
	verifier := NewTokenVerifier(TokenConfig{Secret: "s3cret", Issuer: "placement-idp"})

	_, err := verifier.ValidateToken(signToken(t, "other", validClaims()))
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	wrongIssuer := validClaims()
	wrongIssuer.Issuer = "elsewhere"
	_, err = verifier.ValidateToken(signToken(t, "s3cret", wrongIssuer))
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	_, err = verifier.ValidateToken(signToken(t, "s3cret", expired))
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	anonymous := validClaims()
	anonymous.UserID = 0
	_, err = verifier.ValidateToken(signToken(t, "s3cret", anonymous))
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}
