package service

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/placement-approval-api/internal/models"
	appErrors "github.com/noah-isme/placement-approval-api/pkg/errors"
)

// TokenConfig holds the shared secret and expected claims of access tokens
// issued by the identity provider.
type TokenConfig struct {
	Secret   string
	Issuer   string
	Audience []string
}

// TokenVerifier validates HS256 access tokens and exposes the acting user.
type TokenVerifier struct {
	cfg     TokenConfig
	options []jwt.ParserOption
}

// NewTokenVerifier constructs a verifier.
func NewTokenVerifier(cfg TokenConfig) *TokenVerifier {
	options := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}
	for _, aud := range cfg.Audience {
		options = append(options, jwt.WithAudience(aud))
	}
	return &TokenVerifier{cfg: cfg, options: options}
}

// ValidateToken parses and validates an access token returning the claims.
func (v *TokenVerifier) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(v.cfg.Secret), nil
	}, v.options...)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	if claims.UserID <= 0 {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token carries no actor")
	}
	return claims, nil
}
