package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/akolanti/DocuSense/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/modelcontextprotocol/go-sdk/auth"
)

var errNoToken = errors.New("missing bearer token")

// SignToken issues an HS256 token whose subject is the owner id.
func SignToken(ownerId string, secret []byte, ttl time.Duration) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   ownerId,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func bearerToken(authHeader string) (string, error) {
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", errNoToken
	}
	tok := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if tok == "" {
		return "", errNoToken
	}
	return tok, nil
}

func parseToken(tok string, secret []byte) (jwt.RegisteredClaims, error) {
	var claims jwt.RegisteredClaims
	if len(secret) == 0 {
		return claims, errors.New("JWT_SECRET is not configured")
	}
	parsed, err := jwt.ParseWithClaims(tok, &claims, func(t *jwt.Token) (interface{}, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return claims, errors.New("invalid token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return claims, errors.New("token has no subject")
	}
	return claims, nil
}

// OwnerFromToken verifies the Authorization header and returns the token subject.
func OwnerFromToken(authHeader string, secret []byte) (string, error) {
	tok, err := bearerToken(authHeader)
	if err != nil {
		return "", err
	}
	claims, err := parseToken(tok, secret)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// VerifyMCPToken checks the same tokens for the MCP endpoint. The SDK needs
// an expiry, so tokens without one are rejected there.
func VerifyMCPToken(ctx context.Context, token string, req *http.Request) (*auth.TokenInfo, error) {
	claims, err := parseToken(token, []byte(config.JWTSecret()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", auth.ErrInvalidToken, err)
	}
	info := &auth.TokenInfo{UserID: claims.Subject}
	if claims.ExpiresAt != nil {
		info.Expiration = claims.ExpiresAt.Time
	}
	return info, nil
}
