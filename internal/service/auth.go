package service

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/leaflog/leaflog/internal/domain"
)

var tracer = otel.Tracer("auth")

const tokenLifetime = 30 * 24 * time.Hour

type AuthService struct {
	config *domain.Config
}

func NewAuthService(config *domain.Config) *AuthService {
	return &AuthService{
		config: config,
	}
}

type AuthResult struct {
	OpenID   string
	Nickname string
}

type sessionClaims struct {
	Nickname string `json:"nickname,omitempty"`
	jwt.RegisteredClaims
}

// IssueToken mints a session token for an authenticated device.
func (s *AuthService) IssueToken(openID, nickname string) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		Nickname: nickname,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   openID,
			Audience:  jwt.ClaimStrings{s.config.FQDN},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenLifetime)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}

func (s *AuthService) AuthToken(ctx context.Context, token string) (*AuthResult, error) {
	ctx, span := tracer.Start(ctx, "Auth.Service.AuthToken")
	defer span.End()

	var claims sessionClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.config.JWTSecret), nil
	})
	if err != nil {
		span.RecordError(errors.Wrap(err, "jwt validation failed"))
		return nil, err
	}
	if !parsed.Valid {
		err := fmt.Errorf("invalid token")
		span.RecordError(err)
		return nil, err
	}

	audienceOK := false
	for _, aud := range claims.Audience {
		if aud == s.config.FQDN {
			audienceOK = true
			break
		}
	}
	if !audienceOK {
		err := fmt.Errorf("jwt audience mismatch: expected %s", s.config.FQDN)
		span.RecordError(err)
		return nil, err
	}

	if claims.Subject == "" {
		err := fmt.Errorf("jwt subject missing")
		span.RecordError(err)
		return nil, err
	}

	return &AuthResult{OpenID: claims.Subject, Nickname: claims.Nickname}, nil
}
