package middleware

import (
	"context"
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/leaflog/leaflog/internal/domain"
	"github.com/leaflog/leaflog/internal/service"
)

var tracer = otel.Tracer("auth")

type AuthMiddleware struct {
	auth   *service.AuthService
	config domain.Config
}

func NewAuthMiddleware(
	auth *service.AuthService,
	config domain.Config,
) *AuthMiddleware {
	return &AuthMiddleware{
		auth:   auth,
		config: config,
	}
}

// IdentifyRequester extracts the requester from a bearer token when one
// is present. Anonymous requests pass through; handlers that need an
// identity check the context themselves.
func (s *AuthMiddleware) IdentifyRequester(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, span := tracer.Start(c.Request().Context(), "Auth.Middleware.IdentifyRequester")
		defer span.End()

		authHeader := c.Request().Header.Get("authorization")

		if authHeader != "" {
			split := strings.Split(authHeader, " ")
			if len(split) != 2 {
				span.RecordError(fmt.Errorf("invalid authentication header"))
				goto skipCheckAuthorization
			}

			{
				authType, token := split[0], split[1]
				if authType != "Bearer" {
					span.RecordError(fmt.Errorf("only Bearer is acceptable"))
					goto skipCheckAuthorization
				}

				result, err := s.auth.AuthToken(ctx, token)
				if err != nil {
					span.RecordError(errors.Wrap(err, "AuthMiddleware.IdentifyRequester: token validation failed"))
					goto skipCheckAuthorization
				}

				ctx = context.WithValue(ctx, domain.RequesterIDCtxKey, result.OpenID)
				if result.Nickname != "" {
					ctx = context.WithValue(ctx, domain.RequesterNicknameCtxKey, result.Nickname)
				}
				span.SetAttributes(attribute.String("RequesterId", result.OpenID))
			}
		}

	skipCheckAuthorization:
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// RequesterID pulls the authenticated openID out of a request context.
func RequesterID(ctx context.Context) (string, bool) {
	openID, ok := ctx.Value(domain.RequesterIDCtxKey).(string)
	return openID, ok && openID != ""
}

// RequesterNickname pulls the authenticated nickname out of a request
// context.
func RequesterNickname(ctx context.Context) string {
	nickname, _ := ctx.Value(domain.RequesterNicknameCtxKey).(string)
	return nickname
}
