package serverutils

import (
	"context"
	"strings"

	"chatedge-be/internal/constant"
	"chatedge-be/internal/dto"
	"chatedge-be/internal/pkg/apperror"

	"github.com/gofiber/fiber/v2"
)

const localsPrincipal = "principal"

// PrincipalVerifier resolves a raw bearer token to a known user.
type PrincipalVerifier interface {
	Verify(ctx context.Context, raw string) (*dto.Principal, error)
}

// ExtractToken reads the auth cookie, then an "Authorization: Bearer" header.
func ExtractToken(ctx *fiber.Ctx) string {
	if raw := ctx.Cookies(AuthCookieName); raw != "" {
		return raw
	}
	header := ctx.Get(fiber.HeaderAuthorization)
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func JwtMiddleware(verifier PrincipalVerifier) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		principal, err := verifier.Verify(ctx.UserContext(), ExtractToken(ctx))
		if err != nil {
			return err
		}
		ctx.Locals(localsPrincipal, principal)
		return ctx.Next()
	}
}

// PrincipalFrom returns the caller stored by JwtMiddleware.
func PrincipalFrom(ctx *fiber.Ctx) (*dto.Principal, error) {
	principal, ok := ctx.Locals(localsPrincipal).(*dto.Principal)
	if !ok || principal == nil {
		return nil, apperror.Unauthorized(constant.MsgTokenNotReceived)
	}
	return principal, nil
}
