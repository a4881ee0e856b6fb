package serverutils

import (
	"crypto/sha256"
	"encoding/base64"
	"time"

	"github.com/gofiber/fiber/v2"
)

const AuthCookieName = "auth_token"

type CookieOptions struct {
	Domain     string
	Production bool
	TTL        time.Duration
}

// CookieKey derives the 32-byte encryptcookie key from an arbitrary secret.
func CookieKey(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return base64.StdEncoding.EncodeToString(sum[:])
}

func (o CookieOptions) cookie(value string, expires time.Time) *fiber.Cookie {
	c := &fiber.Cookie{
		Name:     AuthCookieName,
		Value:    value,
		Path:     "/",
		Domain:   o.Domain,
		Expires:  expires,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	}
	if o.Production {
		c.Secure = true
		c.SameSite = fiber.CookieSameSiteNoneMode
	}
	return c
}

// SetAuthCookie replaces any existing auth cookie with token.
func SetAuthCookie(ctx *fiber.Ctx, token string, o CookieOptions) {
	ctx.Cookie(o.cookie(token, time.Now().Add(o.TTL)))
}

func ClearAuthCookie(ctx *fiber.Ctx, o CookieOptions) {
	ctx.Cookie(o.cookie("", time.Unix(0, 0)))
}
