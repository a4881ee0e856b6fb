package controller

import (
	"errors"

	"chatedge-be/internal/constant"
	"chatedge-be/internal/dto"
	"chatedge-be/internal/pkg/apperror"
	"chatedge-be/internal/pkg/serverutils"
	"chatedge-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IAuthController interface {
	RegisterRoutes(r fiber.Router)
	Signup(ctx *fiber.Ctx) error
	Login(ctx *fiber.Ctx) error
	AuthStatus(ctx *fiber.Ctx) error
	Logout(ctx *fiber.Ctx) error
}

type authController struct {
	service     service.IAuthService
	cookie      serverutils.CookieOptions
	requireAuth fiber.Handler
	rateLimit   fiber.Handler
}

func NewAuthController(service service.IAuthService, cookie serverutils.CookieOptions, requireAuth, rateLimit fiber.Handler) IAuthController {
	return &authController{
		service:     service,
		cookie:      cookie,
		requireAuth: requireAuth,
		rateLimit:   rateLimit,
	}
}

func (c *authController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/user")
	h.Post("/signup", c.rateLimit, c.Signup)
	h.Post("/login", c.rateLimit, c.Login)
	h.Get("/auth-status", c.requireAuth, c.AuthStatus)
	h.Get("/logout", c.requireAuth, c.Logout)
}

func (c *authController) Signup(ctx *fiber.Ctx) error {
	var req dto.SignupRequest
	if err := serverutils.BindAndValidate(ctx, &req); err != nil {
		return err
	}

	res, err := c.service.Register(ctx.UserContext(), &req)
	if err != nil {
		// an existing account is reported as an auth failure, not a conflict
		if errors.Is(err, apperror.ErrConflict) {
			return apperror.Unauthorized(apperror.MessageOf(err, constant.MsgUserExists))
		}
		return err
	}

	serverutils.SetAuthCookie(ctx, res.Token, c.cookie)
	return ctx.Status(fiber.StatusCreated).JSON(dto.UserResponse{
		Message: constant.MsgOK,
		Name:    res.Profile.Name,
		Email:   res.Profile.Email,
	})
}

func (c *authController) Login(ctx *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := serverutils.BindAndValidate(ctx, &req); err != nil {
		return err
	}

	res, err := c.service.Login(ctx.UserContext(), &req)
	if err != nil {
		return err
	}

	serverutils.SetAuthCookie(ctx, res.Token, c.cookie)
	return ctx.JSON(dto.UserResponse{
		Message: constant.MsgOK,
		Name:    res.Profile.Name,
		Email:   res.Profile.Email,
	})
}

func (c *authController) AuthStatus(ctx *fiber.Ctx) error {
	principal, err := serverutils.PrincipalFrom(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(dto.UserResponse{
		Message: constant.MsgOK,
		Name:    principal.Name,
		Email:   principal.Email,
	})
}

func (c *authController) Logout(ctx *fiber.Ctx) error {
	principal, err := serverutils.PrincipalFrom(ctx)
	if err != nil {
		return err
	}
	serverutils.ClearAuthCookie(ctx, c.cookie)
	return ctx.JSON(dto.UserResponse{
		Message: constant.MsgOK,
		Name:    principal.Name,
		Email:   principal.Email,
	})
}
