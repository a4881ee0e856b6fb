package controller

import (
	"chatedge-be/internal/constant"
	"chatedge-be/internal/dto"
	"chatedge-be/internal/pkg/serverutils"
	"chatedge-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	NewChat(ctx *fiber.Ctx) error
	AllChats(ctx *fiber.Ctx) error
	DeleteChats(ctx *fiber.Ctx) error
}

type chatController struct {
	service     service.IChatService
	requireAuth fiber.Handler
	rateLimit   fiber.Handler
}

func NewChatController(service service.IChatService, requireAuth, rateLimit fiber.Handler) IChatController {
	return &chatController{
		service:     service,
		requireAuth: requireAuth,
		rateLimit:   rateLimit,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat", c.requireAuth)
	h.Post("/new", c.rateLimit, c.NewChat)
	h.Get("/all-chats", c.AllChats)
	h.Delete("/delete", c.DeleteChats)
}

func (c *chatController) NewChat(ctx *fiber.Ctx) error {
	principal, err := serverutils.PrincipalFrom(ctx)
	if err != nil {
		return err
	}

	var req dto.NewChatRequest
	if err := serverutils.BindAndValidate(ctx, &req); err != nil {
		return err
	}

	turn, err := c.service.SendMessage(ctx.UserContext(), principal.UserID, req.Message)
	if err != nil {
		return err
	}
	return ctx.JSON(dto.NewChatResponse{Message: constant.MsgOK, AssistantMessage: *turn})
}

func (c *chatController) AllChats(ctx *fiber.Ctx) error {
	principal, err := serverutils.PrincipalFrom(ctx)
	if err != nil {
		return err
	}

	chats, err := c.service.History(ctx.UserContext(), principal.UserID)
	if err != nil {
		return err
	}
	return ctx.JSON(dto.AllChatsResponse{Message: constant.MsgOK, Chats: chats})
}

func (c *chatController) DeleteChats(ctx *fiber.Ctx) error {
	principal, err := serverutils.PrincipalFrom(ctx)
	if err != nil {
		return err
	}

	if err := c.service.Clear(ctx.UserContext(), principal.UserID); err != nil {
		return err
	}
	return ctx.JSON(dto.MessageResponse{Message: constant.MsgOK})
}
