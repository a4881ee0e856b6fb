package websocket

import (
	"context"
	"errors"
	"sync"

	"chatedge-be/internal/constant"
	"chatedge-be/internal/dto"
	"chatedge-be/internal/pkg/logger"
	"chatedge-be/internal/pkg/ratelimit"
	"chatedge-be/internal/pkg/serverutils"
	"chatedge-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const localsPrincipal = "ws_principal"

type Handler struct {
	hub      *Hub
	chat     service.IChatService
	verifier serverutils.PrincipalVerifier
	governor *ratelimit.Governor
	logger   logger.ILogger
}

func NewHandler(hub *Hub, chat service.IChatService, verifier serverutils.PrincipalVerifier, governor *ratelimit.Governor, log logger.ILogger) *Handler {
	return &Handler{
		hub:      hub,
		chat:     chat,
		verifier: verifier,
		governor: governor,
		logger:   log,
	}
}

func (h *Handler) RegisterRoutes(r fiber.Router) {
	r.Get("/ws", h.Handshake, websocket.New(h.serve))
}

// Handshake authenticates the upgrade request from the auth cookie, a bearer
// header or a token query parameter. Failures never reach the upgrade.
func (h *Handler) Handshake(ctx *fiber.Ctx) error {
	raw := serverutils.ExtractToken(ctx)
	if raw == "" {
		raw = ctx.Query("token")
	}
	principal, err := h.verifier.Verify(ctx.UserContext(), raw)
	if err != nil {
		return err
	}
	if !websocket.IsWebSocketUpgrade(ctx) {
		return fiber.ErrUpgradeRequired
	}
	ctx.Locals(localsPrincipal, principal)
	return ctx.Next()
}

func (h *Handler) serve(conn *websocket.Conn) {
	principal, ok := conn.Locals(localsPrincipal).(*dto.Principal)
	if !ok {
		conn.Close()
		return
	}
	h.ServeConn(context.Background(), conn, principal)
}

// ServeConn runs the pumps for one connection and returns when it closes.
// Inbound chat:new requests are processed one at a time in arrival order.
func (h *Handler) ServeConn(parent context.Context, conn Conn, principal *dto.Principal) {
	client := newClient(h.hub, conn, principal.UserID, h.logger)
	if !h.hub.Register(client) {
		conn.Close()
		return
	}
	defer h.hub.Unregister(client)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		client.writePump()
	}()
	go func() {
		defer wg.Done()
		h.dispatch(ctx, client)
	}()

	client.readPump(func(env dto.Envelope, decodeErr error) {
		h.route(ctx, client, env, decodeErr)
	})
	cancel()
	wg.Wait()
}

func (h *Handler) route(ctx context.Context, client *Client, env dto.Envelope, decodeErr error) {
	reject := func(message string) {
		frame, _ := encode(constant.EventChatError, dto.ErrorPayload{Message: message})
		client.trySend(frame)
	}

	if decodeErr != nil {
		reject(constant.MsgInvalidFrame)
		return
	}
	if env.Event != constant.EventChatNew {
		reject(constant.MsgUnknownEvent)
		return
	}

	var payload dto.ChatNewPayload
	if err := decodePayload(env, &payload); err != nil {
		reject(constant.MsgInvalidFrame)
		return
	}

	key := client.UserID.String()
	if !h.governor.Allow(key) {
		frame, _ := encode(constant.EventRateLimit, dto.RateLimitPayload{
			Message:    ratelimit.RealtimeMessage,
			RetryAfter: h.governor.RetryAfterSeconds(key),
		})
		client.trySend(frame)
		return
	}

	select {
	case client.inbound <- payload.Message:
	default:
		reject(constant.MsgQueueFull)
	}
}

func (h *Handler) dispatch(ctx context.Context, client *Client) {
	for {
		select {
		case <-ctx.Done():
			return
		case message := <-client.inbound:
			err := h.chat.StreamMessage(ctx, client.UserID, message, client)
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, ErrClientClosed) {
				h.logger.Error("Client", "Exchange ended with error", map[string]interface{}{
					"user_id": client.UserID.String(),
					"error":   err,
				})
			}
		}
	}
}
