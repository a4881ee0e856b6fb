package bootstrap

import (
	"context"
	"fmt"
	"time"

	"chatedge-be/internal/config"
	"chatedge-be/internal/controller"
	"chatedge-be/internal/pkg/logger"
	"chatedge-be/internal/pkg/ratelimit"
	"chatedge-be/internal/pkg/serverutils"
	"chatedge-be/internal/pkg/token"
	"chatedge-be/internal/repository/memory"
	"chatedge-be/internal/repository/unitofwork"
	"chatedge-be/internal/service"
	"chatedge-be/internal/websocket"
	"chatedge-be/pkg/events"
	"chatedge-be/pkg/llm"
	"chatedge-be/pkg/llm/factory"
	pktNats "chatedge-be/pkg/nats"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options overrides infrastructure that would otherwise be built from config.
type Options struct {
	// DB is the Postgres handle; nil selects the in-memory store.
	DB             *gorm.DB
	LLMProvider    llm.LLMProvider
	Logger         logger.ILogger
	RealtimeLogger logger.ILogger
}

type Container struct {
	// Controllers
	AuthController   controller.IAuthController
	ChatController   controller.IChatController
	WebSocketHandler *websocket.Handler

	// Background services (started by Start)
	WebSocketHub    *websocket.Hub
	ActivityService *service.ActivityService

	Logger logger.ILogger
	Cookie serverutils.CookieOptions

	natsPub  *pktNats.Publisher
	natsSub  *pktNats.Subscriber
	localBus *events.LocalBus
	rdb      *redis.Client
}

func NewContainer(cfg *config.Config, opts Options) (*Container, error) {
	// 1. Core facades
	sysLogger := opts.Logger
	if sysLogger == nil {
		sysLogger = logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	}
	wsLogger := opts.RealtimeLogger
	if wsLogger == nil {
		wsLogger = logger.NewIsolatedLogger(cfg.App.RealtimeLogPath)
	}

	var uowFactory unitofwork.RepositoryFactory
	if opts.DB != nil {
		uowFactory = unitofwork.NewRepositoryFactory(opts.DB)
	} else {
		uowFactory = memory.NewRepositoryFactory(memory.NewStore())
		sysLogger.Warn("Bootstrap", "Using in-memory storage; data is lost on restart", nil)
	}

	llmProvider := opts.LLMProvider
	if llmProvider == nil {
		baseURL := cfg.Ai.LLMBaseURL
		if baseURL == "" && cfg.Ai.LLMProvider == "ollama" {
			baseURL = cfg.Ai.OllamaBaseURL
		}
		p, err := factory.NewLLMProvider(cfg.Ai.LLMProvider, cfg.Ai.LLMModel, baseURL, cfg.Ai.GroqAPIKey)
		if err != nil {
			return nil, fmt.Errorf("init LLM provider: %w", err)
		}
		llmProvider = p
	}
	sysLogger.Info("Bootstrap", "LLM provider ready", map[string]interface{}{
		"provider":  cfg.Ai.LLMProvider,
		"model":     cfg.Ai.LLMModel,
		"streaming": llmProvider.SupportsStreaming(),
	})

	c := &Container{Logger: sysLogger}

	// 2. Infrastructure, all optional
	var (
		publisher events.Publisher
		source    service.EventSource
	)
	if cfg.App.NatsURL != "" {
		if err := c.connectNats(cfg.App.NatsURL); err != nil {
			sysLogger.Warn("Bootstrap", "Failed to connect to NATS, using the in-process bus", map[string]interface{}{"error": err})
		} else {
			publisher, source = c.natsPub, c.natsSub
		}
	}
	if publisher == nil {
		c.localBus = events.NewLocalBus()
		publisher, source = c.localBus, c.localBus
	}

	if cfg.App.RedisURL != "" {
		c.rdb = connectRedis(cfg.App.RedisURL, sysLogger)
	}

	// 3. Services
	tokens := token.NewManager(cfg.Auth.JwtSecret, cfg.Auth.TokenTTL)
	authGovernor := ratelimit.New(cfg.RateLimit.AuthLimit, cfg.RateLimit.Window, cfg.RateLimit.Sweep)
	chatGovernor := ratelimit.New(cfg.RateLimit.ChatLimit, cfg.RateLimit.Window, cfg.RateLimit.Sweep)
	wsGovernor := ratelimit.New(cfg.RateLimit.WsLimit, cfg.RateLimit.Window, cfg.RateLimit.Sweep)

	wsHub := websocket.NewHub(c.rdb, wsLogger)

	authService := service.NewAuthService(uowFactory, tokens, publisher, sysLogger)
	chatService := service.NewChatService(uowFactory, llmProvider, service.ChatConfig{
		Model:         cfg.Ai.LLMModel,
		Timeout:       cfg.Ai.Timeout,
		ContextWindow: cfg.Ai.ContextWindow,
	}, wsHub, publisher, sysLogger)

	// 4. Controllers
	c.Cookie = serverutils.CookieOptions{
		Domain:     cfg.Auth.CookieDomain,
		Production: cfg.IsProduction(),
		TTL:        cfg.Auth.TokenTTL,
	}
	requireAuth := serverutils.JwtMiddleware(authService)

	c.AuthController = controller.NewAuthController(authService, c.Cookie, requireAuth, serverutils.RateLimitMiddleware(authGovernor))
	c.ChatController = controller.NewChatController(chatService, requireAuth, serverutils.RateLimitMiddleware(chatGovernor))
	c.WebSocketHandler = websocket.NewHandler(wsHub, chatService, authService, wsGovernor, wsLogger)
	c.WebSocketHub = wsHub
	c.ActivityService = service.NewActivityService(source, sysLogger)

	return c, nil
}

func (c *Container) connectNats(url string) error {
	pub, err := pktNats.NewPublisher(url)
	if err != nil {
		return err
	}
	sub, err := pktNats.NewSubscriber(url)
	if err != nil {
		pub.Close()
		return err
	}
	c.natsPub, c.natsSub = pub, sub
	return nil
}

func connectRedis(url string, log logger.ILogger) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Warn("Bootstrap", "Failed to parse Redis URL, using it as an address", map[string]interface{}{"error": err})
		opt = &redis.Options{Addr: url}
	}
	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("Bootstrap", "Failed to connect to Redis, hub fan-out stays local", map[string]interface{}{"error": err})
		rdb.Close()
		return nil
	}
	return rdb
}

// Start runs the background services until ctx is cancelled.
func (c *Container) Start(ctx context.Context) {
	go c.WebSocketHub.Run(ctx)
	if err := c.ActivityService.Start(ctx); err != nil {
		c.Logger.Error("Bootstrap", "Failed to start activity service", map[string]interface{}{"error": err})
	}
}

// Close releases broker connections.
func (c *Container) Close() {
	if c.natsSub != nil {
		c.natsSub.Close()
	}
	if c.natsPub != nil {
		c.natsPub.Close()
	}
	if c.localBus != nil {
		c.localBus.Close()
	}
	if c.rdb != nil {
		c.rdb.Close()
	}
}
