package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chatedge-be/internal/bootstrap"
	"chatedge-be/internal/config"
	"chatedge-be/internal/constant"
	"chatedge-be/internal/dto"
	"chatedge-be/internal/pkg/logger"
	"chatedge-be/pkg/events"
	"chatedge-be/pkg/llm"

	fws "github.com/fasthttp/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cannedProvider struct {
	chunks []string
}

func (p cannedProvider) SupportsStreaming() bool { return true }

func (p cannedProvider) Stream(ctx context.Context, history []llm.Message, onToken llm.TokenHandler, options ...llm.Option) (string, error) {
	var sb strings.Builder
	for _, c := range p.chunks {
		if onToken != nil {
			if err := onToken(c); err != nil {
				return "", err
			}
		}
		sb.WriteString(c)
	}
	return sb.String(), nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Port:            "0",
			Environment:     "test",
			CorsOrigin:      "http://localhost:5173",
			ShutdownTimeout: time.Second,
		},
		Database: config.DatabaseConfig{Driver: config.StorageDriverMemory},
		Auth: config.AuthConfig{
			JwtSecret:    "jwt-secret",
			CookieSecret: "cookie-secret",
			TokenTTL:     7 * 24 * time.Hour,
		},
		RateLimit: config.RateLimitConfig{
			AuthLimit: 100,
			ChatLimit: 100,
			WsLimit:   100,
			Window:    time.Minute,
			Sweep:     5 * time.Minute,
		},
		Ai: config.AIConfig{
			LLMProvider:   "canned",
			LLMModel:      "test-model",
			Timeout:       5 * time.Second,
			ContextWindow: 8,
		},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) (*Server, *bootstrap.Container) {
	t.Helper()
	container, err := bootstrap.NewContainer(cfg, bootstrap.Options{
		LLMProvider:    cannedProvider{chunks: []string{"Hello", " from", " ChatEdge"}},
		Logger:         logger.NewNopLogger(),
		RealtimeLogger: logger.NewNopLogger(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		container.Close()
	})
	container.Start(ctx)

	return New(cfg, container), container
}

type client struct {
	t       *testing.T
	srv     *Server
	cookies []*http.Cookie
}

func (c *client) do(method, path string, body interface{}) (*http.Response, map[string]interface{}) {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = strings.NewReader(string(raw))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}

	resp, err := c.srv.GetApp().Test(req, -1)
	require.NoError(c.t, err)

	var out map[string]interface{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	if len(raw) > 0 {
		require.NoError(c.t, json.Unmarshal(raw, &out), string(raw))
	}

	for _, ck := range resp.Cookies() {
		if ck.Name != "auth_token" {
			continue
		}
		if !ck.Expires.IsZero() && ck.Expires.Before(time.Now()) {
			c.cookies = nil
			continue
		}
		c.cookies = []*http.Cookie{{Name: ck.Name, Value: ck.Value}}
	}
	return resp, out
}

func signupBody() map[string]string {
	return map[string]string{"name": "Ada", "email": "ada@x.com", "password": "secret1"}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())
	c := &client{t: t, srv: srv}

	resp, body := c.do(http.MethodGet, "/api/v1/", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]interface{}{"message": "OK", "service": "chatedge"}, body)
}

func TestAuthFlow(t *testing.T) {
	srv, container := newTestServer(t, testConfig())
	c := &client{t: t, srv: srv}

	resp, body := c.do(http.MethodPost, "/api/v1/user/signup", signupBody())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, map[string]interface{}{"message": "OK", "name": "Ada", "email": "ada@x.com"}, body)
	require.Len(t, c.cookies, 1, "signup sets the auth cookie")

	resp, body = c.do(http.MethodGet, "/api/v1/user/auth-status", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Ada", body["name"])

	resp, _ = c.do(http.MethodGet, "/api/v1/user/logout", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, c.cookies, "logout clears the cookie")

	resp, body = c.do(http.MethodGet, "/api/v1/user/auth-status", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Token Not Received", body["message"])

	resp, body = c.do(http.MethodPost, "/api/v1/user/login", map[string]string{"email": "ada@x.com", "password": "secret1"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ada@x.com", body["email"])
	assert.Len(t, c.cookies, 1)

	assert.Eventually(t, func() bool {
		counts := container.ActivityService.Counts()
		return counts[events.UserRegistered] == 1 && counts[events.UserLogin] == 1
	}, time.Second, 10*time.Millisecond, "auth events reach the activity log over the in-process bus")
}

func TestAuthFailures(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())
	c := &client{t: t, srv: srv}
	resp, _ := c.do(http.MethodPost, "/api/v1/user/signup", signupBody())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	tests := []struct {
		name       string
		path       string
		body       interface{}
		wantStatus int
		wantMsg    string
	}{
		{name: "duplicate signup", path: "/api/v1/user/signup", body: signupBody(), wantStatus: http.StatusUnauthorized, wantMsg: "User already registered"},
		{name: "unknown user", path: "/api/v1/user/login", body: map[string]string{"email": "bob@x.com", "password": "secret1"}, wantStatus: http.StatusUnauthorized, wantMsg: "User not registered"},
		{name: "wrong password", path: "/api/v1/user/login", body: map[string]string{"email": "ada@x.com", "password": "wrong-pass"}, wantStatus: http.StatusForbidden, wantMsg: "Incorrect Password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			anon := &client{t: t, srv: srv}
			resp, body := anon.do(http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantMsg, body["message"])
			assert.Empty(t, anon.cookies)
		})
	}
}

func TestValidationErrors(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())
	c := &client{t: t, srv: srv}

	resp, body := c.do(http.MethodPost, "/api/v1/user/signup", map[string]string{"name": "Ada", "email": "not-an-email", "password": "  abc  "})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	raw, _ := json.Marshal(body)
	var got dto.ValidationErrorResponse
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, []dto.ValidationError{
		{Msg: "Email is required", Path: "email", Location: "body"},
		{Msg: "Password should contain atleast 6 characters", Path: "password", Location: "body"},
	}, got.Errors)

	resp, _ = c.do(http.MethodPost, "/api/v1/user/login", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestChatFlow(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())
	c := &client{t: t, srv: srv}
	resp, _ := c.do(http.MethodPost, "/api/v1/user/signup", signupBody())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := c.do(http.MethodPost, "/api/v1/chat/new", map[string]string{"message": "hi there"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", body["message"])
	assert.Equal(t, map[string]interface{}{"role": "assistant", "content": "Hello from ChatEdge"}, body["assistantMessage"])

	resp, body = c.do(http.MethodGet, "/api/v1/chat/all-chats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []interface{}{
		map[string]interface{}{"role": "user", "content": "hi there"},
		map[string]interface{}{"role": "assistant", "content": "Hello from ChatEdge"},
	}, body["chats"])

	resp, body = c.do(http.MethodPost, "/api/v1/chat/new", map[string]string{"message": "   "})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, "errors")

	resp, body = c.do(http.MethodDelete, "/api/v1/chat/delete", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]interface{}{"message": "OK"}, body)

	_, body = c.do(http.MethodGet, "/api/v1/chat/all-chats", nil)
	assert.Equal(t, []interface{}{}, body["chats"])
}

func TestChatRequiresToken(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())
	c := &client{t: t, srv: srv}

	for _, path := range []string{"/api/v1/chat/all-chats", "/api/v1/ws"} {
		resp, body := c.do(http.MethodGet, path, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
		assert.Equal(t, "Token Not Received", body["message"], path)
	}

	c.cookies = []*http.Cookie{{Name: "auth_token", Value: "forged"}}
	resp, _ := c.do(http.MethodGet, "/api/v1/chat/all-chats", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.AuthLimit = 2
	srv, _ := newTestServer(t, cfg)
	c := &client{t: t, srv: srv}
	login := map[string]string{"email": "nobody@x.com", "password": "secret1"}

	for i := 0; i < 2; i++ {
		resp, _ := c.do(http.MethodPost, "/api/v1/user/login", login)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	resp, body := c.do(http.MethodPost, "/api/v1/user/login", login)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "Too many requests. Please wait a moment before trying again.", body["message"])
	assert.Equal(t, "60", resp.Header.Get("Retry-After"))
}

func TestWebSocketUpgradeNeedsUpgradeHeaders(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())
	c := &client{t: t, srv: srv}
	resp, _ := c.do(http.MethodPost, "/api/v1/user/signup", signupBody())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = c.do(http.MethodGet, "/api/v1/ws", nil)
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func TestWebSocketChat(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		<-served
	})

	base := "http://" + ln.Addr().String()
	resp, err := http.Post(base+"/api/v1/user/signup", "application/json",
		strings.NewReader(`{"name":"Ada","email":"ada@x.com","password":"secret1"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var cookie *http.Cookie
	for _, ck := range resp.Cookies() {
		if ck.Name == "auth_token" {
			cookie = ck
		}
	}
	require.NotNil(t, cookie)

	_, _, err = fws.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/api/v1/ws", nil)
	require.Error(t, err, "handshake without credentials is refused")

	header := http.Header{}
	header.Set("Cookie", cookie.Name+"="+cookie.Value)
	conn, _, err := fws.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/api/v1/ws", header)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(dto.Envelope{Event: constant.EventChatNew, Data: json.RawMessage(`{"message":"hi"}`)}))

	var tokens []string
	var done dto.AssistantDonePayload
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for done.Content == "" {
		var env dto.Envelope
		require.NoError(t, conn.ReadJSON(&env))
		switch env.Event {
		case constant.EventAssistantToken:
			var chunk string
			require.NoError(t, json.Unmarshal(env.Data, &chunk))
			tokens = append(tokens, chunk)
		case constant.EventAssistantDone:
			require.NoError(t, json.Unmarshal(env.Data, &done))
		}
	}

	assert.Equal(t, []string{"Hello", " from", " ChatEdge"}, tokens)
	assert.Equal(t, dto.AssistantDonePayload{Content: "Hello from ChatEdge", Role: "assistant"}, done)

	var sync dto.Envelope
	require.NoError(t, conn.ReadJSON(&sync))
	assert.Equal(t, constant.EventChatSync, sync.Event)
}
