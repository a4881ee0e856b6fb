package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"chatedge-be/internal/constant"
	"chatedge-be/internal/dto"
	"chatedge-be/internal/pkg/logger"
	"chatedge-be/internal/pkg/ratelimit"
	"chatedge-be/internal/service"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	reads     chan []byte
	writes    chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		reads:  make(chan []byte, 16),
		writes: make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case b := <-c.reads:
		return websocket.TextMessage, b, nil
	case <-c.closed:
		return 0, nil, errors.New("use of closed connection")
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	select {
	case <-c.closed:
		return errors.New("use of closed connection")
	default:
	}
	if messageType != websocket.TextMessage {
		return nil
	}
	c.writes <- data
	return nil
}

func (c *fakeConn) SetReadLimit(int64) {}

func (c *fakeConn) SetReadDeadline(time.Time) error { return nil }

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) SetPongHandler(func(string) error) {}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) send(t *testing.T, frame string) {
	t.Helper()
	c.reads <- []byte(frame)
}

func (c *fakeConn) next(t *testing.T) dto.Envelope {
	t.Helper()
	select {
	case raw := <-c.writes:
		var env dto.Envelope
		require.NoError(t, json.Unmarshal(raw, &env))
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("no frame written")
		return dto.Envelope{}
	}
}

// echoChat streams the message back one rune at a time.
type echoChat struct {
	mu        sync.Mutex
	active    int
	maxActive int
	seen      []string
}

func (e *echoChat) StreamMessage(ctx context.Context, userID uuid.UUID, message string, emitter service.Emitter) error {
	e.mu.Lock()
	e.active++
	if e.active > e.maxActive {
		e.maxActive = e.active
	}
	e.seen = append(e.seen, message)
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.active--
		e.mu.Unlock()
	}()

	for _, r := range message {
		time.Sleep(time.Millisecond)
		if err := emitter.Emit(ctx, constant.EventAssistantToken, string(r)); err != nil {
			return err
		}
	}
	return emitter.Emit(ctx, constant.EventAssistantDone, dto.AssistantDonePayload{Content: message, Role: "assistant"})
}

func (e *echoChat) SendMessage(ctx context.Context, userID uuid.UUID, message string) (*dto.ChatTurn, error) {
	return &dto.ChatTurn{Role: "assistant", Content: message}, nil
}

func (e *echoChat) History(ctx context.Context, userID uuid.UUID) ([]dto.ChatTurn, error) {
	return nil, nil
}

func (e *echoChat) Clear(ctx context.Context, userID uuid.UUID) error {
	return nil
}

type testEnv struct {
	hub     *Hub
	handler *Handler
	chat    *echoChat
	cancel  context.CancelFunc
}

func newTestEnv(t *testing.T, limit int) *testEnv {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nil, logger.NewNopLogger())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	chat := &echoChat{}
	governor := ratelimit.New(limit, time.Minute, 5*time.Minute)
	return &testEnv{
		hub:     hub,
		handler: NewHandler(hub, chat, nil, governor, logger.NewNopLogger()),
		chat:    chat,
		cancel:  cancel,
	}
}

func (e *testEnv) connect(t *testing.T, userID uuid.UUID) (*fakeConn, <-chan struct{}) {
	t.Helper()
	conn := newFakeConn()
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		e.handler.ServeConn(context.Background(), conn, &dto.Principal{UserID: userID})
	}()
	t.Cleanup(func() { conn.Close() })
	return conn, finished
}

func decode(t *testing.T, env dto.Envelope, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, out))
}

func TestStreamsTokensThenDone(t *testing.T) {
	env := newTestEnv(t, 10)
	userID := uuid.New()
	conn, _ := env.connect(t, userID)

	conn.send(t, `{"event":"chat:new","data":{"message":"hey"}}`)

	var tokens []string
	for i := 0; i < 3; i++ {
		frame := conn.next(t)
		require.Equal(t, constant.EventAssistantToken, frame.Event)
		var chunk string
		decode(t, frame, &chunk)
		tokens = append(tokens, chunk)
	}
	assert.Equal(t, []string{"h", "e", "y"}, tokens)

	done := conn.next(t)
	require.Equal(t, constant.EventAssistantDone, done.Event)
	var payload dto.AssistantDonePayload
	decode(t, done, &payload)
	assert.Equal(t, dto.AssistantDonePayload{Content: "hey", Role: "assistant"}, payload)
}

func TestRejectsMalformedFrames(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		wantMsg string
	}{
		{name: "not json", frame: `hello`, wantMsg: constant.MsgInvalidFrame},
		{name: "unknown event", frame: `{"event":"chat:delete","data":{}}`, wantMsg: constant.MsgUnknownEvent},
		{name: "bad payload", frame: `{"event":"chat:new","data":"oops"}`, wantMsg: constant.MsgInvalidFrame},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, 10)
			conn, _ := env.connect(t, uuid.New())

			conn.send(t, tt.frame)

			frame := conn.next(t)
			require.Equal(t, constant.EventChatError, frame.Event)
			var payload dto.ErrorPayload
			decode(t, frame, &payload)
			assert.Equal(t, tt.wantMsg, payload.Message)
		})
	}
}

func TestRateLimitKeepsConnectionOpen(t *testing.T) {
	env := newTestEnv(t, 1)
	conn, finished := env.connect(t, uuid.New())

	conn.send(t, `{"event":"chat:new","data":{"message":"a"}}`)
	conn.send(t, `{"event":"chat:new","data":{"message":"b"}}`)

	var limited *dto.RateLimitPayload
	var doneCount int
	for limited == nil || doneCount == 0 {
		frame := conn.next(t)
		switch frame.Event {
		case constant.EventRateLimit:
			limited = &dto.RateLimitPayload{}
			decode(t, frame, limited)
		case constant.EventAssistantDone:
			doneCount++
		}
	}

	assert.Equal(t, ratelimit.RealtimeMessage, limited.Message)
	assert.Greater(t, limited.RetryAfter, 0)
	assert.LessOrEqual(t, limited.RetryAfter, 60)
	assert.Equal(t, 1, doneCount)

	select {
	case <-finished:
		t.Fatal("connection closed after rate limit")
	default:
	}
}

func TestRequestsOnOneConnectionAreSequential(t *testing.T) {
	env := newTestEnv(t, 10)
	conn, _ := env.connect(t, uuid.New())

	for _, m := range []string{"one", "two", "three"} {
		conn.send(t, `{"event":"chat:new","data":{"message":"`+m+`"}}`)
	}

	var content []string
	for len(content) < 3 {
		frame := conn.next(t)
		if frame.Event == constant.EventAssistantDone {
			var p dto.AssistantDonePayload
			decode(t, frame, &p)
			content = append(content, p.Content)
		}
	}

	assert.Equal(t, []string{"one", "two", "three"}, content)
	env.chat.mu.Lock()
	defer env.chat.mu.Unlock()
	assert.Equal(t, 1, env.chat.maxActive)
}

func TestNotifyUserReachesEveryConnection(t *testing.T) {
	env := newTestEnv(t, 10)
	alice, bob := uuid.New(), uuid.New()
	laptop, _ := env.connect(t, alice)
	phone, _ := env.connect(t, alice)
	other, _ := env.connect(t, bob)

	require.Eventually(t, func() bool {
		return env.hub.Connections(alice) == 2 && env.hub.Connections(bob) == 1
	}, 2*time.Second, 5*time.Millisecond)

	env.hub.NotifyUser(context.Background(), alice, constant.EventChatSync, dto.ChatSyncPayload{Reason: "message"})

	for _, conn := range []*fakeConn{laptop, phone} {
		frame := conn.next(t)
		assert.Equal(t, constant.EventChatSync, frame.Event)
		var p dto.ChatSyncPayload
		decode(t, frame, &p)
		assert.Equal(t, "message", p.Reason)
	}

	select {
	case raw := <-other.writes:
		t.Fatalf("unexpected frame for another user: %s", raw)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDisconnectUnregisters(t *testing.T) {
	env := newTestEnv(t, 10)
	userID := uuid.New()
	conn, finished := env.connect(t, userID)

	require.Eventually(t, func() bool { return env.hub.Connections(userID) == 1 }, 2*time.Second, 5*time.Millisecond)

	conn.Close()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("ServeConn did not return after disconnect")
	}
	assert.Eventually(t, func() bool { return env.hub.Connections(userID) == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestHubShutdownClosesClients(t *testing.T) {
	env := newTestEnv(t, 10)
	userID := uuid.New()
	_, finished := env.connect(t, userID)
	require.Eventually(t, func() bool { return env.hub.Connections(userID) == 1 }, 2*time.Second, 5*time.Millisecond)

	env.cancel()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("ServeConn did not return after hub shutdown")
	}
	assert.False(t, env.hub.Register(newClient(env.hub, newFakeConn(), userID, logger.NewNopLogger())))
}

func TestClusterMessagesFromOtherInstances(t *testing.T) {
	env := newTestEnv(t, 10)
	userID := uuid.New()
	conn, _ := env.connect(t, userID)
	require.Eventually(t, func() bool { return env.hub.Connections(userID) == 1 }, 2*time.Second, 5*time.Millisecond)

	frame, err := encode(constant.EventChatSync, dto.ChatSyncPayload{Reason: "cleared"})
	require.NoError(t, err)

	own, _ := json.Marshal(clusterMessage{Origin: env.hub.instanceID, TargetUserID: userID.String(), Message: frame})
	env.hub.handleClusterMessage(own)
	select {
	case raw := <-conn.writes:
		t.Fatalf("own message delivered twice: %s", raw)
	case <-time.After(50 * time.Millisecond):
	}

	remote, _ := json.Marshal(clusterMessage{Origin: "other-instance", TargetUserID: userID.String(), Message: frame})
	env.hub.handleClusterMessage(remote)
	got := conn.next(t)
	assert.Equal(t, constant.EventChatSync, got.Event)
}
