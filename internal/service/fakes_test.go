package service

import (
	"context"
	"strings"
	"sync"
	"testing"

	"chatedge-be/internal/entity"
	"chatedge-be/internal/repository/memory"
	"chatedge-be/internal/repository/unitofwork"
	"chatedge-be/pkg/events"
	"chatedge-be/pkg/llm"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// scriptedProvider replays chunks. failAt >= 0 aborts before that chunk;
// hang waits for cancellation after the last chunk.
type scriptedProvider struct {
	mu        sync.Mutex
	chunks    []string
	failAt    int
	err       error
	hang      bool
	streaming bool
	calls     [][]llm.Message
	models    []string
}

func newScriptedProvider(chunks ...string) *scriptedProvider {
	return &scriptedProvider{chunks: chunks, failAt: -1, streaming: true}
}

func (p *scriptedProvider) SupportsStreaming() bool {
	return p.streaming
}

func (p *scriptedProvider) Stream(ctx context.Context, history []llm.Message, onToken llm.TokenHandler, options ...llm.Option) (string, error) {
	p.mu.Lock()
	p.calls = append(p.calls, append([]llm.Message(nil), history...))
	p.models = append(p.models, llm.Apply(options...).Model)
	p.mu.Unlock()

	if !p.streaming {
		if p.failAt >= 0 {
			return "", p.err
		}
		full := strings.Join(p.chunks, "")
		if onToken != nil {
			if err := onToken(full); err != nil {
				return "", err
			}
		}
		return full, nil
	}

	var sb strings.Builder
	for i, chunk := range p.chunks {
		if i == p.failAt {
			return "", p.err
		}
		if onToken != nil {
			if err := onToken(chunk); err != nil {
				return "", err
			}
		}
		sb.WriteString(chunk)
	}
	if p.hang {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return sb.String(), nil
}

func (p *scriptedProvider) lastCall() []llm.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.calls) == 0 {
		return nil
	}
	return p.calls[len(p.calls)-1]
}

func (p *scriptedProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type emitted struct {
	event   string
	payload interface{}
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []emitted
	onEmit func(event string)
}

func (e *recordingEmitter) Emit(ctx context.Context, event string, payload interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	e.events = append(e.events, emitted{event: event, payload: payload})
	e.mu.Unlock()
	if e.onEmit != nil {
		e.onEmit(event)
	}
	return nil
}

func (e *recordingEmitter) names() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.events))
	for i, ev := range e.events {
		out[i] = ev.event
	}
	return out
}

func (e *recordingEmitter) last() emitted {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.events[len(e.events)-1]
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (n *recordingNotifier) NotifyUser(ctx context.Context, userID uuid.UUID, event string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, event)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event.EventType())
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

func seedUser(t *testing.T, factory unitofwork.RepositoryFactory, email string) *entity.User {
	t.Helper()
	ctx := context.Background()
	user := &entity.User{Name: "Test User", Email: email, PasswordHash: "x"}
	require.NoError(t, factory.NewUnitOfWork(ctx).UserRepository().Create(ctx, user))
	return user
}

func newMemoryFactory() unitofwork.RepositoryFactory {
	return memory.NewRepositoryFactory(memory.NewStore())
}
