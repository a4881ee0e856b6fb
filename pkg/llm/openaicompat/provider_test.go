package openaicompat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"chatedge-be/pkg/llm"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sse(w http.ResponseWriter, chunks ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	for _, c := range chunks {
		payload, _ := json.Marshal(map[string]interface{}{
			"id":      "cmpl-1",
			"object":  "chat.completion.chunk",
			"choices": []map[string]interface{}{{"index": 0, "delta": map[string]string{"content": c}}},
		})
		fmt.Fprintf(w, "data: %s\n\n", payload)
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
}

func TestStream(t *testing.T) {
	var got openai.ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		json.NewDecoder(r.Body).Decode(&got)
		sse(w, "Hi", "", " there")
	}))
	defer srv.Close()

	p := NewProvider("key", srv.URL, "llama-3.1-8b-instant")
	var chunks []string
	reply, err := p.Stream(context.Background(), []llm.Message{
		{Role: "system", Content: "be nice"},
		{Role: "user", Content: "hello"},
	}, func(c string) error {
		chunks = append(chunks, c)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, "Hi there", reply)
	assert.Equal(t, []string{"Hi", " there"}, chunks)
	assert.Equal(t, "llama-3.1-8b-instant", got.Model)
	assert.True(t, got.Stream)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
}

func TestStreamUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid api key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	reply, err := NewProvider("bad", srv.URL, "m").Stream(context.Background(), nil, nil)
	assert.Error(t, err)
	assert.Empty(t, reply)
}

func TestModelOverride(t *testing.T) {
	p := NewProvider("k", "", "default-model")
	req := p.buildRequest(nil, llm.Apply(llm.WithModel("other"), llm.WithMaxTokens(10)))
	assert.Equal(t, "other", req.Model)
	assert.Equal(t, 10, req.MaxTokens)
}
