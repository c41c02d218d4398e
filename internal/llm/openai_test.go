package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jonathan/lead-extractor/internal/prompts"
	"github.com/jonathan/lead-extractor/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatCompletionJSON(t *testing.T, arguments ...string) string {
	t.Helper()
	calls := make([]map[string]any, len(arguments))
	for i, args := range arguments {
		calls[i] = map[string]any{
			"id":   "call_" + string(rune('a'+i)),
			"type": "function",
			"function": map[string]any{
				"name":      "Company",
				"arguments": args,
			},
		}
	}
	body := map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-3.5-turbo",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "tool_calls",
			"message": map[string]any{
				"role":       "assistant",
				"content":    nil,
				"refusal":    nil,
				"tool_calls": calls,
			},
		}},
	}
	b, err := json.Marshal(body)
	require.NoError(t, err)
	return string(b)
}

func newTestOpenAIBackend(t *testing.T, handler http.HandlerFunc) *OpenAIBackend {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewOpenAIClient(OpenAIConfig{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)
	return NewOpenAIBackend(client)
}

func testPrompt(t *testing.T) *prompts.Prompt {
	t.Helper()
	p, err := prompts.Build(prompts.BuildInput{
		SchemaName: "Company",
		Examples: []types.ExtractionExample{
			{Text: "Globex has 3 staff.", Output: []types.Record{{"name": "Globex", "size": 3}}},
		},
		Text: "Acme Corp has 500 employees.",
	})
	require.NoError(t, err)
	return p
}

func TestNewOpenAIClient_RequiresKey(t *testing.T) {
	_, err := NewOpenAIClient(OpenAIConfig{})
	assert.Error(t, err)
}

func TestOpenAIBackend_Complete(t *testing.T) {
	var payload map[string]any
	backend := newTestOpenAIBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &payload))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatCompletionJSON(t, `{"data":[{"name":"Acme Corp","size":500}]}`)))
	})

	fn := Function{Name: "Company", Description: "Company facts", Parameters: map[string]any{"type": "object"}}
	raw, err := backend.Complete(context.Background(), "gpt-3.5-turbo", testPrompt(t), fn)
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[{"name":"Acme Corp","size":500}]}`, raw)

	assert.Equal(t, "gpt-3.5-turbo", payload["model"])
	assert.Equal(t, "required", payload["tool_choice"])
	assert.EqualValues(t, 0, payload["temperature"])

	tools := payload["tools"].([]any)
	require.Len(t, tools, 1)
	function := tools[0].(map[string]any)["function"].(map[string]any)
	assert.Equal(t, "Company", function["name"])
	assert.Equal(t, "Company facts", function["description"])

	messages := payload["messages"].([]any)
	require.Len(t, messages, 5)
	roles := make([]string, len(messages))
	for i, m := range messages {
		roles[i] = m.(map[string]any)["role"].(string)
	}
	assert.Equal(t, []string{"system", "user", "assistant", "tool", "user"}, roles)

	call := messages[2].(map[string]any)["tool_calls"].([]any)[0].(map[string]any)
	assert.Equal(t, "example-0", call["id"])
	assert.Equal(t, "Company", call["function"].(map[string]any)["name"])
	assert.Equal(t, "example-0", messages[3].(map[string]any)["tool_call_id"])
}

func TestOpenAIBackend_MergesParallelCalls(t *testing.T) {
	backend := newTestOpenAIBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatCompletionJSON(t,
			`{"data":[{"name":"Acme Corp"}]}`,
			`{"data":[{"name":"Globex"}]}`,
		)))
	})

	raw, err := backend.Complete(context.Background(), "gpt-4o-mini", testPrompt(t), Function{Name: "Company"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[{"name":"Acme Corp"},{"name":"Globex"}]}`, raw)
}

func TestOpenAIBackend_NoToolCall(t *testing.T) {
	backend := newTestOpenAIBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatCompletionJSON(t)))
	})

	_, err := backend.Complete(context.Background(), "gpt-4o-mini", testPrompt(t), Function{Name: "Company"})
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.False(t, pe.Transient)
	assert.Contains(t, err.Error(), "did not call Company")
}

func TestOpenAIBackend_ErrorClassification(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantTransient bool
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, wantTransient: true},
		{name: "server error", status: http.StatusBadGateway, wantTransient: true},
		{name: "bad request", status: http.StatusBadRequest, wantTransient: false},
		{name: "unauthorized", status: http.StatusUnauthorized, wantTransient: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newTestOpenAIBackend(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"invalid_request_error"}}`))
			})

			_, err := backend.Complete(context.Background(), "gpt-4o-mini", testPrompt(t), Function{Name: "Company"})
			var pe *ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, "openai", pe.Provider)
			assert.Equal(t, tt.wantTransient, pe.Transient)
		})
	}
}

func TestOpenAIMessages_UnknownRole(t *testing.T) {
	_, err := openAIMessages(&prompts.Prompt{Turns: []prompts.Turn{{Role: "narrator", Content: "x"}}})
	assert.Error(t, err)
}

func TestOpenAIEmbedder(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &payload))

		// Returned out of order; the embedder must reorder by index.
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"object": "list",
			"model": "text-embedding-3-small",
			"data": [
				{"object": "embedding", "index": 1, "embedding": [0, 1]},
				{"object": "embedding", "index": 0, "embedding": [1, 0]}
			],
			"usage": {"prompt_tokens": 4, "total_tokens": 4}
		}`))
	}))
	defer server.Close()

	client, err := NewOpenAIClient(OpenAIConfig{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)
	embedder := NewOpenAIEmbedder(client, "")
	assert.Equal(t, DefaultOpenAIEmbeddingModel, embedder.Model())

	vectors, err := embedder.EmbedDocuments(context.Background(), []string{"salary", "benefits"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 0}, {0, 1}}, vectors)

	assert.Equal(t, "text-embedding-3-small", payload["model"])
	assert.Equal(t, []any{"salary", "benefits"}, payload["input"])
	assert.Equal(t, "float", payload["encoding_format"])
}

func TestOpenAIEmbedder_CountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","model":"m","data":[{"object":"embedding","index":0,"embedding":[1]}],"usage":{"prompt_tokens":1,"total_tokens":1}}`))
	}))
	defer server.Close()

	client, err := NewOpenAIClient(OpenAIConfig{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = NewOpenAIEmbedder(client, "m").EmbedDocuments(context.Background(), []string{"a", "b"})
	var pe *ProviderError
	assert.ErrorAs(t, err, &pe)
}

func TestOpenAIEmbedder_Empty(t *testing.T) {
	client, err := NewOpenAIClient(OpenAIConfig{APIKey: "test-key", BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)

	vectors, err := NewOpenAIEmbedder(client, "").EmbedDocuments(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}
