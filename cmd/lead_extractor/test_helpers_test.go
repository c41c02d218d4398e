package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/jonathan/lead-extractor/internal/chunking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const companyExtractor = "../../schemas/extractors/company.json"

// configEnv lists the variables config.Load reads, cleared per test so a
// developer's environment cannot leak in.
var configEnv = []string{
	"OPENAI_API_KEY", "OPENAI_BASE_URL", "GEMINI_API_KEY", "DEFAULT_MODEL",
	"DATABASE_URL", "REDIS_URL", "MAX_CONCURRENCY", "MAX_CHUNKS",
	"MAX_FILE_SIZE_MB", "MAX_ATTEMPTS", "RETRY_DELAY", "TOKEN_OVERLAP",
	"EMBEDDING_PROVIDER", "EMBEDDING_MODEL", "RETRIEVAL_K",
	"EMBEDDING_CACHE_TTL", "LOG_LEVEL", "LOG_FORMAT",
}

func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnv {
		t.Setenv(key, "")
	}
	t.Setenv("LOG_LEVEL", "error")
}

// getBinaryPath returns the path to the lead_extractor binary for testing
func getBinaryPath(t *testing.T) string {
	binaryName := "lead_extractor"
	if testing.Short() {
		t.Skip("Skipping CLI tests in short mode")
	}

	binaryPath := filepath.Join("..", "..", "bin", binaryName)
	if _, err := os.Stat(binaryPath); os.IsNotExist(err) {
		t.Skipf("Binary not found at %s, build it first with 'make build'", binaryPath)
	}

	return binaryPath
}

// executeCmd runs the root command in-process.
func executeCmd(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

type runeTokenizer struct{}

func (runeTokenizer) Encode(text string) []int {
	runes := []rune(text)
	out := make([]int, len(runes))
	for i, r := range runes {
		out[i] = int(r)
	}
	return out
}

func (runeTokenizer) Decode(tokens []int) string {
	runes := make([]rune, len(tokens))
	for i, tok := range tokens {
		runes[i] = rune(tok)
	}
	return string(runes)
}

// useRuneTokenizer swaps in an offline tokenizer for the test.
func useRuneTokenizer(t *testing.T) {
	t.Helper()
	previous := newTokenizer
	newTokenizer = func() (chunking.Tokenizer, error) { return runeTokenizer{}, nil }
	t.Cleanup(func() { newTokenizer = previous })
}

// fakeOpenAI serves chat completions and embeddings. The model "finds"
// Initech whenever the final user turn mentions it.
type fakeOpenAI struct {
	server     *httptest.Server
	chatCalls  atomic.Int32
	embedCalls atomic.Int32
	embedded   atomic.Int32
}

func newFakeOpenAI(t *testing.T) *fakeOpenAI {
	t.Helper()
	f := &fakeOpenAI{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/chat/completions":
			f.chatCalls.Add(1)
			_, _ = w.Write(f.chat(t, body))
		case "/embeddings":
			f.embedCalls.Add(1)
			_, _ = w.Write(f.embeddings(t, body))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeOpenAI) chat(t *testing.T, body []byte) []byte {
	var req struct {
		Messages []struct {
			Role    string          `json:"role"`
			Content json.RawMessage `json:"content"`
		} `json:"messages"`
		Tools []struct {
			Function struct {
				Name string `json:"name"`
			} `json:"function"`
		} `json:"tools"`
	}
	if !assert.NoError(t, json.Unmarshal(body, &req)) || len(req.Tools) == 0 || len(req.Messages) == 0 {
		return []byte(`{}`)
	}

	last := string(req.Messages[len(req.Messages)-1].Content)
	args := `{"data":[]}`
	if strings.Contains(last, "Initech") {
		args = `{"data":[{"name":"Initech Ltd","size":120}]}`
	}

	resp := map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-3.5-turbo",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "tool_calls",
			"message": map[string]any{
				"role":    "assistant",
				"content": nil,
				"refusal": nil,
				"tool_calls": []map[string]any{{
					"id":       "call_1",
					"type":     "function",
					"function": map[string]any{"name": req.Tools[0].Function.Name, "arguments": args},
				}},
			},
		}},
	}
	b, err := json.Marshal(resp)
	assert.NoError(t, err)
	return b
}

func (f *fakeOpenAI) embeddings(t *testing.T, body []byte) []byte {
	var req struct {
		Input []string `json:"input"`
	}
	if !assert.NoError(t, json.Unmarshal(body, &req)) {
		return []byte(`{}`)
	}
	f.embedded.Add(int32(len(req.Input)))

	data := make([]map[string]any, len(req.Input))
	for i, text := range req.Input {
		data[i] = map[string]any{
			"object":    "embedding",
			"index":     i,
			"embedding": []float64{float64(strings.Count(text, "Initech")), 1},
		}
	}
	b, err := json.Marshal(map[string]any{
		"object": "list",
		"model":  "text-embedding-3-small",
		"data":   data,
		"usage":  map[string]any{"prompt_tokens": 1, "total_tokens": 1},
	})
	assert.NoError(t, err)
	return b
}

// configure points the CLI at the fake server.
func (f *fakeOpenAI) configure(t *testing.T) {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("OPENAI_BASE_URL", f.server.URL)
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
