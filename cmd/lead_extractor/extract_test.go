package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const initechPosting = "Initech Ltd employs 120 people and is hiring a Go engineer.\n\nBenefits include a red stapler."

func TestExtractCommand_EntireDocument(t *testing.T) {
	isolateEnv(t)
	useRuneTokenizer(t)
	fake := newFakeOpenAI(t)
	fake.configure(t)

	doc := writeTemp(t, "posting.txt", initechPosting)
	stdout, _, err := executeCmd(t, "extract", "--file", doc, "--extractor-file", companyExtractor)
	require.NoError(t, err)

	assert.JSONEq(t, `{"data":[{"name":"Initech Ltd","size":120}],"content_too_long":false}`, stdout)
	assert.EqualValues(t, 1, fake.chatCalls.Load())
	assert.EqualValues(t, 0, fake.embedCalls.Load())
}

func TestExtractCommand_InlineTextNoMatches(t *testing.T) {
	isolateEnv(t)
	useRuneTokenizer(t)
	fake := newFakeOpenAI(t)
	fake.configure(t)

	stdout, _, err := executeCmd(t, "extract", "--text", "We sell staplers.", "--extractor-file", companyExtractor)
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[],"content_too_long":false}`, stdout)
}

func TestExtractCommand_ChunkCap(t *testing.T) {
	isolateEnv(t)
	useRuneTokenizer(t)
	fake := newFakeOpenAI(t)
	fake.configure(t)
	t.Setenv("MAX_CHUNKS", "1")

	doc := writeTemp(t, "long.txt", strings.Repeat("Initech is hiring. ", 500))
	stdout, _, err := executeCmd(t, "extract", "-f", doc, "-e", companyExtractor)
	require.NoError(t, err)

	var resp struct {
		Data           []map[string]any `json:"data"`
		ContentTooLong bool             `json:"content_too_long"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.True(t, resp.ContentTooLong)
	assert.Len(t, resp.Data, 1)
	assert.EqualValues(t, 1, fake.chatCalls.Load())
}

func TestExtractCommand_RetrievalWithCache(t *testing.T) {
	isolateEnv(t)
	useRuneTokenizer(t)
	fake := newFakeOpenAI(t)
	fake.configure(t)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	t.Setenv("REDIS_URL", "redis://"+mr.Addr())

	doc := writeTemp(t, "posting.md", "# Careers\n\n"+initechPosting)
	args := []string{"extract", "--file", doc, "--extractor-file", companyExtractor, "--mode", "retrieval"}

	stdout, _, err := executeCmd(t, args...)
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[{"name":"Initech Ltd","size":120}],"content_too_long":false}`, stdout)
	assert.Positive(t, fake.embedCalls.Load())
	assert.NotEmpty(t, mr.Keys(), "document embeddings should be cached")

	embeddedFirst := fake.embedded.Load()
	_, _, err = executeCmd(t, args...)
	require.NoError(t, err)
	// Only the query is embedded on the second run.
	assert.EqualValues(t, embeddedFirst+1, fake.embedded.Load())
}

func TestExtractCommand_URL(t *testing.T) {
	isolateEnv(t)
	useRuneTokenizer(t)
	fake := newFakeOpenAI(t)
	fake.configure(t)

	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><body><nav>Home</nav><main><h1>Go Engineer</h1><p>` + initechPosting + `</p></main></body></html>`))
	}))
	defer site.Close()

	stdout, _, err := executeCmd(t, "extract", "--url", site.URL, "--extractor-file", companyExtractor)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Initech Ltd")
}

func TestExtractCommand_VerboseAndOutFile(t *testing.T) {
	isolateEnv(t)
	useRuneTokenizer(t)
	fake := newFakeOpenAI(t)
	fake.configure(t)

	doc := writeTemp(t, "posting.txt", initechPosting)
	out := filepath.Join(t.TempDir(), "result.json")
	stdout, stderr, err := executeCmd(t, "extract", "-v", "--file", doc, "--extractor-file", companyExtractor, "--out", out)
	require.NoError(t, err)

	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "INPUT DOCUMENT")
	assert.Contains(t, stderr, "EXTRACTOR")
	assert.Contains(t, stderr, "[chunk]")
	assert.Contains(t, stderr, "EXTRACTION RESULT")

	written, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[{"name":"Initech Ltd","size":120}],"content_too_long":false}`, string(written))
}

func TestExtractCommand_Errors(t *testing.T) {
	doc := writeTemp(t, "posting.txt", initechPosting)
	pdf := writeTemp(t, "posting.pdf", "%PDF-1.4 binary")
	badExtractor := writeTemp(t, "bad.json", `{"name": "x", "json_schema": {"type": "object"}}`)

	tests := []struct {
		name    string
		args    []string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "no input",
			args:    []string{"extract", "--extractor-file", companyExtractor},
			wantErr: "one of --file, --url or --text",
		},
		{
			name:    "no extractor",
			args:    []string{"extract", "--file", doc},
			wantErr: "--extractor-file or --extractor-id",
		},
		{
			name:    "two inputs",
			args:    []string{"extract", "--file", doc, "--text", "x", "--extractor-file", companyExtractor},
			wantErr: "none of the others can be",
		},
		{
			name:    "unknown mode",
			args:    []string{"extract", "--file", doc, "--extractor-file", companyExtractor, "--mode", "summary"},
			wantErr: "unknown extraction mode",
		},
		{
			name:    "save without stored extractor",
			args:    []string{"extract", "--file", doc, "--extractor-file", companyExtractor, "--save"},
			wantErr: "--save requires --extractor-id",
		},
		{
			name:    "stored extractor without database",
			args:    []string{"extract", "--file", doc, "--extractor-id", "00000000-0000-0000-0000-000000000000"},
			env:     map[string]string{"OPENAI_API_KEY": "test-key"},
			wantErr: "DATABASE_URL is required",
		},
		{
			name:    "missing document",
			args:    []string{"extract", "--file", "/nonexistent/posting.txt", "--extractor-file", companyExtractor},
			env:     map[string]string{"OPENAI_API_KEY": "test-key"},
			wantErr: "file not found",
		},
		{
			name:    "unsupported document",
			args:    []string{"extract", "--file", pdf, "--extractor-file", companyExtractor},
			env:     map[string]string{"OPENAI_API_KEY": "test-key"},
			wantErr: "unsupported",
		},
		{
			name:    "schema without title",
			args:    []string{"extract", "--file", doc, "--extractor-file", badExtractor},
			env:     map[string]string{"OPENAI_API_KEY": "test-key"},
			wantErr: "title",
		},
		{
			name:    "no provider key",
			args:    []string{"extract", "--file", doc, "--extractor-file", companyExtractor},
			wantErr: "no model provider configured",
		},
		{
			name:    "unsupported model",
			args:    []string{"extract", "--file", doc, "--extractor-file", companyExtractor, "--model", "llama-2"},
			env:     map[string]string{"OPENAI_API_KEY": "test-key", "OPENAI_BASE_URL": "http://127.0.0.1:1"},
			wantErr: "llama-2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t)
			useRuneTokenizer(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, _, err := executeCmd(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestExtractCommand_Binary(t *testing.T) {
	binaryPath := getBinaryPath(t)

	cmd := exec.Command(binaryPath, "extract", "--extractor-file", companyExtractor)
	output, err := cmd.CombinedOutput()

	assert.Error(t, err)
	assert.Contains(t, string(output), "one of --file, --url or --text")
}
