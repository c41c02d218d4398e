package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/jonathan/lead-extractor/internal/prompts"
	"google.golang.org/api/option"
)

// NewGeminiClient creates a Gemini API client.
func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client, nil
}

// GeminiBackend extracts in JSON mode: the function's parameter schema goes
// into the system instruction and the reply must be {"data": [...]}.
type GeminiBackend struct {
	client *genai.Client
}

// NewGeminiBackend creates a backend on client.
func NewGeminiBackend(client *genai.Client) *GeminiBackend {
	return &GeminiBackend{client: client}
}

// Name implements Backend.
func (b *GeminiBackend) Name() Provider {
	return ProviderGemini
}

// Encoder implements Backend. Examples are encoded as plain JSON replies.
func (b *GeminiBackend) Encoder() prompts.ExampleEncoder {
	return prompts.JSONEncoder{}
}

// Complete implements Backend.
func (b *GeminiBackend) Complete(ctx context.Context, model string, prompt *prompts.Prompt, fn Function) (string, error) {
	system, err := geminiSystemInstruction(prompt, fn)
	if err != nil {
		return "", &ProviderError{Provider: string(ProviderGemini), Op: "build request", Cause: err}
	}
	history, last, err := geminiHistory(prompt.Messages())
	if err != nil {
		return "", &ProviderError{Provider: string(ProviderGemini), Op: "build request", Cause: err}
	}

	gm := b.client.GenerativeModel(model)
	gm.SetTemperature(0)
	gm.ResponseMIMEType = "application/json"
	gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}

	cs := gm.StartChat()
	cs.History = history
	resp, err := cs.SendMessage(ctx, last)
	if err != nil {
		return "", providerError(ProviderGemini, "generate content", err)
	}

	text, err := extractTextFromResponse(resp)
	if err != nil {
		return "", &ProviderError{Provider: string(ProviderGemini), Op: "generate content", Cause: err}
	}
	return CleanJSONBlock(text), nil
}

// geminiSystemInstruction appends the JSON-mode output contract to the prompt's
// system turn.
func geminiSystemInstruction(prompt *prompts.Prompt, fn Function) (string, error) {
	schema, err := json.Marshal(fn.Parameters)
	if err != nil {
		return "", fmt.Errorf("failed to encode function parameters: %w", err)
	}
	tmpl, err := prompts.Get(prompts.ExtractionFile, prompts.KeyJSONModeInstruction)
	if err != nil {
		return "", err
	}
	contract := prompts.Format(tmpl, map[string]string{"Name": fn.Name, "Schema": string(schema)})
	return prompt.System() + "\n\n" + contract, nil
}

// geminiHistory maps chat turns to Gemini contents. The final turn must be a
// user turn; it is returned separately as the message to send.
func geminiHistory(turns []prompts.Turn) ([]*genai.Content, genai.Text, error) {
	if len(turns) == 0 || turns[len(turns)-1].Role != prompts.RoleUser {
		return nil, "", fmt.Errorf("prompt must end with a user turn")
	}

	history := make([]*genai.Content, 0, len(turns)-1)
	for _, turn := range turns[:len(turns)-1] {
		switch turn.Role {
		case prompts.RoleUser:
			history = append(history, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(turn.Content)}})
		case prompts.RoleAssistant:
			content := turn.Content
			if turn.Call != nil {
				content = turn.Call.Arguments
			}
			history = append(history, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(content)}})
		case prompts.RoleTool:
			// JSON mode has no tool results to acknowledge.
		default:
			return nil, "", fmt.Errorf("unexpected %s turn in chat history", turn.Role)
		}
	}
	return history, genai.Text(turns[len(turns)-1].Content), nil
}

// extractTextFromResponse extracts text from Gemini API response
func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}

	return strings.Join(parts, ""), nil
}
