package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jonathan/lead-extractor/internal/prompts"
	"github.com/jonathan/lead-extractor/internal/types"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const defaultOpenAITimeout = 120 * time.Second

// OpenAIConfig holds the settings for the OpenAI client.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	// MaxRetries is the SDK's own retry count. The invoker retries transient
	// failures itself, so this defaults to zero.
	MaxRetries int
	HTTPClient *http.Client
}

// NewOpenAIClient creates an OpenAI API client.
func NewOpenAIClient(cfg OpenAIConfig) (openai.Client, error) {
	if cfg.APIKey == "" {
		return openai.Client{}, fmt.Errorf("OpenAI API key is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultOpenAITimeout}
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return openai.NewClient(opts...), nil
}

// OpenAIBackend extracts with chat completions, forcing a call to the single
// extraction function.
type OpenAIBackend struct {
	client openai.Client
}

// NewOpenAIBackend creates a backend on client.
func NewOpenAIBackend(client openai.Client) *OpenAIBackend {
	return &OpenAIBackend{client: client}
}

// Name implements Backend.
func (b *OpenAIBackend) Name() Provider {
	return ProviderOpenAI
}

// Encoder implements Backend. Examples are encoded as function calls, the
// same shape the model is forced to produce.
func (b *OpenAIBackend) Encoder() prompts.ExampleEncoder {
	return prompts.FunctionCallEncoder{}
}

// Complete implements Backend.
func (b *OpenAIBackend) Complete(ctx context.Context, model string, prompt *prompts.Prompt, fn Function) (string, error) {
	messages, err := openAIMessages(prompt)
	if err != nil {
		return "", &ProviderError{Provider: string(ProviderOpenAI), Op: "build request", Cause: err}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: messages,
		Tools: []openai.ChatCompletionToolUnionParam{
			openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
				Name:        fn.Name,
				Description: openai.String(fn.Description),
				Parameters:  openai.FunctionParameters(fn.Parameters),
			}),
		},
		ToolChoice: openai.ChatCompletionToolChoiceOptionUnionParam{
			OfAuto: openai.String("required"),
		},
		Temperature: openai.Float(0),
	}

	resp, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", providerError(ProviderOpenAI, "chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return "", &ProviderError{Provider: string(ProviderOpenAI), Op: "chat completion", Cause: fmt.Errorf("no choices in response")}
	}

	calls := resp.Choices[0].Message.ToolCalls
	if len(calls) == 0 {
		return "", &ProviderError{
			Provider: string(ProviderOpenAI),
			Op:       "chat completion",
			Cause:    fmt.Errorf("model did not call %s", fn.Name),
		}
	}
	if len(calls) == 1 {
		return calls[0].Function.Arguments, nil
	}

	// Parallel calls are merged into one payload in call order.
	var merged []types.Record
	for _, call := range calls {
		records, err := ParseRecords(call.Function.Arguments)
		if err != nil {
			return "", &ProviderError{Provider: string(ProviderOpenAI), Op: "parse output", Cause: err}
		}
		merged = append(merged, records...)
	}
	payload, err := prompts.DataPayload(merged)
	if err != nil {
		return "", &ProviderError{Provider: string(ProviderOpenAI), Op: "parse output", Cause: err}
	}
	return payload, nil
}

func openAIMessages(prompt *prompts.Prompt) ([]openai.ChatCompletionMessageParamUnion, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(prompt.Turns))
	for i, turn := range prompt.Turns {
		switch turn.Role {
		case prompts.RoleSystem:
			messages = append(messages, openai.SystemMessage(turn.Content))
		case prompts.RoleUser:
			messages = append(messages, openai.UserMessage(turn.Content))
		case prompts.RoleAssistant:
			if turn.Call == nil {
				messages = append(messages, openai.AssistantMessage(turn.Content))
				continue
			}
			messages = append(messages, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					ToolCalls: []openai.ChatCompletionMessageToolCallUnionParam{{
						OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
							ID: turn.Call.ID,
							Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
								Name:      turn.Call.Name,
								Arguments: turn.Call.Arguments,
							},
						},
					}},
				},
			})
		case prompts.RoleTool:
			messages = append(messages, openai.ToolMessage(turn.Content, turn.CallID))
		default:
			return nil, fmt.Errorf("turn %d has unknown role %q", i, turn.Role)
		}
	}
	return messages, nil
}
