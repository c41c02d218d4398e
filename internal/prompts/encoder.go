package prompts

import (
	"encoding/json"
	"fmt"

	"github.com/jonathan/lead-extractor/internal/types"
)

// Role identifies the speaker of a prompt turn.
type Role string

// Chat roles understood by the model backends.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// FunctionCall is a structured-output call made by the assistant.
type FunctionCall struct {
	ID        string
	Name      string
	Arguments string
}

// Turn is one message of a chat prompt. Call is set on assistant turns that
// invoke the extraction function; CallID is set on tool turns answering one.
type Turn struct {
	Role    Role
	Content string
	Call    *FunctionCall
	CallID  string
}

// ExampleEncoder renders one few-shot example as prompt turns. Its output shape
// must match the shape the backend asks the model to produce at inference.
type ExampleEncoder interface {
	EncodeExample(schemaName string, index int, ex types.ExtractionExample) ([]Turn, error)
}

// FunctionCallEncoder encodes an example's output as a call to the extraction
// function, for backends that use function calling.
type FunctionCallEncoder struct{}

// EncodeExample implements ExampleEncoder.
func (FunctionCallEncoder) EncodeExample(schemaName string, index int, ex types.ExtractionExample) ([]Turn, error) {
	args, err := DataPayload(ex.Output)
	if err != nil {
		return nil, fmt.Errorf("failed to encode example %d: %w", index, err)
	}
	ack, err := Get(ExtractionFile, KeyToolAcknowledgement)
	if err != nil {
		return nil, err
	}

	callID := fmt.Sprintf("example-%d", index)
	return []Turn{
		{Role: RoleUser, Content: ex.Text},
		{Role: RoleAssistant, Call: &FunctionCall{ID: callID, Name: schemaName, Arguments: args}},
		{Role: RoleTool, Content: ack, CallID: callID},
	}, nil
}

// JSONEncoder encodes an example's output as a plain JSON assistant reply, for
// backends constrained to JSON responses instead of function calls.
type JSONEncoder struct{}

// EncodeExample implements ExampleEncoder.
func (JSONEncoder) EncodeExample(_ string, index int, ex types.ExtractionExample) ([]Turn, error) {
	payload, err := DataPayload(ex.Output)
	if err != nil {
		return nil, fmt.Errorf("failed to encode example %d: %w", index, err)
	}
	return []Turn{
		{Role: RoleUser, Content: ex.Text},
		{Role: RoleAssistant, Content: payload},
	}, nil
}

// DataPayload serializes records as {"data": [...]}, the argument shape of
// the extraction function.
func DataPayload(records []types.Record) (string, error) {
	if records == nil {
		records = []types.Record{}
	}
	b, err := json.Marshal(struct {
		Data []types.Record `json:"data"`
	}{Data: records})
	if err != nil {
		return "", err
	}
	return string(b), nil
}
