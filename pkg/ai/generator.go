package ai

import "context"

// TextGenerator generates text from a system prompt and user prompt.
// All LLM providers (Gemini, OpenAI-compatible) implement this interface.
type TextGenerator interface {
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ChatGenerator generates the next reply for an ordered conversation.
type ChatGenerator interface {
	GenerateChat(ctx context.Context, systemPrompt string, turns []Turn) (string, error)
}

// StructuredGenerator generates a JSON document constrained by a declared
// response schema. The returned bytes are the raw model payload; callers own
// validation.
type StructuredGenerator interface {
	GenerateJSON(ctx context.Context, req StructuredRequest) ([]byte, error)
}

// Turn is one provider-agnostic conversation message.
type Turn struct {
	Role    string
	Content string
}

// StructuredRequest describes one schema-constrained generation call.
type StructuredRequest struct {
	SystemPrompt string
	UserPrompt   string
	Schema       *Schema
	Temperature  float64
}

// Schema type names follow the Gemini structured-output vocabulary.
const (
	TypeObject  = "OBJECT"
	TypeArray   = "ARRAY"
	TypeString  = "STRING"
	TypeNumber  = "NUMBER"
	TypeBoolean = "BOOLEAN"
)

// Schema declares the required shape of a structured model response.
type Schema struct {
	Type       string             `json:"type"`
	Properties map[string]*Schema `json:"properties,omitempty"`
	Items      *Schema            `json:"items,omitempty"`
	Required   []string           `json:"required,omitempty"`
	Enum       []string           `json:"enum,omitempty"`
}
