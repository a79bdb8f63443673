package ai

import "context"

// GeminiGenerator wraps GeminiClient with a fixed model.
type GeminiGenerator struct {
	client *GeminiClient
	model  string
}

// NewGeminiGenerator builds a Gemini-based generator.
func NewGeminiGenerator(client *GeminiClient, model string) *GeminiGenerator {
	return &GeminiGenerator{client: client, model: model}
}

// GenerateText implements TextGenerator using Gemini.
func (g *GeminiGenerator) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return g.client.GenerateText(ctx, g.model, systemPrompt, userPrompt)
}

// GenerateChat implements ChatGenerator using Gemini.
func (g *GeminiGenerator) GenerateChat(ctx context.Context, systemPrompt string, turns []Turn) (string, error) {
	return g.client.GenerateChat(ctx, g.model, systemPrompt, turns)
}

// GenerateJSON implements StructuredGenerator using Gemini.
func (g *GeminiGenerator) GenerateJSON(ctx context.Context, req StructuredRequest) ([]byte, error) {
	return g.client.GenerateJSON(ctx, g.model, req)
}
