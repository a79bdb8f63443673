// Package analysis turns raw contract text into a structured risk
// assessment by calling an external LLM with a declared response schema.
package analysis

import (
	"context"
	"fmt"
	"strings"

	"docguard/pkg/ai"
	"docguard/pkg/domain"
	"docguard/pkg/retry"
)

// maxContractChars bounds the transmitted contract body. Content beyond the
// budget is silently dropped; this lossy truncation is deliberate.
const maxContractChars = 30000

// analysisTemperature is fixed low to minimize schema drift.
const analysisTemperature = 0.1

// Analyzer builds analysis requests and validates structured responses.
type Analyzer struct {
	gen    ai.StructuredGenerator
	policy retry.Policy
}

// NewAnalyzer wires a structured generator with a retry policy. A zero
// policy gets defaults plus transient-failure classification.
func NewAnalyzer(gen ai.StructuredGenerator, policy retry.Policy) (*Analyzer, error) {
	if gen == nil {
		return nil, fmt.Errorf("structured generator required")
	}
	if policy.Retryable == nil {
		policy.Retryable = ai.IsRetryable
	}
	if policy.MaxRetries <= 0 {
		policy.MaxRetries = retry.DefaultMaxRetries
	}
	if policy.InitialDelay <= 0 {
		policy.InitialDelay = retry.DefaultInitialDelay
	}
	return &Analyzer{gen: gen, policy: policy}, nil
}

// AnalyzeContract sends the (truncated) contract text to the model and
// returns the validated analysis. Transient upstream failures are retried
// per the policy; schema violations yield ErrResponseFormat and are not.
func (a *Analyzer) AnalyzeContract(ctx context.Context, text string, language domain.Language) (domain.AnalysisResult, error) {
	req := ai.StructuredRequest{
		SystemPrompt: strings.ReplaceAll(analysisSystemPrompt, languagePlaceholder, language.Label()),
		UserPrompt:   "Contract text to analyze:\n\n" + truncateContract(text),
		Schema:       resultSchema(),
		Temperature:  analysisTemperature,
	}
	payload, err := retry.Do(ctx, a.policy, func(ctx context.Context) ([]byte, error) {
		return a.gen.GenerateJSON(ctx, req)
	})
	if err != nil {
		return domain.AnalysisResult{}, fmt.Errorf("analyze contract: %w", err)
	}
	result, err := decodeResult(payload)
	if err != nil {
		return domain.AnalysisResult{}, err
	}
	return result, nil
}

func truncateContract(text string) string {
	runes := []rune(text)
	if len(runes) <= maxContractChars {
		return text
	}
	return string(runes[:maxContractChars])
}
