package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"

	"docguard/pkg/ai"
	"docguard/pkg/domain"
)

// resultSchema declares the required shape of the analysis response.
func resultSchema() *ai.Schema {
	riskEnum := []string{string(domain.RiskLow), string(domain.RiskMedium), string(domain.RiskHigh)}
	stringArray := &ai.Schema{Type: ai.TypeArray, Items: &ai.Schema{Type: ai.TypeString}}
	return &ai.Schema{
		Type: ai.TypeObject,
		Properties: map[string]*ai.Schema{
			"riskScore":               {Type: ai.TypeString, Enum: riskEnum},
			"summary":                 {Type: ai.TypeString},
			"plainEnglishExplanation": {Type: ai.TypeString},
			"obligations":             stringArray,
			"penalties":               stringArray,
			"negotiablePoints":        stringArray,
			"clauses": {
				Type: ai.TypeArray,
				Items: &ai.Schema{
					Type: ai.TypeObject,
					Properties: map[string]*ai.Schema{
						"text":                  {Type: ai.TypeString},
						"riskLevel":             {Type: ai.TypeString, Enum: riskEnum},
						"explanation":           {Type: ai.TypeString},
						"negotiationSuggestion": {Type: ai.TypeString},
					},
					Required: []string{"text", "riskLevel", "explanation"},
				},
			},
		},
		Required: []string{"riskScore", "summary", "plainEnglishExplanation", "clauses", "obligations", "penalties", "negotiablePoints"},
	}
}

// Raw decode targets use pointer fields so absent keys are distinguishable
// from empty values. Decoding fails closed: unknown keys are rejected.

type rawClause struct {
	Text                  *string `json:"text"`
	RiskLevel             *string `json:"riskLevel"`
	Explanation           *string `json:"explanation"`
	NegotiationSuggestion *string `json:"negotiationSuggestion"`
}

type rawResult struct {
	RiskScore               *string     `json:"riskScore"`
	Summary                 *string     `json:"summary"`
	PlainEnglishExplanation *string     `json:"plainEnglishExplanation"`
	Clauses                 []rawClause `json:"clauses"`
	Obligations             []string    `json:"obligations"`
	Penalties               []string    `json:"penalties"`
	NegotiablePoints        []string    `json:"negotiablePoints"`
}

func decodeResult(payload []byte) (domain.AnalysisResult, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	var raw rawResult
	if err := dec.Decode(&raw); err != nil {
		return domain.AnalysisResult{}, fmt.Errorf("%w: %v", ErrResponseFormat, err)
	}

	if raw.RiskScore == nil {
		return domain.AnalysisResult{}, missingField("riskScore")
	}
	risk, ok := domain.ParseRiskLevel(*raw.RiskScore)
	if !ok {
		return domain.AnalysisResult{}, fmt.Errorf("%w: invalid riskScore %q", ErrResponseFormat, *raw.RiskScore)
	}
	if raw.Summary == nil {
		return domain.AnalysisResult{}, missingField("summary")
	}
	if raw.PlainEnglishExplanation == nil {
		return domain.AnalysisResult{}, missingField("plainEnglishExplanation")
	}
	if raw.Clauses == nil {
		return domain.AnalysisResult{}, missingField("clauses")
	}
	if raw.Obligations == nil {
		return domain.AnalysisResult{}, missingField("obligations")
	}
	if raw.Penalties == nil {
		return domain.AnalysisResult{}, missingField("penalties")
	}
	if raw.NegotiablePoints == nil {
		return domain.AnalysisResult{}, missingField("negotiablePoints")
	}

	clauses := make([]domain.ClauseFinding, 0, len(raw.Clauses))
	for i, c := range raw.Clauses {
		if c.Text == nil || c.RiskLevel == nil || c.Explanation == nil {
			return domain.AnalysisResult{}, fmt.Errorf("%w: clause %d is missing a required field", ErrResponseFormat, i)
		}
		clauseRisk, ok := domain.ParseRiskLevel(*c.RiskLevel)
		if !ok {
			return domain.AnalysisResult{}, fmt.Errorf("%w: clause %d has invalid riskLevel %q", ErrResponseFormat, i, *c.RiskLevel)
		}
		finding := domain.ClauseFinding{
			Text:        *c.Text,
			RiskLevel:   clauseRisk,
			Explanation: *c.Explanation,
		}
		if c.NegotiationSuggestion != nil {
			finding.NegotiationSuggestion = *c.NegotiationSuggestion
		}
		clauses = append(clauses, finding)
	}

	return domain.AnalysisResult{
		RiskScore:               risk,
		Summary:                 *raw.Summary,
		PlainEnglishExplanation: *raw.PlainEnglishExplanation,
		Clauses:                 clauses,
		Obligations:             raw.Obligations,
		Penalties:               raw.Penalties,
		NegotiablePoints:        raw.NegotiablePoints,
	}, nil
}

func missingField(name string) error {
	return fmt.Errorf("%w: missing required field %q", ErrResponseFormat, name)
}
