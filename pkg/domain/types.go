package domain

import (
	"fmt"
	"time"
)

// RiskLevel grades a contract or a single clause.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// ParseRiskLevel validates a model-supplied risk string.
func ParseRiskLevel(s string) (RiskLevel, bool) {
	switch RiskLevel(s) {
	case RiskLow, RiskMedium, RiskHigh:
		return RiskLevel(s), true
	}
	return "", false
}

// Language is a supported UI language tag.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageHindi   Language = "hi"
)

// Label returns the human-readable language name used in prompts.
func (l Language) Label() string {
	if l == LanguageHindi {
		return "Hindi"
	}
	return "English"
}

// ParseLanguage normalizes a language tag, defaulting to English.
func ParseLanguage(s string) Language {
	if Language(s) == LanguageHindi {
		return LanguageHindi
	}
	return LanguageEnglish
}

type DocumentStatus string

const (
	StatusPending   DocumentStatus = "pending"
	StatusCompleted DocumentStatus = "completed"
	StatusFailed    DocumentStatus = "failed"
)

// ClauseFinding is one flagged excerpt with its own risk rating and advice.
// Order within an AnalysisResult mirrors source order.
type ClauseFinding struct {
	Text                  string    `json:"text"`
	RiskLevel             RiskLevel `json:"riskLevel"`
	Explanation           string    `json:"explanation"`
	NegotiationSuggestion string    `json:"negotiationSuggestion,omitempty"`
}

// AnalysisResult is the structured risk assessment returned for one contract.
// Immutable once constructed.
type AnalysisResult struct {
	RiskScore               RiskLevel       `json:"riskScore"`
	Summary                 string          `json:"summary"`
	PlainEnglishExplanation string          `json:"plainEnglishExplanation"`
	Clauses                 []ClauseFinding `json:"clauses"`
	Obligations             []string        `json:"obligations"`
	Penalties               []string        `json:"penalties"`
	NegotiablePoints        []string        `json:"negotiablePoints"`
}

// Document is one uploaded contract and its analysis lifecycle.
type Document struct {
	ID           string          `json:"id"`
	OwnerID      string          `json:"ownerId"`
	FileName     string          `json:"fileName"`
	StorageKey   string          `json:"-"`
	Status       DocumentStatus  `json:"status"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
	SizeBytes    int64           `json:"sizeBytes"`
	Language     Language        `json:"language,omitempty"`
	Analysis     *AnalysisResult `json:"analysis,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// Validate checks the status/analysis invariant: a completed document
// carries an analysis, pending and failed documents do not.
func (d Document) Validate() error {
	switch d.Status {
	case StatusCompleted:
		if d.Analysis == nil {
			return fmt.Errorf("completed document %s has no analysis", d.ID)
		}
	case StatusPending, StatusFailed:
		if d.Analysis != nil {
			return fmt.Errorf("%s document %s carries an analysis", d.Status, d.ID)
		}
	default:
		return fmt.Errorf("document %s has unknown status %q", d.ID, d.Status)
	}
	return nil
}

// User is a profile with a language preference.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Language  Language  `json:"language"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message of a conversation session.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}
