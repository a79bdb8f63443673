// Package lifecycle drives a document from submission through analysis to
// its terminal state.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"docguard/pkg/ai"
	"docguard/pkg/analysis"
	"docguard/pkg/domain"
	"docguard/pkg/store"
)

// DefaultMaxUploadBytes caps uploads at 2 MiB.
const DefaultMaxUploadBytes = 2 << 20

var defaultAllowedExtensions = []string{".pdf", ".docx", ".txt", ".md"}

// Analyzer produces a structured assessment for contract text.
type Analyzer interface {
	AnalyzeContract(ctx context.Context, text string, language domain.Language) (domain.AnalysisResult, error)
}

// Config tunes upload validation. Zero values take defaults.
type Config struct {
	AllowedExtensions []string
	MaxUploadBytes    int64
}

// Orchestrator owns the document state machine: every document it creates
// starts pending and transitions exactly once to completed or failed.
// Completed documents always carry an analysis; pending and failed never do.
type Orchestrator struct {
	store    store.Store
	analyzer Analyzer
	allowed  map[string]bool
	maxBytes int64
	now      func() time.Time
}

// NewOrchestrator wires the store and analyzer.
func NewOrchestrator(st store.Store, analyzer Analyzer, cfg Config) (*Orchestrator, error) {
	if st == nil {
		return nil, errors.New("store required")
	}
	if analyzer == nil {
		return nil, errors.New("analyzer required")
	}
	exts := cfg.AllowedExtensions
	if len(exts) == 0 {
		exts = defaultAllowedExtensions
	}
	allowed := make(map[string]bool, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = true
	}
	maxBytes := cfg.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &Orchestrator{
		store:    st,
		analyzer: analyzer,
		allowed:  allowed,
		maxBytes: maxBytes,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// ValidateUpload checks a prospective upload before any record is created.
func (o *Orchestrator) ValidateUpload(filename string, size int64) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if !o.allowed[ext] {
		return fmt.Errorf("%w: %s", ErrUnsupportedFileType, ext)
	}
	if size > o.maxBytes {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrFileTooLarge, size, o.maxBytes)
	}
	return nil
}

// Submit runs the synchronous path: persist a pending record, then analyze
// and finalize it. The pending record is visible to listing before the
// analysis outcome is known. Empty text fails the record immediately with
// no external call.
func (o *Orchestrator) Submit(ctx context.Context, owner domain.User, name, text string, language domain.Language) (domain.Document, error) {
	doc, err := o.createPending(owner, name, false, int64(len(text)), language)
	if err != nil {
		return domain.Document{}, err
	}
	return o.ProcessDocument(ctx, doc.ID, text)
}

// CreateUpload validates the upload and persists the pending record for the
// async path. The caller stores the file under the returned StorageKey and
// enqueues an analysis job.
func (o *Orchestrator) CreateUpload(ctx context.Context, owner domain.User, filename string, size int64, language domain.Language) (domain.Document, error) {
	if err := o.ValidateUpload(filename, size); err != nil {
		return domain.Document{}, err
	}
	return o.createPending(owner, filename, true, size, language)
}

func (o *Orchestrator) createPending(owner domain.User, name string, withStorageKey bool, size int64, language domain.Language) (domain.Document, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Untitled document"
	}
	now := o.now()
	doc := domain.Document{
		ID:        uuid.NewString(),
		OwnerID:   owner.ID,
		FileName:  name,
		Status:    domain.StatusPending,
		SizeBytes: size,
		Language:  language,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if withStorageKey {
		doc.StorageKey = "uploads/" + doc.ID + "/" + filepath.Base(name)
	}
	if err := o.store.SaveDocument(doc); err != nil {
		return domain.Document{}, fmt.Errorf("save document: %w", err)
	}
	return doc, nil
}

// ProcessDocument analyzes the text for a pending document and finalizes it.
// Documents already in a terminal state are returned unchanged, which makes
// queue redeliveries harmless.
func (o *Orchestrator) ProcessDocument(ctx context.Context, id, text string) (domain.Document, error) {
	doc, ok, err := o.store.GetDocument(id)
	if err != nil {
		return domain.Document{}, fmt.Errorf("load document: %w", err)
	}
	if !ok {
		return domain.Document{}, store.ErrDocumentNotFound
	}
	if doc.Status != domain.StatusPending {
		return doc, nil
	}
	if strings.TrimSpace(text) == "" {
		return o.fail(id, ErrEmptyDocument)
	}
	result, err := o.analyzer.AnalyzeContract(ctx, text, doc.Language)
	if err != nil {
		slog.Warn("document analysis failed", "document_id", id, "error", err)
		return o.fail(id, err)
	}
	return o.complete(id, result)
}

// FailDocument finalizes a pending document as failed, e.g. when the stored
// file cannot be read back or its text extracted. Terminal documents are
// returned unchanged.
func (o *Orchestrator) FailDocument(ctx context.Context, id string, cause error) (domain.Document, error) {
	doc, ok, err := o.store.GetDocument(id)
	if err != nil {
		return domain.Document{}, fmt.Errorf("load document: %w", err)
	}
	if !ok {
		return domain.Document{}, store.ErrDocumentNotFound
	}
	if doc.Status != domain.StatusPending {
		return doc, nil
	}
	return o.fail(id, cause)
}

func (o *Orchestrator) complete(id string, result domain.AnalysisResult) (domain.Document, error) {
	status := domain.StatusCompleted
	empty := ""
	doc, err := o.store.UpdateDocument(id, store.DocumentPatch{
		Status:       &status,
		ErrorMessage: &empty,
		Analysis:     &result,
	})
	if err != nil {
		return domain.Document{}, fmt.Errorf("finalize document: %w", err)
	}
	slog.Info("document analysis completed", "document_id", id, "risk_score", result.RiskScore)
	return doc, nil
}

func (o *Orchestrator) fail(id string, cause error) (domain.Document, error) {
	status := domain.StatusFailed
	message := FailureMessage(cause)
	doc, err := o.store.UpdateDocument(id, store.DocumentPatch{
		Status:       &status,
		ErrorMessage: &message,
	})
	if err != nil {
		return domain.Document{}, fmt.Errorf("finalize document: %w", err)
	}
	return doc, nil
}

// FailureMessage maps an analysis error to the user-facing description
// stored on the failed document.
func FailureMessage(err error) string {
	switch {
	case errors.Is(err, ErrEmptyDocument):
		return "The document appears to be empty."
	case errors.Is(err, ErrUnreadableDocument):
		return "The document could not be read. Please upload a readable PDF, DOCX or text file."
	case errors.Is(err, analysis.ErrResponseFormat):
		return "Analysis failed: the analysis service returned an unexpected response."
	case ai.IsAuthError(err):
		return "Analysis failed: the analysis service rejected the request."
	case ai.IsRetryable(err):
		return "Analysis failed: the analysis service is temporarily unavailable. Please try again."
	default:
		return "Analysis failed. Please try again."
	}
}
