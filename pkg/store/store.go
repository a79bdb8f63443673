package store

import (
	"errors"

	"docguard/pkg/domain"
)

var (
	// ErrDocumentNotFound indicates the document id is unknown. Updates on
	// unknown ids fail loudly instead of silently no-oping, so a racing
	// update against a not-yet-persisted save cannot go unnoticed.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrUserNotFound indicates the user id is unknown.
	ErrUserNotFound = errors.New("user not found")
)

// DocumentPatch is a merge-patch: nil fields retain the stored value.
type DocumentPatch struct {
	Status       *domain.DocumentStatus
	ErrorMessage *string
	Analysis     *domain.AnalysisResult
	Language     *domain.Language
	FileName     *string
}

// Store defines persistence for documents and user profiles.
// ListDocuments order is newest-first; this is a persisted invariant.
type Store interface {
	SaveDocument(domain.Document) error
	GetDocument(id string) (domain.Document, bool, error)
	ListDocuments(ownerID string) ([]domain.Document, error)
	UpdateDocument(id string, patch DocumentPatch) (domain.Document, error)

	SaveUser(domain.User) error
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)
	UpdateUserLanguage(id string, language domain.Language) (domain.User, error)
}
