package store

import (
	"sync"
	"time"

	"docguard/pkg/domain"
)

// MemoryStore keeps documents and users in-process. Used for development
// and tests; the shape mirrors the Postgres-backed store.
type MemoryStore struct {
	mu    sync.RWMutex
	docs  map[string]domain.Document
	order []string // newest first
	users map[string]domain.User
	email map[string]string // email -> user ID
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:  make(map[string]domain.Document),
		users: make(map[string]domain.User),
		email: make(map[string]string),
	}
}

// SaveDocument stores a document, prepending new ids so listing stays
// newest-first.
func (m *MemoryStore) SaveDocument(d domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.docs[d.ID]; !exists {
		m.order = append([]string{d.ID}, m.order...)
	}
	m.docs[d.ID] = d
	return nil
}

// GetDocument retrieves a document by ID.
func (m *MemoryStore) GetDocument(id string) (domain.Document, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[id]
	return d, ok, nil
}

// ListDocuments returns the owner's documents, newest first.
func (m *MemoryStore) ListDocuments(ownerID string) ([]domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Document, 0, len(m.order))
	for _, id := range m.order {
		if d, ok := m.docs[id]; ok && d.OwnerID == ownerID {
			res = append(res, d)
		}
	}
	return res, nil
}

// UpdateDocument applies a merge-patch. Unknown ids fail with
// ErrDocumentNotFound.
func (m *MemoryStore) UpdateDocument(id string, patch DocumentPatch) (domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return domain.Document{}, ErrDocumentNotFound
	}
	applyPatch(&d, patch)
	d.UpdatedAt = time.Now().UTC()
	m.docs[id] = d
	return d, nil
}

// SaveUser registers or replaces a user profile.
func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	m.email[u.Email] = u.ID
	return nil
}

// GetUserByEmail looks up a user by email.
func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.email[email]; ok {
		u, exists := m.users[id]
		return u, exists, nil
	}
	return domain.User{}, false, nil
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// UpdateUserLanguage sets the user's language preference.
func (m *MemoryStore) UpdateUserLanguage(id string, language domain.Language) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, ErrUserNotFound
	}
	u.Language = language
	u.UpdatedAt = time.Now().UTC()
	m.users[id] = u
	return u, nil
}

func applyPatch(d *domain.Document, patch DocumentPatch) {
	if patch.Status != nil {
		d.Status = *patch.Status
	}
	if patch.ErrorMessage != nil {
		d.ErrorMessage = *patch.ErrorMessage
	}
	if patch.Analysis != nil {
		d.Analysis = patch.Analysis
	}
	if patch.Language != nil {
		d.Language = *patch.Language
	}
	if patch.FileName != nil {
		d.FileName = *patch.FileName
	}
}
