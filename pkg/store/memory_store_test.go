package store

import (
	"errors"
	"testing"
	"time"

	"docguard/pkg/domain"
)

func doc(id, owner string) domain.Document {
	return domain.Document{
		ID:        id,
		OwnerID:   owner,
		FileName:  id + ".txt",
		Status:    domain.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

func TestListDocumentsNewestFirst(t *testing.T) {
	m := NewMemoryStore()
	if err := m.SaveDocument(doc("a", "owner-1")); err != nil {
		t.Fatalf("save a: %v", err)
	}
	if err := m.SaveDocument(doc("b", "owner-1")); err != nil {
		t.Fatalf("save b: %v", err)
	}
	docs, err := m.ListDocuments("owner-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 2 || docs[0].ID != "b" || docs[1].ID != "a" {
		t.Fatalf("expected [b a], got %+v", docs)
	}
}

func TestListDocumentsScopedToOwner(t *testing.T) {
	m := NewMemoryStore()
	_ = m.SaveDocument(doc("a", "owner-1"))
	_ = m.SaveDocument(doc("b", "owner-2"))
	docs, err := m.ListDocuments("owner-2")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "b" {
		t.Fatalf("expected only owner-2 documents, got %+v", docs)
	}
}

func TestSaveDocumentReplaceKeepsPosition(t *testing.T) {
	m := NewMemoryStore()
	_ = m.SaveDocument(doc("a", "owner-1"))
	_ = m.SaveDocument(doc("b", "owner-1"))
	updated := doc("a", "owner-1")
	updated.FileName = "renamed.txt"
	_ = m.SaveDocument(updated)

	docs, _ := m.ListDocuments("owner-1")
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].ID != "b" || docs[1].FileName != "renamed.txt" {
		t.Fatalf("replace must not duplicate or reorder, got %+v", docs)
	}
}

func TestUpdateDocumentMergePatch(t *testing.T) {
	m := NewMemoryStore()
	d := doc("a", "owner-1")
	d.SizeBytes = 42
	_ = m.SaveDocument(d)

	status := domain.StatusCompleted
	analysis := &domain.AnalysisResult{RiskScore: domain.RiskLow, Clauses: []domain.ClauseFinding{}}
	updated, err := m.UpdateDocument("a", DocumentPatch{Status: &status, Analysis: analysis})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != domain.StatusCompleted {
		t.Fatalf("status not patched: %+v", updated)
	}
	if updated.Analysis == nil || updated.Analysis.RiskScore != domain.RiskLow {
		t.Fatalf("analysis not patched: %+v", updated)
	}
	if updated.SizeBytes != 42 || updated.FileName != "a.txt" {
		t.Fatalf("absent patch fields must retain prior values: %+v", updated)
	}
}

func TestUpdateDocumentUnknownIDFails(t *testing.T) {
	m := NewMemoryStore()
	status := domain.StatusFailed
	_, err := m.UpdateDocument("missing", DocumentPatch{Status: &status})
	if !errors.Is(err, ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestUserLifecycle(t *testing.T) {
	m := NewMemoryStore()
	u := domain.User{ID: "u1", Email: "owner@example.com", Language: domain.LanguageEnglish}
	if err := m.SaveUser(u); err != nil {
		t.Fatalf("save user: %v", err)
	}
	byEmail, ok, err := m.GetUserByEmail("owner@example.com")
	if err != nil || !ok || byEmail.ID != "u1" {
		t.Fatalf("get by email: %v %v %+v", ok, err, byEmail)
	}
	updated, err := m.UpdateUserLanguage("u1", domain.LanguageHindi)
	if err != nil {
		t.Fatalf("update language: %v", err)
	}
	if updated.Language != domain.LanguageHindi {
		t.Fatalf("language not updated: %+v", updated)
	}
	if _, err := m.UpdateUserLanguage("missing", domain.LanguageHindi); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
