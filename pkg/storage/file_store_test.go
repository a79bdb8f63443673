package storage

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

func TestFileStoreRoundTrip(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	ctx := context.Background()
	payload := []byte("contract body")
	if err := fs.Put(ctx, "uploads/doc-1/lease.txt", bytes.NewReader(payload), int64(len(payload)), "text/plain"); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := fs.Get(ctx, "uploads/doc-1/lease.txt")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("unexpected payload: %q", got)
	}
	if err := fs.Delete(ctx, "uploads/doc-1/lease.txt"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := fs.Get(ctx, "uploads/doc-1/lease.txt"); err == nil {
		t.Fatal("expected get after delete to fail")
	}
}

func TestFileStoreRejectsTraversalKeys(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	ctx := context.Background()
	if err := fs.Put(ctx, "../escape.txt", bytes.NewReader(nil), 0, ""); err == nil {
		t.Fatal("expected traversal key to be rejected")
	}
	if _, err := fs.Get(ctx, "/etc/passwd"); err == nil {
		t.Fatal("expected absolute key to be rejected")
	}
}

func TestFileStorePresignUnsupported(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	if _, err := fs.PresignGet(context.Background(), "k", time.Minute); !errors.Is(err, ErrPresignUnsupported) {
		t.Fatalf("expected ErrPresignUnsupported, got %v", err)
	}
}
