package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalStoragePutAndDelete(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStorage(dir, "http://localhost:8080/files/")
	if err != nil {
		t.Fatalf("NewLocalStorage returned error: %v", err)
	}

	ctx := context.Background()
	key := "statements/w1/2026-01-01_2026-02-01.csv"
	if err := s.Put(ctx, key, strings.NewReader("a,b\n"), "text/csv"); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "statements", "w1", "2026-01-01_2026-02-01.csv"))
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if string(got) != "a,b\n" {
		t.Fatalf("unexpected content %q", got)
	}

	if url := s.GetURL(key); url != "http://localhost:8080/files/"+key {
		t.Fatalf("unexpected url %s", url)
	}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("second Delete should be a no-op, got %v", err)
	}
}

func TestLocalStorageRejectsEscapingKeys(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewLocalStorage returned error: %v", err)
	}
	if err := s.Put(context.Background(), "../outside.csv", strings.NewReader("x"), "text/csv"); err == nil {
		t.Fatal("expected error for key outside base path")
	}
}
