package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	return NewResolver(filepath.Join(t.TempDir(), "edit_history.json"), zerolog.Nop())
}

func TestResolveWithoutEdit(t *testing.T) {
	r := newTestResolver(t)

	artist, title := r.Resolve("A", "T")
	if artist != "A" || title != "T" {
		t.Errorf("Resolve = (%q, %q), want inputs unchanged", artist, title)
	}
}

func TestRecordEditAndResolve(t *testing.T) {
	r := newTestResolver(t)

	if err := r.RecordEdit("A", "T", "B", "U"); err != nil {
		t.Fatalf("RecordEdit: %v", err)
	}

	artist, title := r.Resolve("A", "T")
	if artist != "B" || title != "U" {
		t.Errorf("Resolve = (%q, %q), want (B, U)", artist, title)
	}

	// Other tracks are unaffected.
	artist, title = r.Resolve("A", "Other")
	if artist != "A" || title != "Other" {
		t.Errorf("Resolve = (%q, %q), want inputs unchanged", artist, title)
	}
}

func TestRecordEditUpserts(t *testing.T) {
	r := newTestResolver(t)

	if err := r.RecordEdit("A", "T", "B", "U"); err != nil {
		t.Fatalf("RecordEdit: %v", err)
	}
	if err := r.RecordEdit("A", "T", "C", "V"); err != nil {
		t.Fatalf("RecordEdit: %v", err)
	}

	artist, title := r.Resolve("A", "T")
	if artist != "C" || title != "V" {
		t.Errorf("Resolve = (%q, %q), want latest edit (C, V)", artist, title)
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "edit_history.json")

	r := NewResolver(path, zerolog.Nop())
	if err := r.RecordEdit("A", "T", "B", "U"); err != nil {
		t.Fatalf("RecordEdit: %v", err)
	}

	// A fresh resolver reads the same file back.
	r2 := NewResolver(path, zerolog.Nop())
	artist, title := r2.Resolve("A", "T")
	if artist != "B" || title != "U" {
		t.Errorf("Resolve after reload = (%q, %q), want (B, U)", artist, title)
	}
}

func TestPersistedFileFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "edit_history.json")

	r := NewResolver(path, zerolog.Nop())
	if err := r.RecordEdit("A", "T", "B", "U"); err != nil {
		t.Fatalf("RecordEdit: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var raw map[string]map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	got, ok := raw["A||||T"]
	if !ok {
		t.Fatalf("expected key %q, got keys %v", "A||||T", raw)
	}
	if got["artist"] != "B" || got["track"] != "U" {
		t.Errorf("entry = %v, want artist=B track=U", got)
	}
}

func TestPersistFailureKeepsInMemoryMapping(t *testing.T) {
	dir := t.TempDir()
	// Use a path whose parent is a regular file so MkdirAll fails.
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	r := NewResolver(filepath.Join(blocker, "edit_history.json"), zerolog.Nop())
	if err := r.RecordEdit("A", "T", "B", "U"); err == nil {
		t.Fatal("expected persistence error")
	}

	// The in-memory mapping stays authoritative for the session.
	artist, title := r.Resolve("A", "T")
	if artist != "B" || title != "U" {
		t.Errorf("Resolve = (%q, %q), want (B, U) despite persist failure", artist, title)
	}
}

func TestCorruptFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "edit_history.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	r := NewResolver(path, zerolog.Nop())
	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0 for corrupt file", r.Len())
	}
}
