package blob

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalBlobStore(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewLocalBlobStore(tmpDir)
	ctx := context.Background()

	key := "nodes/" + EscapeKey("codex:Void") + ".json"
	content := `{"id":"codex:Void"}`
	if err := store.Put(ctx, key, strings.NewReader(content)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	expectedPath := filepath.Join(tmpDir, "nodes", "codex_Void.json")
	if _, err := os.Stat(expectedPath); err != nil {
		t.Errorf("file was not created at %s: %v", expectedPath, err)
	}

	reader, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	data, err := io.ReadAll(reader)
	reader.Close()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != content {
		t.Errorf("Get content mismatch. Got %s, want %s", data, content)
	}

	// overwrite keeps a single blob
	if err := store.Put(ctx, key, strings.NewReader("{}")); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	if err := store.Put(ctx, "nodes/other.json", strings.NewReader("{}")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	keys, err := store.List(ctx, "nodes")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	want := []string{"nodes/codex_Void.json", "nodes/other.json"}
	if strings.Join(keys, ",") != strings.Join(want, ",") {
		t.Errorf("List returned %v, want %v", keys, want)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete: got %v, want ErrNotFound", err)
	}
	if err := store.Delete(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete: got %v, want ErrNotFound", err)
	}
}

func TestLocalBlobStore_ListMissingPrefix(t *testing.T) {
	store := NewLocalBlobStore(t.TempDir())
	keys, err := store.List(context.Background(), "contributions")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("expected no keys, got %v", keys)
	}
}

func TestLocalBlobStore_RejectsEscapingKeys(t *testing.T) {
	store := NewLocalBlobStore(t.TempDir())
	for _, key := range []string{"../outside.json", "/etc/passwd", ""} {
		if err := store.Put(context.Background(), key, strings.NewReader("x")); err == nil {
			t.Errorf("Put(%q) should fail", key)
		}
	}
}

func TestEscapeKey(t *testing.T) {
	if got := EscapeKey("codex:Void:symbolic:cultural"); got != "codex_Void_symbolic_cultural" {
		t.Errorf("EscapeKey = %s", got)
	}
}
