package parser

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonwraymond/toolquery/tool"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestParser_Watch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocabulary.yaml")
	writeFile(t, path, "keywords:\n  moon: crypto\n")

	v, err := LoadVocabulary(path)
	if err != nil {
		t.Fatalf("LoadVocabulary() error = %v", err)
	}
	p, err := New(v, Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Watch(ctx, path) }()

	// Rewrite until the watcher picks it up; the watch may not be registered
	// on the first write.
	deadline := time.Now().Add(5 * time.Second)
	for p.Parse("moon").Category != tool.CategorySports {
		if time.Now().After(deadline) {
			t.Fatal("vocabulary change was not picked up")
		}
		writeFile(t, path, "keywords:\n  moon: sports\n")
		time.Sleep(50 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("Watch did not return after cancel")
	}
}

func TestParser_ReloadInvalidKeepsCurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocabulary.yaml")
	writeFile(t, path, "keywords:\n  moon: astrology\n")

	p := newTestParser(t)
	if err := p.Reload(path); err == nil {
		t.Fatal("Reload() should reject an unknown category")
	}
	if q := p.Parse("trump"); q.Category != tool.CategoryPolitics {
		t.Errorf("Category = %s, want politics from the previous vocabulary", q.Category)
	}
}

func TestParser_WatchMissingDir(t *testing.T) {
	p := newTestParser(t)
	err := p.Watch(context.Background(), filepath.Join(t.TempDir(), "nope", "vocabulary.yaml"))
	if err == nil {
		t.Error("Watch() should fail when the directory does not exist")
	}
}
