package storage

import (
	"context"
	"errors"
	"testing"

	"docforge/internal/config"
)

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	obj := SessionObject("abc", "../template.docx")
	if obj != "sessions/abc/template.docx" {
		t.Fatalf("SessionObject = %s", obj)
	}
	if err := PutBytes(ctx, s, obj, []byte("hello"), "text/plain"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := ReadAll(ctx, s, obj)
	if err != nil || string(got) != "hello" {
		t.Fatalf("ReadAll = %q, %v", got, err)
	}

	if err := PutBytes(ctx, s, obj, []byte("replaced"), ""); err != nil {
		t.Fatal(err)
	}
	if got, _ := ReadAll(ctx, s, obj); string(got) != "replaced" {
		t.Errorf("overwrite = %q", got)
	}

	if err := s.DeletePrefix(ctx, SessionPrefix("abc")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, obj); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete err = %v", err)
	}
	if err := s.Delete(ctx, obj); err != nil {
		t.Errorf("deleting a missing object: %v", err)
	}
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"", "/", "../escape", "a/../../b"} {
		if _, err := s.Put(context.Background(), name, nil, ""); err == nil {
			t.Errorf("Put(%q) accepted", name)
		}
	}
}

func TestOpenSelectsBackend(t *testing.T) {
	s, err := Open(context.Background(), config.StorageConfig{Backend: "local", Dir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*LocalStore); !ok {
		t.Errorf("Open(local) = %T", s)
	}
	if _, err := Open(context.Background(), config.StorageConfig{Backend: "s3"}); err == nil {
		t.Error("expected an error for an unknown backend")
	}
}
