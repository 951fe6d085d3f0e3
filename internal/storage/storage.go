// Package storage keeps uploaded session files in a blob store.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var ErrNotFound = errors.New("object not found")

// BlobStore is the subset of object storage the service needs.
type BlobStore interface {
	Put(ctx context.Context, objectName string, r io.Reader, contentType string) (int64, error)
	Get(ctx context.Context, objectName string) (io.ReadCloser, error)
	Delete(ctx context.Context, objectName string) error
	DeletePrefix(ctx context.Context, prefix string) error
	Close() error
}

func SessionPrefix(sessionID string) string {
	return "sessions/" + sessionID + "/"
}

// SessionObject names a file stored for a session.
func SessionObject(sessionID, name string) string {
	return SessionPrefix(sessionID) + path.Base(name)
}

// ReadAll fetches a whole object.
func ReadAll(ctx context.Context, s BlobStore, objectName string) ([]byte, error) {
	r, err := s.Get(ctx, objectName)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func PutBytes(ctx context.Context, s BlobStore, objectName string, data []byte, contentType string) error {
	_, err := s.Put(ctx, objectName, bytes.NewReader(data), contentType)
	return err
}

// LocalStore keeps objects as files under a root directory.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStore{root: root}, nil
}

func (l *LocalStore) path(objectName string) (string, error) {
	clean := path.Clean("/" + objectName)
	if clean == "/" || strings.Contains(objectName, "..") {
		return "", fmt.Errorf("invalid object name %q", objectName)
	}
	return filepath.Join(l.root, filepath.FromSlash(clean)), nil
}

func (l *LocalStore) Put(_ context.Context, objectName string, r io.Reader, _ string) (int64, error) {
	p, err := l.path(objectName)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return 0, err
	}
	size, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("failed to write %s: %w", objectName, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		os.Remove(tmp.Name())
		return 0, err
	}
	return size, nil
}

func (l *LocalStore) Get(_ context.Context, objectName string) (io.ReadCloser, error) {
	p, err := l.path(objectName)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", objectName, ErrNotFound)
	}
	return f, err
}

func (l *LocalStore) Delete(_ context.Context, objectName string) error {
	p, err := l.path(objectName)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (l *LocalStore) DeletePrefix(_ context.Context, prefix string) error {
	p, err := l.path(strings.TrimSuffix(prefix, "/"))
	if err != nil {
		return err
	}
	return os.RemoveAll(p)
}

func (l *LocalStore) Close() error { return nil }
