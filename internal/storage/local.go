package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore serves media from a directory exposed under baseURL.
type LocalStore struct {
	basePath string
	baseURL  string
}

// NewLocalStore creates a local media store
func NewLocalStore(basePath, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalStore{
		basePath: basePath,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}, nil
}

func (s *LocalStore) ResolveURL(ctx context.Context, ref string) (string, error) {
	if isAbsolute(ref) {
		return ref, nil
	}
	key := objectKey(ref, "")
	if key == "" {
		return "", errors.New("empty media reference")
	}
	return fmt.Sprintf("%s/%s", s.baseURL, key), nil
}

func (s *LocalStore) DeleteMedia(ctx context.Context, ref string) error {
	key := objectKey(ref, s.baseURL)
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(key))

	rel, err := filepath.Rel(s.basePath, fullPath)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("media reference %q escapes storage directory", ref)
	}

	if err := os.Remove(fullPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
