package storage

import (
	"context"
	"strings"
)

// MediaStore turns stored media references into fetchable URLs and removes
// media that is no longer needed.
type MediaStore interface {
	// ResolveURL returns a URL the client can fetch ref from.
	ResolveURL(ctx context.Context, ref string) (string, error)
	// DeleteMedia removes the object behind ref. Missing objects are not an error.
	DeleteMedia(ctx context.Context, ref string) error
}

// isAbsolute reports whether ref is already a full URL.
func isAbsolute(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// objectKey strips a leading slash and any base URL prefix from ref.
func objectKey(ref, base string) string {
	if base != "" {
		ref = strings.TrimPrefix(ref, strings.TrimRight(base, "/"))
	}
	return strings.TrimLeft(ref, "/")
}
