// Package blobstore stores image bytes by filename under a dedicated "ImageData"
// namespace. Filenames are opaque handles owned by whoever holds them; a store never
// tracks which entry references a blob.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// DirName is the subdirectory (filesystem) or key prefix (S3) holding all blobs.
const DirName = "ImageData"

var (
	// ErrNotFound is returned by Read when no blob exists under the name. Callers treat
	// it as "no image", a dangling handle is not a failure.
	ErrNotFound = errors.New("blob not found")
	// ErrInvalidFilename is returned for names that could escape the blob namespace.
	ErrInvalidFilename = errors.New("invalid blob filename")
)

// BlobStore is implemented by FilesystemStore and S3Store.
type BlobStore interface {
	Write(ctx context.Context, name string, data []byte) error
	Read(ctx context.Context, name string) ([]byte, error)
	// Delete removes a blob; removing an absent blob is not an error.
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]string, error)
	// Clear removes every blob in the namespace.
	Clear(ctx context.Context) error
}

// ValidateFilename rejects empty names, path separators, dot-files and traversal.
func ValidateFilename(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidFilename, name)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("%w: %q is a hidden name", ErrInvalidFilename, name)
	}
	return nil
}
