// Package storage uploads unit images and verification documents to a blob
// store and returns the public URL of each object.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/college-housing/internal/config"
)

// Blob stores one object and returns its public URL.
type Blob interface {
	Upload(ctx context.Context, folder, name string, r io.Reader) (string, error)
}

// New builds the backend selected by cfg.Backend.
func New(ctx context.Context, cfg config.StorageConfig) (Blob, error) {
	switch cfg.Backend {
	case "cloudinary":
		return NewCloudinary(cfg)
	case "s3", "minio":
		return NewS3(ctx, cfg)
	}
	return nil, fmt.Errorf("storage: unknown backend %q", cfg.Backend)
}

// objectName derives a collision-free object name from an upload's file
// name, keeping the extension.
func objectName(name string) string {
	ext := strings.ToLower(path.Ext(name))
	base := strings.TrimSuffix(path.Base(name), path.Ext(name))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '-'
	}, base)
	if base == "" || base == "." || base == "-" {
		base = "file"
	}
	if len(base) > 40 {
		base = base[:40]
	}
	return base + "-" + uuid.NewString() + ext
}
