// Package blob is the artifact store used to publish run outputs. Callers
// depend on Store; the drivers live under internal/infra/blob.
package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"genesim/internal/blob/core"
	"genesim/internal/infra/blob/fs"
	memorystore "genesim/internal/infra/blob/memory"
	infraS3 "genesim/internal/infra/blob/s3"
)

type (
	// Driver names a blob backend.
	Driver = core.Driver
	// PutOptions are optional object attributes.
	PutOptions = core.PutOptions
	// Object describes a stored artifact.
	Object = core.Object
	// Store is the write-once artifact store interface.
	Store = core.Store
	// Presigner issues download links.
	Presigner = core.Presigner
	// S3Config selects an S3 bucket.
	S3Config = infraS3.Config
)

// Drivers.
const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

// Errors.
var (
	ErrExists      = core.ErrExists
	ErrNotFound    = core.ErrNotFound
	ErrInvalidKey  = core.ErrInvalidKey
	ErrUnsupported = errors.New("blob: unsupported operation")
)

// Environment variables read by Open.
const (
	EnvDriver = "GENESIM_BLOB_DRIVER"
	EnvFSRoot = "GENESIM_BLOB_FS_ROOT"
)

// Open selects a Store from the environment:
//
//	GENESIM_BLOB_DRIVER: fs|s3|memory (default fs)
//	GENESIM_BLOB_FS_ROOT: root directory for fs (default ./genesim-artifacts)
//	GENESIM_BLOB_S3_*: bucket settings for s3
func Open(ctx context.Context) (Store, error) {
	driver := Driver(os.Getenv(EnvDriver))
	if driver == "" {
		driver = DriverFilesystem
	}
	return OpenDriver(ctx, driver, os.Getenv(EnvFSRoot))
}

// OpenDriver opens a named driver. root only applies to the filesystem.
func OpenDriver(ctx context.Context, driver Driver, root string) (Store, error) {
	switch driver {
	case DriverFilesystem:
		return NewFilesystem(root)
	case DriverS3:
		return infraS3.OpenFromEnv(ctx)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}

// NewFilesystem returns a store rooted at root.
func NewFilesystem(root string) (Store, error) { return fs.New(root) }

// NewMemory returns a process-local store.
func NewMemory() Store { return memorystore.New() }

// NewS3 returns a store for an S3 bucket.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) { return infraS3.New(ctx, cfg) }

// NewMockS3 returns an S3 store backed by an in-process fake bucket.
func NewMockS3(ctx context.Context) (Store, error) { return infraS3.NewMock(ctx) }

// PutBytes stores data under key.
func PutBytes(ctx context.Context, store Store, key string, data []byte, contentType string) (Object, error) {
	return store.Put(ctx, key, bytes.NewReader(data), PutOptions{ContentType: contentType})
}

// ReadAll returns the contents of key.
func ReadAll(ctx context.Context, store Store, key string) ([]byte, error) {
	_, rc, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

// Presign returns a download link for key when the driver supports it.
func Presign(ctx context.Context, store Store, key string, expiry time.Duration) (string, error) {
	p, ok := store.(Presigner)
	if !ok {
		return "", fmt.Errorf("%w: %s cannot presign", ErrUnsupported, store.Driver())
	}
	return p.PresignGet(ctx, key, expiry)
}
