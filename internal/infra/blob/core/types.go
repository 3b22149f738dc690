// Package core defines the blob storage abstraction used for tank preview
// images.
package core

import (
	"context"
	"errors"
	"io"
	"time"
)

// Driver identifies a concrete blob storage backend.
type Driver string

const (
	// DriverFilesystem stores blobs under a local directory (default, dev).
	DriverFilesystem Driver = "fs"
	// DriverS3 targets an S3 or MinIO compatible service.
	DriverS3 Driver = "s3"
	// DriverMemory keeps blobs in process memory (tests).
	DriverMemory Driver = "memory"
)

// PutOptions carries optional parameters for Put.
type PutOptions struct {
	ContentType string
}

// SignedURLOptions holds options for generating a pre-signed URL.
type SignedURLOptions struct {
	Method string        // GET only for now
	Expiry time.Duration // default 15m
}

// Info describes a stored blob.
type Info struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size_bytes"`
	ContentType  string    `json:"content_type,omitempty"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"last_modified"`
	URL          string    `json:"url,omitempty"`
}

// Store is a thin S3-like abstraction. Put is an upsert: previews are
// rewritten on every tank save, so an existing key is silently replaced.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	Head(ctx context.Context, key string) (Info, error)
	Delete(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]Info, error)
	PresignURL(ctx context.Context, key string, opts SignedURLOptions) (string, error)
	Driver() Driver
}

// ErrUnsupported is returned when an optional capability is not available.
var ErrUnsupported = errors.New("blob: unsupported operation")

// ErrNotFound is returned for missing keys.
var ErrNotFound = errors.New("blob: not found")
