// Package storage hosts uploaded artifact bytes on a remote media
// service and hands back stable URLs.
package storage

import "context"

// Asset describes a hosted artifact.
type Asset struct {
	URL      string `json:"url"`
	PublicID string `json:"public_id"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	Bytes    int64  `json:"bytes"`
}

// UploadOptions control where and how an artifact is stored.
type UploadOptions struct {
	Folder       string
	ResourceType string // "image" or "raw"
	Filename     string
}

// Uploader stores and removes binary artifacts.
type Uploader interface {
	Upload(ctx context.Context, data []byte, opts UploadOptions) (*Asset, error)
	Delete(ctx context.Context, publicID string) error
}
