// Package preview stores tank preview images in blob storage and keeps the
// tank document's previewUri pointing at the latest render.
package preview

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"aquacore/internal/infra/blob/core"
	"aquacore/pkg/domain"
)

// Manager writes preview images and records their location on the tank
// document. The previewUri merge is a partial write, so it never disturbs
// occupants or settings.
type Manager struct {
	blobs core.Store
	tanks domain.TankStore
}

// NewManager wires a preview manager over the given stores.
func NewManager(blobs core.Store, tanks domain.TankStore) *Manager {
	return &Manager{blobs: blobs, tanks: tanks}
}

// Key returns the blob key for a tank's preview.
func Key(key domain.SessionKey) string {
	return fmt.Sprintf("previews/%s/%s.png", key.UserID, key.TankID)
}

// Save uploads the rendered preview and merges its URL into the tank
// document, returning the URL.
func (m *Manager) Save(ctx context.Context, key domain.SessionKey, png []byte) (string, error) {
	if err := key.Validate(); err != nil {
		return "", err
	}
	blobKey := Key(key)
	if _, err := m.blobs.Put(ctx, blobKey, bytes.NewReader(png), core.PutOptions{ContentType: "image/png"}); err != nil {
		return "", fmt.Errorf("store preview: %w", err)
	}
	uri, err := m.blobs.PresignURL(ctx, blobKey, core.SignedURLOptions{})
	if err != nil {
		return "", fmt.Errorf("presign preview: %w", err)
	}
	if err := m.tanks.Write(ctx, key, domain.Document{"previewUri": uri}); err != nil {
		return "", fmt.Errorf("record preview uri: %w", err)
	}
	return uri, nil
}

// Load returns the stored preview bytes, or core.ErrNotFound when no
// preview has been rendered yet.
func (m *Manager) Load(ctx context.Context, key domain.SessionKey) ([]byte, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	_, rc, err := m.blobs.Get(ctx, Key(key))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}

// Delete removes the preview blob and clears nothing on the document; the
// stale previewUri is overwritten by the next Save.
func (m *Manager) Delete(ctx context.Context, key domain.SessionKey) error {
	if err := key.Validate(); err != nil {
		return err
	}
	_, err := m.blobs.Delete(ctx, Key(key))
	return err
}
