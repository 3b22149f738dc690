package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Document is the persisted shape of a tank: a plain nested map mirroring
// the document store layout. Write operations carry partial documents with
// merge semantics, so fields absent from a partial are left untouched.
type Document = map[string]any

// SessionKey identifies a tank document: documents are keyed per
// authenticated user and per tank.
type SessionKey struct {
	UserID string
	TankID string
}

// Validate reports the fail-fast unauthenticated condition. The engine is
// agnostic to identity and simply propagates this error without retry.
func (k SessionKey) Validate() error {
	if k.UserID == "" {
		return ErrUnauthenticated
	}
	if k.TankID == "" {
		return fmt.Errorf("tank id required")
	}
	return nil
}

// TankRef is a listing entry for a user's tanks.
type TankRef struct {
	TankID     string    `json:"tankId"`
	Name       string    `json:"name"`
	PreviewURI string    `json:"previewUri,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// TankStore is the document persistence collaborator. Implementations must
// provide merge semantics on Write: top-level fields not present in the
// partial document are left untouched server-side, fields that are present
// replace the stored value wholesale. Replacement is what lets a save-point
// carrying the full items map drop removed occupants. Multi-document
// transactions are never assumed.
type TankStore interface {
	// Create allocates a new tank document with default settings and
	// returns its id.
	Create(ctx context.Context, userID, name string) (string, error)
	// Read returns the current document, or nil when the tank does not exist.
	Read(ctx context.Context, key SessionKey) (Document, error)
	// Write merges partial into the stored document, creating it if absent.
	Write(ctx context.Context, key SessionKey, partial Document) error
	// Delete removes the document. Deleting a missing document is not an error.
	Delete(ctx context.Context, key SessionKey) error
	// List returns references to all tanks owned by the user.
	List(ctx context.Context, userID string) ([]TankRef, error)
	// Watch invokes fn with the full document after every committed write
	// until cancel is called or ctx is done. fn receives nil when the
	// document is deleted.
	Watch(ctx context.Context, key SessionKey, fn func(Document)) (cancel func(), err error)
}

// ErrUnauthenticated is the distinct fail-fast condition for persistence
// calls issued without an authenticated user.
var ErrUnauthenticated = errors.New("not signed in")

// ErrNotFound is returned when an operation targets a tank or occupant that
// does not exist.
type ErrNotFound struct {
	Kind string
	ID   string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}
