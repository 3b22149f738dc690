// Package export writes and restores portable archives of a user's tanks:
// a zstd-compressed JSON document set suitable for backup or migration
// between storage backends.
package export

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"

	"aquacore/pkg/domain"
)

const archiveVersion = 1

// Archive is the decoded archive payload.
type Archive struct {
	Version    int                        `json:"version"`
	UserID     string                     `json:"userId"`
	ExportedAt time.Time                  `json:"exportedAt"`
	Tanks      map[string]domain.Document `json:"tanks"`
}

// Write exports every tank the user owns into w.
func Write(ctx context.Context, store domain.TankStore, userID string, w io.Writer) error {
	refs, err := store.List(ctx, userID)
	if err != nil {
		return fmt.Errorf("list tanks: %w", err)
	}
	arch := Archive{
		Version:    archiveVersion,
		UserID:     userID,
		ExportedAt: time.Now().UTC(),
		Tanks:      make(map[string]domain.Document, len(refs)),
	}
	for _, ref := range refs {
		doc, err := store.Read(ctx, domain.SessionKey{UserID: userID, TankID: ref.TankID})
		if err != nil {
			return fmt.Errorf("read tank %s: %w", ref.TankID, err)
		}
		if doc == nil {
			continue
		}
		arch.Tanks[ref.TankID] = doc
	}

	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(enc)
	if err := json.NewEncoder(bw).Encode(arch); err != nil {
		_ = enc.Close()
		return fmt.Errorf("encode archive: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

// Read decodes an archive from r.
func Read(r io.Reader) (Archive, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return Archive{}, err
	}
	defer dec.Close()

	var arch Archive
	if err := json.NewDecoder(bufio.NewReader(dec)).Decode(&arch); err != nil {
		return Archive{}, fmt.Errorf("decode archive: %w", err)
	}
	if arch.Version != archiveVersion {
		return Archive{}, fmt.Errorf("unsupported archive version %d", arch.Version)
	}
	return arch, nil
}

// Restore merges every archived tank into the store under userID, which may
// differ from the archive's original owner.
func Restore(ctx context.Context, store domain.TankStore, userID string, arch Archive) error {
	for tankID, doc := range arch.Tanks {
		key := domain.SessionKey{UserID: userID, TankID: tankID}
		if err := store.Write(ctx, key, doc); err != nil {
			return fmt.Errorf("restore tank %s: %w", tankID, err)
		}
	}
	return nil
}
