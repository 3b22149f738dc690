package postgres

import (
	"context"
	"os"
	"testing"

	"aquacore/pkg/domain"
)

// Integration test; requires a reachable Postgres instance.
func TestStoreRoundTrip(t *testing.T) {
	dsn := os.Getenv("AQUACORE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("AQUACORE_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()

	s, err := NewStore(dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = s.Close() }()

	id, err := s.Create(ctx, "it-user", "Integration")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	key := domain.SessionKey{UserID: "it-user", TankID: id}
	defer func() { _ = s.Delete(ctx, key) }()

	if err := s.Write(ctx, key, domain.Document{"previewUri": "blob://p"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	reopened, err := NewStore(dsn)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	doc, err := reopened.Read(ctx, key)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if doc == nil || doc["previewUri"] != "blob://p" {
		t.Fatalf("doc = %v", doc)
	}
}
