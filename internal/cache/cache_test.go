package cache

import (
	"errors"
	"os"
	"testing"
	"time"

	"aquacore/pkg/domain"
)

func TestPutGetRoundTrip(t *testing.T) {
	c, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	key := domain.SessionKey{UserID: "u1", TankID: "t1"}
	entry := Entry{
		Snapshot: domain.TankSnapshot{
			SpeciesCount: 3, Env: domain.Saltwater, Temp: 25, Oxy: 70,
			AvgPhText: "7.20", Timestamp: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		},
		PreviewURI: "http://local.blob/previews/u1/t1.png",
	}
	if err := c.Put(key, entry); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := c.Get(key)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Snapshot != entry.Snapshot || got.PreviewURI != entry.PreviewURI {
		t.Fatalf("got = %+v, want %+v", got, entry)
	}
}

func TestGetMissingEntry(t *testing.T) {
	c, _ := New(t.TempDir())
	_, ok, err := c.Get(domain.SessionKey{UserID: "u1", TankID: "nope"})
	if err != nil || ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
}

func TestCorruptEntryTreatedAsAbsent(t *testing.T) {
	dir := t.TempDir()
	c, _ := New(dir)
	key := domain.SessionKey{UserID: "u1", TankID: "t1"}
	_ = c.Put(key, Entry{})
	if err := os.WriteFile(c.pathFor(key), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	_, ok, err := c.Get(key)
	if err != nil || ok {
		t.Fatalf("corrupt entry: ok=%v err=%v", ok, err)
	}
}

func TestDeleteIdempotent(t *testing.T) {
	c, _ := New(t.TempDir())
	key := domain.SessionKey{UserID: "u1", TankID: "t1"}
	_ = c.Put(key, Entry{})
	if err := c.Delete(key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := c.Delete(key); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestUnauthenticatedKey(t *testing.T) {
	c, _ := New(t.TempDir())
	if err := c.Put(domain.SessionKey{TankID: "t"}, Entry{}); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("err = %v", err)
	}
}
