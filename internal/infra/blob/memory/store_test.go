package memory

import (
	"context"
	"io"
	"strings"
	"testing"

	"aquacore/internal/infra/blob/core"
)

func TestRoundTripAndOverwrite(t *testing.T) {
	s := New()
	ctx := context.Background()

	if s.Driver() != core.DriverMemory {
		t.Fatalf("driver = %q", s.Driver())
	}
	_, err := s.Put(ctx, "k", strings.NewReader("v1"), core.PutOptions{ContentType: "text/plain"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	info, err := s.Put(ctx, "k", strings.NewReader("v2"), core.PutOptions{})
	if err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, rc, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "v2" || got.ETag != info.ETag {
		t.Fatalf("body = %q info = %+v", body, got)
	}
}

func TestDeleteAndList(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, _ = s.Put(ctx, "a/1", strings.NewReader("x"), core.PutOptions{})
	_, _ = s.Put(ctx, "b/2", strings.NewReader("y"), core.PutOptions{})

	infos, _ := s.List(ctx, "a/")
	if len(infos) != 1 || infos[0].Key != "a/1" {
		t.Fatalf("infos = %+v", infos)
	}
	existed, err := s.Delete(ctx, "a/1")
	if err != nil || !existed {
		t.Fatalf("delete = %v, %v", existed, err)
	}
	if _, err := s.Head(ctx, "a/1"); err != core.ErrNotFound {
		t.Fatalf("head err = %v", err)
	}
	existed, _ = s.Delete(ctx, "a/1")
	if existed {
		t.Fatalf("second delete reported existence")
	}
}
