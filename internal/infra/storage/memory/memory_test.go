package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/dexwatch/internal/core/domain"
	"github.com/vietddude/dexwatch/internal/infra/storage"
)

func TestWalletStore(t *testing.T) {
	ctx := context.Background()
	s := NewWalletStore()

	if err := s.Add(ctx, domain.Wallet{ID: "a", Label: "first"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := s.Add(ctx, domain.Wallet{ID: "a"}); !errors.Is(err, storage.ErrWalletExists) {
		t.Errorf("expected ErrWalletExists, got %v", err)
	}
	if err := s.Update(ctx, domain.Wallet{ID: "a", Label: "renamed"}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	w, err := s.Get(ctx, "a")
	if err != nil || w.Label != "renamed" {
		t.Errorf("Get() = %+v, %v", w, err)
	}
	if _, err := s.Get(ctx, "missing"); !errors.Is(err, storage.ErrWalletNotFound) {
		t.Errorf("expected ErrWalletNotFound, got %v", err)
	}
	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := s.Delete(ctx, "a"); !errors.Is(err, storage.ErrWalletNotFound) {
		t.Errorf("expected ErrWalletNotFound on second delete, got %v", err)
	}
	list, _ := s.List(ctx)
	if len(list) != 0 {
		t.Errorf("expected empty list, got %d", len(list))
	}
}

func TestAlertStore_Recent(t *testing.T) {
	ctx := context.Background()
	s := NewAlertStore()
	for _, sig := range []string{"s1", "s2", "s3"} {
		s.Save(ctx, &storage.AlertRecord{ChatID: 1, Signature: sig})
	}
	s.Save(ctx, &storage.AlertRecord{ChatID: 2, Signature: "other"})

	got, err := s.Recent(ctx, 1, 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(got) != 2 || got[0].Signature != "s3" || got[1].Signature != "s2" {
		t.Errorf("unexpected records: %+v", got)
	}
}

func TestAlertStore_DeleteBefore(t *testing.T) {
	ctx := context.Background()
	s := NewAlertStore()
	now := time.Now()
	s.Save(ctx, &storage.AlertRecord{ChatID: 1, Signature: "old", DetectedAt: now.Add(-48 * time.Hour)})
	s.Save(ctx, &storage.AlertRecord{ChatID: 1, Signature: "new", DetectedAt: now})

	removed, err := s.DeleteBefore(ctx, now.Add(-24*time.Hour))
	if err != nil || removed != 1 {
		t.Fatalf("DeleteBefore() = %d, %v; want 1", removed, err)
	}
	got, _ := s.Recent(ctx, 1, 10)
	if len(got) != 1 || got[0].Signature != "new" {
		t.Errorf("unexpected records: %+v", got)
	}
}
