package jsonfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/vietddude/dexwatch/internal/core/domain"
	"github.com/vietddude/dexwatch/internal/infra/storage"
)

func testWallet(id string) domain.Wallet {
	return domain.Wallet{ID: id, Label: "label-" + id, Address: "addr", MinBuy: 0.5, MaxBuy: 2, Token: domain.TokenSOL, Active: true}
}

func openStore(t *testing.T, dir string) *Store {
	t.Helper()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_InitCreatesFiles(t *testing.T) {
	dir := t.TempDir()
	s := openStore(t, dir)

	for _, name := range []string{WalletFile, BackupFile} {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
		if string(raw) != "[]" {
			t.Errorf("%s = %q, want []", name, raw)
		}
	}
	list, err := s.List(context.Background())
	if err != nil || len(list) != 0 {
		t.Errorf("List() = %v, %v", list, err)
	}
}

func TestStore_CRUD(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := openStore(t, dir)

	if err := s.Add(ctx, testWallet("a")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := s.Add(ctx, testWallet("b")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := s.Add(ctx, testWallet("a")); !errors.Is(err, storage.ErrWalletExists) {
		t.Errorf("expected ErrWalletExists, got %v", err)
	}

	updated := testWallet("a")
	updated.Label = "renamed"
	if err := s.Update(ctx, updated); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if w, _ := s.Get(ctx, "a"); w.Label != "renamed" {
		t.Errorf("Get() label = %s", w.Label)
	}

	if err := s.Delete(ctx, "b"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(ctx, "b"); !errors.Is(err, storage.ErrWalletNotFound) {
		t.Errorf("expected ErrWalletNotFound, got %v", err)
	}

	// Backup mirrors the primary after each write.
	primary, _ := os.ReadFile(filepath.Join(dir, WalletFile))
	backup, _ := os.ReadFile(filepath.Join(dir, BackupFile))
	if string(primary) != string(backup) {
		t.Errorf("backup out of sync:\n%s\n%s", primary, backup)
	}
	if _, err := os.Stat(filepath.Join(dir, TempFile)); !os.IsNotExist(err) {
		t.Error("temp file must be renamed away")
	}
}

func TestStore_RestoresFromBackup(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := openStore(t, dir)
	s.Save(ctx, []domain.Wallet{testWallet("a"), testWallet("b")})
	s.Close()

	if err := os.WriteFile(filepath.Join(dir, WalletFile), []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}

	s2 := openStore(t, dir)
	list, _ := s2.List(ctx)
	if len(list) != 2 {
		t.Fatalf("expected 2 wallets restored from backup, got %d", len(list))
	}
}

func TestStore_BrokenFilesReadAsEmpty(t *testing.T) {
	dir := t.TempDir()
	s := openStore(t, dir)
	os.WriteFile(filepath.Join(dir, WalletFile), []byte("not json"), 0o644)

	list, err := s.List(context.Background())
	if err != nil || len(list) != 0 {
		t.Errorf("List() = %v, %v; want empty", list, err)
	}
}

func TestStore_ConcurrentAdds(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, t.TempDir())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := s.Add(ctx, testWallet(fmt.Sprintf("w%d", i))); err != nil {
				t.Errorf("Add failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	list, _ := s.List(ctx)
	if len(list) != 20 {
		t.Errorf("expected 20 wallets, got %d", len(list))
	}
}

func TestStore_WritesAfterClose(t *testing.T) {
	s := openStore(t, t.TempDir())
	s.Close()
	if err := s.Save(context.Background(), nil); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
