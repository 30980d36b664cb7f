// Package jsonfile stores wallets in a flat JSON file with a backup copy.
// Writes are atomic (temp file + rename) and serialized through a single
// writer goroutine.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/vietddude/dexwatch/internal/core/domain"
	"github.com/vietddude/dexwatch/internal/infra/storage"
)

const (
	WalletFile = "wallets.json"
	BackupFile = "wallets.backup.json"
	TempFile   = "wallets.tmp.json"
)

// ErrClosed is returned by writes after Close.
var ErrClosed = errors.New("wallet store closed")

type writeRequest struct {
	data   []byte
	count  int
	result chan error
}

// Store is a storage.WalletRepository backed by wallets.json.
type Store struct {
	primary string
	backup  string
	tmp     string
	logger  *slog.Logger

	// mu serializes read-modify-write cycles.
	mu sync.Mutex

	writes    chan writeRequest
	done      chan struct{}
	closeOnce sync.Once
	closed    chan struct{}
}

// Open prepares dir and restores wallets.json from the backup when the
// primary file is missing or unreadable.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	s := &Store{
		primary: filepath.Join(dir, WalletFile),
		backup:  filepath.Join(dir, BackupFile),
		tmp:     filepath.Join(dir, TempFile),
		logger:  slog.Default().With("component", "jsonfile"),
		writes:  make(chan writeRequest),
		done:    make(chan struct{}),
		closed:  make(chan struct{}),
	}
	if err := s.init(); err != nil {
		return nil, err
	}
	go s.writer()
	return s, nil
}

func (s *Store) init() error {
	wallets, err := readFile(s.primary)
	restored := false
	if err != nil {
		s.logger.Warn("Primary wallet file unreadable", "path", s.primary, "error", err)
	}
	if wallets == nil {
		if wallets, err = readFile(s.backup); err == nil && wallets != nil {
			s.logger.Warn("Restoring wallets from backup", "path", s.backup, "count", len(wallets))
			restored = true
		}
	}
	if wallets == nil {
		wallets = []domain.Wallet{}
	}

	data, err := encode(wallets)
	if err != nil {
		return err
	}
	if restored || !exists(s.primary) {
		if err := writeAtomic(s.primary, s.tmp, data); err != nil {
			return fmt.Errorf("failed to initialize %s: %w", s.primary, err)
		}
	}
	if !exists(s.backup) {
		if err := os.WriteFile(s.backup, data, 0o644); err != nil {
			s.logger.Error("Failed to initialize backup", "error", err)
		}
	}
	s.logger.Info("Wallet storage initialized", "count", len(wallets))
	return nil
}

// List returns the stored wallets; an unreadable file yields an empty list.
func (s *Store) List(ctx context.Context) ([]domain.Wallet, error) {
	wallets, err := readFile(s.primary)
	if err != nil {
		s.logger.Error("Failed to read wallets", "error", err)
	}
	if wallets == nil {
		return []domain.Wallet{}, nil
	}
	return wallets, nil
}

func (s *Store) Get(ctx context.Context, id string) (domain.Wallet, error) {
	wallets, _ := s.List(ctx)
	if i := storage.FindWallet(wallets, id); i >= 0 {
		return wallets[i], nil
	}
	return domain.Wallet{}, fmt.Errorf("%w: %s", storage.ErrWalletNotFound, id)
}

// Save replaces the stored list and waits until it is on disk.
func (s *Store) Save(ctx context.Context, wallets []domain.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enqueue(ctx, wallets)
}

func (s *Store) Add(ctx context.Context, wallet domain.Wallet) error {
	return s.modify(ctx, func(wallets []domain.Wallet) ([]domain.Wallet, error) {
		if storage.FindWallet(wallets, wallet.ID) >= 0 {
			return nil, fmt.Errorf("%w: %s", storage.ErrWalletExists, wallet.ID)
		}
		return append(wallets, wallet), nil
	})
}

func (s *Store) Update(ctx context.Context, wallet domain.Wallet) error {
	return s.modify(ctx, func(wallets []domain.Wallet) ([]domain.Wallet, error) {
		i := storage.FindWallet(wallets, wallet.ID)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", storage.ErrWalletNotFound, wallet.ID)
		}
		wallets[i] = wallet
		return wallets, nil
	})
}

func (s *Store) Delete(ctx context.Context, id string) error {
	return s.modify(ctx, func(wallets []domain.Wallet) ([]domain.Wallet, error) {
		i := storage.FindWallet(wallets, id)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", storage.ErrWalletNotFound, id)
		}
		return append(wallets[:i], wallets[i+1:]...), nil
	})
}

// Close stops the writer after pending writes complete.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		close(s.closed)
		close(s.writes)
		s.mu.Unlock()
		<-s.done
	})
	return nil
}

func (s *Store) modify(ctx context.Context, fn func([]domain.Wallet) ([]domain.Wallet, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wallets, _ := s.List(ctx)
	next, err := fn(wallets)
	if err != nil {
		return err
	}
	return s.enqueue(ctx, next)
}

// enqueue must be called with mu held.
func (s *Store) enqueue(ctx context.Context, wallets []domain.Wallet) error {
	select {
	case <-s.closed:
		return ErrClosed
	default:
	}
	if wallets == nil {
		wallets = []domain.Wallet{}
	}
	data, err := encode(wallets)
	if err != nil {
		return err
	}

	req := writeRequest{data: data, count: len(wallets), result: make(chan error, 1)}
	select {
	case s.writes <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-req.result
}

func (s *Store) writer() {
	defer close(s.done)
	for req := range s.writes {
		if err := writeAtomic(s.primary, s.tmp, req.data); err != nil {
			req.result <- fmt.Errorf("failed to save wallets: %w", err)
			continue
		}
		if err := os.WriteFile(s.backup, req.data, 0o644); err != nil {
			s.logger.Error("Failed to write backup wallet file", "error", err)
		}
		s.logger.Info("Saved wallets", "count", req.count)
		req.result <- nil
	}
}

func readFile(path string) ([]domain.Wallet, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(raw)) == "" {
		return nil, nil
	}
	var wallets []domain.Wallet
	if err := json.Unmarshal(raw, &wallets); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return wallets, nil
}

func writeAtomic(target, tmp string, data []byte) error {
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, target)
}

func encode(wallets []domain.Wallet) ([]byte, error) {
	data, err := json.MarshalIndent(wallets, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode wallets: %w", err)
	}
	return data, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
