package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/dexwatch/internal/core/domain"
	"github.com/vietddude/dexwatch/internal/infra/storage"
)

// WalletStore is an in-memory storage.WalletRepository.
type WalletStore struct {
	wallets []domain.Wallet
	mu      sync.RWMutex
}

func NewWalletStore(initial ...domain.Wallet) *WalletStore {
	return &WalletStore{wallets: append([]domain.Wallet(nil), initial...)}
}

func (s *WalletStore) List(ctx context.Context) ([]domain.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Wallet{}, s.wallets...), nil
}

func (s *WalletStore) Get(ctx context.Context, id string) (domain.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := storage.FindWallet(s.wallets, id); i >= 0 {
		return s.wallets[i], nil
	}
	return domain.Wallet{}, fmt.Errorf("%w: %s", storage.ErrWalletNotFound, id)
}

func (s *WalletStore) Save(ctx context.Context, wallets []domain.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallets = append([]domain.Wallet(nil), wallets...)
	return nil
}

func (s *WalletStore) Add(ctx context.Context, wallet domain.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if storage.FindWallet(s.wallets, wallet.ID) >= 0 {
		return fmt.Errorf("%w: %s", storage.ErrWalletExists, wallet.ID)
	}
	s.wallets = append(s.wallets, wallet)
	return nil
}

func (s *WalletStore) Update(ctx context.Context, wallet domain.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := storage.FindWallet(s.wallets, wallet.ID)
	if i < 0 {
		return fmt.Errorf("%w: %s", storage.ErrWalletNotFound, wallet.ID)
	}
	s.wallets[i] = wallet
	return nil
}

func (s *WalletStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := storage.FindWallet(s.wallets, id)
	if i < 0 {
		return fmt.Errorf("%w: %s", storage.ErrWalletNotFound, id)
	}
	s.wallets = append(s.wallets[:i], s.wallets[i+1:]...)
	return nil
}

// AlertStore is an in-memory storage.AlertRepository.
type AlertStore struct {
	records []*storage.AlertRecord
	nextID  int64
	mu      sync.Mutex
}

func NewAlertStore() *AlertStore {
	return &AlertStore{}
}

func (s *AlertStore) Save(ctx context.Context, record *storage.AlertRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	rec := *record
	rec.ID = s.nextID
	s.records = append(s.records, &rec)
	return nil
}

func (s *AlertStore) Recent(ctx context.Context, chatID int64, limit int) ([]*storage.AlertRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*storage.AlertRecord
	for _, r := range s.records {
		if r.ChatID == chatID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *AlertStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.records[:0]
	var removed int64
	for _, r := range s.records {
		if r.DetectedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	s.records = kept
	return removed, nil
}
