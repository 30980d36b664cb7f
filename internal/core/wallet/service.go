// Package wallet implements the command-level wallet operations: every edit
// is persisted first and then reflected in the live subscriptions.
package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/vietddude/dexwatch/internal/core/domain"
	"github.com/vietddude/dexwatch/internal/infra/storage"
)

// Monitor is the subscription lifecycle the service drives.
type Monitor interface {
	Start(ctx context.Context, wallet domain.Wallet, chatID int64) error
	Stop(ctx context.Context, wallet domain.Wallet, chatID int64) bool
	Remove(ctx context.Context, walletID string) bool
	RestartIfActive(ctx context.Context, wallet domain.Wallet, chatID int64) (bool, error)
	StopAll(ctx context.Context) int
	IsActive(walletID string) bool
}

// CacheCleaner drops cached per-wallet state.
type CacheCleaner interface {
	DeleteWalletCache(ctx context.Context, walletID string) error
}

// Service implements wallet commands.
type Service struct {
	repo    storage.WalletRepository
	monitor Monitor
	cache   CacheCleaner
	logger  *slog.Logger
	paused  atomic.Bool
}

// NewService creates a Service. cache may be nil.
func NewService(repo storage.WalletRepository, monitor Monitor, cache CacheCleaner) *Service {
	return &Service{
		repo:    repo,
		monitor: monitor,
		cache:   cache,
		logger:  slog.Default().With("component", "wallets"),
	}
}

// Add registers a new active SOL wallet and starts watching it.
func (s *Service) Add(ctx context.Context, chatID int64, address, label string, minBuy, maxBuy float64) (domain.Wallet, error) {
	w := domain.Wallet{
		ID:      uuid.NewString(),
		Label:   strings.TrimSpace(label),
		Address: strings.TrimSpace(address),
		MinBuy:  minBuy,
		MaxBuy:  maxBuy,
		Token:   domain.TokenSOL,
		Active:  true,
	}
	if err := w.Validate(); err != nil {
		return domain.Wallet{}, err
	}
	if err := s.repo.Add(ctx, w); err != nil {
		return domain.Wallet{}, fmt.Errorf("failed to save wallet: %w", err)
	}
	if err := s.monitor.Start(ctx, w, chatID); err != nil {
		return w, fmt.Errorf("failed to start monitoring: %w", err)
	}
	s.logger.Info("Wallet added", "wallet", w.Label, "address", w.Address)
	return w, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Wallet, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]domain.Wallet, error) {
	return s.repo.List(ctx)
}

// IsLive reports whether the wallet currently has a subscription.
func (s *Service) IsLive(id string) bool {
	return s.monitor.IsActive(id)
}

func (s *Service) Rename(ctx context.Context, chatID int64, id, label string) (domain.Wallet, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return domain.Wallet{}, errors.New("label must not be empty")
	}
	return s.update(ctx, chatID, id, func(w *domain.Wallet) { w.Label = label })
}

func (s *Service) SetMin(ctx context.Context, chatID int64, id string, minBuy float64) (domain.Wallet, error) {
	return s.update(ctx, chatID, id, func(w *domain.Wallet) { w.MinBuy = minBuy })
}

func (s *Service) SetMax(ctx context.Context, chatID int64, id string, maxBuy float64) (domain.Wallet, error) {
	return s.update(ctx, chatID, id, func(w *domain.Wallet) { w.MaxBuy = maxBuy })
}

func (s *Service) SetToken(ctx context.Context, chatID int64, id string, token domain.Token) (domain.Wallet, error) {
	if !token.Supported() {
		return domain.Wallet{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedToken, token)
	}
	return s.update(ctx, chatID, id, func(w *domain.Wallet) { w.Token = token })
}

// Toggle flips the wallet's active flag and starts or stops its subscription.
func (s *Service) Toggle(ctx context.Context, chatID int64, id string) (domain.Wallet, error) {
	w, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Wallet{}, err
	}
	w.Active = !w.Active
	if err := s.repo.Update(ctx, w); err != nil {
		return domain.Wallet{}, fmt.Errorf("failed to save wallet: %w", err)
	}

	if !w.Active {
		s.monitor.Stop(ctx, w, chatID)
		return w, nil
	}
	if err := s.monitor.Start(ctx, w, chatID); err != nil {
		return w, fmt.Errorf("failed to start monitoring: %w", err)
	}
	return w, nil
}

// Delete removes the wallet from storage, closes its subscription and drops
// its cached state.
func (s *Service) Delete(ctx context.Context, id string) (domain.Wallet, error) {
	w, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Wallet{}, err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return domain.Wallet{}, fmt.Errorf("failed to delete wallet: %w", err)
	}
	s.monitor.Remove(ctx, id)

	if s.cache != nil {
		if err := s.cache.DeleteWalletCache(ctx, id); err != nil {
			s.logger.Warn("Failed to clear wallet cache", "wallet", w.Label, "error", err)
		}
	}
	s.logger.Info("Wallet deleted", "wallet", w.Label)
	return w, nil
}

// Import replaces the stored wallets and restarts monitoring for the active
// ones. Wallets without an id get a fresh one.
func (s *Service) Import(ctx context.Context, chatID int64, wallets []domain.Wallet) (int, error) {
	seen := make(map[string]struct{}, len(wallets))
	for i := range wallets {
		w := &wallets[i]
		if w.ID == "" {
			w.ID = uuid.NewString()
		}
		if w.Token == "" {
			w.Token = domain.TokenSOL
		}
		if err := w.Validate(); err != nil {
			return 0, fmt.Errorf("wallet %d (%s): %w", i+1, w.Label, err)
		}
		if _, dup := seen[w.ID]; dup {
			return 0, fmt.Errorf("wallet %d (%s): %w", i+1, w.Label, storage.ErrWalletExists)
		}
		seen[w.ID] = struct{}{}
	}

	s.monitor.StopAll(ctx)
	if err := s.repo.Save(ctx, wallets); err != nil {
		return 0, fmt.Errorf("failed to save wallets: %w", err)
	}
	return s.Restore(ctx, chatID)
}

// Restore starts every active wallet that is not live yet and resumes
// monitoring after Pause.
func (s *Service) Restore(ctx context.Context, chatID int64) (int, error) {
	s.paused.Store(false)

	wallets, err := s.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list wallets: %w", err)
	}

	started := 0
	var errs []error
	for _, w := range wallets {
		if !w.Active || s.monitor.IsActive(w.ID) {
			continue
		}
		if err := s.monitor.Start(ctx, w, chatID); err != nil {
			errs = append(errs, err)
			continue
		}
		started++
	}
	return started, errors.Join(errs...)
}

// Pause stops every subscription without touching the persisted flags, so
// Restore brings the same wallets back.
func (s *Service) Pause(ctx context.Context) int {
	s.paused.Store(true)
	return s.monitor.StopAll(ctx)
}

// Paused reports whether monitoring was paused.
func (s *Service) Paused() bool {
	return s.paused.Load()
}

// Export returns the stored wallets in the persisted JSON layout.
func (s *Service) Export(ctx context.Context) ([]byte, error) {
	wallets, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}
	return json.MarshalIndent(wallets, "", "  ")
}

// ParseWallets decodes a wallet list in the persisted JSON layout.
func ParseWallets(data []byte) ([]domain.Wallet, error) {
	var wallets []domain.Wallet
	if err := json.Unmarshal(data, &wallets); err != nil {
		return nil, fmt.Errorf("failed to parse wallets: %w", err)
	}
	return wallets, nil
}

func (s *Service) update(ctx context.Context, chatID int64, id string, mutate func(*domain.Wallet)) (domain.Wallet, error) {
	w, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Wallet{}, err
	}
	mutate(&w)
	if err := domain.ValidateRange(w.MinBuy, w.MaxBuy); err != nil {
		return domain.Wallet{}, err
	}
	if err := s.repo.Update(ctx, w); err != nil {
		return domain.Wallet{}, fmt.Errorf("failed to save wallet: %w", err)
	}
	if _, err := s.monitor.RestartIfActive(ctx, w, chatID); err != nil {
		return w, fmt.Errorf("failed to restart monitoring: %w", err)
	}
	return w, nil
}
