package filter

import (
	"sync"

	"github.com/vietddude/dexwatch/internal/core/domain"
)

// SymbolResolver maps a token mint to the symbol wallets are configured with.
type SymbolResolver interface {
	Resolve(mint string) domain.Token
}

// MintResolver is a SymbolResolver backed by an in-memory map.
type MintResolver struct {
	mints map[string]domain.Token
	mu    sync.RWMutex
}

// NewMintResolver creates a resolver seeded with domain.MintToToken plus extra.
func NewMintResolver(extra map[string]domain.Token) *MintResolver {
	r := &MintResolver{mints: make(map[string]domain.Token, len(domain.MintToToken)+len(extra))}
	for mint, token := range domain.MintToToken {
		r.mints[mint] = token
	}
	for mint, token := range extra {
		r.mints[mint] = token
	}
	return r
}

// Resolve returns the symbol for mint or TokenNotSupported.
func (r *MintResolver) Resolve(mint string) domain.Token {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if token, ok := r.mints[mint]; ok {
		return token
	}
	return domain.TokenNotSupported
}

// Add registers an additional mint.
func (r *MintResolver) Add(mint string, token domain.Token) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mints[mint] = token
}

// Size returns the number of known mints.
func (r *MintResolver) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.mints)
}
