package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

var (
	// ErrInvalidAddress is returned when an address is not a base58 public key.
	ErrInvalidAddress = errors.New("invalid solana address")

	// ErrUnsupportedToken is returned for a token outside SOL/USDC/USDT.
	ErrUnsupportedToken = errors.New("unsupported token")

	// ErrInvalidRange is returned when minBuy > maxBuy or a bound is negative.
	ErrInvalidRange = errors.New("invalid min/max range")
)

// Token is the asset a wallet is configured to alert on.
type Token string

const (
	TokenSOL          Token = "SOL"
	TokenUSDC         Token = "USDC"
	TokenUSDT         Token = "USDT"
	TokenNotSupported Token = "NOT_SUPPORTED"
)

// ParseToken parses a user supplied token symbol (case-insensitive).
func ParseToken(s string) (Token, error) {
	switch t := Token(strings.ToUpper(strings.TrimSpace(s))); t {
	case TokenSOL, TokenUSDC, TokenUSDT:
		return t, nil
	default:
		return TokenNotSupported, fmt.Errorf("%w: %q", ErrUnsupportedToken, s)
	}
}

// Supported reports whether alerts can be emitted for t.
func (t Token) Supported() bool {
	return t == TokenSOL || t == TokenUSDC || t == TokenUSDT
}

// Wallet represents a monitored wallet address. The JSON layout is the
// persisted format of the wallet file.
type Wallet struct {
	ID      string  `json:"id"`
	Label   string  `json:"label"`
	Address string  `json:"address"`
	MinBuy  float64 `json:"minBuy"`
	MaxBuy  float64 `json:"maxBuy"`
	Token   Token   `json:"token"`
	Active  bool    `json:"active"`
}

// ValidateAddress checks that s decodes to a 32 byte ed25519 public key.
func ValidateAddress(s string) error {
	raw, err := base58.Decode(strings.TrimSpace(s))
	if err != nil || len(raw) != 32 {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return nil
}

// ValidateRange checks the inclusive min/max thresholds.
func ValidateRange(minBuy, maxBuy float64) error {
	if minBuy < 0 || maxBuy < 0 {
		return fmt.Errorf("%w: bounds must not be negative", ErrInvalidRange)
	}
	if minBuy > maxBuy {
		return fmt.Errorf("%w: min %v > max %v", ErrInvalidRange, minBuy, maxBuy)
	}
	return nil
}

// Validate checks every user editable field.
func (w Wallet) Validate() error {
	if strings.TrimSpace(w.ID) == "" {
		return errors.New("wallet id is empty")
	}
	if err := ValidateAddress(w.Address); err != nil {
		return err
	}
	if !w.Token.Supported() {
		return fmt.Errorf("%w: %q", ErrUnsupportedToken, w.Token)
	}
	return ValidateRange(w.MinBuy, w.MaxBuy)
}
