package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vietddude/dexwatch/internal/core/domain"
	"github.com/vietddude/dexwatch/internal/infra/rpc/provider"
	"github.com/vietddude/dexwatch/internal/infra/rpc/routing"
)

// Client is a Solana JSON-RPC client over one or more providers. Providers
// are tried in order.
type Client struct {
	providers []provider.RPCProvider
	retry     routing.RetryConfig
}

func NewClient(retry routing.RetryConfig, providers ...provider.RPCProvider) *Client {
	return &Client{providers: providers, retry: retry}
}

// EpochInfo is the result of getEpochInfo.
type EpochInfo struct {
	Epoch        uint64 `json:"epoch"`
	SlotIndex    uint64 `json:"slotIndex"`
	SlotsInEpoch uint64 `json:"slotsInEpoch"`
	AbsoluteSlot uint64 `json:"absoluteSlot"`
	BlockHeight  uint64 `json:"blockHeight"`
}

type uiTokenAmount struct {
	Amount         string   `json:"amount"`
	Decimals       int      `json:"decimals"`
	UIAmount       *float64 `json:"uiAmount"`
	UIAmountString string   `json:"uiAmountString"`
}

type rawTokenBalance struct {
	AccountIndex  int           `json:"accountIndex"`
	Mint          string        `json:"mint"`
	Owner         string        `json:"owner"`
	UITokenAmount uiTokenAmount `json:"uiTokenAmount"`
}

type rawTransaction struct {
	Slot      uint64 `json:"slot"`
	BlockTime *int64 `json:"blockTime"`
	Meta      *struct {
		Err               any               `json:"err"`
		Fee               uint64            `json:"fee"`
		PreBalances       []uint64          `json:"preBalances"`
		PostBalances      []uint64          `json:"postBalances"`
		PreTokenBalances  []rawTokenBalance `json:"preTokenBalances"`
		PostTokenBalances []rawTokenBalance `json:"postTokenBalances"`
	} `json:"meta"`
	Transaction struct {
		Signatures []string `json:"signatures"`
		Message    struct {
			AccountKeys []string `json:"accountKeys"`
		} `json:"message"`
	} `json:"transaction"`
}

// GetTransaction fetches a confirmed transaction. A null result means the
// transaction is not confirmed yet and yields nil, nil.
func (c *Client) GetTransaction(ctx context.Context, signature string) (*domain.ConfirmedTransaction, error) {
	params := []any{signature, map[string]any{
		"encoding":                       "json",
		"commitment":                     domain.CommitmentConfirmed,
		"maxSupportedTransactionVersion": 0,
	}}
	raw, err := routing.CallWithFailover(ctx, c.providers, "getTransaction", params, c.retry)
	if err != nil {
		return nil, fmt.Errorf("getTransaction failed: %w", err)
	}
	if isNull(raw) {
		return nil, nil
	}

	var tx rawTransaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return nil, fmt.Errorf("failed to decode transaction %s: %w", signature, err)
	}
	return parseTransaction(signature, &tx)
}

// GetEpochInfo returns the current epoch and the round-trip latency.
func (c *Client) GetEpochInfo(ctx context.Context) (*EpochInfo, time.Duration, error) {
	start := time.Now()
	raw, err := routing.CallWithFailover(ctx, c.providers, "getEpochInfo", []any{
		map[string]any{"commitment": domain.CommitmentConfirmed},
	}, c.retry)
	latency := time.Since(start)
	if err != nil {
		return nil, latency, fmt.Errorf("getEpochInfo failed: %w", err)
	}

	var info EpochInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, latency, fmt.Errorf("failed to decode epoch info: %w", err)
	}
	return &info, latency, nil
}

// Providers returns the configured providers.
func (c *Client) Providers() []provider.RPCProvider {
	return c.providers
}

// Close closes every provider.
func (c *Client) Close() error {
	for _, p := range c.providers {
		p.Close()
	}
	return nil
}

func parseTransaction(signature string, raw *rawTransaction) (*domain.ConfirmedTransaction, error) {
	if raw.Meta == nil {
		return nil, fmt.Errorf("transaction %s has no meta", signature)
	}
	tx := &domain.ConfirmedTransaction{
		Signature:    signature,
		Slot:         raw.Slot,
		AccountKeys:  raw.Transaction.Message.AccountKeys,
		Fee:          raw.Meta.Fee,
		PreBalances:  raw.Meta.PreBalances,
		PostBalances: raw.Meta.PostBalances,
		Err:          raw.Meta.Err,
	}
	if raw.BlockTime != nil {
		tx.BlockTime = *raw.BlockTime
	}

	var err error
	if tx.PreTokenBalances, err = parseTokenBalances(raw.Meta.PreTokenBalances); err != nil {
		return nil, err
	}
	if tx.PostTokenBalances, err = parseTokenBalances(raw.Meta.PostTokenBalances); err != nil {
		return nil, err
	}
	return tx, nil
}

func parseTokenBalances(raw []rawTokenBalance) ([]domain.TokenBalance, error) {
	out := make([]domain.TokenBalance, 0, len(raw))
	for _, b := range raw {
		amount, err := uiAmount(b.UITokenAmount)
		if err != nil {
			return nil, fmt.Errorf("failed to parse token amount for account %d: %w", b.AccountIndex, err)
		}
		out = append(out, domain.TokenBalance{
			AccountIndex: b.AccountIndex,
			Mint:         b.Mint,
			Owner:        b.Owner,
			UIAmount:     amount,
			Decimals:     b.UITokenAmount.Decimals,
		})
	}
	return out, nil
}

// uiAmount prefers the exact raw amount, then uiAmountString, then the
// lossy uiAmount float.
func uiAmount(a uiTokenAmount) (decimal.Decimal, error) {
	if a.Amount != "" {
		raw, err := decimal.NewFromString(a.Amount)
		if err != nil {
			return decimal.Zero, err
		}
		return raw.Shift(-int32(a.Decimals)), nil
	}
	if a.UIAmountString != "" {
		return decimal.NewFromString(a.UIAmountString)
	}
	if a.UIAmount != nil {
		return decimal.NewFromFloat(*a.UIAmount), nil
	}
	return decimal.Zero, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
