// Package validation checks tool requests and cleans upstream series
// before they reach the analytics.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/yourorg/vault-risk-engine/internal/model"
	"github.com/yourorg/vault-risk-engine/internal/types"
)

// ErrInvalidRequest marks malformed tool input
var ErrInvalidRequest = errors.New("invalid request")

// Batch size limits
const (
	MinBatchSize = 2
	MaxBatchSize = 10
)

// Response formats
const (
	FormatSummary  = "summary"
	FormatDetailed = "detailed"
)

// Target is one vault to analyse
type Target struct {
	Address string
	ChainID types.ChainID
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// Address checks a hex address and returns it lowercased
func Address(address string) (string, error) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return "", invalid("malformed address %q", address)
	}
	return strings.ToLower(common.HexToAddress(address).Hex()), nil
}

// Chain checks that a chain id is supported
func Chain(id types.ChainID) error {
	if !id.Valid() {
		return invalid("unsupported chain id %d", int(id))
	}
	return nil
}

// Format normalizes a response format, defaulting to detailed
func Format(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatDetailed:
		return FormatDetailed, nil
	case FormatSummary:
		return FormatSummary, nil
	default:
		return "", invalid("unknown response format %q", format)
	}
}

// Strategy checks a portfolio strategy name
func Strategy(s string) (model.Strategy, error) {
	strategy := model.Strategy(strings.ToLower(strings.TrimSpace(s)))
	if strategy == "" {
		return model.StrategyEqualWeight, nil
	}
	if !strategy.Valid() {
		return "", invalid("unknown strategy %q", s)
	}
	return strategy, nil
}

// BatchTargets pairs every address with its chain. Either chainID applies
// to all addresses, or chainIDs gives one chain per address.
func BatchTargets(addresses []string, chainID types.ChainID, chainIDs []types.ChainID) ([]Target, error) {
	if n := len(addresses); n < MinBatchSize || n > MaxBatchSize {
		return nil, invalid("batch must contain %d to %d addresses, got %d", MinBatchSize, MaxBatchSize, n)
	}
	if len(chainIDs) > 0 && len(chainIDs) != len(addresses) {
		return nil, invalid("got %d chain ids for %d addresses", len(chainIDs), len(addresses))
	}
	if len(chainIDs) == 0 {
		if err := Chain(chainID); err != nil {
			return nil, err
		}
	}

	targets := make([]Target, len(addresses))
	seen := make(map[Target]struct{}, len(addresses))
	for i, raw := range addresses {
		addr, err := Address(raw)
		if err != nil {
			return nil, err
		}
		chain := chainID
		if len(chainIDs) > 0 {
			chain = chainIDs[i]
			if err := Chain(chain); err != nil {
				return nil, err
			}
		}

		t := Target{Address: addr, ChainID: chain}
		if _, dup := seen[t]; dup {
			return nil, invalid("duplicate address %s on chain %d", addr, int(chain))
		}
		seen[t] = struct{}{}
		targets[i] = t
	}
	return targets, nil
}

// PortfolioAddresses validates portfolio holdings and returns their
// lowercased addresses
func PortfolioAddresses(addresses []string, values []float64) ([]string, error) {
	if len(addresses) == 0 {
		return nil, invalid("portfolio has no vaults")
	}
	if len(values) != len(addresses) {
		return nil, invalid("got %d values for %d vaults", len(values), len(addresses))
	}

	out := make([]string, len(addresses))
	seen := make(map[string]struct{}, len(addresses))
	for i, raw := range addresses {
		addr, err := Address(raw)
		if err != nil {
			return nil, err
		}
		if values[i] < 0 {
			return nil, invalid("negative value for %s", addr)
		}
		if _, dup := seen[addr]; dup {
			return nil, invalid("duplicate vault %s", addr)
		}
		seen[addr] = struct{}{}
		out[i] = addr
	}
	return out, nil
}
