package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/yourorg/vault-risk-engine/internal/cache"
	"github.com/yourorg/vault-risk-engine/internal/model"
	"github.com/yourorg/vault-risk-engine/internal/portfolio"
	"github.com/yourorg/vault-risk-engine/internal/types"
	"github.com/yourorg/vault-risk-engine/internal/validation"
)

// ErrVaultNotFound is returned when a portfolio names an unknown vault
var ErrVaultNotFound = errors.New("vault not found")

// OptimizePortfolio computes target allocations for the holdings. The
// per-vault return estimates are what gets cached under the portfolio key;
// the allocation itself is recomputed from the request's values and
// threshold on every call.
func (s *Service) OptimizePortfolio(ctx context.Context, req PortfolioRequest) (model.PortfolioOptimization, error) {
	if err := validation.Chain(req.ChainID); err != nil {
		return model.PortfolioOptimization{}, err
	}
	strategy, err := validation.Strategy(req.Strategy)
	if err != nil {
		return model.PortfolioOptimization{}, err
	}
	threshold := s.opts.RebalanceThreshold
	if req.RebalanceThreshold != nil {
		threshold = *req.RebalanceThreshold
	}
	if threshold < 0 {
		return model.PortfolioOptimization{}, fmt.Errorf("%w: negative rebalance threshold", validation.ErrInvalidRequest)
	}

	raw := make([]string, len(req.Vaults))
	values := make([]float64, len(req.Vaults))
	for i, h := range req.Vaults {
		raw[i] = h.Address
		values[i] = h.ValueUSD
	}
	addresses, err := validation.PortfolioAddresses(raw, values)
	if err != nil {
		return model.PortfolioOptimization{}, err
	}

	key := cache.PortfolioKey(req.ChainID, addresses, string(strategy))
	profiles, err := cached(ctx, s, ToolOptimizePortfolio, key, s.opts.PortfolioTTL, cache.PortfolioTags, func(ctx context.Context) (map[string]VaultProfile, error) {
		return s.profiles(ctx, req.ChainID, addresses)
	})
	if err != nil {
		return model.PortfolioOptimization{}, err
	}

	vaults := make([]model.PortfolioVault, len(addresses))
	for i, addr := range addresses {
		p, ok := profiles[addr]
		if !ok || !p.Found {
			return model.PortfolioOptimization{}, fmt.Errorf("%w: %s on chain %d", ErrVaultNotFound, addr, int(req.ChainID))
		}
		vaults[i] = model.PortfolioVault{
			Address:         addr,
			Name:            p.Name,
			CurrentValueUSD: values[i],
			ExpectedReturn:  p.ExpectedReturn,
			Volatility:      p.Volatility,
		}
	}
	return portfolio.Optimize(vaults, strategy, threshold, s.opts.RiskFreeRate), nil
}

// profiles fetches every vault and its price history concurrently. Unknown
// vaults are recorded with Found false.
func (s *Service) profiles(ctx context.Context, chain types.ChainID, addresses []string) (map[string]VaultProfile, error) {
	out := make(map[string]VaultProfile, len(addresses))
	var mu sync.Mutex

	var g errgroup.Group
	for _, addr := range addresses {
		g.Go(func() error {
			p, err := s.profile(ctx, chain, addr)
			if err != nil {
				return err
			}
			mu.Lock()
			out[addr] = p
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) profile(ctx context.Context, chain types.ChainID, address string) (VaultProfile, error) {
	v, err := s.ds.Vault(ctx, chain, address)
	if err != nil {
		return VaultProfile{}, fmt.Errorf("fetch vault %s: %w", address, err)
	}
	if v == nil {
		return VaultProfile{Address: address}, nil
	}

	history, err := s.ds.PriceHistory(ctx, chain, address)
	if err != nil {
		return VaultProfile{}, fmt.Errorf("fetch price history %s: %w", address, err)
	}
	est := portfolio.EstimateReturnProfile(validation.FilterPriceHistory(history), v.State.YearlyAPR)

	return VaultProfile{
		Address:        strings.ToLower(v.Address),
		Name:           v.Name,
		Found:          true,
		ExpectedReturn: est.ExpectedReturn,
		Volatility:     est.Volatility,
		FromHistory:    est.FromHistory,
	}, nil
}
