// Package analysis gathers vault data from the upstream source, runs the
// risk scorer over it and coordinates batch analyses.
package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/yourorg/vault-risk-engine/internal/metrics"
	"github.com/yourorg/vault-risk-engine/internal/model"
	"github.com/yourorg/vault-risk-engine/internal/risk"
	"github.com/yourorg/vault-risk-engine/internal/types"
	"github.com/yourorg/vault-risk-engine/internal/validation"
)

// TopFactorCount is how many top factors accompany every analysis
const TopFactorCount = 3

// DataSource is the upstream collaborator. Vault returns nil without an
// error when the address does not resolve on the chain.
type DataSource interface {
	CompositionSource
	Vault(ctx context.Context, chain types.ChainID, address string) (*model.Vault, error)
	ChainVaults(ctx context.Context, chain types.ChainID) ([]model.Vault, error)
	CuratorVaults(ctx context.Context, curatorID string) ([]model.Vault, error)
	PriceHistory(ctx context.Context, chain types.ChainID, address string) ([]model.PricePoint, error)
	BatchVaults(ctx context.Context, chain types.ChainID, addresses []string) (targets, all []model.Vault, err error)
}

// Orchestrator produces the risk analysis of a single vault
type Orchestrator struct {
	ds      DataSource
	now     func() time.Time
	metrics *metrics.Metrics
}

// NewOrchestrator creates an orchestrator reading from ds
func NewOrchestrator(ds DataSource, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{ds: ds, now: time.Now, metrics: m}
}

// WithClock sets the clock vault ages are measured against
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// Analyze scores the vault at address on chain. It returns nil, nil when
// the vault does not exist. Any failing primary fetch fails the analysis;
// composition failures only degrade it.
func (o *Orchestrator) Analyze(ctx context.Context, chain types.ChainID, address string, includeComparative bool) (*model.RiskAnalysis, error) {
	log := logrus.WithFields(logrus.Fields{
		"chain_id": int(chain),
		"address":  address,
	})

	vault, err := o.ds.Vault(ctx, chain, address)
	if err != nil {
		return nil, fmt.Errorf("fetch vault: %w", err)
	}
	if vault == nil {
		log.Debug("Vault not found")
		return nil, nil
	}
	if vault.ChainID == 0 {
		vault.ChainID = chain
	}

	var (
		chainVaults   []model.Vault
		curatorVaults []model.Vault
		history       []model.PricePoint
		composition   model.Optional[model.Composition]
	)

	// siblings are not cancelled when one fails; every fetch runs to completion
	var g errgroup.Group
	g.Go(func() error {
		vs, err := o.ds.ChainVaults(ctx, chain)
		if err != nil {
			return fmt.Errorf("fetch chain vaults: %w", err)
		}
		chainVaults = vs
		return nil
	})
	if curatorID, ok := vault.CuratorID(); ok {
		g.Go(func() error {
			vs, err := o.ds.CuratorVaults(ctx, curatorID)
			if err != nil {
				return fmt.Errorf("fetch curator vaults: %w", err)
			}
			curatorVaults = vs
			return nil
		})
	}
	g.Go(func() error {
		ph, err := o.ds.PriceHistory(ctx, chain, vault.Address)
		if err != nil {
			return fmt.Errorf("fetch price history: %w", err)
		}
		history = ph
		return nil
	})
	g.Go(func() error {
		composition = resolveComposition(ctx, o.ds, o.metrics, chain, *vault)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := range chainVaults {
		if chainVaults[i].ChainID == 0 {
			chainVaults[i].ChainID = chain
		}
	}

	breakdown := risk.Score(buildInput(inputFacts{
		vault:         *vault,
		chainVaults:   chainVaults,
		curatorVaults: curatorVaults,
		prices:        validation.Prices(validation.FilterPriceHistory(history)),
		composition:   composition,
		now:           o.now(),
	}))
	o.metrics.RiskAnalysis(string(breakdown.RiskLevel))

	result := &model.RiskAnalysis{
		Address:    vault.Address,
		ChainID:    chain,
		Name:       vault.Name,
		RiskScore:  breakdown.OverallRisk,
		RiskLevel:  breakdown.RiskLevel,
		TopFactors: risk.TopFactors(breakdown.Factors, TopFactorCount),
		Breakdown:  &breakdown,
	}
	if comp, ok := composition.Get(); ok {
		result.Composition = &comp
	}
	if includeComparative {
		if peers := peerTVLs(*vault, chainVaults); len(peers) > 0 {
			ctxRisk := risk.CalculateComparativeContext(breakdown.OverallRisk, risk.PeerRisks(peers))
			result.Comparative = &ctxRisk
		}
	}

	log.WithFields(logrus.Fields{
		"overall_risk": breakdown.OverallRisk,
		"risk_level":   breakdown.RiskLevel,
		"data_quality": breakdown.DataQuality,
	}).Debug("Vault risk analysed")
	return result, nil
}
