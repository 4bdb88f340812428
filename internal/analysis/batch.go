package analysis

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/yourorg/vault-risk-engine/internal/aggregate"
	"github.com/yourorg/vault-risk-engine/internal/metrics"
	"github.com/yourorg/vault-risk-engine/internal/model"
	"github.com/yourorg/vault-risk-engine/internal/risk"
	"github.com/yourorg/vault-risk-engine/internal/types"
	"github.com/yourorg/vault-risk-engine/internal/validation"
)

// BatchCoordinator analyses several vaults at once, on one chain or many
type BatchCoordinator struct {
	ds      DataSource
	now     func() time.Time
	metrics *metrics.Metrics
}

// NewBatchCoordinator creates a coordinator reading from ds
func NewBatchCoordinator(ds DataSource, m *metrics.Metrics) *BatchCoordinator {
	return &BatchCoordinator{ds: ds, now: time.Now, metrics: m}
}

// WithClock sets the clock vault ages are measured against
func (b *BatchCoordinator) WithClock(now func() time.Time) *BatchCoordinator {
	b.now = now
	return b
}

type vaultKey struct {
	chain   types.ChainID
	address string
}

func keyOf(chain types.ChainID, address string) vaultKey {
	return vaultKey{chain: chain, address: strings.ToLower(address)}
}

// chainFetch is what one per-chain batch query returned
type chainFetch struct {
	targets []model.Vault
	all     []model.Vault
}

// Analyze scores every target. Targets sharing a chain are fetched with one
// query and chains are queried concurrently. Results follow the order of
// targets; addresses that do not resolve are listed in NotFound. A failing
// chain query fails the whole batch.
func (b *BatchCoordinator) Analyze(ctx context.Context, targets []validation.Target) (*model.BatchRiskAnalysisResult, error) {
	byChain, chains := groupByChain(targets)

	fetched := make([]chainFetch, len(chains))
	var g errgroup.Group
	for i, chain := range chains {
		g.Go(func() error {
			ts, all, err := b.ds.BatchVaults(ctx, chain, byChain[chain])
			if err != nil {
				return fmt.Errorf("fetch vaults on chain %d: %w", int(chain), err)
			}
			fetched[i] = chainFetch{targets: withChain(ts, chain), all: withChain(all, chain)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	found := make(map[vaultKey]model.Vault)
	chainVaults := make(map[types.ChainID][]model.Vault, len(chains))
	var union []model.Vault
	for i, chain := range chains {
		for _, v := range fetched[i].targets {
			found[keyOf(chain, v.Address)] = v
		}
		chainVaults[chain] = fetched[i].all
		union = append(union, fetched[i].all...)
	}
	byCurator := groupByCurator(union)

	compositions := b.resolveAll(ctx, targets, found)

	now := b.now()
	result := &model.BatchRiskAnalysisResult{Results: []model.VaultRiskResult{}}
	for _, t := range targets {
		k := keyOf(t.ChainID, t.Address)
		v, ok := found[k]
		if !ok {
			result.NotFound = append(result.NotFound, t.Address)
			continue
		}

		var curatorVaults []model.Vault
		if id, ok := v.CuratorID(); ok {
			curatorVaults = byCurator[id]
		}

		breakdown := risk.Score(buildInput(inputFacts{
			vault:         v,
			chainVaults:   chainVaults[t.ChainID],
			curatorVaults: curatorVaults,
			prices:        validation.Prices(validation.FilterPriceHistory(v.PriceHistory)),
			composition:   compositions[k],
			now:           now,
		}))
		b.metrics.RiskAnalysis(string(breakdown.RiskLevel))

		r := model.VaultRiskResult{
			Address:    v.Address,
			ChainID:    t.ChainID,
			Name:       v.Name,
			RiskScore:  breakdown.OverallRisk,
			RiskLevel:  breakdown.RiskLevel,
			TopFactors: risk.TopFactors(breakdown.Factors, TopFactorCount),
			Breakdown:  &breakdown,
		}
		if peers := peerTVLs(v, union); len(peers) > 0 {
			c := risk.CalculateComparativeContext(breakdown.OverallRisk, risk.PeerRisks(peers))
			r.Comparative = &c
		}
		result.Results = append(result.Results, r)
	}

	result.Summary = Summarize(result.Results)
	logrus.WithFields(logrus.Fields{
		"count":     result.Summary.Count,
		"not_found": len(result.NotFound),
		"chains":    len(chains),
	}).Debug("Batch risk analysis complete")
	return result, nil
}

// resolveAll fetches the composition of every found vault in parallel
func (b *BatchCoordinator) resolveAll(ctx context.Context, targets []validation.Target, found map[vaultKey]model.Vault) map[vaultKey]model.Optional[model.Composition] {
	out := make(map[vaultKey]model.Optional[model.Composition], len(found))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, t := range targets {
		k := keyOf(t.ChainID, t.Address)
		v, ok := found[k]
		if !ok {
			continue
		}
		wg.Add(1)
		go func(k vaultKey, v model.Vault) {
			defer wg.Done()
			comp := resolveComposition(ctx, b.ds, b.metrics, k.chain, v)
			mu.Lock()
			out[k] = comp
			mu.Unlock()
		}(k, v)
	}
	wg.Wait()
	return out
}

// Summarize computes the lowest, highest and mean risk of results. Ties
// keep the earliest result.
func Summarize(results []model.VaultRiskResult) model.BatchSummary {
	if len(results) == 0 {
		return model.BatchSummary{}
	}

	lo, hi := 0, 0
	scores := make([]float64, len(results))
	for i, r := range results {
		scores[i] = r.RiskScore
		if r.RiskScore < results[lo].RiskScore {
			lo = i
		}
		if r.RiskScore > results[hi].RiskScore {
			hi = i
		}
	}
	return model.BatchSummary{
		LowestRisk:   refOf(results[lo]),
		HighestRisk:  refOf(results[hi]),
		AverageScore: aggregate.Mean(scores),
		Count:        len(results),
	}
}

func refOf(r model.VaultRiskResult) *model.VaultRef {
	return &model.VaultRef{
		Address:   r.Address,
		ChainID:   r.ChainID,
		Name:      r.Name,
		RiskScore: r.RiskScore,
	}
}

// groupByChain returns addresses per chain and the chains in first-seen order
func groupByChain(targets []validation.Target) (map[types.ChainID][]string, []types.ChainID) {
	byChain := make(map[types.ChainID][]string)
	var chains []types.ChainID
	for _, t := range targets {
		if _, ok := byChain[t.ChainID]; !ok {
			chains = append(chains, t.ChainID)
		}
		byChain[t.ChainID] = append(byChain[t.ChainID], t.Address)
	}
	return byChain, chains
}

// groupByCurator indexes vaults by the id of their first curator
func groupByCurator(vaults []model.Vault) map[string][]model.Vault {
	out := make(map[string][]model.Vault)
	for _, v := range vaults {
		if id, ok := v.CuratorID(); ok {
			out[id] = append(out[id], v)
		}
	}
	return out
}

func withChain(vaults []model.Vault, chain types.ChainID) []model.Vault {
	for i := range vaults {
		if vaults[i].ChainID == 0 {
			vaults[i].ChainID = chain
		}
	}
	return vaults
}
