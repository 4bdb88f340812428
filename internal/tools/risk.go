package tools

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/vault-risk-engine/internal/analysis"
	"github.com/yourorg/vault-risk-engine/internal/cache"
	"github.com/yourorg/vault-risk-engine/internal/model"
	"github.com/yourorg/vault-risk-engine/internal/types"
	"github.com/yourorg/vault-risk-engine/internal/validation"
)

// AnalyzeRisk returns the risk analysis of one vault. The comparative
// context is always computed and cached; it is only returned when asked for.
func (s *Service) AnalyzeRisk(ctx context.Context, req RiskRequest) (RiskResult, error) {
	if err := validation.Chain(req.ChainID); err != nil {
		return RiskResult{}, err
	}
	address, err := validation.Address(req.Address)
	if err != nil {
		return RiskResult{}, err
	}
	format, err := validation.Format(req.ResponseFormat)
	if err != nil {
		return RiskResult{}, err
	}

	key := cache.RiskKey(req.ChainID, address, format)
	res, err := cached(ctx, s, ToolAnalyzeRisk, key, s.opts.RiskTTL, cache.RiskTags, func(ctx context.Context) (RiskResult, error) {
		a, err := s.orchestrator.Analyze(ctx, req.ChainID, address, true)
		if err != nil {
			return RiskResult{}, err
		}
		if a == nil {
			return RiskResult{Found: false}, nil
		}
		if format == validation.FormatSummary {
			a.Breakdown = nil
		}
		return RiskResult{Found: true, Analysis: a}, nil
	})
	if err != nil {
		return RiskResult{}, err
	}

	if res.Analysis != nil && !req.IncludeComparative && res.Analysis.Comparative != nil {
		a := *res.Analysis
		a.Comparative = nil
		res.Analysis = &a
	}
	return res, nil
}

// batchTarget is a resolved (chain, address) pair stored with a batch entry
type batchTarget struct {
	ChainID types.ChainID `msgpack:"chainId"`
	Address string        `msgpack:"address"`
}

// batchEntry is the cached form of a batch analysis. Batch keys only keep
// address prefixes and distinct chains, so the entry records which targets
// it was computed for.
type batchEntry struct {
	Targets []batchTarget                `msgpack:"targets"`
	Result  model.BatchRiskAnalysisResult `msgpack:"result"`
}

func targetOf(chain types.ChainID, address string) batchTarget {
	return batchTarget{ChainID: chain, Address: strings.ToLower(address)}
}

// covers reports whether the entry was computed for exactly these targets
func (e batchEntry) covers(targets []validation.Target) bool {
	if len(e.Targets) != len(targets) {
		return false
	}
	have := make(map[batchTarget]struct{}, len(e.Targets))
	for _, t := range e.Targets {
		have[t] = struct{}{}
	}
	for _, t := range targets {
		if _, ok := have[targetOf(t.ChainID, t.Address)]; !ok {
			return false
		}
	}
	return true
}

// orderedFor rearranges results and not-found addresses into the order of
// targets and rebuilds the summary over that order
func (e batchEntry) orderedFor(targets []validation.Target) model.BatchRiskAnalysisResult {
	byTarget := make(map[batchTarget]model.VaultRiskResult, len(e.Result.Results))
	for _, r := range e.Result.Results {
		byTarget[targetOf(r.ChainID, r.Address)] = r
	}

	out := model.BatchRiskAnalysisResult{Results: make([]model.VaultRiskResult, 0, len(byTarget))}
	for _, t := range targets {
		if r, ok := byTarget[targetOf(t.ChainID, t.Address)]; ok {
			out.Results = append(out.Results, r)
		} else {
			out.NotFound = append(out.NotFound, t.Address)
		}
	}
	out.Summary = analysis.Summarize(out.Results)
	return out
}

// AnalyzeRisks analyses a batch of vaults, possibly across chains. Results
// follow the order of req.Addresses whether or not they come from cache.
func (s *Service) AnalyzeRisks(ctx context.Context, req BatchRequest) (model.BatchRiskAnalysisResult, error) {
	targets, err := validation.BatchTargets(req.Addresses, req.ChainID, req.ChainIDs)
	if err != nil {
		return model.BatchRiskAnalysisResult{}, err
	}
	format, err := validation.Format(req.ResponseFormat)
	if err != nil {
		return model.BatchRiskAnalysisResult{}, err
	}

	chains := make([]types.ChainID, len(targets))
	addresses := make([]string, len(targets))
	resolved := make([]batchTarget, len(targets))
	for i, t := range targets {
		chains[i] = t.ChainID
		addresses[i] = t.Address
		resolved[i] = targetOf(t.ChainID, t.Address)
	}

	compute := func(ctx context.Context) (batchEntry, error) {
		res, err := s.batch.Analyze(ctx, targets)
		if err != nil {
			return batchEntry{}, err
		}
		if format == validation.FormatSummary {
			for i := range res.Results {
				res.Results[i].Breakdown = nil
			}
		}
		return batchEntry{Targets: resolved, Result: *res}, nil
	}

	key := cache.BatchRiskKey(chains, addresses, format)
	entry, err := cached(ctx, s, ToolAnalyzeRisks, key, s.opts.RiskTTL, cache.RiskTags, compute)
	if err != nil {
		return model.BatchRiskAnalysisResult{}, err
	}

	if !entry.covers(targets) {
		// a different batch with the same address prefixes owns the entry
		logrus.WithField("cache_key", key).Debug("Batch entry belongs to other targets, recomputing")
		entry, err = compute(context.WithoutCancel(ctx))
		if err != nil {
			return model.BatchRiskAnalysisResult{}, err
		}
		if err := s.cache.Set(ctx, key, entry, s.opts.RiskTTL, cache.RiskTags...); err != nil {
			logrus.WithField("cache_key", key).Warnf("Failed to store result: %v", err)
		}
	}
	return entry.orderedFor(targets), nil
}
