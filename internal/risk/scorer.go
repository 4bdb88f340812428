// Package risk computes multi-factor vault risk scores. Scoring is a pure
// function of its input: no clock, no randomness, no I/O.
package risk

import (
	"fmt"
	"sort"

	"github.com/yourorg/vault-risk-engine/internal/aggregate"
	"github.com/yourorg/vault-risk-engine/internal/model"
)

// Level thresholds. Each is the inclusive lower bound of the next band.
const (
	MediumThreshold   = 0.3
	HighThreshold     = 0.6
	CriticalThreshold = 0.8
)

// LevelFor maps an overall risk score onto its band
func LevelFor(overall float64) model.RiskLevel {
	switch {
	case overall < MediumThreshold:
		return model.RiskLow
	case overall < HighThreshold:
		return model.RiskMedium
	case overall < CriticalThreshold:
		return model.RiskHigh
	default:
		return model.RiskCritical
	}
}

// qualityFor grades data quality from the number of degraded factors
func qualityFor(degraded int) model.DataQuality {
	switch {
	case degraded == 0:
		return model.QualityHigh
	case degraded <= 3:
		return model.QualityMedium
	default:
		return model.QualityLow
	}
}

// scoring accumulates data quality notes while factors are computed
type scoring struct {
	notes    []string
	degraded int
}

func (s *scoring) fallback(factor, reason string) float64 {
	s.note(factor, reason)
	return DefaultScore
}

func (s *scoring) note(factor, reason string) {
	s.notes = append(s.notes, fmt.Sprintf("%s: %s", factor, reason))
	s.degraded++
}

// Score maps a normalized vault input to its risk breakdown
func Score(in model.VaultRiskInput) model.RiskScoreBreakdown {
	s := &scoring{}
	var f model.FactorScores

	f.TVL = TVLRisk(in.TVL)

	if in.TotalProtocolTVL > 0 {
		f.Concentration = concentrationRisk(in.TVL, in.TotalProtocolTVL)
	} else {
		f.Concentration = s.fallback(FactorConcentration, "protocol TVL unavailable")
	}

	if returns := aggregate.SimpleReturns(in.PricePerShare); len(returns) >= 2 {
		f.Volatility = volatilityRisk(returns)
	} else {
		f.Volatility = s.fallback(FactorVolatility, "insufficient price history")
	}

	if days, ok := in.AgeDays.Get(); ok {
		f.Age = ageRisk(days)
	} else {
		f.Age = s.fallback(FactorAge, "inception date unknown")
	}

	if profile, ok := in.Curator.Get(); ok && profile.VaultCount > 0 {
		f.Curator = curatorRisk(profile)
	} else {
		f.Curator = s.fallback(FactorCurator, "no curator track record")
	}

	f.Fee = feeRisk(in.Fees)

	if safe, ok := in.SafeAssetsUSD.Get(); ok {
		f.Liquidity = liquidityRisk(safe, in.PendingRedemptions)
	} else {
		f.Liquidity = s.fallback(FactorLiquidity, "safe asset balance unavailable")
	}

	if cv, ok := aggregate.CoefficientOfVariation(in.APR.Values()); ok {
		f.APRConsistency = aggregate.Clamp01(cv)
	} else {
		f.APRConsistency = s.fallback(FactorAPRConsistency, "fewer than two APR periods available")
	}

	if in.YieldSources.Total() > 0 {
		f.YieldSustainability = yieldSustainabilityRisk(in.YieldSources)
	} else {
		f.YieldSustainability = s.fallback(FactorYieldSustainability, "no yield source decomposition")
	}

	if stats, ok := in.Settlement.Get(); ok && stats.Count > 0 {
		f.Settlement = settlementRisk(stats)
	} else {
		f.Settlement = s.fallback(FactorSettlement, "no settlement history")
	}

	if n, ok := in.IntegrationCount.Get(); ok {
		f.IntegrationComplexity = integrationRisk(n)
	} else {
		f.IntegrationComplexity = s.fallback(FactorIntegrationComplexity, "integration count unknown")
	}

	if u, ok := in.CapacityUtilization.Get(); ok {
		f.CapacityUtilization = capacityRisk(u)
	} else {
		f.CapacityUtilization = s.fallback(FactorCapacityUtilization, "vault has no capacity limit")
	}

	var shares []float64
	if comp, ok := in.Composition.Get(); ok {
		if comp.FailedAddresses > 0 {
			s.note("composition", fmt.Sprintf("data unavailable for %d of %d bundle addresses",
				comp.FailedAddresses, comp.TotalAddresses))
		}
		shares = protocolShares(comp.Entries)
	}
	if len(shares) > 0 {
		f.ProtocolDiversification = aggregate.Clamp01(aggregate.HHI(shares))
		f.TopProtocolConcentration = topProtocolRisk(shares)
	} else {
		f.ProtocolDiversification = s.fallback(FactorProtocolDiversification, "no composition data")
		f.TopProtocolConcentration = s.fallback(FactorTopProtocolConcentration, "no composition data")
	}

	overall := aggregate.Clamp01(weightedSum(f))
	notes := s.notes
	if notes == nil {
		notes = []string{}
	}

	return model.RiskScoreBreakdown{
		Factors:          f,
		OverallRisk:      overall,
		RiskLevel:        LevelFor(overall),
		DataQuality:      qualityFor(s.degraded),
		DataQualityNotes: notes,
	}
}

// weightedSum combines factors in canonical order so the float result is stable
func weightedSum(f model.FactorScores) float64 {
	var total float64
	for _, fs := range Factors(f) {
		total += Weights[fs.Name] * fs.Score
	}
	return total
}

// Factors lists every factor score in canonical order
func Factors(f model.FactorScores) []model.FactorScore {
	values := []float64{
		f.TVL,
		f.Concentration,
		f.Volatility,
		f.Age,
		f.Curator,
		f.Fee,
		f.Liquidity,
		f.APRConsistency,
		f.YieldSustainability,
		f.Settlement,
		f.IntegrationComplexity,
		f.CapacityUtilization,
		f.ProtocolDiversification,
		f.TopProtocolConcentration,
	}
	out := make([]model.FactorScore, len(FactorOrder))
	for i, name := range FactorOrder {
		out[i] = model.FactorScore{Name: name, Score: values[i]}
	}
	return out
}

// TopFactors returns the n highest factor scores, ties kept in canonical order
func TopFactors(f model.FactorScores, n int) []model.FactorScore {
	all := Factors(f)
	sort.SliceStable(all, func(i, j int) bool { return all[i].Score > all[j].Score })
	if n > len(all) {
		n = len(all)
	}
	return all[:n]
}
