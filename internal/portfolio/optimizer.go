// Package portfolio computes target allocations for a set of vault holdings
// and the drift between current and target positions.
package portfolio

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/yourorg/vault-risk-engine/internal/aggregate"
	"github.com/yourorg/vault-risk-engine/internal/model"
)

// minVolatility keeps inverse-volatility weights finite for riskless vaults
const minVolatility = 1e-4

// Thresholds behind the generated recommendations
const (
	concentrationLimit = 50.0
	lowSharpe          = 0.5
)

// Optimize computes target weights for vaults under strategy and compares
// them with the current allocation. A position needs rebalancing when its
// drift exceeds thresholdPercent in either direction.
//
// max_sharpe and min_variance are ranking heuristics over each vault's own
// return and volatility; correlations between vaults are not modelled.
func Optimize(vaults []model.PortfolioVault, strategy model.Strategy, thresholdPercent, riskFreeRate float64) model.PortfolioOptimization {
	out := model.PortfolioOptimization{
		Strategy:           strategy,
		Positions:          []model.PortfolioPosition{},
		RebalanceThreshold: thresholdPercent,
		Recommendations:    []string{},
	}
	if len(vaults) == 0 {
		return out
	}

	values := make([]float64, len(vaults))
	for i, v := range vaults {
		values[i] = v.CurrentValueUSD
	}
	total := floats.Sum(values)
	out.TotalValueUSD = total

	weights := targetWeights(vaults, strategy, riskFreeRate)

	rebalances := 0
	for i, v := range vaults {
		current := 0.0
		if total > 0 {
			current = 100 * values[i] / total
		}
		target := 100 * weights[i]
		drift := target - current

		out.Positions = append(out.Positions, model.PortfolioPosition{
			VaultAddress:             v.Address,
			Name:                     v.Name,
			CurrentAllocationPercent: current,
			TargetAllocationPercent:  target,
			RebalanceAmountUSD:       drift / 100 * total,
			RebalancePercentage:      drift,
		})
		if math.Abs(drift) > thresholdPercent {
			rebalances++
		}
	}
	out.RebalanceNeeded = rebalances > 0
	out.Metrics = portfolioMetrics(vaults, weights, riskFreeRate)
	out.Recommendations = recommend(out, rebalances)
	return out
}

// targetWeights returns per-vault fractions summing to 1
func targetWeights(vaults []model.PortfolioVault, strategy model.Strategy, riskFreeRate float64) []float64 {
	n := len(vaults)
	raw := make([]float64, n)

	switch strategy {
	case model.StrategyRiskParity:
		for i, v := range vaults {
			raw[i] = 1 / math.Max(v.Volatility, minVolatility)
		}
	case model.StrategyMinVariance:
		for i, v := range vaults {
			vol := math.Max(v.Volatility, minVolatility)
			raw[i] = 1 / (vol * vol)
		}
	case model.StrategyMaxSharpe:
		for i, v := range vaults {
			raw[i] = math.Max(0, (v.ExpectedReturn-riskFreeRate)/math.Max(v.Volatility, minVolatility))
		}
	default:
		for i := range raw {
			raw[i] = 1
		}
	}

	sum := floats.Sum(raw)
	if sum <= 0 || math.IsInf(sum, 0) || math.IsNaN(sum) {
		// every vault scored zero; fall back to an even split
		for i := range raw {
			raw[i] = 1
		}
		sum = float64(n)
	}
	floats.Scale(1/sum, raw)
	return raw
}

func portfolioMetrics(vaults []model.PortfolioVault, weights []float64, riskFreeRate float64) model.PortfolioMetrics {
	returns := make([]float64, len(vaults))
	var variance float64
	for i, v := range vaults {
		returns[i] = v.ExpectedReturn
		wv := weights[i] * v.Volatility
		variance += wv * wv
	}

	m := model.PortfolioMetrics{
		ExpectedReturn: floats.Dot(weights, returns),
		PortfolioRisk:  math.Sqrt(variance),
	}
	if m.PortfolioRisk > 0 {
		m.SharpeRatio = (m.ExpectedReturn - riskFreeRate) / m.PortfolioRisk
	}
	if n := len(weights); n > 1 {
		m.DiversificationScore = aggregate.Clamp01((1 - aggregate.HHI(weights)) / (1 - 1/float64(n)))
	}
	return m
}

func recommend(o model.PortfolioOptimization, rebalances int) []string {
	recs := []string{}
	if rebalances > 0 {
		recs = append(recs, fmt.Sprintf("Rebalance %d of %d positions drifting more than %.1f%% from target", rebalances, len(o.Positions), o.RebalanceThreshold))
	}
	for _, p := range o.Positions {
		if p.TargetAllocationPercent > concentrationLimit {
			recs = append(recs, fmt.Sprintf("Target allocation to %s is %.1f%%, consider capping single-vault exposure", p.VaultAddress, p.TargetAllocationPercent))
		}
	}
	if o.Metrics.PortfolioRisk > 0 && o.Metrics.SharpeRatio < lowSharpe {
		recs = append(recs, fmt.Sprintf("Sharpe ratio %.2f is low for the risk taken", o.Metrics.SharpeRatio))
	}
	return recs
}
