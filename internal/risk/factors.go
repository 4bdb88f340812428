package risk

import (
	"github.com/yourorg/vault-risk-engine/internal/aggregate"
	"github.com/yourorg/vault-risk-engine/internal/model"
)

// Factor names as they appear in breakdowns and data quality notes
const (
	FactorTVL                      = "tvl"
	FactorConcentration            = "concentration"
	FactorVolatility               = "volatility"
	FactorAge                      = "age"
	FactorCurator                  = "curator"
	FactorFee                      = "fee"
	FactorLiquidity                = "liquidity"
	FactorAPRConsistency           = "aprConsistency"
	FactorYieldSustainability      = "yieldSustainability"
	FactorSettlement               = "settlement"
	FactorIntegrationComplexity    = "integrationComplexity"
	FactorCapacityUtilization      = "capacityUtilization"
	FactorProtocolDiversification  = "protocolDiversification"
	FactorTopProtocolConcentration = "topProtocolConcentration"
)

// DefaultScore is used for any factor whose inputs are missing
const DefaultScore = 0.5

// Weights of each factor in the overall score. They sum to 1.
var Weights = map[string]float64{
	FactorTVL:                      0.12,
	FactorConcentration:            0.08,
	FactorVolatility:               0.12,
	FactorAge:                      0.08,
	FactorCurator:                  0.10,
	FactorFee:                      0.05,
	FactorLiquidity:                0.10,
	FactorAPRConsistency:           0.07,
	FactorYieldSustainability:      0.06,
	FactorSettlement:               0.05,
	FactorIntegrationComplexity:    0.04,
	FactorCapacityUtilization:      0.04,
	FactorProtocolDiversification:  0.05,
	FactorTopProtocolConcentration: 0.04,
}

// FactorOrder is the canonical order of factors
var FactorOrder = []string{
	FactorTVL,
	FactorConcentration,
	FactorVolatility,
	FactorAge,
	FactorCurator,
	FactorFee,
	FactorLiquidity,
	FactorAPRConsistency,
	FactorYieldSustainability,
	FactorSettlement,
	FactorIntegrationComplexity,
	FactorCapacityUtilization,
	FactorProtocolDiversification,
	FactorTopProtocolConcentration,
}

// volatilityCeiling is the per-period return std-dev that maps to maximum risk
const volatilityCeiling = 0.05

// tier maps a value to a score: the first tier whose floor the value reaches wins
type tier struct {
	floor float64
	score float64
}

var tvlTiers = []tier{
	{100_000_000, 0.05},
	{50_000_000, 0.10},
	{10_000_000, 0.20},
	{1_000_000, 0.35},
	{100_000, 0.60},
}

var ageTiers = []tier{
	{365, 0.10},
	{180, 0.30},
	{90, 0.50},
	{30, 0.70},
}

var coverageTiers = []tier{
	{10, 0.10},
	{2, 0.30},
	{1, 0.50},
	{0.5, 0.70},
}

func fromTiers(v float64, tiers []tier, below float64) float64 {
	for _, t := range tiers {
		if v >= t.floor {
			return t.score
		}
	}
	return below
}

// TVLRisk scores a USD TVL on the fixed tier table. It doubles as the cheap
// peer-risk proxy used for comparative ranking.
func TVLRisk(tvl float64) float64 {
	if tvl <= 0 {
		return 0.90
	}
	return fromTiers(tvl, tvlTiers, 0.80)
}

func concentrationRisk(tvl, protocolTVL float64) float64 {
	return aggregate.Clamp01(tvl / protocolTVL)
}

func volatilityRisk(returns []float64) float64 {
	return aggregate.Clamp01(aggregate.StdDev(returns) / volatilityCeiling)
}

func ageRisk(days float64) float64 {
	if days < 0 {
		days = 0
	}
	return fromTiers(days, ageTiers, 0.90)
}

func curatorRisk(p model.CuratorProfile) float64 {
	score := 1 - aggregate.Clamp01(p.SuccessRate)
	switch {
	case p.VaultCount >= 5:
		score -= 0.1
	case p.VaultCount == 1:
		score += 0.1
	}
	if signals, ok := p.Signals.Get(); ok {
		score += 0.05 * float64(signals.Missing())
	}
	return aggregate.Clamp01(score)
}

func feeRisk(f model.FeeStructure) float64 {
	management := aggregate.Clamp01(f.ManagementPercent / 5)
	performance := aggregate.Clamp01(f.PerformancePercent / 30)
	if !f.PerformanceActive {
		performance *= 0.5
	}
	return aggregate.Clamp01(0.6*management + 0.4*performance)
}

func liquidityRisk(safeAssets, pending float64) float64 {
	if pending <= 0 {
		return 0.10
	}
	return fromTiers(safeAssets/pending, coverageTiers, 0.90)
}

func yieldSustainabilityRisk(y model.YieldSources) float64 {
	return aggregate.Clamp01(1 - y.NativeAPR/y.Total())
}

func settlementRisk(s model.SettlementStats) float64 {
	h := s.AverageIntervalHours
	switch {
	case h <= 24:
		return 0.10
	case h <= 72:
		return 0.20
	case h <= 168:
		return 0.40
	case h <= 336:
		return 0.60
	default:
		return 0.80
	}
}

func integrationRisk(n int) float64 {
	switch {
	case n <= 0:
		return 0.10
	case n == 1:
		return 0.15
	case n <= 3:
		return 0.30
	case n <= 6:
		return 0.50
	case n <= 10:
		return 0.70
	default:
		return 0.90
	}
}

// capacityRisk penalizes nearly empty vaults linearly and nearly full vaults
// quadratically
func capacityRisk(u float64) float64 {
	if u < 0 {
		u = 0
	}
	switch {
	case u < 0.1:
		return 0.5 - 3*u
	case u <= 0.8:
		return 0.2
	default:
		x := (u - 0.8) / 0.2
		return aggregate.Clamp01(0.2 + 0.8*x*x)
	}
}

// protocolShares returns the share of each deployed (non-wallet) protocol
func protocolShares(entries []model.CompositionEntry) []float64 {
	var total float64
	for _, e := range entries {
		if e.ProtocolKey != model.WalletProtocol && e.ValueUSD > 0 {
			total += e.ValueUSD
		}
	}
	if total <= 0 {
		return nil
	}
	shares := make([]float64, 0, len(entries))
	for _, e := range entries {
		if e.ProtocolKey != model.WalletProtocol && e.ValueUSD > 0 {
			shares = append(shares, e.ValueUSD/total)
		}
	}
	return shares
}

func topProtocolRisk(shares []float64) float64 {
	var top float64
	for _, s := range shares {
		if s > top {
			top = s
		}
	}
	if top > 0.5 {
		return aggregate.Clamp01(0.6 + 0.8*(top-0.5))
	}
	return 0.6 * top
}
