package risk

import (
	"math"

	"github.com/yourorg/vault-risk-engine/internal/aggregate"
	"github.com/yourorg/vault-risk-engine/internal/model"
)

// Risk rankings reported in comparative context
const (
	RankingTopQuartile       = "top_quartile"
	RankingAboveMedian       = "above_median"
	RankingBelowMedian       = "below_median"
	RankingBottomQuartile    = "bottom_quartile"
	RankingInsufficientPeers = "insufficient_peers"
)

// outlierSigmas is how many standard deviations away from the peer mean
// a vault must sit to be flagged
const outlierSigmas = 2.0

// PeerRisks derives proxy risk scores for peers from their TVL alone.
// Full peer scoring would need every peer's history and composition.
func PeerRisks(peerTVLs []float64) []float64 {
	out := make([]float64, len(peerTVLs))
	for i, tvl := range peerTVLs {
		out[i] = TVLRisk(tvl)
	}
	return out
}

// CalculateComparativeContext ranks target against peer risk scores.
// A lower percentile means fewer peers are safer than the target.
func CalculateComparativeContext(target float64, peerRisks []float64) model.ComparativeRiskContext {
	if len(peerRisks) == 0 {
		return model.ComparativeRiskContext{
			Percentile:        50,
			BetterThanPercent: 50,
			MedianRisk:        target,
			AverageRisk:       target,
			IsOutlier:         false,
			RiskRanking:       RankingInsufficientPeers,
		}
	}

	percentile := aggregate.PercentileRank(target, peerRisks)
	average := aggregate.Mean(peerRisks)
	sd := aggregate.StdDev(peerRisks)

	return model.ComparativeRiskContext{
		Percentile:        percentile,
		BetterThanPercent: 100 - percentile,
		MedianRisk:        aggregate.Median(peerRisks),
		AverageRisk:       average,
		IsOutlier:         len(peerRisks) >= 2 && sd > 0 && math.Abs(target-average) > outlierSigmas*sd,
		RiskRanking:       rankingFor(percentile),
		PeerCount:         len(peerRisks),
	}
}

func rankingFor(percentile float64) string {
	switch {
	case percentile <= 25:
		return RankingTopQuartile
	case percentile <= 50:
		return RankingAboveMedian
	case percentile <= 75:
		return RankingBelowMedian
	default:
		return RankingBottomQuartile
	}
}
