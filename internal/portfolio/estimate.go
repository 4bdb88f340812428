package portfolio

import (
	"math"

	"github.com/yourorg/vault-risk-engine/internal/aggregate"
	"github.com/yourorg/vault-risk-engine/internal/model"
)

const secondsPerYear = 365 * 24 * 60 * 60

// minReturns is the shortest return series an estimate is built from
const minReturns = 2

// ReturnProfile is an annualized return and volatility estimate
type ReturnProfile struct {
	ExpectedReturn float64
	Volatility     float64
	FromHistory    bool
}

// EstimateReturnProfile annualizes the mean and std-dev of period returns in
// points, scaling by the average sampling interval. points must be ordered
// oldest first. When the history is too short the vault's yearly APR
// (percent) is used with zero volatility.
func EstimateReturnProfile(points []model.PricePoint, yearlyAPR *float64) ReturnProfile {
	if p, ok := fromHistory(points); ok {
		return p
	}
	var r float64
	if yearlyAPR != nil {
		r = *yearlyAPR / 100
	}
	return ReturnProfile{ExpectedReturn: r}
}

func fromHistory(points []model.PricePoint) (ReturnProfile, bool) {
	if len(points) < minReturns+1 {
		return ReturnProfile{}, false
	}
	span := points[len(points)-1].Timestamp - points[0].Timestamp
	if span <= 0 {
		return ReturnProfile{}, false
	}

	prices := make([]float64, len(points))
	for i, p := range points {
		prices[i] = p.PricePerShare
	}
	returns := aggregate.SimpleReturns(prices)
	if len(returns) < minReturns {
		return ReturnProfile{}, false
	}

	interval := float64(span) / float64(len(points)-1)
	periods := secondsPerYear / interval
	return ReturnProfile{
		ExpectedReturn: aggregate.Mean(returns) * periods,
		Volatility:     aggregate.StdDev(returns) * math.Sqrt(periods),
		FromHistory:    true,
	}, true
}
