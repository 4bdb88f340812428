package validation

import (
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/vault-risk-engine/internal/model"
)

// FilterPriceHistory drops samples with a non-positive or non-finite price
// or timestamp, keeps the last sample per timestamp, and orders the rest
// oldest first.
func FilterPriceHistory(points []model.PricePoint) []model.PricePoint {
	byTime := make(map[int64]model.PricePoint, len(points))
	dropped := 0
	for _, p := range points {
		if !isValidPoint(p) {
			dropped++
			continue
		}
		byTime[p.Timestamp] = p
	}

	valid := make([]model.PricePoint, 0, len(byTime))
	for _, p := range byTime {
		valid = append(valid, p)
	}
	sort.Slice(valid, func(i, j int) bool { return valid[i].Timestamp < valid[j].Timestamp })

	if dropped > 0 {
		logrus.WithFields(logrus.Fields{
			"total":   len(points),
			"dropped": dropped,
		}).Debug("Filtered invalid price samples")
	}
	return valid
}

func isValidPoint(p model.PricePoint) bool {
	if p.Timestamp <= 0 {
		return false
	}
	if math.IsNaN(p.PricePerShare) || math.IsInf(p.PricePerShare, 0) {
		return false
	}
	return p.PricePerShare > 0
}

// Prices extracts the price-per-share series
func Prices(points []model.PricePoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.PricePerShare
	}
	return out
}
