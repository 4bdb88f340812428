// Package types contains shared type definitions used across multiple packages
package types

import (
	"sort"
	"strconv"
)

// ChainID is the EVM chain identifier a vault is deployed on
type ChainID int

// Supported blockchain networks
const (
	ChainEthereum  ChainID = 1
	ChainOptimism  ChainID = 10
	ChainBSC       ChainID = 56
	ChainPolygon   ChainID = 137
	ChainBase      ChainID = 8453
	ChainArbitrum  ChainID = 42161
	ChainAvalanche ChainID = 43114
)

var chainNames = map[ChainID]string{
	ChainEthereum:  "ethereum",
	ChainOptimism:  "optimism",
	ChainBSC:       "binance",
	ChainPolygon:   "polygon",
	ChainBase:      "base",
	ChainArbitrum:  "arbitrum",
	ChainAvalanche: "avalanche",
}

// Name returns the network name, or the numeric id for chains without one
func (c ChainID) Name() string {
	if name, ok := chainNames[c]; ok {
		return name
	}
	return strconv.Itoa(int(c))
}

// Valid reports whether the chain is one of the supported networks
func (c ChainID) Valid() bool {
	_, ok := chainNames[c]
	return ok
}

func (c ChainID) String() string {
	return strconv.Itoa(int(c))
}

// SortedDistinct returns the distinct chain ids in ascending order
func SortedDistinct(ids []ChainID) []ChainID {
	seen := make(map[ChainID]struct{}, len(ids))
	out := make([]ChainID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
