package tools

import (
	"github.com/yourorg/vault-risk-engine/internal/cache"
	"github.com/yourorg/vault-risk-engine/internal/model"
	"github.com/yourorg/vault-risk-engine/internal/types"
)

// RiskRequest asks for the analysis of one vault
type RiskRequest struct {
	ChainID            types.ChainID `json:"chainId"`
	Address            string        `json:"address"`
	IncludeComparative bool          `json:"includeComparative"`
	ResponseFormat     string        `json:"responseFormat,omitempty"`
}

// RiskResult wraps an analysis. Found is false when the vault does not
// exist on the chain; that outcome is cached like any other.
type RiskResult struct {
	Found    bool                `json:"found" msgpack:"found"`
	Analysis *model.RiskAnalysis `json:"analysis,omitempty" msgpack:"analysis,omitempty"`
}

// BatchRequest asks for the analysis of 2 to 10 vaults. ChainID applies to
// every address unless ChainIDs gives one chain per address.
type BatchRequest struct {
	Addresses      []string        `json:"addresses"`
	ChainID        types.ChainID   `json:"chainId,omitempty"`
	ChainIDs       []types.ChainID `json:"chainIds,omitempty"`
	ResponseFormat string          `json:"responseFormat,omitempty"`
}

// Holding is one vault position of a portfolio
type Holding struct {
	Address  string  `json:"address"`
	ValueUSD float64 `json:"valueUsd"`
}

// PortfolioRequest asks for target allocations of a set of holdings on one
// chain. A nil RebalanceThreshold uses the configured default.
type PortfolioRequest struct {
	ChainID            types.ChainID `json:"chainId"`
	Vaults             []Holding     `json:"vaults"`
	Strategy           string        `json:"strategy,omitempty"`
	RebalanceThreshold *float64      `json:"rebalanceThreshold,omitempty"`
}

// VaultProfile is the cached return estimate of one portfolio vault
type VaultProfile struct {
	Address        string  `msgpack:"address"`
	Name           string  `msgpack:"name"`
	Found          bool    `msgpack:"found"`
	ExpectedReturn float64 `msgpack:"expectedReturn"`
	Volatility     float64 `msgpack:"volatility"`
	FromHistory    bool    `msgpack:"fromHistory"`
}

// CacheStats is the cache snapshot returned by the stats tool
type CacheStats struct {
	cache.Stats
	IndexedKeys int `json:"indexedKeys"`
	InFlight    int `json:"inFlight"`
}
