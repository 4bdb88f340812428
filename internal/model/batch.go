package model

import (
	"github.com/yourorg/vault-risk-engine/internal/types"
)

// VaultRiskResult is one entry of a batch analysis
type VaultRiskResult struct {
	Address     string                  `json:"address" msgpack:"address"`
	ChainID     types.ChainID           `json:"chainId" msgpack:"chainId"`
	Name        string                  `json:"name" msgpack:"name"`
	RiskScore   float64                 `json:"riskScore" msgpack:"riskScore"`
	RiskLevel   RiskLevel               `json:"riskLevel" msgpack:"riskLevel"`
	TopFactors  []FactorScore           `json:"topFactors" msgpack:"topFactors"`
	Breakdown   *RiskScoreBreakdown     `json:"breakdown,omitempty" msgpack:"breakdown,omitempty"`
	Comparative *ComparativeRiskContext `json:"comparative,omitempty" msgpack:"comparative,omitempty"`
}

// VaultRef identifies a vault in a summary
type VaultRef struct {
	Address   string        `json:"address" msgpack:"address"`
	ChainID   types.ChainID `json:"chainId" msgpack:"chainId"`
	Name      string        `json:"name" msgpack:"name"`
	RiskScore float64       `json:"riskScore" msgpack:"riskScore"`
}

// BatchSummary aggregates a batch of results
type BatchSummary struct {
	LowestRisk   *VaultRef `json:"lowestRisk,omitempty" msgpack:"lowestRisk,omitempty"`
	HighestRisk  *VaultRef `json:"highestRisk,omitempty" msgpack:"highestRisk,omitempty"`
	AverageScore float64   `json:"averageScore" msgpack:"averageScore"`
	Count        int       `json:"count" msgpack:"count"`
}

// BatchRiskAnalysisResult holds per-vault results in the caller's address order
type BatchRiskAnalysisResult struct {
	Results  []VaultRiskResult `json:"results" msgpack:"results"`
	Summary  BatchSummary      `json:"summary" msgpack:"summary"`
	NotFound []string          `json:"notFound,omitempty" msgpack:"notFound,omitempty"`
}
