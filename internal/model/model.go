// Package model defines the core data structures for the vault risk engine.
package model

import (
	"github.com/yourorg/vault-risk-engine/internal/types"
)

// RiskLevel is the coarse band an overall risk score falls into
type RiskLevel string

// Risk bands, ordered from safest to riskiest
const (
	RiskLow      RiskLevel = "Low"
	RiskMedium   RiskLevel = "Medium"
	RiskHigh     RiskLevel = "High"
	RiskCritical RiskLevel = "Critical"
)

// DataQuality summarises how many factors had to fall back to defaults
type DataQuality string

// Data quality grades
const (
	QualityHigh   DataQuality = "high"
	QualityMedium DataQuality = "medium"
	QualityLow    DataQuality = "low"
)

// WalletProtocol is the synthetic composition entry for undeployed capital
const WalletProtocol = "wallet"

// FactorScores holds the fourteen individual factor scores, each in [0,1]
type FactorScores struct {
	TVL                      float64 `json:"tvl" msgpack:"tvl"`
	Concentration            float64 `json:"concentration" msgpack:"concentration"`
	Volatility               float64 `json:"volatility" msgpack:"volatility"`
	Age                      float64 `json:"age" msgpack:"age"`
	Curator                  float64 `json:"curator" msgpack:"curator"`
	Fee                      float64 `json:"fee" msgpack:"fee"`
	Liquidity                float64 `json:"liquidity" msgpack:"liquidity"`
	APRConsistency           float64 `json:"aprConsistency" msgpack:"aprConsistency"`
	YieldSustainability      float64 `json:"yieldSustainability" msgpack:"yieldSustainability"`
	Settlement               float64 `json:"settlement" msgpack:"settlement"`
	IntegrationComplexity    float64 `json:"integrationComplexity" msgpack:"integrationComplexity"`
	CapacityUtilization      float64 `json:"capacityUtilization" msgpack:"capacityUtilization"`
	ProtocolDiversification  float64 `json:"protocolDiversification" msgpack:"protocolDiversification"`
	TopProtocolConcentration float64 `json:"topProtocolConcentration" msgpack:"topProtocolConcentration"`
}

// RiskScoreBreakdown is the immutable output of a single risk analysis
type RiskScoreBreakdown struct {
	Factors          FactorScores `json:"factors" msgpack:"factors"`
	OverallRisk      float64      `json:"overallRisk" msgpack:"overallRisk"`
	RiskLevel        RiskLevel    `json:"riskLevel" msgpack:"riskLevel"`
	DataQuality      DataQuality  `json:"dataQuality" msgpack:"dataQuality"`
	DataQualityNotes []string     `json:"dataQualityNotes" msgpack:"dataQualityNotes"`
}

// FactorScore names one factor and its score
type FactorScore struct {
	Name  string  `json:"name" msgpack:"name"`
	Score float64 `json:"score" msgpack:"score"`
}

// ComparativeRiskContext ranks a vault's risk against its peers
type ComparativeRiskContext struct {
	Percentile        float64 `json:"percentile" msgpack:"percentile"`
	BetterThanPercent float64 `json:"betterThanPercent" msgpack:"betterThanPercent"`
	MedianRisk        float64 `json:"medianRisk" msgpack:"medianRisk"`
	AverageRisk       float64 `json:"averageRisk" msgpack:"averageRisk"`
	IsOutlier         bool    `json:"isOutlier" msgpack:"isOutlier"`
	RiskRanking       string  `json:"riskRanking" msgpack:"riskRanking"`
	PeerCount         int     `json:"peerCount" msgpack:"peerCount"`
}

// CompositionEntry is one protocol exposure inside a vault's composition
type CompositionEntry struct {
	ProtocolKey        string  `json:"protocolKey" msgpack:"protocolKey"`
	ValueUSD           float64 `json:"valueUsd" msgpack:"valueUsd"`
	RepartitionPercent float64 `json:"repartitionPercent" msgpack:"repartitionPercent"`
}

// Composition is the (possibly merged) protocol breakdown of a vault
type Composition struct {
	Entries []CompositionEntry `json:"entries" msgpack:"entries"`

	// Addresses that were queried and how many of them failed
	TotalAddresses  int `json:"totalAddresses" msgpack:"totalAddresses"`
	FailedAddresses int `json:"failedAddresses" msgpack:"failedAddresses"`
}

// RiskAnalysis is the result of analysing a single vault
type RiskAnalysis struct {
	Address     string                  `json:"address" msgpack:"address"`
	ChainID     types.ChainID           `json:"chainId" msgpack:"chainId"`
	Name        string                  `json:"name" msgpack:"name"`
	RiskScore   float64                 `json:"riskScore" msgpack:"riskScore"`
	RiskLevel   RiskLevel               `json:"riskLevel" msgpack:"riskLevel"`
	TopFactors  []FactorScore           `json:"topFactors" msgpack:"topFactors"`
	Breakdown   *RiskScoreBreakdown     `json:"breakdown,omitempty" msgpack:"breakdown,omitempty"`
	Comparative *ComparativeRiskContext `json:"comparative,omitempty" msgpack:"comparative,omitempty"`
	Composition *Composition            `json:"composition,omitempty" msgpack:"composition,omitempty"`
}
