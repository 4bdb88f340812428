package model

// Strategy selects how target allocations are computed
type Strategy string

// Supported optimization strategies
const (
	StrategyEqualWeight Strategy = "equal_weight"
	StrategyRiskParity  Strategy = "risk_parity"
	StrategyMaxSharpe   Strategy = "max_sharpe"
	StrategyMinVariance Strategy = "min_variance"
)

// Valid reports whether the strategy is one of the supported ones
func (s Strategy) Valid() bool {
	switch s {
	case StrategyEqualWeight, StrategyRiskParity, StrategyMaxSharpe, StrategyMinVariance:
		return true
	}
	return false
}

// PortfolioVault is an optimizer input: one holding and its return profile
type PortfolioVault struct {
	Address         string
	Name            string
	CurrentValueUSD float64

	// ExpectedReturn and Volatility are annualized decimals (0.08 == 8%)
	ExpectedReturn float64
	Volatility     float64
}

// PortfolioPosition is one vault's current and target allocation
type PortfolioPosition struct {
	VaultAddress             string  `json:"vaultAddress" msgpack:"vaultAddress"`
	Name                     string  `json:"name" msgpack:"name"`
	CurrentAllocationPercent float64 `json:"currentAllocationPercent" msgpack:"currentAllocationPercent"`
	TargetAllocationPercent  float64 `json:"targetAllocationPercent" msgpack:"targetAllocationPercent"`
	RebalanceAmountUSD       float64 `json:"rebalanceAmountUsd" msgpack:"rebalanceAmountUsd"`
	RebalancePercentage      float64 `json:"rebalancePercentage" msgpack:"rebalancePercentage"`
}

// PortfolioMetrics are aggregates of the target allocation
type PortfolioMetrics struct {
	ExpectedReturn       float64 `json:"expectedReturn" msgpack:"expectedReturn"`
	PortfolioRisk        float64 `json:"portfolioRisk" msgpack:"portfolioRisk"`
	SharpeRatio          float64 `json:"sharpeRatio" msgpack:"sharpeRatio"`
	DiversificationScore float64 `json:"diversificationScore" msgpack:"diversificationScore"`
}

// PortfolioOptimization is the optimizer's full output
type PortfolioOptimization struct {
	Strategy           Strategy            `json:"strategy" msgpack:"strategy"`
	Positions          []PortfolioPosition `json:"positions" msgpack:"positions"`
	Metrics            PortfolioMetrics    `json:"metrics" msgpack:"metrics"`
	TotalValueUSD      float64             `json:"totalValueUsd" msgpack:"totalValueUsd"`
	RebalanceNeeded    bool                `json:"rebalanceNeeded" msgpack:"rebalanceNeeded"`
	RebalanceThreshold float64             `json:"rebalanceThreshold" msgpack:"rebalanceThreshold"`
	Recommendations    []string            `json:"recommendations" msgpack:"recommendations"`
}
