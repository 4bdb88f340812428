package model

import (
	"github.com/yourorg/vault-risk-engine/internal/types"
)

// Curator manages one or more vaults
type Curator struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Website     string `json:"website"`
	LogoURL     string `json:"logoUrl"`
}

// VaultState is the raw ledger state of a vault as reported upstream.
// Nullable fields stay pointers here and become Optional values when the
// risk input is assembled.
type VaultState struct {
	TotalAssetsUSD float64 `json:"totalAssetsUsd"`
	PricePerShare  float64 `json:"pricePerShare"`
	HighWaterMark  float64 `json:"highWaterMark"`

	// Fees are in basis points (200 == 2%)
	ManagementFee  float64 `json:"managementFee"`
	PerformanceFee float64 `json:"performanceFee"`

	SafeAssetBalanceUSD  *float64 `json:"safeAssetBalanceUsd"`
	PendingSettlementUSD float64  `json:"pendingSettlementUsd"`
	MaxCapacityUSD       *float64 `json:"maxCapacityUsd"`

	WeeklyAPR    *float64 `json:"weeklyApr"`
	MonthlyAPR   *float64 `json:"monthlyApr"`
	YearlyAPR    *float64 `json:"yearlyApr"`
	InceptionAPR *float64 `json:"inceptionApr"`

	NativeYieldsAPR float64 `json:"nativeYieldsApr"`
	AirdropsAPR     float64 `json:"airdropsApr"`
	IncentivesAPR   float64 `json:"incentivesApr"`

	IntegrationCount           *int    `json:"integrationCount"`
	SettlementCount            int     `json:"settlementCount"`
	AvgSettlementIntervalHours float64 `json:"avgSettlementIntervalHours"`
}

// PricePoint is one sample of a vault's price per share
type PricePoint struct {
	Timestamp     int64   `json:"timestamp"`
	PricePerShare float64 `json:"pricePerShare"`
}

// Vault is an upstream vault record
type Vault struct {
	Address string        `json:"address"`
	Name    string        `json:"name"`
	Symbol  string        `json:"symbol"`
	ChainID types.ChainID `json:"chainId"`

	// Inception is a unix timestamp in seconds, 0 when unknown
	Inception int64 `json:"inception"`

	Curators        []Curator  `json:"curators"`
	LinkedAddresses []string   `json:"linkedAddresses"`
	State           VaultState `json:"state"`

	// PriceHistory is only filled by batch queries
	PriceHistory []PricePoint `json:"priceHistory,omitempty"`
}

// CuratorID returns the id of the vault's first curator
func (v Vault) CuratorID() (string, bool) {
	if len(v.Curators) == 0 || v.Curators[0].ID == "" {
		return "", false
	}
	return v.Curators[0].ID, true
}

// CompositionItem is one protocol position held by an address
type CompositionItem struct {
	Protocol string  `json:"protocol"`
	ValueUSD float64 `json:"valueUsd"`
}
