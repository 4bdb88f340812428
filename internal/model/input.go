package model

// CuratorSignals are the professional-presence markers of a curator
type CuratorSignals struct {
	HasWebsite     bool
	HasDescription bool
	HasLogo        bool
}

// Missing returns how many signals are absent
func (s CuratorSignals) Missing() int {
	n := 0
	for _, present := range []bool{s.HasWebsite, s.HasDescription, s.HasLogo} {
		if !present {
			n++
		}
	}
	return n
}

// CuratorProfile aggregates the track record of a vault's curator
type CuratorProfile struct {
	VaultCount  int
	SuccessRate float64
	Signals     Optional[CuratorSignals]
}

// FeeStructure holds fees as percentages (1.0 == 1%)
type FeeStructure struct {
	ManagementPercent  float64
	PerformancePercent float64

	// PerformanceActive is true when price-per-share is above the high-water mark
	PerformanceActive bool
}

// APRSeries holds per-period net APRs as percentages
type APRSeries struct {
	Weekly    Optional[float64]
	Monthly   Optional[float64]
	Yearly    Optional[float64]
	Inception Optional[float64]
}

// Values returns the present APRs in period order
func (a APRSeries) Values() []float64 {
	var out []float64
	for _, o := range []Optional[float64]{a.Weekly, a.Monthly, a.Yearly, a.Inception} {
		if v, ok := o.Get(); ok {
			out = append(out, v)
		}
	}
	return out
}

// YieldSources decomposes total APR into its origins
type YieldSources struct {
	NativeAPR    float64
	AirdropAPR   float64
	IncentiveAPR float64
}

// Total returns the sum of all yield sources
func (y YieldSources) Total() float64 {
	return y.NativeAPR + y.AirdropAPR + y.IncentiveAPR
}

// SettlementStats describes how regularly pending flows get settled
type SettlementStats struct {
	Count                int
	AverageIntervalHours float64
}

// VaultRiskInput is the normalized set of facts the risk scorer consumes.
// It is built fresh for every analysis and never cached.
type VaultRiskInput struct {
	TVL              float64
	TotalProtocolTVL float64

	// PricePerShare is ordered oldest first
	PricePerShare []float64

	AgeDays Optional[float64]
	Curator Optional[CuratorProfile]
	Fees    FeeStructure

	SafeAssetsUSD      Optional[float64]
	PendingRedemptions float64

	APR          APRSeries
	YieldSources YieldSources
	Settlement   Optional[SettlementStats]

	IntegrationCount    Optional[int]
	CapacityUtilization Optional[float64]

	Composition Optional[Composition]
}
