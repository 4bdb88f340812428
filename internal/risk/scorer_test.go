package risk

import (
	"encoding/json"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/vault-risk-engine/internal/model"
)

// lowRiskInput mirrors a well established vault: $5M of a $50M protocol,
// 400 days old, reliable curator, modest fees and ample liquidity.
func lowRiskInput() model.VaultRiskInput {
	return model.VaultRiskInput{
		TVL:              5_000_000,
		TotalProtocolTVL: 50_000_000,
		PricePerShare:    []float64{1.000, 1.001, 1.002, 1.003, 1.004},
		AgeDays:          model.Some(400.0),
		Curator:          model.Some(model.CuratorProfile{VaultCount: 3, SuccessRate: 0.9}),
		Fees: model.FeeStructure{
			ManagementPercent:  1,
			PerformancePercent: 10,
			PerformanceActive:  false,
		},
		SafeAssetsUSD:      model.Some(500_000.0),
		PendingRedemptions: 10_000,
	}
}

func fullInput() model.VaultRiskInput {
	in := lowRiskInput()
	in.APR = model.APRSeries{
		Weekly:    model.Some(8.0),
		Monthly:   model.Some(8.5),
		Yearly:    model.Some(7.9),
		Inception: model.Some(8.2),
	}
	in.YieldSources = model.YieldSources{NativeAPR: 7, AirdropAPR: 1, IncentiveAPR: 0.5}
	in.Settlement = model.Some(model.SettlementStats{Count: 40, AverageIntervalHours: 24})
	in.IntegrationCount = model.Some(2)
	in.CapacityUtilization = model.Some(0.5)
	in.Composition = model.Some(model.Composition{
		Entries: []model.CompositionEntry{
			{ProtocolKey: "aave", ValueUSD: 2_000_000},
			{ProtocolKey: "morpho", ValueUSD: 2_000_000},
			{ProtocolKey: model.WalletProtocol, ValueUSD: 1_000_000},
		},
		TotalAddresses: 1,
	})
	return in
}

func assertInUnitRange(t *testing.T, b model.RiskScoreBreakdown) {
	t.Helper()
	for _, f := range Factors(b.Factors) {
		assert.GreaterOrEqual(t, f.Score, 0.0, "factor %s below 0", f.Name)
		assert.LessOrEqual(t, f.Score, 1.0, "factor %s above 1", f.Name)
	}
	assert.GreaterOrEqual(t, b.OverallRisk, 0.0)
	assert.LessOrEqual(t, b.OverallRisk, 1.0)
}

func TestWeightsSumToOne(t *testing.T) {
	var sum float64
	for _, name := range FactorOrder {
		w, ok := Weights[name]
		require.True(t, ok, "missing weight for %s", name)
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Len(t, Weights, len(FactorOrder))
}

func TestScore_LowRiskExample(t *testing.T) {
	b := Score(lowRiskInput())

	assert.Equal(t, model.RiskLow, b.RiskLevel, "overall risk %.4f", b.OverallRisk)
	assert.InDelta(t, 0.35, b.Factors.TVL, 1e-9)
	assert.InDelta(t, 0.1, b.Factors.Concentration, 1e-9)
	assert.InDelta(t, 0.1, b.Factors.Age, 1e-9)
	assert.InDelta(t, 0.1, b.Factors.Curator, 1e-9)
	assert.InDelta(t, 0.1, b.Factors.Liquidity, 1e-9)
	assert.Less(t, b.Factors.Volatility, 0.01)
	assertInUnitRange(t, b)
}

func TestScore_FullInputHasHighQuality(t *testing.T) {
	b := Score(fullInput())

	assert.Equal(t, model.QualityHigh, b.DataQuality)
	assert.Empty(t, b.DataQualityNotes)
	assert.NotNil(t, b.DataQualityNotes)
	assert.Equal(t, model.RiskLow, b.RiskLevel)
	assert.InDelta(t, 0.5, b.Factors.ProtocolDiversification, 1e-9)
	assert.InDelta(t, 0.3, b.Factors.TopProtocolConcentration, 1e-9)
	assertInUnitRange(t, b)
}

func TestScore_EmptyPriceHistoryDefaultsVolatility(t *testing.T) {
	in := fullInput()
	in.PricePerShare = nil

	b := Score(in)

	assert.Equal(t, DefaultScore, b.Factors.Volatility)
	require.Len(t, b.DataQualityNotes, 1)
	assert.Contains(t, b.DataQualityNotes[0], FactorVolatility)
	assert.Equal(t, model.QualityMedium, b.DataQuality)
}

func TestScore_MissingDataIsRecordedInFactorOrder(t *testing.T) {
	b := Score(model.VaultRiskInput{TVL: 1_000})

	assert.Equal(t, model.QualityLow, b.DataQuality)
	var prefixes []string
	for _, n := range b.DataQualityNotes {
		var name string
		for i := range n {
			if n[i] == ':' {
				name = n[:i]
				break
			}
		}
		prefixes = append(prefixes, name)
	}
	assert.Equal(t, []string{
		FactorConcentration,
		FactorVolatility,
		FactorAge,
		FactorCurator,
		FactorLiquidity,
		FactorAPRConsistency,
		FactorYieldSustainability,
		FactorSettlement,
		FactorIntegrationComplexity,
		FactorCapacityUtilization,
		FactorProtocolDiversification,
		FactorTopProtocolConcentration,
	}, prefixes)
	assertInUnitRange(t, b)
}

func TestScore_PartialBundleCompositionDowngradesQuality(t *testing.T) {
	in := fullInput()
	comp, _ := in.Composition.Get()
	comp.TotalAddresses = 3
	comp.FailedAddresses = 1
	in.Composition = model.Some(comp)

	b := Score(in)

	require.Len(t, b.DataQualityNotes, 1)
	assert.Equal(t, "composition: data unavailable for 1 of 3 bundle addresses", b.DataQualityNotes[0])
	assert.Equal(t, model.QualityMedium, b.DataQuality)
	assert.InDelta(t, 0.5, b.Factors.ProtocolDiversification, 1e-9)
}

func TestScore_CompositionShapes(t *testing.T) {
	tests := []struct {
		name          string
		entries       []model.CompositionEntry
		wantDiversity float64
		wantTop       float64
	}{
		{
			name:          "single protocol",
			entries:       []model.CompositionEntry{{ProtocolKey: "aave", ValueUSD: 10}},
			wantDiversity: 1,
			wantTop:       1,
		},
		{
			name: "dominant protocol crosses the step",
			entries: []model.CompositionEntry{
				{ProtocolKey: "aave", ValueUSD: 60},
				{ProtocolKey: "morpho", ValueUSD: 40},
			},
			wantDiversity: 0.52,
			wantTop:       0.68,
		},
		{
			name: "wallet only falls back",
			entries: []model.CompositionEntry{
				{ProtocolKey: model.WalletProtocol, ValueUSD: 100},
			},
			wantDiversity: DefaultScore,
			wantTop:       DefaultScore,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := fullInput()
			in.Composition = model.Some(model.Composition{Entries: tt.entries, TotalAddresses: 1})
			b := Score(in)
			assert.InDelta(t, tt.wantDiversity, b.Factors.ProtocolDiversification, 1e-9)
			assert.InDelta(t, tt.wantTop, b.Factors.TopProtocolConcentration, 1e-9)
		})
	}
}

func TestCapacityRiskCurves(t *testing.T) {
	tests := map[float64]float64{
		0:    0.5,
		0.05: 0.35,
		0.1:  0.2,
		0.5:  0.2,
		0.8:  0.2,
		0.9:  0.4,
		1.0:  1.0,
		1.5:  1.0,
	}
	for u, want := range tests {
		assert.InDelta(t, want, capacityRisk(u), 1e-9, "utilization %v", u)
	}
}

func TestFeeRiskDependsOnPerformanceActivity(t *testing.T) {
	inactive := feeRisk(model.FeeStructure{ManagementPercent: 2, PerformancePercent: 20})
	active := feeRisk(model.FeeStructure{ManagementPercent: 2, PerformancePercent: 20, PerformanceActive: true})
	assert.Less(t, inactive, active)
	assert.InDelta(t, 1.0, feeRisk(model.FeeStructure{ManagementPercent: 50, PerformancePercent: 90, PerformanceActive: true}), 1e-9)
}

func TestLevelFor(t *testing.T) {
	tests := []struct {
		overall float64
		want    model.RiskLevel
	}{
		{0, model.RiskLow},
		{0.2999, model.RiskLow},
		{0.3, model.RiskMedium},
		{0.5999, model.RiskMedium},
		{0.6, model.RiskHigh},
		{0.7999, model.RiskHigh},
		{0.8, model.RiskCritical},
		{1, model.RiskCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelFor(tt.overall), "overall %v", tt.overall)
	}
}

func TestScore_IsDeterministic(t *testing.T) {
	in := fullInput()
	first, err := json.Marshal(Score(in))
	require.NoError(t, err)
	second, err := json.Marshal(Score(in))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestScore_FactorsStayInRangeForExtremeInputs(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	extreme := func() float64 {
		switch rng.Intn(5) {
		case 0:
			return 0
		case 1:
			return -rng.Float64() * 1e9
		case 2:
			return rng.Float64() * 1e12
		case 3:
			return math.MaxFloat64 / 4
		default:
			return rng.Float64()
		}
	}

	for i := 0; i < 500; i++ {
		prices := make([]float64, rng.Intn(8))
		for j := range prices {
			prices[j] = extreme()
		}
		in := model.VaultRiskInput{
			TVL:              extreme(),
			TotalProtocolTVL: extreme(),
			PricePerShare:    prices,
			AgeDays:          model.Some(extreme()),
			Curator:          model.Some(model.CuratorProfile{VaultCount: rng.Intn(10), SuccessRate: extreme()}),
			Fees: model.FeeStructure{
				ManagementPercent:  extreme(),
				PerformancePercent: extreme(),
				PerformanceActive:  rng.Intn(2) == 0,
			},
			SafeAssetsUSD:       model.Some(extreme()),
			PendingRedemptions:  extreme(),
			APR:                 model.APRSeries{Weekly: model.Some(extreme()), Yearly: model.Some(extreme())},
			YieldSources:        model.YieldSources{NativeAPR: extreme(), AirdropAPR: extreme(), IncentiveAPR: extreme()},
			Settlement:          model.Some(model.SettlementStats{Count: rng.Intn(3), AverageIntervalHours: extreme()}),
			IntegrationCount:    model.Some(rng.Intn(20) - 2),
			CapacityUtilization: model.Some(extreme()),
			Composition: model.Some(model.Composition{Entries: []model.CompositionEntry{
				{ProtocolKey: "a", ValueUSD: extreme()},
				{ProtocolKey: "b", ValueUSD: extreme()},
			}}),
		}
		assertInUnitRange(t, Score(in))
	}
}

func TestTopFactors(t *testing.T) {
	f := model.FactorScores{Volatility: 0.9, Fee: 0.9, TVL: 0.4, Age: 0.7}
	top := TopFactors(f, 3)
	require.Len(t, top, 3)
	assert.Equal(t, FactorVolatility, top[0].Name)
	assert.Equal(t, FactorFee, top[1].Name)
	assert.Equal(t, FactorAge, top[2].Name)
}
