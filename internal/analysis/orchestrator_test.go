package analysis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/vault-risk-engine/internal/model"
	"github.com/yourorg/vault-risk-engine/internal/risk"
	"github.com/yourorg/vault-risk-engine/internal/types"
)

func newOrchestrator(ds DataSource) *Orchestrator {
	return NewOrchestrator(ds, nil).WithClock(func() time.Time { return testNow })
}

// lowRiskSource mirrors a $5M vault inside a $50M protocol
func lowRiskSource() *fakeSource {
	src := newFakeSource()
	src.add(sampleVault(types.ChainEthereum, "0xa", 5_000_000))
	src.add(sampleVault(types.ChainEthereum, "0xb", 15_000_000))
	src.add(sampleVault(types.ChainEthereum, "0xc", 15_000_000))
	src.add(sampleVault(types.ChainEthereum, "0xd", 15_000_000))
	src.prices["0xa"] = steadyPrices(30)
	return src
}

func TestAnalyzeLowRiskVault(t *testing.T) {
	src := lowRiskSource()

	a, err := newOrchestrator(src).Analyze(context.Background(), types.ChainEthereum, "0xA", true)
	require.NoError(t, err)
	require.NotNil(t, a)

	b := a.Breakdown
	assert.Equal(t, model.RiskLow, b.RiskLevel)
	assert.InDelta(t, 0.1608, b.OverallRisk, 0.001)
	assert.InDelta(t, 0.35, b.Factors.TVL, 1e-9)
	assert.InDelta(t, 0.1, b.Factors.Concentration, 1e-9)
	assert.InDelta(t, 0.1, b.Factors.Age, 1e-9)
	assert.InDelta(t, 0.0, b.Factors.Curator, 1e-9)
	assert.InDelta(t, 0.12+0.4*(10.0/30)*0.5, b.Factors.Fee, 1e-9, "performance fee below the high-water mark is inactive")
	assert.InDelta(t, 0.1, b.Factors.Liquidity, 1e-9)

	assert.Equal(t, model.QualityMedium, b.DataQuality)
	assert.Equal(t, []string{
		"capacityUtilization: vault has no capacity limit",
		"protocolDiversification: no composition data",
		"topProtocolConcentration: no composition data",
	}, b.DataQualityNotes)

	require.NotNil(t, a.Comparative)
	assert.Equal(t, 3, a.Comparative.PeerCount, "target is excluded from its peers")
	assert.Len(t, a.TopFactors, TopFactorCount)

	require.NotNil(t, a.Composition)
	assert.Empty(t, a.Composition.Entries)
	assert.Equal(t, 1, a.Composition.TotalAddresses)
}

func TestAnalyzeNotFound(t *testing.T) {
	src := lowRiskSource()

	a, err := newOrchestrator(src).Analyze(context.Background(), types.ChainBase, "0xa", true)
	require.NoError(t, err)
	assert.Nil(t, a)
	assert.Zero(t, src.callCount("chain_vaults"), "nothing else is fetched for a missing vault")
}

func TestAnalyzePrimaryFailure(t *testing.T) {
	src := lowRiskSource()
	src.priceErr = errFake

	a, err := newOrchestrator(src).Analyze(context.Background(), types.ChainEthereum, "0xa", false)
	assert.ErrorIs(t, err, errFake)
	assert.Nil(t, a)
}

func TestAnalyzeCompositionDegrades(t *testing.T) {
	src := lowRiskSource()
	v := sampleVault(types.ChainEthereum, "0xe", 2_000_000)
	v.LinkedAddresses = []string{"0xS1", "0xs2", "0xs3", "0xs1"}
	src.add(v)
	src.compositions["0xs1"] = []model.CompositionItem{{Protocol: "aave", ValueUSD: 600}, {Protocol: "wallet", ValueUSD: 100}}
	src.compErrs["0xs2"] = errFake
	src.compositions["0xs3"] = []model.CompositionItem{{Protocol: "Aave", ValueUSD: 200}, {Protocol: "morpho", ValueUSD: 200}}

	a, err := newOrchestrator(src).Analyze(context.Background(), types.ChainEthereum, "0xe", false)
	require.NoError(t, err)
	require.NotNil(t, a.Composition)

	assert.Equal(t, 3, a.Composition.TotalAddresses)
	assert.Equal(t, 1, a.Composition.FailedAddresses)
	assert.Contains(t, a.Breakdown.DataQualityNotes, "composition: data unavailable for 1 of 3 bundle addresses")

	entries := a.Composition.Entries
	require.Len(t, entries, 3)
	assert.Equal(t, "aave", entries[0].ProtocolKey)
	assert.InDelta(t, 80, entries[0].RepartitionPercent, 1e-9)
	assert.Equal(t, "morpho", entries[1].ProtocolKey)
	assert.InDelta(t, 20, entries[1].RepartitionPercent, 1e-9)
	assert.Equal(t, model.WalletProtocol, entries[2].ProtocolKey)

	// HHI of 0.8/0.2 and a dominant top protocol
	assert.InDelta(t, 0.68, a.Breakdown.Factors.ProtocolDiversification, 1e-9)
	assert.InDelta(t, 0.6+0.8*0.3, a.Breakdown.Factors.TopProtocolConcentration, 1e-9)
	assert.Nil(t, a.Comparative)
}

func TestAnalyzeAllCompositionFetchesFail(t *testing.T) {
	src := lowRiskSource()
	src.compErrs["0xa"] = errFake

	a, err := newOrchestrator(src).Analyze(context.Background(), types.ChainEthereum, "0xa", false)
	require.NoError(t, err, "composition failures never abort the analysis")
	assert.Nil(t, a.Composition)
	assert.Equal(t, risk.DefaultScore, a.Breakdown.Factors.ProtocolDiversification)
	assert.Contains(t, a.Breakdown.DataQualityNotes, "protocolDiversification: no composition data")
}

func TestAnalyzeWithoutPeers(t *testing.T) {
	src := newFakeSource()
	src.add(sampleVault(types.ChainBase, "0xonly", 1_000))

	a, err := newOrchestrator(src).Analyze(context.Background(), types.ChainBase, "0xonly", true)
	require.NoError(t, err)
	assert.Nil(t, a.Comparative, "comparative context needs at least one peer")
	assert.Contains(t, a.Breakdown.DataQualityNotes, "volatility: insufficient price history")
}

func TestAnalyzeCuratorTrackRecord(t *testing.T) {
	src := newFakeSource()
	target := sampleVault(types.ChainEthereum, "0xa", 5_000_000)
	target.Curators[0].Website = ""
	src.add(target)

	failed := sampleVault(types.ChainEthereum, "0xb", 1_000_000)
	failed.State.InceptionAPR = ptr(-1.0)
	src.add(failed)

	noInception := sampleVault(types.ChainEthereum, "0xc", 1_000_000)
	noInception.State.InceptionAPR = nil
	noInception.State.YearlyAPR = ptr(4.0)
	src.add(noInception)

	a, err := newOrchestrator(src).Analyze(context.Background(), types.ChainEthereum, "0xa", false)
	require.NoError(t, err)
	// success 2/3, three vaults, one missing signal
	assert.InDelta(t, 1-2.0/3+0.05, a.Breakdown.Factors.Curator, 1e-9)
}
