package validation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/vault-risk-engine/internal/model"
	"github.com/yourorg/vault-risk-engine/internal/types"
)

const (
	addrA = "0xAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAa"
	addrB = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	addrC = "0xcccccccccccccccccccccccccccccccccccccccc"
)

func TestAddress(t *testing.T) {
	got, err := Address("  " + addrA + " ")
	require.NoError(t, err)
	assert.Equal(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", got)

	for _, bad := range []string{"", "0x123", "not-an-address", addrA + "ff"} {
		_, err := Address(bad)
		assert.ErrorIs(t, err, ErrInvalidRequest, bad)
	}
}

func TestChain(t *testing.T) {
	for _, ok := range []types.ChainID{types.ChainEthereum, types.ChainBase, types.ChainArbitrum, types.ChainAvalanche} {
		assert.NoError(t, Chain(ok), ok.Name())
	}
	for _, bad := range []types.ChainID{0, -1, 999, 250} {
		assert.ErrorIs(t, Chain(bad), ErrInvalidRequest, bad.String())
	}
}

func TestFormatAndStrategy(t *testing.T) {
	f, err := Format("")
	require.NoError(t, err)
	assert.Equal(t, FormatDetailed, f)

	f, err = Format("Summary")
	require.NoError(t, err)
	assert.Equal(t, FormatSummary, f)

	_, err = Format("markdown")
	assert.ErrorIs(t, err, ErrInvalidRequest)

	s, err := Strategy("RISK_PARITY")
	require.NoError(t, err)
	assert.Equal(t, model.StrategyRiskParity, s)

	s, err = Strategy("")
	require.NoError(t, err)
	assert.Equal(t, model.StrategyEqualWeight, s)

	_, err = Strategy("kelly")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestBatchTargets(t *testing.T) {
	tests := []struct {
		name      string
		addresses []string
		chainID   types.ChainID
		chainIDs  []types.ChainID
		wantErr   bool
	}{
		{"same chain", []string{addrA, addrB}, types.ChainEthereum, nil, false},
		{"cross chain", []string{addrA, addrB, addrC}, 0, []types.ChainID{types.ChainBase, types.ChainEthereum, types.ChainBase}, false},
		{"same address on two chains", []string{addrA, addrA}, 0, []types.ChainID{types.ChainBase, types.ChainEthereum}, false},
		{"too few", []string{addrA}, types.ChainEthereum, nil, true},
		{"too many", make([]string, 11), types.ChainEthereum, nil, true},
		{"mismatched chain ids", []string{addrA, addrB}, 0, []types.ChainID{types.ChainBase}, true},
		{"unsupported chain", []string{addrA, addrB}, 999, nil, true},
		{"duplicate", []string{addrA, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"}, types.ChainEthereum, nil, true},
		{"bad address", []string{addrA, "0xnope"}, types.ChainEthereum, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BatchTargets(tt.addresses, tt.chainID, tt.chainIDs)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRequest)
				return
			}
			require.NoError(t, err)
			require.Len(t, got, len(tt.addresses))
			for i, target := range got {
				if len(tt.chainIDs) > 0 {
					assert.Equal(t, tt.chainIDs[i], target.ChainID)
				} else {
					assert.Equal(t, tt.chainID, target.ChainID)
				}
			}
		})
	}
}

func TestPortfolioAddresses(t *testing.T) {
	got, err := PortfolioAddresses([]string{addrB, addrA}, []float64{10, 20})
	require.NoError(t, err)
	assert.Equal(t, []string{addrB, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"}, got)

	_, err = PortfolioAddresses(nil, nil)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = PortfolioAddresses([]string{addrA}, []float64{-1})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = PortfolioAddresses([]string{addrA, addrA}, []float64{1, 2})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestFilterPriceHistory(t *testing.T) {
	points := []model.PricePoint{
		{Timestamp: 300, PricePerShare: 1.03},
		{Timestamp: 100, PricePerShare: 1.00},
		{Timestamp: 200, PricePerShare: 0},
		{Timestamp: 0, PricePerShare: 1.01},
		{Timestamp: 250, PricePerShare: math.NaN()},
		{Timestamp: 200, PricePerShare: 1.02},
	}

	got := FilterPriceHistory(points)
	assert.Equal(t, []model.PricePoint{
		{Timestamp: 100, PricePerShare: 1.00},
		{Timestamp: 200, PricePerShare: 1.02},
		{Timestamp: 300, PricePerShare: 1.03},
	}, got)
	assert.Equal(t, []float64{1.00, 1.02, 1.03}, Prices(got))

	assert.Empty(t, FilterPriceHistory(nil))
}
