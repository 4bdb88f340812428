package analysis

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/yourorg/vault-risk-engine/internal/model"
	"github.com/yourorg/vault-risk-engine/internal/types"
)

var errFake = errors.New("fake upstream failure")

// fakeSource serves canned vault data and records how it was called
type fakeSource struct {
	mu sync.Mutex

	vaults       map[vaultKey]model.Vault
	prices       map[string][]model.PricePoint
	compositions map[string][]model.CompositionItem
	compErrs     map[string]error
	compDelays   map[string]time.Duration

	chainErr  error
	priceErr  error
	batchErrs map[types.ChainID]error

	calls         map[string]int
	compCompleted []string
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		vaults:       make(map[vaultKey]model.Vault),
		prices:       make(map[string][]model.PricePoint),
		compositions: make(map[string][]model.CompositionItem),
		compErrs:     make(map[string]error),
		compDelays:   make(map[string]time.Duration),
		batchErrs:    make(map[types.ChainID]error),
		calls:        make(map[string]int),
	}
}

func (f *fakeSource) add(v model.Vault) {
	f.vaults[keyOf(v.ChainID, v.Address)] = v
}

func (f *fakeSource) record(op string) {
	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()
}

func (f *fakeSource) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeSource) Vault(_ context.Context, chain types.ChainID, address string) (*model.Vault, error) {
	f.record("vault")
	v, ok := f.vaults[keyOf(chain, address)]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (f *fakeSource) chain(chain types.ChainID) []model.Vault {
	var out []model.Vault
	for k, v := range f.vaults {
		if k.chain == chain {
			out = append(out, v)
		}
	}
	return out
}

func (f *fakeSource) ChainVaults(_ context.Context, chain types.ChainID) ([]model.Vault, error) {
	f.record("chain_vaults")
	if f.chainErr != nil {
		return nil, f.chainErr
	}
	return f.chain(chain), nil
}

func (f *fakeSource) CuratorVaults(_ context.Context, curatorID string) ([]model.Vault, error) {
	f.record("curator_vaults")
	var out []model.Vault
	for _, v := range f.vaults {
		if id, ok := v.CuratorID(); ok && id == curatorID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeSource) PriceHistory(_ context.Context, _ types.ChainID, address string) ([]model.PricePoint, error) {
	f.record("price_history")
	if f.priceErr != nil {
		return nil, f.priceErr
	}
	return f.prices[strings.ToLower(address)], nil
}

func (f *fakeSource) Composition(_ context.Context, _ types.ChainID, address string) ([]model.CompositionItem, error) {
	f.record("composition")
	address = strings.ToLower(address)
	if d := f.compDelays[address]; d > 0 {
		time.Sleep(d)
	}
	defer func() {
		f.mu.Lock()
		f.compCompleted = append(f.compCompleted, address)
		f.mu.Unlock()
	}()
	if err := f.compErrs[address]; err != nil {
		return nil, err
	}
	items, ok := f.compositions[address]
	if !ok {
		return []model.CompositionItem{}, nil
	}
	return items, nil
}

func (f *fakeSource) BatchVaults(_ context.Context, chain types.ChainID, addresses []string) ([]model.Vault, []model.Vault, error) {
	f.record("batch_vaults")
	if err := f.batchErrs[chain]; err != nil {
		return nil, nil, err
	}
	var targets []model.Vault
	for _, a := range addresses {
		if v, ok := f.vaults[keyOf(chain, a)]; ok {
			v.PriceHistory = f.prices[strings.ToLower(a)]
			targets = append(targets, v)
		}
	}
	return targets, f.chain(chain), nil
}

func ptr[T any](v T) *T { return &v }

// sampleVault is a mature, well-funded vault with a complete state
func sampleVault(chain types.ChainID, address string, tvl float64) model.Vault {
	return model.Vault{
		Address:   address,
		Name:      "Vault " + address,
		ChainID:   chain,
		Inception: testNow.Add(-400 * 24 * time.Hour).Unix(),
		Curators: []model.Curator{{
			ID: "curator-1", Name: "Steady Capital", Description: "desc",
			Website: "https://steady.example", LogoURL: "https://steady.example/logo.png",
		}},
		State: model.VaultState{
			TotalAssetsUSD:             tvl,
			PricePerShare:              1.04,
			HighWaterMark:              1.05,
			ManagementFee:              100,
			PerformanceFee:             1000,
			SafeAssetBalanceUSD:        ptr(500_000.0),
			PendingSettlementUSD:       10_000,
			WeeklyAPR:                  ptr(6.0),
			MonthlyAPR:                 ptr(6.2),
			YearlyAPR:                  ptr(6.1),
			InceptionAPR:               ptr(5.9),
			NativeYieldsAPR:            6,
			IntegrationCount:           ptr(2),
			SettlementCount:            40,
			AvgSettlementIntervalHours: 24,
		},
	}
}

var testNow = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func steadyPrices(n int) []model.PricePoint {
	out := make([]model.PricePoint, n)
	p := 1.0
	for i := range out {
		out[i] = model.PricePoint{Timestamp: int64(1_700_000_000 + i*86_400), PricePerShare: p}
		p *= 1.0002
	}
	return out
}
