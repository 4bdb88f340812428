package analysis

import (
	"strings"
	"time"

	"github.com/yourorg/vault-risk-engine/internal/model"
)

// bpsPerPercent converts upstream basis-point fees into percentages
const bpsPerPercent = 100

// inputFacts is everything the risk input is assembled from
type inputFacts struct {
	vault         model.Vault
	chainVaults   []model.Vault
	curatorVaults []model.Vault
	prices        []float64
	composition   model.Optional[model.Composition]
	now           time.Time
}

// buildInput normalizes upstream records into the scorer's input. Absent
// upstream fields become absent Optionals.
func buildInput(f inputFacts) model.VaultRiskInput {
	st := f.vault.State

	in := model.VaultRiskInput{
		TVL:                st.TotalAssetsUSD,
		TotalProtocolTVL:   protocolTVL(f.vault, f.chainVaults),
		PricePerShare:      f.prices,
		AgeDays:            ageDays(f.vault.Inception, f.now),
		Curator:            curatorProfile(f.vault, f.curatorVaults),
		Fees:               fees(st, f.prices),
		SafeAssetsUSD:      model.FromPtr(st.SafeAssetBalanceUSD),
		PendingRedemptions: st.PendingSettlementUSD,
		APR: model.APRSeries{
			Weekly:    model.FromPtr(st.WeeklyAPR),
			Monthly:   model.FromPtr(st.MonthlyAPR),
			Yearly:    model.FromPtr(st.YearlyAPR),
			Inception: model.FromPtr(st.InceptionAPR),
		},
		YieldSources: model.YieldSources{
			NativeAPR:    st.NativeYieldsAPR,
			AirdropAPR:   st.AirdropsAPR,
			IncentiveAPR: st.IncentivesAPR,
		},
		IntegrationCount: model.FromPtr(st.IntegrationCount),
		Composition:      f.composition,
	}

	if st.SettlementCount > 0 {
		in.Settlement = model.Some(model.SettlementStats{
			Count:                st.SettlementCount,
			AverageIntervalHours: st.AvgSettlementIntervalHours,
		})
	}
	if st.MaxCapacityUSD != nil && *st.MaxCapacityUSD > 0 {
		in.CapacityUtilization = model.Some(st.TotalAssetsUSD / *st.MaxCapacityUSD)
	}
	return in
}

// protocolTVL sums the TVL of every vault on the chain, counting the
// target once even if the listing omits it
func protocolTVL(target model.Vault, vaults []model.Vault) float64 {
	var total float64
	seen := false
	for _, v := range vaults {
		if sameAddress(v.Address, target.Address) {
			seen = true
		}
		if v.State.TotalAssetsUSD > 0 {
			total += v.State.TotalAssetsUSD
		}
	}
	if !seen && target.State.TotalAssetsUSD > 0 {
		total += target.State.TotalAssetsUSD
	}
	return total
}

func ageDays(inception int64, now time.Time) model.Optional[float64] {
	if inception <= 0 {
		return model.None[float64]()
	}
	return model.Some(now.Sub(time.Unix(inception, 0)).Hours() / 24)
}

// curatorProfile derives a track record from the curator's vaults. A vault
// counts as a success when its inception APR is positive, or its yearly APR
// when inception APR is not reported.
func curatorProfile(v model.Vault, curatorVaults []model.Vault) model.Optional[model.CuratorProfile] {
	if _, ok := v.CuratorID(); !ok {
		return model.None[model.CuratorProfile]()
	}
	c := v.Curators[0]

	successes := 0
	for _, cv := range curatorVaults {
		if successful(cv.State) {
			successes++
		}
	}

	profile := model.CuratorProfile{
		VaultCount: len(curatorVaults),
		Signals: model.Some(model.CuratorSignals{
			HasWebsite:     strings.TrimSpace(c.Website) != "",
			HasDescription: strings.TrimSpace(c.Description) != "",
			HasLogo:        strings.TrimSpace(c.LogoURL) != "",
		}),
	}
	if len(curatorVaults) > 0 {
		profile.SuccessRate = float64(successes) / float64(len(curatorVaults))
	}
	return model.Some(profile)
}

func successful(st model.VaultState) bool {
	if st.InceptionAPR != nil {
		return *st.InceptionAPR > 0
	}
	return st.YearlyAPR != nil && *st.YearlyAPR > 0
}

// fees converts basis points and decides whether the performance fee is
// currently chargeable, which it is only above the high-water mark
func fees(st model.VaultState, prices []float64) model.FeeStructure {
	pps := st.PricePerShare
	if pps <= 0 && len(prices) > 0 {
		pps = prices[len(prices)-1]
	}
	return model.FeeStructure{
		ManagementPercent:  st.ManagementFee / bpsPerPercent,
		PerformancePercent: st.PerformanceFee / bpsPerPercent,
		PerformanceActive:  st.HighWaterMark > 0 && pps > st.HighWaterMark,
	}
}

func sameAddress(a, b string) bool {
	return strings.EqualFold(a, b)
}

// peerTVLs returns the TVL of every vault except the target
func peerTVLs(target model.Vault, vaults []model.Vault) []float64 {
	out := make([]float64, 0, len(vaults))
	for _, v := range vaults {
		if sameAddress(v.Address, target.Address) && v.ChainID == target.ChainID {
			continue
		}
		out = append(out, v.State.TotalAssetsUSD)
	}
	return out
}
