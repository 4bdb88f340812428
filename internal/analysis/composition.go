package analysis

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/vault-risk-engine/internal/metrics"
	"github.com/yourorg/vault-risk-engine/internal/model"
	"github.com/yourorg/vault-risk-engine/internal/types"
)

// CompositionSource fetches the protocol positions of one address
type CompositionSource interface {
	Composition(ctx context.Context, chain types.ChainID, address string) ([]model.CompositionItem, error)
}

// bundleAddresses returns the linked addresses of a vault, or the vault
// address itself when it has none
func bundleAddresses(v model.Vault) []string {
	seen := make(map[string]struct{}, len(v.LinkedAddresses))
	var out []string
	for _, a := range v.LinkedAddresses {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" {
			continue
		}
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	if len(out) == 0 {
		return []string{strings.ToLower(v.Address)}
	}
	return out
}

// resolveComposition fetches every bundle address concurrently and merges
// what arrives. A failed address is logged and skipped. The result is
// absent only when every address failed.
func resolveComposition(ctx context.Context, src CompositionSource, m *metrics.Metrics, chain types.ChainID, v model.Vault) model.Optional[model.Composition] {
	addresses := bundleAddresses(v)
	parts := make([][]model.CompositionItem, len(addresses))
	failed := make([]bool, len(addresses))

	var wg sync.WaitGroup
	for i, addr := range addresses {
		wg.Add(1)
		go func(i int, addr string) {
			defer wg.Done()
			items, err := src.Composition(ctx, chain, addr)
			if err != nil {
				failed[i] = true
				m.CompositionDegraded()
				logrus.WithFields(logrus.Fields{
					"chain_id": int(chain),
					"address":  addr,
					"vault":    v.Address,
				}).Warnf("Composition unavailable, continuing without it: %v", err)
				return
			}
			parts[i] = items
		}(i, addr)
	}
	wg.Wait()

	nFailed := 0
	var ok [][]model.CompositionItem
	for i := range addresses {
		if failed[i] {
			nFailed++
			continue
		}
		ok = append(ok, parts[i])
	}
	if nFailed == len(addresses) {
		return model.None[model.Composition]()
	}

	return model.Some(model.Composition{
		Entries:         MergeComposition(ok...),
		TotalAddresses:  len(addresses),
		FailedAddresses: nFailed,
	})
}

// MergeComposition sums values per protocol across addresses and recomputes
// percentages. Deployed protocols share 100% among themselves (0% when none
// holds positive value); the wallet entry is expressed against the grand
// total. Entries are ordered by value, largest first.
func MergeComposition(parts ...[]model.CompositionItem) []model.CompositionEntry {
	values := make(map[string]float64)
	for _, items := range parts {
		for _, it := range items {
			key := strings.ToLower(strings.TrimSpace(it.Protocol))
			if key == "" {
				continue
			}
			values[key] += it.ValueUSD
		}
	}

	var deployed, grand float64
	for key, v := range values {
		if v <= 0 {
			continue
		}
		grand += v
		if key != model.WalletProtocol {
			deployed += v
		}
	}

	entries := make([]model.CompositionEntry, 0, len(values))
	for key, v := range values {
		e := model.CompositionEntry{ProtocolKey: key, ValueUSD: v}
		switch {
		case v <= 0:
		case key == model.WalletProtocol:
			e.RepartitionPercent = 100 * v / grand
		case deployed > 0:
			e.RepartitionPercent = 100 * v / deployed
		}
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].ValueUSD != entries[j].ValueUSD {
			return entries[i].ValueUSD > entries[j].ValueUSD
		}
		return entries[i].ProtocolKey < entries[j].ProtocolKey
	})
	return entries
}
