package fetch

import (
	"context"
	"fmt"
	"strings"

	"github.com/yourorg/vault-risk-engine/internal/model"
	"github.com/yourorg/vault-risk-engine/internal/types"
)

// Repository reads typed vault data through a Querier
type Repository struct {
	q Querier
}

// NewRepository wraps q
func NewRepository(q Querier) *Repository {
	return &Repository{q: q}
}

type itemsOf[T any] struct {
	Items []T `json:"items"`
}

// items returns the collection or ErrMalformedResponse when the parent
// object or its items array is absent or null
func items[T any](c *itemsOf[T], what string) ([]T, error) {
	if c == nil || c.Items == nil {
		return nil, fmt.Errorf("%w: %s items missing", ErrMalformedResponse, what)
	}
	return c.Items, nil
}

func vaultVars(chain types.ChainID, address string) map[string]any {
	return map[string]any{
		"address": strings.ToLower(address),
		"chainId": int(chain),
	}
}

// Vault returns one vault, or nil when it does not exist on chain
func (r *Repository) Vault(ctx context.Context, chain types.ChainID, address string) (*model.Vault, error) {
	var resp struct {
		Vault *model.Vault `json:"vault"`
	}
	if err := r.q.Query(ctx, "vault", vaultQuery, vaultVars(chain, address), &resp); err != nil {
		return nil, err
	}
	return resp.Vault, nil
}

// ChainVaults returns every vault on chain
func (r *Repository) ChainVaults(ctx context.Context, chain types.ChainID) ([]model.Vault, error) {
	var resp struct {
		Vaults *itemsOf[model.Vault] `json:"vaults"`
	}
	vars := map[string]any{"chainId": int(chain)}
	if err := r.q.Query(ctx, "chain_vaults", chainVaultsQuery, vars, &resp); err != nil {
		return nil, err
	}
	return items(resp.Vaults, "vaults")
}

// CuratorVaults returns every vault managed by the curator
func (r *Repository) CuratorVaults(ctx context.Context, curatorID string) ([]model.Vault, error) {
	var resp struct {
		Vaults *itemsOf[model.Vault] `json:"vaults"`
	}
	vars := map[string]any{"curatorId": curatorID}
	if err := r.q.Query(ctx, "curator_vaults", curatorVaultsQuery, vars, &resp); err != nil {
		return nil, err
	}
	return items(resp.Vaults, "curator vaults")
}

// PriceHistory returns price-per-share samples, oldest first
func (r *Repository) PriceHistory(ctx context.Context, chain types.ChainID, address string) ([]model.PricePoint, error) {
	var resp struct {
		PriceHistory *itemsOf[model.PricePoint] `json:"priceHistory"`
	}
	if err := r.q.Query(ctx, "price_history", priceHistoryQuery, vaultVars(chain, address), &resp); err != nil {
		return nil, err
	}
	return items(resp.PriceHistory, "price history")
}

// Composition returns the protocol positions held by address
func (r *Repository) Composition(ctx context.Context, chain types.ChainID, address string) ([]model.CompositionItem, error) {
	var resp struct {
		Composition *itemsOf[model.CompositionItem] `json:"composition"`
	}
	if err := r.q.Query(ctx, "composition", compositionQuery, vaultVars(chain, address), &resp); err != nil {
		return nil, err
	}
	return items(resp.Composition, "composition")
}

// BatchVaults fetches the requested vaults, with their price histories, and
// every vault on chain in a single query
func (r *Repository) BatchVaults(ctx context.Context, chain types.ChainID, addresses []string) (targets, all []model.Vault, err error) {
	lower := make([]string, len(addresses))
	for i, a := range addresses {
		lower[i] = strings.ToLower(a)
	}

	var resp struct {
		Targets *itemsOf[model.Vault] `json:"targets"`
		All     *itemsOf[model.Vault] `json:"all"`
	}
	vars := map[string]any{"addresses": lower, "chainId": int(chain)}
	if err := r.q.Query(ctx, "batch_vaults", batchVaultsQuery, vars, &resp); err != nil {
		return nil, nil, err
	}

	if targets, err = items(resp.Targets, "batch targets"); err != nil {
		return nil, nil, err
	}
	if all, err = items(resp.All, "batch vaults"); err != nil {
		return nil, nil, err
	}
	return targets, all, nil
}
