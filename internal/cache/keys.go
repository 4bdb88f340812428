package cache

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/yourorg/vault-risk-engine/internal/types"
)

// addressPrefixLen is how much of each address a batch key keeps
const addressPrefixLen = 10

// RiskTags and PortfolioTags are registered with every key of their tool
var (
	RiskTags      = []Tag{TagRisk, TagAnalytics, TagVault}
	PortfolioTags = []Tag{TagPortfolio, TagAnalytics}
)

// RiskKey is risk:{chainId}:{address}:{format}
func RiskKey(chain types.ChainID, address, format string) string {
	return fmt.Sprintf("risk:%d:%s:%s", int(chain), strings.ToLower(address), format)
}

// BatchRiskKey is risks:{sorted distinct chains}:{sorted address prefixes}:{format}
func BatchRiskKey(chains []types.ChainID, addresses []string, format string) string {
	distinct := types.SortedDistinct(chains)
	ids := make([]string, len(distinct))
	for i, c := range distinct {
		ids[i] = strconv.Itoa(int(c))
	}

	prefixes := make([]string, len(addresses))
	for i, a := range addresses {
		a = strings.ToLower(a)
		if len(a) > addressPrefixLen {
			a = a[:addressPrefixLen]
		}
		prefixes[i] = a
	}
	sort.Strings(prefixes)

	return fmt.Sprintf("risks:%s:%s:%s", strings.Join(ids, ","), strings.Join(prefixes, ","), format)
}

// PortfolioKey is portfolio_optimization:{chainId}:{sorted addresses}:{strategy}
func PortfolioKey(chain types.ChainID, addresses []string, strategy string) string {
	lower := make([]string, len(addresses))
	for i, a := range addresses {
		lower[i] = strings.ToLower(a)
	}
	sort.Strings(lower)
	return fmt.Sprintf("portfolio_optimization:%d:%s:%s", int(chain), strings.Join(lower, ","), strategy)
}
