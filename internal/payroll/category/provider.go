// Package category resolves concept codes to consolidation categories.
package category

import (
	"fmt"
	"strings"

	"github.com/castrometro/SGM-sub005/internal/payroll/domain"
)

// ConfigProvider serves one category map loaded from configuration. The map
// applies to every organization; unknown concepts degrade to uncategorized at
// consolidation time.
type ConfigProvider struct {
	mapping domain.CategoryMap
}

// NewConfigProvider builds a provider from the raw concept-to-category pairs
// in the configuration. Category names are checked up front so a typo in the
// config fails the service at startup instead of mis-bucketing silently.
func NewConfigProvider(mappings map[string]string) (*ConfigProvider, error) {
	mapping := make(domain.CategoryMap, len(mappings))
	for code, name := range mappings {
		cat := domain.Category(strings.ToLower(strings.TrimSpace(name)))
		if !cat.Valid() {
			return nil, fmt.Errorf("concept %s maps to unknown category %q", code, name)
		}
		mapping[strings.TrimSpace(code)] = cat
	}
	return &ConfigProvider{mapping: mapping}, nil
}

// CategoryMap returns the configured map.
func (p *ConfigProvider) CategoryMap(organizationID string) (domain.CategoryMap, error) {
	return p.mapping, nil
}
