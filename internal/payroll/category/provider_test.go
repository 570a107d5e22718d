package category_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castrometro/SGM-sub005/internal/payroll/category"
	"github.com/castrometro/SGM-sub005/internal/payroll/domain"
)

func TestConfigProvider_ResolvesConfiguredConcepts(t *testing.T) {
	provider, err := category.NewConfigProvider(map[string]string{
		"SUELDO_BASE": "taxable_earnings",
		"COLACION":    " Non_Taxable_Earnings ",
		"AFP":         "statutory_deductions",
	})
	require.NoError(t, err)

	m, err := provider.CategoryMap("org-1")
	require.NoError(t, err)

	cat, ok := m.Lookup("SUELDO_BASE")
	assert.True(t, ok)
	assert.Equal(t, domain.CategoryTaxableEarnings, cat)

	cat, ok = m.Lookup("COLACION")
	assert.True(t, ok)
	assert.Equal(t, domain.CategoryNonTaxableEarnings, cat)

	cat, ok = m.Lookup("DESCONOCIDO")
	assert.False(t, ok)
	assert.Equal(t, domain.CategoryUncategorized, cat)
}

func TestConfigProvider_RejectsUnknownCategory(t *testing.T) {
	_, err := category.NewConfigProvider(map[string]string{
		"SUELDO_BASE": "sueldos",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown category")
}
