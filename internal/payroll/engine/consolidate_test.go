package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castrometro/SGM-sub005/internal/payroll/domain"
	"github.com/castrometro/SGM-sub005/internal/payroll/engine"
)

var testCategories = domain.CategoryMap{
	"SUELDO_BASE":     domain.CategoryTaxableEarnings,
	"BONO":            domain.CategoryTaxableEarnings,
	"COLACION":        domain.CategoryNonTaxableEarnings,
	"AFP":             domain.CategoryStatutoryDeductions,
	"IMPUESTO_UNICO":  domain.CategoryTaxes,
	"HORAS_EXTRA_50":  domain.CategoryOvertimeQuantity,
	"SEGURO_CESANTIA": domain.CategoryEmployerContributions,
}

func TestConsolidate_PerEmployeeCategoryTotals(t *testing.T) {
	records := []*domain.ConceptRecord{
		record("123456789", "Maria Gonzalez", "SUELDO_BASE", 1500000, domain.SourceLedger),
		record("123456789", "Maria Gonzalez", "BONO", 100000, domain.SourceLedger),
		record("123456789", "Maria Gonzalez", "COLACION", 50000, domain.SourceLedger),
		record("123456789", "Maria Gonzalez", "AFP", 150000, domain.SourceLedger),
		record("222222222", "Pedro Soto", "SUELDO_BASE", 900000, domain.SourceLedger),
	}

	res := engine.Consolidate(testClosureID, records, testCategories)

	require.Len(t, res.Totals, 2)
	assert.Empty(t, res.Incidents)

	maria := res.Totals[0]
	assert.Equal(t, "123456789", maria.EmployeeRUT)
	assert.Equal(t, int64(1600000), maria.TaxableEarnings)
	assert.Equal(t, int64(50000), maria.NonTaxableEarnings)
	assert.Equal(t, int64(150000), maria.StatutoryDeductions)

	pedro := res.Totals[1]
	assert.Equal(t, "222222222", pedro.EmployeeRUT)
	assert.Equal(t, int64(900000), pedro.TaxableEarnings)
}

func TestConsolidate_LedgerValueTakesPrecedence(t *testing.T) {
	records := []*domain.ConceptRecord{
		record("123456789", "Maria Gonzalez", "SUELDO_BASE", 1500000, domain.SourceLedger),
		record("123456789", "Maria Gonzalez", "SUELDO_BASE", 1550000, domain.SourceNovelty),
		record("123456789", "Maria Gonzalez", "BONO", 100000, domain.SourceNovelty),
	}

	res := engine.Consolidate(testClosureID, records, testCategories)

	require.Len(t, res.Totals, 1)
	assert.Equal(t, int64(1600000), res.Totals[0].TaxableEarnings,
		"ledger amount counts for SUELDO_BASE, novelty contributes BONO")
}

func TestConsolidate_UncategorizedConcept(t *testing.T) {
	records := []*domain.ConceptRecord{
		record("123456789", "Maria Gonzalez", "SUELDO_BASE", 1500000, domain.SourceLedger),
		record("123456789", "Maria Gonzalez", "CONCEPTO_RARO", 12345, domain.SourceLedger),
		record("222222222", "Pedro Soto", "CONCEPTO_RARO", 54321, domain.SourceLedger),
	}

	res := engine.Consolidate(testClosureID, records, testCategories)

	require.Len(t, res.Totals, 2)
	assert.Equal(t, int64(12345), res.Totals[0].Uncategorized)
	assert.Equal(t, int64(54321), res.Totals[1].Uncategorized)
	assert.Equal(t, 1, res.UncategorizedConcepts)

	require.Len(t, res.Incidents, 1, "one incident per concept code, not per row")
	assert.Equal(t, domain.IncidentUncategorizedConcept, res.Incidents[0].Type)
	assert.Equal(t, domain.SeverityInformational, res.Incidents[0].Severity)
}

func TestConsolidate_ConservationOfTotals(t *testing.T) {
	records := []*domain.ConceptRecord{
		record("123456789", "Maria Gonzalez", "SUELDO_BASE", 1500000, domain.SourceLedger),
		record("123456789", "Maria Gonzalez", "AFP", -150000, domain.SourceLedger),
		record("123456789", "Maria Gonzalez", "CONCEPTO_RARO", 777, domain.SourceLedger),
		record("222222222", "Pedro Soto", "SUELDO_BASE", 900000, domain.SourceLedger),
		record("222222222", "Pedro Soto", "HORAS_EXTRA_50", 12, domain.SourceLedger),
	}

	res := engine.Consolidate(testClosureID, records, testCategories)

	var want int64
	for _, rec := range records {
		want += rec.Amount
	}
	assert.Equal(t, want, res.TotalAmount)

	var got int64
	for _, total := range res.Totals {
		got += total.Sum()
	}
	assert.Equal(t, want, got)
}

func TestConsolidate_EmptyInput(t *testing.T) {
	res := engine.Consolidate(testClosureID, nil, testCategories)

	assert.Empty(t, res.Totals)
	assert.Empty(t, res.Incidents)
	assert.Zero(t, res.TotalAmount)
}
