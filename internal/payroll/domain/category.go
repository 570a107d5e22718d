package domain

import "time"

// Category is one of the consolidation buckets a concept amount sums into.
type Category string

const (
	CategoryTaxableEarnings       Category = "taxable_earnings"
	CategoryNonTaxableEarnings    Category = "non_taxable_earnings"
	CategoryStatutoryDeductions   Category = "statutory_deductions"
	CategoryOtherDeductions       Category = "other_deductions"
	CategoryTaxes                 Category = "taxes"
	CategoryOvertimeQuantity      Category = "overtime_quantity"
	CategoryEmployerContributions Category = "employer_contributions"
	// CategoryUncategorized catches concepts missing from the category map;
	// they are flagged rather than silently dropped.
	CategoryUncategorized Category = "uncategorized"
)

// Categories lists the seven configured buckets (uncategorized excluded).
var Categories = []Category{
	CategoryTaxableEarnings,
	CategoryNonTaxableEarnings,
	CategoryStatutoryDeductions,
	CategoryOtherDeductions,
	CategoryTaxes,
	CategoryOvertimeQuantity,
	CategoryEmployerContributions,
}

// Valid reports whether c is a configurable category.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// CategoryMap is the external concept-code -> category configuration,
// resolved once at job start and treated as read-only.
type CategoryMap map[string]Category

// Lookup resolves a concept code; unknown codes land in uncategorized.
func (m CategoryMap) Lookup(conceptCode string) (Category, bool) {
	c, ok := m[conceptCode]
	if !ok || !c.Valid() {
		return CategoryUncategorized, false
	}
	return c, true
}

// CategoryProvider supplies the category map for an organization.
type CategoryProvider interface {
	CategoryMap(organizationID string) (CategoryMap, error)
}

// ConsolidatedTotal is one employee's category totals for a closure.
// Computed, never hand-edited: re-running consolidation over the closure's
// reconciled records always reproduces it.
type ConsolidatedTotal struct {
	ID                    string    `db:"id" json:"id"`
	ClosureID             string    `db:"closure_id" json:"closure_id"`
	EmployeeID            string    `db:"employee_id" json:"employee_id"`
	EmployeeRUT           string    `db:"employee_rut" json:"employee_rut"`
	TaxableEarnings       int64     `db:"taxable_earnings" json:"taxable_earnings"`
	NonTaxableEarnings    int64     `db:"non_taxable_earnings" json:"non_taxable_earnings"`
	StatutoryDeductions   int64     `db:"statutory_deductions" json:"statutory_deductions"`
	OtherDeductions       int64     `db:"other_deductions" json:"other_deductions"`
	Taxes                 int64     `db:"taxes" json:"taxes"`
	OvertimeQuantity      int64     `db:"overtime_quantity" json:"overtime_quantity"`
	EmployerContributions int64     `db:"employer_contributions" json:"employer_contributions"`
	Uncategorized         int64     `db:"uncategorized" json:"uncategorized"`
	ComputedAt            time.Time `db:"computed_at" json:"computed_at"`
}

// Add sums an amount into the bucket for the given category.
func (t *ConsolidatedTotal) Add(c Category, amount int64) {
	switch c {
	case CategoryTaxableEarnings:
		t.TaxableEarnings += amount
	case CategoryNonTaxableEarnings:
		t.NonTaxableEarnings += amount
	case CategoryStatutoryDeductions:
		t.StatutoryDeductions += amount
	case CategoryOtherDeductions:
		t.OtherDeductions += amount
	case CategoryTaxes:
		t.Taxes += amount
	case CategoryOvertimeQuantity:
		t.OvertimeQuantity += amount
	case CategoryEmployerContributions:
		t.EmployerContributions += amount
	default:
		t.Uncategorized += amount
	}
}

// Sum returns the total across every bucket including uncategorized.
func (t *ConsolidatedTotal) Sum() int64 {
	return t.TaxableEarnings + t.NonTaxableEarnings + t.StatutoryDeductions +
		t.OtherDeductions + t.Taxes + t.OvertimeQuantity +
		t.EmployerContributions + t.Uncategorized
}
