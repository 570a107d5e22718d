package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/castrometro/SGM-sub005/internal/payroll/domain"
)

// TotalsRepository handles consolidated per-employee category totals.
type TotalsRepository struct {
	q queryer
}

// ReplaceForClosure swaps the closure's consolidated totals with a fresh
// rollup. Consolidation always recomputes from the records, so stale totals
// never survive a re-run.
func (r *TotalsRepository) ReplaceForClosure(ctx context.Context, closureID string, totals []*domain.ConsolidatedTotal) error {
	deleteQuery := `DELETE FROM consolidated_totals WHERE closure_id = $1`
	if _, err := r.q.ExecContext(ctx, deleteQuery, closureID); err != nil {
		return err
	}

	insertQuery := `
		INSERT INTO consolidated_totals (
			id, closure_id, employee_id, employee_rut, taxable_earnings,
			non_taxable_earnings, statutory_deductions, other_deductions, taxes,
			overtime_quantity, employer_contributions, uncategorized, computed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
	`
	for _, t := range totals {
		if t.ID == "" {
			t.ID = uuid.New().String()
		}
		_, err := r.q.ExecContext(ctx, insertQuery,
			t.ID, t.ClosureID, nullableString(t.EmployeeID), t.EmployeeRUT,
			t.TaxableEarnings, t.NonTaxableEarnings, t.StatutoryDeductions,
			t.OtherDeductions, t.Taxes, t.OvertimeQuantity,
			t.EmployerContributions, t.Uncategorized,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// ListByClosure lists the closure's totals ordered by employee RUT.
func (r *TotalsRepository) ListByClosure(ctx context.Context, closureID string) ([]*domain.ConsolidatedTotal, error) {
	var totals []*domain.ConsolidatedTotal
	query := `
		SELECT id, closure_id, COALESCE(employee_id, '') AS employee_id, employee_rut,
		       taxable_earnings, non_taxable_earnings, statutory_deductions,
		       other_deductions, taxes, overtime_quantity, employer_contributions,
		       uncategorized, computed_at
		FROM consolidated_totals WHERE closure_id = $1 ORDER BY employee_rut
	`
	if err := r.q.SelectContext(ctx, &totals, query, closureID); err != nil {
		return nil, err
	}
	return totals, nil
}
