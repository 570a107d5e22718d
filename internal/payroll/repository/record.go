package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/castrometro/SGM-sub005/internal/payroll/domain"
)

// RecordRepository handles normalized concept records.
type RecordRepository struct {
	q queryer
}

// ReplaceSource atomically swaps a closure's records for one source with a
// fresh batch. Re-uploading a file replaces, never accumulates.
func (r *RecordRepository) ReplaceSource(ctx context.Context, closureID string, source domain.SourceKind, records []*domain.ConceptRecord) error {
	deleteQuery := `DELETE FROM concept_records WHERE closure_id = $1 AND source = $2`
	if _, err := r.q.ExecContext(ctx, deleteQuery, closureID, source); err != nil {
		return err
	}

	insertQuery := `
		INSERT INTO concept_records (
			id, closure_id, employee_id, employee_rut, employee_name,
			concept_code, amount, source, row_origin
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	for _, rec := range records {
		if rec.ID == "" {
			rec.ID = uuid.New().String()
		}
		_, err := r.q.ExecContext(ctx, insertQuery,
			rec.ID, rec.ClosureID, nullableString(rec.EmployeeID), rec.EmployeeRUT,
			rec.EmployeeName, rec.ConceptCode, rec.Amount, rec.Source, rec.RowOrigin,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// ListByClosure lists every record of a closure across all sources, in a
// stable order.
func (r *RecordRepository) ListByClosure(ctx context.Context, closureID string) ([]*domain.ConceptRecord, error) {
	var records []*domain.ConceptRecord
	query := `
		SELECT id, closure_id, COALESCE(employee_id, '') AS employee_id, employee_rut,
		       employee_name, concept_code, amount, source, row_origin, created_at, updated_at
		FROM concept_records WHERE closure_id = $1
		ORDER BY employee_rut, concept_code, source
	`
	if err := r.q.SelectContext(ctx, &records, query, closureID); err != nil {
		return nil, err
	}
	return records, nil
}

// UpdateAmountByKey sets the amount of every record for the employee and
// concept across sources. Applying a supervisor-approved correction converges
// all sources on the corrected value so the next reconciliation run is clean.
func (r *RecordRepository) UpdateAmountByKey(ctx context.Context, closureID, employeeRUT, conceptCode string, amount int64) (int, error) {
	query := `
		UPDATE concept_records SET amount = $4, updated_at = NOW()
		WHERE closure_id = $1 AND employee_rut = $2 AND concept_code = $3
	`
	result, err := r.q.ExecContext(ctx, query, closureID, employeeRUT, conceptCode, amount)
	if err != nil {
		return 0, err
	}
	affected, _ := result.RowsAffected()
	return int(affected), nil
}

// SetEmployeeIDs links records to registry employees by RUT.
func (r *RecordRepository) SetEmployeeIDs(ctx context.Context, closureID string, idsByRUT map[string]string) error {
	query := `
		UPDATE concept_records SET employee_id = $3, updated_at = NOW()
		WHERE closure_id = $1 AND employee_rut = $2
	`
	for rut, id := range idsByRUT {
		if _, err := r.q.ExecContext(ctx, query, closureID, rut, id); err != nil {
			return err
		}
	}
	return nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
