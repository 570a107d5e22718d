package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/castrometro/SGM-sub005/internal/payroll/domain"
	"github.com/castrometro/SGM-sub005/pkg/database"
	"github.com/castrometro/SGM-sub005/pkg/errors"
)

// IncidentRepository handles incidents and their transition history.
type IncidentRepository struct {
	q queryer
}

const incidentColumns = `
	id, closure_id, employee_id, employee_rut, type, severity, state,
	fingerprint, description, details, version, created_at, resolved_at, resolved_by`

// CreateIfAbsent inserts an incident unless one with the same fingerprint
// already exists. Re-running a pass therefore never duplicates previously
// reported incidents. Returns true when a new row was created.
func (r *IncidentRepository) CreateIfAbsent(ctx context.Context, inc *domain.Incident) (bool, error) {
	if inc.ID == "" {
		inc.ID = uuid.New().String()
	}
	if inc.Version == 0 {
		inc.Version = 1
	}

	query := `
		INSERT INTO incidents (
			id, closure_id, employee_id, employee_rut, type, severity, state,
			fingerprint, description, details, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at
	`
	err := r.q.QueryRowxContext(ctx, query,
		inc.ID, inc.ClosureID, inc.EmployeeID, inc.EmployeeRUT, inc.Type,
		inc.Severity, inc.State, inc.Fingerprint, inc.Description, inc.Details, inc.Version,
	).Scan(&inc.CreatedAt)
	if database.IsUniqueViolation(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetByID gets an incident by ID.
func (r *IncidentRepository) GetByID(ctx context.Context, id string) (*domain.Incident, error) {
	var inc domain.Incident
	query := `SELECT` + incidentColumns + ` FROM incidents WHERE id = $1`
	err := r.q.GetContext(ctx, &inc, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("incident")
	}
	if err != nil {
		return nil, err
	}
	return &inc, nil
}

// ListByClosure lists a closure's incidents, blocking first, oldest first
// within severity.
func (r *IncidentRepository) ListByClosure(ctx context.Context, closureID string) ([]*domain.Incident, error) {
	var incidents []*domain.Incident
	query := `
		SELECT` + incidentColumns + `
		FROM incidents WHERE closure_id = $1
		ORDER BY CASE severity WHEN 'blocking' THEN 0 ELSE 1 END, created_at, id
	`
	if err := r.q.SelectContext(ctx, &incidents, query, closureID); err != nil {
		return nil, err
	}
	return incidents, nil
}

// ListOpenBlocking lists blocking incidents that have not reached supervisor
// approval. These are the incidents holding the closure back.
func (r *IncidentRepository) ListOpenBlocking(ctx context.Context, closureID string) ([]*domain.Incident, error) {
	var incidents []*domain.Incident
	query := `
		SELECT` + incidentColumns + `
		FROM incidents
		WHERE closure_id = $1 AND severity = 'blocking' AND state <> 'approved_by_supervisor'
		ORDER BY created_at, id
	`
	if err := r.q.SelectContext(ctx, &incidents, query, closureID); err != nil {
		return nil, err
	}
	return incidents, nil
}

// CountOpenBlocking counts blocking incidents not yet approved by a
// supervisor.
func (r *IncidentRepository) CountOpenBlocking(ctx context.Context, closureID string) (int, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM incidents
		WHERE closure_id = $1 AND severity = 'blocking' AND state <> 'approved_by_supervisor'
	`
	if err := r.q.GetContext(ctx, &count, query, closureID); err != nil {
		return 0, err
	}
	return count, nil
}

// CountByClosure returns total and informational incident counts.
func (r *IncidentRepository) CountByClosure(ctx context.Context, closureID string) (total, informational int, err error) {
	query := `
		SELECT COUNT(*) AS total,
		       COUNT(*) FILTER (WHERE severity = 'informational') AS informational
		FROM incidents WHERE closure_id = $1
	`
	row := struct {
		Total         int `db:"total"`
		Informational int `db:"informational"`
	}{}
	if err := r.q.GetContext(ctx, &row, query, closureID); err != nil {
		return 0, 0, err
	}
	return row.Total, row.Informational, nil
}

// Transition moves an incident to a new state and appends the transition to
// its history. The update is guarded on the version the caller loaded, so two
// analysts racing on the same incident cannot both win.
func (r *IncidentRepository) Transition(ctx context.Context, inc *domain.Incident, to domain.IncidentState, actorID string, note *string, correctedAmount *int64) error {
	if err := inc.State.AssertTransition(to); err != nil {
		return err
	}

	query := `
		UPDATE incidents SET state = $3, version = version + 1,
			resolved_at = CASE WHEN $3 = 'pending' THEN NULL ELSE NOW() END,
			resolved_by = CASE WHEN $3 = 'pending' THEN NULL ELSE $4 END
		WHERE id = $1 AND version = $2
	`
	result, err := r.q.ExecContext(ctx, query, inc.ID, inc.Version, to, actorID)
	if err != nil {
		return err
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.Conflict("incident was modified by someone else, reload and retry")
	}

	historyQuery := `
		INSERT INTO incident_transitions (
			id, incident_id, from_state, to_state, actor_id, note, corrected_amount
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.q.ExecContext(ctx, historyQuery,
		uuid.New().String(), inc.ID, inc.State, to, actorID, note, correctedAmount,
	)
	if err != nil {
		return err
	}

	inc.State = to
	inc.Version++
	return nil
}

// ListTransitions returns an incident's full audit history, oldest first.
func (r *IncidentRepository) ListTransitions(ctx context.Context, incidentID string) ([]*domain.IncidentTransition, error) {
	var transitions []*domain.IncidentTransition
	query := `
		SELECT id, incident_id, from_state, to_state, actor_id, note, corrected_amount, created_at
		FROM incident_transitions WHERE incident_id = $1 ORDER BY created_at, id
	`
	if err := r.q.SelectContext(ctx, &transitions, query, incidentID); err != nil {
		return nil, err
	}
	return transitions, nil
}
