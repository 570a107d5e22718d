package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/castrometro/SGM-sub005/internal/payroll/domain"
	"github.com/castrometro/SGM-sub005/pkg/database"
	"github.com/castrometro/SGM-sub005/pkg/errors"
)

// ClosureRepository handles monthly closure persistence.
type ClosureRepository struct {
	q queryer
}

const closureColumns = `
	id, organization_id, period, state, total_incidents, open_blocking_count,
	informational_count, created_at, updated_at, completed_at, last_reconciliation_at`

// Create inserts a new closure in pending state. A partial unique index on
// (organization_id, period) over active closures enforces one active closure
// per organization and period.
func (r *ClosureRepository) Create(ctx context.Context, closure *domain.Closure) error {
	if closure.ID == "" {
		closure.ID = uuid.New().String()
	}
	if closure.State == "" {
		closure.State = domain.ClosurePending
	}

	query := `
		INSERT INTO closures (id, organization_id, period, state)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`
	err := r.q.QueryRowxContext(ctx, query,
		closure.ID, closure.OrganizationID, closure.Period, closure.State,
	).Scan(&closure.CreatedAt, &closure.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID gets a closure by ID.
func (r *ClosureRepository) GetByID(ctx context.Context, id string) (*domain.Closure, error) {
	var closure domain.Closure
	query := `SELECT` + closureColumns + ` FROM closures WHERE id = $1`
	err := r.q.GetContext(ctx, &closure, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("closure")
	}
	if err != nil {
		return nil, err
	}
	return &closure, nil
}

// GetByIDForUpdate gets a closure and takes a row lock on it. Only valid
// inside a transaction; engine jobs use it so two jobs cannot interleave
// writes on the same closure.
func (r *ClosureRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Closure, error) {
	var closure domain.Closure
	query := `SELECT` + closureColumns + ` FROM closures WHERE id = $1 FOR UPDATE`
	err := r.q.GetContext(ctx, &closure, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("closure")
	}
	if err != nil {
		return nil, err
	}
	return &closure, nil
}

// ListByOrganization lists closures for an organization, newest period first.
func (r *ClosureRepository) ListByOrganization(ctx context.Context, organizationID string) ([]*domain.Closure, error) {
	var closures []*domain.Closure
	query := `SELECT` + closureColumns + ` FROM closures WHERE organization_id = $1 ORDER BY period DESC`
	if err := r.q.SelectContext(ctx, &closures, query, organizationID); err != nil {
		return nil, err
	}
	return closures, nil
}

// UpdateState moves a closure from one state to another. The update is
// guarded on the expected current state so a concurrent transition loses
// instead of silently overwriting.
func (r *ClosureRepository) UpdateState(ctx context.Context, id string, from, to domain.ClosureState) error {
	if err := from.AssertTransition(to); err != nil {
		return err
	}

	query := `
		UPDATE closures SET state = $3, updated_at = NOW(),
			completed_at = CASE WHEN $3 = 'completed' THEN NOW() ELSE completed_at END
		WHERE id = $1 AND state = $2
	`
	result, err := r.q.ExecContext(ctx, query, id, from, to)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		current, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		return errors.InvalidClosureTransition(string(current.State), string(to))
	}
	return nil
}

// UpdateCounters refreshes the incident counters shown on the closure.
func (r *ClosureRepository) UpdateCounters(ctx context.Context, id string, total, openBlocking, informational int) error {
	query := `
		UPDATE closures SET total_incidents = $2, open_blocking_count = $3,
			informational_count = $4, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.q.ExecContext(ctx, query, id, total, openBlocking, informational)
	if err != nil {
		return err
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("closure")
	}
	return nil
}

// SetLastReconciliation stamps the last successful reconciliation run.
func (r *ClosureRepository) SetLastReconciliation(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE closures SET last_reconciliation_at = $2, updated_at = NOW() WHERE id = $1`
	result, err := r.q.ExecContext(ctx, query, id, at)
	if err != nil {
		return err
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("closure")
	}
	return nil
}
