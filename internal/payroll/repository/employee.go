package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/castrometro/SGM-sub005/internal/payroll/domain"
	"github.com/castrometro/SGM-sub005/pkg/errors"
)

// EmployeeRepository handles the employee registry.
type EmployeeRepository struct {
	q queryer
}

// Upsert inserts an employee or refreshes an existing one, keyed on
// (organization_id, rut). The stored display name is the first one seen;
// conflicting spellings surface as identity-conflict incidents instead of
// overwriting the registry.
func (r *EmployeeRepository) Upsert(ctx context.Context, emp *domain.Employee) error {
	if emp.ID == "" {
		emp.ID = uuid.New().String()
	}

	query := `
		INSERT INTO employees (id, organization_id, rut, name, active, hire_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (organization_id, rut)
		DO UPDATE SET active = EXCLUDED.active, updated_at = NOW()
		RETURNING id, name, created_at, updated_at
	`
	return r.q.QueryRowxContext(ctx, query,
		emp.ID, emp.OrganizationID, emp.RUT, emp.Name, emp.Active, emp.HireDate,
	).Scan(&emp.ID, &emp.Name, &emp.CreatedAt, &emp.UpdatedAt)
}

// GetByRUT gets an employee by normalized RUT within an organization.
func (r *EmployeeRepository) GetByRUT(ctx context.Context, organizationID, rut string) (*domain.Employee, error) {
	var emp domain.Employee
	query := `
		SELECT id, organization_id, rut, name, active, hire_date, created_at, updated_at
		FROM employees WHERE organization_id = $1 AND rut = $2
	`
	err := r.q.GetContext(ctx, &emp, query, organizationID, rut)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("employee")
	}
	if err != nil {
		return nil, err
	}
	return &emp, nil
}

// ListByOrganization lists the organization's employees ordered by RUT.
func (r *EmployeeRepository) ListByOrganization(ctx context.Context, organizationID string) ([]*domain.Employee, error) {
	var employees []*domain.Employee
	query := `
		SELECT id, organization_id, rut, name, active, hire_date, created_at, updated_at
		FROM employees WHERE organization_id = $1 ORDER BY rut
	`
	if err := r.q.SelectContext(ctx, &employees, query, organizationID); err != nil {
		return nil, err
	}
	return employees, nil
}
