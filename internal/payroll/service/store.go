// Package service orchestrates the payroll engine: closure lifecycle,
// incident resolution and the reconciliation/consolidation job pipeline.
package service

import (
	"context"
	"time"

	"github.com/castrometro/SGM-sub005/internal/payroll/domain"
	"github.com/castrometro/SGM-sub005/internal/payroll/repository"
)

// ClosureStore persists monthly closures.
type ClosureStore interface {
	Create(ctx context.Context, closure *domain.Closure) error
	GetByID(ctx context.Context, id string) (*domain.Closure, error)
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Closure, error)
	ListByOrganization(ctx context.Context, organizationID string) ([]*domain.Closure, error)
	UpdateState(ctx context.Context, id string, from, to domain.ClosureState) error
	UpdateCounters(ctx context.Context, id string, total, openBlocking, informational int) error
	SetLastReconciliation(ctx context.Context, id string, at time.Time) error
}

// EmployeeStore persists the employee registry.
type EmployeeStore interface {
	Upsert(ctx context.Context, emp *domain.Employee) error
	GetByRUT(ctx context.Context, organizationID, rut string) (*domain.Employee, error)
	ListByOrganization(ctx context.Context, organizationID string) ([]*domain.Employee, error)
}

// RecordStore persists normalized concept records.
type RecordStore interface {
	ReplaceSource(ctx context.Context, closureID string, source domain.SourceKind, records []*domain.ConceptRecord) error
	ListByClosure(ctx context.Context, closureID string) ([]*domain.ConceptRecord, error)
	UpdateAmountByKey(ctx context.Context, closureID, employeeRUT, conceptCode string, amount int64) (int, error)
	SetEmployeeIDs(ctx context.Context, closureID string, idsByRUT map[string]string) error
}

// IncidentStore persists incidents and their workflow history.
type IncidentStore interface {
	CreateIfAbsent(ctx context.Context, inc *domain.Incident) (bool, error)
	GetByID(ctx context.Context, id string) (*domain.Incident, error)
	ListByClosure(ctx context.Context, closureID string) ([]*domain.Incident, error)
	ListOpenBlocking(ctx context.Context, closureID string) ([]*domain.Incident, error)
	CountOpenBlocking(ctx context.Context, closureID string) (int, error)
	CountByClosure(ctx context.Context, closureID string) (total, informational int, err error)
	Transition(ctx context.Context, inc *domain.Incident, to domain.IncidentState, actorID string, note *string, correctedAmount *int64) error
	ListTransitions(ctx context.Context, incidentID string) ([]*domain.IncidentTransition, error)
}

// TotalsStore persists consolidated totals.
type TotalsStore interface {
	ReplaceForClosure(ctx context.Context, closureID string, totals []*domain.ConsolidatedTotal) error
	ListByClosure(ctx context.Context, closureID string) ([]*domain.ConsolidatedTotal, error)
}

// Store is the persistence surface the services run on. Atomically hands the
// callback a transaction-bound store; everything written inside commits or
// rolls back together.
type Store interface {
	Atomically(ctx context.Context, fn func(Store) error) error
	Closures() ClosureStore
	Employees() EmployeeStore
	Records() RecordStore
	Incidents() IncidentStore
	Totals() TotalsStore
}

// sqlStore adapts the PostgreSQL repositories to the Store interface.
type sqlStore struct {
	inner *repository.Store
}

// NewSQLStore wraps a repository store for use by the services.
func NewSQLStore(s *repository.Store) Store {
	return sqlStore{inner: s}
}

func (s sqlStore) Closures() ClosureStore   { return s.inner.Closures() }
func (s sqlStore) Employees() EmployeeStore { return s.inner.Employees() }
func (s sqlStore) Records() RecordStore     { return s.inner.Records() }
func (s sqlStore) Incidents() IncidentStore { return s.inner.Incidents() }
func (s sqlStore) Totals() TotalsStore      { return s.inner.Totals() }

func (s sqlStore) Atomically(ctx context.Context, fn func(Store) error) error {
	return s.inner.Atomically(ctx, func(tx *repository.Store) error {
		return fn(sqlStore{inner: tx})
	})
}

// EventPublisher is the slice of the payroll event publisher the services
// use. All methods are fire and forget.
type EventPublisher interface {
	PublishClosureTransitioned(ctx context.Context, closureID string, from, to domain.ClosureState, actorID string)
	PublishRecordsIngested(ctx context.Context, closureID string, source domain.SourceKind, accepted, skipped, duplicates, newIncidents int)
	PublishIncidentCreated(ctx context.Context, inc *domain.Incident)
	PublishIncidentTransitioned(ctx context.Context, inc *domain.Incident, from domain.IncidentState, actorID string)
	PublishConsolidationCompleted(ctx context.Context, closureID string, employees int, totalAmount int64, uncategorized int)
	PublishJobCompleted(ctx context.Context, closureID, reason string, durationMs int64)
	PublishJobFailed(ctx context.Context, closureID, reason string, jobErr error)
}
