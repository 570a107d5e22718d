// Package repository persists closures, records, incidents and totals on
// PostgreSQL. Repositories run against either the root connection or a
// transaction, so a whole engine job can commit or roll back as one unit.
package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/castrometro/SGM-sub005/pkg/database"
)

// queryer is the subset of sqlx satisfied by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// Store bundles the payroll repositories over one connection or transaction.
type Store struct {
	db *database.DB

	closures  *ClosureRepository
	employees *EmployeeRepository
	records   *RecordRepository
	incidents *IncidentRepository
	totals    *TotalsRepository
}

// NewStore creates a store over the root database connection.
func NewStore(db *database.DB) *Store {
	return newStore(db, db.DB)
}

func newStore(db *database.DB, q queryer) *Store {
	return &Store{
		db:        db,
		closures:  &ClosureRepository{q: q},
		employees: &EmployeeRepository{q: q},
		records:   &RecordRepository{q: q},
		incidents: &IncidentRepository{q: q},
		totals:    &TotalsRepository{q: q},
	}
}

func (s *Store) Closures() *ClosureRepository   { return s.closures }
func (s *Store) Employees() *EmployeeRepository { return s.employees }
func (s *Store) Records() *RecordRepository     { return s.records }
func (s *Store) Incidents() *IncidentRepository { return s.incidents }
func (s *Store) Totals() *TotalsRepository      { return s.totals }

// Atomically runs fn against a transaction-bound store. Every write inside
// commits or rolls back together.
func (s *Store) Atomically(ctx context.Context, fn func(*Store) error) error {
	return s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		return fn(newStore(s.db, tx))
	})
}
