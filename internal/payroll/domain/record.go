package domain

import (
	"context"
	"time"
)

// SourceKind tags the origin file of a concept record. The ledger is the
// primary source; the rest are supplementary files uploaded per period.
type SourceKind string

const (
	SourceLedger      SourceKind = "ledger"
	SourceNovelty     SourceKind = "novelty"
	SourceMovement    SourceKind = "movement"
	SourceIngress     SourceKind = "ingress"
	SourceTermination SourceKind = "termination"
	SourceAbsence     SourceKind = "absence"
)

// AllSources lists every ingestible source kind in ingestion order.
var AllSources = []SourceKind{
	SourceLedger,
	SourceNovelty,
	SourceMovement,
	SourceIngress,
	SourceTermination,
	SourceAbsence,
}

// Valid reports whether the kind is one of the known sources.
func (k SourceKind) Valid() bool {
	switch k {
	case SourceLedger, SourceNovelty, SourceMovement, SourceIngress, SourceTermination, SourceAbsence:
		return true
	}
	return false
}

// SourceRow is one already-parsed spreadsheet row as delivered by the
// external Source Record Provider. Everything is raw, human-entered text;
// Origin identifies the row for traceability (file + row number).
type SourceRow struct {
	RawIdentity string
	RawName     string
	RawConcept  string
	RawValue    string
	Origin      string
}

// RowProvider abstracts file storage and spreadsheet parsing. The engine
// only ever consumes already-parsed rows.
type RowProvider interface {
	Rows(ctx context.Context, closureID string, kind SourceKind) ([]SourceRow, error)
}

// ConceptRecord is one normalized (employee, concept, amount, source) row for
// a closure. Amount is always an integer currency unit (or quantity for
// day/hour concepts) after normalization, never a sentinel string.
type ConceptRecord struct {
	ID           string     `db:"id" json:"id"`
	ClosureID    string     `db:"closure_id" json:"closure_id"`
	EmployeeID   string     `db:"employee_id" json:"employee_id"`
	EmployeeRUT  string     `db:"employee_rut" json:"employee_rut"`
	EmployeeName string     `db:"employee_name" json:"employee_name"`
	ConceptCode  string     `db:"concept_code" json:"concept_code"`
	Amount       int64      `db:"amount" json:"amount"`
	Source       SourceKind `db:"source" json:"source"`
	RowOrigin    string     `db:"row_origin" json:"row_origin"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Key identifies a record inside a closure for matching purposes.
func (r *ConceptRecord) Key() RecordKey {
	return RecordKey{EmployeeRUT: r.EmployeeRUT, ConceptCode: r.ConceptCode, Source: r.Source}
}

// RecordKey is the (employee, concept, source) matching key used by the
// reconciliation join.
type RecordKey struct {
	EmployeeRUT string
	ConceptCode string
	Source      SourceKind
}

// Employee is the canonical person shared across closures. Identity is the
// normalized RUT, unique within an organization; the first source record
// establishing a RUT creates the employee, later sources attach to it.
type Employee struct {
	ID             string     `db:"id" json:"id"`
	OrganizationID string     `db:"organization_id" json:"organization_id"`
	RUT            string     `db:"rut" json:"rut"`
	Name           string     `db:"name" json:"name"`
	Active         bool       `db:"active" json:"active"`
	HireDate       *time.Time `db:"hire_date" json:"hire_date,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}
