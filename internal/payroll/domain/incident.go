package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/castrometro/SGM-sub005/pkg/errors"
)

// IncidentType classifies a detected discrepancy. Each type carries a typed
// details payload rather than a subclass hierarchy, so handling stays
// exhaustive and flat.
type IncidentType string

const (
	// Blocking: the closure cannot leave incidents_open until resolved.
	IncidentAmountMismatch IncidentType = "amount-mismatch"
	IncidentOrphanMovement IncidentType = "orphan-movement"

	// Informational: require acknowledgement, never block progression.
	IncidentUnreportedIngress    IncidentType = "unreported-ingress"
	IncidentMissingTermination   IncidentType = "missing-termination-record"
	IncidentUnjustifiedAbsence   IncidentType = "unjustified-absence"
	IncidentIdentityConflict     IncidentType = "identity-conflict"
	IncidentDuplicateRow         IncidentType = "duplicate-row"
	IncidentInvalidRow           IncidentType = "invalid-row"
	IncidentUncategorizedConcept IncidentType = "uncategorized-concept"
)

// Severity determines whether an incident gates closure progression.
type Severity string

const (
	SeverityInformational Severity = "informational"
	SeverityBlocking      Severity = "blocking"
)

// SeverityOf returns the fixed severity for an incident type.
func SeverityOf(t IncidentType) Severity {
	switch t {
	case IncidentAmountMismatch, IncidentOrphanMovement:
		return SeverityBlocking
	default:
		return SeverityInformational
	}
}

// IncidentState is the resolution workflow stage.
type IncidentState string

const (
	IncidentPending              IncidentState = "pending"
	IncidentResolvedByAnalyst    IncidentState = "resolved_by_analyst"
	IncidentApprovedBySupervisor IncidentState = "approved_by_supervisor"
	IncidentRejected             IncidentState = "rejected"
)

// incidentTransitions is the legal workflow order. No transition skips a
// state; rejection reopens the incident for a new analyst pass.
var incidentTransitions = map[IncidentState][]IncidentState{
	IncidentPending:              {IncidentResolvedByAnalyst},
	IncidentResolvedByAnalyst:    {IncidentApprovedBySupervisor, IncidentRejected},
	IncidentApprovedBySupervisor: {},
	IncidentRejected:             {IncidentPending},
}

// CanTransition reports whether from -> to is a legal incident transition.
func (from IncidentState) CanTransition(to IncidentState) bool {
	for _, next := range incidentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AssertTransition returns InvalidIncidentTransition when from -> to is not legal.
func (from IncidentState) AssertTransition(to IncidentState) error {
	if !from.CanTransition(to) {
		return errors.InvalidIncidentTransition(string(from), string(to))
	}
	return nil
}

// Terminal reports whether the incident has reached its positive end state.
func (s IncidentState) Terminal() bool {
	return s == IncidentApprovedBySupervisor
}

// Incident is one detected discrepancy subject to the resolution workflow.
// EmployeeID is empty for closure-wide incidents. Details carries a copy of
// the contested values so the incident stays auditable after corrections.
type Incident struct {
	ID          string          `db:"id" json:"id"`
	ClosureID   string          `db:"closure_id" json:"closure_id"`
	EmployeeID  *string         `db:"employee_id" json:"employee_id,omitempty"`
	EmployeeRUT *string         `db:"employee_rut" json:"employee_rut,omitempty"`
	Type        IncidentType    `db:"type" json:"type"`
	Severity    Severity        `db:"severity" json:"severity"`
	State       IncidentState   `db:"state" json:"state"`
	Fingerprint string          `db:"fingerprint" json:"fingerprint"`
	Description string          `db:"description" json:"description"`
	Details     json.RawMessage `db:"details" json:"details,omitempty"`
	// Version supports the optimistic lock on resolution operations.
	Version    int        `db:"version" json:"version"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	ResolvedAt *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
	ResolvedBy *string    `db:"resolved_by" json:"resolved_by,omitempty"`
}

// IncidentTransition is one step of the resolution history. History rows are
// append-only; nothing is overwritten.
type IncidentTransition struct {
	ID         string        `db:"id" json:"id"`
	IncidentID string        `db:"incident_id" json:"incident_id"`
	FromState  IncidentState `db:"from_state" json:"from_state"`
	ToState    IncidentState `db:"to_state" json:"to_state"`
	ActorID    string        `db:"actor_id" json:"actor_id"`
	Note       *string       `db:"note" json:"note,omitempty"`
	// CorrectedAmount is set when an analyst resolves an amount-mismatch by
	// fixing the value; re-consolidation picks it up from the record.
	CorrectedAmount *int64    `db:"corrected_amount" json:"corrected_amount,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// Fingerprint derives the stable identity used to deduplicate incidents
// across reconciliation re-runs: same closure, employee, concept and type
// always hash to the same value.
func Fingerprint(closureID, employeeRUT, conceptCode string, t IncidentType) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%s", closureID, employeeRUT, conceptCode, t)))
	return hex.EncodeToString(h[:])
}

// Typed details payloads

// AmountMismatchDetails records both contested values and source tags.
type AmountMismatchDetails struct {
	ConceptCode string     `json:"concept_code"`
	SourceA     SourceKind `json:"source_a"`
	AmountA     int64      `json:"amount_a"`
	SourceB     SourceKind `json:"source_b"`
	AmountB     int64      `json:"amount_b"`
}

// OrphanMovementDetails describes a movement-file record whose employee is
// absent from the period's ledger.
type OrphanMovementDetails struct {
	Source      SourceKind `json:"source"`
	ConceptCode string     `json:"concept_code"`
	Amount      int64      `json:"amount"`
	RowOrigin   string     `json:"row_origin"`
}

// MissingCounterpartDetails describes a ledger entry whose expected
// supplementary counterpart never arrived.
type MissingCounterpartDetails struct {
	ConceptCode    string     `json:"concept_code"`
	PresentIn      SourceKind `json:"present_in"`
	ExpectedIn     SourceKind `json:"expected_in"`
	Amount         int64      `json:"amount"`
	ExpectedReason string     `json:"expected_reason"`
}

// IdentityConflictDetails records two raw identities that normalize to the
// same RUT but carry materially different names.
type IdentityConflictDetails struct {
	RUT     string     `json:"rut"`
	NameA   string     `json:"name_a"`
	SourceA SourceKind `json:"source_a"`
	NameB   string     `json:"name_b"`
	SourceB SourceKind `json:"source_b"`
}

// DuplicateRowDetails records same-source duplicate rows; the last-seen row
// was kept, the rest only surface here.
type DuplicateRowDetails struct {
	Source         SourceKind `json:"source"`
	ConceptCode    string     `json:"concept_code"`
	KeptOrigin     string     `json:"kept_origin"`
	DroppedOrigins []string   `json:"dropped_origins"`
}

// InvalidRowDetails records a row skipped during ingestion because its
// identity or value could not be normalized.
type InvalidRowDetails struct {
	Source    SourceKind `json:"source"`
	RowOrigin string     `json:"row_origin"`
	Reason    string     `json:"reason"`
}

// UncategorizedConceptDetails flags a concept code absent from the category map.
type UncategorizedConceptDetails struct {
	ConceptCode string `json:"concept_code"`
	Amount      int64  `json:"amount"`
}

// EncodeDetails marshals a typed details payload for storage.
func EncodeDetails(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return b
}

// DecodeDetails unmarshals the stored details payload into a typed struct.
func (i *Incident) DecodeDetails(v any) error {
	if len(i.Details) == 0 {
		return nil
	}
	return json.Unmarshal(i.Details, v)
}
