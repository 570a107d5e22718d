package domain

import (
	"time"

	"github.com/castrometro/SGM-sub005/pkg/errors"
)

// ClosureState is the lifecycle stage of a period closure. The state machine
// is the single authority for what may happen next within a period.
type ClosureState string

const (
	ClosurePending           ClosureState = "pending"
	ClosureInProgress        ClosureState = "in_progress"
	ClosureDataConsolidated  ClosureState = "data_consolidated"
	ClosureAnalysisGenerated ClosureState = "analysis_generated"
	ClosureIncidentsOpen     ClosureState = "incidents_open"
	ClosureNoIncidents       ClosureState = "no_incidents"
	ClosureIncidentsResolved ClosureState = "incidents_resolved"
	ClosureSupervisorReview  ClosureState = "supervisor_review"
	ClosureCompleted         ClosureState = "completed"
	ClosureCancelled         ClosureState = "cancelled"
)

// closureTransitions is the legal transition table. Anything absent here
// fails with InvalidClosureTransition and must not mutate state.
var closureTransitions = map[ClosureState][]ClosureState{
	ClosurePending:          {ClosureInProgress, ClosureCancelled},
	ClosureInProgress:       {ClosureDataConsolidated, ClosureCancelled},
	ClosureDataConsolidated: {ClosureAnalysisGenerated, ClosureCancelled},
	// The branch point: reconciliation either found blocking incidents or not.
	ClosureAnalysisGenerated: {ClosureIncidentsOpen, ClosureNoIncidents, ClosureCancelled},
	// New uploads after analysis re-run reconciliation and may reopen the branch.
	ClosureIncidentsOpen:     {ClosureIncidentsResolved, ClosureAnalysisGenerated, ClosureCancelled},
	ClosureNoIncidents:       {ClosureIncidentsResolved, ClosureAnalysisGenerated, ClosureCancelled},
	ClosureIncidentsResolved: {ClosureSupervisorReview, ClosureAnalysisGenerated, ClosureCancelled},
	ClosureSupervisorReview:  {ClosureCompleted, ClosureCancelled},
	ClosureCompleted:         {},
	ClosureCancelled:         {},
}

// CanTransition reports whether from -> to is a legal closure transition.
func (from ClosureState) CanTransition(to ClosureState) bool {
	for _, next := range closureTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AssertTransition returns InvalidClosureTransition when from -> to is not legal.
func (from ClosureState) AssertTransition(to ClosureState) error {
	if !from.CanTransition(to) {
		return errors.InvalidClosureTransition(string(from), string(to))
	}
	return nil
}

// Terminal reports whether the state ends the closure's lifecycle.
func (s ClosureState) Terminal() bool {
	return s == ClosureCompleted || s == ClosureCancelled
}

// Active reports whether the closure still counts against the one-active-
// closure-per-(organization, period) invariant.
func (s ClosureState) Active() bool {
	return !s.Terminal()
}

// Operation names the engine operations gated by the closure state machine.
type Operation string

const (
	OpIngest           Operation = "ingest"
	OpConsolidate      Operation = "consolidate"
	OpReconcile        Operation = "reconcile"
	OpResolveIncident  Operation = "resolve_incident"
	OpAcknowledgeBatch Operation = "acknowledge_batch"
	OpReconsolidate    Operation = "reconsolidate"
)

// operationWindows declares, per operation, the closure states it is legal in.
var operationWindows = map[Operation][]ClosureState{
	OpIngest: {ClosurePending, ClosureInProgress, ClosureAnalysisGenerated,
		ClosureIncidentsOpen, ClosureNoIncidents},
	OpConsolidate: {ClosureInProgress},
	OpReconcile: {ClosureDataConsolidated, ClosureAnalysisGenerated,
		ClosureIncidentsOpen, ClosureNoIncidents},
	OpResolveIncident:  {ClosureIncidentsOpen},
	OpAcknowledgeBatch: {ClosureIncidentsOpen, ClosureNoIncidents},
	OpReconsolidate:    {ClosureIncidentsResolved, ClosureNoIncidents, ClosureSupervisorReview},
}

// AssertOperation rejects operations attempted outside their legal state
// window. Rejection carries the window so callers can report it.
func (s ClosureState) AssertOperation(op Operation) error {
	for _, allowed := range operationWindows[op] {
		if s == allowed {
			return nil
		}
	}
	return errors.InvalidClosureTransition(string(s), string(op))
}

// Closure is one (organization, period) payroll cycle. At most one active
// closure exists per pair; past the pending state it is soft-retired via
// cancellation, never physically deleted.
type Closure struct {
	ID                   string       `db:"id" json:"id"`
	OrganizationID       string       `db:"organization_id" json:"organization_id"`
	Period               string       `db:"period" json:"period"`
	State                ClosureState `db:"state" json:"state"`
	TotalIncidents       int          `db:"total_incidents" json:"total_incidents"`
	OpenBlockingCount    int          `db:"open_blocking_count" json:"open_blocking_count"`
	InformationalCount   int          `db:"informational_count" json:"informational_count"`
	CreatedAt            time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time    `db:"updated_at" json:"updated_at"`
	CompletedAt          *time.Time   `db:"completed_at" json:"completed_at,omitempty"`
	LastReconciliationAt *time.Time   `db:"last_reconciliation_at" json:"last_reconciliation_at,omitempty"`
}

// AnalysisBranch decides the post-reconciliation branch from the open
// blocking incident counter.
func (c *Closure) AnalysisBranch() ClosureState {
	if c.OpenBlockingCount > 0 {
		return ClosureIncidentsOpen
	}
	return ClosureNoIncidents
}
