package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// Closure lifecycle events
	EventClosureCreated      = "payroll.closure.created"
	EventClosureTransitioned = "payroll.closure.transitioned"

	// Ingestion events
	EventRecordsIngested = "payroll.records.ingested"

	// Incident events
	EventIncidentCreated      = "payroll.incident.created"
	EventIncidentTransitioned = "payroll.incident.transitioned"

	// Consolidation events
	EventConsolidationCompleted = "payroll.consolidation.completed"

	// Job events
	EventJobTriggered = "payroll.job.triggered"
	EventJobCompleted = "payroll.job.completed"
	EventJobFailed    = "payroll.job.failed"
)

// Exchange names
const (
	ExchangePayrollEvents = "payroll.events"
	ExchangePayrollJobs   = "payroll.jobs"
)

// Queue names
const (
	QueuePayrollJobs = "payroll.jobs.engine"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// GenerateEventID generates a unique event identifier
func GenerateEventID() string {
	return uuid.New().String()
}

// Job trigger reasons
const (
	TriggerSourceUploaded  = "source_uploaded"
	TriggerManualRerun     = "manual_rerun"
	TriggerResolutionBatch = "resolution_batch"
)

// JobTriggerEvent asks the engine to run one reconciliation/consolidation
// pass for a closure. The queue guarantees at-most-one-concurrent-per-closure;
// the engine re-checks via its own lock as defense in depth.
type JobTriggerEvent struct {
	ClosureID   string `json:"closure_id" validate:"required,uuid4"`
	Reason      string `json:"reason" validate:"required,oneof=source_uploaded manual_rerun resolution_batch"`
	RequestedBy string `json:"requested_by,omitempty"`
}

// ClosureTransitionedEvent is published on every closure state change
type ClosureTransitionedEvent struct {
	ClosureID string `json:"closure_id"`
	From      string `json:"from"`
	To        string `json:"to"`
	ActorID   string `json:"actor_id,omitempty"`
}

// RecordsIngestedEvent is published after a source file's rows are ingested
type RecordsIngestedEvent struct {
	ClosureID   string `json:"closure_id"`
	Source      string `json:"source"`
	Accepted    int    `json:"accepted"`
	Skipped     int    `json:"skipped"`
	Duplicates  int    `json:"duplicates"`
	NewIncident int    `json:"new_incidents"`
}

// IncidentCreatedEvent is published when reconciliation materializes an incident
type IncidentCreatedEvent struct {
	IncidentID string `json:"incident_id"`
	ClosureID  string `json:"closure_id"`
	Type       string `json:"type"`
	Severity   string `json:"severity"`
	EmployeeID string `json:"employee_id,omitempty"`
}

// IncidentTransitionedEvent is published on every incident workflow step
type IncidentTransitionedEvent struct {
	IncidentID string `json:"incident_id"`
	ClosureID  string `json:"closure_id"`
	From       string `json:"from"`
	To         string `json:"to"`
	ActorID    string `json:"actor_id"`
}

// ConsolidationCompletedEvent is published after a consolidation pass commits
type ConsolidationCompletedEvent struct {
	ClosureID     string `json:"closure_id"`
	Employees     int    `json:"employees"`
	TotalAmount   int64  `json:"total_amount"`
	Uncategorized int    `json:"uncategorized_concepts"`
}

// JobCompletedEvent is published when an engine job finishes
type JobCompletedEvent struct {
	ClosureID  string `json:"closure_id"`
	Reason     string `json:"reason"`
	DurationMs int64  `json:"duration_ms"`
}

// JobFailedEvent is published when an engine job aborts
type JobFailedEvent struct {
	ClosureID string `json:"closure_id"`
	Reason    string `json:"reason"`
	Error     string `json:"error"`
}
