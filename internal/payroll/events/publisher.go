package events

import (
	"context"

	"github.com/castrometro/SGM-sub005/internal/payroll/domain"
	"github.com/castrometro/SGM-sub005/pkg/logger"
	"github.com/castrometro/SGM-sub005/pkg/messaging"
)

// PayrollEventPublisher publishes payroll engine events. Publishing is fire
// and forget: a broker hiccup is logged and never fails the operation that
// triggered it.
type PayrollEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewPayrollEventPublisher creates a publisher bound to the payroll events
// exchange.
func NewPayrollEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*PayrollEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangePayrollEvents, "payroll-engine", log)
	if err != nil {
		return nil, err
	}

	return &PayrollEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// PublishClosureTransitioned publishes a closure state change.
func (p *PayrollEventPublisher) PublishClosureTransitioned(ctx context.Context, closureID string, from, to domain.ClosureState, actorID string) {
	if p == nil {
		return
	}

	data := messaging.ClosureTransitionedEvent{
		ClosureID: closureID,
		From:      string(from),
		To:        string(to),
		ActorID:   actorID,
	}

	if err := p.publisher.Publish(ctx, messaging.EventClosureTransitioned, data); err != nil {
		p.logger.Error().Err(err).Str("closure_id", closureID).Msg("failed to publish closure transitioned event")
	}
}

// PublishRecordsIngested publishes the outcome of one source file ingestion.
func (p *PayrollEventPublisher) PublishRecordsIngested(ctx context.Context, closureID string, source domain.SourceKind, accepted, skipped, duplicates, newIncidents int) {
	if p == nil {
		return
	}

	data := messaging.RecordsIngestedEvent{
		ClosureID:   closureID,
		Source:      string(source),
		Accepted:    accepted,
		Skipped:     skipped,
		Duplicates:  duplicates,
		NewIncident: newIncidents,
	}

	if err := p.publisher.Publish(ctx, messaging.EventRecordsIngested, data); err != nil {
		p.logger.Error().Err(err).Str("closure_id", closureID).Msg("failed to publish records ingested event")
	}
}

// PublishIncidentCreated publishes a newly materialized incident.
func (p *PayrollEventPublisher) PublishIncidentCreated(ctx context.Context, inc *domain.Incident) {
	if p == nil {
		return
	}

	employeeID := ""
	if inc.EmployeeID != nil {
		employeeID = *inc.EmployeeID
	}

	data := messaging.IncidentCreatedEvent{
		IncidentID: inc.ID,
		ClosureID:  inc.ClosureID,
		Type:       string(inc.Type),
		Severity:   string(inc.Severity),
		EmployeeID: employeeID,
	}

	if err := p.publisher.Publish(ctx, messaging.EventIncidentCreated, data); err != nil {
		p.logger.Error().Err(err).Str("incident_id", inc.ID).Msg("failed to publish incident created event")
	}
}

// PublishIncidentTransitioned publishes an incident workflow step.
func (p *PayrollEventPublisher) PublishIncidentTransitioned(ctx context.Context, inc *domain.Incident, from domain.IncidentState, actorID string) {
	if p == nil {
		return
	}

	data := messaging.IncidentTransitionedEvent{
		IncidentID: inc.ID,
		ClosureID:  inc.ClosureID,
		From:       string(from),
		To:         string(inc.State),
		ActorID:    actorID,
	}

	if err := p.publisher.Publish(ctx, messaging.EventIncidentTransitioned, data); err != nil {
		p.logger.Error().Err(err).Str("incident_id", inc.ID).Msg("failed to publish incident transitioned event")
	}
}

// PublishConsolidationCompleted publishes the summary of a consolidation pass.
func (p *PayrollEventPublisher) PublishConsolidationCompleted(ctx context.Context, closureID string, employees int, totalAmount int64, uncategorized int) {
	if p == nil {
		return
	}

	data := messaging.ConsolidationCompletedEvent{
		ClosureID:     closureID,
		Employees:     employees,
		TotalAmount:   totalAmount,
		Uncategorized: uncategorized,
	}

	if err := p.publisher.Publish(ctx, messaging.EventConsolidationCompleted, data); err != nil {
		p.logger.Error().Err(err).Str("closure_id", closureID).Msg("failed to publish consolidation completed event")
	}
}

// PublishJobCompleted publishes a successful engine job run.
func (p *PayrollEventPublisher) PublishJobCompleted(ctx context.Context, closureID, reason string, durationMs int64) {
	if p == nil {
		return
	}

	data := messaging.JobCompletedEvent{
		ClosureID:  closureID,
		Reason:     reason,
		DurationMs: durationMs,
	}

	if err := p.publisher.Publish(ctx, messaging.EventJobCompleted, data); err != nil {
		p.logger.Error().Err(err).Str("closure_id", closureID).Msg("failed to publish job completed event")
	}
}

// PublishJobFailed publishes an aborted engine job run.
func (p *PayrollEventPublisher) PublishJobFailed(ctx context.Context, closureID, reason string, jobErr error) {
	if p == nil {
		return
	}

	data := messaging.JobFailedEvent{
		ClosureID: closureID,
		Reason:    reason,
		Error:     jobErr.Error(),
	}

	if err := p.publisher.Publish(ctx, messaging.EventJobFailed, data); err != nil {
		p.logger.Error().Err(err).Str("closure_id", closureID).Msg("failed to publish job failed event")
	}
}
