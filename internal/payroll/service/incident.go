package service

import (
	"context"

	"github.com/castrometro/SGM-sub005/internal/payroll/domain"
	"github.com/castrometro/SGM-sub005/pkg/actor"
	"github.com/castrometro/SGM-sub005/pkg/errors"
	"github.com/castrometro/SGM-sub005/pkg/logger"
)

// IncidentService runs the incident resolution workflow: analyst resolves,
// supervisor approves or rejects, every step lands in the audit history.
type IncidentService struct {
	store     Store
	publisher EventPublisher
	logger    *logger.Logger
}

// NewIncidentService creates a new incident service.
func NewIncidentService(store Store, publisher EventPublisher, log *logger.Logger) *IncidentService {
	return &IncidentService{
		store:     store,
		publisher: publisher,
		logger:    log.WithComponent("incident-service"),
	}
}

// Get returns an incident by ID.
func (s *IncidentService) Get(ctx context.Context, id string) (*domain.Incident, error) {
	return s.store.Incidents().GetByID(ctx, id)
}

// ListByClosure returns a closure's incidents, blocking first.
func (s *IncidentService) ListByClosure(ctx context.Context, closureID string) ([]*domain.Incident, error) {
	return s.store.Incidents().ListByClosure(ctx, closureID)
}

// History returns an incident's full transition history.
func (s *IncidentService) History(ctx context.Context, incidentID string) ([]*domain.IncidentTransition, error) {
	return s.store.Incidents().ListTransitions(ctx, incidentID)
}

// ResolveRequest is the analyst's proposed resolution for an incident.
type ResolveRequest struct {
	IncidentID string
	Note       *string
	// CorrectedAmount, when set on an amount mismatch, is the value the
	// records converge on once a supervisor approves.
	CorrectedAmount *int64
}

// Resolve records an analyst's resolution. Legal only while the closure sits
// in incidents_open.
func (s *IncidentService) Resolve(ctx context.Context, req ResolveRequest) (*domain.Incident, error) {
	return s.step(ctx, req.IncidentID, domain.IncidentResolvedByAnalyst, actor.RoleAnalyst, req.Note, req.CorrectedAmount)
}

// Approve records a supervisor's approval. For an amount mismatch with a
// corrected amount, the correction is applied to the closure's records in the
// same transaction. When the last open blocking incident is approved the
// closure advances to incidents_resolved.
func (s *IncidentService) Approve(ctx context.Context, incidentID string, note *string) (*domain.Incident, error) {
	return s.step(ctx, incidentID, domain.IncidentApprovedBySupervisor, actor.RoleSupervisor, note, nil)
}

// Reject sends an incident back to the analyst with the supervisor's note.
func (s *IncidentService) Reject(ctx context.Context, incidentID string, note *string) (*domain.Incident, error) {
	return s.step(ctx, incidentID, domain.IncidentRejected, actor.RoleSupervisor, note, nil)
}

// Reopen puts a rejected incident back into the analyst's queue.
func (s *IncidentService) Reopen(ctx context.Context, incidentID string, note *string) (*domain.Incident, error) {
	return s.step(ctx, incidentID, domain.IncidentPending, actor.RoleAnalyst, note, nil)
}

func (s *IncidentService) step(ctx context.Context, incidentID string, to domain.IncidentState, requiredRole string, note *string, correctedAmount *int64) (*domain.Incident, error) {
	act := actor.FromContext(ctx)
	if act == nil {
		act = actor.SystemActor()
	}
	if act.Role != requiredRole && !act.IsSystem() {
		return nil, errors.New("FORBIDDEN", "operation requires role "+requiredRole)
	}

	var incident *domain.Incident
	err := s.store.Atomically(ctx, func(tx Store) error {
		inc, err := tx.Incidents().GetByID(ctx, incidentID)
		if err != nil {
			return err
		}

		closure, err := tx.Closures().GetByIDForUpdate(ctx, inc.ClosureID)
		if err != nil {
			return err
		}
		if err := closure.State.AssertOperation(domain.OpResolveIncident); err != nil {
			return err
		}

		from := inc.State
		if err := tx.Incidents().Transition(ctx, inc, to, act.ID, note, correctedAmount); err != nil {
			return err
		}

		if to == domain.IncidentApprovedBySupervisor {
			if err := s.applyCorrection(ctx, tx, inc); err != nil {
				return err
			}
			if err := s.settleClosureIfDone(ctx, tx, closure); err != nil {
				return err
			}
		}

		if err := s.refreshCounters(ctx, tx, inc.ClosureID); err != nil {
			return err
		}

		incident = inc
		s.logger.Info().
			Str("incident_id", inc.ID).
			Str("closure_id", inc.ClosureID).
			Str("from", string(from)).
			Str("to", string(to)).
			Str("actor_id", act.ID).
			Msg("incident transitioned")
		s.publisher.PublishIncidentTransitioned(ctx, inc, from, act.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return incident, nil
}

// applyCorrection converges the closure's records on the corrected amount
// recorded by the analyst, if the approved incident carries one.
func (s *IncidentService) applyCorrection(ctx context.Context, tx Store, inc *domain.Incident) error {
	if inc.Type != domain.IncidentAmountMismatch || inc.EmployeeRUT == nil {
		return nil
	}

	corrected, err := s.latestCorrection(ctx, tx, inc.ID)
	if err != nil || corrected == nil {
		return err
	}

	var details domain.AmountMismatchDetails
	if err := inc.DecodeDetails(&details); err != nil {
		return err
	}

	updated, err := tx.Records().UpdateAmountByKey(ctx, inc.ClosureID, *inc.EmployeeRUT, details.ConceptCode, *corrected)
	if err != nil {
		return err
	}

	s.logger.Info().
		Str("incident_id", inc.ID).
		Str("concept_code", details.ConceptCode).
		Int64("corrected_amount", *corrected).
		Int("records_updated", updated).
		Msg("correction applied to records")
	return nil
}

// latestCorrection finds the corrected amount on the most recent resolution
// step, if any.
func (s *IncidentService) latestCorrection(ctx context.Context, tx Store, incidentID string) (*int64, error) {
	transitions, err := tx.Incidents().ListTransitions(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	for i := len(transitions) - 1; i >= 0; i-- {
		if transitions[i].CorrectedAmount != nil {
			return transitions[i].CorrectedAmount, nil
		}
	}
	return nil, nil
}

// settleClosureIfDone advances the closure to incidents_resolved once no open
// blocking incidents remain.
func (s *IncidentService) settleClosureIfDone(ctx context.Context, tx Store, closure *domain.Closure) error {
	if closure.State != domain.ClosureIncidentsOpen {
		return nil
	}

	open, err := tx.Incidents().CountOpenBlocking(ctx, closure.ID)
	if err != nil {
		return err
	}
	if open > 0 {
		return nil
	}

	if err := tx.Closures().UpdateState(ctx, closure.ID, closure.State, domain.ClosureIncidentsResolved); err != nil {
		return err
	}
	from := closure.State
	closure.State = domain.ClosureIncidentsResolved
	s.publisher.PublishClosureTransitioned(ctx, closure.ID, from, closure.State, actor.SystemActor().ID)
	return nil
}

func (s *IncidentService) refreshCounters(ctx context.Context, tx Store, closureID string) error {
	total, informational, err := tx.Incidents().CountByClosure(ctx, closureID)
	if err != nil {
		return err
	}
	openBlocking, err := tx.Incidents().CountOpenBlocking(ctx, closureID)
	if err != nil {
		return err
	}
	return tx.Closures().UpdateCounters(ctx, closureID, total, openBlocking, informational)
}

// AcknowledgeInformational marks every pending informational incident of a
// closure as reviewed in one analyst batch. Informational incidents never
// block the closure; the batch stops at resolved_by_analyst and supervisors
// terminal-approve via ApproveInformational.
func (s *IncidentService) AcknowledgeInformational(ctx context.Context, closureID string, note *string) (int, error) {
	return s.informationalBatch(ctx, closureID, domain.IncidentPending, domain.IncidentResolvedByAnalyst, actor.RoleAnalyst, note, "informational incidents acknowledged")
}

// ApproveInformational terminal-approves every analyst-resolved informational
// incident of a closure in one supervisor batch.
func (s *IncidentService) ApproveInformational(ctx context.Context, closureID string, note *string) (int, error) {
	return s.informationalBatch(ctx, closureID, domain.IncidentResolvedByAnalyst, domain.IncidentApprovedBySupervisor, actor.RoleSupervisor, note, "informational incidents approved")
}

func (s *IncidentService) informationalBatch(ctx context.Context, closureID string, from, to domain.IncidentState, requiredRole string, note *string, msg string) (int, error) {
	act := actor.FromContext(ctx)
	if act == nil {
		act = actor.SystemActor()
	}
	if act.Role != requiredRole && !act.IsSystem() {
		return 0, errors.New("FORBIDDEN", "operation requires role "+requiredRole)
	}

	stepped := 0
	err := s.store.Atomically(ctx, func(tx Store) error {
		closure, err := tx.Closures().GetByIDForUpdate(ctx, closureID)
		if err != nil {
			return err
		}
		if err := closure.State.AssertOperation(domain.OpAcknowledgeBatch); err != nil {
			return err
		}

		incidents, err := tx.Incidents().ListByClosure(ctx, closureID)
		if err != nil {
			return err
		}

		for _, inc := range incidents {
			if inc.Severity != domain.SeverityInformational || inc.State != from {
				continue
			}
			if err := tx.Incidents().Transition(ctx, inc, to, act.ID, note, nil); err != nil {
				return err
			}
			stepped++
		}

		return s.refreshCounters(ctx, tx, closureID)
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info().
		Str("closure_id", closureID).
		Int("incidents", stepped).
		Str("actor_id", act.ID).
		Msg(msg)
	return stepped, nil
}
