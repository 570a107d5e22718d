package service

import (
	"context"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/castrometro/SGM-sub005/internal/payroll/domain"
	"github.com/castrometro/SGM-sub005/pkg/actor"
	"github.com/castrometro/SGM-sub005/pkg/errors"
	"github.com/castrometro/SGM-sub005/pkg/logger"
)

var periodPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// ClosureService manages the monthly closure lifecycle.
type ClosureService struct {
	store     Store
	publisher EventPublisher
	validator *validator.Validate
	logger    *logger.Logger
}

// NewClosureService creates a new closure service.
func NewClosureService(store Store, publisher EventPublisher, log *logger.Logger) *ClosureService {
	return &ClosureService{
		store:     store,
		publisher: publisher,
		validator: validator.New(),
		logger:    log.WithComponent("closure-service"),
	}
}

// CreateClosureRequest opens a new closure for an organization and period.
type CreateClosureRequest struct {
	OrganizationID string `json:"organization_id" validate:"required"`
	Period         string `json:"period" validate:"required"`
}

// Create opens a closure in pending state. Only one active closure may exist
// per organization and period; a second attempt returns a conflict.
func (s *ClosureService) Create(ctx context.Context, req CreateClosureRequest) (*domain.Closure, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, errors.Validation(map[string]string{"request": err.Error()})
	}
	if !periodPattern.MatchString(req.Period) {
		return nil, errors.Validation(map[string]string{"period": "must be YYYY-MM"})
	}

	closure := &domain.Closure{
		OrganizationID: req.OrganizationID,
		Period:         req.Period,
		State:          domain.ClosurePending,
	}
	if err := s.store.Closures().Create(ctx, closure); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("closure_id", closure.ID).
		Str("organization_id", closure.OrganizationID).
		Str("period", closure.Period).
		Msg("closure created")

	return closure, nil
}

// Get returns a closure by ID.
func (s *ClosureService) Get(ctx context.Context, id string) (*domain.Closure, error) {
	return s.store.Closures().GetByID(ctx, id)
}

// ListByOrganization returns an organization's closures, newest period first.
func (s *ClosureService) ListByOrganization(ctx context.Context, organizationID string) ([]*domain.Closure, error) {
	return s.store.Closures().ListByOrganization(ctx, organizationID)
}

// SendToSupervisorReview moves a closure with all blocking incidents settled
// into supervisor review. A closure that never had blocking incidents passes
// through incidents_resolved on the way.
func (s *ClosureService) SendToSupervisorReview(ctx context.Context, closureID string) (*domain.Closure, error) {
	closure, err := s.store.Closures().GetByID(ctx, closureID)
	if err != nil {
		return nil, err
	}
	if closure.State == domain.ClosureNoIncidents {
		if _, err := s.transition(ctx, closureID, domain.ClosureIncidentsResolved, ""); err != nil {
			return nil, err
		}
	}
	return s.transition(ctx, closureID, domain.ClosureSupervisorReview, "")
}

// Complete finishes a closure. Supervisors only; completed is terminal.
func (s *ClosureService) Complete(ctx context.Context, closureID string) (*domain.Closure, error) {
	return s.transition(ctx, closureID, domain.ClosureCompleted, actor.RoleSupervisor)
}

// Cancel abandons a closure from any non-terminal state.
func (s *ClosureService) Cancel(ctx context.Context, closureID string) (*domain.Closure, error) {
	return s.transition(ctx, closureID, domain.ClosureCancelled, "")
}

func (s *ClosureService) transition(ctx context.Context, closureID string, to domain.ClosureState, requiredRole string) (*domain.Closure, error) {
	act := actor.FromContext(ctx)
	if act == nil {
		act = actor.SystemActor()
	}
	if requiredRole != "" && act.Role != requiredRole && !act.IsSystem() {
		return nil, errors.New("FORBIDDEN", "operation requires role "+requiredRole)
	}

	closure, err := s.store.Closures().GetByID(ctx, closureID)
	if err != nil {
		return nil, err
	}

	from := closure.State
	if err := s.store.Closures().UpdateState(ctx, closureID, from, to); err != nil {
		return nil, err
	}
	closure.State = to

	s.logger.Info().
		Str("closure_id", closureID).
		Str("from", string(from)).
		Str("to", string(to)).
		Str("actor_id", act.ID).
		Msg("closure transitioned")
	s.publisher.PublishClosureTransitioned(ctx, closureID, from, to, act.ID)

	return closure, nil
}
