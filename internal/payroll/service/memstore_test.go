package service_test

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/castrometro/SGM-sub005/internal/payroll/domain"
	"github.com/castrometro/SGM-sub005/internal/payroll/service"
	"github.com/castrometro/SGM-sub005/pkg/errors"
)

// memStore is an in-memory Store for service tests. Atomically runs the
// callback directly; transactional rollback is covered by the database layer.
type memStore struct {
	closures    map[string]*domain.Closure
	employees   map[string]*domain.Employee
	records     []*domain.ConceptRecord
	incidents   map[string]*domain.Incident
	transitions map[string][]*domain.IncidentTransition
	totals      map[string][]*domain.ConsolidatedTotal
}

func newMemStore() *memStore {
	return &memStore{
		closures:    make(map[string]*domain.Closure),
		employees:   make(map[string]*domain.Employee),
		incidents:   make(map[string]*domain.Incident),
		transitions: make(map[string][]*domain.IncidentTransition),
		totals:      make(map[string][]*domain.ConsolidatedTotal),
	}
}

func (s *memStore) Atomically(ctx context.Context, fn func(service.Store) error) error {
	return fn(s)
}

func (s *memStore) Closures() service.ClosureStore   { return (*memClosures)(s) }
func (s *memStore) Employees() service.EmployeeStore { return (*memEmployees)(s) }
func (s *memStore) Records() service.RecordStore     { return (*memRecords)(s) }
func (s *memStore) Incidents() service.IncidentStore { return (*memIncidents)(s) }
func (s *memStore) Totals() service.TotalsStore      { return (*memTotals)(s) }

type memClosures memStore

func (s *memClosures) Create(_ context.Context, closure *domain.Closure) error {
	for _, existing := range s.closures {
		if existing.OrganizationID == closure.OrganizationID &&
			existing.Period == closure.Period && existing.State.Active() {
			return errors.Conflict("active closure already exists for period")
		}
	}
	if closure.ID == "" {
		closure.ID = uuid.New().String()
	}
	closure.CreatedAt = time.Now()
	closure.UpdatedAt = closure.CreatedAt
	s.closures[closure.ID] = closure
	return nil
}

func (s *memClosures) GetByID(_ context.Context, id string) (*domain.Closure, error) {
	closure, ok := s.closures[id]
	if !ok {
		return nil, errors.NotFound("closure")
	}
	copied := *closure
	return &copied, nil
}

func (s *memClosures) GetByIDForUpdate(ctx context.Context, id string) (*domain.Closure, error) {
	return s.GetByID(ctx, id)
}

func (s *memClosures) ListByOrganization(_ context.Context, organizationID string) ([]*domain.Closure, error) {
	var out []*domain.Closure
	for _, closure := range s.closures {
		if closure.OrganizationID == organizationID {
			copied := *closure
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period > out[j].Period })
	return out, nil
}

func (s *memClosures) UpdateState(_ context.Context, id string, from, to domain.ClosureState) error {
	if err := from.AssertTransition(to); err != nil {
		return err
	}
	closure, ok := s.closures[id]
	if !ok {
		return errors.NotFound("closure")
	}
	if closure.State != from {
		return errors.InvalidClosureTransition(string(closure.State), string(to))
	}
	closure.State = to
	closure.UpdatedAt = time.Now()
	return nil
}

func (s *memClosures) UpdateCounters(_ context.Context, id string, total, openBlocking, informational int) error {
	closure, ok := s.closures[id]
	if !ok {
		return errors.NotFound("closure")
	}
	closure.TotalIncidents = total
	closure.OpenBlockingCount = openBlocking
	closure.InformationalCount = informational
	return nil
}

func (s *memClosures) SetLastReconciliation(_ context.Context, id string, at time.Time) error {
	closure, ok := s.closures[id]
	if !ok {
		return errors.NotFound("closure")
	}
	closure.LastReconciliationAt = &at
	return nil
}

type memEmployees memStore

func (s *memEmployees) Upsert(_ context.Context, emp *domain.Employee) error {
	key := emp.OrganizationID + "|" + emp.RUT
	if existing, ok := s.employees[key]; ok {
		emp.ID = existing.ID
		emp.Name = existing.Name
		return nil
	}
	if emp.ID == "" {
		emp.ID = uuid.New().String()
	}
	stored := *emp
	s.employees[key] = &stored
	return nil
}

func (s *memEmployees) GetByRUT(_ context.Context, organizationID, rut string) (*domain.Employee, error) {
	emp, ok := s.employees[organizationID+"|"+rut]
	if !ok {
		return nil, errors.NotFound("employee")
	}
	copied := *emp
	return &copied, nil
}

func (s *memEmployees) ListByOrganization(_ context.Context, organizationID string) ([]*domain.Employee, error) {
	var out []*domain.Employee
	for _, emp := range s.employees {
		if emp.OrganizationID == organizationID {
			copied := *emp
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RUT < out[j].RUT })
	return out, nil
}

type memRecords memStore

func (s *memRecords) ReplaceSource(_ context.Context, closureID string, source domain.SourceKind, records []*domain.ConceptRecord) error {
	kept := s.records[:0:0]
	for _, rec := range s.records {
		if rec.ClosureID != closureID || rec.Source != source {
			kept = append(kept, rec)
		}
	}
	for _, rec := range records {
		if rec.ID == "" {
			rec.ID = uuid.New().String()
		}
		stored := *rec
		kept = append(kept, &stored)
	}
	s.records = kept
	return nil
}

func (s *memRecords) ListByClosure(_ context.Context, closureID string) ([]*domain.ConceptRecord, error) {
	var out []*domain.ConceptRecord
	for _, rec := range s.records {
		if rec.ClosureID == closureID {
			copied := *rec
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.EmployeeRUT != b.EmployeeRUT {
			return a.EmployeeRUT < b.EmployeeRUT
		}
		if a.ConceptCode != b.ConceptCode {
			return a.ConceptCode < b.ConceptCode
		}
		return a.Source < b.Source
	})
	return out, nil
}

func (s *memRecords) UpdateAmountByKey(_ context.Context, closureID, employeeRUT, conceptCode string, amount int64) (int, error) {
	updated := 0
	for _, rec := range s.records {
		if rec.ClosureID == closureID && rec.EmployeeRUT == employeeRUT && rec.ConceptCode == conceptCode {
			rec.Amount = amount
			updated++
		}
	}
	return updated, nil
}

func (s *memRecords) SetEmployeeIDs(_ context.Context, closureID string, idsByRUT map[string]string) error {
	for _, rec := range s.records {
		if rec.ClosureID == closureID {
			if id, ok := idsByRUT[rec.EmployeeRUT]; ok {
				rec.EmployeeID = id
			}
		}
	}
	return nil
}

type memIncidents memStore

func (s *memIncidents) CreateIfAbsent(_ context.Context, inc *domain.Incident) (bool, error) {
	for _, existing := range s.incidents {
		if existing.Fingerprint == inc.Fingerprint {
			return false, nil
		}
	}
	if inc.ID == "" {
		inc.ID = uuid.New().String()
	}
	if inc.Version == 0 {
		inc.Version = 1
	}
	inc.CreatedAt = time.Now()
	stored := *inc
	s.incidents[inc.ID] = &stored
	return true, nil
}

func (s *memIncidents) GetByID(_ context.Context, id string) (*domain.Incident, error) {
	inc, ok := s.incidents[id]
	if !ok {
		return nil, errors.NotFound("incident")
	}
	copied := *inc
	return &copied, nil
}

func (s *memIncidents) ListByClosure(_ context.Context, closureID string) ([]*domain.Incident, error) {
	var out []*domain.Incident
	for _, inc := range s.incidents {
		if inc.ClosureID == closureID {
			copied := *inc
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memIncidents) ListOpenBlocking(ctx context.Context, closureID string) ([]*domain.Incident, error) {
	all, _ := s.ListByClosure(ctx, closureID)
	var out []*domain.Incident
	for _, inc := range all {
		if inc.Severity == domain.SeverityBlocking && inc.State != domain.IncidentApprovedBySupervisor {
			out = append(out, inc)
		}
	}
	return out, nil
}

func (s *memIncidents) CountOpenBlocking(ctx context.Context, closureID string) (int, error) {
	open, _ := s.ListOpenBlocking(ctx, closureID)
	return len(open), nil
}

func (s *memIncidents) CountByClosure(ctx context.Context, closureID string) (int, int, error) {
	all, _ := s.ListByClosure(ctx, closureID)
	informational := 0
	for _, inc := range all {
		if inc.Severity == domain.SeverityInformational {
			informational++
		}
	}
	return len(all), informational, nil
}

func (s *memIncidents) Transition(_ context.Context, inc *domain.Incident, to domain.IncidentState, actorID string, note *string, correctedAmount *int64) error {
	if err := inc.State.AssertTransition(to); err != nil {
		return err
	}
	stored, ok := s.incidents[inc.ID]
	if !ok {
		return errors.NotFound("incident")
	}
	if stored.Version != inc.Version {
		return errors.Conflict("incident was modified by someone else, reload and retry")
	}
	s.transitions[inc.ID] = append(s.transitions[inc.ID], &domain.IncidentTransition{
		ID:              uuid.New().String(),
		IncidentID:      inc.ID,
		FromState:       inc.State,
		ToState:         to,
		ActorID:         actorID,
		Note:            note,
		CorrectedAmount: correctedAmount,
		CreatedAt:       time.Now(),
	})
	stored.State = to
	stored.Version++
	inc.State = to
	inc.Version = stored.Version
	return nil
}

func (s *memIncidents) ListTransitions(_ context.Context, incidentID string) ([]*domain.IncidentTransition, error) {
	return s.transitions[incidentID], nil
}

type memTotals memStore

func (s *memTotals) ReplaceForClosure(_ context.Context, closureID string, totals []*domain.ConsolidatedTotal) error {
	stored := make([]*domain.ConsolidatedTotal, 0, len(totals))
	for _, t := range totals {
		copied := *t
		stored = append(stored, &copied)
	}
	s.totals[closureID] = stored
	return nil
}

func (s *memTotals) ListByClosure(_ context.Context, closureID string) ([]*domain.ConsolidatedTotal, error) {
	return s.totals[closureID], nil
}
