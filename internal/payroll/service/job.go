package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/castrometro/SGM-sub005/internal/normalize"
	"github.com/castrometro/SGM-sub005/internal/payroll/domain"
	"github.com/castrometro/SGM-sub005/internal/payroll/engine"
	"github.com/castrometro/SGM-sub005/pkg/joblock"
	"github.com/castrometro/SGM-sub005/pkg/logger"
	"github.com/castrometro/SGM-sub005/pkg/messaging"
)

// JobLock is a held per-closure job lock.
type JobLock interface {
	Release(ctx context.Context)
}

// JobLocker hands out per-closure job locks. Acquire fails with a concurrent
// job conflict when another job already holds the closure.
type JobLocker interface {
	Acquire(ctx context.Context, closureID string) (JobLock, error)
}

type redisLocker struct {
	inner *joblock.Locker
}

// NewJobLocker adapts the Redis-backed locker to the JobLocker interface.
func NewJobLocker(l *joblock.Locker) JobLocker {
	return redisLocker{inner: l}
}

func (r redisLocker) Acquire(ctx context.Context, closureID string) (JobLock, error) {
	lock, err := r.inner.Acquire(ctx, closureID)
	if err != nil {
		return nil, err
	}
	return lock, nil
}

// JobService runs the engine pipeline for one closure: ingest, first
// consolidation, reconciliation and re-consolidation. One job runs per
// closure at a time, and everything a job writes commits atomically.
const defaultBatchSize = 500

type JobService struct {
	store      Store
	provider   domain.RowProvider
	categories domain.CategoryProvider
	locker     JobLocker
	publisher  EventPublisher
	batchSize  int
	logger     *logger.Logger
}

// NewJobService creates a new job service. batchSize controls progress
// logging granularity during ingestion; it never affects outcomes.
func NewJobService(store Store, provider domain.RowProvider, categories domain.CategoryProvider, locker JobLocker, publisher EventPublisher, batchSize int, log *logger.Logger) *JobService {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &JobService{
		store:      store,
		provider:   provider,
		categories: categories,
		locker:     locker,
		publisher:  publisher,
		batchSize:  batchSize,
		logger:     log.WithComponent("job-service"),
	}
}

// Run executes one engine job for the closure. A job triggered while another
// one holds the closure fails with ConcurrentJobConflict; the worker requeues
// it, which gives triggers queued-behind-the-runner semantics.
func (s *JobService) Run(ctx context.Context, closureID, reason string) error {
	lock, err := s.locker.Acquire(ctx, closureID)
	if err != nil {
		return err
	}
	defer lock.Release(ctx)

	jobID := uuid.New().String()
	log := s.logger.WithClosureID(closureID).WithJobID(jobID)
	log.Info().Str("reason", reason).Msg("engine job started")

	start := time.Now()
	err = s.store.Atomically(ctx, func(tx Store) error {
		return s.run(ctx, tx, closureID, reason, log)
	})
	if err != nil {
		log.Error().Err(err).Msg("engine job failed, all changes rolled back")
		s.publisher.PublishJobFailed(ctx, closureID, reason, err)
		return err
	}

	duration := time.Since(start)
	log.Info().Dur("duration", duration).Msg("engine job completed")
	s.publisher.PublishJobCompleted(ctx, closureID, reason, duration.Milliseconds())
	return nil
}

func (s *JobService) run(ctx context.Context, tx Store, closureID, reason string, log *logger.Logger) error {
	closure, err := tx.Closures().GetByIDForUpdate(ctx, closureID)
	if err != nil {
		return err
	}

	if reason == messaging.TriggerResolutionBatch {
		return s.reconsolidate(ctx, tx, closure, log)
	}

	if closure.State == domain.ClosurePending {
		if err := s.advance(ctx, tx, closure, domain.ClosureInProgress); err != nil {
			return err
		}
	}

	if err := closure.State.AssertOperation(domain.OpIngest); err != nil {
		return err
	}
	if err := s.ingestAll(ctx, tx, closure, log); err != nil {
		return err
	}

	if closure.State == domain.ClosureInProgress {
		if err := s.consolidate(ctx, tx, closure, log); err != nil {
			return err
		}
		if err := s.advance(ctx, tx, closure, domain.ClosureDataConsolidated); err != nil {
			return err
		}
	}

	// Re-runs from a post-analysis state first fold back to
	// analysis_generated, then branch again on the fresh incident picture.
	switch closure.State {
	case domain.ClosureIncidentsOpen, domain.ClosureNoIncidents:
		if err := s.advance(ctx, tx, closure, domain.ClosureAnalysisGenerated); err != nil {
			return err
		}
	}

	if err := closure.State.AssertOperation(domain.OpReconcile); err != nil {
		return err
	}
	if err := s.reconcile(ctx, tx, closure, log); err != nil {
		return err
	}

	if closure.State == domain.ClosureDataConsolidated {
		if err := s.advance(ctx, tx, closure, domain.ClosureAnalysisGenerated); err != nil {
			return err
		}
	}
	if err := s.advance(ctx, tx, closure, closure.AnalysisBranch()); err != nil {
		return err
	}

	// Totals are recomputed now that the incident picture is known, so
	// records held by open blocking incidents stay out until resolved.
	return s.consolidate(ctx, tx, closure, log)
}

// ingestAll pulls every source's rows through normalization and replaces the
// closure's records per source. Sources with no uploaded file yield no rows
// and are left untouched.
func (s *JobService) ingestAll(ctx context.Context, tx Store, closure *domain.Closure, log *logger.Logger) error {
	nameIndex, err := s.nameIndex(ctx, tx, closure.OrganizationID)
	if err != nil {
		return err
	}

	for _, source := range domain.AllSources {
		rows, err := s.provider.Rows(ctx, closure.ID, source)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			continue
		}

		for start := 0; start < len(rows); start += s.batchSize {
			end := start + s.batchSize
			if end > len(rows) {
				end = len(rows)
			}
			log.Debug().
				Str("source", string(source)).
				Int("from", start).
				Int("to", end).
				Msg("normalizing row batch")
		}

		res := engine.IngestRows(closure.ID, source, rows, nameIndex)

		idsByRUT, err := s.registerEmployees(ctx, tx, closure.OrganizationID, res.Records, nameIndex)
		if err != nil {
			return err
		}
		for _, rec := range res.Records {
			rec.EmployeeID = idsByRUT[rec.EmployeeRUT]
		}

		if err := tx.Records().ReplaceSource(ctx, closure.ID, source, res.Records); err != nil {
			return err
		}

		newIncidents, err := s.reportIncidents(ctx, tx, res.Incidents)
		if err != nil {
			return err
		}

		log.Info().
			Str("source", string(source)).
			Int("accepted", res.Accepted).
			Int("skipped", res.Skipped).
			Int("duplicates", res.Duplicates).
			Int("low_confidence_matches", res.LowConfidence).
			Msg("source ingested")
		s.publisher.PublishRecordsIngested(ctx, closure.ID, source, res.Accepted, res.Skipped, res.Duplicates, newIncidents)
	}
	return nil
}

// nameIndex maps normalized employee names to RUTs for secondary matching.
func (s *JobService) nameIndex(ctx context.Context, tx Store, organizationID string) (map[string]string, error) {
	employees, err := tx.Employees().ListByOrganization(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	index := make(map[string]string, len(employees))
	for _, emp := range employees {
		if name := normalize.Name(emp.Name); name != "" {
			index[name] = emp.RUT
		}
	}
	return index, nil
}

// registerEmployees upserts every employee seen in the batch and returns
// their registry IDs keyed by RUT. Newly seen names also join the name index
// so later sources in the same job can match on them.
func (s *JobService) registerEmployees(ctx context.Context, tx Store, organizationID string, records []*domain.ConceptRecord, nameIndex map[string]string) (map[string]string, error) {
	idsByRUT := make(map[string]string)
	for _, rec := range records {
		if _, ok := idsByRUT[rec.EmployeeRUT]; ok {
			continue
		}
		emp := &domain.Employee{
			OrganizationID: organizationID,
			RUT:            rec.EmployeeRUT,
			Name:           rec.EmployeeName,
			Active:         true,
		}
		if err := tx.Employees().Upsert(ctx, emp); err != nil {
			return nil, err
		}
		idsByRUT[rec.EmployeeRUT] = emp.ID
		if name := normalize.Name(emp.Name); name != "" {
			if _, ok := nameIndex[name]; !ok {
				nameIndex[name] = emp.RUT
			}
		}
	}
	return idsByRUT, nil
}

// reconcile runs the cross-check pass and materializes its incidents.
func (s *JobService) reconcile(ctx context.Context, tx Store, closure *domain.Closure, log *logger.Logger) error {
	records, err := tx.Records().ListByClosure(ctx, closure.ID)
	if err != nil {
		return err
	}

	res := engine.Reconcile(closure.ID, records)
	created, err := s.reportIncidents(ctx, tx, res.Incidents)
	if err != nil {
		return err
	}

	if err := tx.Closures().SetLastReconciliation(ctx, closure.ID, time.Now().UTC()); err != nil {
		return err
	}
	if err := s.refreshClosureCounters(ctx, tx, closure); err != nil {
		return err
	}

	log.Info().
		Int("incidents_detected", len(res.Incidents)).
		Int("incidents_new", created).
		Int("open_blocking", closure.OpenBlockingCount).
		Msg("reconciliation pass completed")
	return nil
}

// consolidate recomputes the per-employee category totals from the records
// not blocked by an open blocking incident.
func (s *JobService) consolidate(ctx context.Context, tx Store, closure *domain.Closure, log *logger.Logger) error {
	records, err := tx.Records().ListByClosure(ctx, closure.ID)
	if err != nil {
		return err
	}

	blocked, err := s.blockedKeys(ctx, tx, closure.ID)
	if err != nil {
		return err
	}
	eligible := records[:0:0]
	for _, rec := range records {
		if !blocked[recordKey{rut: rec.EmployeeRUT, concept: rec.ConceptCode}] {
			eligible = append(eligible, rec)
		}
	}

	categories, err := s.categories.CategoryMap(closure.OrganizationID)
	if err != nil {
		return err
	}

	res := engine.Consolidate(closure.ID, eligible, categories)
	if err := tx.Totals().ReplaceForClosure(ctx, closure.ID, res.Totals); err != nil {
		return err
	}
	if _, err := s.reportIncidents(ctx, tx, res.Incidents); err != nil {
		return err
	}

	log.Info().
		Int("employees", len(res.Totals)).
		Int64("total_amount", res.TotalAmount).
		Int("uncategorized_concepts", res.UncategorizedConcepts).
		Msg("consolidation pass completed")
	s.publisher.PublishConsolidationCompleted(ctx, closure.ID, len(res.Totals), res.TotalAmount, res.UncategorizedConcepts)
	return nil
}

// reconsolidate refreshes the totals after incident resolutions converged the
// records on their corrected values.
func (s *JobService) reconsolidate(ctx context.Context, tx Store, closure *domain.Closure, log *logger.Logger) error {
	if err := closure.State.AssertOperation(domain.OpReconsolidate); err != nil {
		return err
	}
	if err := s.consolidate(ctx, tx, closure, log); err != nil {
		return err
	}
	return s.refreshClosureCounters(ctx, tx, closure)
}

type recordKey struct {
	rut     string
	concept string
}

// blockedKeys collects the (employee, concept) pairs held back by an open
// blocking incident.
func (s *JobService) blockedKeys(ctx context.Context, tx Store, closureID string) (map[recordKey]bool, error) {
	open, err := tx.Incidents().ListOpenBlocking(ctx, closureID)
	if err != nil {
		return nil, err
	}

	blocked := make(map[recordKey]bool)
	for _, inc := range open {
		if inc.EmployeeRUT == nil {
			continue
		}
		switch inc.Type {
		case domain.IncidentAmountMismatch:
			var details domain.AmountMismatchDetails
			if err := inc.DecodeDetails(&details); err != nil {
				return nil, err
			}
			blocked[recordKey{rut: *inc.EmployeeRUT, concept: details.ConceptCode}] = true
		case domain.IncidentOrphanMovement:
			var details domain.OrphanMovementDetails
			if err := inc.DecodeDetails(&details); err != nil {
				return nil, err
			}
			blocked[recordKey{rut: *inc.EmployeeRUT, concept: details.ConceptCode}] = true
		}
	}
	return blocked, nil
}

// reportIncidents persists incident drafts, skipping fingerprints already on
// file, and publishes creation events for the new ones.
func (s *JobService) reportIncidents(ctx context.Context, tx Store, incidents []*domain.Incident) (int, error) {
	created := 0
	for _, inc := range incidents {
		isNew, err := tx.Incidents().CreateIfAbsent(ctx, inc)
		if err != nil {
			return created, err
		}
		if isNew {
			created++
			s.publisher.PublishIncidentCreated(ctx, inc)
		}
	}
	return created, nil
}

func (s *JobService) refreshClosureCounters(ctx context.Context, tx Store, closure *domain.Closure) error {
	total, informational, err := tx.Incidents().CountByClosure(ctx, closure.ID)
	if err != nil {
		return err
	}
	openBlocking, err := tx.Incidents().CountOpenBlocking(ctx, closure.ID)
	if err != nil {
		return err
	}
	closure.TotalIncidents = total
	closure.OpenBlockingCount = openBlocking
	closure.InformationalCount = informational
	return tx.Closures().UpdateCounters(ctx, closure.ID, total, openBlocking, informational)
}

func (s *JobService) advance(ctx context.Context, tx Store, closure *domain.Closure, to domain.ClosureState) error {
	from := closure.State
	if err := tx.Closures().UpdateState(ctx, closure.ID, from, to); err != nil {
		return err
	}
	closure.State = to
	s.publisher.PublishClosureTransitioned(ctx, closure.ID, from, to, "")
	return nil
}
