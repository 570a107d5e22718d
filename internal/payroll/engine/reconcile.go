package engine

import (
	"fmt"
	"sort"

	"github.com/castrometro/SGM-sub005/internal/normalize"
	"github.com/castrometro/SGM-sub005/internal/payroll/domain"
)

// ReconcileResult carries the incidents detected by one reconciliation pass.
// Incident order is deterministic: employees by RUT, concepts by code,
// sources in declaration order.
type ReconcileResult struct {
	Incidents          []*domain.Incident
	BlockingCount      int
	InformationalCount int
}

type employeeBucket struct {
	rut string
	// names keeps every distinct spelling seen for the RUT, mapped to the
	// most authoritative source that carried it. Conflicting spellings
	// within a single source count the same as conflicts across sources.
	names map[string]domain.SourceKind
	// records indexes this employee's rows as concept -> source -> record.
	records map[string]map[domain.SourceKind]*domain.ConceptRecord
}

type nameSighting struct {
	name   string
	source domain.SourceKind
}

// Reconcile cross-checks all of a closure's records and derives the incident
// set. The ledger is the authoritative source: supplementary records for an
// employee absent from the ledger are orphans, and ledger values that
// contradict a supplementary source are mismatches. Running the pass twice
// over the same records yields the same fingerprint set.
func Reconcile(closureID string, records []*domain.ConceptRecord) *ReconcileResult {
	res := &ReconcileResult{}
	seen := make(map[string]bool)

	buckets := groupByEmployee(records)
	ruts := make([]string, 0, len(buckets))
	for rut := range buckets {
		ruts = append(ruts, rut)
	}
	sort.Strings(ruts)

	for _, rut := range ruts {
		b := buckets[rut]
		res.add(seen, identityConflicts(closureID, b)...)

		hasLedger := bucketHasSource(b, domain.SourceLedger)
		if !hasLedger {
			res.add(seen, orphanIncidents(closureID, b)...)
			continue
		}

		res.add(seen, amountMismatches(closureID, b)...)
		res.add(seen, missingCounterparts(closureID, b)...)
	}

	return res
}

func (r *ReconcileResult) add(seen map[string]bool, incidents ...*domain.Incident) {
	for _, inc := range incidents {
		if seen[inc.Fingerprint] {
			continue
		}
		seen[inc.Fingerprint] = true
		r.Incidents = append(r.Incidents, inc)
		if inc.Severity == domain.SeverityBlocking {
			r.BlockingCount++
		} else {
			r.InformationalCount++
		}
	}
}

func groupByEmployee(records []*domain.ConceptRecord) map[string]*employeeBucket {
	buckets := make(map[string]*employeeBucket)
	for _, rec := range records {
		b, ok := buckets[rec.EmployeeRUT]
		if !ok {
			b = &employeeBucket{
				rut:     rec.EmployeeRUT,
				names:   make(map[string]domain.SourceKind),
				records: make(map[string]map[domain.SourceKind]*domain.ConceptRecord),
			}
			buckets[rec.EmployeeRUT] = b
		}
		if rec.EmployeeName != "" {
			if src, ok := b.names[rec.EmployeeName]; !ok || sourceRank(rec.Source) < sourceRank(src) {
				b.names[rec.EmployeeName] = rec.Source
			}
		}
		bySource, ok := b.records[rec.ConceptCode]
		if !ok {
			bySource = make(map[domain.SourceKind]*domain.ConceptRecord)
			b.records[rec.ConceptCode] = bySource
		}
		bySource[rec.Source] = rec
	}
	return buckets
}

func bucketHasSource(b *employeeBucket, source domain.SourceKind) bool {
	for _, bySource := range b.records {
		if _, ok := bySource[source]; ok {
			return true
		}
	}
	return false
}

func (b *employeeBucket) sortedConcepts() []string {
	concepts := make([]string, 0, len(b.records))
	for c := range b.records {
		concepts = append(concepts, c)
	}
	sort.Strings(concepts)
	return concepts
}

// identityConflicts flags a shared RUT whose recorded spellings are
// incompatible, whether the rows came from different sources or the same
// file. Never auto-merged: the incident surfaces both spellings.
func identityConflicts(closureID string, b *employeeBucket) []*domain.Incident {
	if len(b.names) < 2 {
		return nil
	}

	sightings := make([]nameSighting, 0, len(b.names))
	for name, source := range b.names {
		sightings = append(sightings, nameSighting{name: name, source: source})
	}
	sort.Slice(sightings, func(i, j int) bool {
		if sightings[i].source != sightings[j].source {
			return sourceRank(sightings[i].source) < sourceRank(sightings[j].source)
		}
		return sightings[i].name < sightings[j].name
	})

	var out []*domain.Incident
	baseline := sightings[0].name
	baselineSource := sightings[0].source
	for _, s := range sightings[1:] {
		name, source := s.name, s.source
		if normalize.CompatibleNames(baseline, name) {
			continue
		}
		rut := b.rut
		out = append(out, &domain.Incident{
			ClosureID:   closureID,
			EmployeeRUT: &rut,
			Type:        domain.IncidentIdentityConflict,
			Severity:    domain.SeverityInformational,
			State:       domain.IncidentPending,
			Fingerprint: domain.Fingerprint(closureID, rut, "", domain.IncidentIdentityConflict),
			Description: fmt.Sprintf("RUT %s appears as %q in %s and %q in %s", rut, baseline, baselineSource, name, source),
			Details: domain.EncodeDetails(domain.IdentityConflictDetails{
				RUT:     rut,
				NameA:   baseline,
				SourceA: baselineSource,
				NameB:   name,
				SourceB: source,
			}),
		})
	}
	return out
}

// orphanIncidents flags every supplementary record of an employee who has no
// ledger presence in the closure.
func orphanIncidents(closureID string, b *employeeBucket) []*domain.Incident {
	var out []*domain.Incident
	for _, concept := range b.sortedConcepts() {
		bySource := b.records[concept]
		for _, source := range domain.AllSources {
			rec, ok := bySource[source]
			if !ok {
				continue
			}
			rut := b.rut
			out = append(out, &domain.Incident{
				ClosureID:   closureID,
				EmployeeRUT: &rut,
				Type:        domain.IncidentOrphanMovement,
				Severity:    domain.SeverityBlocking,
				State:       domain.IncidentPending,
				Fingerprint: domain.Fingerprint(closureID, rut, sourceConcept(source, concept), domain.IncidentOrphanMovement),
				Description: fmt.Sprintf("employee %s has %s in %s but no ledger presence", rut, concept, source),
				Details: domain.EncodeDetails(domain.OrphanMovementDetails{
					Source:      source,
					ConceptCode: concept,
					Amount:      rec.Amount,
					RowOrigin:   rec.RowOrigin,
				}),
			})
		}
	}
	return out
}

// amountMismatches compares the per-concept amounts across sources. Any two
// sources reporting different normalized amounts for the same employee and
// concept is a blocking mismatch; the ledger value, when present, is always
// the first side of the pair.
func amountMismatches(closureID string, b *employeeBucket) []*domain.Incident {
	var out []*domain.Incident
	for _, concept := range b.sortedConcepts() {
		bySource := b.records[concept]
		if len(bySource) < 2 {
			continue
		}
		var first *domain.ConceptRecord
		for _, source := range domain.AllSources {
			rec, ok := bySource[source]
			if !ok {
				continue
			}
			if first == nil {
				first = rec
				continue
			}
			if rec.Amount == first.Amount {
				continue
			}
			rut := b.rut
			out = append(out, &domain.Incident{
				ClosureID:   closureID,
				EmployeeRUT: &rut,
				Type:        domain.IncidentAmountMismatch,
				Severity:    domain.SeverityBlocking,
				State:       domain.IncidentPending,
				Fingerprint: domain.Fingerprint(closureID, rut, concept, domain.IncidentAmountMismatch),
				Description: fmt.Sprintf("employee %s concept %s: %d in %s vs %d in %s", rut, concept, first.Amount, first.Source, rec.Amount, rec.Source),
				Details: domain.EncodeDetails(domain.AmountMismatchDetails{
					ConceptCode: concept,
					SourceA:     first.Source,
					AmountA:     first.Amount,
					SourceB:     rec.Source,
					AmountB:     rec.Amount,
				}),
			})
		}
	}
	return out
}

// counterpartRule declares that a record in one source implies an expected
// counterpart somewhere else, and names the incident raised when the
// counterpart is missing.
type counterpartRule struct {
	presentIn domain.SourceKind
	incident  domain.IncidentType
	reason    string
	// satisfied reports whether the expectation holds for the employee.
	satisfied func(b *employeeBucket, concept string) bool
	expected  domain.SourceKind
}

var counterpartRules = []counterpartRule{
	{
		presentIn: domain.SourceIngress,
		incident:  domain.IncidentUnreportedIngress,
		reason:    "new hire must appear in the novelty file",
		expected:  domain.SourceNovelty,
		satisfied: func(b *employeeBucket, _ string) bool {
			return bucketHasSource(b, domain.SourceNovelty)
		},
	},
	{
		presentIn: domain.SourceTermination,
		incident:  domain.IncidentMissingTermination,
		reason:    "termination must have a matching ledger concept",
		expected:  domain.SourceLedger,
		satisfied: func(b *employeeBucket, concept string) bool {
			_, ok := b.records[concept][domain.SourceLedger]
			return ok
		},
	},
	{
		presentIn: domain.SourceAbsence,
		incident:  domain.IncidentUnjustifiedAbsence,
		reason:    "absence must have a matching ledger concept",
		expected:  domain.SourceLedger,
		satisfied: func(b *employeeBucket, concept string) bool {
			_, ok := b.records[concept][domain.SourceLedger]
			return ok
		},
	},
}

// missingCounterparts applies the business rules that tie supplementary
// sources to expected counterparts, for employees with ledger presence.
func missingCounterparts(closureID string, b *employeeBucket) []*domain.Incident {
	var out []*domain.Incident
	for _, concept := range b.sortedConcepts() {
		bySource := b.records[concept]
		for _, rule := range counterpartRules {
			rec, ok := bySource[rule.presentIn]
			if !ok || rule.satisfied(b, concept) {
				continue
			}
			rut := b.rut
			out = append(out, &domain.Incident{
				ClosureID:   closureID,
				EmployeeRUT: &rut,
				Type:        rule.incident,
				Severity:    domain.SeverityInformational,
				State:       domain.IncidentPending,
				Fingerprint: domain.Fingerprint(closureID, rut, concept, rule.incident),
				Description: fmt.Sprintf("employee %s: %s present in %s without counterpart in %s", rut, concept, rule.presentIn, rule.expected),
				Details: domain.EncodeDetails(domain.MissingCounterpartDetails{
					ConceptCode:    concept,
					PresentIn:      rule.presentIn,
					ExpectedIn:     rule.expected,
					Amount:         rec.Amount,
					ExpectedReason: rule.reason,
				}),
			})
		}
	}
	return out
}
