package engine

import (
	"fmt"
	"sort"

	"github.com/castrometro/SGM-sub005/internal/payroll/domain"
)

// ConsolidateResult is the per-employee category rollup for a closure.
// Totals are sorted by employee RUT.
type ConsolidateResult struct {
	Totals    []*domain.ConsolidatedTotal
	Incidents []*domain.Incident

	// TotalAmount is the sum across every employee and bucket. It always
	// equals the sum of the consolidated record amounts.
	TotalAmount           int64
	UncategorizedConcepts int
}

// Consolidate rolls the closure's records up into per-employee category
// totals. One amount counts per (employee, concept): the ledger value takes
// precedence, and supplementary sources contribute only concepts the ledger
// does not carry. Concepts missing from the category map land in the
// uncategorized bucket and raise one informational incident per concept.
//
// The caller filters out records blocked by unresolved blocking incidents
// before handing them in.
func Consolidate(closureID string, records []*domain.ConceptRecord, categories domain.CategoryMap) *ConsolidateResult {
	res := &ConsolidateResult{}

	byEmployee := make(map[string]map[string]*domain.ConceptRecord)
	for _, rec := range records {
		concepts, ok := byEmployee[rec.EmployeeRUT]
		if !ok {
			concepts = make(map[string]*domain.ConceptRecord)
			byEmployee[rec.EmployeeRUT] = concepts
		}
		current, ok := concepts[rec.ConceptCode]
		if !ok || sourceRank(rec.Source) < sourceRank(current.Source) {
			concepts[rec.ConceptCode] = rec
		}
	}

	ruts := make([]string, 0, len(byEmployee))
	for rut := range byEmployee {
		ruts = append(ruts, rut)
	}
	sort.Strings(ruts)

	unknown := make(map[string]bool)
	for _, rut := range ruts {
		concepts := byEmployee[rut]
		total := &domain.ConsolidatedTotal{ClosureID: closureID, EmployeeRUT: rut}

		codes := make([]string, 0, len(concepts))
		for code := range concepts {
			codes = append(codes, code)
		}
		sort.Strings(codes)

		for _, code := range codes {
			rec := concepts[code]
			if total.EmployeeID == "" {
				total.EmployeeID = rec.EmployeeID
			}
			category, known := categories.Lookup(code)
			if !known {
				unknown[code] = true
				res.Incidents = append(res.Incidents, uncategorizedIncident(closureID, code, rec.Amount))
			}
			total.Add(category, rec.Amount)
		}

		res.Totals = append(res.Totals, total)
		res.TotalAmount += total.Sum()
	}

	res.UncategorizedConcepts = len(unknown)
	res.Incidents = dedupeByFingerprint(res.Incidents)
	return res
}

// sourceRank orders sources by authority for consolidation.
func sourceRank(source domain.SourceKind) int {
	for i, s := range domain.AllSources {
		if s == source {
			return i
		}
	}
	return len(domain.AllSources)
}

func uncategorizedIncident(closureID, conceptCode string, amount int64) *domain.Incident {
	return &domain.Incident{
		ClosureID:   closureID,
		Type:        domain.IncidentUncategorizedConcept,
		Severity:    domain.SeverityInformational,
		State:       domain.IncidentPending,
		Fingerprint: domain.Fingerprint(closureID, "", conceptCode, domain.IncidentUncategorizedConcept),
		Description: fmt.Sprintf("concept %s has no category mapping, amounts kept in uncategorized", conceptCode),
		Details: domain.EncodeDetails(domain.UncategorizedConceptDetails{
			ConceptCode: conceptCode,
			Amount:      amount,
		}),
	}
}

func dedupeByFingerprint(incidents []*domain.Incident) []*domain.Incident {
	seen := make(map[string]bool, len(incidents))
	out := incidents[:0]
	for _, inc := range incidents {
		if seen[inc.Fingerprint] {
			continue
		}
		seen[inc.Fingerprint] = true
		out = append(out, inc)
	}
	return out
}
