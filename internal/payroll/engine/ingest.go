// Package engine implements the reconciliation and consolidation passes as
// pure, deterministic functions over normalized concept records. Persistence
// and state-machine gating live in the service layer; every pass here can be
// re-run over the same inputs and produce the same output.
package engine

import (
	"fmt"
	"strings"

	"github.com/castrometro/SGM-sub005/internal/normalize"
	"github.com/castrometro/SGM-sub005/internal/payroll/domain"
)

// IngestResult is the outcome of normalizing one source file's rows.
type IngestResult struct {
	// Records are the accepted rows, deduplicated by (employee, concept)
	// keeping the last-seen row.
	Records []*domain.ConceptRecord
	// Incidents carries the row-level anomalies: invalid-row for rows that
	// could not be normalized, duplicate-row for same-source duplicates.
	Incidents []*domain.Incident

	Accepted      int
	Skipped       int
	Duplicates    int
	LowConfidence int
}

// IngestRows normalizes raw source rows into concept records. Row-level
// failures never abort the batch: the offending row is skipped and recorded
// as an informational invalid-row incident referencing its origin.
//
// nameIndex maps normalized display names to known RUTs for the organization.
// It is the secondary matching signal for sources that lack the ID column;
// matches through it are counted as low confidence and never merge into a
// different-ID employee.
func IngestRows(closureID string, source domain.SourceKind, rows []domain.SourceRow, nameIndex map[string]string) *IngestResult {
	res := &IngestResult{}

	type kept struct {
		record  *domain.ConceptRecord
		dropped []string
	}
	type key struct {
		rut     string
		concept string
	}

	byKey := make(map[key]*kept, len(rows))
	order := make([]key, 0, len(rows))

	for _, row := range rows {
		rut, lowConfidence, err := resolveIdentity(row, nameIndex)
		if err != nil {
			res.Skipped++
			res.Incidents = append(res.Incidents, invalidRowIncident(closureID, source, row, err.Error()))
			continue
		}
		if lowConfidence {
			res.LowConfidence++
		}

		concept := strings.TrimSpace(row.RawConcept)
		if concept == "" {
			res.Skipped++
			res.Incidents = append(res.Incidents, invalidRowIncident(closureID, source, row, "empty concept code"))
			continue
		}

		amount, err := normalize.Amount(row.RawValue)
		if err != nil {
			res.Skipped++
			res.Incidents = append(res.Incidents, invalidRowIncident(closureID, source, row, err.Error()))
			continue
		}

		record := &domain.ConceptRecord{
			ClosureID:    closureID,
			EmployeeRUT:  rut,
			EmployeeName: strings.TrimSpace(row.RawName),
			ConceptCode:  concept,
			Amount:       amount,
			Source:       source,
			RowOrigin:    row.Origin,
		}

		k := key{rut: rut, concept: concept}
		if existing, ok := byKey[k]; ok {
			// Same-source duplicate: keep the last-seen row, surface the
			// anomaly instead of summing or rejecting the file.
			existing.dropped = append(existing.dropped, existing.record.RowOrigin)
			existing.record = record
			res.Duplicates++
			continue
		}

		byKey[k] = &kept{record: record}
		order = append(order, k)
	}

	for _, k := range order {
		entry := byKey[k]
		res.Records = append(res.Records, entry.record)
		res.Accepted++

		if len(entry.dropped) > 0 {
			rut := entry.record.EmployeeRUT
			res.Incidents = append(res.Incidents, &domain.Incident{
				ClosureID:   closureID,
				EmployeeRUT: &rut,
				Type:        domain.IncidentDuplicateRow,
				Severity:    domain.SeverityInformational,
				State:       domain.IncidentPending,
				Fingerprint: domain.Fingerprint(closureID, rut, sourceConcept(entry.record.Source, entry.record.ConceptCode), domain.IncidentDuplicateRow),
				Description: fmt.Sprintf("duplicate rows for concept %s in %s file, kept last occurrence", entry.record.ConceptCode, entry.record.Source),
				Details: domain.EncodeDetails(domain.DuplicateRowDetails{
					Source:         entry.record.Source,
					ConceptCode:    entry.record.ConceptCode,
					KeptOrigin:     entry.record.RowOrigin,
					DroppedOrigins: entry.dropped,
				}),
			})
		}
	}

	return res
}

// resolveIdentity returns the normalized RUT for a row, falling back to the
// name index when the source lacks the ID column. The bool result reports a
// lower-confidence name match.
func resolveIdentity(row domain.SourceRow, nameIndex map[string]string) (string, bool, error) {
	rut, err := normalize.RUT(row.RawIdentity)
	if err == nil {
		return rut, false, nil
	}

	name := normalize.Name(row.RawName)
	if name != "" {
		if known, ok := nameIndex[name]; ok {
			return known, true, nil
		}
	}

	return "", false, err
}

func invalidRowIncident(closureID string, source domain.SourceKind, row domain.SourceRow, reason string) *domain.Incident {
	return &domain.Incident{
		ClosureID:   closureID,
		Type:        domain.IncidentInvalidRow,
		Severity:    domain.SeverityInformational,
		State:       domain.IncidentPending,
		Fingerprint: domain.Fingerprint(closureID, row.Origin, string(source), domain.IncidentInvalidRow),
		Description: fmt.Sprintf("row %s in %s file skipped: %s", row.Origin, source, reason),
		Details: domain.EncodeDetails(domain.InvalidRowDetails{
			Source:    source,
			RowOrigin: row.Origin,
			Reason:    reason,
		}),
	}
}

// sourceConcept builds the concept component of fingerprints that must stay
// distinct per source.
func sourceConcept(source domain.SourceKind, concept string) string {
	return string(source) + ":" + concept
}
