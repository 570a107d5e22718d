package engine_test

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castrometro/SGM-sub005/internal/payroll/domain"
	"github.com/castrometro/SGM-sub005/internal/payroll/engine"
)

func record(rut, name, concept string, amount int64, source domain.SourceKind) *domain.ConceptRecord {
	return &domain.ConceptRecord{
		ClosureID:    testClosureID,
		EmployeeRUT:  rut,
		EmployeeName: name,
		ConceptCode:  concept,
		Amount:       amount,
		Source:       source,
	}
}

func incidentsOfType(incidents []*domain.Incident, t domain.IncidentType) []*domain.Incident {
	var out []*domain.Incident
	for _, inc := range incidents {
		if inc.Type == t {
			out = append(out, inc)
		}
	}
	return out
}

func TestReconcile_AmountMismatchIsBlocking(t *testing.T) {
	records := []*domain.ConceptRecord{
		record("123456789", "Maria Gonzalez", "SUELDO_BASE", 1500000, domain.SourceLedger),
		record("123456789", "Maria Gonzalez", "SUELDO_BASE", 1550000, domain.SourceNovelty),
	}

	res := engine.Reconcile(testClosureID, records)

	require.Len(t, res.Incidents, 1)
	inc := res.Incidents[0]
	assert.Equal(t, domain.IncidentAmountMismatch, inc.Type)
	assert.Equal(t, domain.SeverityBlocking, inc.Severity)
	assert.Equal(t, 1, res.BlockingCount)
	assert.Equal(t, 0, res.InformationalCount)

	assert.Contains(t, string(inc.Details), "1500000")
	assert.Contains(t, string(inc.Details), "1550000")
}

func TestReconcile_MatchingAmountsRaiseNothing(t *testing.T) {
	records := []*domain.ConceptRecord{
		record("123456789", "Maria Gonzalez", "SUELDO_BASE", 1500000, domain.SourceLedger),
		record("123456789", "Maria Gonzalez", "SUELDO_BASE", 1500000, domain.SourceNovelty),
	}

	res := engine.Reconcile(testClosureID, records)
	assert.Empty(t, res.Incidents)
}

func TestReconcile_OrphanMovement(t *testing.T) {
	records := []*domain.ConceptRecord{
		record("123456789", "Maria Gonzalez", "SUELDO_BASE", 1500000, domain.SourceLedger),
		record("111111111", "Fantasma Perez", "TRASLADO", 1, domain.SourceMovement),
	}

	res := engine.Reconcile(testClosureID, records)

	orphans := incidentsOfType(res.Incidents, domain.IncidentOrphanMovement)
	require.Len(t, orphans, 1)
	assert.Equal(t, domain.SeverityBlocking, orphans[0].Severity)
	assert.Equal(t, "111111111", *orphans[0].EmployeeRUT)
}

func TestReconcile_CounterpartRules(t *testing.T) {
	tests := []struct {
		name    string
		records []*domain.ConceptRecord
		want    domain.IncidentType
	}{
		{
			name: "ingress without novelty",
			records: []*domain.ConceptRecord{
				record("123456789", "Maria Gonzalez", "SUELDO_BASE", 1500000, domain.SourceLedger),
				record("123456789", "Maria Gonzalez", "INGRESO", 1, domain.SourceIngress),
			},
			want: domain.IncidentUnreportedIngress,
		},
		{
			name: "termination without ledger concept",
			records: []*domain.ConceptRecord{
				record("123456789", "Maria Gonzalez", "SUELDO_BASE", 1500000, domain.SourceLedger),
				record("123456789", "Maria Gonzalez", "FINIQUITO", 2000000, domain.SourceTermination),
			},
			want: domain.IncidentMissingTermination,
		},
		{
			name: "absence without ledger concept",
			records: []*domain.ConceptRecord{
				record("123456789", "Maria Gonzalez", "SUELDO_BASE", 1500000, domain.SourceLedger),
				record("123456789", "Maria Gonzalez", "DESCUENTO_AUSENCIA", 3, domain.SourceAbsence),
			},
			want: domain.IncidentUnjustifiedAbsence,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := engine.Reconcile(testClosureID, tt.records)

			matches := incidentsOfType(res.Incidents, tt.want)
			require.Len(t, matches, 1)
			assert.Equal(t, domain.SeverityInformational, matches[0].Severity)
			assert.Equal(t, res.InformationalCount, len(res.Incidents))
		})
	}
}

func TestReconcile_CounterpartSatisfied(t *testing.T) {
	records := []*domain.ConceptRecord{
		record("123456789", "Maria Gonzalez", "SUELDO_BASE", 1500000, domain.SourceLedger),
		record("123456789", "Maria Gonzalez", "SUELDO_BASE", 1500000, domain.SourceNovelty),
		record("123456789", "Maria Gonzalez", "INGRESO", 1, domain.SourceIngress),
		record("123456789", "Maria Gonzalez", "DESCUENTO_AUSENCIA", 3, domain.SourceAbsence),
		record("123456789", "Maria Gonzalez", "DESCUENTO_AUSENCIA", 3, domain.SourceLedger),
	}

	res := engine.Reconcile(testClosureID, records)
	assert.Empty(t, res.Incidents)
}

func TestReconcile_IdentityConflict(t *testing.T) {
	records := []*domain.ConceptRecord{
		record("123456789", "Maria Gonzalez", "SUELDO_BASE", 1500000, domain.SourceLedger),
		record("123456789", "Roberto Salazar", "SUELDO_BASE", 1500000, domain.SourceNovelty),
	}

	res := engine.Reconcile(testClosureID, records)

	conflicts := incidentsOfType(res.Incidents, domain.IncidentIdentityConflict)
	require.Len(t, conflicts, 1)
	assert.Equal(t, domain.SeverityInformational, conflicts[0].Severity)
}

func TestReconcile_IdentityConflictWithinOneSource(t *testing.T) {
	records := []*domain.ConceptRecord{
		record("123456789", "Maria Gonzalez", "SUELDO_BASE", 1500000, domain.SourceLedger),
		record("123456789", "Roberto Salazar", "BONO", 100000, domain.SourceLedger),
	}

	res := engine.Reconcile(testClosureID, records)

	conflicts := incidentsOfType(res.Incidents, domain.IncidentIdentityConflict)
	require.Len(t, conflicts, 1)

	var details domain.IdentityConflictDetails
	require.NoError(t, conflicts[0].DecodeDetails(&details))
	assert.Equal(t, domain.SourceLedger, details.SourceA)
	assert.Equal(t, domain.SourceLedger, details.SourceB)
}

func TestReconcile_CompatibleSpellingsAreNotConflicts(t *testing.T) {
	records := []*domain.ConceptRecord{
		record("123456789", "María González", "SUELDO_BASE", 1500000, domain.SourceLedger),
		record("123456789", "MARIA  GONZALEZ", "SUELDO_BASE", 1500000, domain.SourceNovelty),
	}

	res := engine.Reconcile(testClosureID, records)
	assert.Empty(t, incidentsOfType(res.Incidents, domain.IncidentIdentityConflict))
}

func TestReconcile_Deterministic(t *testing.T) {
	records := []*domain.ConceptRecord{
		record("123456789", "Maria Gonzalez", "SUELDO_BASE", 1500000, domain.SourceLedger),
		record("123456789", "Maria Gonzalez", "SUELDO_BASE", 1550000, domain.SourceNovelty),
		record("111111111", "Fantasma Perez", "TRASLADO", 1, domain.SourceMovement),
		record("222222222", "Pedro Soto", "SUELDO_BASE", 900000, domain.SourceLedger),
		record("222222222", "Pedro Soto", "INGRESO", 1, domain.SourceIngress),
	}

	first := engine.Reconcile(testClosureID, records)

	// Shuffle the input order; the incident set must not change.
	reversed := make([]*domain.ConceptRecord, len(records))
	for i, rec := range records {
		reversed[len(records)-1-i] = rec
	}
	second := engine.Reconcile(testClosureID, reversed)

	assert.Equal(t, fingerprints(first.Incidents), fingerprints(second.Incidents))
	assert.Equal(t, first.BlockingCount, second.BlockingCount)
	assert.Equal(t, first.InformationalCount, second.InformationalCount)
}

func fingerprints(incidents []*domain.Incident) []string {
	out := make([]string, 0, len(incidents))
	for _, inc := range incidents {
		out = append(out, inc.Fingerprint)
	}
	sort.Strings(out)
	return out
}
