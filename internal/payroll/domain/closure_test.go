package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castrometro/SGM-sub005/internal/payroll/domain"
	"github.com/castrometro/SGM-sub005/pkg/errors"
)

func TestClosureState_CanTransition(t *testing.T) {
	tests := []struct {
		name string
		from domain.ClosureState
		to   domain.ClosureState
		want bool
	}{
		{"pending to in_progress", domain.ClosurePending, domain.ClosureInProgress, true},
		{"in_progress to data_consolidated", domain.ClosureInProgress, domain.ClosureDataConsolidated, true},
		{"data_consolidated to analysis_generated", domain.ClosureDataConsolidated, domain.ClosureAnalysisGenerated, true},
		{"analysis branches to incidents_open", domain.ClosureAnalysisGenerated, domain.ClosureIncidentsOpen, true},
		{"analysis branches to no_incidents", domain.ClosureAnalysisGenerated, domain.ClosureNoIncidents, true},
		{"incidents_open to incidents_resolved", domain.ClosureIncidentsOpen, domain.ClosureIncidentsResolved, true},
		{"new upload reopens analysis", domain.ClosureIncidentsOpen, domain.ClosureAnalysisGenerated, true},
		{"incidents_resolved to supervisor_review", domain.ClosureIncidentsResolved, domain.ClosureSupervisorReview, true},
		{"supervisor_review to completed", domain.ClosureSupervisorReview, domain.ClosureCompleted, true},
		{"any non-terminal to cancelled", domain.ClosureInProgress, domain.ClosureCancelled, true},

		{"pending cannot skip to data_consolidated", domain.ClosurePending, domain.ClosureDataConsolidated, false},
		{"pending cannot skip to completed", domain.ClosurePending, domain.ClosureCompleted, false},
		{"completed is terminal", domain.ClosureCompleted, domain.ClosureSupervisorReview, false},
		{"cancelled is terminal", domain.ClosureCancelled, domain.ClosurePending, false},
		{"no backwards to pending", domain.ClosureInProgress, domain.ClosurePending, false},
		{"supervisor_review cannot reopen analysis", domain.ClosureSupervisorReview, domain.ClosureAnalysisGenerated, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))

			err := tt.from.AssertTransition(tt.to)
			if tt.want {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.True(t, errors.Is(err, errors.ErrInvalidClosureTransition))
			}
		})
	}
}

func TestClosureState_Terminal(t *testing.T) {
	assert.True(t, domain.ClosureCompleted.Terminal())
	assert.True(t, domain.ClosureCancelled.Terminal())
	assert.False(t, domain.ClosureIncidentsOpen.Terminal())
	assert.True(t, domain.ClosureIncidentsOpen.Active())
	assert.False(t, domain.ClosureCancelled.Active())
}

func TestClosureState_AssertOperation(t *testing.T) {
	// Consolidation is only legal from in_progress; reconsolidation covers
	// the post-resolution states.
	assert.NoError(t, domain.ClosureInProgress.AssertOperation(domain.OpConsolidate))
	assert.Error(t, domain.ClosurePending.AssertOperation(domain.OpConsolidate))
	assert.Error(t, domain.ClosureCompleted.AssertOperation(domain.OpConsolidate))

	assert.NoError(t, domain.ClosureIncidentsResolved.AssertOperation(domain.OpReconsolidate))
	assert.NoError(t, domain.ClosureNoIncidents.AssertOperation(domain.OpReconsolidate))

	// Incident resolution only while incidents are open.
	assert.NoError(t, domain.ClosureIncidentsOpen.AssertOperation(domain.OpResolveIncident))
	assert.Error(t, domain.ClosureNoIncidents.AssertOperation(domain.OpResolveIncident))
	assert.Error(t, domain.ClosureSupervisorReview.AssertOperation(domain.OpResolveIncident))

	// Ingestion is re-entrant after analysis.
	assert.NoError(t, domain.ClosureIncidentsOpen.AssertOperation(domain.OpIngest))
	assert.Error(t, domain.ClosureCompleted.AssertOperation(domain.OpIngest))

	err := domain.ClosureCompleted.AssertOperation(domain.OpReconcile)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidClosureTransition))
}

func TestClosure_AnalysisBranch(t *testing.T) {
	c := &domain.Closure{OpenBlockingCount: 2}
	assert.Equal(t, domain.ClosureIncidentsOpen, c.AnalysisBranch())

	c.OpenBlockingCount = 0
	assert.Equal(t, domain.ClosureNoIncidents, c.AnalysisBranch())
}
