package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castrometro/SGM-sub005/internal/payroll/domain"
	"github.com/castrometro/SGM-sub005/internal/payroll/service"
	"github.com/castrometro/SGM-sub005/pkg/errors"
	"github.com/castrometro/SGM-sub005/pkg/messaging"
)

func TestClosureCreate_RejectsBadPeriod(t *testing.T) {
	f := newFixture(t)

	tests := []string{"2026", "2026-13", "08-2026", "2026/08", "aug 2026"}
	for _, period := range tests {
		_, err := f.closures.Create(context.Background(), service.CreateClosureRequest{
			OrganizationID: "org-1",
			Period:         period,
		})
		assert.ErrorIs(t, err, errors.ErrValidation, "period %q must be rejected", period)
	}
}

func TestClosureCreate_OneActivePerOrganizationAndPeriod(t *testing.T) {
	f := newFixture(t)

	_, err := f.closures.Create(context.Background(), service.CreateClosureRequest{
		OrganizationID: "org-1",
		Period:         "2026-08",
	})
	assert.ErrorIs(t, err, errors.ErrConflict)

	// A cancelled closure frees the slot.
	_, err = f.closures.Cancel(context.Background(), f.closure.ID)
	require.NoError(t, err)

	_, err = f.closures.Create(context.Background(), service.CreateClosureRequest{
		OrganizationID: "org-1",
		Period:         "2026-08",
	})
	assert.NoError(t, err)
}

func TestClosureComplete_RequiresSupervisor(t *testing.T) {
	f := newFixture(t)
	f.provider.rows[domain.SourceLedger] = []domain.SourceRow{
		{RawIdentity: "12.345.678-9", RawName: "Maria Gonzalez", RawConcept: "SUELDO_BASE", RawValue: "1500000", Origin: "row:2"},
	}
	require.NoError(t, f.jobs.Run(context.Background(), f.closure.ID, messaging.TriggerSourceUploaded))
	require.Equal(t, domain.ClosureNoIncidents, f.reload(t).State)

	_, err := f.incidents.AcknowledgeInformational(analystCtx(), f.closure.ID, nil)
	require.NoError(t, err)

	// no_incidents passes through incidents_resolved on the way to review.
	_, err = f.closures.SendToSupervisorReview(analystCtx(), f.closure.ID)
	require.NoError(t, err)

	_, err = f.closures.Complete(analystCtx(), f.closure.ID)
	require.Error(t, err, "analysts cannot complete a closure")

	closure, err := f.closures.Complete(supervisorCtx(), f.closure.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ClosureCompleted, closure.State)

	// Completed is terminal.
	_, err = f.closures.Cancel(supervisorCtx(), f.closure.ID)
	assert.ErrorIs(t, err, errors.ErrInvalidClosureTransition)
}
