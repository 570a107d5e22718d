// Package provider supplies parsed source rows to the engine. The upload
// surface parses spreadsheets and stages their cells; the engine only ever
// sees raw string rows.
package provider

import (
	"context"

	"github.com/castrometro/SGM-sub005/internal/payroll/domain"
	"github.com/castrometro/SGM-sub005/pkg/database"
)

// StagedRowProvider reads raw rows from the staging table the upload service
// writes into.
type StagedRowProvider struct {
	db *database.DB
}

// NewStagedRowProvider creates a provider over the staging table.
func NewStagedRowProvider(db *database.DB) *StagedRowProvider {
	return &StagedRowProvider{db: db}
}

type stagedRow struct {
	RawIdentity string `db:"raw_identity"`
	RawName     string `db:"raw_name"`
	RawConcept  string `db:"raw_concept"`
	RawValue    string `db:"raw_value"`
	Origin      string `db:"origin"`
}

// Rows returns the staged rows for one closure and source kind, in upload
// order. A source with no uploaded file yields no rows.
func (p *StagedRowProvider) Rows(ctx context.Context, closureID string, kind domain.SourceKind) ([]domain.SourceRow, error) {
	var staged []stagedRow
	query := `
		SELECT raw_identity, raw_name, raw_concept, raw_value, origin
		FROM staged_rows WHERE closure_id = $1 AND source = $2
		ORDER BY row_number
	`
	if err := p.db.SelectContext(ctx, &staged, query, closureID, kind); err != nil {
		return nil, err
	}

	rows := make([]domain.SourceRow, 0, len(staged))
	for _, s := range staged {
		rows = append(rows, domain.SourceRow{
			RawIdentity: s.RawIdentity,
			RawName:     s.RawName,
			RawConcept:  s.RawConcept,
			RawValue:    s.RawValue,
			Origin:      s.Origin,
		})
	}
	return rows, nil
}
