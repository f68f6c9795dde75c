package ledger

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"volunteerledger/internal/metrics"
)

// Reconcile compares every volunteer's stored aggregate with the sums over
// their attendance rows and returns the ones that differ. It never writes:
// corrections recorded without an attendance row show up here legitimately.
func (s *Service) Reconcile(ctx context.Context) ([]Drift, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT v.id, v.total_hours, v.events_attended,
		       COALESCE(SUM(a.hours_given), 0),
		       COALESCE(SUM(CASE WHEN a.status = 'present' THEN 1 ELSE 0 END), 0)
		FROM volunteers v
		LEFT JOIN attendance a ON a.volunteer_id = v.id
		GROUP BY v.id, v.total_hours, v.events_attended
		ORDER BY v.id
	`)
	if err != nil {
		return nil, fmt.Errorf("reconcile query: %w", err)
	}
	defer rows.Close()

	var out []Drift
	for rows.Next() {
		var d Drift
		if err := rows.Scan(&d.VolunteerID, &d.StoredHours, &d.StoredAttended, &d.RowHours, &d.RowAttended); err != nil {
			return nil, fmt.Errorf("reconcile scan: %w", err)
		}
		if math.Abs(d.StoredHours-d.RowHours) > 1e-6 || d.StoredAttended != d.RowAttended {
			out = append(out, d)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reconcile rows: %w", err)
	}

	metrics.ReconcileDrift.Set(float64(len(out)))
	for _, d := range out {
		s.log.Warn("volunteer aggregate drift",
			zap.String("volunteer_id", d.VolunteerID),
			zap.Float64("stored_hours", d.StoredHours),
			zap.Float64("row_hours", d.RowHours),
			zap.Int("stored_attended", d.StoredAttended),
			zap.Int("row_attended", d.RowAttended))
	}
	return out, nil
}
