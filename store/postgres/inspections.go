package postgres

import (
	"context"
	"fmt"

	"github.com/inspeksimobil/inspector-core/store"
)

// InsertInspection implements store.InspectionStore.
func (c *Connection) InsertInspection(ctx context.Context, rec *store.Inspection) error {
	query, args, err := c.sb.
		Insert("inspections").
		Columns("id", "pretty_id", "inspector_id", "branch_id", "vehicle_plate_number", "overall_rating", "inspection_date", "created_at").
		Values(rec.ID, rec.PrettyID, rec.InspectorID, rec.BranchID, rec.VehiclePlateNumber, rec.OverallRating, rec.InspectionDate, rec.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build inspection insert: %w", err)
	}

	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert inspection %s: %w", rec.PrettyID, err)
	}
	return nil
}
