package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/3leaps/jobd/internal/manifest"
)

// Import inserts every record in one transaction: any single failure rolls
// back the whole batch, so importing a directory never leaves a partial
// catalog (spec.md §4.2, §8 S6). Returns the row_id assigned (or preserved)
// for each record, in the same order as records.
func (c *Catalog) Import(ctx context.Context, records []*manifest.Record) ([]int64, error) {
	rowIDs := make([]int64, len(records))
	err := c.WithTx(ctx, func(tx *sql.Tx) error {
		for i, m := range records {
			rowID, err := Insert(tx, m)
			if err != nil {
				return fmt.Errorf("import %q: %w", m.ID, err)
			}
			rowIDs[i] = rowID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rowIDs, nil
}
