package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Filter restricts load_data to a subset of the graph (spec §4.1). A nil
// or empty slice means "no restriction" for that dimension.
type Filter struct {
	Groups   []string
	Sites    []string
	Datasets []string
}

func (f Filter) empty() bool {
	return len(f.Groups) == 0 && len(f.Sites) == 0 && len(f.Datasets) == 0
}

// materializeFilters creates a temporary id table for each non-empty
// filter dimension inside tx and fills it with the ids of the named rows
// of the owning table, for the load queries to inner-join against. The
// tables are created ON COMMIT DROP, so they disappear when tx ends.
func materializeFilters(ctx context.Context, tx pgx.Tx, f Filter) error {
	if len(f.Groups) > 0 {
		if err := materializeIDTable(ctx, tx, "tmp_filter_groups", "groups", f.Groups); err != nil {
			return err
		}
	}
	if len(f.Sites) > 0 {
		if err := materializeIDTable(ctx, tx, "tmp_filter_sites", "sites", f.Sites); err != nil {
			return err
		}
	}
	if len(f.Datasets) > 0 {
		if err := materializeIDTable(ctx, tx, "tmp_filter_datasets", "datasets", f.Datasets); err != nil {
			return err
		}
	}
	return nil
}

func materializeIDTable(ctx context.Context, tx pgx.Tx, tmpName, sourceTable string, names []string) error {
	if _, err := tx.Exec(ctx, fmt.Sprintf(
		`CREATE TEMPORARY TABLE %s (id INTEGER PRIMARY KEY) ON COMMIT DROP`, tmpName)); err != nil {
		return fmt.Errorf("failed to create %s: %w", tmpName, err)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf(
		`INSERT INTO %s SELECT id FROM %s WHERE name = ANY($1)`, tmpName, sourceTable), names); err != nil {
		return fmt.Errorf("failed to populate %s: %w", tmpName, err)
	}
	return nil
}

// datasetJoin returns the SQL fragment to inner-join the dataset id
// filter, or the empty string when datasets are not filtered.
func (f Filter) datasetJoin(alias string) string {
	if len(f.Datasets) == 0 {
		return ""
	}
	return fmt.Sprintf(" JOIN tmp_filter_datasets tfd ON tfd.id = %s.dataset_id", alias)
}

func (f Filter) siteJoin(alias string) string {
	if len(f.Sites) == 0 {
		return ""
	}
	return fmt.Sprintf(" JOIN tmp_filter_sites tfs ON tfs.id = %s.site_id", alias)
}

func (f Filter) groupJoin(alias string) string {
	if len(f.Groups) == 0 {
		return ""
	}
	return fmt.Sprintf(" JOIN tmp_filter_groups tfg ON tfg.id = %s.group_id", alias)
}
