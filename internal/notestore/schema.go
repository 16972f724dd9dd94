package notestore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
)

// Entity names in the Core Data key table. The numeric ids behind them are
// assigned when the database is created and differ between installs, so they
// are looked up per database, never hard-coded.
const (
	entityAccount    = "ICAccount"
	entityFolder     = "ICFolder"
	entityNote       = "ICNote"
	entityAttachment = "ICAttachment"
)

const recordsTable = "ZICCLOUDSYNCINGOBJECT"

// schemaCatalog holds the two runtime facts that vary across application
// versions: the name->entity-id mapping and the set of columns actually
// present on the polymorphic records table.
type schemaCatalog struct {
	entities map[string]int64
	columns  map[string]struct{}
}

func loadSchemaCatalog(ctx context.Context, db *sql.DB) (*schemaCatalog, error) {
	cat := &schemaCatalog{
		entities: make(map[string]int64),
		columns:  make(map[string]struct{}),
	}

	rows, err := db.QueryContext(ctx, "SELECT Z_ENT, Z_NAME FROM Z_PRIMARYKEY")
	if err != nil {
		return nil, fmt.Errorf("read entity key table: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ent int64
		var name string
		if err := rows.Scan(&ent, &name); err != nil {
			return nil, fmt.Errorf("scan entity key row: %w", err)
		}
		cat.entities[name] = ent
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read entity key table: %w", err)
	}
	for _, name := range []string{entityAccount, entityFolder, entityNote} {
		if _, ok := cat.entities[name]; !ok {
			return nil, fmt.Errorf("%w: entity %q missing from key table", ErrUnsupportedSchema, name)
		}
	}

	cols, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", recordsTable))
	if err != nil {
		return nil, fmt.Errorf("probe %s columns: %w", recordsTable, err)
	}
	defer cols.Close()
	for cols.Next() {
		var (
			cid     int64
			name    string
			colType string
			notNull int64
			dflt    sql.NullString
			pk      int64
		)
		if err := cols.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan column info: %w", err)
		}
		cat.columns[name] = struct{}{}
	}
	if err := cols.Err(); err != nil {
		return nil, fmt.Errorf("probe %s columns: %w", recordsTable, err)
	}
	if len(cat.columns) == 0 {
		return nil, fmt.Errorf("%w: table %s not present", ErrUnsupportedSchema, recordsTable)
	}

	slog.Debug("schema probed", "entities", len(cat.entities), "columns", len(cat.columns))
	return cat, nil
}

func (c *schemaCatalog) entity(name string) int64 {
	return c.entities[name]
}

func (c *schemaCatalog) hasColumn(name string) bool {
	_, ok := c.columns[name]
	return ok
}

// expr returns a requested column as a bare expression usable anywhere in a
// query: the column name when this database has it, a literal NULL otherwise.
func (c *schemaCatalog) expr(name string) string {
	if c.hasColumn(name) {
		return name
	}
	return "NULL"
}

// sel returns the select-list expression for a requested column, aliased
// when substituted. Row scanning is positional, so downstream decoding
// always sees the same column count no matter which application version
// wrote the database.
func (c *schemaCatalog) sel(name string) string {
	if c.hasColumn(name) {
		return name
	}
	return "NULL AS " + name
}

func (c *schemaCatalog) selectList(names ...string) string {
	exprs := make([]string, 0, len(names))
	for _, name := range names {
		exprs = append(exprs, c.sel(name))
	}
	return strings.Join(exprs, ", ")
}
