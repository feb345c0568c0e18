package sqlite

import (
	"fmt"
	"strings"

	"lakeio/internal/storage"
	"lakeio/internal/table"
)

// sqliteType maps a merged-schema column to a SQLite column type (affinity).
func sqliteType(c table.Column) string {
	if c.Key {
		return "TEXT"
	}
	switch c.Kind {
	case table.KindBool, table.KindInt:
		return "INTEGER"
	case table.KindFloat:
		return "REAL"
	case table.KindBytes:
		return "BLOB"
	default:
		// Strings, RFC3339Nano timestamps and UUIDs.
		return "TEXT"
	}
}

func sqlIdent(id string) string {
	// SQLite supports "quoted identifiers"
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// sqlTableIdent quotes a possibly schema-qualified name ("main.events").
func sqlTableIdent(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = sqlIdent(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, ".")
}

func buildCreateSQL(t storage.TableSpec) (string, error) {
	if strings.TrimSpace(t.Name) == "" {
		return "", fmt.Errorf("sqlite: table name is empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("sqlite: table %s has no columns", t.Name)
	}

	parts := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Type) == "" {
			return "", fmt.Errorf("sqlite: invalid column %+v", c)
		}
		def := sqlIdent(c.Name) + " " + c.Type
		if !c.IsNullable() {
			def += " NOT NULL"
		}
		parts = append(parts, def)
	}
	if len(t.PrimaryKey) > 0 {
		parts = append(parts, fmt.Sprintf("PRIMARY KEY (%s)", joinIdentList(t.PrimaryKey)))
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s);", sqlTableIdent(t.Name), strings.Join(parts, ", ")), nil
}

func buildInsertSQL(tableName string, columns []string) string {
	ph := make([]string, len(columns))
	for i := range ph {
		ph[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		sqlTableIdent(tableName), joinIdentList(columns), strings.Join(ph, ", "))
}

func joinIdentList(columns []string) string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = sqlIdent(c)
	}
	return strings.Join(out, ", ")
}
