package postgres

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"lakeio/internal/storage"
	"lakeio/internal/table"
)

// pgType maps a merged-schema column to a Postgres type.
func pgType(c table.Column) string {
	if c.Key {
		return "TEXT"
	}
	switch c.Kind {
	case table.KindBool:
		return "BOOLEAN"
	case table.KindInt:
		return "BIGINT"
	case table.KindFloat:
		return "DOUBLE PRECISION"
	case table.KindTime:
		return "TIMESTAMPTZ"
	case table.KindBytes:
		return "BYTEA"
	case table.KindUUID:
		return "UUID"
	default:
		return "TEXT"
	}
}

// splitQualifiedName splits "schema.table"; unqualified names return an empty schema.
func splitQualifiedName(name string) (schema string, table string) {
	name = strings.TrimSpace(name)
	parts := strings.Split(name, ".")
	if len(parts) != 2 {
		return "", name
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}

// pgIdentifier converts a possibly schema-qualified name for CopyFrom.
func pgIdentifier(name string) pgx.Identifier {
	if schema, tbl := splitQualifiedName(name); schema != "" {
		return pgx.Identifier{schema, tbl}
	}
	return pgx.Identifier{strings.TrimSpace(name)}
}

// pgIdent double-quotes an identifier.
func pgIdent(id string) string {
	return pgx.Identifier{id}.Sanitize()
}

// buildCreateSQL builds DDL for a destination.
//
// If the table is schema-qualified (e.g. "staging.events"), schemaSQL ensures
// the schema exists first.
func buildCreateSQL(t storage.TableSpec) (schemaSQL, tableSQL string, err error) {
	if strings.TrimSpace(t.Name) == "" {
		return "", "", fmt.Errorf("postgres: table name is empty")
	}
	if len(t.Columns) == 0 {
		return "", "", fmt.Errorf("postgres: table %s has no columns", t.Name)
	}

	if schema, _ := splitQualifiedName(t.Name); schema != "" {
		schemaSQL = fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s;`, pgIdent(schema))
	}

	defs := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Type) == "" {
			return "", "", fmt.Errorf("postgres: invalid column %+v", c)
		}
		def := pgIdent(c.Name) + " " + c.Type
		if !c.IsNullable() {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}
	if len(t.PrimaryKey) > 0 {
		cols := make([]string, len(t.PrimaryKey))
		for i, c := range t.PrimaryKey {
			cols[i] = pgIdent(c)
		}
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(cols, ", ")))
	}

	tableSQL = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (%s);`,
		pgIdentifier(t.Name).Sanitize(), strings.Join(defs, ", "))
	return schemaSQL, tableSQL, nil
}
