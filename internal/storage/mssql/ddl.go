package mssql

import (
	"fmt"
	"strings"

	"lakeio/internal/storage"
	"lakeio/internal/table"
)

// mssqlType maps a merged-schema column to a SQL Server type.
//
// Key columns are NVARCHAR(450): the widest NVARCHAR that still fits the
// 900-byte clustered index key limit for a two-column primary key.
func mssqlType(c table.Column) string {
	if c.Key {
		return "NVARCHAR(450)"
	}
	switch c.Kind {
	case table.KindBool:
		return "BIT"
	case table.KindInt:
		return "BIGINT"
	case table.KindFloat:
		return "FLOAT"
	case table.KindTime:
		return "DATETIME2"
	case table.KindBytes:
		return "VARBINARY(MAX)"
	case table.KindUUID:
		// Bound as the canonical string form.
		return "NVARCHAR(36)"
	default:
		return "NVARCHAR(MAX)"
	}
}

// buildCreateSQL renders an idempotent CREATE TABLE for t, guarded by
// OBJECT_ID so a table created by another writer between the failed bulk
// copy and this statement does not fail the retry.
func buildCreateSQL(t storage.TableSpec) (string, error) {
	name := strings.TrimSpace(t.Name)
	if name == "" {
		return "", fmt.Errorf("mssql: table name is empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("mssql: table %s has no columns", name)
	}

	defs := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Type) == "" {
			return "", fmt.Errorf("mssql: invalid column %+v in %s", c, name)
		}
		null := "NOT NULL"
		if c.IsNullable() {
			null = "NULL"
		}
		defs = append(defs, fmt.Sprintf("%s %s %s", mssqlIdent(c.Name), c.Type, null))
	}
	if len(t.PrimaryKey) > 0 {
		keys := make([]string, len(t.PrimaryKey))
		for i, k := range t.PrimaryKey {
			keys[i] = mssqlIdent(k)
		}
		defs = append(defs, "PRIMARY KEY ("+strings.Join(keys, ", ")+")")
	}

	return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL BEGIN CREATE TABLE %s (%s); END;",
		strings.ReplaceAll(name, "'", "''"), mssqlTableIdent(name), strings.Join(defs, ", ")), nil
}

// mssqlIdent bracket-quotes one identifier part.
func mssqlIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// mssqlTableIdent quotes each part of a possibly schema-qualified name:
// "dbo.imports" becomes [dbo].[imports].
func mssqlTableIdent(name string) string {
	parts := strings.Split(name, ".")
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = mssqlIdent(strings.TrimSpace(p))
	}
	return strings.Join(quoted, ".")
}
