// Package all registers every storage.Sink backend.
package all

import (
	_ "lakeio/internal/storage/mssql"
	_ "lakeio/internal/storage/postgres"
	_ "lakeio/internal/storage/sqlite"
)
