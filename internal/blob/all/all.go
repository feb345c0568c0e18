// Package all registers every built-in blob remote.
package all

import (
	_ "lakeio/internal/blob/afs"
	_ "lakeio/internal/blob/dbfs"
	_ "lakeio/internal/blob/objstore"
)
