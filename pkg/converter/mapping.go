// pkg/converter/mapping.go
package converter

import (
	"strings"

	"github.com/citylab/incident-report/pkg/model"
)

// MapDatabaseType maps a database driver's column type name onto the
// declared column type used by the pipeline. Unknown types fall back to
// TypeString so raw values survive for downstream parsing.
func MapDatabaseType(dbType string) model.ColumnType {
	base := baseTypeName(dbType)

	switch base {
	case "INT", "INT2", "INT4", "INT8", "INTEGER", "SMALLINT", "BIGINT", "SERIAL", "BIGSERIAL", "NUMBER", "FIXED":
		return model.TypeInt
	case "FLOAT", "FLOAT4", "FLOAT8", "REAL", "DOUBLE", "DOUBLE PRECISION", "NUMERIC", "DECIMAL":
		return model.TypeFloat
	case "DATE":
		return model.TypeDate
	case "TIME", "TIMETZ":
		return model.TypeTime
	default:
		return model.TypeString
	}
}

// baseTypeName strips size/precision qualifiers from a type name,
// e.g. "NUMERIC(10,2)" -> "NUMERIC"
func baseTypeName(dbType string) string {
	dbType = strings.ToUpper(strings.TrimSpace(dbType))
	if idx := strings.Index(dbType, "("); idx > 0 {
		dbType = dbType[:idx]
	}
	return strings.TrimSpace(dbType)
}
