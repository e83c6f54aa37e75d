package ansisql

import (
	"strings"

	"github.com/sparkify/sparkify-etl/pkg/pipeline"
	"github.com/sparkify/sparkify-etl/pkg/query"
)

func InsertStatement(table, selectQuery string) string {
	return "INSERT INTO " + table + "\n" + strings.TrimSuffix(strings.TrimSpace(selectQuery), ";") + ";"
}

func DeleteStatement(table string) string {
	return "DELETE FROM " + table + ";"
}

// LoadQueries returns the statements a load step executes, in order. Truncate mode deletes the
// existing rows first.
func LoadQueries(load *pipeline.Load) []*query.Query {
	queries := make([]*query.Query, 0, 2)
	if load.Mode == pipeline.LoadModeTruncate {
		queries = append(queries, &query.Query{Query: DeleteStatement(load.Table)})
	}

	return append(queries, &query.Query{Query: InsertStatement(load.Table, load.Select)})
}
