package query

import (
	"strings"
)

const redactedPlaceholder = "****"

type Query struct {
	Query string
}

func (q Query) String() string {
	return q.Query
}

// ToDryRunQuery returns the statement terminated with a single semicolon, the way it is sent to the warehouse.
func (q Query) ToDryRunQuery() string {
	eq := strings.TrimSpace(q.Query)
	if !strings.HasSuffix(eq, ";") {
		eq += ";"
	}

	return eq
}

// Redacted returns the query text with every non-empty secret replaced by a placeholder.
// It is the only form of a query that is allowed to reach logs.
func (q Query) Redacted(secrets ...string) string {
	redacted := q.Query
	for _, secret := range secrets {
		if secret == "" {
			continue
		}

		redacted = strings.ReplaceAll(redacted, secret, redactedPlaceholder)
	}

	return redacted
}
