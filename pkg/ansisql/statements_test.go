package ansisql

import (
	"testing"

	"github.com/sparkify/sparkify-etl/pkg/pipeline"
	"github.com/stretchr/testify/assert"
)

func TestInsertStatement(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		table  string
		sel    string
		expect string
	}{
		{
			name:   "select without terminator",
			table:  "users",
			sel:    "SELECT userid FROM staging_events",
			expect: "INSERT INTO users\nSELECT userid FROM staging_events;",
		},
		{
			name:   "trailing semicolon and whitespace are not duplicated",
			table:  "public.users",
			sel:    "\n  SELECT userid FROM staging_events;\n",
			expect: "INSERT INTO public.users\nSELECT userid FROM staging_events;",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expect, InsertStatement(tt.table, tt.sel))
		})
	}
}

func TestLoadQueries(t *testing.T) {
	t.Parallel()

	truncate := LoadQueries(&pipeline.Load{Table: "time", Select: "SELECT 1", Mode: pipeline.LoadModeTruncate})
	assert.Len(t, truncate, 2)
	assert.Equal(t, "DELETE FROM time;", truncate[0].Query)
	assert.Equal(t, "INSERT INTO time\nSELECT 1;", truncate[1].Query)

	appendOnly := LoadQueries(&pipeline.Load{Table: "time", Select: "SELECT 1", Mode: pipeline.LoadModeAppend})
	assert.Len(t, appendOnly, 1)
	assert.Equal(t, "INSERT INTO time\nSELECT 1;", appendOnly[0].Query)
}
