package pipeline

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/sparkify/sparkify-etl/pkg/schema"
)

const (
	BeginStepName   = "Begin_execution"
	SchemaStepName  = "Schema_created"
	StageEventsName = "Stage_events"
	StageSongsName  = "Stage_songs"
	LoadFactName    = "Load_songplays_fact_table"
	QualityStepName = "Run_data_quality_checks"
	EndStepName     = "End_execution"
)

// ShortTableName strips the schema and quoting from a table name: `public."time"` becomes `time`.
func ShortTableName(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}

	return strings.Trim(name, `"`)
}

func CreateStepName(table schema.Table) string {
	return "Create_" + ShortTableName(table.Name) + "_table"
}

func LoadDimensionStepName(table schema.Table) string {
	return "Load_" + ShortTableName(table.Name) + "_dim_table"
}

// Build turns a definition into the fixed Sparkify graph:
//
//	Begin_execution -> Create_*_table -> Schema_created -> Stage_events, Stage_songs
//	  -> Load_songplays_fact_table -> Load_*_dim_table -> Run_data_quality_checks -> End_execution
func Build(def *Definition) (*Pipeline, error) {
	if def == nil {
		return nil, errors.New("cannot build a pipeline without a definition")
	}

	if err := def.Validate(); err != nil {
		return nil, err
	}

	warehouse := def.Connections.Warehouse
	steps := []*Step{{Name: BeginStepName, Kind: StepKindMarker}}

	createNames := make([]string, 0)
	for _, table := range schema.Tables() {
		name := CreateStepName(table)
		createNames = append(createNames, name)
		steps = append(steps, &Step{
			Name:       name,
			Kind:       StepKindCreateTable,
			Connection: warehouse,
			Create:     &CreateTable{Table: table.Name, Statement: table.Create},
			Upstreams:  []string{BeginStepName},
		})
	}

	steps = append(steps, &Step{Name: SchemaStepName, Kind: StepKindMarker, Upstreams: createNames})

	stage := func(name string, table schema.Table, src StagingSource) *Step {
		return &Step{
			Name:       name,
			Kind:       StepKindStage,
			Connection: warehouse,
			Stage: &Stage{
				Table:         table.Name,
				Bucket:        def.Bucket,
				Prefix:        src.Prefix,
				CopyOptions:   src.CopyOptions,
				Region:        src.Region,
				AwsConnection: def.Connections.Aws,
				VerifySource:  src.VerifySource,
			},
			Upstreams: []string{SchemaStepName},
		}
	}
	steps = append(steps,
		stage(StageEventsName, schema.StagingEvents, def.Staging.Events),
		stage(StageSongsName, schema.StagingSongs, def.Staging.Songs),
	)

	factSelect, ok := schema.InsertFor(schema.Songplays)
	if !ok {
		return nil, errors.Errorf("no insert statement for fact table '%s'", schema.Songplays.Name)
	}
	steps = append(steps, &Step{
		Name:       LoadFactName,
		Kind:       StepKindLoadFact,
		Connection: warehouse,
		Load:       &Load{Table: schema.Songplays.Name, Select: factSelect, Mode: LoadModeAppend},
		Upstreams:  []string{StageEventsName, StageSongsName},
	})

	dimensionNames := make([]string, 0)
	for _, table := range []schema.Table{schema.Users, schema.Songs, schema.Artists, schema.Time} {
		sel, ok := schema.InsertFor(table)
		if !ok {
			return nil, errors.Errorf("no insert statement for dimension table '%s'", table.Name)
		}

		name := LoadDimensionStepName(table)
		dimensionNames = append(dimensionNames, name)
		steps = append(steps, &Step{
			Name:       name,
			Kind:       StepKindLoadDimension,
			Connection: warehouse,
			Load:       &Load{Table: table.Name, Select: sel, Mode: def.DimensionMode},
			Upstreams:  []string{LoadFactName},
		})
	}

	checks := make([]QualityCheck, len(def.Checks))
	copy(checks, def.Checks)

	steps = append(steps,
		&Step{
			Name:       QualityStepName,
			Kind:       StepKindQualityCheck,
			Connection: warehouse,
			Checks:     checks,
			Upstreams:  dimensionNames,
		},
		&Step{Name: EndStepName, Kind: StepKindMarker, Upstreams: []string{QualityStepName}},
	)

	p := &Pipeline{
		Name:        def.Name,
		Description: def.Description,
		Owner:       def.Owner,
		Schedule:    NormalizeSchedule(def.Schedule),
		StartDate:   def.StartDate,
		Retries:     def.Retries,
		RetryDelay:  def.RetryDelay,
		Catchup:     def.Catchup,
		Steps:       steps,
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	return p, nil
}
