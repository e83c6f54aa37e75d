package pipeline

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sparkify/sparkify-etl/pkg/path"
	"github.com/spf13/afero"
)

const DefaultDefinitionFile = "pipeline.yml"

type DefinitionConnections struct {
	Warehouse string `yaml:"warehouse" validate:"required"`
	Aws       string `yaml:"aws" validate:"required"`
}

type StagingSource struct {
	Prefix       string `yaml:"prefix" validate:"required"`
	CopyOptions  string `yaml:"copy_options"`
	Region       string `yaml:"region"`
	VerifySource bool   `yaml:"verify_source"`
}

type StagingSources struct {
	Events StagingSource `yaml:"events"`
	Songs  StagingSource `yaml:"songs"`
}

// Definition is the immutable configuration a pipeline is built from.
type Definition struct {
	Name          string                `yaml:"name" validate:"required"`
	Description   string                `yaml:"description"`
	Owner         string                `yaml:"owner"`
	Schedule      string                `yaml:"schedule" validate:"required"`
	StartDate     time.Time             `yaml:"start_date"`
	Retries       int                   `yaml:"retries" validate:"gte=0"`
	RetryDelay    time.Duration         `yaml:"retry_delay" validate:"gte=0"`
	Catchup       bool                  `yaml:"catchup"`
	Connections   DefinitionConnections `yaml:"connections"`
	Bucket        string                `yaml:"s3_bucket" validate:"required"`
	Staging       StagingSources        `yaml:"staging"`
	DimensionMode LoadMode              `yaml:"dimension_mode"`
	Checks        []QualityCheck        `yaml:"checks" validate:"dive"`
}

// DefaultDefinition returns the settings the hourly Sparkify load has always run with.
func DefaultDefinition() *Definition {
	return &Definition{
		Name:        "aws_redshift_dag",
		Description: "Load and transform data in Redshift",
		Owner:       "danghoangkhai",
		Schedule:    "@hourly",
		StartDate:   time.Date(2022, time.April, 7, 0, 0, 0, 0, time.UTC),
		Retries:     3,
		RetryDelay:  5 * time.Minute,
		Catchup:     false,
		Connections: DefinitionConnections{
			Warehouse: "redshift",
			Aws:       "aws",
		},
		Bucket: "udacity-dend",
		Staging: StagingSources{
			Events: StagingSource{
				Prefix:      "log_data",
				CopyOptions: "JSON 's3://udacity-dend/log_json_path.json'",
			},
			Songs: StagingSource{
				Prefix:      "song_data",
				CopyOptions: "FORMAT AS JSON 'auto'",
			},
		},
		DimensionMode: LoadModeTruncate,
		Checks: []QualityCheck{
			{
				Name:       "songplays_not_empty",
				Query:      "SELECT COUNT(*) FROM songplays;",
				Comparison: GreaterThan,
				Expected:   0,
			},
			{
				Name:       "songplays_songid_not_null",
				Query:      "SELECT COUNT(*) FROM songplays WHERE songid IS NULL;",
				Comparison: Equals,
				Expected:   0,
			},
		},
	}
}

// LoadDefinition reads the definition file over the defaults. A missing file yields the defaults.
func LoadDefinition(fs afero.Fs, filePath string) (*Definition, error) {
	def := DefaultDefinition()
	if filePath == "" || !path.FileExists(fs, filePath) {
		return def, def.Validate()
	}

	// an explicit list in the file replaces the default checks instead of being merged into them
	def.Checks = nil
	if err := path.ReadYaml(fs, filePath, def); err != nil {
		return nil, errors.Wrap(err, "failed to read the pipeline definition")
	}

	if def.Checks == nil {
		def.Checks = DefaultDefinition().Checks
	}

	return def, def.Validate()
}

// NormalizeSchedule turns the shorthand schedules into the descriptors cron understands.
func NormalizeSchedule(schedule string) string {
	switch s := strings.TrimSpace(schedule); s {
	case "hourly", "daily", "weekly", "monthly", "yearly":
		return "@" + s
	default:
		return s
	}
}

func (d *Definition) Validate() error {
	if err := path.Validate(d); err != nil {
		return errors.Wrap(err, "invalid pipeline definition")
	}

	if _, err := cron.ParseStandard(NormalizeSchedule(d.Schedule)); err != nil {
		return errors.Wrapf(err, "invalid schedule '%s'", d.Schedule)
	}

	if err := ValidateBucketName(d.Bucket); err != nil {
		return err
	}

	for _, c := range d.Checks {
		if err := c.Validate(); err != nil {
			return err
		}
	}

	return nil
}
