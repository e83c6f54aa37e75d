package pipeline

import (
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type StepKind string

const (
	StepKindMarker        StepKind = "marker"
	StepKindCreateTable   StepKind = "create_table"
	StepKindStage         StepKind = "stage"
	StepKindLoadFact      StepKind = "load_fact"
	StepKindLoadDimension StepKind = "load_dimension"
	StepKindQualityCheck  StepKind = "quality_check"
)

type LoadMode string

const (
	LoadModeAppend   LoadMode = "append"
	LoadModeTruncate LoadMode = "truncate"
)

func ParseLoadMode(mode string) (LoadMode, error) {
	switch LoadMode(strings.ToLower(strings.TrimSpace(mode))) {
	case LoadModeAppend, "":
		return LoadModeAppend, nil
	case LoadModeTruncate:
		return LoadModeTruncate, nil
	}

	return "", errors.Errorf("unknown load mode '%s', must be either 'append' or 'truncate'", mode)
}

func (m *LoadMode) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}

	parsed, err := ParseLoadMode(raw)
	if err != nil {
		return err
	}

	*m = parsed
	return nil
}

type CreateTable struct {
	Table     string
	Statement string
}

// Stage copies every object under s3://Bucket/Prefix into Table.
type Stage struct {
	Table         string
	Bucket        string
	Prefix        string
	CopyOptions   string
	Region        string
	AwsConnection string
	VerifySource  bool
}

func (s Stage) SourceURI() string {
	return "s3://" + s.Bucket + "/" + s.Prefix
}

func (s Stage) Validate() error {
	if err := ValidateTableName(s.Table); err != nil {
		return err
	}
	if err := ValidateBucketName(s.Bucket); err != nil {
		return err
	}
	if err := ValidatePrefix(s.Prefix); err != nil {
		return err
	}
	if err := ValidateCopyOptions(s.CopyOptions); err != nil {
		return err
	}
	if err := ValidateRegion(s.Region); err != nil {
		return err
	}
	if s.AwsConnection == "" {
		return errors.New("stage requires an AWS connection")
	}

	return nil
}

// Load inserts the rows returned by Select into Table.
type Load struct {
	Table  string
	Select string
	Mode   LoadMode
}

// Step is a single node of the pipeline. Exactly one of the kind-specific fields is set,
// matching Kind; markers carry none.
type Step struct {
	Name       string
	Kind       StepKind
	Connection string
	Upstreams  []string

	Create *CreateTable
	Stage  *Stage
	Load   *Load
	Checks []QualityCheck
}

// Validate checks that the step carries the parameters its kind needs.
func (s *Step) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.New("step name cannot be empty")
	}

	if s.Kind != StepKindMarker && s.Connection == "" {
		return errors.Errorf("step '%s' has no warehouse connection", s.Name)
	}

	switch s.Kind {
	case StepKindMarker:
		return nil
	case StepKindCreateTable:
		if s.Create == nil || strings.TrimSpace(s.Create.Statement) == "" {
			return errors.Errorf("step '%s' has no create statement", s.Name)
		}
		return ValidateTableName(s.Create.Table)
	case StepKindStage:
		if s.Stage == nil {
			return errors.Errorf("step '%s' has no stage parameters", s.Name)
		}
		return errors.Wrapf(s.Stage.Validate(), "step '%s'", s.Name)
	case StepKindLoadFact, StepKindLoadDimension:
		return s.validateLoad()
	case StepKindQualityCheck:
		for _, c := range s.Checks {
			if err := c.Validate(); err != nil {
				return errors.Wrapf(err, "step '%s'", s.Name)
			}
		}
		return nil
	}

	return errors.Errorf("step '%s' has unknown kind '%s'", s.Name, s.Kind)
}

func (s *Step) validateLoad() error {
	if s.Load == nil {
		return errors.Errorf("step '%s' has no load parameters", s.Name)
	}

	if err := ValidateTableName(s.Load.Table); err != nil {
		return errors.Wrapf(err, "step '%s'", s.Name)
	}

	if strings.TrimSpace(s.Load.Select) == "" {
		return errors.Errorf("step '%s' has no select statement", s.Name)
	}

	if s.Kind == StepKindLoadFact && s.Load.Mode == LoadModeTruncate {
		return errors.Errorf("step '%s' loads a fact table, fact tables only support the 'append' mode", s.Name)
	}

	return nil
}
