package pipeline

import (
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Comparison is the operator a quality check applies between the query result and the expected value.
type Comparison int

const (
	ComparisonUnknown Comparison = iota
	Equals
	NotEquals
	GreaterThan
	LessThan
)

var comparisonCodes = map[Comparison]string{
	Equals:      "eq",
	NotEquals:   "ne",
	GreaterThan: "gt",
	LessThan:    "lt",
}

func (c Comparison) String() string {
	if code, ok := comparisonCodes[c]; ok {
		return code
	}
	return "unknown"
}

func ParseComparison(code string) (Comparison, error) {
	normalized := strings.ToLower(strings.TrimSpace(code))
	for c, known := range comparisonCodes {
		if known == normalized {
			return c, nil
		}
	}

	return ComparisonUnknown, errors.Errorf("unknown comparison '%s', must be one of eq, ne, gt, lt", code)
}

func (c *Comparison) UnmarshalYAML(value *yaml.Node) error {
	var code string
	if err := value.Decode(&code); err != nil {
		return err
	}

	parsed, err := ParseComparison(code)
	if err != nil {
		return err
	}

	*c = parsed
	return nil
}

func (c Comparison) MarshalYAML() (interface{}, error) {
	return c.String(), nil
}

// Compare reports whether result holds against expected under the comparison.
func Compare(c Comparison, result, expected int64) (bool, error) {
	switch c {
	case Equals:
		return result == expected, nil
	case NotEquals:
		return result != expected, nil
	case GreaterThan:
		return result > expected, nil
	case LessThan:
		return result < expected, nil
	}

	return false, errors.Errorf("unknown comparison '%d'", int(c))
}

// QualityCheck is a single data quality assertion: the scalar returned by Query must satisfy
// Comparison against Expected.
type QualityCheck struct {
	Name       string     `yaml:"name"`
	Query      string     `yaml:"sql" validate:"required"`
	Comparison Comparison `yaml:"op"`
	Expected   int64      `yaml:"val"`
}

// DisplayName falls back to the query text when the check is not named.
func (c QualityCheck) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}

	return strings.TrimSpace(c.Query)
}

func (c QualityCheck) Validate() error {
	if strings.TrimSpace(c.Query) == "" {
		return errors.Errorf("quality check '%s' has no query", c.Name)
	}

	if _, ok := comparisonCodes[c.Comparison]; !ok {
		return errors.Errorf("quality check '%s' has no valid comparison, must be one of eq, ne, gt, lt", c.DisplayName())
	}

	return nil
}
