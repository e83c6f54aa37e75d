package path

import (
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ReadYaml reads the file at path into out and validates the result against its `validate` tags.
// Fields that are absent from the file keep whatever value out already had, which lets callers
// pre-fill defaults before reading.
func ReadYaml(fs afero.Fs, path string, out interface{}) error {
	buf, err := afero.ReadFile(fs, path)
	if err != nil {
		return errors.Wrapf(err, "failed to read file %s", path)
	}

	return errors.Wrapf(ConvertYamlToObject(buf, out), "invalid file %s", path)
}

func WriteYaml(fs afero.Fs, path string, content interface{}) error {
	buf, err := yaml.Marshal(content)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal object to yaml")
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "failed to create directory %s", dir)
		}
	}

	err = afero.WriteFile(fs, path, buf, 0o644)
	if err != nil {
		return errors.Wrapf(err, "failed to write YAML file to %s", path)
	}

	return nil
}

func ConvertYamlToObject(buf []byte, out interface{}) error {
	if err := yaml.Unmarshal(buf, out); err != nil {
		return err
	}

	return Validate(out)
}

func Validate(out interface{}) error {
	return validate.Struct(out)
}

func FileExists(fs afero.Fs, path string) bool {
	res, err := afero.Exists(fs, path)
	return err == nil && res
}
