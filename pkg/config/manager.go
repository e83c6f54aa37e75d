package config

import (
	"bufio"
	"errors"
	"fmt"
	fs2 "io/fs"
	"os"
	"path"
	"sort"
	"strings"

	path2 "github.com/sparkify/sparkify-etl/pkg/path"
	"github.com/spf13/afero"
)

const (
	DefaultConfigFile      = ".sparkify.yml"
	DefaultEnvironmentName = "default"
)

type Environment struct {
	Connections *Connections `yaml:"connections" json:"connections"`
}

type Config struct {
	fs   afero.Fs
	path string

	DefaultEnvironmentName  string                 `yaml:"default_environment" json:"default_environment"`
	SelectedEnvironmentName string                 `yaml:"-" json:"-"`
	SelectedEnvironment     *Environment           `yaml:"-" json:"-"`
	Environments            map[string]Environment `yaml:"environments" json:"environments" validate:"dive"`
}

func (c *Config) Persist() error {
	return c.PersistToFs(c.fs)
}

func (c *Config) PersistToFs(fs afero.Fs) error {
	return path2.WriteYaml(fs, c.path, c)
}

func (c *Config) Path() string {
	return c.path
}

func (c *Config) SelectEnvironment(name string) error {
	e, ok := c.Environments[name]
	if !ok {
		return fmt.Errorf("environment '%s' not found in the configuration file, available environments: %s", name, strings.Join(c.EnvironmentNames(), ", "))
	}

	if e.Connections == nil {
		e.Connections = &Connections{}
	}

	if err := e.Connections.ensureUniqueNames(); err != nil {
		return fmt.Errorf("invalid environment '%s': %w", name, err)
	}

	c.SelectedEnvironment = &e
	c.SelectedEnvironmentName = name
	return nil
}

func (c *Config) EnvironmentNames() []string {
	names := make([]string, 0, len(c.Environments))
	for name := range c.Environments {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

func LoadFromFile(fs afero.Fs, path string) (*Config, error) {
	var config Config

	err := path2.ReadYaml(fs, path, &config)
	if err != nil {
		return nil, err
	}

	config.fs = fs
	config.path = path

	if config.DefaultEnvironmentName == "" {
		config.DefaultEnvironmentName = DefaultEnvironmentName
	}

	if len(config.Environments) == 0 {
		return nil, fmt.Errorf("no environments found in the configuration file '%s'", path)
	}

	if err := config.SelectEnvironment(config.DefaultEnvironmentName); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadOrCreate loads the config file, writing an empty default one if it doesn't exist yet.
// Either way the file is added to the .gitignore next to it since it contains credentials.
func LoadOrCreate(fs afero.Fs, path string) (*Config, error) {
	config, err := LoadFromFile(fs, path)
	if err != nil && !errors.Is(err, fs2.ErrNotExist) {
		return nil, err
	}

	if err == nil {
		return config, ensureConfigIsInGitignore(fs, path)
	}

	defaultEnv := Environment{
		Connections: &Connections{},
	}
	config = &Config{
		fs:   fs,
		path: path,

		DefaultEnvironmentName:  DefaultEnvironmentName,
		SelectedEnvironment:     &defaultEnv,
		SelectedEnvironmentName: DefaultEnvironmentName,
		Environments: map[string]Environment{
			DefaultEnvironmentName: defaultEnv,
		},
	}

	err = config.Persist()
	if err != nil {
		return nil, fmt.Errorf("failed to persist config: %w", err)
	}

	return config, ensureConfigIsInGitignore(fs, path)
}

func ensureConfigIsInGitignore(fs afero.Fs, filePath string) (err error) {
	gitignorePath := path.Join(path.Dir(filePath), ".gitignore")
	exists, err := afero.Exists(fs, gitignorePath)
	if err != nil {
		return err
	}

	fileNameToIgnore := path.Base(filePath)
	if !exists {
		return afero.WriteFile(fs, gitignorePath, []byte(fileNameToIgnore), 0o644)
	}

	file, err := fs.OpenFile(gitignorePath, os.O_APPEND|os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer func(open afero.File) {
		tempErr := open.Close()
		if tempErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close file: %w", tempErr))
		}
	}(file)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == fileNameToIgnore {
			return nil
		}
	}

	_, err = file.Write([]byte("\n" + fileNameToIgnore))
	return err
}
