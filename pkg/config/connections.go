package config

import (
	"fmt"
)

type RedshiftConnection struct {
	Name         string `yaml:"name" json:"name" validate:"required"`
	Username     string `yaml:"username" json:"username" validate:"required"`
	Password     string `yaml:"password" json:"password"`
	Host         string `yaml:"host" json:"host" validate:"required"`
	Port         int    `yaml:"port" json:"port" jsonschema:"default=5439"`
	Database     string `yaml:"database" json:"database" validate:"required"`
	Schema       string `yaml:"schema" json:"schema,omitempty"`
	PoolMaxConns int    `yaml:"pool_max_conns" json:"pool_max_conns,omitempty" jsonschema:"default=10"`
	SslMode      string `yaml:"ssl_mode" json:"ssl_mode,omitempty" jsonschema:"default=require"`
}

func (c RedshiftConnection) GetName() string {
	return c.Name
}

// AwsConnection holds the credentials the COPY statements hand to Redshift. When the keys are left
// empty the default AWS credential chain is used instead, e.g. environment variables or a profile.
type AwsConnection struct {
	Name         string `yaml:"name" json:"name" validate:"required"`
	AccessKey    string `yaml:"access_key" json:"access_key,omitempty"`
	SecretKey    string `yaml:"secret_key" json:"secret_key,omitempty"`
	SessionToken string `yaml:"session_token" json:"session_token,omitempty"`
	Region       string `yaml:"region" json:"region,omitempty"`
	Profile      string `yaml:"profile" json:"profile,omitempty"`
}

func (c AwsConnection) GetName() string {
	return c.Name
}

func (c AwsConnection) HasStaticKeys() bool {
	return c.AccessKey != "" && c.SecretKey != ""
}

type Connections struct {
	Redshift []RedshiftConnection `yaml:"redshift,omitempty" json:"redshift,omitempty" validate:"dive"`
	Aws      []AwsConnection      `yaml:"aws,omitempty" json:"aws,omitempty" validate:"dive"`
}

// Names returns every connection name in the environment, used to spot duplicates across types.
func (c *Connections) Names() []string {
	names := make([]string, 0, len(c.Redshift)+len(c.Aws))
	for _, conn := range c.Redshift {
		names = append(names, conn.GetName())
	}
	for _, conn := range c.Aws {
		names = append(names, conn.GetName())
	}

	return names
}

func (c *Connections) ensureUniqueNames() error {
	seen := make(map[string]bool)
	for _, name := range c.Names() {
		if seen[name] {
			return fmt.Errorf("duplicate connection name '%s'", name)
		}
		seen[name] = true
	}

	return nil
}
