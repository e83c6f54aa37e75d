package config

import (
	"strings"

	errors2 "github.com/pkg/errors"
)

type ConnectionLookupDetails struct {
	ConfigFilePath  string
	EnvironmentName string
}

// ConnectionNotFoundError explains where the connection was looked up, so that the user knows which file to fix.
func ConnectionNotFoundError(details ConnectionLookupDetails, role, name string) error {
	role = strings.TrimSpace(role)
	prefix := ""
	if role != "" {
		prefix = role + " "
	}

	configFilePath := strings.TrimSpace(details.ConfigFilePath)
	if configFilePath == "" {
		configFilePath = DefaultConfigFile
	}

	environmentName := strings.TrimSpace(details.EnvironmentName)
	if environmentName == "" {
		environmentName = DefaultEnvironmentName
	}

	return errors2.Errorf(
		"%sconnection '%s' not found in config file '%s' under environment '%s'",
		prefix,
		name,
		configFilePath,
		environmentName,
	)
}
