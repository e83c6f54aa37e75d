package connection

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/pkg/errors"
	"github.com/sparkify/sparkify-etl/pkg/config"
	"github.com/sparkify/sparkify-etl/pkg/redshift"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLoader applies the load options without touching the environment or the shared config files.
func fakeLoader(calls *int) awsConfigLoader {
	return func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		*calls++

		var opts awsconfig.LoadOptions
		for _, fn := range optFns {
			if err := fn(&opts); err != nil {
				return aws.Config{}, err
			}
		}

		if opts.SharedConfigProfile == "missing" {
			return aws.Config{}, errors.New("failed to get shared config profile, missing")
		}

		cfg := aws.Config{Region: opts.Region}
		if opts.Credentials != nil {
			cfg.Credentials = opts.Credentials
		}

		return cfg, nil
	}
}

func TestManager_GetConnection(t *testing.T) {
	t.Parallel()

	rs := &redshift.Client{}
	awsConn := &config.AwsConnection{Name: "aws"}
	m := &Manager{
		Redshift: map[string]*redshift.Client{"redshift": rs},
		Aws:      map[string]*config.AwsConnection{"aws": awsConn},
		lookup:   config.ConnectionLookupDetails{ConfigFilePath: ".sparkify.yml", EnvironmentName: "prod"},
	}

	conn, err := m.GetConnection("redshift")
	require.NoError(t, err)
	assert.Same(t, rs, conn)

	conn, err = m.GetConnection("aws")
	require.NoError(t, err)
	assert.Same(t, awsConn, conn)

	_, err = m.GetConnection("unknown")
	require.EqualError(t, err, "connection 'unknown' not found in config file '.sparkify.yml' under environment 'prod'")

	_, err = m.GetRedshiftConnection("aws")
	require.EqualError(t, err, "redshift connection 'aws' not found in config file '.sparkify.yml' under environment 'prod'")
}

func TestManager_GetAwsCredentials(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		conn    *config.AwsConnection
		want    aws.Credentials
		wantErr string
	}{
		{
			name: "static keys",
			conn: &config.AwsConnection{Name: "aws", AccessKey: "AKIA", SecretKey: "secret", Region: "us-west-2"},
			want: aws.Credentials{AccessKeyID: "AKIA", SecretAccessKey: "secret", Source: "StaticCredentials"},
		},
		{
			name: "static keys with a session token",
			conn: &config.AwsConnection{Name: "aws", AccessKey: "ASIA", SecretKey: "secret", SessionToken: "token"},
			want: aws.Credentials{AccessKeyID: "ASIA", SecretAccessKey: "secret", SessionToken: "token", Source: "StaticCredentials"},
		},
		{
			name:    "half configured keys",
			conn:    &config.AwsConnection{Name: "aws", AccessKey: "AKIA"},
			wantErr: "AWS connection 'aws' must define both access_key and secret_key",
		},
		{
			name:    "no credentials at all",
			conn:    &config.AwsConnection{Name: "aws"},
			wantErr: "no credentials could be found for the AWS connection 'aws'",
		},
		{
			name:    "unknown profile",
			conn:    &config.AwsConnection{Name: "aws", Profile: "missing"},
			wantErr: "failed to load the AWS config for connection 'aws': failed to get shared config profile, missing",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			calls := 0
			m := &Manager{
				Aws:        map[string]*config.AwsConnection{"aws": tt.conn},
				loadConfig: fakeLoader(&calls),
			}

			got, err := m.GetAwsCredentials(context.Background(), "aws")
			if tt.wantErr != "" {
				require.EqualError(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestManager_GetAwsConfigIsCached(t *testing.T) {
	t.Parallel()

	calls := 0
	m := &Manager{
		Aws:        map[string]*config.AwsConnection{"aws": {Name: "aws", AccessKey: "AKIA", SecretKey: "secret", Region: "eu-west-1"}},
		loadConfig: fakeLoader(&calls),
	}

	cfg, err := m.GetAwsConfig(context.Background(), "aws")
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", cfg.Region)

	_, err = m.GetAwsConfig(context.Background(), "aws")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	_, err = m.GetAwsConfig(context.Background(), "other")
	require.EqualError(t, err, "aws connection 'other' not found in config file '.sparkify.yml' under environment 'default'")
}

func TestNewManagerFromConfig(t *testing.T) {
	t.Parallel()

	cm := &config.Config{
		SelectedEnvironmentName: "default",
		SelectedEnvironment: &config.Environment{
			Connections: &config.Connections{
				Redshift: []config.RedshiftConnection{
					{Name: "redshift", Username: "awsuser", Password: "pass", Host: "localhost", Database: "dev"},
				},
				Aws: []config.AwsConnection{
					{Name: "aws", AccessKey: "AKIA", SecretKey: "secret"},
				},
			},
		},
	}

	m, err := NewManagerFromConfig(context.Background(), cm)
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, []string{"redshift"}, m.RedshiftConnectionNames())
	require.Contains(t, m.Aws, "aws")
	assert.Equal(t, "AKIA", m.Aws["aws"].AccessKey)
}
