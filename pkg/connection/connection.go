package connection

import (
	"context"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/pkg/errors"
	"github.com/sparkify/sparkify-etl/pkg/config"
	"github.com/sparkify/sparkify-etl/pkg/redshift"
	"github.com/sparkify/sparkify-etl/pkg/s3"
)

type awsConfigLoader func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error)

type Manager struct {
	Redshift map[string]*redshift.Client
	Aws      map[string]*config.AwsConnection

	lookup     config.ConnectionLookupDetails
	loadConfig awsConfigLoader

	mu         sync.Mutex
	awsConfigs map[string]aws.Config
}

func (m *Manager) GetConnection(name string) (any, error) {
	if conn, err := m.GetRedshiftConnection(name); err == nil {
		return conn, nil
	}

	if conn, ok := m.Aws[name]; ok {
		return conn, nil
	}

	return nil, config.ConnectionNotFoundError(m.lookup, "", name)
}

func (m *Manager) GetRedshiftConnection(name string) (*redshift.Client, error) {
	db, ok := m.Redshift[name]
	if !ok {
		return nil, config.ConnectionNotFoundError(m.lookup, "redshift", name)
	}

	return db, nil
}

// GetAwsConfig builds the AWS SDK config of a connection. Static keys win over a profile, and a
// connection without either falls back to the default credential chain.
func (m *Manager) GetAwsConfig(ctx context.Context, name string) (aws.Config, error) {
	conn, ok := m.Aws[name]
	if !ok {
		return aws.Config{}, config.ConnectionNotFoundError(m.lookup, "aws", name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if cfg, ok := m.awsConfigs[name]; ok {
		return cfg, nil
	}

	if (conn.AccessKey == "") != (conn.SecretKey == "") {
		return aws.Config{}, errors.Errorf("AWS connection '%s' must define both access_key and secret_key", name)
	}

	opts := make([]func(*awsconfig.LoadOptions) error, 0, 3)
	if conn.Region != "" {
		opts = append(opts, awsconfig.WithRegion(conn.Region))
	}
	if conn.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(conn.Profile))
	}
	if conn.HasStaticKeys() {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(conn.AccessKey, conn.SecretKey, conn.SessionToken),
		))
	}

	load := m.loadConfig
	if load == nil {
		load = awsconfig.LoadDefaultConfig
	}

	cfg, err := load(ctx, opts...)
	if err != nil {
		return aws.Config{}, errors.Wrapf(err, "failed to load the AWS config for connection '%s'", name)
	}

	if m.awsConfigs == nil {
		m.awsConfigs = make(map[string]aws.Config)
	}
	m.awsConfigs[name] = cfg

	return cfg, nil
}

// GetAwsCredentials resolves the credentials that are embedded into COPY statements. Empty
// credentials are an error, Redshift would otherwise fail with a far less helpful message.
func (m *Manager) GetAwsCredentials(ctx context.Context, name string) (aws.Credentials, error) {
	cfg, err := m.GetAwsConfig(ctx, name)
	if err != nil {
		return aws.Credentials{}, err
	}

	if cfg.Credentials == nil {
		return aws.Credentials{}, errors.Errorf("no credentials could be found for the AWS connection '%s'", name)
	}

	creds, err := cfg.Credentials.Retrieve(ctx)
	if err != nil {
		return aws.Credentials{}, errors.Wrapf(err, "failed to retrieve credentials for the AWS connection '%s'", name)
	}

	if creds.AccessKeyID == "" || creds.SecretAccessKey == "" {
		return aws.Credentials{}, errors.Errorf("the AWS connection '%s' resolved to empty credentials", name)
	}

	return creds, nil
}

func (m *Manager) GetS3Client(ctx context.Context, awsConnection, region, bucket string) (s3.ObjectLister, error) {
	cfg, err := m.GetAwsConfig(ctx, awsConnection)
	if err != nil {
		return nil, err
	}

	return s3.NewClient(ctx, cfg, region, bucket)
}

func (m *Manager) RedshiftConnectionNames() []string {
	names := make([]string, 0, len(m.Redshift))
	for name := range m.Redshift {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

func (m *Manager) Close() {
	for _, db := range m.Redshift {
		db.Close()
	}
}

func (m *Manager) AddRedshiftConnectionFromConfig(ctx context.Context, connection *config.RedshiftConnection) error {
	if m.Redshift == nil {
		m.Redshift = make(map[string]*redshift.Client)
	}

	db, err := redshift.NewClient(ctx, &redshift.Config{
		Username:     connection.Username,
		Password:     connection.Password,
		Host:         connection.Host,
		Port:         connection.Port,
		Database:     connection.Database,
		Schema:       connection.Schema,
		PoolMaxConns: connection.PoolMaxConns,
		SslMode:      connection.SslMode,
	})
	if err != nil {
		return err
	}

	m.Redshift[connection.Name] = db

	return nil
}

func (m *Manager) AddAwsConnectionFromConfig(connection *config.AwsConnection) {
	if m.Aws == nil {
		m.Aws = make(map[string]*config.AwsConnection)
	}

	m.Aws[connection.Name] = connection
}

func NewManagerFromConfig(ctx context.Context, cm *config.Config) (*Manager, error) {
	connectionManager := &Manager{
		lookup: config.ConnectionLookupDetails{
			ConfigFilePath:  cm.Path(),
			EnvironmentName: cm.SelectedEnvironmentName,
		},
	}

	if cm.SelectedEnvironment == nil || cm.SelectedEnvironment.Connections == nil {
		return connectionManager, nil
	}

	for _, conn := range cm.SelectedEnvironment.Connections.Redshift {
		conn := conn
		err := connectionManager.AddRedshiftConnectionFromConfig(ctx, &conn)
		if err != nil {
			connectionManager.Close()
			return nil, err
		}
	}
	for _, conn := range cm.SelectedEnvironment.Connections.Aws {
		conn := conn
		connectionManager.AddAwsConnectionFromConfig(&conn)
	}

	return connectionManager, nil
}
