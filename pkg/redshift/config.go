package redshift

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
)

const (
	DefaultPort    = 5439
	DefaultSslMode = "require"
)

// Config represents Redshift connection configuration.
type Config struct {
	Username     string
	Password     string
	Host         string
	Port         int
	Database     string
	Schema       string
	PoolMaxConns int
	SslMode      string
}

// ToDBConnectionURI returns a connection URI to be used with the pgx package.
func (c Config) ToDBConnectionURI() string {
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}

	sslMode := c.SslMode
	if sslMode == "" {
		sslMode = DefaultSslMode
	}

	params := url.Values{}
	params.Set("sslmode", sslMode)
	if c.PoolMaxConns > 0 {
		params.Set("pool_max_conns", strconv.Itoa(c.PoolMaxConns))
	}
	if c.Schema != "" {
		params.Set("search_path", c.Schema)
	}

	uri := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Username, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(port)),
		Path:     "/" + c.Database,
		RawQuery: params.Encode(),
	}

	return uri.String()
}

func (c Config) String() string {
	return fmt.Sprintf("%s@%s/%s", c.Username, c.Host, c.Database)
}
