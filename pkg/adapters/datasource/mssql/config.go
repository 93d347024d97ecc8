package mssql

import "github.com/ekaya-inc/ekaya-askdata/pkg/adapters/datasource"

const (
	DefaultPort = 1433
	// DefaultConnectionTimeout is in seconds.
	DefaultConnectionTimeout = 30
	DefaultSchema            = "dbo"
)

// Config contains SQL Server connection options. Only SQL authentication is supported.
type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Schema   string

	Encrypt                bool
	TrustServerCertificate bool
	ConnectionTimeout      int
}

// FromMap reads the shared connection keys plus encrypt and
// trust_server_certificate. ssl_mode "disable" turns encryption off unless
// encrypt is set explicitly.
func FromMap(config map[string]any) (*Config, error) {
	s := datasource.Settings(config)
	cfg := &Config{
		Port:                   s.Int("port", DefaultPort),
		Password:               s.String("password", ""),
		Schema:                 s.String("schema", DefaultSchema),
		Encrypt:                s.Bool("encrypt", s.String("ssl_mode", "") != "disable"),
		TrustServerCertificate: s.Bool("trust_server_certificate", false),
		ConnectionTimeout:      DefaultConnectionTimeout,
	}

	var err error
	if cfg.Host, err = s.Required("host"); err != nil {
		return nil, err
	}
	if cfg.Database, err = s.Required("database"); err != nil {
		return nil, err
	}
	if cfg.Username, err = s.Required("user"); err != nil {
		return nil, err
	}
	return cfg, nil
}
