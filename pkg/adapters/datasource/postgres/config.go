package postgres

import "github.com/ekaya-inc/ekaya-askdata/pkg/adapters/datasource"

const (
	DefaultPort    = 5432
	DefaultSSLMode = "require"
	// DefaultSchema is discovered when no schema is configured.
	DefaultSchema = "public"
)

// Config contains PostgreSQL-specific connection options.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string // disable, require, verify-ca or verify-full
	Schema   string
}

// FromMap reads host, port, user, password, database, ssl_mode and schema.
func FromMap(config map[string]any) (*Config, error) {
	s := datasource.Settings(config)
	cfg := &Config{
		Port:     s.Int("port", DefaultPort),
		Password: s.String("password", ""),
		SSLMode:  s.String("ssl_mode", DefaultSSLMode),
		Schema:   s.String("schema", DefaultSchema),
	}

	var err error
	if cfg.Host, err = s.Required("host"); err != nil {
		return nil, err
	}
	if cfg.User, err = s.Required("user"); err != nil {
		return nil, err
	}
	if cfg.Database, err = s.Required("database"); err != nil {
		return nil, err
	}
	return cfg, nil
}
