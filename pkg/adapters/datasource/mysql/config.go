package mysql

import "github.com/ekaya-inc/ekaya-askdata/pkg/adapters/datasource"

const DefaultPort = 3306

// Config contains MySQL connection options.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	TLS      string // go-sql-driver tls value: true, false, skip-verify or preferred
}

// tlsForSSLMode maps the PostgreSQL-style ssl_mode shared by all adapters
// onto the driver's tls parameter.
var tlsForSSLMode = map[string]string{
	"disable":     "false",
	"require":     "skip-verify",
	"verify-full": "true",
}

func FromMap(config map[string]any) (*Config, error) {
	s := datasource.Settings(config)
	cfg := &Config{
		Port:     s.Int("port", DefaultPort),
		Password: s.String("password", ""),
		TLS:      "preferred",
	}
	if tls, ok := tlsForSSLMode[s.String("ssl_mode", "")]; ok {
		cfg.TLS = tls
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
