package sqlite

import "github.com/ekaya-inc/ekaya-askdata/pkg/adapters/datasource"

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Config contains SQLite-specific connection options.
type Config struct {
	// Path is the database file. It must exist unless it is MemoryPath.
	Path string
}

func FromMap(config map[string]any) (*Config, error) {
	path, err := datasource.Settings(config).Required("path")
	if err != nil {
		return nil, err
	}
	return &Config{Path: path}, nil
}
