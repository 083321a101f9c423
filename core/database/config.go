// Package database opens the optional PostgreSQL pool behind the documents
// storage backend and applies its schema migrations.
package database

import (
	"net"
	"net/url"
)

const defaultMigrationsDir = "migrations"

// Config holds PostgreSQL connection settings.
type Config struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
	// MigrationsDir is resolved against the working directory when relative.
	MigrationsDir string `yaml:"migrations_dir" envconfig:"DB_MIGRATIONS_DIR"`
}

// URL returns the postgres:// form understood by both lib/pq and migrate.
// Credentials are escaped, so passwords may contain any character.
func (c Config) URL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, c.portOrDefault()),
		Path:   "/" + c.Name,
	}
	if c.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {c.SSLMode}}.Encode()
	}
	return u.String()
}

func (c Config) portOrDefault() string {
	if c.Port == "" {
		return "5432"
	}
	return c.Port
}

func (c Config) poolSize() int {
	if c.MaxConnections <= 0 {
		return 5
	}
	return c.MaxConnections
}

func (c Config) migrationsDir() string {
	if c.MigrationsDir == "" {
		return defaultMigrationsDir
	}
	return c.MigrationsDir
}
