package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/m3rciful/schoolbot/app/reports"
	"github.com/m3rciful/schoolbot/app/roles"
	"github.com/m3rciful/schoolbot/app/session"
	coreconfig "github.com/m3rciful/schoolbot/core/config"
	coredatabase "github.com/m3rciful/schoolbot/core/database"
)

// RolesConfig is the static role directory.
type RolesConfig struct {
	// Users maps a Telegram user id to a role tag.
	Users map[string]string `yaml:"users"`
	// Hierarchy overrides the default reporting graph when set.
	Hierarchy map[string][]string `yaml:"hierarchy"`
}

// ReportsConfig controls the report store.
type ReportsConfig struct {
	DuplicatePolicy string `yaml:"duplicate_policy" envconfig:"REPORTS_DUPLICATE_POLICY"`
	Timezone        string `yaml:"timezone" envconfig:"REPORTS_TIMEZONE"`
}

// SessionsConfig controls idle eviction. A negative idle timeout disables it.
type SessionsConfig struct {
	IdleTimeout time.Duration `yaml:"idle_timeout" envconfig:"SESSION_IDLE_TIMEOUT"`
	SweepSpec   string        `yaml:"sweep_spec" envconfig:"SESSION_SWEEP_SPEC"`
}

// SeedConfig points at the directory seed file.
type SeedConfig struct {
	File string `yaml:"file" envconfig:"SEED_FILE"`
}

// Config is the application configuration. The core section is inlined so
// telegram, logging, rate_limit and storage stay top-level keys.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Roles    RolesConfig         `yaml:"roles"`
	Reports  ReportsConfig       `yaml:"reports"`
	Sessions SessionsConfig      `yaml:"sessions"`
	Seed     SeedConfig          `yaml:"seed"`

	users     map[int64]roles.Role
	hierarchy roles.Hierarchy
	policy    reports.DuplicatePolicy
	location  *time.Location
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// LoadConfig reads the YAML file at path, overlays the environment and validates.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates every section and resolves derived values.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}

	users, err := roles.ParseUsers(c.Roles.Users)
	if err != nil {
		return err
	}
	if id := c.Telegram.AdminID; id != 0 {
		if _, listed := users[id]; !listed {
			users[id] = roles.SchoolAdmin
		}
	}
	c.users = users

	if c.hierarchy, err = roles.ParseHierarchy(c.Roles.Hierarchy); err != nil {
		return err
	}

	if c.policy, err = reports.ParsePolicy(c.Reports.DuplicatePolicy); err != nil {
		return err
	}
	c.Reports.DuplicatePolicy = string(c.policy)

	c.location = time.UTC
	if tz := strings.TrimSpace(c.Reports.Timezone); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return fmt.Errorf("invalid reports.timezone %q: %w", tz, err)
		}
		c.location = loc
	}

	switch {
	case c.Sessions.IdleTimeout == 0:
		c.Sessions.IdleTimeout = session.DefaultIdleTimeout
	case c.Sessions.IdleTimeout < 0:
		c.Sessions.IdleTimeout = 0
	}
	if strings.TrimSpace(c.Sessions.SweepSpec) == "" {
		c.Sessions.SweepSpec = session.DefaultSweepSpec
	}

	if c.Storage.Driver == coreconfig.StoragePostgres && strings.TrimSpace(c.Database.Host) == "" {
		return fmt.Errorf("database.host is required when storage.driver is 'postgres'")
	}
	return nil
}

// Directory builds the role directory from the normalized config.
func (c *Config) Directory() *roles.Directory {
	return roles.NewDirectory(c.users, c.hierarchy)
}

// ReportOptions returns the report store options from the normalized config.
func (c *Config) ReportOptions() []reports.Option {
	return []reports.Option{reports.WithPolicy(c.policy), reports.WithLocation(c.location)}
}

// Location is the calendar used for report dates and command arguments.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}
