package bot

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/m3rciful/schoolbot/app/roles"
	"github.com/m3rciful/schoolbot/app/session"
	coreconfig "github.com/m3rciful/schoolbot/core/config"
)

func baseConfig() *Config {
	return &Config{
		Config: coreconfig.Config{
			Telegram: coreconfig.TelegramConfig{Token: "test", AdminID: 7},
			Storage:  coreconfig.StorageConfig{Driver: coreconfig.StorageMemory},
		},
		Roles: RolesConfig{Users: map[string]string{"10": "coach"}},
	}
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := baseConfig()
	if err := cfg.Normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	dir := cfg.Directory()
	if role, ok := dir.UserRole(7); !ok || role != roles.SchoolAdmin {
		t.Fatalf("admin role = %q %v", role, ok)
	}
	if role, _ := dir.UserRole(10); role != roles.Coach {
		t.Fatalf("coach role = %q", role)
	}
	if cfg.Sessions.IdleTimeout != session.DefaultIdleTimeout {
		t.Fatalf("idle timeout = %v", cfg.Sessions.IdleTimeout)
	}
	if cfg.Sessions.SweepSpec != session.DefaultSweepSpec {
		t.Fatalf("sweep spec = %q", cfg.Sessions.SweepSpec)
	}
	if cfg.Reports.DuplicatePolicy != "overwrite" {
		t.Fatalf("policy = %q", cfg.Reports.DuplicatePolicy)
	}
	if cfg.Location() != time.UTC {
		t.Fatalf("location = %v", cfg.Location())
	}
}

func TestNormalizeKeepsListedAdminRole(t *testing.T) {
	cfg := baseConfig()
	cfg.Roles.Users["7"] = "COACH"
	if err := cfg.Normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if role, _ := cfg.Directory().UserRole(7); role != roles.Coach {
		t.Fatalf("listed admin role = %q", role)
	}
}

func TestNormalizeNegativeIdleDisables(t *testing.T) {
	cfg := baseConfig()
	cfg.Sessions.IdleTimeout = -time.Second
	if err := cfg.Normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Sessions.IdleTimeout != 0 {
		t.Fatalf("idle timeout = %v", cfg.Sessions.IdleTimeout)
	}
}

func TestNormalizeErrors(t *testing.T) {
	cases := map[string]func(*Config){
		"policy":   func(c *Config) { c.Reports.DuplicatePolicy = "merge" },
		"timezone": func(c *Config) { c.Reports.Timezone = "Mars/Olympus" },
		"postgres": func(c *Config) { c.Storage.Driver = coreconfig.StoragePostgres },
		"role":     func(c *Config) { c.Roles.Users["11"] = "JANITOR" },
		"token":    func(c *Config) { c.Telegram.Token = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := baseConfig()
			mutate(cfg)
			if err := cfg.Normalize(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadConfigFromFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := strings.Join([]string{
		"telegram:",
		"  token: from-file",
		"  admin_id: 99",
		"storage:",
		"  driver: memory",
		"roles:",
		"  users:",
		"    \"10\": ASSISTANT",
		"reports:",
		"  duplicate_policy: reject",
		"  timezone: Asia/Tehran",
		"sessions:",
		"  idle_timeout: 5m",
		"",
	}, "\n")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("BOT_TOKEN", "from-env")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "from-env" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if cfg.Telegram.AdminID != 99 {
		t.Fatalf("admin id = %d", cfg.Telegram.AdminID)
	}
	if cfg.Reports.DuplicatePolicy != "reject" {
		t.Fatalf("policy = %q", cfg.Reports.DuplicatePolicy)
	}
	if cfg.Location().String() != "Asia/Tehran" {
		t.Fatalf("location = %v", cfg.Location())
	}
	if cfg.Sessions.IdleTimeout != 5*time.Minute {
		t.Fatalf("idle = %v", cfg.Sessions.IdleTimeout)
	}
	if role, _ := cfg.Directory().UserRole(10); role != roles.Assistant {
		t.Fatalf("role = %q", role)
	}
}
