package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config holds all mnemo configuration.
type Config struct {
	Root        string            `yaml:"root"`
	Server      ServerConfig      `yaml:"server"`
	Engine      EngineConfig      `yaml:"engine"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	Log         LogConfig         `yaml:"log"`
	Seed        SeedConfig        `yaml:"seed"`
}

type ServerConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type EngineConfig struct {
	WriteTimeout time.Duration `yaml:"write_timeout"`  // bound on one blob+index write pair
	BlobCacheTTL time.Duration `yaml:"blob_cache_ttl"` // 0 disables the blob read cache
}

// MaintenanceConfig holds the eviction and reinforcement thresholds and
// the schedule of the maintenance pass.
type MaintenanceConfig struct {
	Cron           string  `yaml:"cron"` // empty disables scheduling
	MinImportance  float64 `yaml:"min_importance"`
	StaleAfterDays int     `yaml:"stale_after_days"`
	MinAccess      int     `yaml:"min_access"`
	ReinforceStep  float64 `yaml:"reinforce_step"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "text" or "json"
}

// SeedFact is one default ability or permission stored by `mnemo init --seed`.
type SeedFact struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type SeedConfig struct {
	Abilities   []SeedFact `yaml:"abilities"`
	Permissions []SeedFact `yaml:"permissions"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Root: defaultRoot(),
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37778,
		},
		Engine: EngineConfig{
			WriteTimeout: 10 * time.Second,
			BlobCacheTTL: 5 * time.Minute,
		},
		Maintenance: MaintenanceConfig{
			Cron:           "0 3 * * 0",
			MinImportance:  0.2,
			StaleAfterDays: 90,
			MinAccess:      3,
			ReinforceStep:  0.01,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Seed: SeedConfig{
			Abilities: []SeedFact{
				{Name: "Use MCP Tools", Description: "Can use MCP tools without asking permission"},
				{Name: "Access Past Chats", Description: "Can search and retrieve past conversations automatically"},
				{Name: "Memory Persistence", Description: "Keeps persistent memory across sessions"},
				{Name: "Proactive Tool Use", Description: "Uses tools proactively when needed"},
			},
			Permissions: []SeedFact{
				{Name: "Filesystem Access", Description: "Can read/write files in authorized directories"},
				{Name: "Web Search", Description: "Can search the web for current information"},
				{Name: "Code Execution", Description: "Can execute code for analysis and automation"},
			},
		},
	}
}

func defaultRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mnemo"
	}
	return filepath.Join(home, ".mnemo")
}

// DefaultPath returns ~/.mnemo/config.yaml.
func DefaultPath() string {
	return filepath.Join(defaultRoot(), "config.yaml")
}

// Load reads the YAML file at path over the defaults, then applies .env and
// environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	// .env is optional
	_ = godotenv.Load()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("MNEMO_ROOT"); v != "" {
		c.Root = v
	}
	if v := os.Getenv("MNEMO_BIND"); v != "" {
		c.Server.Bind = v
	}
	if v := os.Getenv("MNEMO_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MNEMO_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("MNEMO_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v, ok := os.LookupEnv("MNEMO_MAINTENANCE_CRON"); ok {
		c.Maintenance.Cron = v
	}
	return nil
}

// Validate checks ranges and the maintenance cron expression.
func (c *Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("root must not be empty")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	m := c.Maintenance
	if m.MinImportance < 0 || m.MinImportance > 1 {
		return fmt.Errorf("maintenance.min_importance %v must be within [0,1]", m.MinImportance)
	}
	if m.StaleAfterDays < 0 {
		return fmt.Errorf("maintenance.stale_after_days must not be negative")
	}
	if m.MinAccess < 0 {
		return fmt.Errorf("maintenance.min_access must not be negative")
	}
	if m.ReinforceStep < 0 {
		return fmt.Errorf("maintenance.reinforce_step must not be negative")
	}
	if m.Cron != "" {
		if err := ValidateCron(m.Cron); err != nil {
			return err
		}
	}
	return nil
}

// ValidateCron checks a standard five-field cron expression.
func ValidateCron(expr string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// StaleAfter returns the eviction age threshold.
func (m MaintenanceConfig) StaleAfter() time.Duration {
	return time.Duration(m.StaleAfterDays) * 24 * time.Hour
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
