package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	RPCAddress  string `toml:"RPCAddress"`
	DataDir     string `toml:"DataDir"`
	Env         string `toml:"Env"`
	LogFile     string `toml:"LogFile"`
	AdminToken  string `toml:"AdminToken"`
	JWTSecret   string `toml:"JWTSecret"`
	AuditDriver string `toml:"AuditDriver"`
	AuditDSN    string `toml:"AuditDSN"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = "127.0.0.1:8645"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./marketd-data"
	}
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "local"
	}
	if strings.TrimSpace(cfg.AuditDriver) == "" {
		cfg.AuditDriver = "sqlite"
	}
}

func validate(cfg *Config) error {
	switch cfg.AuditDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("config: unsupported AuditDriver %q", cfg.AuditDriver)
	}
	if cfg.AuditDriver == "postgres" && strings.TrimSpace(cfg.AuditDSN) == "" {
		return fmt.Errorf("config: AuditDSN required for postgres audit store")
	}
	if strings.TrimSpace(cfg.AdminToken) == "" && strings.TrimSpace(cfg.JWTSecret) == "" {
		return fmt.Errorf("config: admin operations need AdminToken or JWTSecret")
	}
	return nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.AdminToken = randomToken()

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("config: create directory: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("config: create default: %w", err)
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, fmt.Errorf("config: encode default: %w", err)
	}
	return cfg, nil
}
