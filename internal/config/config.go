// Package config resolves the credential and zone identity zoneguard needs
// before it will touch the remote API.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalid marks fatal configuration errors. Nothing remote runs when
// the configuration is invalid.
var ErrInvalid = errors.New("config invalid")

// Environment variables honored when flags are not given.
const (
	EnvToken = "CLOUDFLARE_API_TOKEN"
	EnvZone  = "ZONE_ID"
)

// Placeholder sentinels that ship in documentation and sample files; their
// presence means the operator never filled in real values.
var placeholders = map[string]bool{
	"YOUR_API_TOKEN_HERE": true,
	"YOUR_ZONE_ID_HERE":   true,
	"CHANGEME":            true,
}

// Config is the credential and target for one invocation. It is passed by
// value into the deployment runner; there is no process-wide mutable state.
type Config struct {
	Token  string `yaml:"api_token"`
	ZoneID string `yaml:"zone_id"`
}

// Load resolves configuration with precedence: explicit flag values, then
// environment variables, then the optional YAML credentials file.
func Load(flagToken, flagZone, filePath string) (Config, error) {
	cfg := Config{Token: flagToken, ZoneID: flagZone}

	if cfg.Token == "" {
		cfg.Token = os.Getenv(EnvToken)
	}
	if cfg.ZoneID == "" {
		cfg.ZoneID = os.Getenv(EnvZone)
	}

	if filePath != "" && (cfg.Token == "" || cfg.ZoneID == "") {
		fileCfg, err := loadFile(filePath)
		if err != nil {
			return Config{}, err
		}
		if cfg.Token == "" {
			cfg.Token = fileCfg.Token
		}
		if cfg.ZoneID == "" {
			cfg.ZoneID = fileCfg.ZoneID
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects missing or placeholder credentials.
func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Token) == "":
		return fmt.Errorf("%w: API token not set (flag --token, env %s, or credentials file)", ErrInvalid, EnvToken)
	case placeholders[c.Token]:
		return fmt.Errorf("%w: API token is a placeholder value", ErrInvalid)
	case strings.TrimSpace(c.ZoneID) == "":
		return fmt.Errorf("%w: zone ID not set (flag --zone, env %s, or credentials file)", ErrInvalid, EnvZone)
	case placeholders[c.ZoneID]:
		return fmt.Errorf("%w: zone ID is a placeholder value", ErrInvalid)
	}
	return nil
}

func loadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: read credentials file: %v", ErrInvalid, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: parse credentials file: %v", ErrInvalid, err)
	}
	return cfg, nil
}
