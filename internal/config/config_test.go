package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvToken, "")
	t.Setenv(EnvZone, "")
}

func TestLoadFromFlags(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("tok", "zone1", "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Token != "tok" || cfg.ZoneID != "zone1" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadFlagsBeatEnv(t *testing.T) {
	t.Setenv(EnvToken, "env-tok")
	t.Setenv(EnvZone, "env-zone")

	cfg, err := Load("flag-tok", "", "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Token != "flag-tok" {
		t.Errorf("token = %q, flags must win over env", cfg.Token)
	}
	if cfg.ZoneID != "env-zone" {
		t.Errorf("zone = %q, env must fill unset flags", cfg.ZoneID)
	}
}

func TestLoadEnvBeatsFile(t *testing.T) {
	t.Setenv(EnvToken, "env-tok")
	t.Setenv(EnvZone, "")

	path := filepath.Join(t.TempDir(), "credentials.yaml")
	if err := os.WriteFile(path, []byte("api_token: file-tok\nzone_id: file-zone\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load("", "", path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Token != "env-tok" {
		t.Errorf("token = %q, env must win over file", cfg.Token)
	}
	if cfg.ZoneID != "file-zone" {
		t.Errorf("zone = %q, file must fill the rest", cfg.ZoneID)
	}
}

func TestLoadMissingCredentials(t *testing.T) {
	clearEnv(t)

	_, err := Load("", "", "")
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("err = %v, want ErrInvalid", err)
	}
}

func TestLoadRejectsPlaceholders(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name        string
		token, zone string
	}{
		{"placeholder token", "YOUR_API_TOKEN_HERE", "zone1"},
		{"placeholder zone", "tok", "YOUR_ZONE_ID_HERE"},
		{"changeme", "CHANGEME", "zone1"},
		{"blank token", "   ", "zone1"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(tc.token, tc.zone, "")
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("err = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestLoadUnreadableFile(t *testing.T) {
	clearEnv(t)

	_, err := Load("", "", filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("err = %v, want ErrInvalid", err)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "credentials.yaml")
	if err := os.WriteFile(path, []byte("api_token: [broken\n"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := Load("", "", path)
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("err = %v, want ErrInvalid", err)
	}
}
