// Package catalog holds the built-in desired-state bundles. The catalog is
// immutable, process-wide configuration: bundle order and rule order within
// a bundle are authoritative for deployment priority.
package catalog

import (
	"errors"
	"fmt"
	"sync"

	"embed"

	"github.com/zoneguard/zoneguard/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed bundles/*.yaml
var bundleFS embed.FS

// ErrInvalid marks catalog authoring errors. These are fatal before any
// bundle runs; they are never resolved silently at reconciliation time.
var ErrInvalid = errors.New("catalog invalid")

// bundleFiles lists the bundles in deployment order.
var bundleFiles = []struct {
	name string
	path string
}{
	{"dns-tls", "bundles/dns_tls.yaml"},
	{"speed", "bundles/speed.yaml"},
	{"security-settings", "bundles/security_settings.yaml"},
	{"waf-custom", "bundles/waf_custom.yaml"},
	{"rate-limiting", "bundles/rate_limiting.yaml"},
	{"cache-rules", "bundles/cache_rules.yaml"},
}

var (
	loadOnce sync.Once
	loaded   []models.Bundle
	loadErr  error
)

// Bundles returns every catalog bundle in deployment order, validating the
// whole catalog on first use.
func Bundles() ([]models.Bundle, error) {
	loadOnce.Do(func() {
		loaded, loadErr = loadAll()
	})
	return loaded, loadErr
}

// Get returns one bundle by its exact name.
func Get(name string) (*models.Bundle, error) {
	bundles, err := Bundles()
	if err != nil {
		return nil, err
	}
	for i := range bundles {
		if bundles[i].Name == name {
			return &bundles[i], nil
		}
	}
	return nil, fmt.Errorf("unknown bundle %q", name)
}

// Names returns the bundle names in deployment order.
func Names() []string {
	names := make([]string, 0, len(bundleFiles))
	for _, f := range bundleFiles {
		names = append(names, f.name)
	}
	return names
}

func loadAll() ([]models.Bundle, error) {
	bundles := make([]models.Bundle, 0, len(bundleFiles))
	for _, f := range bundleFiles {
		data, err := bundleFS.ReadFile(f.path)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrInvalid, f.path, err)
		}

		var b models.Bundle
		if err := yaml.Unmarshal(data, &b); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalid, f.path, err)
		}
		if b.Name != f.name {
			return nil, fmt.Errorf("%w: bundle file %s declares name %q, want %q", ErrInvalid, f.path, b.Name, f.name)
		}
		if err := Validate(b); err != nil {
			return nil, err
		}
		bundles = append(bundles, b)
	}
	return bundles, nil
}

// Validate applies the structural invariants that must fail fast at load
// time: unique setting keys, unique rule names, and a phase whenever rules
// are present.
func Validate(b models.Bundle) error {
	keys := map[string]bool{}
	for _, s := range b.Settings {
		if s.Key == "" {
			return fmt.Errorf("%w: bundle %q has a setting with no key", ErrInvalid, b.Name)
		}
		if keys[s.Key] {
			return fmt.Errorf("%w: bundle %q declares setting %q twice", ErrInvalid, b.Name, s.Key)
		}
		keys[s.Key] = true
	}

	if len(b.Rules) > 0 && b.Phase == "" {
		return fmt.Errorf("%w: bundle %q has rules but no phase", ErrInvalid, b.Name)
	}

	names := map[string]bool{}
	for _, r := range b.Rules {
		if r.Name == "" {
			return fmt.Errorf("%w: bundle %q has a rule with no name", ErrInvalid, b.Name)
		}
		if names[r.Name] {
			return fmt.Errorf("%w: bundle %q declares rule %q twice", ErrInvalid, b.Name, r.Name)
		}
		names[r.Name] = true
	}

	return nil
}
