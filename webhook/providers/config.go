package providers

import (
	"fmt"
	"os"

	"github.com/marcelsud/tymbug/webhook"
	"gopkg.in/yaml.v3"
)

/* Provider policy configuration from providers.yaml
 * Declares per-provider secrets and whether unsigned deliveries
 * are rejected. Absence of a file means permissive defaults.
 */

// Config represents the structure of providers.yaml
type Config struct {
	Providers []ProviderConfig `yaml:"providers"`
}

// ProviderConfig represents a single provider entry in the YAML file
type ProviderConfig struct {
	Name             string `yaml:"name"`
	Secret           string `yaml:"secret"`
	RequireSignature bool   `yaml:"require_signature"`
}

// Validate checks a provider entry for consistency
func (p ProviderConfig) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("provider name cannot be empty")
	}
	if p.RequireSignature && p.Secret == "" {
		return fmt.Errorf("provider %s requires signatures but has no secret configured", p.Name)
	}
	return nil
}

// LoadConfig reads and parses a providers.yaml file
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading providers file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing providers YAML: %w", err)
	}

	seen := make(map[string]bool)
	for _, p := range cfg.Providers {
		if err := p.Validate(); err != nil {
			return Config{}, err
		}
		if seen[p.Name] {
			return Config{}, fmt.Errorf("duplicate provider entry: %s", p.Name)
		}
		seen[p.Name] = true
	}

	return cfg, nil
}

// Get returns the entry for a provider, if configured
func (c Config) Get(name string) (ProviderConfig, bool) {
	for _, p := range c.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return ProviderConfig{}, false
}

/* BuildRegistry assembles the handler registry from the provider config
 * GitHub registers before the generic catch-all; registration order is
 * the dispatch order
 */
func BuildRegistry(cfg Config, repo webhook.Writer) *Registry {
	github, _ := cfg.Get("github")

	return NewRegistry(
		NewGitHubHandler(repo, github.Secret, github.RequireSignature),
		NewGenericHandler(repo),
	)
}
