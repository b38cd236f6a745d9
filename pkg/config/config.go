// Package config loads the YAML configuration describing the managed host
// fleet, the inventory cache, and the console broker.
package config

import (
	"os"
	"time"

	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"

	"github.com/virtops/virtdash/pkg/console"
	"github.com/virtops/virtdash/pkg/inventory"
	"github.com/virtops/virtdash/pkg/virsh"
)

// Host describes one managed hypervisor endpoint.
type Host struct {
	ID      string `yaml:"id"`
	URI     string `yaml:"uri"`
	Address string `yaml:"address"`

	TimeoutS       int `yaml:"timeout_s"`
	MaxConcurrency int `yaml:"max_concurrency"`
	// RetryCount is a pointer so an explicit 0 disables retries while an
	// absent key keeps the default.
	RetryCount   *int   `yaml:"retry_count"`
	RetrySleepMS int    `yaml:"retry_sleep_ms"`
	DefaultPool  string `yaml:"default_pool"`
}

// Endpoint converts the host entry into an executor endpoint with defaults
// applied.
func (h Host) Endpoint() virsh.Endpoint {
	ep := virsh.Endpoint{
		HostID:         h.ID,
		URI:            h.URI,
		Address:        h.Address,
		Timeout:        time.Duration(h.TimeoutS) * time.Second,
		MaxConcurrency: h.MaxConcurrency,
		RetrySleep:     time.Duration(h.RetrySleepMS) * time.Millisecond,
		DefaultPool:    h.DefaultPool,
	}
	if h.RetrySleepMS <= 0 {
		ep.RetrySleep = virsh.DefaultRetrySleep
	}
	if h.RetryCount != nil {
		ep.RetryCount = *h.RetryCount
		if ep.RetryCount < 0 {
			ep.RetryCount = 0
		}
	} else {
		ep.RetryCount = virsh.DefaultRetryCount
	}
	return ep.WithDefaults()
}

// Cache configures the inventory cache.
type Cache struct {
	TTLS int `yaml:"ttl_s"`
	// DSN points at the Postgres cache store. Empty keeps the in-memory store.
	DSN string `yaml:"dsn"`
}

func (c Cache) TTL() time.Duration {
	if c.TTLS <= 0 {
		return inventory.DefaultTTL
	}
	return time.Duration(c.TTLS) * time.Second
}

// Console configures the console session broker.
type Console struct {
	ViewerBaseURL string `yaml:"viewer_base_url"`
	WSBaseURL     string `yaml:"ws_base_url"`
	SessionTTLS   int    `yaml:"session_ttl_s"`
	HistoryLimit  int    `yaml:"history_limit"`
}

func (c Console) SessionTTL() time.Duration {
	if c.SessionTTLS <= 0 {
		return console.DefaultSessionTTL
	}
	return time.Duration(c.SessionTTLS) * time.Second
}

// Config is the top-level document.
type Config struct {
	Hosts   []Host  `yaml:"hosts"`
	Cache   Cache   `yaml:"cache"`
	Console Console `yaml:"console"`
}

// Load reads and decodes the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a configuration document and validates the host entries.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Errorf("parsing config: %w", err)
	}

	seen := map[string]bool{}
	for i := range cfg.Hosts {
		h := &cfg.Hosts[i]
		if h.URI == "" {
			return nil, errors.Errorf("host %d: uri is required", i)
		}
		if h.ID == "" {
			h.ID = h.URI
		}
		if seen[h.ID] {
			return nil, errors.Errorf("host %d: duplicate id %q", i, h.ID)
		}
		seen[h.ID] = true
	}
	return cfg, nil
}

// Host looks up a host entry by id.
func (c *Config) Host(id string) (Host, bool) {
	for _, h := range c.Hosts {
		if h.ID == id {
			return h, true
		}
	}
	return Host{}, false
}
