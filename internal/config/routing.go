package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/proxlab/pvebridge/internal/event"
)

// Routing maps output channel names to the minimum severity they receive.
// Channels without an entry receive every severity.
type Routing struct {
	MinSeverity map[string]string `yaml:"min_severity"`
}

// LoadRouting reads the routing YAML file at path. A missing file is not an
// error: it returns an empty routing table (all severities to all channels).
func LoadRouting(path string) (*Routing, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is from admin-configured data dir
	if err != nil {
		if os.IsNotExist(err) {
			return &Routing{}, nil
		}
		return nil, fmt.Errorf("reading routing file %q: %w", path, err)
	}

	var r Routing
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing routing file %q: %w", path, err)
	}
	return &r, nil
}

// MinimumFor returns the minimum severity configured for the named channel.
// Unconfigured channels get SeverityInfo, i.e. everything.
func (r *Routing) MinimumFor(channel string) event.Severity {
	if r == nil || r.MinSeverity == nil {
		return event.SeverityInfo
	}
	raw, ok := r.MinSeverity[channel]
	if !ok {
		return event.SeverityInfo
	}
	return event.ParseSeverity(raw)
}
