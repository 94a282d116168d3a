package config

import (
	"fmt"
	"strings"

	"github.com/akhil-rao/ap2-aani-demo/internal/mandate"
)

// Validate checks the config for:
//   - Required fields (version, signing key, agent id)
//   - Non-negative limits
//   - Rails with empty or duplicate names
//   - Seed mandates that would be rejected at creation
func Validate(cfg *Config) error {
	if cfg.Version == "" {
		return fmt.Errorf("config: version is required")
	}
	var errs []string

	if cfg.Signing.Key == "" {
		errs = append(errs, "signing.key is required")
	}
	if cfg.Agent.AgentID == "" {
		errs = append(errs, "agent.agent_id is required")
	}
	if cfg.Audit.MaxEvents < 0 {
		errs = append(errs, fmt.Sprintf("audit.max_events must be >= 0, got %d", cfg.Audit.MaxEvents))
	}
	if cfg.Sessions.MaxSessions < 0 {
		errs = append(errs, fmt.Sprintf("sessions.max_sessions must be >= 0, got %d", cfg.Sessions.MaxSessions))
	}

	names := make(map[string]int) // rail name → first index
	for i, r := range cfg.Rails {
		if r.Name == "" {
			errs = append(errs, fmt.Sprintf("rails[%d]: name is required", i))
			continue
		}
		if prev, ok := names[r.Name]; ok {
			errs = append(errs, fmt.Sprintf("duplicate rail %q (rails[%d] and rails[%d])", r.Name, prev, i))
		} else {
			names[r.Name] = i
		}
		if r.Processor == "" {
			errs = append(errs, fmt.Sprintf("rail %s: processor is required", r.Name))
		}
	}

	for i, req := range cfg.Seed {
		if err := req.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("seed[%d]: %v", i, err))
		}
	}
	if cfg.Audit.MaxEvents > 0 && seedEvents(cfg) > cfg.Audit.MaxEvents {
		errs = append(errs, fmt.Sprintf("seed needs %d audit events but audit.max_events is %d",
			seedEvents(cfg), cfg.Audit.MaxEvents))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// seedEvents counts the audit events seeding a new session records.
func seedEvents(cfg *Config) int {
	n := 0
	for _, req := range cfg.Seed {
		n++
		if req.MandateType == mandate.TypeIntent {
			n++
		}
	}
	return n
}
