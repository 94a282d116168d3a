package config

import (
	"github.com/akhil-rao/ap2-aani-demo/internal/audit"
	"github.com/akhil-rao/ap2-aani-demo/internal/gateway"
	"github.com/akhil-rao/ap2-aani-demo/internal/mandate"
)

// Config is the top-level YAML structure.
type Config struct {
	Version  string               `yaml:"version"`
	Server   ServerConf           `yaml:"server"`
	Signing  SigningConf          `yaml:"signing"`
	Audit    AuditConf            `yaml:"audit"`
	Sessions SessionsConf         `yaml:"sessions"`
	Agent    audit.Agent          `yaml:"agent"`
	Rails    []gateway.Rail       `yaml:"rails"`
	Seed     []mandate.NewRequest `yaml:"seed"`
}

type ServerConf struct {
	Addr string `yaml:"addr"`
}

// SigningConf holds the shared HMAC key. Demo only; not a secret store.
type SigningConf struct {
	Key string `yaml:"key"`
}

// AuditConf bounds each session's audit log. MaxEvents 0 means unbounded.
type AuditConf struct {
	MaxEvents int `yaml:"max_events"`
}

// SessionsConf bounds how many sessions the server holds at once.
// MaxSessions 0 means unbounded.
type SessionsConf struct {
	MaxSessions int `yaml:"max_sessions"`
}
