package logging

import (
	"maps"
	"slices"
	"strings"
	"time"
)

// Config selects the sinks a Router fans out to and the events it keeps.
type Config struct {
	EnabledSinks     []string
	BufferSize       int
	MinimumSeverity  Severity
	Fields           map[string]any
	JSON             JSONConfig
	DropWarnInterval time.Duration
}

type JSONConfig struct {
	FilePath      string
	FlushInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		EnabledSinks:     []string{"console"},
		BufferSize:       512,
		MinimumSeverity:  SeverityInfo,
		DropWarnInterval: 5 * time.Second,
		JSON: JSONConfig{
			FlushInterval: 2 * time.Second,
		},
	}
}

func (c Config) HasSink(name string) bool {
	return slices.Contains(c.EnabledSinks, name)
}

// CloneFields copies the static fields stamped on every event. It returns
// nil when there are none.
func (c Config) CloneFields() map[string]any {
	if len(c.Fields) == 0 {
		return nil
	}
	return maps.Clone(c.Fields)
}

// ParseSeverity maps a level name onto a Severity.
func ParseSeverity(value string) (Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return SeverityDebug, true
	case "info":
		return SeverityInfo, true
	case "warn", "warning":
		return SeverityWarn, true
	case "error":
		return SeverityError, true
	default:
		return SeverityInfo, false
	}
}

func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarn:
		return "warn"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}
