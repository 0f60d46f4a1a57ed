package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"coin-chase/internal/protocol"
	"coin-chase/internal/telemetry"
	"coin-chase/logging"
)

const (
	EnvAddr             = "COIN_CHASE_ADDR"
	EnvTokenSecret      = "COIN_CHASE_TOKEN_SECRET"
	EnvHeartbeat        = "COIN_CHASE_HEARTBEAT"
	EnvScheduleInterval = "COIN_CHASE_SCHEDULE_INTERVAL"
	EnvLogSinks         = "COIN_CHASE_LOG_SINKS"
	EnvLogJSONPath      = "COIN_CHASE_LOG_JSON_PATH"
	EnvLogLevel         = "COIN_CHASE_LOG_LEVEL"
	EnvServerURL        = "COIN_CHASE_SERVER_URL"
	EnvCredentialsDir   = "COIN_CHASE_CREDENTIALS_DIR"
	EnvCodec            = "COIN_CHASE_CODEC"
	EnvSceneID          = "COIN_CHASE_SCENE_ID"
)

// Lookup reads one environment variable. os.LookupEnv satisfies it.
type Lookup func(key string) (string, bool)

// LoadEnv loads the given dotenv files into the process environment,
// skipping files that do not exist. Variables already set win.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

type ServerConfig struct {
	Addr              string
	TokenSecret       string
	HeartbeatInterval time.Duration
	ScheduleInterval  time.Duration
	Logging           logging.Config
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:              ":8080",
		HeartbeatInterval: 2 * time.Second,
		ScheduleInterval:  time.Second,
		Logging:           logging.DefaultConfig(),
	}
}

// ServerFromEnv applies environment overrides to the defaults. Invalid
// values are reported to logger and ignored.
func ServerFromEnv(lookup Lookup, logger telemetry.Logger) ServerConfig {
	cfg := DefaultServerConfig()
	r := reader{lookup: lookup, logger: logger}
	r.string(EnvAddr, &cfg.Addr)
	r.string(EnvTokenSecret, &cfg.TokenSecret)
	r.duration(EnvHeartbeat, &cfg.HeartbeatInterval)
	r.duration(EnvScheduleInterval, &cfg.ScheduleInterval)
	r.logging(&cfg.Logging)
	return cfg
}

type ClientConfig struct {
	ServerURL      string
	CredentialsDir string
	Codec          string
	SceneID        uint32
	Logging        logging.Config
}

func DefaultClientConfig() ClientConfig {
	dir := ".coin-chase"
	if home, err := os.UserConfigDir(); err == nil {
		dir = filepath.Join(home, "coin-chase")
	}
	logCfg := logging.DefaultConfig()
	logCfg.EnabledSinks = nil
	return ClientConfig{
		ServerURL:      "ws://localhost:8080/ws",
		CredentialsDir: dir,
		Codec:          protocol.CodecJSON,
		SceneID:        1,
		Logging:        logCfg,
	}
}

func ClientFromEnv(lookup Lookup, logger telemetry.Logger) ClientConfig {
	cfg := DefaultClientConfig()
	r := reader{lookup: lookup, logger: logger}
	r.string(EnvServerURL, &cfg.ServerURL)
	r.string(EnvCredentialsDir, &cfg.CredentialsDir)
	if raw, ok := r.get(EnvCodec); ok {
		if _, err := protocol.CodecByName(raw); err == nil {
			cfg.Codec = strings.ToLower(strings.TrimSpace(raw))
		} else {
			r.invalid(EnvCodec, raw, err)
		}
	}
	if raw, ok := r.get(EnvSceneID); ok {
		if value, err := strconv.ParseUint(raw, 10, 32); err == nil && value > 0 {
			cfg.SceneID = uint32(value)
		} else {
			r.invalid(EnvSceneID, raw, err)
		}
	}
	r.logging(&cfg.Logging)
	return cfg
}

type reader struct {
	lookup Lookup
	logger telemetry.Logger
}

func (r reader) get(key string) (string, bool) {
	if r.lookup == nil {
		return "", false
	}
	raw, ok := r.lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return "", false
	}
	return strings.TrimSpace(raw), true
}

func (r reader) invalid(key, raw string, err error) {
	if r.logger == nil {
		return
	}
	if err == nil {
		err = errors.New("out of range")
	}
	r.logger.Printf("invalid %s=%q: %v", key, raw, err)
}

func (r reader) string(key string, dst *string) {
	if raw, ok := r.get(key); ok {
		*dst = raw
	}
}

func (r reader) duration(key string, dst *time.Duration) {
	raw, ok := r.get(key)
	if !ok {
		return
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		r.invalid(key, raw, err)
		return
	}
	*dst = value
}

func (r reader) logging(cfg *logging.Config) {
	if raw, ok := r.get(EnvLogSinks); ok {
		var sinks []string
		for _, part := range strings.Split(raw, ",") {
			switch name := strings.TrimSpace(part); name {
			case "":
			case "console", "json":
				sinks = append(sinks, name)
			default:
				r.invalid(EnvLogSinks, raw, errors.New("unknown sink "+name))
			}
		}
		cfg.EnabledSinks = sinks
	}
	if raw, ok := r.get(EnvLogJSONPath); ok {
		cfg.JSON.FilePath = raw
		if !cfg.HasSink("json") {
			cfg.EnabledSinks = append(cfg.EnabledSinks, "json")
		}
	}
	if raw, ok := r.get(EnvLogLevel); ok {
		if sev, valid := logging.ParseSeverity(raw); valid {
			cfg.MinimumSeverity = sev
		} else {
			r.invalid(EnvLogLevel, raw, errors.New("unknown level"))
		}
	}
}
