package sinks

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"coin-chase/logging"
)

// FromConfig builds the sinks enabled in cfg. The console sink writes to
// console; the JSON sink appends to cfg.JSON.FilePath, or to console when
// no path is set.
func FromConfig(cfg logging.Config, console io.Writer) ([]logging.NamedSink, error) {
	var named []logging.NamedSink
	if cfg.HasSink("console") {
		named = append(named, logging.NamedSink{Name: "console", Sink: NewConsole(console)})
	}
	if cfg.HasSink("json") {
		if cfg.JSON.FilePath != "" {
			if err := os.MkdirAll(filepath.Dir(cfg.JSON.FilePath), 0o755); err != nil {
				return nil, fmt.Errorf("create log directory: %w", err)
			}
			f, err := os.OpenFile(cfg.JSON.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				return nil, fmt.Errorf("open json log: %w", err)
			}
			named = append(named, logging.NamedSink{Name: "json", Sink: &fileJSON{JSON: NewJSON(f, cfg.JSON.FlushInterval), file: f}})
			return named, nil
		}
		named = append(named, logging.NamedSink{Name: "json", Sink: NewJSON(console, cfg.JSON.FlushInterval)})
	}
	return named, nil
}
