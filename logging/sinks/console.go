package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"

	"coin-chase/logging"
)

// Console writes one human readable line per event.
type Console struct {
	logger *log.Logger
}

func NewConsole(w io.Writer) *Console {
	return &Console{logger: log.New(w, "", log.LstdFlags)}
}

func (s *Console) Write(event logging.Event) error {
	if s.logger == nil {
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] seq=%d actor=%s severity=%s", event.Type, event.Seq, formatEntity(event.Actor), event.Severity)
	if event.Reducer != "" {
		fmt.Fprintf(&b, " reducer=%s", event.Reducer)
	}
	if len(event.Targets) > 0 {
		parts := make([]string, 0, len(event.Targets))
		for _, target := range event.Targets {
			parts = append(parts, formatEntity(target))
		}
		fmt.Fprintf(&b, " targets=%s", strings.Join(parts, ","))
	}
	if event.Payload != nil {
		if data, err := json.Marshal(event.Payload); err == nil {
			fmt.Fprintf(&b, " payload=%s", data)
		} else {
			fmt.Fprintf(&b, " payload=%v", event.Payload)
		}
	}
	s.logger.Print(b.String())
	return nil
}

func (s *Console) Close(context.Context) error {
	return nil
}

func formatEntity(ref logging.EntityRef) string {
	switch {
	case ref.ID == "":
		return string(ref.Kind)
	case ref.Kind == "":
		return ref.ID
	default:
		return string(ref.Kind) + ":" + ref.ID
	}
}
