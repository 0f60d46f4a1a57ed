package net

import (
	"encoding/json"
	nethttp "net/http"
	"time"

	"github.com/gorilla/websocket"

	"coin-chase/internal/protocol"
	"coin-chase/internal/telemetry"
	"coin-chase/logging"
)

type HTTPHandlerConfig struct {
	Tokens    *Tokens
	Logger    telemetry.Logger
	Publisher logging.Publisher
	// Counters, when set, is reported on /diagnostics.
	Counters *telemetry.Counters
}

type server struct {
	hub      *Hub
	tokens   *Tokens
	logger   telemetry.Logger
	pub      logging.Publisher
	counters *telemetry.Counters
	upgrader websocket.Upgrader
}

func NewHTTPHandler(hub *Hub, cfg HTTPHandlerConfig) nethttp.Handler {
	s := &server{
		hub:      hub,
		tokens:   cfg.Tokens,
		logger:   cfg.Logger,
		pub:      cfg.Publisher,
		counters: cfg.Counters,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *nethttp.Request) bool {
				return true
			},
		},
	}
	if s.tokens == nil {
		s.tokens = NewTokens("")
	}
	if s.logger == nil {
		s.logger = telemetry.Discard
	}
	if s.pub == nil {
		s.pub = logging.NopPublisher()
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		payload := struct {
			Status     string            `json:"status"`
			ServerTime int64             `json:"serverTime"`
			CommitSeq  uint64            `json:"commitSeq"`
			Players    int               `json:"players"`
			Sessions   []SessionInfo     `json:"sessions"`
			Heartbeat  int64             `json:"heartbeatMillis"`
			Telemetry  map[string]uint64 `json:"telemetry,omitempty"`
		}{
			Status:     "ok",
			ServerTime: time.Now().UnixMilli(),
			CommitSeq:  hub.store.Seq(),
			Players:    len(hub.store.Players()),
			Sessions:   hub.DiagnosticsSnapshot(),
			Heartbeat:  hub.HeartbeatInterval().Milliseconds(),
			Telemetry:  s.counters.Snapshot(),
		}
		writeJSON(w, payload)
	})

	mux.HandleFunc("/protocol/schema", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		writeJSON(w, protocol.Schema())
	})

	mux.HandleFunc("/ws", s.handleWebsocket)

	return mux
}

func writeJSON(w nethttp.ResponseWriter, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func httpError(w nethttp.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	data, _ := json.Marshal(struct {
		Error string `json:"error"`
	}{Error: message})
	w.Write(data)
}
