package net

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"coin-chase/internal/protocol"
	"coin-chase/internal/store"
	"coin-chase/internal/telemetry"
	"coin-chase/logging"
	"coin-chase/logging/network"
)

const (
	writeWait                = 10 * time.Second
	defaultHeartbeatInterval = 2 * time.Second
	defaultScheduleInterval  = time.Second
)

type HubConfig struct {
	Store     *store.Store
	Logger    telemetry.Logger
	Publisher logging.Publisher
	Metrics   telemetry.Metrics
	// HeartbeatInterval is the expected client heartbeat period. Sessions
	// silent for three intervals are closed.
	HeartbeatInterval time.Duration
	// ScheduleInterval drives the update_timestamp reducer.
	ScheduleInterval time.Duration
}

// Hub owns the websocket sessions and fans store commits out to them.
type Hub struct {
	store   *store.Store
	logger  telemetry.Logger
	pub     logging.Publisher
	metrics telemetry.Metrics

	heartbeatInterval time.Duration
	disconnectAfter   time.Duration
	scheduleInterval  time.Duration

	mu       sync.Mutex
	sessions map[store.Identity]*subscriber

	queueMu sync.Mutex
	queue   []store.Commit
	wake    chan struct{}

	unsubscribe func()
}

type subscriber struct {
	identity    store.Identity
	conn        *websocket.Conn
	codec       protocol.Codec
	connectedAt time.Time

	// mu serializes writes and guards the subscription fields below.
	mu     sync.Mutex
	tables map[string]bool
	since  uint64

	// guarded by Hub.mu
	lastHeartbeat time.Time
	lastRTT       time.Duration
}

func NewHub(cfg HubConfig) *Hub {
	h := &Hub{
		store:             cfg.Store,
		logger:            cfg.Logger,
		pub:               cfg.Publisher,
		metrics:           cfg.Metrics,
		heartbeatInterval: cfg.HeartbeatInterval,
		scheduleInterval:  cfg.ScheduleInterval,
		sessions:          make(map[store.Identity]*subscriber),
		wake:              make(chan struct{}, 1),
	}
	if h.store == nil {
		h.store = store.New(store.Config{Publisher: h.pub, Metrics: h.metrics})
	}
	if h.logger == nil {
		h.logger = telemetry.Discard
	}
	if h.pub == nil {
		h.pub = logging.NopPublisher()
	}
	if h.metrics == nil {
		h.metrics = telemetry.NopMetrics()
	}
	if h.heartbeatInterval <= 0 {
		h.heartbeatInterval = defaultHeartbeatInterval
	}
	if h.scheduleInterval <= 0 {
		h.scheduleInterval = defaultScheduleInterval
	}
	h.disconnectAfter = 3 * h.heartbeatInterval
	h.unsubscribe = h.store.Subscribe(h.enqueue)
	return h
}

func (h *Hub) Store() *store.Store {
	return h.store
}

func (h *Hub) HeartbeatInterval() time.Duration {
	return h.heartbeatInterval
}

// enqueue runs under the store lock, so it only appends.
func (h *Hub) enqueue(c store.Commit) {
	h.queueMu.Lock()
	h.queue = append(h.queue, c)
	h.queueMu.Unlock()
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// Run broadcasts commits, closes silent sessions and fires the timestamp
// schedule until stop is closed.
func (h *Hub) Run(stop <-chan struct{}) {
	sweep := time.NewTicker(h.heartbeatInterval)
	defer sweep.Stop()
	schedule := time.NewTicker(h.scheduleInterval)
	defer schedule.Stop()

	for {
		select {
		case <-stop:
			h.unsubscribe()
			h.flush()
			return
		case <-h.wake:
			h.flush()
		case now := <-sweep.C:
			h.closeStale(now)
		case <-schedule.C:
			h.runSchedule()
		}
	}
}

func (h *Hub) flush() {
	h.queueMu.Lock()
	pending := h.queue
	h.queue = nil
	h.queueMu.Unlock()
	for _, c := range pending {
		h.broadcast(c)
	}
}

func (h *Hub) broadcast(c store.Commit) {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.sessions))
	for _, sub := range h.sessions {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.mu.Lock()
		own := sub.identity == c.Caller && c.RequestID != 0
		var update *protocol.TransactionUpdate
		if c.Seq > sub.since {
			update = protocol.FromCommit(c, func(table string) bool { return sub.tables[table] })
		} else if own {
			update = protocol.FromCommit(store.Commit{Seq: c.Seq, Reducer: c.Reducer, Caller: c.Caller, Timestamp: c.Timestamp}, nil)
		}
		if update == nil || (len(update.Changes) == 0 && !own) {
			sub.mu.Unlock()
			continue
		}
		msg := protocol.ServerMessage{Ver: protocol.Version, Type: protocol.TypeTransactionUpdate, Update: update}
		if own {
			msg.Seq = c.RequestID
		}
		err := h.writeLocked(sub, msg)
		sub.mu.Unlock()
		if err != nil {
			h.metrics.Add(telemetry.MetricBroadcastErrors, 1)
			h.logger.Printf("broadcast to %s failed: %v", sub.identity, err)
			sub.conn.Close()
		}
	}
}

// writeLocked encodes and writes msg. The caller holds sub.mu.
func (h *Hub) writeLocked(sub *subscriber, msg protocol.ServerMessage) error {
	data, err := sub.codec.Marshal(msg)
	if err != nil {
		return err
	}
	sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := sub.conn.WriteMessage(sub.codec.FrameType(), data); err != nil {
		return err
	}
	h.metrics.Add(telemetry.MetricBroadcastBytes, uint64(len(data)))
	return nil
}

func (h *Hub) send(sub *subscriber, msg protocol.ServerMessage) error {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return h.writeLocked(sub, msg)
}

// Attach registers conn as the live session of identity, closing any
// previous connection for it, and restores a logged-out player row.
func (h *Hub) Attach(ctx context.Context, identity store.Identity, conn *websocket.Conn, codec protocol.Codec, returning bool) *subscriber {
	now := time.Now()
	sub := &subscriber{
		identity:      identity,
		conn:          conn,
		codec:         codec,
		connectedAt:   now,
		lastHeartbeat: now,
		tables:        make(map[string]bool),
	}

	h.mu.Lock()
	previous := h.sessions[identity]
	h.sessions[identity] = sub
	active := len(h.sessions)
	h.mu.Unlock()

	if previous != nil {
		previous.mu.Lock()
		previous.conn.SetWriteDeadline(time.Now().Add(writeWait))
		previous.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "replaced by new connection"))
		previous.mu.Unlock()
		previous.conn.Close()
	}

	if _, err := h.store.Connect(ctx, identity); err != nil {
		h.logger.Printf("connect reducer failed for %s: %v", identity, err)
	}
	h.metrics.Add(telemetry.MetricSessionsOpened, 1)
	h.metrics.Store(telemetry.MetricSessionsActive, uint64(active))
	network.SessionOpened(ctx, h.pub, logging.PlayerRef(string(identity)), network.SessionOpenedPayload{Codec: codec.Name(), Returned: returning})
	return sub
}

// Detach drops sub. The player row is parked only when sub is still the
// identity's live session.
func (h *Hub) Detach(ctx context.Context, sub *subscriber, reason string) {
	h.mu.Lock()
	current, ok := h.sessions[sub.identity]
	live := ok && current == sub
	if live {
		delete(h.sessions, sub.identity)
	}
	active := len(h.sessions)
	h.mu.Unlock()

	sub.conn.Close()
	if !live {
		return
	}
	if _, err := h.store.Disconnect(ctx, sub.identity, reason); err != nil {
		h.logger.Printf("disconnect reducer failed for %s: %v", sub.identity, err)
	}
	h.metrics.Store(telemetry.MetricSessionsActive, uint64(active))
	network.SessionClosed(ctx, h.pub, logging.PlayerRef(string(sub.identity)), network.SessionClosedPayload{Reason: reason})
}

// SubscribeTables adds tables to sub's subscription and sends the
// snapshot. Commits already contained in the snapshot are not re-sent.
func (h *Hub) SubscribeTables(sub *subscriber, tables []string, requestSeq uint64) error {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	for _, t := range tables {
		sub.tables[t] = true
	}
	rows, seq := h.store.Snapshot(tables...)
	sub.since = seq
	return h.writeLocked(sub, protocol.ServerMessage{
		Ver:  protocol.Version,
		Type: protocol.TypeSubscriptionApplied,
		Seq:  requestSeq,
		Rows: protocol.FromSnapshot(rows, seq),
	})
}

// Heartbeat records a client heartbeat and returns the measured RTT.
func (h *Hub) Heartbeat(sub *subscriber, receivedAt time.Time, clientSent int64) time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub.lastHeartbeat = receivedAt
	if clientSent > 0 {
		clientTime := time.UnixMilli(clientSent)
		if clientTime.Before(receivedAt.Add(5 * time.Second)) {
			rtt := receivedAt.Sub(clientTime)
			if rtt < 0 {
				rtt = 0
			}
			sub.lastRTT = rtt
		}
	}
	return sub.lastRTT
}

func (h *Hub) closeStale(now time.Time) {
	h.mu.Lock()
	var stale []*subscriber
	for id, sub := range h.sessions {
		if now.Sub(sub.lastHeartbeat) > h.disconnectAfter {
			stale = append(stale, sub)
			h.logger.Printf("disconnecting %s due to heartbeat timeout", id)
		}
	}
	h.mu.Unlock()
	for _, sub := range stale {
		h.Detach(context.Background(), sub, "heartbeat timeout")
	}
}

func (h *Hub) runSchedule() {
	for _, scene := range h.store.Scenes() {
		if _, err := h.store.UpdateTimestamp(context.Background(), store.ServerIdentity, scene.ID); err != nil {
			h.logger.Printf("scheduled update_timestamp for scene %d failed: %v", scene.ID, err)
		}
	}
}

// SessionInfo is the diagnostics view of one session.
type SessionInfo struct {
	Identity      store.Identity `json:"identity"`
	Codec         string         `json:"codec"`
	Tables        []string       `json:"tables"`
	ConnectedAt   int64          `json:"connectedAt"`
	LastHeartbeat int64          `json:"lastHeartbeat"`
	RTTMillis     int64          `json:"rtt"`
}

func (h *Hub) DiagnosticsSnapshot() []SessionInfo {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.sessions))
	infos := make([]SessionInfo, 0, len(h.sessions))
	for _, sub := range h.sessions {
		subs = append(subs, sub)
		infos = append(infos, SessionInfo{
			Identity:      sub.identity,
			Codec:         sub.codec.Name(),
			ConnectedAt:   sub.connectedAt.UnixMilli(),
			LastHeartbeat: sub.lastHeartbeat.UnixMilli(),
			RTTMillis:     sub.lastRTT.Milliseconds(),
		})
	}
	h.mu.Unlock()

	for i, sub := range subs {
		sub.mu.Lock()
		for t := range sub.tables {
			infos[i].Tables = append(infos[i].Tables, t)
		}
		sub.mu.Unlock()
		sort.Strings(infos[i].Tables)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Identity < infos[j].Identity })
	return infos
}
