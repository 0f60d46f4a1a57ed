// Package session is the client side of the world store connection. It
// dials the server with cached or fresh credentials, mirrors the
// subscribed tables in a local cache and exposes reducer calls. Inbound
// messages are queued by a reader goroutine and applied only by Tick, so
// every callback runs on the caller's goroutine.
package session

import (
	"context"
	"errors"
	"sort"
	"time"

	"coin-chase/internal/client/credentials"
	"coin-chase/internal/protocol"
	"coin-chase/internal/store"
	"coin-chase/internal/telemetry"
	"coin-chase/logging"
	"coin-chase/logging/network"
)

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateLoggedIn
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateLoggedIn:
		return "logged_in"
	default:
		return "unknown"
	}
}

const inboxSize = 256

// ReducerResult reports the outcome of a reducer call made by this
// session. Err is nil for committed calls.
type ReducerResult struct {
	Reducer string
	Seq     uint64
	Err     error
}

// Callbacks are invoked from Tick. Any of them may be nil.
type Callbacks struct {
	OnConnect    func(identity store.Identity)
	OnLogin      func(player store.Player)
	OnDisconnect func(err error)
	OnReducer    func(result ReducerResult)
	OnRowChange  func(change protocol.RowChange)
}

type Config struct {
	URL         string
	Codec       protocol.Codec
	Dialer      Dialer
	Credentials credentials.Store
	Logger      telemetry.Logger
	Publisher   logging.Publisher
	Callbacks   Callbacks
	// HeartbeatInterval is how often Tick sends a heartbeat. Zero disables
	// heartbeats.
	HeartbeatInterval time.Duration
	Clock             func() time.Time
}

type inbound struct {
	msg protocol.ServerMessage
	err error
}

// link is one live connection and its reader.
type link struct {
	conn  Conn
	inbox chan inbound
	done  chan struct{}
}

type Session struct {
	cfg Config

	state    State
	username string
	link     *link

	identity store.Identity
	token    string

	seq     uint64
	pending map[uint64]string

	loginRequested bool
	loginName      string
	loginScene     uint32
	loginSeq       uint64
	loginErr       error

	cache         *cache
	lastHeartbeat time.Time
	rtt           time.Duration
}

func New(cfg Config) *Session {
	if cfg.Dialer == nil {
		cfg.Dialer = WebsocketDialer{}
	}
	if cfg.Codec == nil {
		cfg.Codec = protocol.JSONCodec{}
	}
	if cfg.Logger == nil {
		cfg.Logger = telemetry.Discard
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Session{
		cfg:     cfg,
		pending: make(map[uint64]string),
		cache:   newCache(),
	}
}

func (s *Session) State() State { return s.state }

func (s *Session) Identity() store.Identity { return s.identity }

func (s *Session) Username() string { return s.username }

// RTT is the round trip measured by the last heartbeat.
func (s *Session) RTT() time.Duration { return s.rtt }

// SetCallbacks replaces the callbacks. Call it before Connect.
func (s *Session) SetCallbacks(cb Callbacks) { s.cfg.Callbacks = cb }

// LoginError is the reason the last login was rejected, if any.
func (s *Session) LoginError() error { return s.loginErr }

func (s *Session) actor() logging.EntityRef {
	return logging.PlayerRef(string(s.identity))
}

func (s *Session) ctx() context.Context {
	return context.Background()
}

func (s *Session) now() time.Time {
	return s.cfg.Clock()
}

func (s *Session) setState(next State) {
	if s.state == next {
		return
	}
	prev := s.state
	s.state = next
	network.StateChanged(s.ctx(), s.cfg.Publisher, s.actor(), network.StateChangedPayload{From: prev.String(), To: next.String()})
}

// Connect dials the server for username. Cached credentials are used when
// they load; a load failure falls back to fresh credentials, and a dial
// rejected with a cached token is retried once without it.
func (s *Session) Connect(ctx context.Context, username string) error {
	if s.state != StateDisconnected {
		return &ConnectionError{Op: "connect", Err: ErrAlreadyConnected}
	}
	s.username = username
	s.setState(StateConnecting)

	token := ""
	if s.cfg.Credentials != nil {
		loaded, err := s.cfg.Credentials.Load(username)
		switch {
		case err == nil:
			token = loaded
		case errors.Is(err, credentials.ErrNotFound):
		default:
			s.cfg.Logger.Printf("failed to load credentials for %s, continuing with fresh credentials: %v", username, err)
		}
	}

	conn, err := s.dial(ctx, token)
	if err != nil && token != "" {
		s.cfg.Logger.Printf("dial with cached credentials failed, retrying with fresh credentials: %v", err)
		conn, err = s.dial(ctx, "")
	}
	if err != nil {
		s.setState(StateDisconnected)
		return &ConnectionError{Op: "dial", Err: err}
	}

	l := &link{conn: conn, inbox: make(chan inbound, inboxSize), done: make(chan struct{})}
	s.link = l
	s.lastHeartbeat = s.now()
	go s.readLoop(l)
	return nil
}

func (s *Session) dial(ctx context.Context, token string) (Conn, error) {
	target, err := endpoint(s.cfg.URL, token, s.cfg.Codec)
	if err != nil {
		return nil, err
	}
	return s.cfg.Dialer.Dial(ctx, target)
}

func (s *Session) readLoop(l *link) {
	for {
		_, data, err := l.conn.ReadMessage()
		var in inbound
		if err != nil {
			in.err = err
		} else if decodeErr := s.cfg.Codec.Unmarshal(data, &in.msg); decodeErr != nil {
			s.cfg.Logger.Printf("discarding malformed server message: %v", decodeErr)
			continue
		}
		select {
		case l.inbox <- in:
		case <-l.done:
			return
		}
		if err != nil {
			return
		}
	}
}

// Tick applies every queued server message and sends a heartbeat when one
// is due. It must be called every frame. A lost connection is reported
// once as a *ConnectionError and leaves the session Disconnected.
func (s *Session) Tick() error {
	l := s.link
	if l == nil {
		return nil
	}
	for {
		select {
		case in := <-l.inbox:
			if in.err != nil {
				s.teardown(in.err)
				return &ConnectionError{Op: "read", Err: in.err}
			}
			s.handle(in.msg)
			if s.link != l {
				return nil
			}
		default:
			return s.heartbeat()
		}
	}
}

func (s *Session) heartbeat() error {
	if s.cfg.HeartbeatInterval <= 0 || s.state < StateConnected {
		return nil
	}
	now := s.now()
	if now.Sub(s.lastHeartbeat) < s.cfg.HeartbeatInterval {
		return nil
	}
	s.lastHeartbeat = now
	return s.write(protocol.ClientMessage{Type: protocol.TypeHeartbeat, SentAt: now.UnixMilli()})
}

func (s *Session) handle(msg protocol.ServerMessage) {
	switch msg.Type {
	case protocol.TypeIdentityToken:
		s.identity = msg.Identity
		s.token = msg.Token
		if s.cfg.Credentials != nil && msg.Token != "" {
			if err := s.cfg.Credentials.Save(s.username, msg.Token); err != nil {
				s.cfg.Logger.Printf("failed to save credentials for %s: %v", s.username, err)
			}
		}
		s.setState(StateConnected)
		if cb := s.cfg.Callbacks.OnConnect; cb != nil {
			cb(s.identity)
		}
		if s.loginRequested && s.loginSeq == 0 {
			if err := s.sendLogin(); err != nil {
				s.cfg.Logger.Printf("login after connect failed: %v", err)
			}
		}
	case protocol.TypeSubscriptionApplied:
		s.cache.applySnapshot(msg.Rows)
		s.checkLoggedIn()
	case protocol.TypeTransactionUpdate:
		s.handleUpdate(msg)
	case protocol.TypeHeartbeat:
		if msg.ClientTime > 0 {
			s.rtt = s.now().Sub(time.UnixMilli(msg.ClientTime))
		}
	case protocol.TypeError:
		s.cfg.Logger.Printf("server error for request %d: %s", msg.Seq, msg.Error)
		if reducer, ok := s.pending[msg.Seq]; ok {
			delete(s.pending, msg.Seq)
			s.reducerResult(ReducerResult{Reducer: reducer, Seq: msg.Seq, Err: errors.New(msg.Error)})
		}
	default:
		s.cfg.Logger.Printf("ignoring server message of type %q", msg.Type)
	}
}

func (s *Session) handleUpdate(msg protocol.ServerMessage) {
	update := msg.Update
	if update == nil {
		return
	}
	var result *ReducerResult
	if reducer, ok := s.pending[msg.Seq]; ok && msg.Seq != 0 {
		delete(s.pending, msg.Seq)
		result = &ReducerResult{Reducer: reducer, Seq: msg.Seq}
	}

	if update.Status == protocol.StatusFailed {
		err := &store.ReducerError{Reducer: update.Reducer, Err: store.ErrorFromCode(update.Error)}
		if msg.Seq != 0 && msg.Seq == s.loginSeq && !errors.Is(err, store.ErrAlreadyRegistered) {
			s.loginErr = err
		}
		if result != nil {
			result.Err = err
			s.reducerResult(*result)
		}
		s.checkLoggedIn()
		return
	}

	s.cache.applyUpdate(update)
	if cb := s.cfg.Callbacks.OnRowChange; cb != nil {
		for _, ch := range update.Changes {
			cb(ch)
		}
	}
	if result != nil {
		s.reducerResult(*result)
	}
	s.checkLoggedIn()
}

func (s *Session) reducerResult(r ReducerResult) {
	if cb := s.cfg.Callbacks.OnReducer; cb != nil {
		cb(r)
	}
}

// checkLoggedIn promotes a Connected session once its own player row is
// visible, which covers both a fresh registration and a reconnect whose
// row was restored by the server.
func (s *Session) checkLoggedIn() {
	if s.state != StateConnected || !s.loginRequested {
		return
	}
	player, ok := s.cache.players[s.identity]
	if !ok {
		return
	}
	s.loginErr = nil
	s.setState(StateLoggedIn)
	if cb := s.cfg.Callbacks.OnLogin; cb != nil {
		cb(player)
	}
}

// Login subscribes to every public table and registers the player. It may
// be called while still Connecting; the request is sent once the identity
// arrives. Completion is observed through State or OnLogin.
func (s *Session) Login(name string, sceneID uint32) error {
	switch s.state {
	case StateDisconnected:
		return &ConnectionError{Op: "login", Err: ErrNotConnected}
	case StateLoggedIn:
		return nil
	}
	s.loginRequested = true
	s.loginName = name
	s.loginScene = sceneID
	s.loginErr = nil
	s.loginSeq = 0
	if s.state == StateConnecting {
		return nil
	}
	return s.sendLogin()
}

func (s *Session) sendLogin() error {
	if err := s.write(protocol.ClientMessage{Type: protocol.TypeSubscribe, Tables: store.PublicTables}); err != nil {
		return err
	}
	seq, err := s.call(store.ReducerRegister, store.Args{Name: s.loginName, SceneID: s.loginScene})
	if err != nil {
		return err
	}
	s.loginSeq = seq
	return nil
}

func (s *Session) call(reducer string, args store.Args) (uint64, error) {
	if s.link == nil || s.state < StateConnected {
		return 0, &ConnectionError{Op: "call", Err: ErrNotConnected}
	}
	if err := s.write(protocol.ClientMessage{Type: protocol.TypeCall, Reducer: reducer, Args: &args}); err != nil {
		return 0, err
	}
	seq := s.seq
	s.pending[seq] = reducer
	return seq, nil
}

// write stamps msg with the next sequence number and sends it.
func (s *Session) write(msg protocol.ClientMessage) error {
	if s.link == nil {
		return &ConnectionError{Op: "write", Err: ErrNotConnected}
	}
	s.seq++
	msg.Ver = protocol.Version
	msg.Seq = s.seq
	data, err := s.cfg.Codec.Marshal(msg)
	if err != nil {
		return &ConnectionError{Op: "write", Err: err}
	}
	if err := s.link.conn.WriteMessage(s.cfg.Codec.FrameType(), data); err != nil {
		s.teardown(err)
		return &ConnectionError{Op: "write", Err: err}
	}
	return nil
}

// Close ends the session. Calling it while disconnected is a no-op.
func (s *Session) Close() error {
	if s.link == nil {
		return nil
	}
	s.teardown(nil)
	return nil
}

func (s *Session) teardown(cause error) {
	l := s.link
	if l == nil {
		return
	}
	s.link = nil
	close(l.done)
	l.conn.Close()

	s.cache.reset()
	clear(s.pending)
	s.loginRequested = false
	s.loginSeq = 0
	s.setState(StateDisconnected)

	reason := "closed"
	if cause != nil {
		reason = cause.Error()
	}
	network.SessionClosed(s.ctx(), s.cfg.Publisher, s.actor(), network.SessionClosedPayload{Reason: reason})
	if cb := s.cfg.Callbacks.OnDisconnect; cb != nil {
		cb(cause)
	}
}

// Player reducers.

// SendState pushes the local player's state. It requires LoggedIn.
func (s *Session) SendState(state store.PlayerState) error {
	if s.state != StateLoggedIn {
		return &ConnectionError{Op: "call", Err: ErrNotLoggedIn}
	}
	_, err := s.call(store.ReducerUpdateState, store.Args{State: &state})
	return err
}

func (s *Session) CollectCoin(id uint32) error {
	if s.state != StateLoggedIn {
		return &ConnectionError{Op: "call", Err: ErrNotLoggedIn}
	}
	_, err := s.call(store.ReducerCollectCoin, store.Args{CoinID: id})
	return err
}

func (s *Session) RegisterCoin(position store.Vector2, sceneID uint32) error {
	_, err := s.call(store.ReducerRegisterCoin, store.Args{Position: &position, SceneID: sceneID})
	return err
}

func (s *Session) UpdateTimestamp(sceneID uint32) error {
	_, err := s.call(store.ReducerUpdateTimestamp, store.Args{SceneID: sceneID})
	return err
}

// Reads from the local cache.

func (s *Session) LocalPlayer() (store.Player, bool) {
	p, ok := s.cache.players[s.identity]
	return p, ok && s.identity != ""
}

// OtherPlayers returns every player except the local one, by player id.
func (s *Session) OtherPlayers() []store.Player {
	out := make([]store.Player, 0, len(s.cache.players))
	for id, p := range s.cache.players {
		if id != s.identity {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID < out[j].PlayerID })
	return out
}

func (s *Session) Scene(id uint32) (store.Scene, bool) {
	scene, ok := s.cache.scenes[id]
	return scene, ok
}

func (s *Session) Coin(id uint32) (store.Coin, bool) {
	coin, ok := s.cache.coins[id]
	return coin, ok
}

// Coins returns the coins of sceneID, collected ones included.
func (s *Session) Coins(sceneID uint32) []store.Coin {
	return sortedByKey(s.cache.coins, func(c store.Coin) bool { return c.SceneID == sceneID })
}

func (s *Session) Platforms(sceneID uint32) []store.Platform {
	return sortedByKey(s.cache.platforms, func(p store.Platform) bool { return p.SceneID == sceneID })
}

func (s *Session) Enemies(sceneID uint32) []store.Enemy {
	return sortedByKey(s.cache.enemies, func(e store.Enemy) bool { return e.SceneID == sceneID })
}

func (s *Session) Score(identity store.Identity) (store.PlayerScore, bool) {
	score, ok := s.cache.scores[identity]
	return score, ok
}

// CommitSeq is the newest server commit applied to the cache.
func (s *Session) CommitSeq() uint64 {
	return s.cache.seq
}
