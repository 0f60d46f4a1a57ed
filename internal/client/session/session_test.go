package session

import (
	"context"
	"errors"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"coin-chase/internal/client/credentials"
	gamenet "coin-chase/internal/net"
	"coin-chase/internal/protocol"
	"coin-chase/internal/store"
	"coin-chase/internal/telemetry"
	"coin-chase/logging/network"
	"coin-chase/logging/sinks"
)

type fakeConn struct {
	mu     sync.Mutex
	in     chan []byte
	out    [][]byte
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan []byte, 16), closed: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-c.in:
		return websocket.TextMessage, data, nil
	case <-c.closed:
		return 0, nil, errors.New("connection closed")
	}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.closed:
		return errors.New("connection closed")
	default:
	}
	c.out = append(c.out, data)
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) push(t *testing.T, msg protocol.ServerMessage) {
	t.Helper()
	data, err := protocol.JSONCodec{}.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	c.in <- data
}

func (c *fakeConn) sent(t *testing.T) []protocol.ClientMessage {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]protocol.ClientMessage, 0, len(c.out))
	for _, data := range c.out {
		var msg protocol.ClientMessage
		if err := (protocol.JSONCodec{}).Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		out = append(out, msg)
	}
	return out
}

type fakeDialer struct {
	urls    []string
	conn    *fakeConn
	failFor func(url string) bool
}

func (d *fakeDialer) Dial(_ context.Context, rawURL string) (Conn, error) {
	d.urls = append(d.urls, rawURL)
	if d.failFor != nil && d.failFor(rawURL) {
		return nil, errors.New("handshake rejected")
	}
	return d.conn, nil
}

type brokenStore struct{}

func (brokenStore) Load(string) (string, error) { return "", errors.New("disk on fire") }
func (brokenStore) Save(string, string) error   { return nil }

func tickUntil(t *testing.T, s *Session, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if err := s.Tick(); err != nil {
			t.Fatalf("tick: %v", err)
		}
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not reached, state %s", s.State())
}

func TestConnectFallsBackWhenCredentialsFailToLoad(t *testing.T) {
	dialer := &fakeDialer{conn: newFakeConn()}
	s := New(Config{URL: "ws://example/ws", Dialer: dialer, Credentials: brokenStore{}})
	if err := s.Connect(context.Background(), "alice"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Close()
	if len(dialer.urls) != 1 || strings.Contains(dialer.urls[0], "token=") {
		t.Fatalf("expected one dial without token, got %v", dialer.urls)
	}
	if s.State() != StateConnecting {
		t.Fatalf("expected connecting, got %s", s.State())
	}
}

func TestConnectRetriesOnceWithoutToken(t *testing.T) {
	creds := credentials.NewFileStore(t.TempDir())
	if err := creds.Save("alice", "stale.token"); err != nil {
		t.Fatalf("save: %v", err)
	}
	dialer := &fakeDialer{
		conn:    newFakeConn(),
		failFor: func(u string) bool { return strings.Contains(u, "token=") },
	}
	s := New(Config{URL: "ws://example/ws", Dialer: dialer, Credentials: creds})
	if err := s.Connect(context.Background(), "alice"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Close()
	if len(dialer.urls) != 2 {
		t.Fatalf("expected two dials, got %v", dialer.urls)
	}
	if !strings.Contains(dialer.urls[0], "token=stale.token") || strings.Contains(dialer.urls[1], "token=") {
		t.Fatalf("expected token then fresh dial, got %v", dialer.urls)
	}
}

func TestConnectFailureIsTyped(t *testing.T) {
	dialer := &fakeDialer{failFor: func(string) bool { return true }}
	s := New(Config{URL: "ws://example/ws", Dialer: dialer})
	err := s.Connect(context.Background(), "alice")
	var connErr *ConnectionError
	if !errors.As(err, &connErr) || connErr.Op != "dial" {
		t.Fatalf("expected dial ConnectionError, got %v", err)
	}
	if s.State() != StateDisconnected {
		t.Fatalf("expected disconnected, got %s", s.State())
	}
	if err := s.Tick(); err != nil {
		t.Fatalf("expected tick on a disconnected session to be a no-op, got %v", err)
	}
}

func TestLoginQueuedUntilIdentityArrives(t *testing.T) {
	conn := newFakeConn()
	var connected store.Identity
	s := New(Config{URL: "ws://example/ws", Dialer: &fakeDialer{conn: conn}})
	s.SetCallbacks(Callbacks{OnConnect: func(id store.Identity) { connected = id }})
	if err := s.Connect(context.Background(), "alice"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Close()

	if err := s.Login("alice", 1); err != nil {
		t.Fatalf("login: %v", err)
	}
	if got := len(conn.sent(t)); got != 0 {
		t.Fatalf("expected nothing sent before the identity, got %d messages", got)
	}

	conn.push(t, protocol.ServerMessage{Ver: protocol.Version, Type: protocol.TypeIdentityToken, Identity: "abc", Token: "abc.mac"})
	tickUntil(t, s, func() bool { return s.State() == StateConnected })
	if connected != "abc" {
		t.Fatalf("expected OnConnect with abc, got %q", connected)
	}
	sent := conn.sent(t)
	if len(sent) != 2 || sent[0].Type != protocol.TypeSubscribe || sent[1].Reducer != store.ReducerRegister {
		t.Fatalf("expected subscribe then register, got %+v", sent)
	}
	if sent[1].Args == nil || sent[1].Args.Name != "alice" || sent[1].Args.SceneID != 1 {
		t.Fatalf("expected register args, got %+v", sent[1].Args)
	}

	// The commit may arrive before or after the snapshot; either order logs in.
	player := store.Player{Identity: "abc", PlayerID: 1, Name: "alice", SceneID: 1}
	conn.push(t, protocol.ServerMessage{
		Ver:  protocol.Version,
		Type: protocol.TypeTransactionUpdate,
		Seq:  sent[1].Seq,
		Update: &protocol.TransactionUpdate{
			Status:    protocol.StatusCommitted,
			Reducer:   store.ReducerRegister,
			Caller:    "abc",
			CommitSeq: 2,
			Changes:   []protocol.RowChange{{Table: store.TablePlayer, Op: store.OpInsert, Player: &player}},
		},
	})
	tickUntil(t, s, func() bool { return s.State() == StateLoggedIn })
	if p, ok := s.LocalPlayer(); !ok || p.Name != "alice" {
		t.Fatalf("expected local player alice, got %+v %v", p, ok)
	}
}

func TestStateRequirements(t *testing.T) {
	s := New(Config{URL: "ws://example/ws", Dialer: &fakeDialer{conn: newFakeConn()}})
	var connErr *ConnectionError
	if err := s.Login("alice", 1); !errors.As(err, &connErr) || !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected not connected, got %v", err)
	}
	if err := s.SendState(store.PlayerState{}); !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("expected not logged in, got %v", err)
	}
	if err := s.Connect(context.Background(), "alice"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Close()
	if err := s.Connect(context.Background(), "alice"); !errors.Is(err, ErrAlreadyConnected) {
		t.Fatalf("expected already connected, got %v", err)
	}
}

func startServer(t *testing.T) *httptest.Server {
	t.Helper()
	st := store.New(store.Config{})
	hub := gamenet.NewHub(gamenet.HubConfig{Store: st, HeartbeatInterval: time.Minute, ScheduleInterval: time.Hour})
	stop := make(chan struct{})
	go hub.Run(stop)
	srv := httptest.NewServer(gamenet.NewHTTPHandler(hub, gamenet.HTTPHandlerConfig{Tokens: gamenet.NewTokens("secret")}))
	t.Cleanup(func() {
		srv.Close()
		close(stop)
	})
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func login(t *testing.T, srv *httptest.Server, creds credentials.Store, name string, codec protocol.Codec) *Session {
	t.Helper()
	s := New(Config{URL: wsURL(srv), Codec: codec, Credentials: creds, Logger: telemetry.Discard})
	if err := s.Connect(context.Background(), name); err != nil {
		t.Fatalf("connect %s: %v", name, err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Login(name, 1); err != nil {
		t.Fatalf("login %s: %v", name, err)
	}
	tickUntil(t, s, func() bool { return s.State() == StateLoggedIn })
	return s
}

func TestLoginAgainstServer(t *testing.T) {
	srv := startServer(t)
	creds := credentials.NewFileStore(t.TempDir())
	alice := login(t, srv, creds, "alice", protocol.JSONCodec{})

	player, ok := alice.LocalPlayer()
	if !ok {
		t.Fatalf("expected local player row")
	}
	if player.State.Position != (store.Vector2{X: -15, Y: -35}) {
		t.Fatalf("expected spawn position, got %+v", player.State.Position)
	}
	if token, err := creds.Load("alice"); err != nil || token == "" {
		t.Fatalf("expected credentials saved, got %q %v", token, err)
	}
	if got := len(alice.Coins(1)); got != 15 {
		t.Fatalf("expected 15 coins in cache, got %d", got)
	}
	if _, ok := alice.Scene(1); !ok {
		t.Fatalf("expected scene 1 in cache")
	}
}

func TestRemoteStateReachesOtherSession(t *testing.T) {
	srv := startServer(t)
	alice := login(t, srv, credentials.NewFileStore(t.TempDir()), "alice", protocol.JSONCodec{})
	bob := login(t, srv, credentials.NewFileStore(t.TempDir()), "bob", protocol.MsgpackCodec{})

	tickUntil(t, bob, func() bool { return len(bob.OtherPlayers()) == 1 })

	var results []ReducerResult
	alice.SetCallbacks(Callbacks{OnReducer: func(r ReducerResult) { results = append(results, r) }})
	state := store.PlayerState{Position: store.Vector2{X: 40, Y: -10}, Direction: 1}
	if err := alice.SendState(state); err != nil {
		t.Fatalf("send state: %v", err)
	}
	tickUntil(t, bob, func() bool {
		others := bob.OtherPlayers()
		return len(others) == 1 && others[0].State == state
	})
	tickUntil(t, alice, func() bool { return len(results) == 1 })
	if results[0].Reducer != store.ReducerUpdateState || results[0].Err != nil {
		t.Fatalf("expected committed update_state, got %+v", results[0])
	}
}

func TestCollectCoinRejectionIsTyped(t *testing.T) {
	srv := startServer(t)
	alice := login(t, srv, credentials.NewFileStore(t.TempDir()), "alice", protocol.JSONCodec{})

	var results []ReducerResult
	alice.SetCallbacks(Callbacks{OnReducer: func(r ReducerResult) { results = append(results, r) }})
	if err := alice.CollectCoin(1); err != nil {
		t.Fatalf("collect: %v", err)
	}
	if err := alice.CollectCoin(1); err != nil {
		t.Fatalf("collect: %v", err)
	}
	if err := alice.CollectCoin(999); err != nil {
		t.Fatalf("collect: %v", err)
	}
	tickUntil(t, alice, func() bool { return len(results) == 3 })
	// Failures are answered directly while commits go through the
	// broadcaster, so results arrive in either order.
	sort.Slice(results, func(i, j int) bool { return results[i].Seq < results[j].Seq })
	if results[0].Err != nil {
		t.Fatalf("expected first collect to commit, got %v", results[0].Err)
	}
	if !errors.Is(results[1].Err, store.ErrAlreadyCollected) {
		t.Fatalf("expected already collected, got %v", results[1].Err)
	}
	if !errors.Is(results[2].Err, store.ErrCoinNotFound) {
		t.Fatalf("expected coin not found, got %v", results[2].Err)
	}
	coin, _ := alice.Coin(1)
	if !coin.Collected() {
		t.Fatalf("expected cached coin collected")
	}
	if score, ok := alice.Score(alice.Identity()); !ok || score.CoinsCollected != 1 {
		t.Fatalf("expected score 1, got %+v %v", score, ok)
	}
}

func TestReconnectRestoresIdentity(t *testing.T) {
	srv := startServer(t)
	creds := credentials.NewFileStore(t.TempDir())
	first := login(t, srv, creds, "alice", protocol.JSONCodec{})
	identity := first.Identity()
	player, _ := first.LocalPlayer()
	first.Close()

	second := login(t, srv, creds, "alice", protocol.JSONCodec{})
	if second.Identity() != identity {
		t.Fatalf("expected identity %s, got %s", identity, second.Identity())
	}
	again, _ := second.LocalPlayer()
	if again.PlayerID != player.PlayerID {
		t.Fatalf("expected player id %d kept, got %d", player.PlayerID, again.PlayerID)
	}
	if second.LoginError() != nil {
		t.Fatalf("expected already registered to be accepted on reconnect, got %v", second.LoginError())
	}
}

func TestInvalidNameKeepsSessionConnected(t *testing.T) {
	srv := startServer(t)
	s := New(Config{URL: wsURL(srv)})
	if err := s.Connect(context.Background(), "x"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Close()
	if err := s.Login("   ", 1); err != nil {
		t.Fatalf("login: %v", err)
	}
	tickUntil(t, s, func() bool { return s.LoginError() != nil })
	if !errors.Is(s.LoginError(), store.ErrInvalidName) {
		t.Fatalf("expected invalid name, got %v", s.LoginError())
	}
	if s.State() != StateConnected {
		t.Fatalf("expected still connected, got %s", s.State())
	}
}

func TestServerLossDisconnects(t *testing.T) {
	srv := startServer(t)
	memory := sinks.NewMemory()
	s := New(Config{URL: wsURL(srv), Publisher: memory})
	var lost error
	disconnected := false
	s.SetCallbacks(Callbacks{OnDisconnect: func(err error) { disconnected, lost = true, err }})
	if err := s.Connect(context.Background(), "alice"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := s.Login("alice", 1); err != nil {
		t.Fatalf("login: %v", err)
	}
	tickUntil(t, s, func() bool { return s.State() == StateLoggedIn })

	srv.CloseClientConnections()
	deadline := time.Now().Add(3 * time.Second)
	var tickErr error
	for tickErr == nil && time.Now().Before(deadline) {
		tickErr = s.Tick()
		time.Sleep(5 * time.Millisecond)
	}
	var connErr *ConnectionError
	if !errors.As(tickErr, &connErr) || connErr.Op != "read" {
		t.Fatalf("expected read ConnectionError, got %v", tickErr)
	}
	if s.State() != StateDisconnected || !disconnected || lost == nil {
		t.Fatalf("expected disconnected with cause, got %s %v %v", s.State(), disconnected, lost)
	}
	if _, ok := s.LocalPlayer(); ok {
		t.Fatalf("expected cache cleared")
	}
	if len(memory.OfType(network.EventStateChanged)) < 4 {
		t.Fatalf("expected state transitions logged, got %d", len(memory.OfType(network.EventStateChanged)))
	}
}

func TestHeartbeatMeasuresRTT(t *testing.T) {
	srv := startServer(t)
	s := New(Config{URL: wsURL(srv), HeartbeatInterval: time.Millisecond})
	if err := s.Connect(context.Background(), "alice"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Close()
	tickUntil(t, s, func() bool { return s.State() == StateConnected })
	tickUntil(t, s, func() bool { return s.RTT() > 0 })
}
