package store

import (
	"context"
	"errors"
	"sort"
	"sync"

	"coin-chase/internal/telemetry"
	"coin-chase/logging"
	"coin-chase/logging/lifecycle"
)

// Listener receives every commit in commit order. Listeners run while the
// store lock is held and must not call back into the store.
type Listener func(Commit)

type Config struct {
	Clock     logging.Clock
	Publisher logging.Publisher
	Metrics   telemetry.Metrics
	// SkipLayout leaves the store empty instead of loading the built-in scene.
	SkipLayout bool
}

// Store is the authoritative in-memory world. Reducers are serialized by a
// single lock so each one behaves as a serializable transaction.
type Store struct {
	mu        sync.Mutex
	clock     logging.Clock
	pub       logging.Publisher
	metrics   telemetry.Metrics
	seq       uint64
	ids       idCounters
	listeners []Listener

	scenes    map[uint32]Scene
	players   map[Identity]Player
	loggedOut map[Identity]Player
	coins     map[uint32]Coin
	scores    map[Identity]PlayerScore
	platforms map[uint32]Platform
	enemies   map[uint32]Enemy
}

func New(cfg Config) *Store {
	s := &Store{
		clock:     cfg.Clock,
		pub:       cfg.Publisher,
		metrics:   cfg.Metrics,
		scenes:    make(map[uint32]Scene),
		players:   make(map[Identity]Player),
		loggedOut: make(map[Identity]Player),
		coins:     make(map[uint32]Coin),
		scores:    make(map[Identity]PlayerScore),
		platforms: make(map[uint32]Platform),
		enemies:   make(map[uint32]Enemy),
	}
	if s.clock == nil {
		s.clock = logging.SystemClock
	}
	if s.pub == nil {
		s.pub = logging.NopPublisher()
	}
	if s.metrics == nil {
		s.metrics = telemetry.NopMetrics()
	}
	if !cfg.SkipLayout {
		if _, err := s.Init(context.Background(), MainLayout()); err != nil {
			// The built-in layout is static; failing here is a programming error.
			panic(err)
		}
	}
	return s
}

// Subscribe registers a commit listener and returns a function removing it.
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
	idx := len(s.listeners) - 1
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if idx < len(s.listeners) {
			s.listeners[idx] = nil
		}
	}
}

func (s *Store) run(ctx context.Context, reducer string, caller Identity, requestID uint64, fn func(*Tx) error) (Commit, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.Add(telemetry.MetricReducerCalls, 1)
	tx := &Tx{ctx: ctx, s: s, Caller: caller, Timestamp: s.clock.Now(), ids: s.ids}
	if err := fn(tx); err != nil {
		tx.rollback()
		s.metrics.Add(telemetry.MetricReducerFailures, 1)
		lifecycle.ReducerFailed(ctx, s.pub, reducer, logging.PlayerRef(string(caller)), lifecycle.ReducerFailedPayload{Error: err.Error()})
		var re *ReducerError
		if errors.As(err, &re) {
			return Commit{}, err
		}
		return Commit{}, &ReducerError{Reducer: reducer, Err: err}
	}

	s.seq++
	commit := Commit{
		Seq:       s.seq,
		Reducer:   reducer,
		Caller:    caller,
		RequestID: requestID,
		Timestamp: tx.Timestamp,
		Changes:   tx.changes,
	}
	s.metrics.Add(telemetry.MetricCommits, 1)
	for _, fn := range tx.afterward {
		fn(commit.Seq)
	}
	for _, l := range s.listeners {
		if l != nil {
			l(commit)
		}
	}
	return commit, nil
}

// Seq returns the sequence number of the latest commit.
func (s *Store) Seq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

func (s *Store) Scene(id uint32) (Scene, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	scene, ok := s.scenes[id]
	return scene, ok
}

func (s *Store) Scenes() []Scene {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.scenes, func(a, b Scene) bool { return a.ID < b.ID })
}

func (s *Store) Player(identity Identity) (Player, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[identity]
	return p, ok
}

// LoggedOut reports whether identity's player row is parked in the
// logged-out table.
func (s *Store) LoggedOut(identity Identity) (Player, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.loggedOut[identity]
	return p, ok
}

func (s *Store) Players() []Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.players, func(a, b Player) bool { return a.PlayerID < b.PlayerID })
}

// Coins returns every coin of the scene, collected ones included.
func (s *Store) Coins(sceneID uint32) []Coin {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Coin, 0, len(s.coins))
	for _, c := range s.coins {
		if c.SceneID == sceneID {
			out = append(out, cloneCoin(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) Coin(id uint32) (Coin, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.coins[id]
	return cloneCoin(c), ok
}

func (s *Store) Score(identity Identity) (PlayerScore, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.scores[identity]
	return sc, ok
}

// Snapshot returns the rows of the requested public tables as they stand
// after the latest commit, together with that commit's sequence number.
func (s *Store) Snapshot(tables ...string) (map[string][]any, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]any, len(tables))
	for _, table := range tables {
		var rows []any
		switch table {
		case TableScene:
			for _, r := range sortedValues(s.scenes, func(a, b Scene) bool { return a.ID < b.ID }) {
				rows = append(rows, r)
			}
		case TablePlayer:
			for _, r := range sortedValues(s.players, func(a, b Player) bool { return a.PlayerID < b.PlayerID }) {
				rows = append(rows, r)
			}
		case TableCoin:
			for _, r := range sortedValues(s.coins, func(a, b Coin) bool { return a.ID < b.ID }) {
				rows = append(rows, cloneCoin(r))
			}
		case TableScore:
			for _, r := range sortedValues(s.scores, func(a, b PlayerScore) bool { return a.ID < b.ID }) {
				rows = append(rows, r)
			}
		case TablePlatform:
			for _, r := range sortedValues(s.platforms, func(a, b Platform) bool { return a.ID < b.ID }) {
				rows = append(rows, r)
			}
		case TableEnemy:
			for _, r := range sortedValues(s.enemies, func(a, b Enemy) bool { return a.ID < b.ID }) {
				rows = append(rows, r)
			}
		default:
			continue
		}
		out[table] = rows
	}
	return out, s.seq
}

func sortedValues[K comparable, V any](rows map[K]V, less func(a, b V) bool) []V {
	out := make([]V, 0, len(rows))
	for _, v := range rows {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func cloneCoin(c Coin) Coin {
	if c.CollectedBy != nil {
		id := *c.CollectedBy
		c.CollectedBy = &id
	}
	return c
}
