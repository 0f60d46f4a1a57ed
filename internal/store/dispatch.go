package store

import (
	"context"
	"fmt"
)

// Args carries the arguments of a reducer invoked by name. Only the fields
// relevant to the reducer are read.
type Args struct {
	Name       string       `json:"name,omitempty"`
	SceneID    uint32       `json:"sceneId,omitempty"`
	State      *PlayerState `json:"state,omitempty"`
	Position   *Vector2     `json:"position,omitempty"`
	CoinID     uint32       `json:"coinId,omitempty"`
	SpawnPoint *Vector2     `json:"spawnPoint,omitempty"`
}

type requestKey struct{}

// WithRequestID tags reducer calls made with ctx so the resulting commit
// can be matched to the request that caused it.
func WithRequestID(ctx context.Context, id uint64) context.Context {
	return context.WithValue(ctx, requestKey{}, id)
}

func requestID(ctx context.Context) uint64 {
	if ctx == nil {
		return 0
	}
	id, _ := ctx.Value(requestKey{}).(uint64)
	return id
}

// Callable reports whether clients may invoke reducer by name. Lifecycle
// reducers are driven by the transport only.
func Callable(reducer string) bool {
	switch reducer {
	case ReducerRegisterScene, ReducerRegister, ReducerUpdateState, ReducerCollectCoin,
		ReducerCollectCoinAt, ReducerRegisterCoin, ReducerUpdateTimestamp:
		return true
	default:
		return false
	}
}

// Call invokes a client-callable reducer by name.
func (s *Store) Call(ctx context.Context, caller Identity, reducer string, args Args) (Commit, error) {
	switch reducer {
	case ReducerRegisterScene:
		spawn := Vector2{}
		if args.SpawnPoint != nil {
			spawn = *args.SpawnPoint
		}
		return s.RegisterScene(ctx, caller, args.Name, spawn)
	case ReducerRegister:
		return s.Register(ctx, caller, args.Name, args.SceneID)
	case ReducerUpdateState:
		if args.State == nil {
			return Commit{}, &ReducerError{Reducer: reducer, Err: fmt.Errorf("%w: missing state", ErrInvalidState)}
		}
		return s.UpdateState(ctx, caller, *args.State)
	case ReducerCollectCoin:
		return s.CollectCoin(ctx, caller, args.CoinID)
	case ReducerCollectCoinAt:
		if args.Position == nil {
			return Commit{}, &ReducerError{Reducer: reducer, Err: ErrCoinNotFound}
		}
		return s.CollectCoinAt(ctx, caller, *args.Position)
	case ReducerRegisterCoin:
		if args.Position == nil {
			return Commit{}, &ReducerError{Reducer: reducer, Err: fmt.Errorf("%w: missing position", ErrInvalidState)}
		}
		return s.RegisterCoin(ctx, caller, *args.Position, args.SceneID)
	case ReducerUpdateTimestamp:
		return s.UpdateTimestamp(ctx, caller, args.SceneID)
	default:
		return Commit{}, &ReducerError{Reducer: reducer, Err: ErrUnknownReducer}
	}
}
