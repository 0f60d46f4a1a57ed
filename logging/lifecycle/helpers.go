package lifecycle

import (
	"context"

	"coin-chase/logging"
)

const (
	// EventSceneRegistered is emitted when a new scene row is inserted.
	EventSceneRegistered logging.EventType = "lifecycle.scene_registered"
	// EventPlayerRegistered is emitted when an identity claims a player row.
	EventPlayerRegistered logging.EventType = "lifecycle.player_registered"
	// EventPlayerDisconnected is emitted when a player row is removed.
	EventPlayerDisconnected logging.EventType = "lifecycle.player_disconnected"
	// EventPlayerReconnected is emitted when a logged out identity connects again.
	EventPlayerReconnected logging.EventType = "lifecycle.player_reconnected"
	// EventReducerFailed is emitted when a reducer rolls back.
	EventReducerFailed logging.EventType = "lifecycle.reducer_failed"
	// EventWorldBootstrapped is emitted when a client has spawned its world.
	EventWorldBootstrapped logging.EventType = "lifecycle.world_bootstrapped"
	// EventRemoteSpawned is emitted when a client spawns another player.
	EventRemoteSpawned logging.EventType = "lifecycle.remote_spawned"
	// EventRemoteDespawned is emitted when a client drops another player.
	EventRemoteDespawned logging.EventType = "lifecycle.remote_despawned"
)

type SceneRegisteredPayload struct {
	SceneID uint32  `json:"sceneId"`
	Name    string  `json:"name"`
	SpawnX  float32 `json:"spawnX"`
	SpawnY  float32 `json:"spawnY"`
}

type PlayerRegisteredPayload struct {
	Name    string `json:"name"`
	SceneID uint32 `json:"sceneId"`
	Host    bool   `json:"host"`
}

type PlayerDisconnectedPayload struct {
	Reason string `json:"reason"`
}

type WorldBootstrappedPayload struct {
	SceneID   uint32 `json:"sceneId"`
	Coins     int    `json:"coins"`
	Platforms int    `json:"platforms"`
	Enemies   int    `json:"enemies"`
	ElapsedMS int64  `json:"elapsedMs"`
}

type RemoteSpawnedPayload struct {
	Name string `json:"name"`
}

type ReducerFailedPayload struct {
	Error string `json:"error"`
}

func SceneRegistered(ctx context.Context, pub logging.Publisher, seq uint64, actor logging.EntityRef, payload SceneRegisteredPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventSceneRegistered,
		Seq:      seq,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Payload:  payload,
	})
}

func PlayerRegistered(ctx context.Context, pub logging.Publisher, seq uint64, actor logging.EntityRef, payload PlayerRegisteredPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventPlayerRegistered,
		Seq:      seq,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Payload:  payload,
	})
}

func PlayerDisconnected(ctx context.Context, pub logging.Publisher, seq uint64, actor logging.EntityRef, payload PlayerDisconnectedPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventPlayerDisconnected,
		Seq:      seq,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Payload:  payload,
	})
}

func PlayerReconnected(ctx context.Context, pub logging.Publisher, seq uint64, actor logging.EntityRef) {
	publish(ctx, pub, logging.Event{
		Type:     EventPlayerReconnected,
		Seq:      seq,
		Actor:    actor,
		Severity: logging.SeverityInfo,
	})
}

func WorldBootstrapped(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload WorldBootstrappedPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventWorldBootstrapped,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Payload:  payload,
	})
}

func RemoteSpawned(ctx context.Context, pub logging.Publisher, frame uint64, actor logging.EntityRef, payload RemoteSpawnedPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventRemoteSpawned,
		Seq:      frame,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Payload:  payload,
	})
}

func RemoteDespawned(ctx context.Context, pub logging.Publisher, frame uint64, actor logging.EntityRef) {
	publish(ctx, pub, logging.Event{
		Type:     EventRemoteDespawned,
		Seq:      frame,
		Actor:    actor,
		Severity: logging.SeverityDebug,
	})
}

// ReducerFailed records a rejected reducer call. Rejections are routine
// (duplicate registration, lost coin races) so they log at debug.
func ReducerFailed(ctx context.Context, pub logging.Publisher, reducer string, actor logging.EntityRef, payload ReducerFailedPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventReducerFailed,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Reducer:  reducer,
		Payload:  payload,
	})
}

func publish(ctx context.Context, pub logging.Publisher, event logging.Event) {
	if pub == nil {
		return
	}
	event.Category = logging.CategoryLifecycle
	pub.Publish(ctx, event)
}
