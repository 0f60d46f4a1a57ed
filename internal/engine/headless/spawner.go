package headless

import (
	"github.com/go-gl/mathgl/mgl64"

	"coin-chase/internal/engine"
)

func (w *World) SpawnLocalPlayer(name string, position mgl64.Vec2) (engine.Avatar, error) {
	a, err := w.spawnAvatar(engine.PrefabLocalPlayer, KindLocalPlayer, name, position)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (w *World) SpawnRemotePlayer(name string, position mgl64.Vec2) (engine.Avatar, error) {
	a, err := w.spawnAvatar(engine.PrefabRemotePlayer, KindRemotePlayer, name, position)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (w *World) SpawnCoin(id uint32, position mgl64.Vec2) (engine.Prop, error) {
	if err := w.failures[engine.PrefabCoin]; err != nil {
		return nil, err
	}
	p := &Prop{world: w, kind: KindCoin, id: id, base: position, size: mgl64.Vec2{CoinSize, CoinSize}}
	w.props = append(w.props, p)
	return p, nil
}

func (w *World) SpawnPlatform(id uint32, position mgl64.Vec2) (engine.AnimatedProp, error) {
	if err := w.failures[engine.PrefabPlatform]; err != nil {
		return nil, err
	}
	p := &Prop{world: w, kind: KindPlatform, id: id, base: position, size: mgl64.Vec2{PlatformWidth, PlatformHeight}}
	p.obj = w.newObject(p.Bounds(), TagSolid, TagPlatform)
	w.space.Add(p.obj)
	p.animate()
	w.props = append(w.props, p)
	return p, nil
}

func (w *World) SpawnEnemy(id uint32, position mgl64.Vec2) (engine.AnimatedProp, error) {
	if err := w.failures[engine.PrefabEnemy]; err != nil {
		return nil, err
	}
	p := &Prop{world: w, kind: KindEnemy, id: id, base: position, size: mgl64.Vec2{SlimeWidth, SlimeHeight}}
	p.animate()
	w.props = append(w.props, p)
	return p, nil
}

func (w *World) spawnAvatar(prefab string, kind Kind, name string, position mgl64.Vec2) (*Avatar, error) {
	if err := w.failures[prefab]; err != nil {
		return nil, err
	}
	a := &Avatar{world: w, kind: kind, label: name, animation: "idle", facing: 1}
	a.obj = w.newObject(centered(position, PlayerWidth, PlayerHeight), TagBody)
	w.space.Add(a.obj)
	w.avatars = append(w.avatars, a)
	return a, nil
}
