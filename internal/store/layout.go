package store

// SceneLayout is the static content a scene is seeded with.
type SceneLayout struct {
	Name       string
	SpawnPoint Vector2
	Coins      []Vector2
	Platforms  []Vector2
	Enemies    []Vector2
}

type Layout struct {
	Scenes []SceneLayout
}

// MainLayout returns the built-in world: a single scene named "Main".
func MainLayout() Layout {
	return Layout{Scenes: []SceneLayout{{
		Name:       "Main",
		SpawnPoint: Vector2{X: -15, Y: -35},
		Coins: []Vector2{
			{X: 80, Y: -25},
			{X: 98, Y: -25},
			{X: 178, Y: -25},
			{X: 178, Y: -120},
			{X: 498, Y: -104},
			{X: 530, Y: -88},
			{X: 690, Y: -104},
			{X: 626, Y: -344},
			{X: 642, Y: -328},
			{X: 674, Y: -312},
			{X: 834, Y: -312},
			{X: 882, Y: -312},
			{X: 754, Y: -296},
			{X: 784, Y: -296},
			{X: 834, Y: 23},
		},
		Platforms: []Vector2{
			{X: 240, Y: -80},
			{X: 580, Y: -200},
			{X: 720, Y: -260},
		},
		Enemies: []Vector2{
			{X: 320, Y: -8},
			{X: 760, Y: 40},
		},
	}}}
}

func dedupe(points []Vector2) []Vector2 {
	seen := make(map[Vector2]struct{}, len(points))
	out := make([]Vector2, 0, len(points))
	for _, p := range points {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
