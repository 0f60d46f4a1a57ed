package convert

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"coin-chase/internal/store"
)

func TestVectorRoundTrip(t *testing.T) {
	v := store.Vector2{X: -15, Y: -35}
	if got := Vector2(Vec(v)); got != v {
		t.Fatalf("expected %+v, got %+v", v, got)
	}
}

func TestPlayerStateCollapsesDirection(t *testing.T) {
	cases := map[float64]int32{0.3: 1, -0.7: -1, 0: 0}
	for in, want := range cases {
		got := PlayerState(mgl64.Vec2{1, 2}, in, false)
		if got.Direction != want {
			t.Fatalf("direction %v: expected %d, got %d", in, want, got.Direction)
		}
	}
}

func TestServerState(t *testing.T) {
	got := ServerState(store.PlayerState{Position: store.Vector2{X: 3, Y: 4}, Direction: -1, IsJumping: true})
	if got.Position != (mgl64.Vec2{3, 4}) || got.Direction != -1 || !got.IsJumping {
		t.Fatalf("unexpected server state %+v", got)
	}
}
