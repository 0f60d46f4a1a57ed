package animation

import (
	"math"
	"testing"
	"time"
)

func TestPlatformOffsetPingPongs(t *testing.T) {
	cases := []struct {
		elapsed time.Duration
		want    float64
	}{
		{0, 0},
		{time.Second, -PlatformTravel / 2},
		{2 * time.Second, -PlatformTravel},
		{3 * time.Second, -PlatformTravel / 2},
		{4 * time.Second, 0},
		{5 * time.Second, -PlatformTravel / 2},
	}
	for _, tc := range cases {
		got := PlatformOffset(tc.elapsed)
		if math.Abs(got.Y()-tc.want) > 1e-9 || got.X() != 0 {
			t.Fatalf("PlatformOffset(%s) = %v, want y=%v", tc.elapsed, got, tc.want)
		}
	}
	if v := PlatformVelocity(time.Second); v.Y() >= 0 {
		t.Fatalf("expected rising platform in first half, got %v", v)
	}
	if v := PlatformVelocity(3 * time.Second); v.Y() <= 0 {
		t.Fatalf("expected falling platform in second half, got %v", v)
	}
}

func TestSlimePatrol(t *testing.T) {
	secs := SlimeRange / SlimeSpeed
	half := time.Duration(secs * float64(time.Second))
	if got := SlimeOffset(half); math.Abs(got.X()-SlimeRange) > 1e-6 {
		t.Fatalf("expected slime at far end after %s, got %v", half, got)
	}
	if SlimeFacing(half/2) != 1 || SlimeFacing(half+half/2) != -1 {
		t.Fatalf("unexpected facing")
	}
}

func TestElapsedClampsNegative(t *testing.T) {
	start := time.Unix(100, 0)
	if Elapsed(start, start.Add(-time.Second)) != 0 {
		t.Fatalf("expected clamp to zero")
	}
	if Elapsed(start, start.Add(3*time.Second)) != 3*time.Second {
		t.Fatalf("expected 3s")
	}
}
