// Package animation computes the motion of scripted scene props from the
// time elapsed since the scene clock started, so every client shows the
// same pose without syncing it.
package animation

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	PlatformPeriod = 4 * time.Second
	PlatformTravel = 48.0

	SlimeSpeed = 60.0
	SlimeRange = 64.0
)

// PlatformOffset is a vertical ping-pong between 0 and -PlatformTravel.
func PlatformOffset(elapsed time.Duration) mgl64.Vec2 {
	return mgl64.Vec2{0, -PlatformTravel * pingPong(elapsed.Seconds(), PlatformPeriod.Seconds())}
}

// PlatformVelocity is the derivative of PlatformOffset.
func PlatformVelocity(elapsed time.Duration) mgl64.Vec2 {
	half := PlatformPeriod.Seconds() / 2
	speed := PlatformTravel / half
	if phase(elapsed.Seconds(), PlatformPeriod.Seconds()) < half {
		return mgl64.Vec2{0, -speed}
	}
	return mgl64.Vec2{0, speed}
}

// SlimeOffset walks right SlimeRange pixels at SlimeSpeed and back.
func SlimeOffset(elapsed time.Duration) mgl64.Vec2 {
	period := 2 * SlimeRange / SlimeSpeed
	return mgl64.Vec2{SlimeRange * pingPong(elapsed.Seconds(), period), 0}
}

// SlimeFacing is +1 while walking right and -1 while walking back.
func SlimeFacing(elapsed time.Duration) int {
	period := 2 * SlimeRange / SlimeSpeed
	if phase(elapsed.Seconds(), period) < period/2 {
		return 1
	}
	return -1
}

// Elapsed returns now - start, clamped at zero.
func Elapsed(start, now time.Time) time.Duration {
	if now.Before(start) {
		return 0
	}
	return now.Sub(start)
}

func phase(t, period float64) float64 {
	if t < 0 {
		t = 0
	}
	return math.Mod(t, period)
}

// pingPong maps t onto 0 -> 1 -> 0 over one period.
func pingPong(t, period float64) float64 {
	p := phase(t, period) / period
	if p < 0.5 {
		return p * 2
	}
	return 2 - p*2
}
