package model

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// warp moves point on the unit sphere away from zoom direction, so the angle θ between them becomes
// 2·atan(k·tan(θ/2)).
type warp struct {
	k   float32
	dir mgl32.Vec3
}

func newWarp(k float32, dir mgl32.Vec3) warp {
	if k == 1 {
		return warp{k: 1}
	}
	return warp{k: k, dir: dir.Normalize()}
}

func (w warp) apply(u mgl32.Vec3) mgl32.Vec3 {
	if w.k == 1 {
		return u
	}

	c := math32.Max(-1, math32.Min(1, u.Dot(w.dir)))
	theta := math32.Acos(c)
	if theta < 1e-6 || theta > math32.Pi-1e-6 {
		return u
	}

	theta = 2 * math32.Atan(w.k*math32.Tan(theta/2))
	perp := u.Sub(w.dir.Mul(c)).Normalize()
	return w.dir.Mul(math32.Cos(theta)).Add(perp.Mul(math32.Sin(theta)))
}
