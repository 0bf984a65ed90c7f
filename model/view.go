package model

import (
	"github.com/go-gl/mathgl/mgl32"
)

// View is the camera looking at the sphere.
type View struct {
	Projection mgl32.Mat4
	View       mgl32.Mat4

	// Width and Height are viewport dimensions in pixels.
	Width, Height float32
}

// NewView creates perspective view. Fovy is given in degrees.
func NewView(eye, center, up mgl32.Vec3, fovy, width, height, near, far float32) View {
	return View{
		Projection: mgl32.Perspective(mgl32.DegToRad(fovy), width/height, near, far),
		View:       mgl32.LookAtV(eye, center, up),
		Width:      width,
		Height:     height,
	}
}

type plane struct {
	normal mgl32.Vec3
	d      float32
}

func (p plane) distance(point mgl32.Vec3) float32 {
	return p.normal.Dot(point) + p.d
}

// camera is the view prepared for the walk.
type camera struct {
	mvp           mgl32.Mat4
	eye           mgl32.Vec3
	planes        [6]plane
	width, height float32
}

func newCamera(v View) camera {
	mvp := v.Projection.Mul4(v.View)
	c := camera{
		mvp:    mvp,
		eye:    v.View.Inv().Col(3).Vec3(),
		width:  v.Width,
		height: v.Height,
	}

	r3 := mvp.Row(3)
	for i := range 3 {
		r := mvp.Row(i)
		c.planes[2*i] = newPlane(r3.Add(r))
		c.planes[2*i+1] = newPlane(r3.Sub(r))
	}
	return c
}

func newPlane(v mgl32.Vec4) plane {
	normal := v.Vec3()
	l := normal.Len()
	return plane{
		normal: normal.Mul(1 / l),
		d:      v[3] / l,
	}
}

// outside returns true if sphere is entirely outside the frustum.
func (c camera) outside(center mgl32.Vec3, radius float32) bool {
	for _, p := range c.planes {
		if p.distance(center) < -radius {
			return true
		}
	}
	return false
}

// project returns the position of the point in pixels. False is returned if point is behind the eye.
func (c camera) project(point mgl32.Vec3) (mgl32.Vec2, bool) {
	clip := c.mvp.Mul4x1(point.Vec4(1))
	if clip[3] <= 1e-6 {
		return mgl32.Vec2{}, false
	}
	return mgl32.Vec2{
		(clip[0]/clip[3] + 1) / 2 * c.width,
		(clip[1]/clip[3] + 1) / 2 * c.height,
	}, true
}
