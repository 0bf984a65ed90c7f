package face

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/outofforest/scm/types"
)

type basis struct {
	N, U, V mgl32.Vec3
}

// bases maps face coordinates to the cube: point = N + (2x-1)U + (2y-1)V, where x is the column and y is the row
// coordinate.
var bases = [types.NumOfFaces]basis{
	types.FacePosX: {N: mgl32.Vec3{1, 0, 0}, U: mgl32.Vec3{0, 0, -1}, V: mgl32.Vec3{0, -1, 0}},
	types.FaceNegX: {N: mgl32.Vec3{-1, 0, 0}, U: mgl32.Vec3{0, 0, 1}, V: mgl32.Vec3{0, -1, 0}},
	types.FacePosY: {N: mgl32.Vec3{0, 1, 0}, U: mgl32.Vec3{1, 0, 0}, V: mgl32.Vec3{0, 0, 1}},
	types.FaceNegY: {N: mgl32.Vec3{0, -1, 0}, U: mgl32.Vec3{1, 0, 0}, V: mgl32.Vec3{0, 0, -1}},
	types.FacePosZ: {N: mgl32.Vec3{0, 0, 1}, U: mgl32.Vec3{1, 0, 0}, V: mgl32.Vec3{0, -1, 0}},
	types.FaceNegZ: {N: mgl32.Vec3{0, 0, -1}, U: mgl32.Vec3{-1, 0, 0}, V: mgl32.Vec3{0, -1, 0}},
}

// Direction returns unit vector pointing at face coordinates x (column) and y (row).
func Direction(f types.Face, x, y float32) mgl32.Vec3 {
	b := bases[f]
	return b.N.Add(b.U.Mul(2*x - 1)).Add(b.V.Mul(2*y - 1)).Normalize()
}

// FaceOf returns the face pierced by the direction and the coordinates of the point on that face.
func FaceOf(dir mgl32.Vec3) (types.Face, float32, float32) {
	ax, ay, az := math32.Abs(dir[0]), math32.Abs(dir[1]), math32.Abs(dir[2])

	var f types.Face
	var m float32
	switch {
	case ax >= ay && ax >= az:
		f, m = types.FacePosX, ax
		if dir[0] < 0 {
			f = types.FaceNegX
		}
	case ay >= az:
		f, m = types.FacePosY, ay
		if dir[1] < 0 {
			f = types.FaceNegY
		}
	default:
		f, m = types.FacePosZ, az
		if dir[2] < 0 {
			f = types.FaceNegZ
		}
	}

	if m == 0 {
		panic("zero direction")
	}

	p := dir.Mul(1 / m)
	b := bases[f]
	return f, clamp01((p.Dot(b.U) + 1) / 2), clamp01((p.Dot(b.V) + 1) / 2)
}

// LocateDirection returns the node at depth containing the direction.
func LocateDirection(dir mgl32.Vec3, depth uint64) types.NodeID {
	f, x, y := FaceOf(dir)
	return Locate(f, x, y, depth)
}

// Extent returns face coordinates of the node's bounds: x0, y0, x1, y1.
func Extent(id types.NodeID) (float32, float32, float32, float32) {
	row, col := Position(id)
	n := float32(uint64(1) << Level(id))
	return float32(col) / n, float32(row) / n, float32(col+1) / n, float32(row+1) / n
}

// Corners returns unit vectors pointing at the node's corners, ordered like quadrants.
func Corners(id types.NodeID) [4]mgl32.Vec3 {
	f := Face(id)
	x0, y0, x1, y1 := Extent(id)
	return [4]mgl32.Vec3{
		Direction(f, x0, y0),
		Direction(f, x1, y0),
		Direction(f, x0, y1),
		Direction(f, x1, y1),
	}
}

// Center returns unit vector pointing at the center of the node.
func Center(id types.NodeID) mgl32.Vec3 {
	x0, y0, x1, y1 := Extent(id)
	return Direction(Face(id), (x0+x1)/2, (y0+y1)/2)
}

func clamp01(v float32) float32 {
	return math32.Min(1, math32.Max(0, v))
}
