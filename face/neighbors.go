package face

import (
	"github.com/outofforest/scm/types"
)

type edge struct {
	Face     types.Face
	Edge     types.Direction
	Reversed bool
}

// adjacency stores, for every face and every edge, the face on the other side, the edge of that face and whether
// the position along the edge runs in the opposite direction there.
var adjacency = [types.NumOfFaces][4]edge{
	types.FacePosX: {
		types.North: {Face: types.FacePosY, Edge: types.East, Reversed: true},
		types.South: {Face: types.FaceNegY, Edge: types.East},
		types.West:  {Face: types.FacePosZ, Edge: types.East},
		types.East:  {Face: types.FaceNegZ, Edge: types.West},
	},
	types.FaceNegX: {
		types.North: {Face: types.FacePosY, Edge: types.West},
		types.South: {Face: types.FaceNegY, Edge: types.West, Reversed: true},
		types.West:  {Face: types.FaceNegZ, Edge: types.East},
		types.East:  {Face: types.FacePosZ, Edge: types.West},
	},
	types.FacePosY: {
		types.North: {Face: types.FaceNegZ, Edge: types.North, Reversed: true},
		types.South: {Face: types.FacePosZ, Edge: types.North},
		types.West:  {Face: types.FaceNegX, Edge: types.North},
		types.East:  {Face: types.FacePosX, Edge: types.North, Reversed: true},
	},
	types.FaceNegY: {
		types.North: {Face: types.FacePosZ, Edge: types.South},
		types.South: {Face: types.FaceNegZ, Edge: types.South, Reversed: true},
		types.West:  {Face: types.FaceNegX, Edge: types.South, Reversed: true},
		types.East:  {Face: types.FacePosX, Edge: types.South},
	},
	types.FacePosZ: {
		types.North: {Face: types.FacePosY, Edge: types.South},
		types.South: {Face: types.FaceNegY, Edge: types.North},
		types.West:  {Face: types.FaceNegX, Edge: types.East},
		types.East:  {Face: types.FacePosX, Edge: types.West},
	},
	types.FaceNegZ: {
		types.North: {Face: types.FacePosY, Edge: types.North, Reversed: true},
		types.South: {Face: types.FaceNegY, Edge: types.South, Reversed: true},
		types.West:  {Face: types.FacePosX, Edge: types.East},
		types.East:  {Face: types.FaceNegX, Edge: types.West},
	},
}

// Neighbor returns the node at the same level sharing edge d with the node.
func Neighbor(id types.NodeID, d types.Direction) types.NodeID {
	level := Level(id)
	f := Face(id)
	row, col := Position(id)
	last := uint64(1)<<level - 1

	var t uint64
	switch d {
	case types.North:
		if row > 0 {
			return Node(f, level, row-1, col)
		}
		t = col
	case types.South:
		if row < last {
			return Node(f, level, row+1, col)
		}
		t = col
	case types.West:
		if col > 0 {
			return Node(f, level, row, col-1)
		}
		t = row
	case types.East:
		if col < last {
			return Node(f, level, row, col+1)
		}
		t = row
	default:
		panic("invalid direction")
	}

	e := adjacency[f][d]
	if e.Reversed {
		t = last - t
	}

	switch e.Edge {
	case types.North:
		return Node(e.Face, level, 0, t)
	case types.South:
		return Node(e.Face, level, last, t)
	case types.West:
		return Node(e.Face, level, t, 0)
	default:
		return Node(e.Face, level, t, last)
	}
}

// Neighbors returns the four nodes sharing an edge with the node, indexed by direction.
func Neighbors(id types.NodeID) [4]types.NodeID {
	return [4]types.NodeID{
		Neighbor(id, types.North),
		Neighbor(id, types.South),
		Neighbor(id, types.West),
		Neighbor(id, types.East),
	}
}
