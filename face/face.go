package face

import (
	"math/bits"

	"github.com/outofforest/scm/types"
)

// Root returns the root node of the face.
func Root(f types.Face) types.NodeID {
	if f >= types.NumOfFaces {
		panic("invalid face")
	}
	return types.NodeID(f)
}

// Child returns the child of the node occupying quadrant k.
func Child(id types.NodeID, k types.Quadrant) types.NodeID {
	if k >= types.NumOfChildren {
		panic("invalid quadrant")
	}
	if Level(id) >= types.MaxDepth {
		panic("node is too deep to have children")
	}
	return types.NumOfFaces + types.NumOfChildren*id + types.NodeID(k)
}

// Children returns all the children of the node.
func Children(id types.NodeID) [types.NumOfChildren]types.NodeID {
	first := Child(id, 0)
	return [types.NumOfChildren]types.NodeID{first, first + 1, first + 2, first + 3}
}

// Parent returns the parent of the node.
func Parent(id types.NodeID) types.NodeID {
	if id < types.NumOfFaces {
		panic("root node has no parent")
	}
	return (id - types.NumOfFaces) / types.NumOfChildren
}

// Quadrant returns the quadrant occupied by the node within its parent.
func Quadrant(id types.NodeID) types.Quadrant {
	if id < types.NumOfFaces {
		panic("root node has no quadrant")
	}
	return types.Quadrant((id - types.NumOfFaces) % types.NumOfChildren)
}

// Level returns the depth of the node. Roots are at level 0.
func Level(id types.NodeID) uint64 {
	return uint64(bits.Len64(uint64(id+2)/2)-1) / 2
}

// LevelStart returns the first node at level.
func LevelStart(level uint64) types.NodeID {
	return types.NodeID(2<<(2*level)) - 2
}

// LevelSize returns the number of nodes at level.
func LevelSize(level uint64) uint64 {
	return types.NumOfFaces << (2 * level)
}

// IndexInLevel returns the index of the node among all the nodes at its level.
func IndexInLevel(id types.NodeID) uint64 {
	return uint64(id - LevelStart(Level(id)))
}

// Face returns the cube face the node belongs to.
func Face(id types.NodeID) types.Face {
	level := Level(id)
	return types.Face(IndexInLevel(id) >> (2 * level))
}

// Position returns row and column of the node within its face.
func Position(id types.NodeID) (uint64, uint64) {
	level := Level(id)
	p := IndexInLevel(id) & (1<<(2*level) - 1)
	return compact(p >> 1), compact(p)
}

// Node returns the node at position on the face.
func Node(f types.Face, depth, row, col uint64) types.NodeID {
	if f >= types.NumOfFaces {
		panic("invalid face")
	}
	if depth > types.MaxDepth {
		panic("invalid depth")
	}
	n := uint64(1) << depth
	if row >= n || col >= n {
		panic("invalid position")
	}
	return LevelStart(depth) + types.NodeID(uint64(f)<<(2*depth)|spread(row)<<1|spread(col))
}

// Locate returns the node at depth containing face coordinates x (column) and y (row), both in [0, 1].
func Locate(f types.Face, x, y float32, depth uint64) types.NodeID {
	if depth > types.MaxDepth {
		panic("invalid depth")
	}
	n := uint64(1) << depth
	return Node(f, depth, cell(y, n), cell(x, n))
}

func cell(v float32, n uint64) uint64 {
	if v <= 0 {
		return 0
	}
	c := uint64(float64(v) * float64(n))
	if c >= n {
		return n - 1
	}
	return c
}

// spread moves bit i of v to bit 2i.
func spread(v uint64) uint64 {
	v &= 0x00000000ffffffff
	v = (v | v<<16) & 0x0000ffff0000ffff
	v = (v | v<<8) & 0x00ff00ff00ff00ff
	v = (v | v<<4) & 0x0f0f0f0f0f0f0f0f
	v = (v | v<<2) & 0x3333333333333333
	v = (v | v<<1) & 0x5555555555555555
	return v
}

// compact is the inverse of spread.
func compact(v uint64) uint64 {
	v &= 0x5555555555555555
	v = (v | v>>1) & 0x3333333333333333
	v = (v | v>>2) & 0x0f0f0f0f0f0f0f0f
	v = (v | v>>4) & 0x00ff00ff00ff00ff
	v = (v | v>>8) & 0x0000ffff0000ffff
	v = (v | v>>16) & 0x00000000ffffffff
	return v
}
