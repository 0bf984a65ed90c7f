package face

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/scm/types"
)

func TestRoots(t *testing.T) {
	requireT := require.New(t)

	for f := range types.Face(types.NumOfFaces) {
		id := Root(f)
		requireT.Equal(types.NodeID(f), id)
		requireT.Equal(uint64(0), Level(id))
		requireT.Equal(f, Face(id))
		requireT.Equal(uint64(f), IndexInLevel(id))
		row, col := Position(id)
		requireT.Zero(row)
		requireT.Zero(col)
	}
}

func TestLevelBoundaries(t *testing.T) {
	requireT := require.New(t)

	for level := range uint64(types.MaxDepth) {
		start := LevelStart(level)
		requireT.Equal(level, Level(start), level)
		requireT.Equal(level, Level(start+types.NodeID(LevelSize(level))-1), level)
		requireT.Equal(LevelStart(level+1), start+types.NodeID(LevelSize(level)), level)
		requireT.Equal(level+1, Level(LevelStart(level+1)), level)
	}
}

func TestChildParentRoundTrip(t *testing.T) {
	requireT := require.New(t)
	rnd := rand.New(rand.NewSource(1))

	ids := []types.NodeID{0, 1, 2, 3, 4, 5}
	for range 1000 {
		depth := uint64(rnd.Intn(types.MaxDepth))
		n := uint64(1) << depth
		ids = append(ids, Node(types.Face(rnd.Intn(types.NumOfFaces)), depth, rnd.Uint64()%n, rnd.Uint64()%n))
	}

	for _, id := range ids {
		for k := range types.Quadrant(types.NumOfChildren) {
			child := Child(id, k)
			requireT.Equal(id, Parent(child))
			requireT.Equal(k, Quadrant(child))
			requireT.Equal(Level(id)+1, Level(child))
			requireT.Equal(Face(id), Face(child))

			row, col := Position(id)
			childRow, childCol := Position(child)
			requireT.Equal(2*row+uint64(k>>1), childRow)
			requireT.Equal(2*col+uint64(k&1), childCol)
		}
		requireT.Equal([types.NumOfChildren]types.NodeID{
			Child(id, types.QuadrantNE),
			Child(id, types.QuadrantNW),
			Child(id, types.QuadrantSE),
			Child(id, types.QuadrantSW),
		}, Children(id))
	}
}

func TestNodeRoundTrip(t *testing.T) {
	requireT := require.New(t)
	rnd := rand.New(rand.NewSource(2))

	for range 1000 {
		f := types.Face(rnd.Intn(types.NumOfFaces))
		depth := uint64(rnd.Intn(types.MaxDepth + 1))
		n := uint64(1) << depth
		row, col := rnd.Uint64()%n, rnd.Uint64()%n

		id := Node(f, depth, row, col)
		requireT.Equal(depth, Level(id))
		requireT.Equal(f, Face(id))
		requireT.Equal(uint64(f), IndexInLevel(id)/(n*n))

		gotRow, gotCol := Position(id)
		requireT.Equal(row, gotRow)
		requireT.Equal(col, gotCol)
	}
}

func TestLevelEnumeration(t *testing.T) {
	requireT := require.New(t)

	for depth := range uint64(5) {
		n := uint64(1) << depth
		seen := map[uint64]struct{}{}
		for f := range types.Face(types.NumOfFaces) {
			for row := range n {
				for col := range n {
					id := Node(f, depth, row, col)
					index := IndexInLevel(id)
					requireT.Less(index, LevelSize(depth))
					seen[index] = struct{}{}
				}
			}
		}
		requireT.Len(seen, int(LevelSize(depth)))
	}
}

func TestLocate(t *testing.T) {
	requireT := require.New(t)

	requireT.Equal(Node(types.FacePosZ, 2, 0, 0), Locate(types.FacePosZ, 0, 0, 2))
	requireT.Equal(Node(types.FacePosZ, 2, 3, 3), Locate(types.FacePosZ, 1, 1, 2))
	requireT.Equal(Node(types.FacePosZ, 2, 1, 2), Locate(types.FacePosZ, 0.6, 0.3, 2))
	requireT.Equal(Node(types.FaceNegX, 3, 7, 0), Locate(types.FaceNegX, -0.5, 1.5, 3))

	for depth := range uint64(8) {
		n := uint64(1) << depth
		for row := range n {
			col := (row * 7) % n
			x := (float32(col) + 0.5) / float32(n)
			y := (float32(row) + 0.5) / float32(n)
			id := Locate(types.FaceNegY, x, y, depth)
			gotRow, gotCol := Position(id)
			requireT.Equal(depth, Level(id))
			requireT.Equal(row, gotRow)
			requireT.Equal(col, gotCol)
		}
	}
}

func TestLocateDirection(t *testing.T) {
	requireT := require.New(t)

	for depth := range uint64(4) {
		n := uint64(1) << depth
		for f := range types.Face(types.NumOfFaces) {
			for row := range n {
				for col := range n {
					id := Node(f, depth, row, col)
					requireT.Equal(id, LocateDirection(Center(id), depth))
				}
			}
		}
	}
}

func TestFaceOf(t *testing.T) {
	requireT := require.New(t)

	for f := range types.Face(types.NumOfFaces) {
		for _, xy := range [][2]float32{{0.5, 0.5}, {0.1, 0.9}, {0.75, 0.25}} {
			gotF, x, y := FaceOf(Direction(f, xy[0], xy[1]))
			requireT.Equal(f, gotF)
			requireT.InDelta(xy[0], x, 1e-5)
			requireT.InDelta(xy[1], y, 1e-5)
		}
	}
}

func TestNeighborsShareEdge(t *testing.T) {
	requireT := require.New(t)

	for depth := range uint64(4) {
		n := uint64(1) << depth
		for f := range types.Face(types.NumOfFaces) {
			for row := range n {
				for col := range n {
					id := Node(f, depth, row, col)
					corners := Corners(id)
					for d, nb := range Neighbors(id) {
						requireT.NotEqual(id, nb)
						requireT.Equal(depth, Level(nb))

						shared := 0
						for _, c1 := range corners {
							for _, c2 := range Corners(nb) {
								if c1.ApproxEqualThreshold(c2, 1e-5) {
									shared++
								}
							}
						}
						requireT.Equal(2, shared, "node %d direction %d neighbor %d", id, d, nb)

						requireT.Contains(Neighbors(nb), id)
					}
				}
			}
		}
	}
}

func TestNeighborsWithinFace(t *testing.T) {
	requireT := require.New(t)

	id := Node(types.FacePosX, 3, 4, 5)
	requireT.Equal([4]types.NodeID{
		Node(types.FacePosX, 3, 3, 5),
		Node(types.FacePosX, 3, 5, 5),
		Node(types.FacePosX, 3, 4, 4),
		Node(types.FacePosX, 3, 4, 6),
	}, Neighbors(id))
}

func TestNeighborsAcrossFaces(t *testing.T) {
	requireT := require.New(t)

	// Top row of +X continues on the east edge of +Y in reversed order.
	requireT.Equal(Node(types.FacePosY, 2, 3, 3), Neighbor(Node(types.FacePosX, 2, 0, 0), types.North))
	requireT.Equal(Node(types.FacePosY, 2, 0, 3), Neighbor(Node(types.FacePosX, 2, 0, 3), types.North))

	// Crossing back returns to the origin.
	requireT.Equal(Node(types.FacePosX, 2, 0, 0), Neighbor(Node(types.FacePosY, 2, 3, 3), types.East))

	requireT.Equal([4]types.NodeID{
		Root(types.FacePosY),
		Root(types.FaceNegY),
		Root(types.FaceNegX),
		Root(types.FacePosX),
	}, Neighbors(Root(types.FacePosZ)))
}

func TestContractViolations(t *testing.T) {
	requireT := require.New(t)

	requireT.Panics(func() { Parent(Root(types.FaceNegZ)) })
	requireT.Panics(func() { Quadrant(Root(types.FacePosX)) })
	requireT.Panics(func() { Child(LevelStart(types.MaxDepth), 0) })
	requireT.Panics(func() { Child(0, types.NumOfChildren) })
	requireT.Panics(func() { Root(types.NumOfFaces) })
	requireT.Panics(func() { Node(types.FacePosX, 2, 4, 0) })
	requireT.Panics(func() { Locate(types.FacePosX, 0, 0, types.MaxDepth+1) })
}
