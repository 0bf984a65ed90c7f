package types

const (
	// NumOfFaces is the number of cube faces, each one being the root of a quadtree.
	NumOfFaces = 6

	// NumOfChildren is the number of children of every quadtree node.
	NumOfChildren = 4

	// MaxDepth is the deepest level representable by NodeID.
	MaxDepth = 30

	// FillLayer is the layer holding the filler image.
	FillLayer Layer = 0

	// InvalidDataset is returned when dataset can't be opened.
	InvalidDataset DatasetIndex = -1

	// ExitDataset is the dataset index of the task telling worker to exit.
	ExitDataset DatasetIndex = -2
)

type (
	// NodeID identifies quadtree node on the cube-sphere. It encodes face, depth and position.
	NodeID uint64

	// Face is the index of cube face.
	Face uint8

	// Quadrant is the index of child within its parent.
	Quadrant uint8

	// Direction is the index of the edge shared with neighbor.
	Direction uint8

	// DatasetIndex is the index of dataset registered in the cache.
	DatasetIndex int32

	// Layer is the index of the slot in the texture array.
	Layer uint32

	// Frame is the frame counter.
	Frame uint64

	// TextureArray is the opaque handle of the texture array owned by the renderer.
	TextureArray uint64
)

// Cube faces.
const (
	FacePosX Face = iota
	FaceNegX
	FacePosY
	FaceNegY
	FacePosZ
	FaceNegZ
)

// Child quadrants. Row bit is k>>1, column bit is k&1.
const (
	QuadrantNE Quadrant = iota
	QuadrantNW
	QuadrantSE
	QuadrantSW
)

// Neighbor directions.
const (
	North Direction = iota
	South
	West
	East
)

// Page identifies the tile of one dataset at one node.
type Page struct {
	Dataset DatasetIndex
	Node    NodeID
}

// Less orders pages by node first to cluster related pages, then by dataset.
func (p Page) Less(p2 Page) bool {
	if p.Node != p2.Node {
		return p.Node < p2.Node
	}
	return p.Dataset < p2.Dataset
}

// Format describes the samples stored in a page.
type Format struct {
	Width    uint32 `yaml:"width"`
	Height   uint32 `yaml:"height"`
	Channels uint32 `yaml:"channels"`
	Depth    uint32 `yaml:"depth"`
}

// SampleSize returns number of bytes taken by one sample.
func (f Format) SampleSize() uint64 {
	return uint64(f.Depth) / 8
}

// PageSize returns number of bytes taken by one decoded page.
func (f Format) PageSize() uint64 {
	return uint64(f.Width) * uint64(f.Height) * uint64(f.Channels) * f.SampleSize()
}

// Valid returns true if format may be used.
func (f Format) Valid() bool {
	if f.Width == 0 || f.Height == 0 || f.Channels == 0 || f.Channels > 4 {
		return false
	}
	switch f.Depth {
	case 8, 16, 32:
		return true
	default:
		return false
	}
}
