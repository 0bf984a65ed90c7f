package render

import (
	"github.com/outofforest/scm/types"
)

// Draw describes terminal page drawn by the walker.
type Draw struct {
	Node types.NodeID

	// Layers stores layer of every dataset, in the order datasets were passed to the walker.
	Layers []types.Layer

	// ParentLayers stores layers of the parent page, used while page fades in.
	ParentLayers []types.Layer

	// Fade is 0 when page was just loaded and 1 when it is fully visible.
	Fade float32

	// Edges has bit d set when neighbor in direction d is drawn at coarser level.
	Edges uint8
}

// Renderer is the rendering backend consuming pages.
type Renderer interface {
	// CreateTextureArray allocates texture array of the format with the number of layers.
	CreateTextureArray(format types.Format, layers uint64) (types.TextureArray, error)

	// DeleteTextureArray releases texture array.
	DeleteTextureArray(array types.TextureArray)

	// BindTextureArray binds texture array for the draws following.
	BindTextureArray(array types.TextureArray)

	// UploadLayer copies pixels into the layer. Pixels are not retained after return.
	UploadLayer(array types.TextureArray, layer types.Layer, pixels []byte)

	// DrawTerminalPage draws the geometry of the page.
	DrawTerminalPage(draw Draw)
}
