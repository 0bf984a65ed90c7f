package model

import (
	"cmp"
	"slices"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/samber/lo"

	"github.com/outofforest/scm/face"
	"github.com/outofforest/scm/render"
	"github.com/outofforest/scm/types"
)

// Cache provides pages to the walker.
type Cache interface {
	Status(node types.NodeID) bool
	GetPage(d types.DatasetIndex, node types.NodeID, frame types.Frame) (types.Layer, types.Frame)
	Offset(d types.DatasetIndex, node types.NodeID) uint64
	Bounds(d types.DatasetIndex, node types.NodeID) (float32, float32, bool)
	HasChildren(d types.DatasetIndex, node types.NodeID) bool
	TextureArray() types.TextureArray
}

// Stats reports the outcome of the frame.
type Stats struct {
	Drawn   uint64
	Culled  uint64
	Skipped uint64
	Refined uint64
}

// New creates walker.
func New(config Config, cache Cache, renderer render.Renderer) (*Walker, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &Walker{
		config:   config,
		cache:    cache,
		renderer: renderer,
		warp:     newWarp(config.Zoom, config.ZoomDirection),
		refined:  map[types.NodeID]struct{}{},
		drawn:    map[types.NodeID]struct{}{},
	}, nil
}

type terminal struct {
	node   types.NodeID
	layers int
	fade   float32
}

// Walker decides which pages are drawn in the frame.
type Walker struct {
	config   Config
	cache    Cache
	renderer render.Renderer
	warp     warp

	// State of the frame.
	cameras  []camera
	inView   []camera
	frame    types.Frame
	datasets []types.DatasetIndex
	height   []types.DatasetIndex
	stats    Stats

	terminals []terminal
	layers    []types.Layer
	refined   map[types.NodeID]struct{}
	drawn     map[types.NodeID]struct{}
}

// Frame walks the quadtrees of all the faces, requests pages and draws terminal ones. Color and height datasets
// are both textured, height datasets define the radius of the pages too.
func (w *Walker) Frame(views []View, frame types.Frame, color, height []types.DatasetIndex) Stats {
	w.stats = Stats{}
	if len(views) == 0 {
		return w.stats
	}

	w.frame = frame
	w.height = height
	w.datasets = append(append(w.datasets[:0], color...), height...)
	w.cameras = w.cameras[:0]
	for _, v := range views {
		w.cameras = append(w.cameras, newCamera(v))
	}
	w.terminals = w.terminals[:0]
	w.layers = w.layers[:0]
	clear(w.refined)
	clear(w.drawn)

	var roots [types.NumOfFaces]types.NodeID
	for f := range types.Face(types.NumOfFaces) {
		roots[f] = face.Root(f)
	}
	w.visitNearestFirst(roots[:], w.config.Radius0, w.config.Radius1)

	w.draw()

	return w.stats
}

func (w *Walker) visit(node types.NodeID) {
	if !w.cache.Status(node) {
		w.stats.Skipped++
		return
	}

	rmin, rmax := w.radius(node)

	corners := face.Corners(node)
	for i, c := range corners {
		corners[i] = w.warp.apply(c)
	}
	center := w.warp.apply(face.Center(node))

	visible := w.visible(center, corners, rmin, rmax)
	if len(visible) == 0 {
		w.stats.Culled++
		return
	}

	if w.size(visible, corners, rmax) <= w.config.Threshold || !w.hasChildren(node) {
		w.terminal(node)
		return
	}

	w.stats.Refined++
	w.refined[node] = struct{}{}
	children := face.Children(node)
	w.visitNearestFirst(children[:], rmin, rmax)
}

// visitNearestFirst visits nodes ordered by distance from the eye of the first view.
func (w *Walker) visitNearestFirst(nodes []types.NodeID, rmin, rmax float32) {
	r := (rmin + rmax) / 2
	eye := w.cameras[0].eye
	slices.SortStableFunc(nodes, func(a, b types.NodeID) int {
		return cmp.Compare(
			w.warp.apply(face.Center(a)).Mul(r).Sub(eye).Len(),
			w.warp.apply(face.Center(b)).Mul(r).Sub(eye).Len(),
		)
	})
	for _, n := range nodes {
		w.visit(n)
	}
}

func (w *Walker) hasChildren(node types.NodeID) bool {
	if face.Level(node) >= types.MaxDepth {
		return false
	}
	for _, d := range w.datasets {
		if w.cache.HasChildren(d, node) {
			return true
		}
	}
	return false
}

// radius returns radius range of the page merged from height datasets.
func (w *Walker) radius(node types.NodeID) (float32, float32) {
	if len(w.height) == 0 {
		return w.config.Radius0, w.config.Radius0
	}

	hmin, hmax := float32(1), float32(0)
	for _, d := range w.height {
		if minV, maxV, exists := w.cache.Bounds(d, node); exists {
			hmin = math32.Min(hmin, minV)
			hmax = math32.Max(hmax, maxV)
		}
	}
	if hmin > hmax {
		return w.config.Radius0, w.config.Radius1
	}

	dr := w.config.Radius1 - w.config.Radius0
	return w.config.Radius0 + lo.Clamp(hmin, 0, 1)*dr, w.config.Radius0 + lo.Clamp(hmax, 0, 1)*dr
}

// visible returns cameras seeing the bounding sphere of the page. Returned slice is valid until the next call.
func (w *Walker) visible(center mgl32.Vec3, corners [4]mgl32.Vec3, rmin, rmax float32) []camera {
	cosA := float32(1)
	for _, c := range corners {
		cosA = math32.Min(cosA, center.Dot(c))
	}
	sinA := math32.Sqrt(math32.Max(0, 1-cosA*cosA))

	// Page lies within the cone of half-angle A around center, between rmin and rmax.
	h := (rmin*cosA + rmax) / 2
	axial := (rmax - rmin*cosA) / 2
	radial := rmax * sinA
	radius := math32.Sqrt(axial*axial + radial*radial)
	sphere := center.Mul(h)

	w.inView = w.inView[:0]
	for _, c := range w.cameras {
		if !c.outside(sphere, radius) {
			w.inView = append(w.inView, c)
		}
	}
	return w.inView
}

// size returns the length in pixels of the longest page edge over the cameras.
func (w *Walker) size(cameras []camera, corners [4]mgl32.Vec3, r float32) float32 {
	var size float32
	for _, c := range cameras {
		var points [4]mgl32.Vec2
		for i, corner := range corners {
			p, ok := c.project(corner.Mul(r))
			if !ok {
				return math32.Inf(1)
			}
			points[i] = p
		}
		for _, e := range [4][2]types.Quadrant{
			{types.QuadrantNE, types.QuadrantNW},
			{types.QuadrantNW, types.QuadrantSW},
			{types.QuadrantSW, types.QuadrantSE},
			{types.QuadrantSE, types.QuadrantNE},
		} {
			size = math32.Max(size, points[e[0]].Sub(points[e[1]]).Len())
		}
	}
	return size
}

func (w *Walker) terminal(node types.NodeID) {
	start := len(w.layers)
	fade := float32(1)
	for _, d := range w.datasets {
		layer, stamp := w.cache.GetPage(d, node, w.frame)
		w.layers = append(w.layers, layer)
		if w.cache.Offset(d, node) != 0 {
			fade = math32.Min(fade, w.fade(stamp))
		}
	}

	if face.Level(node) > 0 {
		parent := face.Parent(node)
		for _, d := range w.datasets {
			layer, _ := w.cache.GetPage(d, parent, w.frame)
			w.layers = append(w.layers, layer)
		}
	}

	w.terminals = append(w.terminals, terminal{
		node:   node,
		layers: start,
		fade:   fade,
	})
	w.drawn[node] = struct{}{}
	w.stats.Drawn++
}

func (w *Walker) fade(stamp types.Frame) float32 {
	if w.config.FadeFrames == 0 || stamp > w.frame {
		return 1
	}
	return math32.Min(1, float32(w.frame-stamp)/float32(w.config.FadeFrames))
}

// edges returns the mask of edges shared with neighbors drawn at coarser level.
func (w *Walker) edges(node types.NodeID) uint8 {
	if face.Level(node) == 0 {
		return 0
	}

	var mask uint8
	for d, n := range face.Neighbors(node) {
		if w.coarser(n) {
			mask |= 1 << d
		}
	}
	return mask
}

// coarser returns true if an ancestor of the node is drawn.
func (w *Walker) coarser(node types.NodeID) bool {
	for a := face.Parent(node); ; a = face.Parent(a) {
		if _, drawn := w.drawn[a]; drawn {
			return true
		}
		if _, refined := w.refined[a]; refined || face.Level(a) == 0 {
			return false
		}
	}
}

func (w *Walker) draw() {
	w.renderer.BindTextureArray(w.cache.TextureArray())

	n := len(w.datasets)
	for _, t := range w.terminals {
		draw := render.Draw{
			Node:   t.node,
			Layers: w.layers[t.layers : t.layers+n],
			Fade:   t.fade,
			Edges:  w.edges(t.node),
		}
		if face.Level(t.node) > 0 {
			draw.ParentLayers = w.layers[t.layers+n : t.layers+2*n]
		}
		w.renderer.DrawTerminalPage(draw)
	}
}
