package poisson

import (
	"math"

	"github.com/banshee-data/pointmesh/internal/geometry"
	"gonum.org/v1/gonum/spatial/r3"
)

// kuhn splits a cube into 6 tetrahedra around the 0-7 diagonal. Corner c has
// offset (c&1, c>>1&1, c>>2&1). Every cube uses the same diagonal, so the
// split faces of neighbouring cubes match.
var kuhn = [6][4]int{
	{0, 1, 3, 7}, {0, 1, 5, 7},
	{0, 2, 3, 7}, {0, 2, 6, 7},
	{0, 4, 5, 7}, {0, 4, 6, 7},
}

// edgeClamp keeps interpolated vertices off grid nodes, so two crossings
// that share a node never coincide.
const edgeClamp = 1e-3

// extractor polygonises the iso surface on the finest grid. A node is
// inside when its value is strictly below the iso value.
type extractor struct {
	o      *Octree
	finest int
	iso    float64
	margin float64
	linear bool

	nodeValue map[cellKey]float64
	vertexOf  map[[2]cellKey]int
	vertices  []geometry.Vec
	triangles []geometry.Triangle
}

// extract walks the octree from the base level down. Cells without finer
// children whose corners all lie on one side of the iso value are skipped
// whole; all others are subdivided to the finest level and split into
// tetrahedra.
func (o *Octree) extract(iso float64, linear bool) *geometry.Mesh {
	e := &extractor{
		o:         o,
		finest:    o.Finest().Depth,
		iso:       iso,
		margin:    1e-12 * (1 + math.Abs(iso)),
		linear:    linear,
		nodeValue: make(map[cellKey]float64),
		vertexOf:  make(map[[2]cellKey]int),
	}
	base := o.Base()
	base.forEachCell(func(i, j, k int) {
		c := [3]int{i, j, k}
		e.visit(base.Depth, c, base, c)
	})
	return geometry.NewMesh(e.vertices, e.triangles)
}

// valueFromOwner interpolates the owner cell oc of level owner at node g of
// level depth, using exact integer offsets.
func valueFromOwner(owner *Level, oc [3]int, g [3]int, depth int) float64 {
	scale := 1 << (depth - owner.Depth)
	var t [3]float64
	for a := 0; a < 3; a++ {
		t[a] = float64(g[a]-oc[a]*scale) / float64(scale)
	}
	return trilinear(owner, oc, t)
}

func (e *extractor) visit(depth int, c [3]int, owner *Level, oc [3]int) {
	if depth == e.finest {
		e.polygonize(c, owner, oc)
		return
	}
	active := owner.Depth == depth
	child := e.o.level(depth + 1)
	refined := false
	if active {
		for n := 0; n < 8 && !refined; n++ {
			refined = child.Active(2*c[0]+n&1, 2*c[1]+n>>1&1, 2*c[2]+n>>2&1)
		}
	}
	if !refined && e.oneSided(depth, c, owner, oc) {
		return
	}
	for n := 0; n < 8; n++ {
		cc := [3]int{2*c[0] + n&1, 2*c[1] + n>>1&1, 2*c[2] + n>>2&1}
		if active && child.Active(cc[0], cc[1], cc[2]) {
			e.visit(depth+1, cc, child, cc)
		} else {
			e.visit(depth+1, cc, owner, oc)
		}
	}
}

// oneSided reports whether all corners of cell c lie clearly on one side of
// the iso value. Inside an unrefined cell the function is a convex
// combination of its corners, so no crossing can hide inside.
func (e *extractor) oneSided(depth int, c [3]int, owner *Level, oc [3]int) bool {
	below, above := 0, 0
	for n := 0; n < 8; n++ {
		g := [3]int{c[0] + n&1, c[1] + n>>1&1, c[2] + n>>2&1}
		v := valueFromOwner(owner, oc, g, depth)
		switch {
		case v < e.iso-e.margin:
			below++
		case v > e.iso+e.margin:
			above++
		}
	}
	return below == 8 || above == 8
}

func (e *extractor) finestValue(g [3]int, owner *Level, oc [3]int) float64 {
	key := packKey(g[0], g[1], g[2])
	if v, ok := e.nodeValue[key]; ok {
		return v
	}
	v := valueFromOwner(owner, oc, g, e.finest)
	e.nodeValue[key] = v
	return v
}

type corner struct {
	key    cellKey
	pos    geometry.Vec
	value  float64
	inside bool
}

func (e *extractor) polygonize(c [3]int, owner *Level, oc [3]int) {
	h := e.o.Finest().H
	var corners [8]corner
	inside := 0
	for n := 0; n < 8; n++ {
		g := [3]int{c[0] + n&1, c[1] + n>>1&1, c[2] + n>>2&1}
		v := e.finestValue(g, owner, oc)
		in := v < e.iso
		if in {
			inside++
		}
		corners[n] = corner{
			key:    packKey(g[0], g[1], g[2]),
			pos:    r3.Add(e.o.Origin, geometry.Vec{X: float64(g[0]) * h, Y: float64(g[1]) * h, Z: float64(g[2]) * h}),
			value:  v,
			inside: in,
		}
	}
	if inside == 0 || inside == 8 {
		return
	}
	for _, tet := range kuhn {
		e.polygonizeTet([4]corner{corners[tet[0]], corners[tet[1]], corners[tet[2]], corners[tet[3]]})
	}
}

func (e *extractor) polygonizeTet(t [4]corner) {
	var in, out []corner
	for _, c := range t {
		if c.inside {
			in = append(in, c)
		} else {
			out = append(out, c)
		}
	}
	if len(in) == 0 || len(out) == 0 {
		return
	}
	var inC, outC geometry.Vec
	for _, c := range in {
		inC = r3.Add(inC, c.pos)
	}
	for _, c := range out {
		outC = r3.Add(outC, c.pos)
	}
	// Direction of increasing function value.
	up := r3.Sub(r3.Scale(1/float64(len(out)), outC), r3.Scale(1/float64(len(in)), inC))

	switch len(in) {
	case 1:
		a := in[0]
		e.emit(up, e.vertex(a, out[0]), e.vertex(a, out[1]), e.vertex(a, out[2]))
	case 3:
		a := out[0]
		e.emit(up, e.vertex(a, in[0]), e.vertex(a, in[1]), e.vertex(a, in[2]))
	case 2:
		a, b, c, d := in[0], in[1], out[0], out[1]
		e.emitQuad(up, e.vertex(a, c), e.vertex(a, d), e.vertex(b, d), e.vertex(b, c))
	}
}

// vertex returns the shared surface vertex on grid edge (a, b).
func (e *extractor) vertex(a, b corner) int {
	if b.key < a.key {
		a, b = b, a
	}
	key := [2]cellKey{a.key, b.key}
	if idx, ok := e.vertexOf[key]; ok {
		return idx
	}
	t := 0.5
	if e.linear {
		if d := b.value - a.value; d != 0 {
			t = (e.iso - a.value) / d
		}
		t = math.Max(edgeClamp, math.Min(1-edgeClamp, t))
	}
	p := r3.Add(a.pos, r3.Scale(t, r3.Sub(b.pos, a.pos)))
	e.vertices = append(e.vertices, p)
	idx := len(e.vertices) - 1
	e.vertexOf[key] = idx
	return idx
}

// emit appends a triangle wound so its normal points along up.
func (e *extractor) emit(up geometry.Vec, v0, v1, v2 int) {
	p0, p1, p2 := e.vertices[v0], e.vertices[v1], e.vertices[v2]
	n := r3.Cross(r3.Sub(p1, p0), r3.Sub(p2, p0))
	if r3.Dot(n, up) < 0 {
		v1, v2 = v2, v1
	}
	e.triangles = append(e.triangles, geometry.Triangle{v0, v1, v2})
}

// emitQuad appends the cyclic quad q0..q3 as two triangles sharing the
// q0-q2 diagonal, wound as a unit so both normals point along up.
func (e *extractor) emitQuad(up geometry.Vec, q0, q1, q2, q3 int) {
	p0, p1, p2, p3 := e.vertices[q0], e.vertices[q1], e.vertices[q2], e.vertices[q3]
	n := r3.Cross(r3.Sub(p2, p0), r3.Sub(p3, p1))
	if r3.Dot(n, up) < 0 {
		q1, q3 = q3, q1
	}
	e.triangles = append(e.triangles, geometry.Triangle{q0, q1, q2}, geometry.Triangle{q0, q2, q3})
}
