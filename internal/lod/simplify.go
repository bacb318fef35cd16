// Package lod derives levels of detail from a triangle mesh by greedy
// quadric-error edge collapse.
//
// Simplification works on an arena of vertex and face records addressed by
// index. Candidate collapses live in a min-heap keyed by quadric error;
// per-vertex stamps invalidate stale entries lazily instead of updating the
// heap in place.
package lod

import (
	"container/heap"
	"context"
	"fmt"
	"sort"

	"github.com/banshee-data/pointmesh/internal/geometry"
	"github.com/banshee-data/pointmesh/internal/monitoring"
	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultBoundaryWeight scales the constraint planes added along open
// boundary edges.
const DefaultBoundaryWeight = 1.0

// ctxCheckInterval is the number of heap pops between context checks.
const ctxCheckInterval = 1024

// Options configures simplification.
type Options struct {
	// BoundaryWeight scales the quadric of the plane through every boundary
	// edge perpendicular to its face. Zero disables boundary preservation.
	BoundaryWeight float64
	// Workers bounds how many targets Generate simplifies at once; <= 0
	// uses GOMAXPROCS.
	Workers int
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{BoundaryWeight: DefaultBoundaryWeight}
}

// Stats describes one simplification run.
type Stats struct {
	Target    int
	Triangles int
	Collapses int
	// Rejected counts candidates skipped by the link condition, duplicate
	// face or normal flip checks.
	Rejected int
	// MaxError is the largest quadric error of an accepted collapse.
	MaxError float64
	// Reached reports whether the triangle count got down to Target.
	Reached bool
}

type vertex struct {
	pos     geometry.Vec
	q       Quadric
	faces   []int
	stamp   int
	removed bool
}

type face struct {
	v       [3]int
	removed bool
}

// arena is the mutable working copy of a mesh.
type arena struct {
	verts     []vertex
	faces     []face
	liveFaces int
}

// Simplify collapses edges of m until at most target triangles remain or no
// valid collapse is left. A target at or above the current count returns an
// unchanged copy. The input is never modified.
func Simplify(m *geometry.Mesh, target int, opts Options) (*geometry.Mesh, Stats, error) {
	return SimplifyContext(context.Background(), m, target, opts)
}

// SimplifyContext is Simplify with cancellation.
func SimplifyContext(ctx context.Context, m *geometry.Mesh, target int, opts Options) (*geometry.Mesh, Stats, error) {
	if target <= 0 {
		return nil, Stats{}, fmt.Errorf("lod target must be positive, got %d: %w", target, geometry.ErrInvalidConfiguration)
	}
	if opts.BoundaryWeight < 0 {
		return nil, Stats{}, fmt.Errorf("boundary weight must not be negative, got %v: %w", opts.BoundaryWeight, geometry.ErrInvalidConfiguration)
	}
	if m.IsEmpty() {
		return nil, Stats{}, fmt.Errorf("simplify: %w", geometry.ErrEmptyInput)
	}
	st := Stats{Target: target}
	if target >= m.TriangleCount() {
		st.Triangles = m.TriangleCount()
		st.Reached = true
		return m.Clone(), st, nil
	}

	a := newArena(m, opts.BoundaryWeight)
	pq := &candidateQueue{}
	for _, e := range geometry.SortedEdges(m.Edges()) {
		a.push(pq, e.A, e.B)
	}

	pops := 0
	for a.liveFaces > target && pq.Len() > 0 {
		pops++
		if pops%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, st, fmt.Errorf("simplify to %d: %w", target, err)
			}
		}
		c := heap.Pop(pq).(candidate)
		if a.stale(c) {
			continue
		}
		pos, cost, ok := a.placement(c)
		if !ok {
			st.Rejected++
			continue
		}
		a.collapse(c.keep, c.drop, pos)
		st.Collapses++
		if cost > st.MaxError {
			st.MaxError = cost
		}
		a.requeue(pq, c.keep)
	}

	out := a.mesh()
	st.Triangles = out.TriangleCount()
	st.Reached = st.Triangles <= target
	return out, st, nil
}

func newArena(m *geometry.Mesh, boundaryWeight float64) *arena {
	a := &arena{
		verts:     make([]vertex, len(m.Vertices)),
		faces:     make([]face, len(m.Triangles)),
		liveFaces: len(m.Triangles),
	}
	for i, p := range m.Vertices {
		a.verts[i].pos = p
	}
	for fi, t := range m.Triangles {
		a.faces[fi].v = t
		cross := m.TriangleCross(fi)
		area := 0.5 * r3.Norm(cross)
		for _, v := range t {
			a.verts[v].faces = append(a.verts[v].faces, fi)
		}
		if area == 0 {
			continue
		}
		q := PlaneQuadric(r3.Unit(cross), m.Vertices[t[0]], area)
		for _, v := range t {
			a.verts[v].q = a.verts[v].q.Add(q)
		}
	}
	if boundaryWeight > 0 {
		edges := m.Edges()
		for _, e := range geometry.SortedEdges(edges) {
			if len(edges[e]) != 1 {
				continue
			}
			fi := edges[e][0]
			n := m.TriangleNormal(fi)
			p0, p1 := m.Vertices[e.A], m.Vertices[e.B]
			dir := r3.Sub(p1, p0)
			perp := r3.Cross(dir, n)
			if r3.Norm2(perp) == 0 {
				continue
			}
			q := PlaneQuadric(r3.Unit(perp), p0, boundaryWeight*r3.Norm2(dir))
			a.verts[e.A].q = a.verts[e.A].q.Add(q)
			a.verts[e.B].q = a.verts[e.B].q.Add(q)
		}
	}
	return a
}

// push queues the collapse of edge (u, v) at its optimal position.
func (a *arena) push(pq *candidateQueue, u, v int) {
	if u > v {
		u, v = v, u
	}
	q := a.verts[u].q.Add(a.verts[v].q)
	pos, ok := q.Minimizer()
	if !ok {
		pos = r3.Scale(0.5, r3.Add(a.verts[u].pos, a.verts[v].pos))
	}
	heap.Push(pq, candidate{
		keep:  u,
		drop:  v,
		pos:   pos,
		cost:  q.Error(pos),
		sKeep: a.verts[u].stamp,
		sDrop: a.verts[v].stamp,
	})
}

func (a *arena) stale(c candidate) bool {
	k, d := &a.verts[c.keep], &a.verts[c.drop]
	return k.removed || d.removed || k.stamp != c.sKeep || d.stamp != c.sDrop
}

// neighbors returns the sorted vertices sharing a live face with v.
func (a *arena) neighbors(v int) []int {
	set := make(map[int]struct{})
	for _, fi := range a.verts[v].faces {
		f := &a.faces[fi]
		if f.removed {
			continue
		}
		for _, u := range f.v {
			if u != v {
				set[u] = struct{}{}
			}
		}
	}
	out := make([]int, 0, len(set))
	for u := range set {
		out = append(out, u)
	}
	sort.Ints(out)
	return out
}

func (f *face) has(v int) bool {
	return f.v[0] == v || f.v[1] == v || f.v[2] == v
}

// isBoundary reports whether v lies on an edge used by a single live face.
func (a *arena) isBoundary(v int) bool {
	count := make(map[int]int)
	for _, fi := range a.verts[v].faces {
		f := &a.faces[fi]
		if f.removed {
			continue
		}
		for _, u := range f.v {
			if u != v {
				count[u]++
			}
		}
	}
	for _, n := range count {
		if n == 1 {
			return true
		}
	}
	return false
}

// placement returns where the collapse of c may put the merged vertex. The
// queued optimum is tried first, then the edge midpoint and both endpoints
// in order of quadric error; the first position that flips no face wins.
func (a *arena) placement(c candidate) (geometry.Vec, float64, bool) {
	if !a.topologyOK(c.keep, c.drop) {
		return geometry.Vec{}, 0, false
	}
	if !a.flips(c.keep, c.drop, c.pos) && !a.flips(c.drop, c.keep, c.pos) {
		return c.pos, c.cost, true
	}
	k, d := a.verts[c.keep], a.verts[c.drop]
	q := k.q.Add(d.q)
	options := []geometry.Vec{r3.Scale(0.5, r3.Add(k.pos, d.pos)), k.pos, d.pos}
	sort.SliceStable(options, func(i, j int) bool { return q.Error(options[i]) < q.Error(options[j]) })
	for _, pos := range options {
		if !a.flips(c.keep, c.drop, pos) && !a.flips(c.drop, c.keep, pos) {
			return pos, q.Error(pos), true
		}
	}
	return geometry.Vec{}, 0, false
}

// topologyOK checks that merging drop into keep keeps the surface manifold
// and creates no duplicate face.
func (a *arena) topologyOK(keep, drop int) bool {
	shared := 0
	for _, fi := range a.verts[keep].faces {
		f := &a.faces[fi]
		if !f.removed && f.has(drop) {
			shared++
		}
	}
	if shared == 0 || shared > 2 {
		return false
	}

	// Link condition: the common neighbours are exactly the apexes of the
	// faces on the edge.
	nk, nd := a.neighbors(keep), a.neighbors(drop)
	common := 0
	for i, j := 0, 0; i < len(nk) && j < len(nd); {
		switch {
		case nk[i] == nd[j]:
			common++
			i++
			j++
		case nk[i] < nd[j]:
			i++
		default:
			j++
		}
	}
	if common != shared {
		return false
	}
	if shared == 2 && a.isBoundary(keep) && a.isBoundary(drop) {
		return false
	}

	// Faces of keep for duplicate detection, keyed without keep itself.
	existing := make(map[[2]int]struct{})
	for _, fi := range a.verts[keep].faces {
		f := &a.faces[fi]
		if f.removed || f.has(drop) {
			continue
		}
		existing[otherTwo(f.v, keep)] = struct{}{}
	}
	for _, fi := range a.verts[drop].faces {
		f := &a.faces[fi]
		if f.removed || f.has(keep) {
			continue
		}
		if _, dup := existing[otherTwo(f.v, drop)]; dup {
			return false
		}
	}
	return true
}

// flips reports whether moving v to pos turns any face of v that does not
// contain other upside down or flat.
func (a *arena) flips(v, other int, pos geometry.Vec) bool {
	for _, fi := range a.verts[v].faces {
		f := &a.faces[fi]
		if f.removed || f.has(other) {
			continue
		}
		var p, moved [3]geometry.Vec
		for k, u := range f.v {
			p[k] = a.verts[u].pos
			moved[k] = p[k]
			if u == v {
				moved[k] = pos
			}
		}
		before := r3.Cross(r3.Sub(p[1], p[0]), r3.Sub(p[2], p[0]))
		after := r3.Cross(r3.Sub(moved[1], moved[0]), r3.Sub(moved[2], moved[0]))
		if r3.Norm2(before) == 0 {
			continue
		}
		if r3.Dot(before, after) <= 0 {
			return true
		}
	}
	return false
}

func otherTwo(t [3]int, v int) [2]int {
	var out [2]int
	k := 0
	for _, u := range t {
		if u != v && k < 2 {
			out[k] = u
			k++
		}
	}
	if out[0] > out[1] {
		out[0], out[1] = out[1], out[0]
	}
	return out
}

// collapse merges drop into keep, placing keep at pos.
func (a *arena) collapse(keep, drop int, pos geometry.Vec) {
	k, d := &a.verts[keep], &a.verts[drop]
	k.pos = pos
	k.q = k.q.Add(d.q)
	for _, fi := range d.faces {
		f := &a.faces[fi]
		if f.removed {
			continue
		}
		if f.has(keep) {
			f.removed = true
			a.liveFaces--
			continue
		}
		for i, u := range f.v {
			if u == drop {
				f.v[i] = keep
			}
		}
		k.faces = append(k.faces, fi)
	}
	d.removed = true
	d.faces = nil

	live := k.faces[:0]
	for _, fi := range k.faces {
		if !a.faces[fi].removed {
			live = append(live, fi)
		}
	}
	k.faces = live
}

// requeue invalidates every queued edge touching keep or its neighbours and
// queues them again with current quadrics.
func (a *arena) requeue(pq *candidateQueue, keep int) {
	ring := append([]int{keep}, a.neighbors(keep)...)
	for _, v := range ring {
		a.verts[v].stamp++
	}
	queued := make(map[geometry.Edge]struct{})
	for _, v := range ring {
		for _, u := range a.neighbors(v) {
			e := geometry.NewEdge(u, v)
			if _, ok := queued[e]; ok {
				continue
			}
			queued[e] = struct{}{}
			a.push(pq, e.A, e.B)
		}
	}
}

// mesh compacts the live records into a fresh mesh, keeping index order.
func (a *arena) mesh() *geometry.Mesh {
	remap := make([]int, len(a.verts))
	out := &geometry.Mesh{}
	for i := range a.verts {
		remap[i] = -1
	}
	for _, f := range a.faces {
		if f.removed {
			continue
		}
		for _, v := range f.v {
			remap[v] = 0
		}
	}
	for i, v := range a.verts {
		if remap[i] < 0 {
			continue
		}
		remap[i] = len(out.Vertices)
		out.Vertices = append(out.Vertices, v.pos)
	}
	for _, f := range a.faces {
		if f.removed {
			continue
		}
		out.Triangles = append(out.Triangles, geometry.Triangle{remap[f.v[0]], remap[f.v[1]], remap[f.v[2]]})
	}
	return out
}

func logStats(st Stats) {
	monitoring.Logf("[LoD] target=%d triangles=%d collapses=%d rejected=%d max_error=%.3g reached=%v",
		st.Target, st.Triangles, st.Collapses, st.Rejected, st.MaxError, st.Reached)
}
