package normals

import (
	"container/heap"
	"math"

	"github.com/banshee-data/pointmesh/internal/geometry"
	"gonum.org/v1/gonum/spatial/r3"
)

// orient flips normals in place so neighbouring normals agree in sign and
// returns the number of flips.
//
// Every connected component of the neighbour graph is handled separately.
// It is seeded at the point farthest from the component centroid, oriented
// away from the centroid, and the rest is reached along a Prim minimum
// spanning tree with edge weight 1 - |ni·nj|. A child whose normal is nearly
// parallel to its parent's (|cos| >= ambiguity) copies the parent's sign;
// otherwise the child is oriented away from the centroid.
func orient(positions, normals []geometry.Vec, adjacency [][]int, ambiguity float64) int {
	n := len(positions)
	comp := make([]int, n)
	for i := range comp {
		comp[i] = -1
	}
	visited := make([]bool, n)
	flips := 0

	flip := func(i int) {
		normals[i] = r3.Scale(-1, normals[i])
		flips++
	}
	awayFrom := func(i int, c geometry.Vec) {
		if r3.Dot(normals[i], r3.Sub(positions[i], c)) < 0 {
			flip(i)
		}
	}

	for start := 0; start < n; start++ {
		if comp[start] >= 0 {
			continue
		}
		members := collectComponent(start, adjacency, comp)

		var c geometry.Vec
		for _, i := range members {
			c = r3.Add(c, positions[i])
		}
		c = r3.Scale(1/float64(len(members)), c)

		seed, best := members[0], -1.0
		for _, i := range members {
			if d := r3.Norm2(r3.Sub(positions[i], c)); d > best || (d == best && i < seed) {
				seed, best = i, d
			}
		}
		awayFrom(seed, c)

		pq := &edgeQueue{}
		visited[seed] = true
		pushEdges(pq, seed, adjacency, normals, visited)
		for pq.Len() > 0 {
			e := heap.Pop(pq).(treeEdge)
			if visited[e.child] {
				continue
			}
			visited[e.child] = true
			d := r3.Dot(normals[e.parent], normals[e.child])
			if math.Abs(d) >= ambiguity {
				if d < 0 {
					flip(e.child)
				}
			} else {
				awayFrom(e.child, c)
			}
			pushEdges(pq, e.child, adjacency, normals, visited)
		}
	}
	return flips
}

// collectComponent labels every point reachable from start and returns
// them in discovery order.
func collectComponent(start int, adjacency [][]int, comp []int) []int {
	members := []int{start}
	comp[start] = start
	for k := 0; k < len(members); k++ {
		for _, j := range adjacency[members[k]] {
			if comp[j] < 0 {
				comp[j] = start
				members = append(members, j)
			}
		}
	}
	return members
}

func pushEdges(pq *edgeQueue, from int, adjacency [][]int, normals []geometry.Vec, visited []bool) {
	for _, to := range adjacency[from] {
		if visited[to] {
			continue
		}
		w := 1 - math.Abs(r3.Dot(normals[from], normals[to]))
		heap.Push(pq, treeEdge{weight: w, parent: from, child: to})
	}
}

type treeEdge struct {
	weight        float64
	parent, child int
}

// edgeQueue is a min-heap of candidate spanning-tree edges with a total
// order, so traversal does not depend on insertion order.
type edgeQueue []treeEdge

func (q edgeQueue) Len() int { return len(q) }
func (q edgeQueue) Less(i, j int) bool {
	a, b := q[i], q[j]
	if a.weight != b.weight {
		return a.weight < b.weight
	}
	if a.child != b.child {
		return a.child < b.child
	}
	return a.parent < b.parent
}
func (q edgeQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *edgeQueue) Push(x any)   { *q = append(*q, x.(treeEdge)) }
func (q *edgeQueue) Pop() any {
	old := *q
	e := old[len(old)-1]
	*q = old[:len(old)-1]
	return e
}
