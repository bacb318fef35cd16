package lod

import "github.com/banshee-data/pointmesh/internal/geometry"

// candidate is a queued edge collapse: drop merges into keep at pos.
type candidate struct {
	keep, drop   int
	pos          geometry.Vec
	cost         float64
	sKeep, sDrop int
}

// candidateQueue is a min-heap by cost with ties broken by vertex indices.
type candidateQueue []candidate

func (q candidateQueue) Len() int { return len(q) }
func (q candidateQueue) Less(i, j int) bool {
	a, b := q[i], q[j]
	if a.cost != b.cost {
		return a.cost < b.cost
	}
	if a.keep != b.keep {
		return a.keep < b.keep
	}
	return a.drop < b.drop
}
func (q candidateQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *candidateQueue) Push(x any)   { *q = append(*q, x.(candidate)) }
func (q *candidateQueue) Pop() any {
	old := *q
	c := old[len(old)-1]
	*q = old[:len(old)-1]
	return c
}
