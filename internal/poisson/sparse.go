package poisson

import (
	"errors"
	"fmt"
	"math"
	"runtime"

	"github.com/banshee-data/pointmesh/internal/geometry"
	"github.com/banshee-data/pointmesh/internal/monitoring"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// SparseMatrix is a square matrix in compressed sparse row form.
type SparseMatrix struct {
	n      int
	rowPtr []int
	cols   []int
	vals   []float64
}

// NewSparseMatrix returns an empty n×n matrix ready for AppendRow.
func NewSparseMatrix(n int) *SparseMatrix {
	return &SparseMatrix{n: n, rowPtr: make([]int, 1, n+1)}
}

// AppendRow adds the next row. Rows must be appended in order.
func (m *SparseMatrix) AppendRow(cols []int, vals []float64) {
	m.cols = append(m.cols, cols...)
	m.vals = append(m.vals, vals...)
	m.rowPtr = append(m.rowPtr, len(m.cols))
}

// Dim returns the number of rows.
func (m *SparseMatrix) Dim() int {
	return m.n
}

// NNZ returns the number of stored entries.
func (m *SparseMatrix) NNZ() int {
	return len(m.vals)
}

// At returns entry (i, j).
func (m *SparseMatrix) At(i, j int) float64 {
	var v float64
	for p := m.rowPtr[i]; p < m.rowPtr[i+1]; p++ {
		if m.cols[p] == j {
			v += m.vals[p]
		}
	}
	return v
}

// Diagonal returns the main diagonal.
func (m *SparseMatrix) Diagonal() []float64 {
	d := make([]float64, m.n)
	for i := range d {
		d[i] = m.At(i, i)
	}
	return d
}

func (m *SparseMatrix) mulRows(dst, x []float64, lo, hi int) {
	for i := lo; i < hi; i++ {
		var s float64
		for p := m.rowPtr[i]; p < m.rowPtr[i+1]; p++ {
			s += m.vals[p] * x[m.cols[p]]
		}
		dst[i] = s
	}
}

// parallelRowThreshold is the row count below which MulVec stays serial.
const parallelRowThreshold = 4096

// MulVec sets dst = m·x, splitting rows across at most workers goroutines.
// Every row is reduced by a single goroutine, so the result does not depend
// on the worker count.
func (m *SparseMatrix) MulVec(dst, x []float64, workers int) {
	if workers <= 1 || m.n < parallelRowThreshold {
		m.mulRows(dst, x, 0, m.n)
		return
	}
	chunk := (m.n + workers - 1) / workers
	var g errgroup.Group
	for lo := 0; lo < m.n; lo += chunk {
		hi := min(lo+chunk, m.n)
		g.Go(func() error {
			m.mulRows(dst, x, lo, hi)
			return nil
		})
	}
	_ = g.Wait()
}

// Solver solves A·x = b for a symmetric positive definite A.
type Solver interface {
	Solve(a *SparseMatrix, b []float64) ([]float64, error)
}

// Default conjugate gradient settings.
const (
	DefaultCGTolerance     = 1e-7
	DefaultCGMaxIterations = 2000
)

// ConjugateGradient is a Jacobi-preconditioned conjugate gradient solver.
// It records statistics of its last run, so a value must not be shared by
// concurrent reconstructions.
type ConjugateGradient struct {
	// Tolerance is the target residual norm relative to ‖b‖.
	Tolerance float64
	// MaxIterations caps the iteration count; the best iterate so far is
	// returned when it is reached.
	MaxIterations int
	// Workers bounds mat-vec parallelism; <= 0 uses GOMAXPROCS.
	Workers int

	// Iterations and Residual describe the most recent Solve.
	Iterations int
	Residual   float64
}

// Solve implements Solver. The initial guess is zero.
func (cg *ConjugateGradient) Solve(a *SparseMatrix, b []float64) ([]float64, error) {
	n := a.Dim()
	if len(b) != n {
		return nil, fmt.Errorf("rhs length %d does not match matrix dimension %d: %w", len(b), n, geometry.ErrInvalidConfiguration)
	}
	tol := cg.Tolerance
	if tol <= 0 {
		tol = DefaultCGTolerance
	}
	maxIter := cg.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultCGMaxIterations
	}
	workers := cg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	x := make([]float64, n)
	cg.Iterations, cg.Residual = 0, 0
	bNorm := floats.Norm(b, 2)
	if n == 0 || bNorm == 0 {
		return x, nil
	}

	invDiag := a.Diagonal()
	for i, d := range invDiag {
		if d <= 0 {
			return nil, fmt.Errorf("non-positive diagonal at row %d: %w", i, geometry.ErrDegenerateInput)
		}
		invDiag[i] = 1 / d
	}

	r := make([]float64, n)
	copy(r, b)
	z := make([]float64, n)
	floats.MulTo(z, invDiag, r)
	p := make([]float64, n)
	copy(p, z)
	ap := make([]float64, n)
	rz := floats.Dot(r, z)

	for it := 1; it <= maxIter; it++ {
		a.MulVec(ap, p, workers)
		pAp := floats.Dot(p, ap)
		if pAp <= 0 || math.IsNaN(pAp) {
			return nil, fmt.Errorf("conjugate gradient breakdown at iteration %d: %w", it, geometry.ErrDegenerateInput)
		}
		alpha := rz / pAp
		floats.AddScaled(x, alpha, p)
		floats.AddScaled(r, -alpha, ap)

		cg.Iterations = it
		cg.Residual = floats.Norm(r, 2) / bNorm
		if cg.Residual <= tol {
			break
		}
		floats.MulTo(z, invDiag, r)
		rzNext := floats.Dot(r, z)
		beta := rzNext / rz
		rz = rzNext
		// p = z + beta*p
		floats.Scale(beta, p)
		floats.Add(p, z)
	}
	if cg.Residual > tol {
		monitoring.Logf("[Poisson] conjugate gradient stopped at max iterations=%d residual=%.3g", cg.Iterations, cg.Residual)
	}
	return x, nil
}

// MaxDenseDim bounds the system size DenseCholesky accepts.
const MaxDenseDim = 4000

// DenseCholesky solves small systems exactly with a dense Cholesky
// factorisation.
type DenseCholesky struct{}

// Solve implements Solver.
func (DenseCholesky) Solve(a *SparseMatrix, b []float64) ([]float64, error) {
	n := a.Dim()
	if len(b) != n {
		return nil, fmt.Errorf("rhs length %d does not match matrix dimension %d: %w", len(b), n, geometry.ErrInvalidConfiguration)
	}
	if n == 0 {
		return nil, nil
	}
	if n > MaxDenseDim {
		return nil, fmt.Errorf("dense solve of %d unknowns exceeds %d: %w", n, MaxDenseDim, geometry.ErrInvalidConfiguration)
	}
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for p := a.rowPtr[i]; p < a.rowPtr[i+1]; p++ {
			if j := a.cols[p]; j >= i {
				sym.SetSym(i, j, sym.At(i, j)+a.vals[p])
			}
		}
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(sym); !ok {
		return nil, fmt.Errorf("matrix is not positive definite: %w", geometry.ErrDegenerateInput)
	}
	x := mat.NewVecDense(n, nil)
	if err := chol.SolveVecTo(x, mat.NewVecDense(n, append([]float64(nil), b...))); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, fmt.Errorf("cholesky solve: %v: %w", err, geometry.ErrDegenerateInput)
		}
		monitoring.Logf("[Poisson] dense solve is ill-conditioned: %v", err)
	}
	return x.RawVector().Data, nil
}
