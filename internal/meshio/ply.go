package meshio

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/pointmesh/internal/geometry"
)

type plyProperty struct {
	name   string
	isList bool
}

type plyElement struct {
	name  string
	count int
	props []plyProperty
}

func (e *plyElement) index(names ...string) int {
	for i, p := range e.props {
		for _, n := range names {
			if p.name == n {
				return i
			}
		}
	}
	return -1
}

type plyHeader struct {
	elements []*plyElement
	line     int
}

func (h *plyHeader) element(name string) *plyElement {
	for _, e := range h.elements {
		if e.name == name {
			return e
		}
	}
	return nil
}

func readPLYHeader(sc lineScanner) (*plyHeader, error) {
	h := &plyHeader{}
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("empty file")
	}
	h.line++
	if strings.TrimSpace(sc.Text()) != "ply" {
		return nil, fmt.Errorf("missing ply magic")
	}
	var cur *plyElement
	for sc.Scan() {
		h.line++
		parts := strings.Fields(sc.Text())
		if len(parts) == 0 {
			continue
		}
		switch parts[0] {
		case "format":
			if len(parts) < 2 || parts[1] != "ascii" {
				return nil, fmt.Errorf("line %d: format %s: %w", h.line, strings.Join(parts[1:], " "), ErrUnsupportedFormat)
			}
		case "comment", "obj_info":
		case "element":
			if len(parts) != 3 {
				return nil, fmt.Errorf("line %d: malformed element", h.line)
			}
			n, err := strconv.Atoi(parts[2])
			if err != nil || n < 0 {
				return nil, fmt.Errorf("line %d: invalid element count %q", h.line, parts[2])
			}
			cur = &plyElement{name: parts[1], count: n}
			h.elements = append(h.elements, cur)
		case "property":
			if cur == nil {
				return nil, fmt.Errorf("line %d: property before element", h.line)
			}
			switch {
			case len(parts) == 5 && parts[1] == "list":
				cur.props = append(cur.props, plyProperty{name: parts[4], isList: true})
			case len(parts) == 3:
				cur.props = append(cur.props, plyProperty{name: parts[2]})
			default:
				return nil, fmt.Errorf("line %d: malformed property", h.line)
			}
		case "end_header":
			return h, nil
		default:
			return nil, fmt.Errorf("line %d: unknown header keyword %q", h.line, parts[0])
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("missing end_header")
}

// plyBody walks element rows in header order and hands each row's values to
// visit, split per property. Scalar properties get one value, list
// properties get their items.
type plyBody struct {
	sc   lineScanner
	line int
}

func (b *plyBody) rows(e *plyElement, visit func(row int, values [][]string) error) error {
	values := make([][]string, len(e.props))
	for row := 0; row < e.count; row++ {
		if !b.sc.Scan() {
			if err := b.sc.Err(); err != nil {
				return err
			}
			return fmt.Errorf("element %s: expected %d rows, found %d: %w", e.name, e.count, row, io.ErrUnexpectedEOF)
		}
		b.line++
		tokens := strings.Fields(b.sc.Text())
		pos := 0
		for i, p := range e.props {
			if pos >= len(tokens) {
				return fmt.Errorf("line %d: too few values for element %s", b.line, e.name)
			}
			if !p.isList {
				values[i] = tokens[pos : pos+1]
				pos++
				continue
			}
			n, err := strconv.Atoi(tokens[pos])
			if err != nil || n < 0 || pos+1+n > len(tokens) {
				return fmt.Errorf("line %d: invalid list length for %s", b.line, p.name)
			}
			values[i] = tokens[pos+1 : pos+1+n]
			pos += 1 + n
		}
		if err := visit(row, values); err != nil {
			return fmt.Errorf("line %d: %w", b.line, err)
		}
	}
	return nil
}

func readPLYVertices(e *plyElement, b *plyBody) ([]geometry.Vec, int, error) {
	xi, yi, zi := e.index("x"), e.index("y"), e.index("z")
	if xi < 0 || yi < 0 || zi < 0 {
		return nil, 0, fmt.Errorf("vertex element lacks x, y or z")
	}
	out := make([]geometry.Vec, 0, e.count)
	skipped := 0
	err := b.rows(e, func(_ int, v [][]string) error {
		p, err := parseVec(v[xi][0], v[yi][0], v[zi][0])
		if err != nil {
			return err
		}
		if !geometry.IsFinite(p) {
			skipped++
			return nil
		}
		out = append(out, p)
		return nil
	})
	return out, skipped, err
}

// ReadPLYPoints reads the vertex element of an ASCII PLY file as a point
// cloud. Faces and other elements are ignored.
func ReadPLYPoints(r io.Reader) (*geometry.PointCloud, int, error) {
	sc := newScanner(r)
	h, err := readPLYHeader(sc)
	if err != nil {
		return nil, 0, err
	}
	b := &plyBody{sc: sc, line: h.line}
	for _, e := range h.elements {
		if e.name == "vertex" {
			points, skipped, err := readPLYVertices(e, b)
			if err != nil {
				return nil, 0, err
			}
			return geometry.NewPointCloud(points), skipped, nil
		}
		if err := b.rows(e, func(int, [][]string) error { return nil }); err != nil {
			return nil, 0, err
		}
	}
	return nil, 0, fmt.Errorf("no vertex element")
}

// ReadMeshPLY reads an ASCII PLY mesh with vertex and face elements. Faces
// with more than three corners are fan-triangulated; corner indices are
// range-checked. Non-finite vertices are rejected because faces refer to
// them by position.
func ReadMeshPLY(r io.Reader) (*geometry.Mesh, error) {
	sc := newScanner(r)
	h, err := readPLYHeader(sc)
	if err != nil {
		return nil, err
	}
	if h.element("vertex") == nil {
		return nil, fmt.Errorf("no vertex element")
	}
	b := &plyBody{sc: sc, line: h.line}

	var (
		vertices  []geometry.Vec
		triangles []geometry.Triangle
		haveVerts bool
	)
	for _, e := range h.elements {
		switch e.name {
		case "vertex":
			var skipped int
			vertices, skipped, err = readPLYVertices(e, b)
			if err != nil {
				return nil, err
			}
			if skipped > 0 {
				return nil, fmt.Errorf("%d non-finite vertices: %w", skipped, geometry.ErrDegenerateInput)
			}
			haveVerts = true
		case "face":
			if !haveVerts {
				return nil, fmt.Errorf("face element precedes vertex element")
			}
			fi := e.index("vertex_indices", "vertex_index")
			if fi < 0 || !e.props[fi].isList {
				return nil, fmt.Errorf("face element lacks a vertex_indices list")
			}
			triangles = make([]geometry.Triangle, 0, e.count)
			err = b.rows(e, func(_ int, v [][]string) error {
				corners := v[fi]
				if len(corners) < 3 {
					return fmt.Errorf("face with %d corners", len(corners))
				}
				idx := make([]int, len(corners))
				for i, c := range corners {
					n, err := strconv.Atoi(c)
					if err != nil {
						return fmt.Errorf("parse face index: %w", err)
					}
					if n < 0 || n >= len(vertices) {
						return fmt.Errorf("face index %d out of range [0, %d)", n, len(vertices))
					}
					idx[i] = n
				}
				for i := 1; i+1 < len(idx); i++ {
					triangles = append(triangles, geometry.Triangle{idx[0], idx[i], idx[i+1]})
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
		default:
			if err := b.rows(e, func(int, [][]string) error { return nil }); err != nil {
				return nil, err
			}
		}
	}
	return geometry.NewMesh(vertices, triangles), nil
}

// WritePLY writes m as ASCII PLY with double-precision coordinates so a
// written mesh reads back bit-identical.
func WritePLY(w io.Writer, m *geometry.Mesh) error {
	_, err := fmt.Fprintf(w, "ply\nformat ascii 1.0\ncomment pointmesh\nelement vertex %d\nproperty double x\nproperty double y\nproperty double z\nelement face %d\nproperty list uchar int vertex_indices\nend_header\n",
		len(m.Vertices), len(m.Triangles))
	if err != nil {
		return err
	}
	for _, v := range m.Vertices {
		if _, err := fmt.Fprintf(w, "%s %s %s\n", formatFloat(v.X), formatFloat(v.Y), formatFloat(v.Z)); err != nil {
			return err
		}
	}
	for _, t := range m.Triangles {
		if _, err := fmt.Fprintf(w, "3 %d %d %d\n", t[0], t[1], t[2]); err != nil {
			return err
		}
	}
	return nil
}
