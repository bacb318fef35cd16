package meshio

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/pointmesh/internal/geometry"
)

// ReadXYZ parses whitespace- or comma-separated "x y z" rows. Extra columns
// are ignored, as are blank lines and lines starting with '#'. Rows with a
// non-finite coordinate are skipped and counted.
func ReadXYZ(r io.Reader) (*geometry.PointCloud, int, error) {
	sc := newScanner(r)
	var points []geometry.Vec
	skipped := 0
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || text[0] == '#' {
			continue
		}
		fields := strings.FieldsFunc(text, func(r rune) bool {
			return r == ' ' || r == '\t' || r == ','
		})
		if len(fields) < 3 {
			return nil, 0, fmt.Errorf("line %d: expected at least 3 columns, got %d", line, len(fields))
		}
		p, err := parseVec(fields[0], fields[1], fields[2])
		if err != nil {
			return nil, 0, fmt.Errorf("line %d: %w", line, err)
		}
		if !geometry.IsFinite(p) {
			skipped++
			continue
		}
		points = append(points, p)
	}
	if err := sc.Err(); err != nil {
		return nil, 0, err
	}
	return geometry.NewPointCloud(points), skipped, nil
}

// WriteXYZ writes one "x y z" row per point.
func WriteXYZ(w io.Writer, cloud *geometry.PointCloud) error {
	for _, p := range cloud.Points {
		if _, err := fmt.Fprintf(w, "%s %s %s\n", formatFloat(p.X), formatFloat(p.Y), formatFloat(p.Z)); err != nil {
			return err
		}
	}
	return nil
}

func parseVec(xs, ys, zs string) (geometry.Vec, error) {
	x, err := strconv.ParseFloat(xs, 64)
	if err != nil {
		return geometry.Vec{}, fmt.Errorf("parse x: %w", err)
	}
	y, err := strconv.ParseFloat(ys, 64)
	if err != nil {
		return geometry.Vec{}, fmt.Errorf("parse y: %w", err)
	}
	z, err := strconv.ParseFloat(zs, 64)
	if err != nil {
		return geometry.Vec{}, fmt.Errorf("parse z: %w", err)
	}
	return geometry.Vec{X: x, Y: y, Z: z}, nil
}

// formatFloat prints the shortest representation that parses back to v.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
