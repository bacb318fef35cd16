package meshio

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/pointmesh/internal/geometry"
)

// ReadPCD parses an ASCII Point Cloud Data file. Only the x, y and z fields
// are read; other fields may be present in any order and with any COUNT.
// Rows with a non-finite coordinate (organised clouds mark holes with nan)
// are skipped and counted.
func ReadPCD(r io.Reader) (*geometry.PointCloud, int, error) {
	sc := newScanner(r)
	var (
		fields []string
		counts []int
		points = -1
		line   int
	)
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || text[0] == '#' {
			continue
		}
		parts := strings.Fields(text)
		key, args := strings.ToUpper(parts[0]), parts[1:]
		switch key {
		case "FIELDS":
			fields = args
		case "COUNT":
			counts = make([]int, len(args))
			for i, a := range args {
				n, err := strconv.Atoi(a)
				if err != nil || n < 1 {
					return nil, 0, fmt.Errorf("line %d: invalid COUNT %q", line, a)
				}
				counts[i] = n
			}
		case "POINTS":
			if len(args) != 1 {
				return nil, 0, fmt.Errorf("line %d: malformed POINTS", line)
			}
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 0 {
				return nil, 0, fmt.Errorf("line %d: invalid POINTS %q", line, args[0])
			}
			points = n
		case "DATA":
			if len(args) != 1 || strings.ToLower(args[0]) != "ascii" {
				return nil, 0, fmt.Errorf("line %d: DATA %s: %w", line, strings.Join(args, " "), ErrUnsupportedFormat)
			}
			return readPCDBody(sc, line, fields, counts, points)
		case "VERSION", "SIZE", "TYPE", "WIDTH", "HEIGHT", "VIEWPOINT":
		default:
			return nil, 0, fmt.Errorf("line %d: unknown PCD header %q", line, parts[0])
		}
	}
	if err := sc.Err(); err != nil {
		return nil, 0, err
	}
	return nil, 0, fmt.Errorf("missing DATA line")
}

func readPCDBody(sc lineScanner, line int, fields []string, counts []int, points int) (*geometry.PointCloud, int, error) {
	if counts == nil {
		counts = make([]int, len(fields))
		for i := range counts {
			counts[i] = 1
		}
	}
	if len(counts) != len(fields) {
		return nil, 0, fmt.Errorf("FIELDS and COUNT disagree: %d vs %d", len(fields), len(counts))
	}
	col := map[string]int{}
	width := 0
	for i, f := range fields {
		col[strings.ToLower(f)] = width
		width += counts[i]
	}
	xi, okX := col["x"]
	yi, okY := col["y"]
	zi, okZ := col["z"]
	if !okX || !okY || !okZ {
		return nil, 0, fmt.Errorf("FIELDS %v lack x, y or z", fields)
	}
	if points < 0 {
		return nil, 0, fmt.Errorf("missing POINTS header")
	}

	out := make([]geometry.Vec, 0, points)
	skipped, read := 0, 0
	for read < points && sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		row := strings.Fields(text)
		if len(row) < width {
			return nil, 0, fmt.Errorf("line %d: expected %d values, got %d", line, width, len(row))
		}
		read++
		p, err := parseVec(row[xi], row[yi], row[zi])
		if err != nil {
			return nil, 0, fmt.Errorf("line %d: %w", line, err)
		}
		if !geometry.IsFinite(p) {
			skipped++
			continue
		}
		out = append(out, p)
	}
	if err := sc.Err(); err != nil {
		return nil, 0, err
	}
	if read < points {
		return nil, 0, fmt.Errorf("expected %d points, found %d: %w", points, read, io.ErrUnexpectedEOF)
	}
	return geometry.NewPointCloud(out), skipped, nil
}

type lineScanner interface {
	Scan() bool
	Text() string
	Err() error
}

// WritePCD writes cloud as an unorganised ASCII PCD v0.7 file.
func WritePCD(w io.Writer, cloud *geometry.PointCloud) error {
	n := cloud.Len()
	_, err := fmt.Fprintf(w, "VERSION .7\nFIELDS x y z\nSIZE 8 8 8\nTYPE F F F\nCOUNT 1 1 1\nWIDTH %d\nHEIGHT 1\nVIEWPOINT 0 0 0 1 0 0 0\nPOINTS %d\nDATA ascii\n", n, n)
	if err != nil {
		return err
	}
	return WriteXYZ(w, cloud)
}
