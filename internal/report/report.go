// Package report renders level-of-detail summaries as a PNG chart
// (gonum/plot) and an interactive HTML page (go-echarts).
package report

import (
	"fmt"
	"image/color"
	"io"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/pointmesh/internal/fsutil"
	"github.com/banshee-data/pointmesh/internal/monitoring"
)

// Output file names inside a run directory.
const (
	PNGName  = "lod_report.png"
	HTMLName = "lod_report.html"
)

// Level is the outcome of simplifying to one target.
type Level struct {
	Target    int
	Triangles int
	Vertices  int
	Collapses int
	MaxError  float64
	Reached   bool
}

// Summary describes one LoD generation run.
type Summary struct {
	Title         string
	BaseTriangles int
	Levels        []Level
}

// sorted returns the levels ordered by descending target.
func (s Summary) sorted() []Level {
	levels := make([]Level, len(s.Levels))
	copy(levels, s.Levels)
	sort.Slice(levels, func(i, j int) bool { return levels[i].Target > levels[j].Target })
	return levels
}

func (s Summary) title() string {
	if s.Title != "" {
		return s.Title
	}
	return "Level of detail"
}

var (
	achievedColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	targetColor   = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

// WritePNG draws achieved triangle count against target on log-log axes,
// with the ideal y = x line for reference.
func WritePNG(w io.Writer, s Summary) error {
	levels := s.sorted()
	if len(levels) == 0 {
		return fmt.Errorf("report: no levels to plot")
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s (base %d triangles)", s.title(), s.BaseTriangles)
	p.X.Label.Text = "Target triangles"
	p.Y.Label.Text = "Achieved triangles"

	achieved := make(plotter.XYs, 0, len(levels))
	ideal := make(plotter.XYs, 0, len(levels))
	logOK := true
	for i := len(levels) - 1; i >= 0; i-- {
		l := levels[i]
		achieved = append(achieved, plotter.XY{X: float64(l.Target), Y: float64(l.Triangles)})
		ideal = append(ideal, plotter.XY{X: float64(l.Target), Y: float64(l.Target)})
		if l.Triangles <= 0 {
			logOK = false
		}
	}
	if logOK {
		p.X.Scale = plot.LogScale{}
		p.Y.Scale = plot.LogScale{}
		p.X.Tick.Marker = plot.LogTicks{Prec: -1}
		p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	}

	idealLine, err := plotter.NewLine(ideal)
	if err != nil {
		return err
	}
	idealLine.Color = targetColor
	idealLine.Width = vg.Points(1)
	idealLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	p.Add(idealLine)
	p.Legend.Add("target", idealLine)

	line, points, err := plotter.NewLinePoints(achieved)
	if err != nil {
		return err
	}
	line.Color = achievedColor
	line.Width = vg.Points(1.5)
	points.Color = achievedColor
	points.Shape = draw.CircleGlyph{}
	p.Add(line, points)
	p.Legend.Add("achieved", line, points)
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	wt, err := p.WriterTo(8*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

// WriteHTML renders a page with a bar chart of target against achieved
// triangle counts and a line chart of the largest collapse error per level.
func WriteHTML(w io.Writer, s Summary) error {
	levels := s.sorted()
	if len(levels) == 0 {
		return fmt.Errorf("report: no levels to render")
	}

	x := make([]string, len(levels))
	targets := make([]opts.BarData, len(levels))
	achieved := make([]opts.BarData, len(levels))
	errs := make([]opts.LineData, len(levels))
	for i, l := range levels {
		x[i] = strconv.Itoa(l.Target)
		targets[i] = opts.BarData{Value: l.Target}
		achieved[i] = opts.BarData{Value: l.Triangles}
		errs[i] = opts.LineData{Value: l.MaxError}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: s.title(), Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: s.title(), Subtitle: fmt.Sprintf("base %d triangles", s.BaseTriangles)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "target", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "triangles", Type: "log"}),
	)
	bar.SetXAxis(x).
		AddSeries("target", targets).
		AddSeries("achieved", achieved,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	errLine := charts.NewLine()
	errLine.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "360px"}),
		charts.WithTitleOpts(opts.Title{Title: "Largest collapse error"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "target", NameLocation: "middle", NameGap: 25}),
	)
	errLine.SetXAxis(x).AddSeries("max error", errs)

	page := components.NewPage()
	page.AddCharts(bar, errLine)
	return page.Render(w)
}

// Write renders both reports into dir.
func Write(fsys fsutil.FileSystem, dir string, s Summary) error {
	for _, out := range []struct {
		name   string
		render func(io.Writer, Summary) error
	}{
		{PNGName, WritePNG},
		{HTMLName, WriteHTML},
	} {
		path := filepath.Join(dir, out.name)
		f, err := fsys.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		if err := out.render(f, s); err != nil {
			fsutil.Discard(f)
			return fmt.Errorf("render %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close %s: %w", path, err)
		}
	}
	monitoring.Logf("[Report] wrote %s and %s to %s levels=%d", PNGName, HTMLName, dir, len(s.Levels))
	return nil
}
