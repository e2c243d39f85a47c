package report

import (
	"fmt"
	"image/color"
	"io"

	"github.com/banshee-data/lane.report/internal/analysis"
	"github.com/banshee-data/lane.report/internal/units"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

const (
	pngWidth  = 4 * vg.Inch
	pngHeight = 10 * vg.Inch
)

var (
	ballColor   = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	arrowsColor = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	breakColor  = color.RGBA{R: 44, G: 160, B: 44, A: 255}
	edgeColor   = color.Gray{Y: 80}
)

// SavePNG writes the lane-space trajectory of res to path. The image format
// follows the extension of path.
func SavePNG(path, title string, res *analysis.Result) error {
	p, err := lanePlot(title, res)
	if err != nil {
		return err
	}
	if err := p.Save(pngWidth, pngHeight, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// WritePNG writes the same plot as SavePNG to w as PNG.
func WritePNG(w io.Writer, title string, res *analysis.Result) error {
	p, err := lanePlot(title, res)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(pngWidth, pngHeight, "png")
	if err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

func lanePlot(title string, res *analysis.Result) (*plot.Plot, error) {
	m := res.Metrics
	width := laneWidth(res)
	lengthFt := res.Request.FarFt

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s\narrows %s, breakpoint %s, %s", title,
		boardLabel(m.ArrowsBoard), boardLabel(m.BreakpointBoard), speedLabel(m.SpeedMPH))
	p.X.Label.Text = "Across lane (in)"
	p.Y.Label.Text = "Down lane (ft)"
	p.X.Min, p.X.Max = 0, width
	p.Y.Min, p.Y.Max = 0, lengthFt

	for _, x := range []float64{0, width} {
		edge, err := plotter.NewLine(plotter.XYs{{X: x, Y: 0}, {X: x, Y: lengthFt}})
		if err != nil {
			return nil, err
		}
		edge.Color = edgeColor
		edge.Width = vg.Points(2)
		p.Add(edge)
	}

	if err := addMarker(p, "arrows", m.ArrowsYIn, width, arrowsColor); err != nil {
		return nil, err
	}
	if err := addMarker(p, "breakpoint", m.BreakpointYIn, width, breakColor); err != nil {
		return nil, err
	}

	if len(res.LanePoints) > 0 {
		pts := make(plotter.XYs, len(res.LanePoints))
		for i, lp := range res.LanePoints {
			pts[i] = plotter.XY{X: lp.XIn, Y: units.InchesToFeet(lp.YIn)}
		}
		ball, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, err
		}
		ball.GlyphStyle.Color = ballColor
		ball.GlyphStyle.Radius = vg.Points(2.5)
		p.Add(ball)
		p.Legend.Add("ball", ball)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// addMarker draws a dashed line across the lane at yIn.
func addMarker(p *plot.Plot, name string, yIn, width float64, c color.Color) error {
	if yIn <= 0 {
		return nil
	}
	y := units.InchesToFeet(yIn)
	line, err := plotter.NewLine(plotter.XYs{{X: 0, Y: y}, {X: width, Y: y}})
	if err != nil {
		return err
	}
	line.Color = c
	line.Width = vg.Points(1)
	line.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	p.Add(line)
	p.Legend.Add(name, line)
	return nil
}
