package stats

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	_ "gonum.org/v1/plot/vg/vgsvg"
)

// Series is one line on a plot.
type Series struct {
	Name string
	X, Y []float64
}

// Add appends a point to the series.
func (s *Series) Add(x, y float64) {
	s.X = append(s.X, x)
	s.Y = append(s.Y, y)
}

// Last returns the most recent y value, or zero if the series is empty.
func (s *Series) Last() float64 {
	if len(s.Y) == 0 {
		return 0
	}
	return s.Y[len(s.Y)-1]
}

// Max returns the index and value of the largest y value, index is -1 if the series is empty.
func (s *Series) Max() (int, float64) {
	if len(s.Y) == 0 {
		return -1, 0
	}
	ix := floats.MaxIdx(s.Y)
	return ix, s.Y[ix]
}

// SavePlot draws the series as lines and saves the plot to file. The format is taken from
// the file extension, e.g. .svg or .png.
func SavePlot(file, title, ylabel string, width, height vg.Length, series ...Series) error {
	p := newPlot()
	p.Title.Text = title
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = ylabel
	xmax := 1.0
	for i, s := range series {
		if len(s.X) == 0 {
			continue
		}
		if len(s.X) != len(s.Y) {
			return errors.Errorf("plot series %s has %d x values and %d y values", s.Name, len(s.X), len(s.Y))
		}
		pts := make(plotter.XYs, len(s.X))
		for j := range pts {
			pts[j].X, pts[j].Y = s.X[j], s.Y[j]
		}
		l, err := plotter.NewLine(pts)
		if err != nil {
			return errors.Wrapf(err, "plot series %s", s.Name)
		}
		l.Width = 2
		l.Color = plotutil.Color(i)
		p.Add(l)
		p.Legend.Add(s.Name, l)
		xmax = max(xmax, floats.Max(s.X))
	}
	p.X.Min, p.X.Max = 0, xmax
	return errors.Wrapf(p.Save(width, height, file), "save plot %s", file)
}

func newPlot() *plot.Plot {
	p := plot.New()
	p.X.Padding, p.Y.Padding = 0, 0
	p.X.Tick.Label.Font.Size = vg.Points(10)
	p.Y.Tick.Label.Font.Size = vg.Points(10)
	p.Legend.Top = true
	p.Legend.TextStyle.Font.Size = vg.Points(12)
	p.Add(plotter.NewGrid())
	return p
}
