package visualization

import (
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Series is one named line of a per-slice plot
type Series struct {
	Name   string
	Values []float64
}

// NewProfilePlot draws every series against the slice index
func NewProfilePlot(title, yLabel string, series ...Series) (*plot.Plot, error) {
	if len(series) == 0 {
		return nil, errors.New("no series to plot")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "slice"
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())

	var lines []interface{}
	for _, s := range series {
		if len(s.Values) == 0 {
			return nil, errors.Errorf("series %q is empty", s.Name)
		}
		pts := make(plotter.XYs, len(s.Values))
		for i, v := range s.Values {
			pts[i].X = float64(i)
			pts[i].Y = v
		}
		lines = append(lines, s.Name, pts)
	}
	if err := plotutil.AddLines(p, lines...); err != nil {
		return nil, errors.Wrap(err, "failed to add lines")
	}
	return p, nil
}

// SaveProfilePlot draws the series and saves the plot; the format follows the
// file extension (png, svg, pdf, ...)
func SaveProfilePlot(filename, title, yLabel string, series ...Series) error {
	p, err := NewProfilePlot(title, yLabel, series...)
	if err != nil {
		return err
	}
	return errors.Wrap(p.Save(8*vg.Inch, 4*vg.Inch, filename), "failed to save plot")
}
