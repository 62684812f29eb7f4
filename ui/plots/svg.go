package plots

import (
	"io"
	"math"

	mg "github.com/erkkah/margaid"
	"github.com/pkg/errors"
)

// RenderSVG renders the points (one line per MetricName) as an SVG diagram of the given dimensions to w.
// It is lighter than SaveImage and suited to be embedded in HTML reports.
//
// Points with NaN or infinite values, and, if logScale is set, non-positive values, are skipped.
func RenderSVG(w io.Writer, title string, points []Point, width, height int, logScale bool) error {
	perName := make(map[string]*mg.Series)
	var names []string
	allPoints := mg.NewSeries()
	for _, point := range points {
		if math.IsNaN(point.Value) || math.IsInf(point.Value, 0) || (logScale && point.Value <= 0) {
			continue
		}
		s, found := perName[point.MetricName]
		if !found {
			s = mg.NewSeries(mg.Titled(point.MetricName))
			perName[point.MetricName] = s
			names = append(names, point.MetricName)
		}
		value := mg.MakeValue(point.Step, point.Value)
		s.Add(value)
		allPoints.Add(value)
	}
	if len(names) == 0 {
		return errors.Errorf("no valid points to plot in %q", title)
	}

	allSeries := make([]*mg.Series, 0, len(names))
	for _, name := range names {
		allSeries = append(allSeries, perName[name])
	}
	yProjection := mg.Lin
	if logScale {
		yProjection = mg.Log
	}
	diagram := mg.New(width, height,
		mg.WithAutorange(mg.XAxis, allSeries...),
		mg.WithAutorange(mg.YAxis, allSeries...),
		mg.WithProjection(mg.YAxis, yProjection),
		mg.WithInset(70),
		mg.WithPadding(2),
		mg.WithColorScheme(90),
		mg.WithBackgroundColor("#f8f8f8"),
	)
	for _, s := range allSeries {
		diagram.Line(s, mg.UsingAxes(mg.XAxis, mg.YAxis), mg.UsingStrokeWidth(2))
	}
	diagram.Axis(allPoints, mg.XAxis, diagram.ValueTicker('f', 0, 10), false, "Iterations")
	diagram.Axis(allPoints, mg.YAxis, diagram.ValueTicker('g', 3, 10), true, "")
	diagram.Frame()
	diagram.Title(title)
	if len(names) > 1 {
		diagram.Legend(mg.BottomLeft)
	}
	return errors.Wrapf(diagram.Render(w), "failed to render plot %q", title)
}
