// Package plots saves the loss curve of an optimization, as plot points (JSON) and as an image.
package plots

import (
	"encoding/json"
	"math"
	"os"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"k8s.io/klog/v2"
)

// TrainingPlotFileName is the default file name within a checkpoint directory to store
// plot points collected during training.
const TrainingPlotFileName = "training_plot_points.json"

// Point represents a training plot point. It is used to save/load plots.
type Point struct {
	// MetricName of this point, e.g. "loss".
	MetricName string

	// Step is the iteration this metric was measured.
	Step float64

	// Value is the metric captured.
	Value float64
}

// LossPoints converts the losses of each iteration (see optimizers.Optimization.Losses) to plot points.
// Iterations are numbered from 1.
func LossPoints(losses []float64) []Point {
	points := make([]Point, 0, len(losses))
	for ii, loss := range losses {
		points = append(points, Point{MetricName: "loss", Step: float64(ii + 1), Value: loss})
	}
	return points
}

// SavePoints writes the points to filePath in JSON.
func SavePoints(filePath string, points []Point) error {
	contents, err := json.MarshalIndent(points, "", "\t")
	if err != nil {
		return errors.Wrap(err, "failed to encode plot points")
	}
	return errors.Wrapf(os.WriteFile(filePath, contents, 0644), "failed to write plot points to %q", filePath)
}

// LoadPoints reads points saved with SavePoints.
func LoadPoints(filePath string) ([]Point, error) {
	contents, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read plot points from %q", filePath)
	}
	var points []Point
	if err = json.Unmarshal(contents, &points); err != nil {
		return nil, errors.Wrapf(err, "failed to decode plot points from %q", filePath)
	}
	return points, nil
}

// SaveImage plots the points (one line per MetricName) and saves the image to filePath. The format is
// taken from the file extension: e.g. ".png", ".svg" or ".pdf".
//
// Points with NaN or infinite values are skipped. If logScale is true, the values are plotted in log
// scale, in which case non-positive values are skipped as well.
func SaveImage(filePath, title string, points []Point, logScale bool) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "iteration"
	p.Y.Label.Text = "value"
	if logScale {
		p.Y.Scale = plot.LogScale{}
		p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	}

	var names []string
	byName := make(map[string]plotter.XYs)
	for _, point := range points {
		if math.IsNaN(point.Value) || math.IsInf(point.Value, 0) || (logScale && point.Value <= 0) {
			continue
		}
		if _, found := byName[point.MetricName]; !found {
			names = append(names, point.MetricName)
		}
		byName[point.MetricName] = append(byName[point.MetricName], plotter.XY{X: point.Step, Y: point.Value})
	}
	if len(names) == 0 {
		return errors.Errorf("no valid points to plot in %q", title)
	}
	for ii, name := range names {
		line, err := plotter.NewLine(byName[name])
		if err != nil {
			return errors.Wrapf(err, "failed to create line for %q", name)
		}
		line.Color = plotutil.Color(ii)
		p.Add(line)
		p.Legend.Add(name, line)
	}
	if err := p.Save(8*vg.Inch, 4*vg.Inch, filePath); err != nil {
		return errors.Wrapf(err, "failed to save plot to %q", filePath)
	}
	klog.V(1).Infof("saved plot %q to %q", title, filePath)
	return nil
}
