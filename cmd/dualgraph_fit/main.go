// dualgraph_fit fits a small synthetic model with gradient descent and reports the result.
//
// Two tasks are available: "regression" fits a matrix W such that W·x_i ≈ y_i (MSE loss), and
// "classification" fits W such that softmax(W·x_i) predicts the one-hot label of x_i (cross-entropy loss).
// Regression samples can be read from a CSV file (see -csv and -labels), otherwise they are random.
//
// Example:
//
//	dualgraph_fit -task=classification -set="learning_rate=0.1;max_iterations=2_000;progress_bar=true" \
//	    -checkpoint=/tmp/fit -plot=/tmp/fit/loss.png
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/eventflow/dualgraph/graph"
	"github.com/eventflow/dualgraph/ml/checkpoints"
	"github.com/eventflow/dualgraph/ml/train/metrics"
	"github.com/eventflow/dualgraph/ml/train/commandline"
	"github.com/eventflow/dualgraph/types/batches"
	"github.com/eventflow/dualgraph/ui/plots"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"
)

var (
	flagTask       = flag.String("task", "regression", "Task to fit: \"regression\" or \"classification\".")
	flagSamples    = flag.Int("samples", 8, "Number of synthetic samples.")
	flagInputs     = flag.Int("inputs", 4, "Dimension of each input vector.")
	flagOutputs    = flag.Int("outputs", 3, "Dimension of each output vector (number of classes for classification).")
	flagSeed       = flag.Int64("seed", 42, "Seed for the synthetic data and the initial weights.")
	flagCheckpoint = flag.String("checkpoint", "", "Directory where to save checkpoints. "+
		"If it holds a previous checkpoint, the weights are restored from it before fitting.")
	flagCSV    = flag.String("csv", "", "CSV file (with header) with the regression samples. If empty, random samples are used.")
	flagLabels = flag.String("labels", "y", "Comma-separated names of the CSV columns used as labels, "+
		"all other columns are inputs.")
	flagKeep = flag.Int("keep", 3, "Number of checkpoints to keep. Set to -1 to keep all.")
	flagPlot = flag.String("plot", "", "If set, the loss curve is saved to this file. "+
		"Format is taken from the extension (.png, .svg, .pdf).")
)

func main() {
	klog.InitFlags(nil)
	settingsFlag := commandline.CreateSettingsFlag(defaultSettings(), "")
	flag.Parse()
	settings := must.M1(commandline.ParseSettings(*settingsFlag, defaultSettings()))
	klog.V(1).Infof("settings: %s", settings)

	batches.SetSeed(*flagSeed)
	var loss *graph.Node
	var accuracy func() float64
	var err error
	switch *flagTask {
	case "regression":
		var inputs, labels []*batches.Batch
		if *flagCSV != "" {
			inputs, labels, err = loadCSVFile(*flagCSV, strings.Split(*flagLabels, ","))
			if err != nil {
				klog.Exitf("failed to read samples from %q: %+v", *flagCSV, err)
			}
			klog.Infof("read %d samples from %q", len(inputs), *flagCSV)
		} else {
			inputs, labels = syntheticRegression(*flagSamples, *flagInputs, *flagOutputs)
		}
		loss = regression(inputs, labels)
	case "classification":
		loss, accuracy = classification(*flagSamples, *flagInputs, *flagOutputs)
	default:
		klog.Exitf("unknown -task=%q, see dualgraph_fit -help", *flagTask)
	}

	opt := settings.NewOptimization(loss).WithMetrics(metrics.NewMovingAverageLoss(0.05), metrics.NewMedianLoss())
	var checkpoint *checkpoints.Handler
	if *flagCheckpoint != "" {
		checkpoint = must.M1(checkpoints.Build(opt.Variables()...).Dir(*flagCheckpoint).Keep(*flagKeep).Done())
		klog.Infof("checkpoints in %s", checkpoint.Dir())
	}

	finalLoss, err := opt.FitOrError()
	if err != nil {
		klog.Exitf("failed to fit: %+v", err)
	}
	fmt.Printf("Final loss: %.6g\n", finalLoss)
	if accuracy != nil {
		// Fit leaves the graph evaluated with the weights before the last update.
		nodes, _ := graph.Collect(loss)
		graph.ResetAll(nodes)
		fmt.Printf("Accuracy: %.2f%%\n", 100*accuracy())
	}
	must.M(commandline.Report(os.Stdout, opt))

	if checkpoint != nil {
		must.M(checkpoint.Save(opt.Iterations(), finalLoss))
		points := plots.LossPoints(opt.Losses())
		must.M(plots.SavePoints(filepath.Join(checkpoint.Dir(), plots.TrainingPlotFileName), points))
	}
	if *flagPlot != "" {
		must.M(plots.SaveImage(*flagPlot, fmt.Sprintf("%s loss", *flagTask), plots.LossPoints(opt.Losses()), true))
	}
}

func defaultSettings() commandline.Settings {
	s := commandline.DefaultSettings()
	s.LearningRate = 0.05
	s.Threshold = 1e-8
	s.MaxIterations = 10_000
	return s
}
