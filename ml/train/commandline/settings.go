package commandline

import (
	"encoding/json"
	"flag"
	"fmt"
	"strings"

	"github.com/eventflow/dualgraph/graph"
	"github.com/eventflow/dualgraph/ml/train/optimizers"
	"github.com/pkg/errors"
)

// Settings holds the hyperparameters of an optimizers.Optimization, so they can be set from the command line.
type Settings struct {
	LearningRate     float64 `json:"learning_rate"`
	Threshold        float64 `json:"threshold"`
	MaxIterations    int     `json:"max_iterations"`
	LogEvery         int     `json:"log_every"`
	GradientClipping float64 `json:"gradient_clipping"`
	ProgressBar      bool    `json:"progress_bar"`
}

// DefaultSettings returns the default values of the Settings.
func DefaultSettings() Settings {
	return Settings{
		LearningRate: 0.001,
		Threshold:    1e-5,
		LogEvery:     optimizers.DefaultLogEvery,
	}
}

// ParseSettings from settings -- typically the contents of a flag set by the user.
// The settings are a list separated by ";": e.g.: "learning_rate=0.01;max_iterations=10_000".
// The names of the parameters are the JSON names of the Settings fields.
//
// It returns defaults updated with the values in settings, or an error if a parameter
// is unknown or the parsing failed.
//
// For integer values, "_" is removed: it allows one to enter large numbers using it as a separator, like
// in Go. E.g.: 1_000_000 = 1000000.
func ParseSettings(settings string, defaults Settings) (Settings, error) {
	s := defaults
	for _, setting := range strings.Split(settings, ";") {
		if setting == "" {
			continue
		}
		parts := strings.Split(setting, "=")
		if len(parts) != 2 {
			return s, errors.Errorf("can't parse settings %q: each setting requires the format \"<param>=<value>\", got %q",
				settings, setting)
		}
		key, valueStr := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		var err error
		switch key {
		case "learning_rate":
			err = json.Unmarshal([]byte(valueStr), &s.LearningRate)
		case "threshold":
			err = json.Unmarshal([]byte(valueStr), &s.Threshold)
		case "max_iterations":
			err = json.Unmarshal([]byte(strings.ReplaceAll(valueStr, "_", "")), &s.MaxIterations)
		case "log_every":
			err = json.Unmarshal([]byte(strings.ReplaceAll(valueStr, "_", "")), &s.LogEvery)
		case "gradient_clipping":
			err = json.Unmarshal([]byte(valueStr), &s.GradientClipping)
		case "progress_bar":
			err = json.Unmarshal([]byte(valueStr), &s.ProgressBar)
		default:
			return s, errors.Errorf("unknown parameter %q in settings %q", key, settings)
		}
		if err != nil {
			return s, errors.Wrapf(err, "failed to parse value %q for parameter %q", valueStr, key)
		}
	}
	return s, nil
}

// CreateSettingsFlag creates a string flag with the given name (if empty it will be named
// "set") and with a description of the parameters and their default values.
//
// Example usage:
//
//	func main() {
//		settings := commandline.CreateSettingsFlag(commandline.DefaultSettings(), "")
//		flag.Parse()
//		s := must.M1(commandline.ParseSettings(*settings, commandline.DefaultSettings()))
//		opt := s.NewOptimization(loss)
//		...
//	}
func CreateSettingsFlag(defaults Settings, name string) *string {
	if name == "" {
		name = "set"
	}
	var parts []string
	parts = append(parts,
		fmt.Sprintf("\t\"learning_rate\": (float64) %g", defaults.LearningRate),
		fmt.Sprintf("\t\"threshold\": (float64) %g", defaults.Threshold),
		fmt.Sprintf("\t\"max_iterations\": (int) %d", defaults.MaxIterations),
		fmt.Sprintf("\t\"log_every\": (int) %d", defaults.LogEvery),
		fmt.Sprintf("\t\"gradient_clipping\": (float64) %g", defaults.GradientClipping),
		fmt.Sprintf("\t\"progress_bar\": (bool) %v", defaults.ProgressBar),
	)
	usage := fmt.Sprintf("Set optimization parameters, separated by \";\": e.g.: \"learning_rate=0.01;max_iterations=1000\". "+
		"Parameters and their default values:\n%s", strings.Join(parts, "\n"))
	return flag.String(name, "", usage)
}

// String implements fmt.Stringer, in the same format parsed by ParseSettings.
func (s Settings) String() string {
	return fmt.Sprintf("learning_rate=%g;threshold=%g;max_iterations=%d;log_every=%d;gradient_clipping=%g;progress_bar=%v",
		s.LearningRate, s.Threshold, s.MaxIterations, s.LogEvery, s.GradientClipping, s.ProgressBar)
}

// NewOptimization creates an optimizers.Optimization of loss configured with the settings.
func (s Settings) NewOptimization(loss *graph.Node) *optimizers.Optimization {
	return optimizers.New(s.LearningRate, s.Threshold, loss).
		MaxIterations(s.MaxIterations).
		LogEvery(s.LogEvery).
		GradientClipping(s.GradientClipping).
		ProgressBar(s.ProgressBar)
}
