/*
 *	Copyright 2023 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

// Package checkpoints implements saving and loading of the values of Variables (the trainable
// parameters of a graph).
//
// The main object is the Handler, created by calling Build, followed by the various options
// setting and finally calling Config.Done. If a previously saved checkpoint exists in the directory,
// Done loads it into the Variables.
//
// Example:
//
//	loss := buildModel(...)
//	opt := optimizers.New(0.01, 1e-6, loss)
//	checkpoint := checkpoints.Build(opt.Variables()...).Dir(*flagCheckpoint).Keep(3).MustDone()
//	opt.Fit()
//	must.M(checkpoint.Save(opt.Iterations(), opt.Losses()[len(opt.Losses())-1]))
//
// For one-off serialization to any io.Writer, see Write and Read.
package checkpoints

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/eventflow/dualgraph/graph"
	"github.com/eventflow/dualgraph/types/batches"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	// DirPermMode is the default directory creation permission (before umask) used.
	DirPermMode = os.FileMode(0770)
)

// Write serializes the values of the given Variables, keyed by their names.
func Write(w io.Writer, variables ...*graph.Node) error {
	values, err := valuesByName(variables)
	if err != nil {
		return err
	}
	return errors.Wrap(gob.NewEncoder(w).Encode(values), "failed to encode variables")
}

// Read deserializes the variable values written by Write, keyed by the variable names.
func Read(r io.Reader) (map[string]*batches.Batch, error) {
	var values map[string]*batches.Batch
	if err := gob.NewDecoder(r).Decode(&values); err != nil {
		return nil, errors.Wrap(err, "failed to decode variables")
	}
	return values, nil
}

// Restore sets the value of each variable to the one with the same name in values.
// It returns the number of variables set. Variables not in values are left unchanged.
func Restore(values map[string]*batches.Batch, variables ...*graph.Node) (int, error) {
	var count int
	for _, v := range variables {
		value, found := values[v.VariableName()]
		if !found {
			klog.V(1).Infof("no saved value for %s", v)
			continue
		}
		if err := value.Shape().Check(v.Shape()); err != nil {
			return count, errors.WithMessagef(err, "can't restore %s", v)
		}
		v.SetValue(value)
		count++
	}
	return count, nil
}

func valuesByName(variables []*graph.Node) (map[string]*batches.Batch, error) {
	values := make(map[string]*batches.Batch, len(variables))
	for _, v := range variables {
		if !v.IsVariable() {
			return nil, errors.Errorf("%s is not a Variable, it can't be saved", v)
		}
		name := v.VariableName()
		if name == "" {
			return nil, errors.Errorf("%s has no name, it can't be saved", v)
		}
		if _, found := values[name]; found {
			return nil, errors.Errorf("more than one Variable named %q", name)
		}
		values[name] = v.Value()
	}
	return values, nil
}

// Config for the checkpoints Handler to be created. This is created with Build() and
// configured with the various methods. Once finished, call Done() and it will output
// a checkpoints.Handler that loads (if there are any previously saved checkpoints) and
// saves checkpoints.
type Config struct {
	variables []*graph.Node
	err       error

	dir  string
	keep int
}

// Build a configuration for building a checkpoints.Handler of the given variables.
// After configuring the Config object returned, call `Done` to get the configured checkpoints.Handler.
func Build(variables ...*graph.Node) *Config {
	c := &Config{
		variables: variables,
		keep:      1,
	}
	if _, err := valuesByName(variables); err != nil {
		c.setError(err)
	}
	return c
}

func (c *Config) setError(err error) {
	if c.err == nil {
		c.err = err
	}
}

// Dir sets the directory where to save / load the checkpoints. It is created if it doesn't exist.
//
// One must set either Dir or TempDir before building the checkpoints.Handler.
func (c *Config) Dir(dir string) *Config {
	c.dir = dir
	fi, err := os.Stat(dir)
	if err != nil && !os.IsNotExist(err) {
		c.setError(errors.Wrapf(err, "failed to os.Stat(%q)", dir))
		return c
	}
	if err == nil {
		if !fi.IsDir() {
			c.setError(errors.Errorf("directory name %q exists but it's a normal file, not a directory", dir))
		}
		return c
	}
	if err = os.MkdirAll(dir, DirPermMode); err != nil {
		c.setError(errors.Wrapf(err, "trying to create dir %q", dir))
	}
	return c
}

// TempDir creates a temporary directory under dir, with the pattern name, and uses this
// directory to load / save checkpoints. It's a convenience wrapper to os.MkdirTemp.
func (c *Config) TempDir(dir, pattern string) *Config {
	newDir, err := os.MkdirTemp(dir, pattern)
	if err != nil {
		c.setError(errors.Wrapf(err, "failed to create os.MkdirTemp(%q, %q)", dir, pattern))
		return c
	}
	c.dir = newDir
	return c
}

// Keep configures the number of checkpoints to keep. If set to -1, it will never erase older checkpoints.
// The default is 1.
func (c *Config) Keep(n int) *Config {
	c.keep = n
	return c
}

// Done creates a Handler with the current configuration, and loads the latest checkpoint,
// if there is one, into the variables.
func (c *Config) Done() (*Handler, error) {
	if c.err != nil {
		return nil, c.err
	}
	if c.dir == "" {
		return nil, errors.Errorf("directory for checkpoints not configured or empty")
	}
	h := &Handler{config: c, runID: uuid.New()}
	list, err := h.ListCheckpoints()
	if err != nil {
		return nil, err
	}
	h.checkpointsCount = maxCheckpointCount(list) + 1
	if len(list) > 0 {
		if err = h.Load(list[len(list)-1]); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// MustDone constructs the checkpoints.Handler. It panics if there was an error.
func (c *Config) MustDone() *Handler {
	h, err := c.Done()
	if err != nil {
		panic(errors.Wrap(err, "failed to create checkpoints.Handler"))
	}
	return h
}

// Handler saves and loads checkpoints of a set of Variables in a directory.
//
// Each checkpoint is a pair of files with the same base name: a JSON file with the metadata and
// a binary file with the gob encoded values.
type Handler struct {
	config           *Config
	checkpointsCount int
	runID            uuid.UUID
}

// Metadata is the information saved in JSON along with each checkpoint.
type Metadata struct {
	// RunID identifies the Handler that saved the checkpoint: checkpoints written by different
	// processes sharing a directory have different ids.
	RunID     uuid.UUID
	Iteration int
	Loss      float64
	Time      time.Time
	Variables []VariableInfo
}

// VariableInfo describes a saved variable.
type VariableInfo struct {
	Name  string
	Shape [3]int
}

const (
	baseNamePrefix = "checkpoint-"
	jsonNameSuffix = ".json"
	varDataSuffix  = ".bin"
)

// String implements fmt.Stringer.
func (h *Handler) String() string {
	return fmt.Sprintf("checkpoints.Handler(%q)", h.config.dir)
}

// RunID returns the random id of this Handler, saved in the Metadata of its checkpoints.
func (h *Handler) RunID() uuid.UUID { return h.runID }

// Dir returns the directory where checkpoints are saved.
func (h *Handler) Dir() string { return h.config.dir }

func (h *Handler) newCheckpointBaseName(iteration int) string {
	return fmt.Sprintf("%sn%07d-iteration-%08d", baseNamePrefix, h.checkpointsCount, iteration)
}

// ListCheckpoints returns the base file name of the checkpoints in the directory in order (older first).
func (h *Handler) ListCheckpoints() (checkpoints []string, err error) {
	entries, err := os.ReadDir(h.config.dir)
	if err != nil {
		return nil, errors.Wrapf(err, "%s listing checkpoints", h)
	}
	for _, entry := range entries {
		fileName := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(fileName, baseNamePrefix) || !strings.HasSuffix(fileName, jsonNameSuffix) {
			continue
		}
		checkpoints = append(checkpoints, strings.TrimSuffix(fileName, jsonNameSuffix))
	}
	sort.Strings(checkpoints)
	return checkpoints, nil
}

// HasCheckpoints returns whether there are any checkpoints saved.
func (h *Handler) HasCheckpoints() (bool, error) {
	list, err := h.ListCheckpoints()
	return len(list) > 0, err
}

var checkpointCountRegex = regexp.MustCompile(`^checkpoint-n(\d+)-`)

// maxCheckpointCount returns the largest count in the saved checkpoints, so the next
// checkpoint saved uses this count+1. It returns -1 if there are none.
func maxCheckpointCount(checkpoints []string) int {
	maxId := -1
	for _, name := range checkpoints {
		matches := checkpointCountRegex.FindStringSubmatch(name)
		if len(matches) != 2 {
			continue
		}
		if id, err := strconv.Atoi(matches[1]); err == nil && id > maxId {
			maxId = id
		}
	}
	return maxId
}

// Save writes a new checkpoint with the current values of the variables, and removes the
// excess of old checkpoints (see Config.Keep).
func (h *Handler) Save(iteration int, loss float64) error {
	values, err := valuesByName(h.config.variables)
	if err != nil {
		return err
	}
	baseName := h.newCheckpointBaseName(iteration)
	h.checkpointsCount++

	varFileName := filepath.Join(h.config.dir, baseName+varDataSuffix)
	varFile, err := os.Create(varFileName)
	if err != nil {
		return errors.Wrapf(err, "%s: failed to create checkpoint data file %s", h, varFileName)
	}
	if err = gob.NewEncoder(varFile).Encode(values); err != nil {
		_ = varFile.Close()
		return errors.Wrapf(err, "%s: failed to write checkpoint data file %s", h, varFileName)
	}
	if err = varFile.Close(); err != nil {
		return errors.Wrapf(err, "%s: failed to close checkpoint data file %s", h, varFileName)
	}

	metadata := Metadata{RunID: h.runID, Iteration: iteration, Loss: loss, Time: time.Now()}
	for _, v := range h.config.variables {
		metadata.Variables = append(metadata.Variables, VariableInfo{Name: v.VariableName(), Shape: v.Shape().Dims()})
	}
	jsonFileName := filepath.Join(h.config.dir, baseName+jsonNameSuffix)
	jsonFile, err := os.Create(jsonFileName)
	if err != nil {
		return errors.Wrapf(err, "%s: failed to create checkpoint metadata file %s", h, jsonFileName)
	}
	enc := json.NewEncoder(jsonFile)
	enc.SetIndent("", "\t")
	if err = enc.Encode(&metadata); err != nil {
		_ = jsonFile.Close()
		return errors.Wrapf(err, "%s: failed to write checkpoint metadata file %s", h, jsonFileName)
	}
	if err = jsonFile.Close(); err != nil {
		return errors.Wrapf(err, "%s: failed to close checkpoint metadata file %s", h, jsonFileName)
	}
	klog.V(1).Infof("%s: saved %s (iteration %d, loss=%g)", h, baseName, iteration, loss)
	return h.keepNCheckpoints()
}

// Metadata reads the metadata of the checkpoint with the given base name (see ListCheckpoints).
func (h *Handler) Metadata(baseName string) (*Metadata, error) {
	jsonFileName := filepath.Join(h.config.dir, baseName+jsonNameSuffix)
	contents, err := os.ReadFile(jsonFileName)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: failed to read checkpoint metadata file %s", h, jsonFileName)
	}
	metadata := &Metadata{}
	if err = json.Unmarshal(contents, metadata); err != nil {
		return nil, errors.Wrapf(err, "%s: failed to decode checkpoint metadata file %s", h, jsonFileName)
	}
	return metadata, nil
}

// Load sets the variables to the values saved in the checkpoint with the given base name
// (see ListCheckpoints). Done already loads the latest checkpoint.
func (h *Handler) Load(baseName string) error {
	varFileName := filepath.Join(h.config.dir, baseName+varDataSuffix)
	varFile, err := os.Open(varFileName)
	if err != nil {
		return errors.Wrapf(err, "%s: failed to open checkpoint data file %s", h, varFileName)
	}
	defer func() { _ = varFile.Close() }()
	values, err := Read(varFile)
	if err != nil {
		return errors.WithMessagef(err, "%s: checkpoint %s", h, baseName)
	}
	count, err := Restore(values, h.config.variables...)
	if err != nil {
		return errors.WithMessagef(err, "%s: checkpoint %s", h, baseName)
	}
	klog.V(1).Infof("%s: loaded %d variables from %s", h, count, baseName)
	return nil
}

// keepNCheckpoints removes the oldest checkpoints in excess of the configured number to keep.
func (h *Handler) keepNCheckpoints() error {
	if h.config.keep < 0 {
		return nil
	}
	list, err := h.ListCheckpoints()
	if err != nil {
		return err
	}
	if len(list) <= h.config.keep {
		return nil
	}
	for _, baseName := range list[:len(list)-h.config.keep] {
		for _, suffix := range []string{varDataSuffix, jsonNameSuffix} {
			fileName := filepath.Join(h.config.dir, baseName+suffix)
			if err = os.Remove(fileName); err != nil && !os.IsNotExist(err) {
				return errors.Wrapf(err, "%s failed to remove excess checkpoint file %q", h, fileName)
			}
		}
	}
	return nil
}
