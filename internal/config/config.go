// Package config describes which networks to load and how to run them.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v2"

	"github.com/andresmejia3/visage/internal/face"
	"github.com/andresmejia3/visage/internal/worker"
)

// Inference backends.
const (
	BackendOpenCV = "opencv"
	BackendWorker = "worker"
)

// Model is a topology/weights file pair.
type Model struct {
	Weights string `yaml:"weights"`
	Config  string `yaml:"config"`
}

// Worker configures the child-process backend. The model's files are
// appended to Command as --weights and --config.
type Worker struct {
	Command []string      `yaml:"command"`
	Timeout time.Duration `yaml:"timeout"`
}

// Config is the YAML model configuration.
type Config struct {
	Backend   string  `yaml:"backend"`
	Detector  Model   `yaml:"detector"`
	Gender    Model   `yaml:"gender"`
	Age       Model   `yaml:"age"`
	Threshold float64 `yaml:"threshold"`
	Padding   int     `yaml:"padding"`
	Worker    Worker  `yaml:"worker"`
}

// Default returns the stock face detector and Caffe age/gender networks
// under dir.
func Default(dir string) Config {
	return Config{
		Backend: BackendOpenCV,
		Detector: Model{
			Weights: filepath.Join(dir, "opencv_face_detector_uint8.pb"),
			Config:  filepath.Join(dir, "opencv_face_detector.pbtxt"),
		},
		Gender: Model{
			Weights: filepath.Join(dir, "gender_net.caffemodel"),
			Config:  filepath.Join(dir, "gender_deploy.prototxt"),
		},
		Age: Model{
			Weights: filepath.Join(dir, "age_net.caffemodel"),
			Config:  filepath.Join(dir, "age_deploy.prototxt"),
		},
		Threshold: face.DefaultThreshold,
		Padding:   face.DefaultPadding,
		Worker: Worker{
			Command: []string{"python3", "-u", "python/infer.py"},
			Timeout: worker.DefaultTimeout,
		},
	}
}

// Load reads path over base. Relative model paths are resolved against the
// directory of path.
func Load(path string, base Config) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var file Config
	if err := yaml.UnmarshalStrict(raw, &file); err != nil {
		return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	cfg := base
	if file.Backend != "" {
		cfg.Backend = file.Backend
	}
	mergeModel(&cfg.Detector, file.Detector, dir)
	mergeModel(&cfg.Gender, file.Gender, dir)
	mergeModel(&cfg.Age, file.Age, dir)
	if file.Threshold != 0 {
		cfg.Threshold = file.Threshold
	}
	if file.Padding != 0 {
		cfg.Padding = file.Padding
	}
	if len(file.Worker.Command) > 0 {
		cfg.Worker.Command = file.Worker.Command
	}
	if file.Worker.Timeout != 0 {
		cfg.Worker.Timeout = file.Worker.Timeout
	}
	return cfg, nil
}

func mergeModel(dst *Model, src Model, dir string) {
	if src.Weights != "" {
		dst.Weights = resolve(dir, src.Weights)
	}
	if src.Config != "" {
		dst.Config = resolve(dir, src.Config)
	}
}

func resolve(dir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// Validate reports every problem found, not just the first.
func (c Config) Validate() error {
	var err error
	switch c.Backend {
	case BackendOpenCV:
	case BackendWorker:
		if len(c.Worker.Command) == 0 {
			err = multierr.Append(err, errors.New("worker backend needs a command"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("unknown backend %q", c.Backend))
	}

	if c.Threshold <= 0 || c.Threshold > 1 {
		err = multierr.Append(err, fmt.Errorf("threshold %v must be in (0, 1]", c.Threshold))
	}
	if c.Padding < 0 {
		err = multierr.Append(err, fmt.Errorf("padding %d must not be negative", c.Padding))
	}

	for _, m := range []struct {
		name  string
		model Model
	}{{"detector", c.Detector}, {"gender", c.Gender}, {"age", c.Age}} {
		for _, p := range []string{m.model.Weights, m.model.Config} {
			if p == "" {
				err = multierr.Append(err, fmt.Errorf("%s model path is empty", m.name))
				continue
			}
			if _, statErr := os.Stat(p); statErr != nil {
				err = multierr.Append(err, fmt.Errorf("%s model file: %w", m.name, statErr))
			}
		}
	}
	return err
}

// WorkerArgs returns the command line that serves m.
func (c Config) WorkerArgs(m Model) []string {
	args := append([]string(nil), c.Worker.Command...)
	return append(args, "--weights", m.Weights, "--config", m.Config)
}
