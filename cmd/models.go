package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/andresmejia3/visage/internal/config"
	"github.com/andresmejia3/visage/internal/inference"
	"github.com/andresmejia3/visage/internal/pipeline"
	"github.com/andresmejia3/visage/internal/worker"
)

// addModelFlags registers the flags shared by every command that loads networks.
func addModelFlags(flags *pflag.FlagSet, opts *Options) {
	flags.StringVarP(&opts.ConfigPath, "config", "c", "", "YAML model configuration file")
	flags.StringVar(&opts.ModelsDir, "models-dir", "", "Directory holding the default model files (default: $VISAGE_MODELS_DIR or ./models)")
	flags.StringVar(&opts.Backend, "backend", "", "Inference backend: opencv or worker (overrides the config file)")
	flags.Float64VarP(&opts.Threshold, "threshold", "t", 0.7, "Face detection confidence threshold (exclusive)")
	flags.IntVarP(&opts.Padding, "padding", "p", 20, "Pixels kept around each face before classifying it")
	flags.StringVar(&opts.WorkerTimeout, "worker-timeout", "", "Per-inference timeout of the worker backend (e.g. '30s')")
}

// loadConfig layers defaults, the config file and explicitly set flags.
func loadConfig(flags *pflag.FlagSet, opts Options) (config.Config, error) {
	dir := opts.ModelsDir
	if dir == "" {
		dir = os.Getenv("VISAGE_MODELS_DIR")
	}
	if dir == "" {
		dir = "models"
	}

	cfg := config.Default(dir)
	if opts.ConfigPath != "" {
		var err error
		if cfg, err = config.Load(opts.ConfigPath, cfg); err != nil {
			return config.Config{}, err
		}
	}

	if opts.Backend != "" {
		cfg.Backend = opts.Backend
	}
	if flags.Changed("threshold") {
		cfg.Threshold = opts.Threshold
	}
	if flags.Changed("padding") {
		cfg.Padding = opts.Padding
	}
	if opts.WorkerTimeout != "" {
		d, err := time.ParseDuration(opts.WorkerTimeout)
		if err != nil {
			return config.Config{}, fmt.Errorf("invalid worker-timeout format (use '30s', '500ms'): %w", err)
		}
		cfg.Worker.Timeout = d
	}
	return cfg, cfg.Validate()
}

// loadModels opens the three networks. Nothing is left open on failure.
func loadModels(ctx context.Context, cfg config.Config) (*inference.Models, error) {
	open := func(name string, m config.Model) (inference.Service, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		Logger.Debugw("loading network", "name", name, "backend", cfg.Backend, "weights", m.Weights)
		if cfg.Backend == config.BackendWorker {
			w, err := worker.Start(name, cfg.WorkerArgs(m), cfg.Worker.Timeout)
			if err != nil {
				return nil, err
			}
			return w, nil
		}
		return openCVNet(name, m.Weights, m.Config)
	}

	models := &inference.Models{}
	for _, slot := range []struct {
		name  string
		model config.Model
		dst   *inference.Service
	}{
		{"face detector", cfg.Detector, &models.Detector},
		{"gender classifier", cfg.Gender, &models.Gender},
		{"age classifier", cfg.Age, &models.Age},
	} {
		svc, err := open(slot.name, slot.model)
		if err != nil {
			models.Close()
			return nil, err
		}
		*slot.dst = svc
	}
	return models, nil
}

// pipelineConfig maps the model configuration onto loop settings.
func pipelineConfig(cfg config.Config) pipeline.Config {
	pc := pipeline.DefaultConfig()
	pc.Threshold = cfg.Threshold
	pc.Padding = cfg.Padding
	return pc
}
