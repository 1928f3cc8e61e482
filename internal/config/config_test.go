package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// touchModels creates empty files for every model in cfg.
func touchModels(t *testing.T, cfg Config) {
	t.Helper()
	for _, m := range []Model{cfg.Detector, cfg.Gender, cfg.Age} {
		for _, p := range []string{m.Weights, m.Config} {
			if err := os.WriteFile(p, nil, 0o644); err != nil {
				t.Fatal(err)
			}
		}
	}
}

func TestDefault(t *testing.T) {
	cfg := Default("models")
	if cfg.Detector.Weights != filepath.Join("models", "opencv_face_detector_uint8.pb") {
		t.Errorf("Detector weights = %q", cfg.Detector.Weights)
	}
	if cfg.Age.Config != filepath.Join("models", "age_deploy.prototxt") {
		t.Errorf("Age config = %q", cfg.Age.Config)
	}
	if cfg.Threshold != 0.7 || cfg.Padding != 20 {
		t.Errorf("Unexpected defaults: threshold=%v padding=%d", cfg.Threshold, cfg.Padding)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "visage.yaml")
	yml := `
backend: worker
threshold: 0.5
gender:
  weights: nets/gender.onnx
  config: /abs/gender.json
worker:
  command: [./serve, --gpu]
  timeout: 5s
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path, Default("models"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := Default("models")
	want.Backend = BackendWorker
	want.Threshold = 0.5
	want.Gender = Model{Weights: filepath.Join(dir, "nets/gender.onnx"), Config: "/abs/gender.json"}
	want.Worker = Worker{Command: []string{"./serve", "--gpu"}, Timeout: 5 * time.Second}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_UnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("treshold: 0.5\n"), 0o644)

	if _, err := Load(path, Default("models")); err == nil {
		t.Error("Expected error for misspelled field")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), Default("models")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	valid := Default(dir)
	touchModels(t, valid)

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"Valid", func(*Config) {}, ""},
		{"Threshold of one", func(c *Config) { c.Threshold = 1 }, ""},
		{"Zero threshold", func(c *Config) { c.Threshold = 0 }, "threshold"},
		{"Threshold above one", func(c *Config) { c.Threshold = 1.5 }, "threshold"},
		{"Negative padding", func(c *Config) { c.Padding = -1 }, "padding"},
		{"Unknown backend", func(c *Config) { c.Backend = "tpu" }, "unknown backend"},
		{"Worker without command", func(c *Config) { c.Backend = BackendWorker; c.Worker.Command = nil }, "needs a command"},
		{"Missing weights", func(c *Config) { c.Age.Weights = filepath.Join(dir, "missing.caffemodel") }, "age model file"},
		{"Empty path", func(c *Config) { c.Detector.Config = "" }, "detector model path is empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestWorkerArgs(t *testing.T) {
	cfg := Default("m")
	cfg.Worker.Command = []string{"serve"}
	got := cfg.WorkerArgs(cfg.Gender)
	want := []string{"serve", "--weights", filepath.Join("m", "gender_net.caffemodel"), "--config", filepath.Join("m", "gender_deploy.prototxt")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("WorkerArgs mismatch (-want +got):\n%s", diff)
	}
	if len(cfg.Worker.Command) != 1 {
		t.Error("WorkerArgs must not modify the configured command")
	}
}
