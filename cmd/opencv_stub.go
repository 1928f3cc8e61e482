//go:build noopencv

package cmd

import (
	"errors"

	"github.com/andresmejia3/visage/internal/inference"
	"github.com/andresmejia3/visage/internal/pipeline"
)

var errNoOpenCV = errors.New("built without OpenCV (noopencv tag): use --backend worker, --ffmpeg and --headless")

func openCVNet(name, weights, config string) (inference.Service, error) {
	return nil, errNoOpenCV
}

func openCVCapture(input string) (capture, error) {
	return nil, errNoOpenCV
}

func openCVWindow(title string) (pipeline.Sink, error) {
	return nil, errNoOpenCV
}
