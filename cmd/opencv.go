//go:build !noopencv

package cmd

import (
	"github.com/andresmejia3/visage/internal/cv"
	"github.com/andresmejia3/visage/internal/inference"
	"github.com/andresmejia3/visage/internal/pipeline"
)

func openCVNet(name, weights, config string) (inference.Service, error) {
	n, err := cv.ReadNet(name, weights, config)
	if err != nil {
		return nil, err
	}
	return n, nil
}

func openCVCapture(input string) (capture, error) {
	c, err := cv.OpenCapture(input)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func openCVWindow(title string) (pipeline.Sink, error) {
	return cv.NewWindow(title), nil
}
