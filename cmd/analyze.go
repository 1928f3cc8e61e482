package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"

	"github.com/andresmejia3/visage/internal/config"
	"github.com/andresmejia3/visage/internal/pipeline"
	"github.com/andresmejia3/visage/internal/utils"
)

var analyzeOpts Options

var analyzeCmd = &cobra.Command{
	Use:   "analyze <image_path>",
	Short: "Estimate age and gender of every face in a still image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		analyzeOpts.InputPath = args[0]
		cfg, err := loadConfig(cmd.Flags(), analyzeOpts)
		if err != nil {
			utils.ShowError("Invalid model configuration", err, nil)
			return err
		}
		return runAnalyze(cmd.Context(), analyzeOpts, cfg)
	},
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeOpts.OutputPath, "output", "o", "", "Write the annotated image to this path (format from extension)")
	addModelFlags(analyzeCmd.Flags(), &analyzeOpts)
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(ctx context.Context, opts Options, cfg config.Config) error {
	if _, err := os.Stat(opts.InputPath); os.IsNotExist(err) {
		utils.ShowError("Input file does not exist", err, nil)
		return err
	}

	img, err := imaging.Open(opts.InputPath, imaging.AutoOrientation(true))
	if err != nil {
		utils.ShowError("Failed to read image file", err, nil)
		return err
	}

	fmt.Fprintln(os.Stderr, "🚀 Loading networks...")
	models, err := loadModels(ctx, cfg)
	if err != nil {
		utils.ShowError("Failed to load models", err, nil)
		return err
	}
	defer models.Close()

	fmt.Fprintln(os.Stderr, "🔍 Analyzing faces...")
	annotated, faces, err := pipeline.Analyze(ctx, models, pipelineConfig(cfg), img)
	if err != nil {
		utils.ShowError("Inference failed", err, nil)
		return err
	}

	if len(faces) == 0 {
		fmt.Println("❌ No face detected in the provided image.")
		return nil
	}

	printFaces(os.Stdout, faces)

	if opts.OutputPath != "" {
		if err := imaging.Save(annotated, opts.OutputPath); err != nil {
			utils.ShowError("Failed to write annotated image", err, nil)
			return err
		}
		fmt.Fprintf(os.Stderr, "💾 Annotated image saved to %s\n", opts.OutputPath)
	}
	return nil
}

func printFaces(out io.Writer, faces []pipeline.Face) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "#\tBOX\tCONFIDENCE\tGENDER\tAGE")
	fmt.Fprintln(w, "-\t---\t----------\t------\t---")

	for i, f := range faces {
		b := f.Detection.Box
		gender, age := "-", "(region too small)"
		if f.Classified {
			gender, age = f.Result.Gender, f.Result.AgeRange()
		}
		fmt.Fprintf(w, "%d\t%d,%d-%d,%d\t%.2f\t%s\t%s\n",
			i+1, b.Min.X, b.Min.Y, b.Max.X, b.Max.Y, f.Detection.Confidence, gender, age)
	}
	w.Flush()
}
