package cmd

import (
	"context"
	"fmt"
	"image"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/andresmejia3/visage/internal/config"
	"github.com/andresmejia3/visage/internal/pipeline"
	"github.com/andresmejia3/visage/internal/types"
	"github.com/andresmejia3/visage/internal/utils"
	"github.com/andresmejia3/visage/internal/video"
)

const windowTitle = "Detecting age and gender"

var watchOpts Options

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Detect faces and estimate age and gender on a live stream",
	Long: "Reads frames from a camera or video file, outlines every face and labels it with its estimated\n" +
		"gender and age bracket. Press q to quit (in headless mode: type q and press Enter).",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		if err := validateWatchFlags(&watchOpts); err != nil {
			utils.ShowError("Invalid flags", err, nil)
			return err
		}
		cfg, err := loadConfig(cmd.Flags(), watchOpts)
		if err != nil {
			utils.ShowError("Invalid model configuration", err, nil)
			return err
		}
		return runWatch(cmd.Context(), watchOpts, cfg)
	},
}

func init() {
	watchCmd.Flags().StringVarP(&watchOpts.InputPath, "input", "i", "0", "Camera index, device, stream URL or video file")
	watchCmd.Flags().BoolVar(&watchOpts.Headless, "headless", false, "Run without a window")
	watchCmd.Flags().StringVarP(&watchOpts.RecordPath, "record", "r", "", "Encode annotated frames to this video file (requires --headless)")
	watchCmd.Flags().BoolVar(&watchOpts.UseFFmpeg, "ffmpeg", false, "Decode the input with ffmpeg instead of OpenCV")
	watchCmd.Flags().StringVarP(&watchOpts.InputFormat, "format", "f", "", "ffmpeg input format (e.g. v4l2, avfoundation)")
	watchCmd.Flags().StringVar(&watchOpts.FinalWait, "final-wait", "0s", "How long to wait for a key once the input ends (0 waits for a key press)")
	addModelFlags(watchCmd.Flags(), &watchOpts)
	rootCmd.AddCommand(watchCmd)
}

// runWatch orchestrates a live session: models, source, sink, the loop, and the session summary.
func runWatch(ctx context.Context, opts Options, cfg config.Config) error {
	fmt.Fprintf(os.Stderr, "🧠 Loading %s networks...\n", cfg.Backend)
	models, err := loadModels(ctx, cfg)
	if err != nil {
		utils.ShowError("Failed to load models", err, nil)
		return err
	}
	defer models.Close()

	src, fps, total, err := openSource(ctx, opts)
	if err != nil {
		utils.ShowError("Failed to open input", err, nil)
		return err
	}

	sink, err := openSink(ctx, opts, fps)
	if err != nil {
		src.Close()
		utils.ShowError("Failed to open display", err, nil)
		return err
	}

	var bar *progressbar.ProgressBar
	if total > 0 {
		bar = progressbar.NewOptions(total,
			progressbar.OptionSetDescription("👀 Visage Watching"),
			progressbar.OptionSetWriter(os.Stderr), // Write bar to Stderr
			progressbar.OptionShowCount(),
		)
		src = &progressSource{Source: src, bar: bar}
	}

	pc := pipelineConfig(cfg)
	pc.FinalWait, _ = time.ParseDuration(opts.FinalWait)

	loop, err := pipeline.New(models, src, sink, pc, Logger)
	if err != nil {
		src.Close()
		sink.Close()
		return err
	}
	loop.Observer = func(e pipeline.Event) {
		if e.Kind == pipeline.EventFaceClassified {
			Logger.Infow("face", "frame", e.Frame, "gender", e.Face.Result.Gender, "age", e.Face.Result.AgeRange())
		}
	}

	started := time.Now()
	sessionID := utils.GenerateSessionID(opts.InputPath, started)
	fmt.Fprintf(os.Stderr, "🎥 Watching %s (session %s)\n", opts.InputPath, sessionID[:12])

	runErr := loop.Run(ctx)
	if bar != nil {
		bar.Finish()
	}

	stats := loop.Stats()
	fmt.Fprintf(os.Stderr, "\n🏁 Done. %d frames, %d faces classified, %d frames without faces.\n",
		stats.Frames, stats.Classified, stats.FacelessFrames)
	if h, ok := sink.(*video.Headless); ok && opts.RecordPath != "" {
		fmt.Fprintf(os.Stderr, "💾 Recorded %d frames to %s\n", h.Frames(), opts.RecordPath)
	}

	if DB != nil {
		sum := summarize(sessionID, opts.InputPath, cfg.Backend, started, time.Now(), stats)
		// The run context may already be cancelled by Ctrl+C
		if err := DB.SaveSession(context.WithoutCancel(ctx), sum); err != nil {
			utils.ShowError("Failed to save session summary", err, nil)
			if runErr == nil {
				runErr = err
			}
		}
	}

	if runErr != nil {
		utils.ShowError("Pipeline stopped", runErr, nil)
	}
	return runErr
}

// openSource returns the frame source with its frame rate and, for files,
// the expected frame count (0 when unknown).
func openSource(ctx context.Context, opts Options) (pipeline.Source, float64, int, error) {
	isFile := false
	if info, err := os.Stat(opts.InputPath); err == nil && info.Mode().IsRegular() {
		isFile = true
	}

	if opts.UseFFmpeg {
		var args []string
		if opts.InputFormat != "" {
			args = append(args, "-f", opts.InputFormat)
		}
		src, err := video.OpenFFmpeg(ctx, opts.InputPath, args...)
		if err != nil {
			return nil, 0, 0, err
		}
		fps, total := 30.0, 0
		if isFile {
			if f, err := utils.GetVideoFPS(ctx, opts.InputPath); err == nil {
				fps = f
			}
			total = utils.GetTotalFrames(ctx, opts.InputPath)
		}
		return src, fps, total, nil
	}

	c, err := openCVCapture(opts.InputPath)
	if err != nil {
		return nil, 0, 0, err
	}
	total := 0
	if isFile {
		total = c.FrameCount()
	}
	return c, c.FPS(), total, nil
}

func openSink(ctx context.Context, opts Options, fps float64) (pipeline.Sink, error) {
	if !opts.Headless {
		return openCVWindow(windowTitle)
	}
	var rec *video.Recorder
	if opts.RecordPath != "" {
		// Keep encoding past Ctrl+C so the file gets finalised on Close
		rec = video.NewRecorder(context.WithoutCancel(ctx), opts.RecordPath, fps)
	}
	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	if interactive {
		fmt.Fprintln(os.Stderr, "⌨️  Type q and press Enter to stop.")
	}
	return video.NewHeadless(os.Stdin, interactive, rec), nil
}

// capture is a frame source that knows its stream properties.
type capture interface {
	pipeline.Source
	FPS() float64
	FrameCount() int
}

// progressSource advances a progress bar for every frame read.
type progressSource struct {
	pipeline.Source
	bar *progressbar.ProgressBar
}

func (p *progressSource) Read(ctx context.Context) (frame image.Image, ok bool, err error) {
	frame, ok, err = p.Source.Read(ctx)
	if ok {
		p.bar.Add(1)
	}
	return frame, ok, err
}

// summarize turns loop counters into a persisted session summary.
func summarize(id, source, backend string, started, ended time.Time, stats pipeline.Stats) types.SessionSummary {
	sum := types.SessionSummary{
		ID:             id,
		Source:         source,
		Backend:        backend,
		StartedAt:      started,
		EndedAt:        ended,
		Frames:         stats.Frames,
		FacelessFrames: stats.FacelessFrames,
		Detections:     stats.Detections,
		Classified:     stats.Classified,
		Skipped:        stats.Skipped,
	}
	for res, n := range stats.Labels {
		sum.Labels = append(sum.Labels, types.LabelCount{Gender: res.Gender, Age: res.Age, Count: n})
	}
	// Most frequent first, stable across runs
	sort.Slice(sum.Labels, func(i, j int) bool {
		a, b := sum.Labels[i], sum.Labels[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if a.Gender != b.Gender {
			return a.Gender < b.Gender
		}
		return a.Age < b.Age
	})
	return sum
}

func validateWatchFlags(opts *Options) error {
	if opts.InputPath == "" {
		return fmt.Errorf("input must not be empty")
	}
	// Anything that is not a camera index, URL or device is expected to be a file
	if _, err := strconv.Atoi(opts.InputPath); err != nil && !opts.UseFFmpeg && !looksLikeStream(opts.InputPath) {
		info, err := os.Stat(opts.InputPath)
		if err != nil {
			return fmt.Errorf("input %q: %w", opts.InputPath, err)
		}
		if info.IsDir() {
			return fmt.Errorf("input path %q is a directory, expected a video file or device", opts.InputPath)
		}
	}
	if opts.RecordPath != "" && !opts.Headless {
		return fmt.Errorf("--record requires --headless")
	}
	if opts.InputFormat != "" && !opts.UseFFmpeg {
		return fmt.Errorf("--format requires --ffmpeg")
	}
	if opts.Threshold <= 0 || opts.Threshold > 1.0 {
		return fmt.Errorf("threshold must be in (0, 1], got %f", opts.Threshold)
	}
	if opts.Padding < 0 {
		return fmt.Errorf("padding must not be negative, got %d", opts.Padding)
	}
	d, err := time.ParseDuration(opts.FinalWait)
	if err != nil {
		return fmt.Errorf("invalid final-wait format (use '2s', '500ms'): %w", err)
	}
	if d < 0 {
		return fmt.Errorf("final-wait must not be negative, got %s", d)
	}
	return nil
}

func looksLikeStream(input string) bool {
	for _, scheme := range []string{"rtsp://", "rtmp://", "http://", "https://", "udp://"} {
		if strings.HasPrefix(input, scheme) {
			return true
		}
	}
	return false
}

func fmtDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
