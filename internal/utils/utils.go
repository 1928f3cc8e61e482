package utils

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// --- 1. Process Safety & Command Wrapping ---

// SafeCommand wraps a standard exec.Cmd with a buffer to catch Stderr (worker logs)
// so crash details survive the child process.
type SafeCommand struct {
	*exec.Cmd
	Stderr *bytes.Buffer
}

// NewSafeCommand initializes a command and attaches a buffer to its Stderr pipe.
// It prepares the command for execution but does not start it.
func NewSafeCommand(name string, args ...string) *SafeCommand {
	cmd := exec.Command(name, args...)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr
	return &SafeCommand{Cmd: cmd, Stderr: stderr}
}

// ShowError prints a formatted error box to stderr, followed by the captured
// child logs when a SafeCommand is provided.
func ShowError(context string, err error, s *SafeCommand) {
	fmt.Fprintf(os.Stderr, "\n---------------------------------------------------------\n")
	fmt.Fprintf(os.Stderr, "🚨 VISAGE ERROR: %s\n", context)
	if err != nil {
		fmt.Fprintf(os.Stderr, "DETAILS: %v\n", err)
	}

	if s != nil && s.Stderr.Len() > 0 {
		fmt.Fprintf(os.Stderr, "\nWORKER LOGS:\n%s\n", s.Stderr.String())
	}
	fmt.Fprintf(os.Stderr, "---------------------------------------------------------\n")
}

// Die is the unified exit strategy: ShowError, then exit 1.
func Die(context string, err error, s *SafeCommand) {
	ShowError(context, err, s)
	os.Exit(1)
}

// --- 2. Video Engine (ffmpeg/ffprobe) ---

var (
	JpegSOI = []byte{0xFF, 0xD8} // Start of Image
	JpegEOI = []byte{0xFF, 0xD9} // End of Image
)

type ffprobeOutput struct {
	Streams []struct {
		NbFrames      string `json:"nb_frames"`
		NbReadPackets string `json:"nb_read_packets"`
		RFrameRate    string `json:"r_frame_rate"`
	} `json:"streams"`
}

func probe(ctx context.Context, path string, args ...string) (*ffprobeOutput, error) {
	base := []string{"-v", "error", "-select_streams", "v:0"}
	base = append(base, args...)
	base = append(base, "-of", "json", path)

	out, err := exec.CommandContext(ctx, "ffprobe", base...).Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}
	var res ffprobeOutput
	if err := json.Unmarshal(out, &res); err != nil {
		return nil, fmt.Errorf("ffprobe JSON parse error: %w", err)
	}
	if len(res.Streams) == 0 {
		return nil, fmt.Errorf("no video stream in %s", path)
	}
	return &res, nil
}

// GetTotalFrames uses ffprobe to count frames for the progress bar.
// It returns 0 if the count fails, allowing the caller to fall back to a spinner.
func GetTotalFrames(ctx context.Context, path string) int {
	if _, err := exec.LookPath("ffprobe"); err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  ffprobe not found. Cannot provide a progress bar estimation because of this.\n")
		return 0
	}

	// Fast path: container metadata. Instant, but may be "N/A" for VFR.
	if res, err := probe(ctx, path, "-show_entries", "stream=nb_frames"); err == nil {
		if count, err := strconv.Atoi(res.Streams[0].NbFrames); err == nil && count > 0 {
			return count
		}
	}

	fmt.Fprintf(os.Stderr, "⏳ Metadata missing. Counting frames (this may take a moment)...\n")
	res, err := probe(ctx, path, "-count_packets", "-show_entries", "stream=nb_read_packets")
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 0
	}
	count, err := strconv.Atoi(res.Streams[0].NbReadPackets)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ffprobe integer parse error: %v\n", err)
		return 0
	}
	return count
}

// GetVideoFPS returns the nominal frame rate of the first video stream.
func GetVideoFPS(ctx context.Context, path string) (float64, error) {
	res, err := probe(ctx, path, "-show_entries", "stream=r_frame_rate")
	if err != nil {
		return 0, err
	}
	return ParseFrameRate(res.Streams[0].RFrameRate)
}

// ParseFrameRate parses ffprobe rates such as "30000/1001" or "25".
func ParseFrameRate(rate string) (float64, error) {
	num, den, found := strings.Cut(strings.TrimSpace(rate), "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid frame rate %q: %w", rate, err)
	}
	if !found {
		den = "1"
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0, fmt.Errorf("invalid frame rate %q", rate)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid frame rate %q", rate)
	}
	return n / d, nil
}

// SplitJpeg is the custom splitter for bufio.Scanner.
// It locates the Start Of Image (FFD8) and End Of Image (FFD9) markers to extract full JPEG frames.
func SplitJpeg(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	start := bytes.Index(data, JpegSOI)
	if start == -1 {
		return 0, nil, nil
	}
	end := bytes.Index(data[start:], JpegEOI)
	if end == -1 {
		return 0, nil, nil
	}
	return start + end + 2, data[start : start+end+2], nil
}

// NewFFmpegCmd creates a decoder that writes MJPEG frames to Stdout.
// inputArgs are placed before -i, e.g. "-f", "v4l2" for a camera device.
func NewFFmpegCmd(ctx context.Context, input string, inputArgs ...string) *exec.Cmd {
	args := []string{"-hide_banner", "-loglevel", "error"}
	args = append(args, inputArgs...)
	args = append(args, "-i", input, "-f", "image2pipe", "-vcodec", "mjpeg", "-q:v", "2", "-")
	return exec.CommandContext(ctx, "ffmpeg", args...)
}

// NewFFmpegEncoder creates an encoder that reads raw RGBA frames of the given
// size from Stdin and writes an H.264 video to output.
func NewFFmpegEncoder(ctx context.Context, output string, fps float64, width, height int) *exec.Cmd {
	return exec.CommandContext(ctx, "ffmpeg", "-hide_banner", "-loglevel", "error", "-y",
		"-f", "rawvideo", "-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-r", strconv.FormatFloat(fps, 'f', -1, 64),
		"-i", "-",
		"-c:v", "libx264", "-pix_fmt", "yuv420p",
		output)
}

// GenerateSessionID creates a deterministic hash for a run of source that
// started at start.
func GenerateSessionID(source string, start time.Time) string {
	input := fmt.Sprintf("%s-%d", source, start.UnixNano())
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])
}
