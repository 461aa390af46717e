package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// AudioInfo describes a normalized, delivery-ready audio file.
type AudioInfo struct {
	Path            string
	DurationSeconds int
	FileSizeBytes   int64
}

// FFmpegNormalizer validates that a local file carries a decodable audio
// stream and converts it to mp3, the single delivery codec. Validation
// is fail-closed: no verifiable audio stream means ErrValidation, never
// a silent pass-through.
type FFmpegNormalizer struct {
	ProbeTimeout   time.Duration
	ConvertTimeout time.Duration
	Bitrate        string
}

func NewNormalizer(convertTimeout time.Duration) *FFmpegNormalizer {
	return &FFmpegNormalizer{
		ProbeTimeout:   30 * time.Second,
		ConvertTimeout: convertTimeout,
		Bitrate:        "192k",
	}
}

type ffprobeOutput struct {
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		Duration  string `json:"duration"`
	} `json:"streams"`
}

// Normalize converts inputPath to mp3 at outputPath and returns the
// resulting duration and size. Inputs that are already mp3 are copied,
// not re-encoded. The output is written via a temporary path and renamed
// so a failed conversion never leaves a partial file behind.
func (n *FFmpegNormalizer) Normalize(ctx context.Context, inputPath, outputPath string) (*AudioInfo, error) {
	probe, err := n.probe(ctx, inputPath)
	if err != nil {
		return nil, err
	}

	duration, hasAudio := probeAudio(probe)
	if !hasAudio {
		return nil, fmt.Errorf("%s has no audio stream: %w", filepath.Base(inputPath), ErrValidation)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	tmp := outputPath + ".part"
	defer os.Remove(tmp)

	if strings.Contains(probe.Format.FormatName, "mp3") {
		if err := copyFile(inputPath, tmp); err != nil {
			return nil, fmt.Errorf("failed to copy mp3: %w", err)
		}
	} else {
		if err := n.convert(ctx, inputPath, tmp); err != nil {
			return nil, err
		}
	}

	if err := os.Rename(tmp, outputPath); err != nil {
		return nil, fmt.Errorf("failed to move converted file: %w", err)
	}

	fi, err := os.Stat(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat output: %w", err)
	}
	if fi.Size() == 0 {
		return nil, fmt.Errorf("conversion produced an empty file: %w", ErrValidation)
	}
	if duration <= 0 {
		return nil, fmt.Errorf("no decodable duration in %s: %w", filepath.Base(inputPath), ErrValidation)
	}

	return &AudioInfo{
		Path:            outputPath,
		DurationSeconds: duration,
		FileSizeBytes:   fi.Size(),
	}, nil
}

func (n *FFmpegNormalizer) probe(ctx context.Context, path string) (*ffprobeOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, n.ProbeTimeout)
	defer cancel()

	cmd := command(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("ffprobe timed out: %w", ErrTransient)
		}
		return nil, fmt.Errorf("ffprobe failed on %s: %w", filepath.Base(path), ErrValidation)
	}

	var probe ffprobeOutput
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", ErrValidation)
	}
	return &probe, nil
}

func (n *FFmpegNormalizer) convert(ctx context.Context, inputPath, outputPath string) error {
	ctx, cancel := context.WithTimeout(ctx, n.ConvertTimeout)
	defer cancel()

	cmd := command(ctx, "ffmpeg",
		"-i", inputPath,
		"-vn",
		"-acodec", "libmp3lame",
		"-ab", n.Bitrate,
		"-y",
		outputPath,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("ffmpeg timed out: %w", ErrTransient)
		}
		return fmt.Errorf("ffmpeg conversion failed: %s: %w", firstLine(output), ErrValidation)
	}
	return nil
}

// probeAudio returns the duration and whether any audio stream exists.
// Duration comes from the container, falling back to the audio stream.
func probeAudio(probe *ffprobeOutput) (int, bool) {
	hasAudio := false
	duration := parseSeconds(probe.Format.Duration)
	for _, s := range probe.Streams {
		if s.CodecType != "audio" {
			continue
		}
		hasAudio = true
		if duration == 0 {
			duration = parseSeconds(s.Duration)
		}
	}
	return duration, hasAudio
}

func parseSeconds(s string) int {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int(f)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func firstLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if i := strings.IndexByte(s, '\n'); i != -1 {
		// ffmpeg is chatty, the tail holds the actual error
		lines := strings.Split(s, "\n")
		return strings.TrimSpace(lines[len(lines)-1])
	}
	return s
}
