package media

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempAudio(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNormalizeMp3IsCopiedNotReencoded(t *testing.T) {
	mockCommand(t, "probe-mp3")
	n := NewNormalizer(time.Minute)

	input := writeTempAudio(t, "in.mp3", "mp3 frame data")
	output := filepath.Join(t.TempDir(), "out.mp3")

	info, err := n.Normalize(context.Background(), input, output)
	require.NoError(t, err)
	assert.Equal(t, output, info.Path)
	assert.Equal(t, 12, info.DurationSeconds)
	assert.Equal(t, int64(len("mp3 frame data")), info.FileSizeBytes)

	got, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "mp3 frame data", string(got))
}

func TestNormalizeRejectsFileWithoutAudioStream(t *testing.T) {
	mockCommand(t, "probe-noaudio")
	n := NewNormalizer(time.Minute)

	input := writeTempAudio(t, "image.png", "not audio")
	output := filepath.Join(t.TempDir(), "out.mp3")

	_, err := n.Normalize(context.Background(), input, output)
	assert.ErrorIs(t, err, ErrValidation)

	// Failed validation never leaves an output file behind.
	_, statErr := os.Stat(output)
	assert.True(t, os.IsNotExist(statErr))
}

func TestProbeAudio(t *testing.T) {
	probe := &ffprobeOutput{}
	probe.Format.Duration = "123.9"
	probe.Streams = []struct {
		CodecType string `json:"codec_type"`
		Duration  string `json:"duration"`
	}{
		{CodecType: "video"},
		{CodecType: "audio", Duration: "120.0"},
	}

	duration, hasAudio := probeAudio(probe)
	assert.True(t, hasAudio)
	assert.Equal(t, 123, duration)
}

func TestProbeAudioFallsBackToStreamDuration(t *testing.T) {
	probe := &ffprobeOutput{}
	probe.Streams = []struct {
		CodecType string `json:"codec_type"`
		Duration  string `json:"duration"`
	}{
		{CodecType: "audio", Duration: "98.7"},
	}

	duration, hasAudio := probeAudio(probe)
	assert.True(t, hasAudio)
	assert.Equal(t, 98, duration)
}

func TestProbeAudioNoAudioStream(t *testing.T) {
	probe := &ffprobeOutput{}
	probe.Format.Duration = "10.0"
	probe.Streams = []struct {
		CodecType string `json:"codec_type"`
		Duration  string `json:"duration"`
	}{
		{CodecType: "video"},
	}

	_, hasAudio := probeAudio(probe)
	assert.False(t, hasAudio)
}

func TestParseSeconds(t *testing.T) {
	assert.Equal(t, 0, parseSeconds(""))
	assert.Equal(t, 0, parseSeconds("N/A"))
	assert.Equal(t, 12, parseSeconds("12.5"))
	assert.Equal(t, 3600, parseSeconds("3600"))
}
