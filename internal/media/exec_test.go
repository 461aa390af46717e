package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"testing"
)

// mockCommand routes command execution to TestHelperProcess for the
// duration of one test. The mode selects the helper's behavior.
func mockCommand(t *testing.T, mode string) {
	t.Helper()
	orig := execCommandContext
	execCommandContext = func(ctx context.Context, name string, arg ...string) *exec.Cmd {
		cs := []string{"-test.run=TestHelperProcess", "--", name}
		cs = append(cs, arg...)
		cmd := exec.Command(os.Args[0], cs...)
		cmd.Env = []string{"GO_WANT_HELPER_PROCESS=1", "HELPER_MODE=" + mode}
		return cmd
	}
	t.Cleanup(func() { execCommandContext = orig })
}

// TestHelperProcess isn't a real test. It's used as a helper for tests
// that need to mock exec.CommandContext.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	args := os.Args
	for i, a := range args {
		if a == "--" {
			args = args[i+1:]
			break
		}
	}

	switch os.Getenv("HELPER_MODE") {
	case "item":
		fmt.Println("WARNING: [youtube] something harmless")
		fmt.Println(`{"id": "dQw4w9WgXcQ", "title": "Never Gonna Give You Up", "description": "The classic.", "thumbnail": "https://i.ytimg.com/vi/dQw4w9WgXcQ/hq720.jpg", "duration": 212.09, "upload_date": "20091025"}`)
	case "playlist":
		fmt.Println(`{"id": "aaaaaaaaaaa", "playlist_id": "PLxyz", "playlist_title": "Mixtape"}`)
		fmt.Println(`this line is not json`)
		fmt.Println(`{"id": "bbbbbbbbbbb", "playlist_id": "PLxyz", "playlist_title": "Mixtape"}`)
	case "fetch":
		if out := argAfter(args, "-o"); out != "" {
			if err := os.WriteFile(out, []byte("raw audio bytes"), 0o644); err != nil {
				os.Exit(1)
			}
		}
	case "probe-mp3":
		fmt.Println(`{"format": {"format_name": "mp3", "duration": "12.5"}, "streams": [{"codec_type": "audio", "duration": "12.5"}]}`)
	case "probe-noaudio":
		fmt.Println(`{"format": {"format_name": "png_pipe"}, "streams": [{"codec_type": "video"}]}`)
	case "unavailable":
		fmt.Println("ERROR: Video unavailable. This video is no longer available")
		os.Exit(1)
	case "ratelimited":
		fmt.Println("ERROR: HTTP Error 429: Too Many Requests")
		os.Exit(1)
	}
	os.Exit(0)
}

func argAfter(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}
