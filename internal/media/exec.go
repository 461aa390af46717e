package media

import (
	"context"
	"os/exec"
)

// execCommandContext is swapped in tests to run a helper process instead
// of the real yt-dlp/ffmpeg binaries.
var execCommandContext = exec.CommandContext

func command(ctx context.Context, name string, arg ...string) *exec.Cmd {
	return execCommandContext(ctx, name, arg...)
}
