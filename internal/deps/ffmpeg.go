package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// CheckFFprobeForFFmpeg reports the ffprobe binary paired with ffmpegCommand.
//
// Static ffmpeg builds ship ffprobe in the same directory, and mixing an
// ffprobe from PATH with a different ffmpeg build can disagree on stream
// layout. An ffprobe next to the resolved ffmpeg is preferred; otherwise
// ffprobeCommand is resolved from PATH.
//
// workflows names the workflows that inspect media, as on Requirement.
func CheckFFprobeForFFmpeg(ffmpegCommand, ffprobeCommand string, workflows ...string) Status {
	result := Status{
		Name:        "FFprobe",
		Workflows:   workflows,
		Description: describe(workflows),
	}

	if ffmpegBinary := strings.TrimSpace(ffmpegCommand); ffmpegBinary != "" {
		if resolved, err := exec.LookPath(ffmpegBinary); err == nil {
			if candidate, ok := siblingCandidate(resolved, "ffprobe"); ok {
				if info, statErr := os.Stat(candidate); statErr == nil && isExecutable(info) {
					result.Command = candidate
					result.Available = true
					return result
				}
			}
		}
	}

	name := strings.TrimSpace(ffprobeCommand)
	if name == "" {
		name = "ffprobe"
	}
	if path, err := exec.LookPath(name); err == nil {
		result.Command = path
		result.Available = true
		return result
	}

	result.Command = name
	result.Available = false
	result.Detail = fmt.Sprintf("binary %q not found", name)
	return result
}

// ResolveFFprobe returns the ffprobe command to execute for the given ffmpeg.
// When nothing resolves, the configured name is returned unchanged so the
// eventual exec error names it.
func ResolveFFprobe(ffmpegCommand, ffprobeCommand string) string {
	status := CheckFFprobeForFFmpeg(ffmpegCommand, ffprobeCommand)
	return status.Command
}

func siblingCandidate(binaryPath, name string) (string, bool) {
	if binaryPath == "" {
		return "", false
	}
	dir := filepath.Dir(binaryPath)
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(dir, name), true
}

func isExecutable(info os.FileInfo) bool {
	if info == nil {
		return false
	}
	if info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
