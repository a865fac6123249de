package util

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// MediaInfo describes a probed media file.
type MediaInfo struct {
	Duration float64 `json:"duration"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	FPS      float64 `json:"fps"`
	HasVideo bool    `json:"has_video"`
	HasAudio bool    `json:"has_audio"`
	Format   string  `json:"format"`
	Size     int64   `json:"size"`
}

type probeOutput struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
		Size     string `json:"size"`
		Format   string `json:"format_name"`
	} `json:"format"`
}

// ProbeMedia reads stream metadata with ffprobe.
func ProbeMedia(path string) (*MediaInfo, error) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("media file not found: %w", err)
	}

	jsonOutput, err := ffmpeg.Probe(path)
	if err != nil {
		return nil, fmt.Errorf("probe media: %w", err)
	}
	return parseProbe(jsonOutput, fileInfo.Size())
}

func parseProbe(jsonOutput string, fileSize int64) (*MediaInfo, error) {
	var result probeOutput
	if err := json.Unmarshal([]byte(jsonOutput), &result); err != nil {
		return nil, fmt.Errorf("parse probe output: %w", err)
	}

	info := &MediaInfo{Format: "unknown", Size: fileSize}
	for _, stream := range result.Streams {
		switch stream.CodecType {
		case "video":
			if info.HasVideo {
				continue
			}
			info.HasVideo = true
			info.Width = stream.Width
			info.Height = stream.Height
			info.FPS = parseRate(stream.AvgFrameRate)
			if info.FPS == 0 {
				info.FPS = parseRate(stream.RFrameRate)
			}
		case "audio":
			info.HasAudio = true
		}
	}

	if d, err := strconv.ParseFloat(result.Format.Duration, 64); err == nil {
		info.Duration = d
	}
	if s, err := strconv.ParseInt(result.Format.Size, 10, 64); err == nil {
		info.Size = s
	}
	if parts := strings.Split(result.Format.Format, ","); parts[0] != "" {
		info.Format = parts[0]
	}
	return info, nil
}

// parseRate parses ffprobe rates such as "30000/1001" or "25".
func parseRate(s string) float64 {
	num, den, found := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

// ExtractAudio writes the first audio track of src to dst as 16 kHz mono
// 16-bit PCM WAV, the format the recognizers expect. ffmpeg is killed when
// ctx ends.
func ExtractAudio(ctx context.Context, src, dst string) error {
	stream := ffmpeg.Input(src).
		Output(dst, ffmpeg.KwArgs{
			"ac":     1,
			"ar":     16000,
			"acodec": "pcm_s16le",
			"f":      "wav",
		})
	if stderr, err := runFFmpeg(ctx, stream); err != nil {
		return fmt.Errorf("extract audio: %w: %s", err, tail(stderr))
	}
	return nil
}

// SampleFrames writes every stride-th frame of src as JPEG into dir, at most
// limit frames, and returns their paths in frame order.
func SampleFrames(ctx context.Context, src, dir string, stride, limit int) ([]string, error) {
	if stride < 1 {
		stride = 1
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	stream := ffmpeg.Input(src).
		Output(filepath.Join(dir, "frame_%05d.jpg"), ffmpeg.KwArgs{
			"vf":       fmt.Sprintf("select='not(mod(n\\,%d))'", stride),
			"vsync":    "vfr",
			"q:v":      3,
			"frames:v": limit,
		})
	if stderr, err := runFFmpeg(ctx, stream); err != nil {
		return nil, fmt.Errorf("sample frames: %w: %s", err, tail(stderr))
	}

	paths, err := filepath.Glob(filepath.Join(dir, "frame_*.jpg"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// runFFmpeg compiles stream into an ffmpeg command line and runs it bound to
// ctx. It returns the captured stderr.
func runFFmpeg(ctx context.Context, stream *ffmpeg.Stream) (string, error) {
	compiled := stream.OverWriteOutput().Compile()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, compiled.Path, compiled.Args[1:]...)
	cmd.Stderr = &stderr
	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return stderr.String(), ctxErr
	}
	return stderr.String(), err
}

func tail(s string) string {
	const max = 500
	s = strings.TrimSpace(s)
	if len(s) > max {
		return s[len(s)-max:]
	}
	return s
}

// GetFFmpegVersion reports the installed ffmpeg version line. ffmpeg-go has
// no version call, so the binary is invoked directly.
func GetFFmpegVersion() (string, error) {
	cmd := exec.Command("ffmpeg", "-version", "-hide_banner")
	var out bytes.Buffer
	var errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("ffmpeg is not available: %v, %s", err, errOut.String())
	}

	line, _, _ := strings.Cut(out.String(), "\n")
	return strings.TrimSpace(line), nil
}
