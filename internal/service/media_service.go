package service

import (
	"commsense_backend/internal/gesture"
	"commsense_backend/internal/util"
	"context"
	"time"
)

// MediaProcessor converts uploaded recordings into what the analysis stages
// consume.
type MediaProcessor interface {
	ExtractAudio(ctx context.Context, src, dst string) error
	SampleFrames(ctx context.Context, src, dir string, stride, limit int) ([]gesture.Frame, error)
}

// MediaService runs ffmpeg.
type MediaService struct{}

func NewMediaService() *MediaService {
	return &MediaService{}
}

func (s *MediaService) ExtractAudio(ctx context.Context, src, dst string) error {
	return util.ExtractAudio(ctx, src, dst)
}

// SampleFrames keeps every stride-th frame and stamps each one with its
// position in the video. Without a readable frame rate timestamps stay zero.
func (s *MediaService) SampleFrames(ctx context.Context, src, dir string, stride, limit int) ([]gesture.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if stride < 1 {
		stride = 1
	}

	var fps float64
	if info, err := util.ProbeMedia(src); err == nil {
		fps = info.FPS
	}

	paths, err := util.SampleFrames(ctx, src, dir, stride, limit)
	if err != nil {
		return nil, err
	}

	frames := make([]gesture.Frame, len(paths))
	for i, p := range paths {
		idx := i * stride
		frames[i] = gesture.Frame{Index: idx, Path: p}
		if fps > 0 {
			frames[i].Timestamp = time.Duration(float64(idx) / fps * float64(time.Second))
		}
	}
	return frames, nil
}
