package service

import (
	"commsense_backend/internal/config"
	"commsense_backend/internal/gesture"
	"commsense_backend/pkg/logger"
	"commsense_backend/pkg/monitoring"
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	videointelligence "cloud.google.com/go/videointelligence/apiv1"
	"cloud.google.com/go/videointelligence/apiv1/videointelligencepb"
	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"go.uber.org/zap"
)

// FrameSource prepares a per-frame extractor for one recorded video.
type FrameSource interface {
	ForVideo(ctx context.Context, videoPath string) (gesture.Extractor, error)
}

// VisionExtractor reads face landmarks and emotion likelihoods from Cloud
// Vision and body pose landmarks from Video Intelligence person detection.
type VisionExtractor struct {
	images *vision.ImageAnnotatorClient
	video  *videointelligence.Client
}

func NewVisionExtractor(ctx context.Context, gcp config.GCPConfig) (*VisionExtractor, error) {
	opts := gcpOptions(gcp)
	images, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	video, err := videointelligence.NewClient(ctx, opts...)
	if err != nil {
		images.Close()
		return nil, fmt.Errorf("video intelligence client: %w", err)
	}
	return &VisionExtractor{images: images, video: video}, nil
}

func (x *VisionExtractor) Close() error {
	x.video.Close()
	return x.images.Close()
}

// ForVideo runs person detection once for the whole video. A failed pose
// pass leaves every frame without pose landmarks.
func (x *VisionExtractor) ForVideo(ctx context.Context, videoPath string) (gesture.Extractor, error) {
	poses, err := x.detectPoses(ctx, videoPath)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		monitoring.ExtractionFailures.Inc()
		logger.Log.Warn("Pose detection failed", zap.String("video", videoPath), zap.Error(err))
	}
	return &frameExtractor{images: x.images, poses: poses}, nil
}

func (x *VisionExtractor) detectPoses(ctx context.Context, videoPath string) (poseTimeline, error) {
	data, err := os.ReadFile(videoPath)
	if err != nil {
		return nil, err
	}
	op, err := x.video.AnnotateVideo(ctx, &videointelligencepb.AnnotateVideoRequest{
		InputContent: data,
		Features:     []videointelligencepb.Feature{videointelligencepb.Feature_PERSON_DETECTION},
		VideoContext: &videointelligencepb.VideoContext{
			PersonDetectionConfig: &videointelligencepb.PersonDetectionConfig{
				IncludeBoundingBoxes: true,
				IncludePoseLandmarks: true,
			},
		},
	})
	if err != nil {
		return nil, err
	}
	resp, err := op.Wait(ctx)
	if err != nil {
		return nil, err
	}
	return newPoseTimeline(resp), nil
}

type timedPose struct {
	at   time.Duration
	pose gesture.PoseLandmarks
}

// poseTimeline is sorted by time.
type poseTimeline []timedPose

const poseTolerance = time.Second

func newPoseTimeline(resp *videointelligencepb.AnnotateVideoResponse) poseTimeline {
	var tl poseTimeline
	for _, ar := range resp.GetAnnotationResults() {
		for _, pa := range ar.GetPersonDetectionAnnotations() {
			for _, track := range pa.GetTracks() {
				for _, obj := range track.GetTimestampedObjects() {
					if p, ok := poseFromLandmarks(obj.GetLandmarks()); ok {
						tl = append(tl, timedPose{at: obj.GetTimeOffset().AsDuration(), pose: p})
					}
				}
			}
		}
	}
	sort.Slice(tl, func(i, j int) bool { return tl[i].at < tl[j].at })
	return tl
}

func poseFromLandmarks(lms []*videointelligencepb.DetectedLandmark) (gesture.PoseLandmarks, bool) {
	var p gesture.PoseLandmarks
	found := 0
	conf := 1.0
	for _, lm := range lms {
		var dst *gesture.Point
		switch lm.GetName() {
		case "left_shoulder":
			dst = &p.LeftShoulder
		case "right_shoulder":
			dst = &p.RightShoulder
		case "left_hip":
			dst = &p.LeftHip
		case "right_hip":
			dst = &p.RightHip
		default:
			continue
		}
		*dst = gesture.Point{X: float64(lm.GetPoint().GetX()), Y: float64(lm.GetPoint().GetY())}
		conf = min(conf, float64(lm.GetConfidence()))
		found++
	}
	if found < 4 {
		return p, false
	}
	p.Confidence = conf
	return p, true
}

// at returns the pose nearest to t, if one lies within poseTolerance.
func (tl poseTimeline) at(t time.Duration) *gesture.PoseLandmarks {
	if len(tl) == 0 {
		return nil
	}
	i := sort.Search(len(tl), func(i int) bool { return tl[i].at >= t })
	best := -1
	bestDist := poseTolerance + 1
	for _, j := range []int{i - 1, i} {
		if j < 0 || j >= len(tl) {
			continue
		}
		d := tl[j].at - t
		if d < 0 {
			d = -d
		}
		if d < bestDist {
			best, bestDist = j, d
		}
	}
	if best < 0 || bestDist > poseTolerance {
		return nil
	}
	p := tl[best].pose
	return &p
}

type frameExtractor struct {
	images *vision.ImageAnnotatorClient
	poses  poseTimeline
}

func (f *frameExtractor) Extract(ctx context.Context, fr gesture.Frame) (gesture.Observation, error) {
	obs := gesture.Observation{Pose: f.poses.at(fr.Timestamp)}

	data, err := os.ReadFile(fr.Path)
	if err != nil {
		return obs, err
	}
	resp, err := f.images.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image:    &visionpb.Image{Content: data},
			Features: []*visionpb.Feature{{Type: visionpb.Feature_FACE_DETECTION, MaxResults: 1}},
		}},
	})
	if err != nil {
		return obs, err
	}
	if len(resp.GetResponses()) == 0 {
		return obs, nil
	}
	r := resp.GetResponses()[0]
	if e := r.GetError(); e != nil && e.GetCode() != 0 {
		obs.EmotionErr = fmt.Errorf("vision: %s", e.GetMessage())
		return obs, nil
	}
	if faces := r.GetFaceAnnotations(); len(faces) > 0 {
		obs.Face, obs.Emotion = faceObservation(faces[0])
	}
	return obs, nil
}

func faceObservation(fa *visionpb.FaceAnnotation) (*gesture.FaceLandmarks, *gesture.EmotionReading) {
	points := make(map[visionpb.FaceAnnotation_Landmark_Type]gesture.Point, len(fa.GetLandmarks()))
	for _, lm := range fa.GetLandmarks() {
		pos := lm.GetPosition()
		points[lm.GetType()] = gesture.Point{X: float64(pos.GetX()), Y: float64(pos.GetY())}
	}

	eye := func(top, bottom, outer, inner visionpb.FaceAnnotation_Landmark_Type) (gesture.EyeLandmarks, bool) {
		t, ok1 := points[top]
		b, ok2 := points[bottom]
		o, ok3 := points[outer]
		i, ok4 := points[inner]
		return gesture.EyeLandmarks{Top: t, Bottom: b, Outer: o, Inner: i}, ok1 && ok2 && ok3 && ok4
	}

	var face *gesture.FaceLandmarks
	left, okL := eye(
		visionpb.FaceAnnotation_Landmark_LEFT_EYE_TOP_BOUNDARY,
		visionpb.FaceAnnotation_Landmark_LEFT_EYE_BOTTOM_BOUNDARY,
		visionpb.FaceAnnotation_Landmark_LEFT_EYE_LEFT_CORNER,
		visionpb.FaceAnnotation_Landmark_LEFT_EYE_RIGHT_CORNER,
	)
	right, okR := eye(
		visionpb.FaceAnnotation_Landmark_RIGHT_EYE_TOP_BOUNDARY,
		visionpb.FaceAnnotation_Landmark_RIGHT_EYE_BOTTOM_BOUNDARY,
		visionpb.FaceAnnotation_Landmark_RIGHT_EYE_RIGHT_CORNER,
		visionpb.FaceAnnotation_Landmark_RIGHT_EYE_LEFT_CORNER,
	)
	if okL && okR {
		face = &gesture.FaceLandmarks{
			LeftEye:    left,
			RightEye:   right,
			Confidence: float64(fa.GetDetectionConfidence()),
		}
	}
	return face, emotionFromLikelihoods(fa)
}

type emotionScore struct {
	label string
	score float64
}

// emotionFromLikelihoods picks the most likely emotion. Neutral rises as the
// strongest other emotion falls. Confidence is the winner's share of the
// total likelihood.
func emotionFromLikelihoods(fa *visionpb.FaceAnnotation) *gesture.EmotionReading {
	scores := []emotionScore{
		{"happy", float64(fa.GetJoyLikelihood())},
		{"sad", float64(fa.GetSorrowLikelihood())},
		{"angry", float64(fa.GetAngerLikelihood())},
		{"surprise", float64(fa.GetSurpriseLikelihood())},
	}
	strongest := 0.0
	for _, s := range scores {
		strongest = max(strongest, s.score)
	}
	if strongest == 0 {
		return nil
	}
	veryLikely := float64(visionpb.Likelihood_VERY_LIKELY)
	scores = append(scores, emotionScore{"neutral", veryLikely + 1 - strongest})

	var best emotionScore
	var sum float64
	for _, s := range scores {
		sum += s.score
		if s.score > best.score {
			best = s
		}
	}
	return &gesture.EmotionReading{Label: best.label, Confidence: best.score / sum}
}
