package service

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"commsense_backend/internal/config"

	"cloud.google.com/go/videointelligence/apiv1/videointelligencepb"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/durationpb"
)

func TestHTTPRecognizer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transcribe", r.URL.Path)
		file, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "answer.wav", hdr.Filename)
		assert.Equal(t, "RIFF", string(data[:4]))

		w.Write([]byte(`{"language":"en","segments":[{"start":0,"end":1.2,"text":" um hello "},{"start":1.2,"end":2,"text":""},{"start":2,"end":3,"text":"world"}]}`))
	}))
	defer srv.Close()

	wav := filepath.Join(t.TempDir(), "answer.wav")
	require.NoError(t, os.WriteFile(wav, wavBytes(), 0o644))

	text, err := NewHTTPRecognizer(srv.URL+"/").Transcribe(context.Background(), wav)
	require.NoError(t, err)
	assert.Equal(t, "um hello world", text)
}

func TestHTTPRecognizerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	wav := filepath.Join(t.TempDir(), "answer.wav")
	require.NoError(t, os.WriteFile(wav, wavBytes(), 0o644))

	_, err := NewHTTPRecognizer(srv.URL).Transcribe(context.Background(), wav)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestDisabledRecognizer(t *testing.T) {
	rec, err := NewRecognizer(context.Background(), &config.Config{Recognizer: config.RecognizerConfig{Kind: config.RecognizerDisabled}})
	require.NoError(t, err)
	_, err = rec.Transcribe(context.Background(), "x.wav")
	assert.ErrorIs(t, err, ErrRecognizerDisabled)
}

func TestEmotionFromLikelihoods(t *testing.T) {
	tests := []struct {
		name  string
		face  *visionpb.FaceAnnotation
		label string
	}{
		{"joy", &visionpb.FaceAnnotation{
			JoyLikelihood:      visionpb.Likelihood_VERY_LIKELY,
			SorrowLikelihood:   visionpb.Likelihood_VERY_UNLIKELY,
			AngerLikelihood:    visionpb.Likelihood_VERY_UNLIKELY,
			SurpriseLikelihood: visionpb.Likelihood_VERY_UNLIKELY,
		}, "happy"},
		{"calm face is neutral", &visionpb.FaceAnnotation{
			JoyLikelihood:      visionpb.Likelihood_VERY_UNLIKELY,
			SorrowLikelihood:   visionpb.Likelihood_VERY_UNLIKELY,
			AngerLikelihood:    visionpb.Likelihood_VERY_UNLIKELY,
			SurpriseLikelihood: visionpb.Likelihood_VERY_UNLIKELY,
		}, "neutral"},
		{"anger", &visionpb.FaceAnnotation{
			JoyLikelihood:      visionpb.Likelihood_UNLIKELY,
			SorrowLikelihood:   visionpb.Likelihood_UNLIKELY,
			AngerLikelihood:    visionpb.Likelihood_LIKELY,
			SurpriseLikelihood: visionpb.Likelihood_VERY_UNLIKELY,
		}, "angry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := emotionFromLikelihoods(tt.face)
			require.NotNil(t, r)
			assert.Equal(t, tt.label, r.Label)
			assert.Greater(t, r.Confidence, 0.0)
			assert.LessOrEqual(t, r.Confidence, 1.0)
		})
	}

	assert.Nil(t, emotionFromLikelihoods(&visionpb.FaceAnnotation{}), "unknown likelihoods carry no reading")
}

func landmark(tp visionpb.FaceAnnotation_Landmark_Type, x, y float32) *visionpb.FaceAnnotation_Landmark {
	return &visionpb.FaceAnnotation_Landmark{Type: tp, Position: &visionpb.Position{X: x, Y: y}}
}

func TestFaceObservation(t *testing.T) {
	fa := &visionpb.FaceAnnotation{
		DetectionConfidence: 0.9,
		JoyLikelihood:       visionpb.Likelihood_LIKELY,
		Landmarks: []*visionpb.FaceAnnotation_Landmark{
			landmark(visionpb.FaceAnnotation_Landmark_LEFT_EYE_TOP_BOUNDARY, 110, 98),
			landmark(visionpb.FaceAnnotation_Landmark_LEFT_EYE_BOTTOM_BOUNDARY, 110, 102),
			landmark(visionpb.FaceAnnotation_Landmark_LEFT_EYE_LEFT_CORNER, 100, 100),
			landmark(visionpb.FaceAnnotation_Landmark_LEFT_EYE_RIGHT_CORNER, 120, 100),
			landmark(visionpb.FaceAnnotation_Landmark_RIGHT_EYE_TOP_BOUNDARY, 150, 98),
			landmark(visionpb.FaceAnnotation_Landmark_RIGHT_EYE_BOTTOM_BOUNDARY, 150, 102),
			landmark(visionpb.FaceAnnotation_Landmark_RIGHT_EYE_LEFT_CORNER, 140, 100),
			landmark(visionpb.FaceAnnotation_Landmark_RIGHT_EYE_RIGHT_CORNER, 160, 100),
		},
	}
	face, emotion := faceObservation(fa)
	require.NotNil(t, face)
	assert.InDelta(t, 0.9, face.Confidence, 1e-6)
	assert.Equal(t, 20.0, face.LeftEye.Inner.X-face.LeftEye.Outer.X)
	require.NotNil(t, emotion)
	assert.Equal(t, "happy", emotion.Label)

	fa.Landmarks = fa.Landmarks[:3]
	face, _ = faceObservation(fa)
	assert.Nil(t, face, "partial eyes are not a face")
}

func poseObject(at time.Duration, conf float32) *videointelligencepb.TimestampedObject {
	lm := func(name string, x, y float32) *videointelligencepb.DetectedLandmark {
		return &videointelligencepb.DetectedLandmark{
			Name:       name,
			Point:      &videointelligencepb.NormalizedVertex{X: x, Y: y},
			Confidence: conf,
		}
	}
	return &videointelligencepb.TimestampedObject{
		TimeOffset: durationpb.New(at),
		Landmarks: []*videointelligencepb.DetectedLandmark{
			lm("left_shoulder", 0.3, 0.4),
			lm("right_shoulder", 0.7, 0.4),
			lm("left_hip", 0.35, 0.8),
			lm("right_hip", 0.65, 0.8),
			lm("nose", 0.5, 0.2),
		},
	}
}

func TestPoseTimeline(t *testing.T) {
	resp := &videointelligencepb.AnnotateVideoResponse{
		AnnotationResults: []*videointelligencepb.VideoAnnotationResults{{
			PersonDetectionAnnotations: []*videointelligencepb.PersonDetectionAnnotation{{
				Tracks: []*videointelligencepb.Track{{
					TimestampedObjects: []*videointelligencepb.TimestampedObject{
						poseObject(4*time.Second, 0.8),
						poseObject(0, 0.6),
						{TimeOffset: durationpb.New(2 * time.Second)},
					},
				}},
			}},
		}},
	}

	tl := newPoseTimeline(resp)
	require.Len(t, tl, 2)
	assert.Equal(t, time.Duration(0), tl[0].at)

	p := tl.at(300 * time.Millisecond)
	require.NotNil(t, p)
	assert.InDelta(t, 0.6, p.Confidence, 1e-6)
	assert.Equal(t, 0.3, round(p.LeftShoulder.X))

	p = tl.at(3500 * time.Millisecond)
	require.NotNil(t, p)
	assert.InDelta(t, 0.8, p.Confidence, 1e-6)

	assert.Nil(t, tl.at(2*time.Second), "no pose within a second")
	assert.Nil(t, poseTimeline(nil).at(0))
}

func round(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
