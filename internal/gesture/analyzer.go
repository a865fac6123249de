package gesture

import (
	"math"
	"strings"
)

// PostureMeasurements are the raw alignment deltas taken from pose landmarks.
// HeadTilt uses the horizontal shoulder spread as its proxy.
type PostureMeasurements struct {
	ShoulderDiff float64
	HipDiff      float64
	HeadTilt     float64
}

func MeasurePosture(p PoseLandmarks) PostureMeasurements {
	return PostureMeasurements{
		ShoulderDiff: math.Abs(p.LeftShoulder.Y - p.RightShoulder.Y),
		HipDiff:      math.Abs(p.LeftHip.Y - p.RightHip.Y),
		HeadTilt:     math.Abs(p.LeftShoulder.X - p.RightShoulder.X),
	}
}

// ScorePosture buckets each alignment delta against the excellent/good
// thresholds (+5 / +3 / -3) and subtracts 3 for excessive head tilt.
func ScorePosture(m PostureMeasurements, th PostureThresholds) Sample {
	if !finite(m.ShoulderDiff) || !finite(m.HipDiff) || !finite(m.HeadTilt) {
		return Sample{Kind: KindPosture, Score: 0, Status: StatusNoLandmarks}
	}

	score := 0.0
	deductions := []string{}

	switch {
	case m.ShoulderDiff < th.ShoulderDiffExcellent:
		score += 5
	case m.ShoulderDiff < th.ShoulderDiffGood:
		score += 3
	default:
		score -= 3
		deductions = append(deductions, "Uneven shoulder alignment")
	}

	switch {
	case m.HipDiff < th.HipDiffExcellent:
		score += 5
	case m.HipDiff < th.HipDiffGood:
		score += 3
	default:
		score -= 3
		deductions = append(deductions, "Uneven hip alignment")
	}

	if m.HeadTilt > th.HeadTiltThreshold {
		score -= 3
		deductions = append(deductions, "Excessive head tilt")
	}

	return Sample{
		Kind:   KindPosture,
		Score:  score,
		Status: postureStatus(score),
		Posture: &PostureDetails{
			ShoulderDiff: m.ShoulderDiff,
			HipDiff:      m.HipDiff,
			HeadTilt:     m.HeadTilt,
			Deductions:   deductions,
		},
	}
}

func postureStatus(score float64) string {
	switch {
	case score >= 8:
		return StatusExcellent
	case score >= 5:
		return StatusGood
	case score >= 0:
		return StatusAverage
	default:
		return StatusPoor
	}
}

// EyeOpenness returns 1 - min(vertical/horizontal, 1), bounded to [0,1].
// A degenerate or non-finite eye width counts as a closed eye.
func EyeOpenness(e EyeLandmarks) float64 {
	vertical := math.Abs(e.Top.Y - e.Bottom.Y)
	horizontal := math.Abs(e.Outer.X - e.Inner.X)
	if !finite(vertical) || !finite(horizontal) || horizontal <= 0 {
		return 0
	}
	return clamp01(1 - math.Min(vertical/horizontal, 1))
}

func ScoreEyeContact(f *FaceLandmarks, th EyeThresholds) Sample {
	if f == nil {
		return Sample{Kind: KindEyeContact, Score: 0, Status: StatusNoEyeTracking}
	}

	left := EyeOpenness(f.LeftEye)
	right := EyeOpenness(f.RightEye)
	s := Sample{
		Kind:   KindEyeContact,
		Score:  0,
		Status: StatusNeutral,
		Eye:    &EyeDetails{LeftOpenness: left, RightOpenness: right},
	}

	switch {
	case left > th.Engaged && right > th.Engaged:
		s.Score = 3
		s.Status = StatusEngaged
	case left < th.Disengaged || right < th.Disengaged:
		s.Score = -3
		s.Status = StatusDisengaged
	}
	return s
}

// ScoreEmotion maps the classifier's dominant label through the weight
// table. Classifier failures and unlisted labels score 0.
func ScoreEmotion(r *EmotionReading, classifierErr error, weights map[string]float64) Sample {
	if classifierErr != nil || r == nil {
		return Sample{Kind: KindEmotion, Score: 0, Status: StatusUnknown}
	}
	label := strings.ToLower(strings.TrimSpace(r.Label))
	if label == "" {
		return Sample{Kind: KindEmotion, Score: 0, Status: StatusUnknown}
	}
	return Sample{
		Kind:    KindEmotion,
		Score:   sanitize(weights[label]),
		Status:  label,
		Emotion: &EmotionDetails{Label: label, Confidence: clamp01(r.Confidence)},
	}
}

// Analyzer runs the three per-signal scorers over one Observation using the
// current profile.
type Analyzer struct {
	profiles *ProfileStore
}

func NewAnalyzer(profiles *ProfileStore) *Analyzer {
	if profiles == nil {
		profiles = NewProfileStore(DefaultProfile())
	}
	return &Analyzer{profiles: profiles}
}

func (a *Analyzer) Profile() Profile {
	return a.profiles.Load()
}

func (a *Analyzer) AnalyzeFrame(obs Observation) FrameResult {
	p := a.profiles.Load()

	pose := obs.Pose
	if pose != nil && pose.Confidence < p.MinDetectionConfidence {
		pose = nil
	}
	face := obs.Face
	if face != nil && face.Confidence < p.MinDetectionConfidence {
		face = nil
	}

	var res FrameResult
	if pose == nil {
		res.Posture = Sample{Kind: KindPosture, Score: 0, Status: StatusNoLandmarks}
	} else {
		res.Posture = ScorePosture(MeasurePosture(*pose), p.Posture)
		if res.Posture.Posture != nil {
			shoulderWidth := math.Abs(pose.LeftShoulder.X - pose.RightShoulder.X)
			hipWidth := math.Abs(pose.LeftHip.X - pose.RightHip.X)
			delta := math.Abs(shoulderWidth - hipWidth)
			if finite(delta) {
				res.BodyWidthDelta = &delta
			}
		}
	}
	res.Eye = ScoreEyeContact(face, p.Eye)
	res.Emotion = ScoreEmotion(obs.Emotion, obs.EmotionErr, p.EmotionWeights)
	return res
}
