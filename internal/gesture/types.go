package gesture

// Kind identifies which signal a Sample measures.
type Kind string

const (
	KindPosture    Kind = "posture"
	KindEyeContact Kind = "eye_contact"
	KindEmotion    Kind = "emotion"
)

const (
	StatusExcellent   = "Excellent"
	StatusGood        = "Good"
	StatusAverage     = "Average"
	StatusPoor        = "Poor"
	StatusNoLandmarks = "No landmarks"

	StatusEngaged       = "Engaged"
	StatusDisengaged    = "Disengaged"
	StatusNeutral       = "Neutral"
	StatusNoEyeTracking = "No eye tracking"

	StatusUnknown = "unknown"
)

// Point is a 2D landmark position. Units are whatever the extractor reports
// (normalized or pixels); every ratio computed here is scale-invariant.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type PoseLandmarks struct {
	LeftShoulder  Point   `json:"left_shoulder"`
	RightShoulder Point   `json:"right_shoulder"`
	LeftHip       Point   `json:"left_hip"`
	RightHip      Point   `json:"right_hip"`
	Confidence    float64 `json:"confidence"`
}

// EyeLandmarks holds the four boundary points of one eye.
type EyeLandmarks struct {
	Top    Point `json:"top"`
	Bottom Point `json:"bottom"`
	Outer  Point `json:"outer"`
	Inner  Point `json:"inner"`
}

type FaceLandmarks struct {
	LeftEye    EyeLandmarks `json:"left_eye"`
	RightEye   EyeLandmarks `json:"right_eye"`
	Confidence float64      `json:"confidence"`
}

// EmotionReading is the dominant label reported by an external classifier.
type EmotionReading struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Observation is everything an Extractor found in one frame. Nil fields mean
// nothing was detected, which is a normal outcome.
type Observation struct {
	Pose       *PoseLandmarks
	Face       *FaceLandmarks
	Emotion    *EmotionReading
	EmotionErr error
}

type PostureDetails struct {
	ShoulderDiff float64  `json:"shoulder_alignment"`
	HipDiff      float64  `json:"hip_alignment"`
	HeadTilt     float64  `json:"head_tilt"`
	Deductions   []string `json:"deduction_reasons"`
}

type EyeDetails struct {
	LeftOpenness  float64 `json:"left_openness"`
	RightOpenness float64 `json:"right_openness"`
}

type EmotionDetails struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Sample is one frame's measurement for a single Kind. Score is always set;
// exactly one of the detail pointers matches Kind when landmarks were present.
type Sample struct {
	Kind    Kind            `json:"kind"`
	Score   float64         `json:"score"`
	Status  string          `json:"status"`
	Posture *PostureDetails `json:"posture,omitempty"`
	Eye     *EyeDetails     `json:"eye,omitempty"`
	Emotion *EmotionDetails `json:"emotion,omitempty"`
}

// FrameResult bundles the three samples produced for one frame.
type FrameResult struct {
	Posture Sample `json:"posture"`
	Eye     Sample `json:"eye_contact"`
	Emotion Sample `json:"emotion"`
	// BodyWidthDelta is |shoulder width - hip width|, present only with a pose.
	BodyWidthDelta *float64 `json:"body_width_delta,omitempty"`
}

// Total is the per-frame sum of the three scores.
func (f FrameResult) Total() float64 {
	return f.Posture.Score + f.Eye.Score + f.Emotion.Score
}
