package gesture

import (
	"sync"
	"time"
)

const (
	ResultStatusOK     = "ok"
	ResultStatusNoData = "no_data"
)

const (
	postureMax     = 33.33
	emotionMax     = 33.33
	eyeContactMax  = 33.34
	strengthCutoff = 0.7
)

const (
	StrengthPosture    = "Body Language & Posture"
	StrengthEmotion    = "Emotional Expression"
	StrengthEyeContact = "Eye Contact & Attentiveness"
)

type ComponentScore struct {
	Points    float64 `json:"points"`
	MaxPoints float64 `json:"max_points"`
	RawAvg    float64 `json:"raw_avg"`
}

type ComponentScores struct {
	Posture             ComponentScore `json:"posture"`
	EmotionalEngagement ComponentScore `json:"emotional_engagement"`
	EyeContact          ComponentScore `json:"eye_contact"`
}

// FinalAssessment is the weighted score out of 100.
type FinalAssessment struct {
	TotalScore          float64         `json:"total_score"`
	Components          ComponentScores `json:"component_scores"`
	Strengths           []string        `json:"strengths"`
	AreasForImprovement []string        `json:"areas_for_improvement"`
}

// Result is the session-level summary of all samples of one recording.
type Result struct {
	Status           string          `json:"status"`
	FramesAnalyzed   int             `json:"frames_analyzed"`
	AvgPosture       float64         `json:"avg_posture_score"`
	AvgEmotion       float64         `json:"avg_emotion_score"`
	AvgEyeContact    float64         `json:"avg_eye_contact_score"`
	OverallScore     float64         `json:"overall_score"`
	PostureStability float64         `json:"posture_stability"`
	Assessment       FinalAssessment `json:"final_assessment"`
	GeneratedAt      time.Time       `json:"generated_at"`
}

// Assess computes the Final Assessment from the per-kind averages.
func Assess(avgPosture, avgEmotion, avgEyeContact float64) FinalAssessment {
	avgPosture = sanitize(avgPosture)
	avgEmotion = sanitize(avgEmotion)
	avgEyeContact = sanitize(avgEyeContact)

	posturePoints := Normalize(avgPosture, 3, 8) * postureMax
	emotionPoints := NormalizeEmotion(avgEmotion) * emotionMax
	eyePoints := Normalize(avgEyeContact, -1, 3) * eyeContactMax

	total := posturePoints + emotionPoints + eyePoints
	if total > 100 {
		total = 100
	}

	fa := FinalAssessment{
		TotalScore: round2(total),
		Components: ComponentScores{
			Posture:             ComponentScore{Points: round2(posturePoints), MaxPoints: postureMax, RawAvg: round2(avgPosture)},
			EmotionalEngagement: ComponentScore{Points: round2(emotionPoints), MaxPoints: emotionMax, RawAvg: round2(avgEmotion)},
			EyeContact:          ComponentScore{Points: round2(eyePoints), MaxPoints: eyeContactMax, RawAvg: round2(avgEyeContact)},
		},
		Strengths:           []string{},
		AreasForImprovement: []string{},
	}

	classify := func(points, max float64, label string) {
		if points > max*strengthCutoff {
			fa.Strengths = append(fa.Strengths, label)
		} else {
			fa.AreasForImprovement = append(fa.AreasForImprovement, label)
		}
	}
	classify(posturePoints, postureMax, StrengthPosture)
	classify(emotionPoints, emotionMax, StrengthEmotion)
	classify(eyePoints, eyeContactMax, StrengthEyeContact)

	return fa
}

// Session accumulates samples of one recording. It is safe for concurrent use;
// frame order does not matter.
type Session struct {
	mu         sync.Mutex
	posture    []float64
	eye        []float64
	emotion    []float64
	totals     []float64
	widthDelta []float64
	frames     int
}

func NewSession() *Session {
	return &Session{}
}

func (s *Session) AddFrame(fr FrameResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.frames++
	s.posture = append(s.posture, sanitize(fr.Posture.Score))
	s.eye = append(s.eye, sanitize(fr.Eye.Score))
	s.emotion = append(s.emotion, sanitize(fr.Emotion.Score))
	s.totals = append(s.totals, sanitize(fr.Total()))
	if fr.BodyWidthDelta != nil && finite(*fr.BodyWidthDelta) {
		s.widthDelta = append(s.widthDelta, *fr.BodyWidthDelta)
	}
}

// AddSample records a lone sample outside of a full frame.
func (s *Session) AddSample(sm Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := sanitize(sm.Score)
	switch sm.Kind {
	case KindPosture:
		s.posture = append(s.posture, v)
	case KindEyeContact:
		s.eye = append(s.eye, v)
	case KindEmotion:
		s.emotion = append(s.emotion, v)
	}
}

// Finalize reduces the buffered samples. An empty sequence of any kind is
// treated as a single zero sample, so the result is always defined.
func (s *Session) Finalize() Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	empty := len(s.posture) == 0 && len(s.eye) == 0 && len(s.emotion) == 0

	avgPosture := mean(orZero(s.posture))
	avgEye := mean(orZero(s.eye))
	avgEmotion := mean(orZero(s.emotion))
	overall := mean(orZero(s.totals))

	stability := 0.0
	if len(s.widthDelta) > 0 {
		stability = clamp01(1 - stddev(s.widthDelta))
	}

	status := ResultStatusOK
	if empty {
		status = ResultStatusNoData
	}

	return Result{
		Status:           status,
		FramesAnalyzed:   s.frames,
		AvgPosture:       round2(avgPosture),
		AvgEmotion:       round2(avgEmotion),
		AvgEyeContact:    round2(avgEye),
		OverallScore:     round2(overall),
		PostureStability: round2(stability),
		Assessment:       Assess(avgPosture, avgEmotion, avgEye),
		GeneratedAt:      time.Now().UTC(),
	}
}

func orZero(values []float64) []float64 {
	if len(values) == 0 {
		return []float64{0}
	}
	return values
}
