package feedback

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidRecord reports caller input that cannot be turned into a
// generative request.
var ErrInvalidRecord = errors.New("invalid feedback record")

type CountComment struct {
	Count   int    `json:"count"`
	Comment string `json:"comment"`
}

type RateComment struct {
	Rate    float64 `json:"rate"`
	Comment string  `json:"comment"`
}

type TimestampedNote struct {
	Time     string `json:"time"`
	Feedback string `json:"feedback"`
}

type AdvancedParameters struct {
	Articulation    string `json:"articulation"`
	Enunciation     string `json:"enunciation"`
	Tone            string `json:"tone"`
	Intelligibility string `json:"intelligibility"`
}

// QuestionFeedback is the structured critique of a single answer.
type QuestionFeedback struct {
	Transcript          string             `json:"transcript"`
	GeneralFeedback     string             `json:"general_feedback"`
	SentenceStructuring string             `json:"sentence_structuring_and_grammar"`
	SpeakingRate        RateComment        `json:"speaking_rate"`
	PausePattern        CountComment       `json:"pause_pattern"`
	FillerWordUsage     CountComment       `json:"filler_word_usage"`
	TimestampedFeedback []TimestampedNote  `json:"timestamped_feedback"`
	AdvancedParameters  AdvancedParameters `json:"advanced_parameters"`
	// OverallConfidence is an optional impression of the speaker's confidence.
	OverallConfidence string `json:"overall_confidence,omitempty"`
}

// Validate checks the numeric ranges and normalizes timestamps in place.
// Failures are *SchemaError values marked as record violations.
func (f *QuestionFeedback) Validate() error {
	if f.SpeakingRate.Rate < 1 || f.SpeakingRate.Rate > 5 {
		return recordViolation("$.speaking_rate.rate", "%v outside 1..5", f.SpeakingRate.Rate)
	}
	if f.PausePattern.Count < 0 {
		return recordViolation("$.pause_pattern.count", "negative count %d", f.PausePattern.Count)
	}
	if f.FillerWordUsage.Count < 0 {
		return recordViolation("$.filler_word_usage.count", "negative count %d", f.FillerWordUsage.Count)
	}
	for i := range f.TimestampedFeedback {
		ts, err := NormalizeTimestamp(f.TimestampedFeedback[i].Time)
		if err != nil {
			return recordViolation(fmt.Sprintf("$.timestamped_feedback[%d].time", i), "%v", err)
		}
		f.TimestampedFeedback[i].Time = ts
	}
	if f.TimestampedFeedback == nil {
		f.TimestampedFeedback = []TimestampedNote{}
	}
	return nil
}

func recordViolation(path, format string, args ...any) *SchemaError {
	return &SchemaError{Path: path, Reason: fmt.Sprintf(format, args...), Record: true}
}

// withSchema names the schema on a record violation raised after decoding.
func withSchema(err error, s *Schema) error {
	var se *SchemaError
	if errors.As(err, &se) && se.Schema == "" {
		se.Schema = s.Name
	}
	return err
}

// NormalizeTimestamp accepts H:MM:SS, HH:MM:SS or MM:SS and returns HH:MM:SS.
func NormalizeTimestamp(s string) (string, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) == 2 {
		parts = append([]string{"0"}, parts...)
	}
	if len(parts) != 3 {
		return "", fmt.Errorf("malformed timestamp %q", s)
	}

	nums := make([]int, 3)
	for i, p := range parts {
		if p == "" || (i > 0 && len(p) > 2) {
			return "", fmt.Errorf("malformed timestamp %q", s)
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return "", fmt.Errorf("malformed timestamp %q", s)
		}
		nums[i] = n
	}
	if nums[1] > 59 || nums[2] > 59 || nums[0] > 99 {
		return "", fmt.Errorf("timestamp %q out of range", s)
	}
	return fmt.Sprintf("%02d:%02d:%02d", nums[0], nums[1], nums[2]), nil
}

type OverallFeedback struct {
	Summary            string `json:"summary"`
	KeyStrengths       string `json:"key_strengths"`
	AreasOfImprovement string `json:"areas_of_improvement"`
}

type Recommendation struct {
	Recommendation string `json:"recommendation"`
	Reason         string `json:"reason"`
}

type PersonalizedExample struct {
	Feedback string `json:"feedback"`
	Line     string `json:"line"`
}

type AdvancedSummary struct {
	Articulation              string                `json:"articulation"`
	Enunciation               string                `json:"enunciation"`
	Intelligibility           string                `json:"intelligibility"`
	Tone                      string                `json:"tone"`
	SentenceStructuring       string                `json:"sentence_structuring_and_grammar,omitempty"`
	FillerWordUsage           CountComment          `json:"filler_word_usage"`
	PausePattern              CountComment          `json:"pause_pattern"`
	SpeakingRate              RateComment           `json:"speaking_rate"`
	ActionableRecommendations []Recommendation      `json:"actionable_recommendations"`
	PersonalizedExamples      []PersonalizedExample `json:"personalized_examples"`
}

// QuizSummary aggregates all answers of one quiz attempt.
type QuizSummary struct {
	OverallFeedback OverallFeedback `json:"overall_feedback"`
	Advanced        AdvancedSummary `json:"advanced"`
}

func (s *QuizSummary) Validate() error {
	if s.Advanced.SpeakingRate.Rate < 1 || s.Advanced.SpeakingRate.Rate > 5 {
		return recordViolation("$.advanced.speaking_rate.rate", "%v outside 1..5", s.Advanced.SpeakingRate.Rate)
	}
	if s.Advanced.FillerWordUsage.Count < 0 {
		return recordViolation("$.advanced.filler_word_usage.count", "negative count %d", s.Advanced.FillerWordUsage.Count)
	}
	if s.Advanced.PausePattern.Count < 0 {
		return recordViolation("$.advanced.pause_pattern.count", "negative count %d", s.Advanced.PausePattern.Count)
	}
	if len(s.Advanced.ActionableRecommendations) == 0 {
		return recordViolation("$.advanced.actionable_recommendations", "no actionable recommendations")
	}
	return nil
}

// QuestionSet is a freshly generated list of interview questions.
type QuestionSet struct {
	Questions []string `json:"questions"`
}

type WeeklyFocus struct {
	Week    int      `json:"week"`
	Targets []string `json:"targets"`
}

// LearningPlan is a personalised improvement plan.
type LearningPlan struct {
	Goals                   []string      `json:"goals"`
	WeeklyFocus             []WeeklyFocus `json:"weekly_focus"`
	ActionableItems         []string      `json:"actionable_items"`
	Resources               []string      `json:"resources"`
	ProgressTrackingMetrics []string      `json:"progress_tracking_metrics"`
	Exercises               []string      `json:"exercises"`
	ConsistencyTips         []string      `json:"consistency_tips"`
}
