package feedback

import (
	"context"
	"errors"
	"fmt"
	"math"
)

var ErrSeriesLength = errors.New("series length does not match question count")

const (
	SeriesTone                = "tone"
	SeriesSpeakingRate        = "speaking_rate"
	SeriesFillerWordCount     = "filler_word_count"
	SeriesClarity             = "clarity"
	SeriesSentenceStructuring = "sentence_structuring"
	SeriesPauseCount          = "pause_count"
	SeriesArticulation        = "articulation"
	SeriesEnunciation         = "enunciation"
)

// SeriesKeys lists the graph series in chart order.
var SeriesKeys = []string{
	SeriesTone,
	SeriesSpeakingRate,
	SeriesFillerWordCount,
	SeriesClarity,
	SeriesSentenceStructuring,
	SeriesPauseCount,
	SeriesArticulation,
	SeriesEnunciation,
}

var seriesLabels = map[string]string{
	SeriesTone:                "Tone",
	SeriesSpeakingRate:        "Speaking Rate",
	SeriesFillerWordCount:     "Filler Word Count",
	SeriesClarity:             "Clarity",
	SeriesSentenceStructuring: "Sentence Structuring",
	SeriesPauseCount:          "Pause Count",
	SeriesArticulation:        "Articulation",
	SeriesEnunciation:         "Enunciation",
}

func isCountSeries(key string) bool {
	return key == SeriesFillerWordCount || key == SeriesPauseCount
}

// SeriesLabel returns the human readable name of a series key.
func SeriesLabel(key string) string {
	if l, ok := seriesLabels[key]; ok {
		return l
	}
	return key
}

// GraphBundle holds one value per question for every series.
type GraphBundle struct {
	Questions        int                  `json:"questions"`
	Series           map[string][]float64 `json:"series"`
	Averages         map[string]float64   `json:"averages"`
	TotalFillerWords int                  `json:"total_filler_words"`
	TotalPauses      int                  `json:"total_pauses"`
}

// GraphExtractor turns question feedback into numeric series.
type GraphExtractor struct {
	gen Generator
}

func NewGraphExtractor(gen Generator) *GraphExtractor {
	return &GraphExtractor{gen: gen}
}

// Extract asks the generator for the qualitative series and takes the count
// and rate series from the stored feedback. Every series has exactly one
// value per answer.
func (x *GraphExtractor) Extract(ctx context.Context, answers []QuestionAnswer) (*GraphBundle, error) {
	if len(answers) == 0 {
		return nil, ErrNoAnswers
	}
	input, err := answerContext(answers)
	if err != nil {
		return nil, err
	}

	req := Request{
		System: graphSystem,
		Prompt: fmt.Sprintf("There are %d questions. Assessments:\n%s", len(answers), input),
		Schema: GraphSchema(),
	}

	var series map[string][]float64
	if err := generate(ctx, x.gen, req, &series); err != nil {
		return nil, fmt.Errorf("extract graph series: %w", err)
	}
	return BuildGraphBundle(series, answers)
}

// BuildGraphBundle checks series lengths against answers, overlays the
// measured counts and rates, and computes the aggregates.
func BuildGraphBundle(series map[string][]float64, answers []QuestionAnswer) (*GraphBundle, error) {
	n := len(answers)
	out := &GraphBundle{
		Questions: n,
		Series:    make(map[string][]float64, len(SeriesKeys)),
		Averages:  make(map[string]float64, len(SeriesKeys)),
	}

	for _, k := range SeriesKeys {
		values, ok := series[k]
		if !ok {
			return nil, fmt.Errorf("%w: series %s missing", ErrSeriesLength, k)
		}
		if len(values) != n {
			return nil, fmt.Errorf("%w: series %s has %d values for %d questions", ErrSeriesLength, k, len(values), n)
		}
		out.Series[k] = append([]float64(nil), values...)
	}

	for i, a := range answers {
		if a.Feedback == nil {
			continue
		}
		out.Series[SeriesFillerWordCount][i] = float64(a.Feedback.FillerWordUsage.Count)
		out.Series[SeriesPauseCount][i] = float64(a.Feedback.PausePattern.Count)
		out.Series[SeriesSpeakingRate][i] = a.Feedback.SpeakingRate.Rate
	}

	for _, k := range SeriesKeys {
		var sum float64
		for _, v := range out.Series[k] {
			sum += v
		}
		out.Averages[k] = math.Round(sum/float64(n)*100) / 100
		switch k {
		case SeriesFillerWordCount:
			out.TotalFillerWords = int(sum)
		case SeriesPauseCount:
			out.TotalPauses = int(sum)
		}
	}
	return out, nil
}
