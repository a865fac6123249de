package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang/freetype/truetype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/goregular"

	"commsense_backend/internal/feedback"
)

func testDocument(n int) Document {
	qs := make([]feedback.QuestionAnswer, n)
	series := make(map[string][]float64, len(feedback.SeriesKeys))
	for _, k := range feedback.SeriesKeys {
		series[k] = make([]float64, n)
	}
	for i := range qs {
		qs[i] = feedback.QuestionAnswer{
			Index:    i,
			Question: fmt.Sprintf("Describe situation %d", i+1),
			Feedback: &feedback.QuestionFeedback{
				Transcript:          "um so I think",
				GeneralFeedback:     "clear",
				SentenceStructuring: "fine",
				SpeakingRate:        feedback.RateComment{Rate: 3, Comment: "steady"},
				PausePattern:        feedback.CountComment{Count: 2, Comment: "ok"},
				FillerWordUsage:     feedback.CountComment{Count: 4, Comment: "um"},
				TimestampedFeedback: []feedback.TimestampedNote{{Time: "00:00:07", Feedback: "breathe"}},
			},
		}
		for _, k := range feedback.SeriesKeys {
			series[k][i] = float64(i%5 + 1)
		}
	}

	return Document{
		CandidateName: "Ana Müller",
		GeneratedAt:   time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		Summary: &feedback.QuizSummary{
			OverallFeedback: feedback.OverallFeedback{Summary: "Good progress", KeyStrengths: "tone", AreasOfImprovement: "fillers"},
			Advanced: feedback.AdvancedSummary{
				Articulation:    "crisp",
				FillerWordUsage: feedback.CountComment{Count: 4 * n, Comment: "frequent um"},
				PausePattern:    feedback.CountComment{Count: 2 * n, Comment: "natural"},
				SpeakingRate:    feedback.RateComment{Rate: 3, Comment: "steady"},
				ActionableRecommendations: []feedback.Recommendation{
					{Recommendation: "Replace um with a pause", Reason: "fillers distract"},
					{Recommendation: "Slow the opening", Reason: "first sentence is rushed"},
				},
				PersonalizedExamples: []feedback.PersonalizedExample{{Feedback: "drop um", Line: "um so I think"}},
			},
		},
		Graphs:    &feedback.GraphBundle{Questions: n, Series: series},
		Questions: qs,
	}
}

func newTestRenderer(t *testing.T, opts ...Option) (*Renderer, string) {
	root := t.TempDir()
	r, err := NewRenderer(append([]Option{WithTempRoot(root), WithCompression(false)}, opts...)...)
	require.NoError(t, err)
	return r, root
}

func TestRenderQuestionBlocks(t *testing.T) {
	for _, n := range []int{1, 3, 5} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			r, root := newTestRenderer(t)

			var buf bytes.Buffer
			stats, err := r.Render(context.Background(), testDocument(n), &buf)
			require.NoError(t, err)

			assert.Equal(t, n, stats.QuestionBlocks)
			assert.Equal(t, len(feedback.SeriesKeys), stats.Charts)
			assert.GreaterOrEqual(t, stats.Pages, n+2)
			assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
			assert.Equal(t, n, bytes.Count(buf.Bytes(), []byte("(Question ")))

			entries, err := os.ReadDir(root)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestRenderCleansUpOnFailure(t *testing.T) {
	boom := errors.New("disk full")
	var root string
	var charts []string
	r, root := newTestRenderer(t, WithProgress(func(section string) error {
		if section != "question 3" {
			return nil
		}
		charts, _ = filepath.Glob(filepath.Join(root, "report-*", "*.png"))
		return boom
	}))

	var buf bytes.Buffer
	_, err := r.Render(context.Background(), testDocument(3), &buf)
	require.ErrorIs(t, err, boom)

	assert.Len(t, charts, len(feedback.SeriesKeys), "charts exist while the document is assembled")
	assert.Zero(t, buf.Len())

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRenderReportsProgress(t *testing.T) {
	var seen []string
	r, _ := newTestRenderer(t, WithProgress(func(section string) error {
		seen = append(seen, section)
		return nil
	}))

	var buf bytes.Buffer
	_, err := r.Render(context.Background(), testDocument(2), &buf)
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "overall", "metrics", "recommendations", "charts", "question 1", "question 2"}, seen)
}

func TestRenderRequiresSummary(t *testing.T) {
	r, root := newTestRenderer(t)
	doc := testDocument(1)
	doc.Summary = nil

	_, err := r.Render(context.Background(), doc, &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrIncompleteDocument)

	entries, _ := os.ReadDir(root)
	assert.Empty(t, entries)
}

func TestRenderCanceled(t *testing.T) {
	r, root := newTestRenderer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Render(ctx, testDocument(2), &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)

	entries, _ := os.ReadDir(root)
	assert.Empty(t, entries)
}

func TestRenderConcurrent(t *testing.T) {
	r, root := newTestRenderer(t)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = r.Render(context.Background(), testDocument(i+1), &bytes.Buffer{})
		}()
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	entries, _ := os.ReadDir(root)
	assert.Empty(t, entries)
}

func TestChartMeanAndDraw(t *testing.T) {
	assert.Zero(t, Chart{}.Mean())
	assert.Equal(t, 3.0, Chart{Values: []float64{2, 4}}.Mean())

	f, err := truetype.Parse(goregular.TTF)
	require.NoError(t, err)
	face := truetype.NewFace(f, &truetype.Options{Size: 12})

	dc := Chart{Title: "Tone Over Time", Values: []float64{1}, Floor: 5}.draw(face)
	assert.Equal(t, chartWidth, dc.Width())
	assert.Equal(t, chartHeight, dc.Height())
}
