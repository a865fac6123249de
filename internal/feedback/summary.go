package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrNoAnswers = errors.New("no answers to summarize")

// QuestionAnswer pairs a question with the critique of its answer.
type QuestionAnswer struct {
	Index    int               `json:"index"`
	Question string            `json:"question"`
	Feedback *QuestionFeedback `json:"feedback"`
}

// SummaryKey identifies the single summary of one quiz attempt.
type SummaryKey struct {
	UserID uint
	QuizID uint
}

// SummaryStore persists validated summaries. Saving an existing key replaces
// the stored summary.
type SummaryStore interface {
	SaveSummary(ctx context.Context, key SummaryKey, s *QuizSummary) error
}

type SummaryBuilder struct {
	gen   Generator
	store SummaryStore
}

func NewSummaryBuilder(gen Generator, store SummaryStore) *SummaryBuilder {
	return &SummaryBuilder{gen: gen, store: store}
}

// Build synthesizes the quiz summary and persists it under key. Nothing is
// stored when the response fails validation.
func (b *SummaryBuilder) Build(ctx context.Context, key SummaryKey, answers []QuestionAnswer) (*QuizSummary, error) {
	if len(answers) == 0 {
		return nil, ErrNoAnswers
	}
	input, err := answerContext(answers)
	if err != nil {
		return nil, err
	}

	req := Request{
		System: summarySystem,
		Prompt: "Per-question assessments:\n" + input,
		Schema: QuizSummarySchema(),
	}

	var s QuizSummary
	if err := generate(ctx, b.gen, req, &s); err != nil {
		return nil, fmt.Errorf("build summary: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("build summary: %w", withSchema(err, req.Schema))
	}

	if b.store != nil {
		if err := b.store.SaveSummary(ctx, key, &s); err != nil {
			return nil, fmt.Errorf("save summary: %w", err)
		}
	}
	return &s, nil
}

// answerContext renders the answers as JSON lines, one question per line.
func answerContext(answers []QuestionAnswer) (string, error) {
	var b strings.Builder
	for _, a := range answers {
		if a.Feedback == nil {
			return "", fmt.Errorf("%w: question %d has no feedback", ErrInvalidRecord, a.Index)
		}
		line, err := json.Marshal(a)
		if err != nil {
			return "", err
		}
		b.Write(line)
		b.WriteByte('\n')
	}
	return b.String(), nil
}
