package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrQuestionCount = errors.New("question count out of range")

const (
	MinQuestions = 1
	MaxQuestions = 10
)

// Planner generates question sets and learning plans.
type Planner struct {
	gen Generator
}

func NewPlanner(gen Generator) *Planner {
	return &Planner{gen: gen}
}

// Questions returns exactly n interview questions.
func (p *Planner) Questions(ctx context.Context, n int) ([]string, error) {
	if n < MinQuestions || n > MaxQuestions {
		return nil, fmt.Errorf("%w: %d", ErrQuestionCount, n)
	}

	req := Request{
		System: questionSystem,
		Prompt: fmt.Sprintf("Generate exactly %d questions.", n),
		Schema: QuestionSetSchema(),
	}
	var set QuestionSet
	if err := generate(ctx, p.gen, req, &set); err != nil {
		return nil, fmt.Errorf("generate questions: %w", err)
	}

	out := make([]string, 0, n)
	for _, q := range set.Questions {
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
	}
	if len(out) < n {
		return nil, fmt.Errorf("generate questions: %w", &SchemaError{
			Schema: req.Schema.Name,
			Path:   "$.questions",
			Reason: fmt.Sprintf("expected %d questions, got %d", n, len(out)),
		})
	}
	return out[:n], nil
}

// LearningPlan builds a plan for the learner's request, using recent
// summaries as context when there are any.
func (p *Planner) LearningPlan(ctx context.Context, input string, history []QuizSummary) (*LearningPlan, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("%w: empty request", ErrInvalidRecord)
	}

	var prompt strings.Builder
	prompt.WriteString("Learner request: ")
	prompt.WriteString(input)
	if len(history) > 0 {
		raw, err := json.Marshal(history)
		if err != nil {
			return nil, err
		}
		prompt.WriteString("\n\nRecent assessment summaries:\n")
		prompt.Write(raw)
	}

	req := Request{
		System: planSystem,
		Prompt: prompt.String(),
		Schema: LearningPlanSchema(),
	}
	var plan LearningPlan
	if err := generate(ctx, p.gen, req, &plan); err != nil {
		return nil, fmt.Errorf("generate learning plan: %w", err)
	}
	return &plan, nil
}
