package feedback

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrLocalTranscriptUnavailable = errors.New("local transcript unavailable")
	ErrEmptyAudio                 = errors.New("empty audio")
)

// TranscriptPair is the outcome of fusing two transcripts of one answer.
type TranscriptPair struct {
	Local      string  `json:"local"`
	Generated  string  `json:"generated"`
	Similarity float64 `json:"similarity"`
	Merged     string  `json:"merged"`
	// SingleSource is set when the local recognizer produced nothing and the
	// generated transcript was used as is.
	SingleSource bool `json:"single_source"`
}

type fusionResult struct {
	Similarity float64 `json:"similarity"`
	Transcript string  `json:"transcript"`
}

// FusionEngine merges a local recognizer transcript with the transcript of a
// generative critique.
type FusionEngine struct {
	gen          Generator
	requireLocal bool
}

// NewFusionEngine builds an engine. With requireLocal set, an answer without a
// local transcript fails instead of falling back to the generated one.
func NewFusionEngine(gen Generator, requireLocal bool) *FusionEngine {
	return &FusionEngine{gen: gen, requireLocal: requireLocal}
}

// Fuse combines both transcripts. localErr reports a recognizer failure.
func (e *FusionEngine) Fuse(ctx context.Context, question, local, generated string, localErr error) (*TranscriptPair, error) {
	if localErr != nil {
		if e.requireLocal {
			return nil, fmt.Errorf("%w: %v", ErrLocalTranscriptUnavailable, localErr)
		}
		return &TranscriptPair{
			Generated:    generated,
			Merged:       generated,
			SingleSource: true,
		}, nil
	}

	req := Request{
		System: fusionSystem,
		Prompt: fmt.Sprintf("Question: %s\n\nTranscript 1 (generative critique): %s\n\nTranscript 2 (speech recognizer): %s",
			question, generated, local),
		Schema: FusionSchema(),
	}

	var out fusionResult
	if err := generate(ctx, e.gen, req, &out); err != nil {
		return nil, fmt.Errorf("fuse transcripts: %w", err)
	}
	if strings.TrimSpace(out.Transcript) == "" {
		return nil, fmt.Errorf("fuse transcripts: %w", &SchemaError{
			Schema: req.Schema.Name,
			Path:   "$.transcript",
			Reason: "empty transcript",
		})
	}

	return &TranscriptPair{
		Local:      local,
		Generated:  generated,
		Similarity: out.Similarity,
		Merged:     out.Transcript,
	}, nil
}

// Critic produces the structured critique of one recorded answer.
type Critic struct {
	gen Generator
}

func NewCritic(gen Generator) *Critic {
	return &Critic{gen: gen}
}

func (c *Critic) Assess(ctx context.Context, question string, audio Attachment) (*QuestionFeedback, error) {
	if len(audio.Data) == 0 {
		return nil, ErrEmptyAudio
	}

	req := Request{
		System: critiqueSystemPrompt(question),
		Prompt: "Assess this candidate's recorded answer.",
		Schema: QuestionFeedbackSchema(),
		Audio:  &audio,
	}

	var fb QuestionFeedback
	if err := generate(ctx, c.gen, req, &fb); err != nil {
		return nil, fmt.Errorf("assess answer: %w", err)
	}
	if err := fb.Validate(); err != nil {
		return nil, fmt.Errorf("assess answer: %w", withSchema(err, req.Schema))
	}
	return &fb, nil
}
