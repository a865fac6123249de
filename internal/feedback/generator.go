package feedback

import (
	"context"
	"encoding/json"
)

// Attachment is binary media sent alongside a prompt.
type Attachment struct {
	Data     []byte
	MIMEType string
	// Format is the short audio format name, e.g. "wav" or "mp3".
	Format string
}

// Request is one schema-constrained generation.
type Request struct {
	System string
	Prompt string
	Schema *Schema
	Audio  *Attachment
}

// Generator is the generative reasoning capability. Implementations return
// the raw JSON produced by the model; callers validate it against
// Request.Schema and reject anything that does not conform.
type Generator interface {
	Generate(ctx context.Context, req Request) (json.RawMessage, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req Request) (json.RawMessage, error)

func (fn GeneratorFunc) Generate(ctx context.Context, req Request) (json.RawMessage, error) {
	return fn(ctx, req)
}

// generate runs req and decodes the validated response into out.
func generate(ctx context.Context, gen Generator, req Request, out any) error {
	raw, err := gen.Generate(ctx, req)
	if err != nil {
		return err
	}
	return Decode(raw, req.Schema, out)
}
