package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"commsense_backend/internal/config"
	"commsense_backend/internal/feedback"
	"commsense_backend/pkg/logger"
	"commsense_backend/pkg/monitoring"
	"commsense_backend/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var ErrModelRefused = errors.New("model refused")

// AIService talks to an OpenAI compatible chat completions endpoint and
// implements feedback.Generator with strict json_schema responses.
type AIService struct {
	config config.AIConfig
	client *http.Client
}

func NewAIService(cfg config.AIConfig) *AIService {
	return &AIService{config: cfg, client: &http.Client{}}
}

type aiContentPart struct {
	Type       string        `json:"type"`
	Text       string        `json:"text,omitempty"`
	InputAudio *aiInputAudio `json:"input_audio,omitempty"`
}

type aiInputAudio struct {
	Data   string `json:"data"`
	Format string `json:"format"`
}

type AIChatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type aiResponseFormat struct {
	Type       string         `json:"type"`
	JSONSchema map[string]any `json:"json_schema"`
}

type ChatCompletionRequest struct {
	Model          string            `json:"model"`
	Messages       []AIChatMessage   `json:"messages"`
	ResponseFormat *aiResponseFormat `json:"response_format,omitempty"`
}

type ChatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate sends req and returns the model output after checking it against
// req.Schema.
func (s *AIService) Generate(ctx context.Context, req feedback.Request) (raw json.RawMessage, err error) {
	if req.Schema == nil {
		return nil, errors.New("schema required")
	}
	if s.config.BaseURL == "" {
		return nil, fmt.Errorf("ai: base url not set")
	}

	ctx, span := tracing.Start(ctx, "generate", attribute.String("schema", req.Schema.Name))
	start := time.Now()
	defer func() {
		monitoring.ObserveStage("generate_"+req.Schema.Name, start, err)
		tracing.End(span, err)
	}()

	if t := s.config.Timeout(); t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	body := ChatCompletionRequest{
		Model: s.config.Model,
		Messages: []AIChatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: userContent(req)},
		},
		ResponseFormat: &aiResponseFormat{
			Type: "json_schema",
			JSONSchema: map[string]any{
				"name":   req.Schema.Name,
				"schema": req.Schema.Map(),
				"strict": true,
			},
		},
	}

	content, err := s.complete(ctx, body)
	if err != nil {
		return nil, err
	}

	raw = json.RawMessage(stripCodeFence(content))
	if err := req.Schema.Validate(raw); err != nil {
		monitoring.SchemaViolations.WithLabelValues(req.Schema.Name).Inc()
		logger.Log.Error("Generative response failed schema validation",
			zap.String("schema", req.Schema.Name),
			zap.Error(err),
		)
		return nil, err
	}
	return raw, nil
}

// countRecordViolation counts responses that matched their schema but failed a
// record check after decoding. Shape violations are counted in Generate.
func countRecordViolation(err error) {
	var se *feedback.SchemaError
	if errors.As(err, &se) && se.Record {
		monitoring.SchemaViolations.WithLabelValues(se.Schema).Inc()
	}
}

func userContent(req feedback.Request) any {
	if req.Audio == nil || len(req.Audio.Data) == 0 {
		return req.Prompt
	}
	format := req.Audio.Format
	if format == "" {
		format = "wav"
	}
	return []aiContentPart{
		{Type: "text", Text: req.Prompt},
		{Type: "input_audio", InputAudio: &aiInputAudio{
			Data:   base64.StdEncoding.EncodeToString(req.Audio.Data),
			Format: format,
		}},
	}
}

func (s *AIService) complete(ctx context.Context, body ChatCompletionRequest) (string, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(s.config.BaseURL, "/")+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.config.APIKey)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("AI API error (status %d): %s", resp.StatusCode, truncate(string(respBody), 500))
	}

	var result ChatCompletionResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("decode AI response: %w", err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("AI API error: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("AI returned no choices")
	}

	msg := result.Choices[0].Message
	if msg.Refusal != "" {
		return "", fmt.Errorf("%w: %s", ErrModelRefused, msg.Refusal)
	}
	return msg.Content, nil
}

// stripCodeFence removes a markdown fence some models wrap around JSON.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
