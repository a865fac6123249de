package service

import (
	"bytes"
	"commsense_backend/internal/config"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
)

var ErrRecognizerDisabled = errors.New("speech recognizer disabled")

// Recognizer produces a local transcript from a 16 kHz mono WAV file.
type Recognizer interface {
	Transcribe(ctx context.Context, wavPath string) (string, error)
}

// NewRecognizer builds the recognizer selected by recognizer.kind.
func NewRecognizer(ctx context.Context, cfg *config.Config) (Recognizer, error) {
	switch cfg.Recognizer.Kind {
	case config.RecognizerHTTP:
		return NewHTTPRecognizer(cfg.Recognizer.URL), nil
	case config.RecognizerGCP:
		return NewSpeechRecognizer(ctx, cfg.GCP, cfg.Recognizer.LanguageCode)
	default:
		return disabledRecognizer{}, nil
	}
}

type disabledRecognizer struct{}

func (disabledRecognizer) Transcribe(context.Context, string) (string, error) {
	return "", ErrRecognizerDisabled
}

type TranscriptSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type TranscriptResponse struct {
	Segments []TranscriptSegment `json:"segments"`
	Language string              `json:"language"`
}

// HTTPRecognizer posts audio to a speech-to-text sidecar exposing
// POST /transcribe.
type HTTPRecognizer struct {
	url    string
	client *http.Client
}

func NewHTTPRecognizer(url string) *HTTPRecognizer {
	return &HTTPRecognizer{url: strings.TrimRight(url, "/"), client: &http.Client{}}
}

func (r *HTTPRecognizer) Transcribe(ctx context.Context, wavPath string) (string, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	fw, err := w.CreateFormFile("file", filepath.Base(wavPath))
	if err != nil {
		return "", err
	}
	fd, err := os.Open(wavPath)
	if err != nil {
		return "", err
	}
	defer fd.Close()

	if _, err = io.Copy(fw, fd); err != nil {
		return "", err
	}
	if err = w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url+"/transcribe", &b)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("recognizer %s: %s", resp.Status, truncate(string(body), 300))
	}

	var out TranscriptResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("recognizer decode: %w", err)
	}
	parts := make([]string, 0, len(out.Segments))
	for _, s := range out.Segments {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " "), nil
}

// SpeechRecognizer uses Google Cloud Speech-to-Text long running recognition.
type SpeechRecognizer struct {
	client   *speech.Client
	language string
}

func NewSpeechRecognizer(ctx context.Context, gcp config.GCPConfig, language string) (*SpeechRecognizer, error) {
	client, err := speech.NewClient(ctx, gcpOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}
	if language == "" {
		language = "en-US"
	}
	return &SpeechRecognizer{client: client, language: language}, nil
}

func (r *SpeechRecognizer) Transcribe(ctx context.Context, wavPath string) (string, error) {
	data, err := os.ReadFile(wavPath)
	if err != nil {
		return "", err
	}

	op, err := r.client.LongRunningRecognize(ctx, &speechpb.LongRunningRecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:            16000,
			AudioChannelCount:          1,
			LanguageCode:               r.language,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: data},
		},
	})
	if err != nil {
		return "", fmt.Errorf("speech recognize: %w", err)
	}
	resp, err := op.Wait(ctx)
	if err != nil {
		return "", fmt.Errorf("speech wait: %w", err)
	}

	var parts []string
	for _, res := range resp.GetResults() {
		if alts := res.GetAlternatives(); len(alts) > 0 {
			parts = append(parts, strings.TrimSpace(alts[0].GetTranscript()))
		}
	}
	return strings.Join(parts, " "), nil
}

func (r *SpeechRecognizer) Close() error {
	return r.client.Close()
}
