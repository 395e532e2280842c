package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"takevault/internal/config"
)

// HTTPDoer describes the HTTP client used by the provider client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the voice synthesis HTTP API.
type Client struct {
	baseURL      string
	apiKey       string
	outputFormat string
	client       HTTPDoer
}

// NewClient constructs a provider client from configuration.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:      strings.TrimRight(strings.TrimSpace(cfg.Provider.BaseURL), "/"),
		apiKey:       strings.TrimSpace(cfg.Provider.APIKey),
		outputFormat: cfg.Provider.OutputFormat,
		client:       &http.Client{Timeout: time.Duration(cfg.Provider.TimeoutSeconds) * time.Second},
	}
}

// NewClientWithDoer constructs a provider client with an explicit HTTP doer.
func NewClientWithDoer(baseURL, apiKey, outputFormat string, doer HTTPDoer) *Client {
	return &Client{
		baseURL:      strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:       strings.TrimSpace(apiKey),
		outputFormat: outputFormat,
		client:       doer,
	}
}

// Synthesize renders text in the given voice and returns audio bytes.
func (c *Client) Synthesize(ctx context.Context, text, voiceID string, params Params) ([]byte, error) {
	payload := map[string]any{
		"text": text,
		"voice_settings": map[string]any{
			"stability":        params.Stability,
			"similarity_boost": params.Similarity,
			"style":            params.Style,
			"speed":            params.Speed,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &SynthesisError{Operation: "synthesize", VoiceID: voiceID, Cause: err}
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s", c.baseURL, voiceID, c.outputFormat)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &SynthesisError{Operation: "synthesize", VoiceID: voiceID, Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	audio, err := c.do(req)
	if err != nil {
		return nil, &SynthesisError{Operation: "synthesize", VoiceID: voiceID, Cause: err}
	}
	return audio, nil
}

// ConvertVoice converts reference audio into the target voice.
func (c *Client) ConvertVoice(ctx context.Context, audio []byte, targetVoiceID string, params Params) ([]byte, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("audio", "reference")
	if err == nil {
		_, err = part.Write(audio)
	}
	if err == nil {
		settings := map[string]any{
			"stability":        params.Stability,
			"similarity_boost": params.Similarity,
			"style":            params.Style,
		}
		var encoded []byte
		if encoded, err = json.Marshal(settings); err == nil {
			err = writer.WriteField("voice_settings", string(encoded))
		}
	}
	if err == nil {
		err = writer.Close()
	}
	if err != nil {
		return nil, &SynthesisError{Operation: "convert", VoiceID: targetVoiceID, Cause: err}
	}

	url := fmt.Sprintf("%s/v1/speech-to-speech/%s?output_format=%s", c.baseURL, targetVoiceID, c.outputFormat)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, &SynthesisError{Operation: "convert", VoiceID: targetVoiceID, Cause: err}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	converted, err := c.do(req)
	if err != nil {
		return nil, &SynthesisError{Operation: "convert", VoiceID: targetVoiceID, Cause: err}
	}
	return converted, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	if c.apiKey != "" {
		req.Header.Set("xi-api-key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("provider returned %s: %s", strconv.Itoa(resp.StatusCode), strings.TrimSpace(string(detail)))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio response: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("provider returned empty audio")
	}
	return audio, nil
}

var _ Provider = (*Client)(nil)
