package explain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rustyeddy/papertrade/trade"
)

const (
	DefaultEndpoint = "https://api.openai.com/v1"
	DefaultModel    = "gpt-4o-mini"
	DefaultTimeout  = 30 * time.Second

	systemPrompt = "You write short, friendly explanations of forex paper trades for complete beginners."
)

// HTTP calls an OpenAI-compatible chat completions endpoint.
type HTTP struct {
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
}

var _ Generator = (*HTTP)(nil)

type HTTPOption func(*HTTP)

func WithEndpoint(u string) HTTPOption {
	return func(h *HTTP) { h.endpoint = strings.TrimRight(u, "/") }
}

func WithModel(m string) HTTPOption {
	return func(h *HTTP) { h.model = m }
}

func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(h *HTTP) { h.httpClient = hc }
}

func NewHTTP(apiKey string, opts ...HTTPOption) (*HTTP, error) {
	if apiKey == "" {
		return nil, errors.New("explain: missing api key")
	}
	h := &HTTP{
		endpoint:   DefaultEndpoint,
		apiKey:     apiKey,
		model:      DefaultModel,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, o := range opts {
		o(h)
	}
	return h, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (h *HTTP) Generate(ctx context.Context, p trade.Position, s trade.Strategy) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: h.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: Prompt(p, s)},
		},
		Temperature: 0.4,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+h.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExternalService, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %w", ErrExternalService, err)
	}

	var out chatResponse
	decErr := json.Unmarshal(raw, &out)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(raw))
		if decErr == nil && out.Error != nil {
			msg = out.Error.Message
		}
		return "", fmt.Errorf("%w: status %d: %s", ErrExternalService, resp.StatusCode, msg)
	}
	if decErr != nil {
		return "", fmt.Errorf("%w: decode: %w", ErrExternalService, decErr)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in response", ErrExternalService)
	}
	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("%w: empty completion", ErrExternalService)
	}
	return text, nil
}
