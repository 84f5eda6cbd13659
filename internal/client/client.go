package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/kjstillabower/plants-doctor/internal/observability"
)

// GenerativeClient performs one content generation call per invocation.
type GenerativeClient interface {
	GenerateContent(ctx context.Context, req GenerateRequest) (string, error)
	ValidateAPIKey(ctx context.Context) error
}

var (
	ErrInvalidAPIKey   = errors.New("invalid API key")
	ErrRateLimited     = errors.New("rate limited")
	ErrUpstreamFailure = errors.New("upstream failure")
	ErrTransport       = errors.New("transport failure")
	ErrEmptyResponse   = errors.New("empty response")
)

const defaultAPIVersion = "v1beta"

var apiVersionSegment = regexp.MustCompile(`^v\d+(alpha|beta)?\d*$`)

// GenerateRequest describes one generateContent call.
// When ResponseSchema is set the reply is requested as application/json.
type GenerateRequest struct {
	Operation         string
	SystemInstruction string
	Contents          []*genai.Content
	ResponseSchema    *genai.Schema
}

// GeminiClient calls the Gemini API through the genai SDK.
type GeminiClient struct {
	ai    *genai.Client
	model string
}

// NewGeminiClient creates a client for model at apiURL. apiURL may carry the
// API version as its last path segment (".../v1beta"). A zero timeout leaves
// outbound calls bounded only by the caller's context.
func NewGeminiClient(apiKey, apiURL, model string, timeout time.Duration) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	if model == "" {
		return nil, errors.New("model is required")
	}
	base, version, err := splitAPIURL(apiURL)
	if err != nil {
		return nil, err
	}

	ai, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeout},
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    base,
			APIVersion: version,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	return &GeminiClient{ai: ai, model: model}, nil
}

// splitAPIURL separates a trailing version segment from the base URL.
func splitAPIURL(apiURL string) (string, string, error) {
	if apiURL == "" {
		return "", defaultAPIVersion, nil
	}
	u, err := url.Parse(apiURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", "", fmt.Errorf("invalid API URL %q", apiURL)
	}
	path := strings.TrimRight(u.Path, "/")
	version := defaultAPIVersion
	if i := strings.LastIndex(path, "/"); i >= 0 && apiVersionSegment.MatchString(path[i+1:]) {
		version = path[i+1:]
		path = path[:i]
	}
	u.Path = path + "/"
	return u.String(), version, nil
}

// GenerateContent sends req and returns the concatenated text of the first candidate.
// Exactly one HTTP request is made; failures are not retried.
func (c *GeminiClient) GenerateContent(ctx context.Context, req GenerateRequest) (string, error) {
	start := time.Now()
	text, status, err := c.call(ctx, req)
	observability.RecordAICall(req.Operation, status, time.Since(start))
	if err != nil {
		observability.AIErrorsTotal.WithLabelValues(string(CategorizeError(err))).Inc()
		return "", err
	}
	return text, nil
}

func (c *GeminiClient) call(ctx context.Context, req GenerateRequest) (string, string, error) {
	cfg := &genai.GenerateContentConfig{HTTPOptions: requestOptions(ctx)}
	if req.SystemInstruction != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}
	if req.ResponseSchema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = req.ResponseSchema
	}

	resp, err := c.ai.Models.GenerateContent(ctx, c.model, req.Contents, cfg)
	if err != nil {
		return "", failureLabel(err), mapError(err)
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", "blocked", fmt.Errorf("%w: prompt blocked (%s)", ErrEmptyResponse, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return "", "empty", fmt.Errorf("%w: no candidates", ErrEmptyResponse)
	}

	candidate := resp.Candidates[0]
	var sb strings.Builder
	if candidate.Content != nil {
		for _, p := range candidate.Content.Parts {
			if p != nil && !p.Thought {
				sb.WriteString(p.Text)
			}
		}
	}
	if sb.Len() == 0 {
		return "", "empty", fmt.Errorf("%w: candidate has no text (finish reason %s)", ErrEmptyResponse, candidate.FinishReason)
	}
	return sb.String(), "success", nil
}

// requestOptions forwards the request's correlation ID upstream.
func requestOptions(ctx context.Context) *genai.HTTPOptions {
	corrID := extractCorrelationID(ctx)
	if corrID == "" {
		return nil
	}
	return &genai.HTTPOptions{Headers: http.Header{"X-Correlation-ID": []string{corrID}}}
}

// mapError wraps an SDK error in the matching sentinel.
func mapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		msg := fmt.Sprintf("HTTP %d", apiErr.Code)
		if apiErr.Message != "" {
			msg = fmt.Sprintf("HTTP %d: %s", apiErr.Code, apiErr.Message)
		}
		switch {
		case apiErr.Code == http.StatusUnauthorized, apiErr.Code == http.StatusForbidden, keyRejected(apiErr):
			return fmt.Errorf("%w: %s", ErrInvalidAPIKey, msg)
		case apiErr.Code == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %s", ErrRateLimited, msg)
		default:
			return fmt.Errorf("%w: %s", ErrUpstreamFailure, msg)
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return fmt.Errorf("%w: %v", ErrUpstreamFailure, err)
}

func keyRejected(apiErr genai.APIError) bool {
	for _, d := range apiErr.Details {
		if reason, _ := d["reason"].(string); reason == "API_KEY_INVALID" {
			return true
		}
	}
	return false
}

func failureLabel(err error) string {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return statusLabel(apiErr.Code)
	}
	return "error"
}

func extractCorrelationID(ctx context.Context) string {
	if corrIDVal := ctx.Value("correlation_id"); corrIDVal != nil {
		if corrID, ok := corrIDVal.(string); ok {
			return corrID
		}
	}
	return ""
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}

// ValidateAPIKey lists models to confirm the key is accepted.
func (c *GeminiClient) ValidateAPIKey(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := c.ai.Models.List(ctx, &genai.ListModelsConfig{PageSize: 1, HTTPOptions: requestOptions(ctx)}); err != nil {
		return fmt.Errorf("validate API key: %w", mapError(err))
	}
	return nil
}
