// Package gateway is the single entry point for generative AI features. Each
// operation builds one instruction and response schema, makes exactly one
// outbound call, and checks the reply against the expected shape.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/kjstillabower/plants-doctor/internal/circuitbreaker"
	"github.com/kjstillabower/plants-doctor/internal/client"
	"github.com/kjstillabower/plants-doctor/internal/models"
	"github.com/kjstillabower/plants-doctor/internal/observability"
	"github.com/kjstillabower/plants-doctor/internal/traffic"
)

// ErrInvalidResponse is returned when a structured reply is not valid JSON or
// does not satisfy the operation's response contract.
var ErrInvalidResponse = errors.New("invalid AI response")

// Operation names, used as metric labels and in wrapped errors.
const (
	OpDiagnose  = "diagnose"
	OpWeather   = "weather"
	OpLearn     = "learn"
	OpTranslate = "translate"
	OpChat      = "chat"
)

// AI is the set of operations feature views depend on.
type AI interface {
	DiagnoseImage(ctx context.Context, image []byte, mimeType string) (models.DiseaseAnalysis, error)
	FetchWeather(ctx context.Context, lat, lon float64) (models.WeatherData, error)
	FetchLearningResources(ctx context.Context) ([]models.LearningResource, error)
	Translate(ctx context.Context, text, targetLanguage string) (string, error)
	OpenChat() *ChatSession
}

// Gateway implements AI over a GenerativeClient.
type Gateway struct {
	client  client.GenerativeClient
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
}

// New returns a Gateway. breaker may be nil.
func New(c client.GenerativeClient, breaker *circuitbreaker.CircuitBreaker, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{client: c, breaker: breaker, logger: logger}
}

// generate performs the single outbound call for one operation.
func (g *Gateway) generate(ctx context.Context, req client.GenerateRequest) (string, error) {
	start := time.Now()
	var text string
	err := g.breaker.Call(func() error {
		var callErr error
		text, callErr = g.client.GenerateContent(ctx, req)
		return callErr
	})
	if err != nil {
		traffic.RecordError(req.Operation)
		loggerFrom(ctx, g.logger).Warn("ai call failed",
			zap.String("operation", req.Operation),
			zap.String("category", string(client.CategorizeError(err))),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return "", fmt.Errorf("%s: %w", req.Operation, err)
	}
	return text, nil
}

// invalid records and wraps a contract violation for operation.
func (g *Gateway) invalid(ctx context.Context, operation, raw string, cause error) error {
	traffic.RecordError(operation)
	observability.AIInvalidResponsesTotal.WithLabelValues(operation).Inc()
	loggerFrom(ctx, g.logger).Warn("ai reply rejected",
		zap.String("operation", operation),
		zap.Int("replyBytes", len(raw)),
		zap.Error(cause),
	)
	return fmt.Errorf("%w: %s: %v", ErrInvalidResponse, operation, cause)
}

func loggerFrom(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if l, ok := ctx.Value("logger").(*zap.Logger); ok && l != nil {
		return l
	}
	return fallback
}

// DiagnoseImage asks for a disease analysis of a single plant photo.
func (g *Gateway) DiagnoseImage(ctx context.Context, image []byte, mimeType string) (models.DiseaseAnalysis, error) {
	raw, err := g.generate(ctx, client.GenerateRequest{
		Operation:      OpDiagnose,
		Contents:       []*genai.Content{client.UserImage(mimeType, image, diagnosePrompt)},
		ResponseSchema: diseaseSchema,
	})
	if err != nil {
		return models.DiseaseAnalysis{}, err
	}
	analysis, err := parseDiseaseAnalysis(raw)
	if err != nil {
		return models.DiseaseAnalysis{}, g.invalid(ctx, OpDiagnose, raw, err)
	}
	traffic.RecordSuccess(OpDiagnose)
	return analysis, nil
}

// FetchWeather asks for current conditions, a three-day forecast and soil data at lat/lon.
func (g *Gateway) FetchWeather(ctx context.Context, lat, lon float64) (models.WeatherData, error) {
	raw, err := g.generate(ctx, client.GenerateRequest{
		Operation:      OpWeather,
		Contents:       []*genai.Content{client.UserText(weatherPrompt(lat, lon))},
		ResponseSchema: weatherSchema,
	})
	if err != nil {
		return models.WeatherData{}, err
	}
	data, err := parseWeather(raw)
	if err != nil {
		return models.WeatherData{}, g.invalid(ctx, OpWeather, raw, err)
	}
	traffic.RecordSuccess(OpWeather)
	return data, nil
}

// FetchLearningResources asks for exactly five farming technique articles.
func (g *Gateway) FetchLearningResources(ctx context.Context) ([]models.LearningResource, error) {
	raw, err := g.generate(ctx, client.GenerateRequest{
		Operation:      OpLearn,
		Contents:       []*genai.Content{client.UserText(learnPrompt)},
		ResponseSchema: learningSchema,
	})
	if err != nil {
		return nil, err
	}
	resources, err := parseLearningResources(raw)
	if err != nil {
		return nil, g.invalid(ctx, OpLearn, raw, err)
	}
	traffic.RecordSuccess(OpLearn)
	return resources, nil
}

// Translate returns text rendered in targetLanguage (a language name such as "Spanish").
func (g *Gateway) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	raw, err := g.generate(ctx, client.GenerateRequest{
		Operation: OpTranslate,
		Contents:  []*genai.Content{client.UserText(translatePrompt(text, targetLanguage))},
	})
	if err != nil {
		return "", err
	}
	traffic.RecordSuccess(OpTranslate)
	return trimReply(raw), nil
}
