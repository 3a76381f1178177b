package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/velesk/rankline/internal/core/domain"
	"github.com/velesk/rankline/internal/infrastructure/resilience"
)

type embeddingsClient interface {
	CreateEmbeddings(ctx context.Context, req openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// OpenAIProvider embeds texts through an OpenAI-compatible embeddings API.
// Calls go through a rate limiter and the shared resilience executor so a
// degraded upstream trips the breaker instead of stalling every request.
type OpenAIProvider struct {
	client   embeddingsClient
	model    openai.EmbeddingModel
	limiter  *rate.Limiter
	executor *resilience.Executor
	logger   *slog.Logger
}

type OpenAIOptions struct {
	APIKey  string
	BaseURL string
	Model   string

	RequestsPerSecond float64
	Burst             int
}

func NewOpenAIProvider(opts OpenAIOptions, executor *resilience.Executor, logger *slog.Logger) *OpenAIProvider {
	clientCfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		clientCfg.BaseURL = opts.BaseURL
	}

	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	return &OpenAIProvider{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    openai.EmbeddingModel(opts.Model),
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
		executor: executor,
		logger:   logger,
	}
}

func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for i, text := range texts {
		if text == "" {
			return nil, domain.WrapError(domain.ErrInvalidInput, "embed",
				fmt.Errorf("empty text at position %d", i))
		}
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("embed rate limit wait: %w", err)
	}

	var resp openai.EmbeddingResponse
	start := time.Now()
	err := p.executor.Execute(ctx, "openai.embeddings", func(ctx context.Context) error {
		var callErr error
		resp, callErr = p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input:          texts,
			Model:          p.model,
			EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		})
		return callErr
	}, classifyProviderError)
	if err != nil {
		p.logger.Error("embedding_request_failed",
			"model", string(p.model),
			"texts", len(texts),
			"error", err,
		)
		return nil, domain.WrapError(domain.ErrProviderUnavailable, "embed", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, domain.WrapError(domain.ErrProviderUnavailable, "embed",
			fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data)))
	}

	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, domain.WrapError(domain.ErrProviderUnavailable, "embed",
				fmt.Errorf("embedding index %d out of range", item.Index))
		}
		vectors[item.Index] = item.Embedding
	}

	p.logger.Debug("embedding_request_completed",
		"model", string(p.model),
		"texts", len(texts),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return vectors, nil
}

// classifyProviderError retries rate-limit and server-side failures; client
// errors (bad key, oversized input) fail fast and do not count against the
// breaker's failure ratio the way transient faults do.
func classifyProviderError(err error) resilience.ErrorClassification {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500:
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		default:
			return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		retryable := reqErr.HTTPStatusCode == 429 || reqErr.HTTPStatusCode >= 500
		return resilience.ErrorClassification{Retryable: retryable, RecordFailure: retryable}
	}

	// Transport-level failures (connection refused, reset) are retryable.
	return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
}
