package embedding

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/velesk/rankline/internal/core/domain"
	"github.com/velesk/rankline/internal/infrastructure/resilience"
)

type embeddingsClientFake struct {
	calls int
	resp  openai.EmbeddingResponse
	errs  []error
}

func (f *embeddingsClientFake) CreateEmbeddings(_ context.Context, _ openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error) {
	idx := f.calls
	f.calls++
	if idx < len(f.errs) && f.errs[idx] != nil {
		return openai.EmbeddingResponse{}, f.errs[idx]
	}
	return f.resp, nil
}

func newTestProvider(client embeddingsClient) *OpenAIProvider {
	provider := NewOpenAIProvider(OpenAIOptions{
		APIKey:            "test",
		Model:             "text-embedding-3-small",
		RequestsPerSecond: 1000,
		Burst:             100,
	}, resilience.NewExecutor(resilience.Config{BreakerEnabled: false}),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	provider.client = client
	return provider
}

func TestEmbedReordersByResponseIndex(t *testing.T) {
	client := &embeddingsClientFake{
		resp: openai.EmbeddingResponse{
			Data: []openai.Embedding{
				{Index: 1, Embedding: []float32{2}},
				{Index: 0, Embedding: []float32{1}},
			},
		},
	}
	provider := newTestProvider(client)

	vectors, err := provider.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if vectors[0][0] != 1 || vectors[1][0] != 2 {
		t.Fatalf("expected vectors in input order, got %v", vectors)
	}
}

func TestEmbedRejectsEmptyText(t *testing.T) {
	provider := newTestProvider(&embeddingsClientFake{})

	_, err := provider.Embed(context.Background(), []string{"ok", ""})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestEmbedEmptyInputIsNoop(t *testing.T) {
	client := &embeddingsClientFake{}
	provider := newTestProvider(client)

	vectors, err := provider.Embed(context.Background(), nil)
	if err != nil || vectors != nil {
		t.Fatalf("expected nil/nil for empty input, got %v, %v", vectors, err)
	}
	if client.calls != 0 {
		t.Fatalf("expected no upstream call, got %d", client.calls)
	}
}

func TestEmbedRetriesServerError(t *testing.T) {
	client := &embeddingsClientFake{
		errs: []error{&openai.APIError{HTTPStatusCode: 503, Message: "overloaded"}},
		resp: openai.EmbeddingResponse{
			Data: []openai.Embedding{{Index: 0, Embedding: []float32{1}}},
		},
	}
	provider := newTestProvider(client)

	if _, err := provider.Embed(context.Background(), []string{"q"}); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if client.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", client.calls)
	}
}

func TestEmbedDoesNotRetryClientError(t *testing.T) {
	client := &embeddingsClientFake{
		errs: []error{
			&openai.APIError{HTTPStatusCode: 401, Message: "invalid api key"},
			&openai.APIError{HTTPStatusCode: 401, Message: "invalid api key"},
		},
	}
	provider := newTestProvider(client)

	_, err := provider.Embed(context.Background(), []string{"q"})
	if !domain.IsKind(err, domain.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
	if client.calls != 1 {
		t.Fatalf("expected 1 attempt for client error, got %d", client.calls)
	}
}

func TestEmbedCountMismatchIsError(t *testing.T) {
	client := &embeddingsClientFake{
		resp: openai.EmbeddingResponse{
			Data: []openai.Embedding{{Index: 0, Embedding: []float32{1}}},
		},
	}
	provider := newTestProvider(client)

	_, err := provider.Embed(context.Background(), []string{"a", "b"})
	if !domain.IsKind(err, domain.ErrProviderUnavailable) {
		t.Fatalf("expected count mismatch to be a provider error, got %v", err)
	}
}

func TestClassifierTreatsTransportErrorsRetryable(t *testing.T) {
	class := classifyProviderError(errors.New("connection reset by peer"))
	if !class.Retryable || !class.RecordFailure {
		t.Fatalf("expected transport errors retryable and recorded, got %+v", class)
	}

	class = classifyProviderError(context.DeadlineExceeded)
	if class.Retryable || class.RecordFailure {
		t.Fatalf("expected context errors not retried nor recorded, got %+v", class)
	}
}
