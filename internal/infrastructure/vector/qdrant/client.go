package qdrant

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

	"github.com/velesk/rankline/internal/core/domain"
	"github.com/velesk/rankline/internal/infrastructure/resilience"
)

// Client is a read-only search client for a qdrant collection holding
// content chunks with both a dense and a named sparse vector. Index
// population belongs to the ingestion pipeline; this client only queries.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, collection string) *Client {
	return NewWithExecutor(baseURL, collection, nil)
}

// NewWithExecutor routes searches through a retry/breaker executor. A nil
// executor means every call goes straight to the HTTP client.
func NewWithExecutor(baseURL, collection string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		executor:   executor,
	}
}

func (c *Client) SearchDense(
	ctx context.Context,
	queryVector []float32,
	domainID string,
	limit int,
	floor float64,
) ([]domain.SearchCandidate, error) {
	reqBody := map[string]any{
		"vector": map[string]any{
			"name":   "dense",
			"vector": queryVector,
		},
		"limit":        limit,
		"with_payload": true,
	}
	if floor > 0 {
		reqBody["score_threshold"] = floor
	}
	if filter := domainFilter(domainID); filter != nil {
		reqBody["filter"] = filter
	}

	results, err := c.search(ctx, reqBody)
	if err != nil {
		return nil, fmt.Errorf("dense search: %w", err)
	}
	return toCandidates(results, domain.StrategySemantic), nil
}

func (c *Client) SearchSparse(
	ctx context.Context,
	queryText string,
	domainID string,
	limit int,
) ([]domain.SearchCandidate, error) {
	sparse := encodeSparseQuery(queryText)
	if len(sparse.Indices) == 0 {
		return nil, nil
	}

	reqBody := map[string]any{
		"vector": map[string]any{
			"name":   "sparse",
			"vector": sparse,
		},
		"limit":        limit,
		"with_payload": true,
	}
	if filter := domainFilter(domainID); filter != nil {
		reqBody["filter"] = filter
	}

	results, err := c.search(ctx, reqBody)
	if err != nil {
		return nil, fmt.Errorf("sparse search: %w", err)
	}
	return toCandidates(results, domain.StrategyKeyword), nil
}

type searchResult struct {
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

func (c *Client) search(ctx context.Context, reqBody map[string]any) ([]searchResult, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	var results []searchResult
	call := func(ctx context.Context) error {
		var callErr error
		results, callErr = c.doSearch(ctx, body)
		return callErr
	}

	if c.executor != nil {
		err = c.executor.Execute(ctx, "qdrant.search", call, classifySearchError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (c *Client) doSearch(ctx context.Context, body []byte) ([]searchResult, error) {
	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qdrant search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &statusError{status: resp.StatusCode, message: strings.TrimSpace(string(detail))}
	}

	var searchResp struct {
		Result []searchResult `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return searchResp.Result, nil
}

type statusError struct {
	status  int
	message string
}

func (e *statusError) Error() string {
	if e.message != "" {
		return fmt.Sprintf("qdrant search status %d: %s", e.status, e.message)
	}
	return fmt.Sprintf("qdrant search status %d", e.status)
}

func classifySearchError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{}
	}

	var se *statusError
	if errors.As(err, &se) {
		if se.status == http.StatusTooManyRequests || se.status >= 500 {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
		// Bad request or missing collection; retrying will not help.
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}

	// Transport-level failure.
	return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
}

func domainFilter(domainID string) map[string]any {
	if domainID == "" {
		return nil
	}
	return map[string]any{
		"must": []map[string]any{
			{
				"key": "domain_id",
				"match": map[string]any{
					"value": domainID,
				},
			},
		},
	}
}

func toCandidates(results []searchResult, origin domain.StrategyOrigin) []domain.SearchCandidate {
	out := make([]domain.SearchCandidate, 0, len(results))
	for _, r := range results {
		out = append(out, domain.SearchCandidate{
			SourceID:    getStringPayload(r.Payload, "source_id"),
			URL:         getStringPayload(r.Payload, "url"),
			Title:       getStringPayload(r.Payload, "title"),
			Content:     getStringPayload(r.Payload, "text"),
			Category:    getStringPayload(r.Payload, "category"),
			RawScore:    r.Score,
			ScoreOrigin: origin,
			Origins:     []domain.StrategyOrigin{origin},
		})
	}
	return out
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
