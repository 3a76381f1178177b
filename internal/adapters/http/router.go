package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/velesk/rankline/internal/core/domain"
	"github.com/velesk/rankline/internal/core/ports"
	"github.com/velesk/rankline/internal/observability/metrics"
)

// Router is the thin HTTP boundary over the retrieval pipeline. It owns
// request decoding and status mapping only; all semantics live in the core.
type Router struct {
	retriever ports.Retriever
	inspector ports.CacheInspector
	metrics   *metrics.HTTPServerMetrics
	service   string
}

func NewRouter(
	retriever ports.Retriever,
	inspector ports.CacheInspector,
	httpMetrics *metrics.HTTPServerMetrics,
	service string,
) *Router {
	return &Router{
		retriever: retriever,
		inspector: inspector,
		metrics:   httpMetrics,
		service:   service,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/retrieve", rt.retrieve)
	mux.HandleFunc("/v1/retrieve/stats", rt.stats)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type retrieveRequest struct {
	Query    string        `json:"query"`
	History  []domain.Turn `json:"history,omitempty"`
	DomainID string        `json:"domain_id,omitempty"`
	Limit    int           `json:"limit,omitempty"`
	MinTier  string        `json:"min_tier,omitempty"`
}

type retrieveResponse struct {
	Results []domain.ScoredResult `json:"results"`
	Info    domain.RetrievalInfo  `json:"info"`
}

func (rt *Router) retrieve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	minTier, ok := parseTier(req.MinTier)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "min_tier must be high, medium or low"})
		return
	}

	results, info, err := rt.retriever.Retrieve(r.Context(), req.Query, req.History, req.DomainID, domain.RetrievalOptions{
		Limit:   req.Limit,
		MinTier: minTier,
	})
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, retrieveResponse{Results: results, Info: info})
}

func (rt *Router) stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"cache": rt.inspector.Stats(),
	})
}

func parseTier(raw string) (domain.Tier, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return "", true
	case "high":
		return domain.TierHigh, true
	case "medium":
		return domain.TierMedium, true
	case "low":
		return domain.TierLow, true
	default:
		return "", false
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
