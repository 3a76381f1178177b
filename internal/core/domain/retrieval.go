package domain

// Turn is one prior message of the conversation the query belongs to.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ExtractedEntities struct {
	Products   []string `json:"products,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Attributes []string `json:"attributes,omitempty"`
}

func (e ExtractedEntities) Empty() bool {
	return len(e.Products) == 0 && len(e.Categories) == 0 && len(e.Attributes) == 0
}

// Terms returns all entity terms in products, categories, attributes order.
func (e ExtractedEntities) Terms() []string {
	out := make([]string, 0, len(e.Products)+len(e.Categories)+len(e.Attributes))
	out = append(out, e.Products...)
	out = append(out, e.Categories...)
	out = append(out, e.Attributes...)
	return out
}

// ReformulatedQuery is produced once per request and consumed by every
// search strategy.
type ReformulatedQuery struct {
	EffectiveQuery  string            `json:"effective_query"`
	Entities        ExtractedEntities `json:"entities"`
	WasReformulated bool              `json:"was_reformulated"`
	Variations      []string          `json:"variations,omitempty"`
}

type StrategyOrigin string

const (
	StrategySemantic StrategyOrigin = "semantic"
	StrategyMetadata StrategyOrigin = "metadata"
	StrategyKeyword  StrategyOrigin = "keyword"
)

// SearchCandidate is one content chunk proposed by a strategy. After fusion a
// candidate carries every origin that found it; RawScore is the best raw score
// across origins and ScoreOrigin names the strategy that produced it.
type SearchCandidate struct {
	SourceID    string            `json:"source_id"`
	URL         string            `json:"url,omitempty"`
	Title       string            `json:"title,omitempty"`
	Content     string            `json:"content,omitempty"`
	Category    string            `json:"category,omitempty"`
	RawScore    float64           `json:"raw_score"`
	ScoreOrigin StrategyOrigin    `json:"score_origin"`
	Origins     []StrategyOrigin  `json:"origins"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

// Guidance is the downstream presentation hint attached to each tier.
// It is a data attribute, not generated text.
func (t Tier) Guidance() string {
	switch t {
	case TierHigh:
		return "present directly"
	case TierMedium:
		return "present as suggestion"
	default:
		return "use as background context only"
	}
}

// rank orders tiers best-first; lower is better.
func (t Tier) rank() int {
	switch t {
	case TierHigh:
		return 0
	case TierMedium:
		return 1
	default:
		return 2
	}
}

// AtLeast reports whether t is min or a higher tier.
func (t Tier) AtLeast(min Tier) bool {
	return t.rank() <= min.rank()
}

// Before reports whether t sorts ahead of other in tier order.
func (t Tier) Before(other Tier) bool {
	return t.rank() < other.rank()
}

// ScoredResult is the terminal output entity of the retrieval pipeline.
type ScoredResult struct {
	Candidate    SearchCandidate `json:"candidate"`
	Score        float64         `json:"score"`
	Tier         Tier            `json:"tier"`
	Guidance     string          `json:"guidance"`
	BoostApplied float64         `json:"boost_applied"`
}

// RetrievalOptions narrows a single Retrieve call.
type RetrievalOptions struct {
	Limit   int
	MinTier Tier
}

// RetrievalInfo reports how a request was served.
type RetrievalInfo struct {
	RequestID      string           `json:"request_id"`
	Degraded       bool             `json:"degraded"`
	Reformulated   bool             `json:"reformulated"`
	StrategiesUsed []StrategyOrigin `json:"strategies_used"`
	CacheHitRate   float64          `json:"cache_hit_rate"`
	TotalLatencyMs float64          `json:"total_latency_ms"`
}

// RetrievalProfile holds the per-domain tuning knobs. The numbers are
// empirically tuned per content domain and arrive from configuration.
type RetrievalProfile struct {
	SimilarityFloor float64  `yaml:"similarity_floor"`
	TierHigh        float64  `yaml:"tier_high"`
	TierMedium      float64  `yaml:"tier_medium"`
	BoostMultiplier float64  `yaml:"boost_multiplier"`
	BoostCategories []string `yaml:"boost_categories"`
	StrategyLimit   int      `yaml:"strategy_limit"`
	FusionCeiling   int      `yaml:"fusion_ceiling"`
}

// CacheStats is a point-in-time snapshot of the embedding cache counters.
type CacheStats struct {
	Hits             uint64  `json:"hits"`
	Misses           uint64  `json:"misses"`
	Evictions        uint64  `json:"evictions"`
	Expirations      uint64  `json:"expirations"`
	Size             int     `json:"size"`
	HitRate          float64 `json:"hit_rate"`
	EstimatedSavings float64 `json:"estimated_savings"`
}
