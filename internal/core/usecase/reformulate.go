package usecase

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/velesk/rankline/internal/core/domain"
)

const (
	defaultHistoryWindow = 5
	maxVariations        = 3
	maxRecalledEntities  = 5
)

// RuleDefinition is one continuation-marker rule. Pattern must be a valid
// regexp with exactly one capture group holding the residual text.
type RuleDefinition struct {
	Name    string
	Pattern string
}

type continuationRule struct {
	name    string
	pattern *regexp.Regexp
}

// defaultRuleDefinitions covers the elliptical follow-up phrasings seen in
// live transcripts. Order matters: more specific markers come first so a
// query matches its narrowest rule.
var defaultRuleDefinitions = []RuleDefinition{
	{Name: "i_need_it_for", Pattern: `(?i)^i need (?:it|one|this|that) for (.+)$`},
	{Name: "its_for", Pattern: `(?i)^(?:it'?s|it is) for (.+)$`},
	{Name: "yes_for", Pattern: `(?i)^yes,? (?:it'?s )?for (.+)$`},
	{Name: "for_please", Pattern: `(?i)^for (.+?),? please$`},
	{Name: "what_about", Pattern: `(?i)^(?:what|how) about (.+?)\??$`},
	{Name: "and_for", Pattern: `(?i)^and (?:for )?(.+)$`},
}

// Reformulator rewrites elliptical follow-up queries into standalone ones by
// recalling entities from recent conversation turns. It is stateless across
// requests and safe for concurrent use once built.
type Reformulator struct {
	rules         []continuationRule
	historyWindow int
}

func NewReformulator(historyWindow int, extra []RuleDefinition) (*Reformulator, error) {
	if historyWindow <= 0 {
		historyWindow = defaultHistoryWindow
	}

	defs := make([]RuleDefinition, 0, len(extra)+len(defaultRuleDefinitions))
	defs = append(defs, extra...)
	defs = append(defs, defaultRuleDefinitions...)

	rules := make([]continuationRule, 0, len(defs))
	for _, def := range defs {
		compiled, err := regexp.Compile(def.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compile rule %q: %w", def.Name, err)
		}
		if compiled.NumSubexp() != 1 {
			return nil, fmt.Errorf("rule %q: pattern must have exactly one capture group", def.Name)
		}
		rules = append(rules, continuationRule{name: def.Name, pattern: compiled})
	}

	return &Reformulator{rules: rules, historyWindow: historyWindow}, nil
}

func (r *Reformulator) Reformulate(rawQuery string, history []domain.Turn) domain.ReformulatedQuery {
	trimmed := strings.TrimSpace(rawQuery)

	residual, matched := r.matchContinuation(trimmed)
	if !matched {
		return domain.ReformulatedQuery{
			EffectiveQuery: rawQuery,
			Variations:     passthroughVariations(trimmed),
		}
	}

	entities := r.recallEntities(history)
	if entities.Empty() {
		// Marker matched but nothing to recall; never fabricate context.
		return domain.ReformulatedQuery{
			EffectiveQuery: rawQuery,
			Variations:     passthroughVariations(trimmed),
		}
	}

	entityTerms := entities.Terms()
	effective := strings.Join(append(append([]string{}, entityTerms...), residual), " ")

	return domain.ReformulatedQuery{
		EffectiveQuery:  effective,
		Entities:        entities,
		WasReformulated: true,
		Variations:      buildVariations(entityTerms, residual, effective),
	}
}

func (r *Reformulator) matchContinuation(query string) (residual string, matched bool) {
	for _, rule := range r.rules {
		groups := rule.pattern.FindStringSubmatch(query)
		if groups == nil {
			continue
		}
		return strings.TrimSpace(groups[1]), true
	}
	return "", false
}

// recallEntities scans the most recent turns newest-first for noun-like
// mentions: tokens introduced by an article or want-verb, and capitalized
// runs that look like product names.
func (r *Reformulator) recallEntities(history []domain.Turn) domain.ExtractedEntities {
	var entities domain.ExtractedEntities
	seen := make(map[string]struct{})

	add := func(term string) {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" || isStopword(term) {
			return
		}
		if _, ok := seen[term]; ok {
			return
		}
		if len(seen) >= maxRecalledEntities {
			return
		}
		seen[term] = struct{}{}
		entities.Products = append(entities.Products, term)
	}

	start := len(history) - r.historyWindow
	if start < 0 {
		start = 0
	}
	for i := len(history) - 1; i >= start; i-- {
		for _, name := range capitalizedRuns(history[i].Content) {
			add(name)
		}
		for _, noun := range introducedNouns(history[i].Content) {
			add(noun)
		}
	}
	return entities
}

// introducedNouns returns tokens that directly follow an article or a
// want-verb phrase ("I need a tipper" yields "tipper").
func introducedNouns(text string) []string {
	tokens := tokenize(text)
	var out []string
	for i := 1; i < len(tokens); i++ {
		if !isIntroducer(tokens[i-1]) {
			continue
		}
		token := tokens[i]
		if len(token) < 3 || isStopword(token) {
			continue
		}
		out = append(out, token)
	}
	return out
}

// capitalizedRuns returns multi-word or mid-sentence capitalized sequences,
// the usual shape of product names ("Agri Flip").
func capitalizedRuns(text string) []string {
	words := strings.Fields(text)
	var out []string
	var run []string
	for i, word := range words {
		cleaned := strings.TrimFunc(word, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if cleaned != "" && unicode.IsUpper([]rune(cleaned)[0]) && i > 0 {
			run = append(run, cleaned)
			continue
		}
		if len(run) > 0 {
			out = append(out, strings.Join(run, " "))
			run = nil
		}
	}
	if len(run) > 0 {
		out = append(out, strings.Join(run, " "))
	}
	return out
}

func buildVariations(entityTerms []string, residual, effective string) []string {
	var out []string
	push := func(v string) {
		v = strings.TrimSpace(v)
		if v == "" || v == effective || len(out) >= maxVariations {
			return
		}
		for _, existing := range out {
			if existing == v {
				return
			}
		}
		out = append(out, v)
	}

	// Reversed term order widens recall for position-sensitive lexical match.
	push(strings.Join(append([]string{residual}, entityTerms...), " "))
	push(dropStopwords(effective))
	push(strings.Join(entityTerms, " "))
	return out
}

func passthroughVariations(query string) []string {
	dropped := dropStopwords(query)
	if dropped == "" || dropped == query {
		return nil
	}
	return []string{dropped}
}

func dropStopwords(text string) string {
	var kept []string
	for _, token := range tokenize(text) {
		if isStopword(token) {
			continue
		}
		kept = append(kept, token)
	}
	return strings.Join(kept, " ")
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func isIntroducer(token string) bool {
	switch token {
	case "a", "an", "the", "some", "this", "that", "my", "need", "want", "buy":
		return true
	}
	return false
}

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "is": {}, "are": {}, "was": {}, "be": {},
	"i": {}, "it": {}, "its": {}, "my": {}, "me": {}, "you": {}, "we": {},
	"for": {}, "to": {}, "of": {}, "in": {}, "on": {}, "at": {}, "with": {},
	"and": {}, "or": {}, "do": {}, "does": {}, "need": {}, "want": {},
	"please": {}, "about": {}, "what": {}, "how": {}, "yes": {}, "no": {},
	"this": {}, "that": {}, "some": {},
}

func isStopword(token string) bool {
	_, ok := stopwords[token]
	return ok
}
