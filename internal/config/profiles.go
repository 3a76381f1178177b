package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/velesk/rankline/internal/core/domain"
)

// profilesFile is the on-disk shape of per-domain retrieval tuning.
// Unset numeric fields inherit from the default profile.
type profilesFile struct {
	Domains map[string]profileOverride `yaml:"domains"`
}

type profileOverride struct {
	SimilarityFloor *float64 `yaml:"similarity_floor"`
	TierHigh        *float64 `yaml:"tier_high"`
	TierMedium      *float64 `yaml:"tier_medium"`
	BoostMultiplier *float64 `yaml:"boost_multiplier"`
	BoostCategories []string `yaml:"boost_categories"`
	StrategyLimit   *int     `yaml:"strategy_limit"`
	FusionCeiling   *int     `yaml:"fusion_ceiling"`
}

// LoadProfiles reads per-domain retrieval profiles from a YAML file and
// validates each resolved profile. An empty path yields an empty map; every
// unknown domain then falls back to the default profile at request time.
func LoadProfiles(path string, def domain.RetrievalProfile) (map[string]domain.RetrievalProfile, error) {
	if path == "" {
		return map[string]domain.RetrievalProfile{}, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read domain profiles: %w", err)
	}

	var file profilesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, configErr(fmt.Sprintf("parse domain profiles: %v", err))
	}

	out := make(map[string]domain.RetrievalProfile, len(file.Domains))
	for domainID, ov := range file.Domains {
		profile := resolveProfile(def, ov)
		if err := ValidateProfile(profile); err != nil {
			return nil, fmt.Errorf("domain %q: %w", domainID, err)
		}
		out[domainID] = profile
	}
	return out, nil
}

func resolveProfile(def domain.RetrievalProfile, ov profileOverride) domain.RetrievalProfile {
	profile := def
	if ov.SimilarityFloor != nil {
		profile.SimilarityFloor = *ov.SimilarityFloor
	}
	if ov.TierHigh != nil {
		profile.TierHigh = *ov.TierHigh
	}
	if ov.TierMedium != nil {
		profile.TierMedium = *ov.TierMedium
	}
	if ov.BoostMultiplier != nil {
		profile.BoostMultiplier = *ov.BoostMultiplier
	}
	if ov.BoostCategories != nil {
		profile.BoostCategories = ov.BoostCategories
	}
	if ov.StrategyLimit != nil {
		profile.StrategyLimit = *ov.StrategyLimit
	}
	if ov.FusionCeiling != nil {
		profile.FusionCeiling = *ov.FusionCeiling
	}
	return profile
}

// RuleSpec is one user-supplied continuation rule. Pattern is a Go regular
// expression whose first capture group is the residual query text.
type RuleSpec struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
}

type rulesFile struct {
	Rules []RuleSpec `yaml:"rules"`
}

// LoadReformulationRules reads extra continuation rules from a YAML file.
// An empty path yields nil; the built-in rule table still applies.
func LoadReformulationRules(path string) ([]RuleSpec, error) {
	if path == "" {
		return nil, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reformulation rules: %w", err)
	}

	var file rulesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, configErr(fmt.Sprintf("parse reformulation rules: %v", err))
	}
	for _, rule := range file.Rules {
		if rule.Name == "" || rule.Pattern == "" {
			return nil, configErr("reformulation rule requires name and pattern")
		}
	}
	return file.Rules, nil
}
