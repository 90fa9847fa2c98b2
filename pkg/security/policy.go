package security

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"time"
)

// RateBudget is the rate-limit allowance for one tool
type RateBudget struct {
	MaxCalls int           `json:"max_calls"`
	Window   time.Duration `json:"window"`
}

// Policy is the immutable process-wide security policy. It maps tools to
// required security levels, lists forbidden argument patterns, and holds
// rate-limit budgets. Safe for concurrent reads after construction.
type Policy struct {
	toolLevels    map[string]Level
	patterns      []*regexp.Regexp
	rateLimits    map[string]RateBudget
	defaultBudget RateBudget
}

// DefaultBudget is the fallback rate-limit budget when a tool has no override
var DefaultBudget = RateBudget{MaxCalls: 100, Window: time.Hour}

// NewPolicy builds a policy from raw configuration values. Pattern strings
// must be valid regular expressions.
func NewPolicy(toolLevels map[string]string, forbiddenPatterns []string, rateLimits map[string]RateBudget) (*Policy, error) {
	levels := make(map[string]Level, len(toolLevels))
	for tool, name := range toolLevels {
		level, err := ParseLevel(name)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", tool, err)
		}
		levels[tool] = level
	}

	patterns := make([]*regexp.Regexp, 0, len(forbiddenPatterns))
	for _, p := range forbiddenPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid forbidden pattern %q: %w", p, err)
		}
		patterns = append(patterns, re)
	}

	budgets := make(map[string]RateBudget, len(rateLimits))
	defaultBudget := DefaultBudget
	for tool, budget := range rateLimits {
		if budget.MaxCalls <= 0 || budget.Window <= 0 {
			return nil, fmt.Errorf("tool %s: invalid rate budget", tool)
		}
		if tool == "default" {
			defaultBudget = budget
			continue
		}
		budgets[tool] = budget
	}

	return &Policy{
		toolLevels:    levels,
		patterns:      patterns,
		rateLimits:    budgets,
		defaultBudget: defaultBudget,
	}, nil
}

// LevelFor returns the required security level for a tool.
// Unknown tools default to low.
func (p *Policy) LevelFor(toolName string) Level {
	if level, ok := p.toolLevels[toolName]; ok {
		return level
	}
	return LevelLow
}

// BudgetFor returns the rate-limit budget for a tool
func (p *Policy) BudgetFor(toolName string) RateBudget {
	if budget, ok := p.rateLimits[toolName]; ok {
		return budget
	}
	return p.defaultBudget
}

// ScanArguments serializes the argument map deterministically and tests it
// against every forbidden pattern. A non-empty return is the source text of
// the first matching pattern.
func (p *Policy) ScanArguments(arguments map[string]interface{}) (string, bool) {
	serialized := CanonicalArguments(arguments)
	for _, re := range p.patterns {
		if re.MatchString(serialized) {
			return re.String(), true
		}
	}
	return "", false
}

// CanonicalArguments renders an argument map as a deterministic string:
// keys sorted, values JSON-encoded. Used both for pattern scanning and for
// fingerprinting, so identical calls always produce identical text.
func CanonicalArguments(arguments map[string]interface{}) string {
	if len(arguments) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(arguments))
	for k := range arguments {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := "{"
	for i, k := range keys {
		if i > 0 {
			out += ","
		}
		value, err := json.Marshal(arguments[k])
		if err != nil {
			value = []byte(fmt.Sprintf("%q", fmt.Sprintf("%v", arguments[k])))
		}
		out += fmt.Sprintf("%q:%s", k, value)
	}
	return out + "}"
}
