package extraction

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
)

// ErrNoChecker is returned when no checker is registered for a rule's type.
var ErrNoChecker = errors.New("no checker registered for rule type")

// Outcome is what a checker reports for one rule.
type Outcome struct {
	Passed         bool           `json:"passed"`
	Details        map[string]any `json:"details,omitempty"`
	AutoCorrected  bool           `json:"auto_corrected"`
	OriginalValue  string         `json:"original_value,omitempty"`
	CorrectedValue string         `json:"corrected_value,omitempty"`
}

// Checker evaluates a rule against the extracted fields of a document.
type Checker func(ctx context.Context, rule *Rule, fields map[string]string) (Outcome, error)

// Registry maps rule types to checkers. field_format is registered by default;
// entity_exists and cross_reference depend on host data and are registered by the host.
type Registry struct {
	mu       sync.RWMutex
	checkers map[RuleType]Checker
}

// NewRegistry creates a registry with the built-in field_format checker.
func NewRegistry() *Registry {
	r := &Registry{checkers: make(map[RuleType]Checker)}
	r.Register(RuleFieldFormat, CheckFieldFormat)
	return r
}

// Register installs (or replaces) the checker for t.
func (r *Registry) Register(t RuleType, c Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers[t] = c
}

// Evaluate runs the checker registered for rule.RuleType.
func (r *Registry) Evaluate(ctx context.Context, rule *Rule, fields map[string]string) (Outcome, error) {
	r.mu.RLock()
	c, ok := r.checkers[rule.RuleType]
	r.mu.RUnlock()
	if !ok {
		return Outcome{}, fmt.Errorf("%s: %w", rule.RuleType, ErrNoChecker)
	}
	return c(ctx, rule, fields)
}

// CheckFieldFormat passes when the field named by rule.FieldToCheck is present and matches
// the regular expression in rule.ValidationQuery. An empty query only requires a non-empty
// value.
func CheckFieldFormat(_ context.Context, rule *Rule, fields map[string]string) (Outcome, error) {
	value, ok := fields[rule.FieldToCheck]
	if !ok || value == "" {
		return Outcome{
			Passed:  false,
			Details: map[string]any{"field": rule.FieldToCheck, "reason": "missing"},
		}, nil
	}
	if rule.ValidationQuery == "" {
		return Outcome{Passed: true, OriginalValue: value}, nil
	}
	re, err := regexp.Compile(rule.ValidationQuery)
	if err != nil {
		return Outcome{}, fmt.Errorf("rule %s: compile pattern: %w", rule.RuleName, err)
	}
	if re.MatchString(value) {
		return Outcome{Passed: true, OriginalValue: value}, nil
	}
	return Outcome{
		Passed:        false,
		OriginalValue: value,
		Details:       map[string]any{"field": rule.FieldToCheck, "reason": "format", "pattern": rule.ValidationQuery},
	}, nil
}
