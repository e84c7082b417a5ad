// internal/automation/registry.go
package automation

import (
	"errors"
	"fmt"
	"strings"

	apperrors "filing-automation/internal/common/errors"
	"filing-automation/internal/common/validation"
)

// ErrStrategyNotFound is the cause of every STRATEGY_NOT_FOUND error.
var ErrStrategyNotFound = errors.New("strategy not found")

// Entry binds a type token to a strategy. Match defaults to ContainsToken(Token).
type Entry struct {
	Token    string
	Match    func(normalizedType string) bool
	Strategy RegistrationStrategy
}

// ContainsToken matches when token appears in the normalized type as a whole
// run of "_"-separated words, so GST matches GST_REGISTRATION but ESI does not
// match DESIGN_REGISTRATION.
func ContainsToken(token string) func(string) bool {
	return func(normalized string) bool {
		return normalized == token ||
			strings.HasPrefix(normalized, token+"_") ||
			strings.HasSuffix(normalized, "_"+token) ||
			strings.Contains(normalized, "_"+token+"_")
	}
}

// StrategyRegistry resolves normalized type keys to strategies by evaluating
// entries in table order. It is immutable and safe for concurrent use.
type StrategyRegistry struct {
	entries  []Entry
	compiled map[string]RegistrationStrategy
}

// NewRegistry builds a registry from an ordered table. More specific tokens
// must come before the general tokens that would shadow them.
func NewRegistry(entries []Entry) (*StrategyRegistry, error) {
	out := make([]Entry, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for i, e := range entries {
		if e.Strategy == nil {
			return nil, fmt.Errorf("registry entry %d (%s): nil strategy", i, e.Token)
		}
		if err := validation.ValidateTypeKey(e.Token); err != nil {
			return nil, fmt.Errorf("registry entry %d: %w", i, err)
		}
		if seen[e.Token] {
			return nil, fmt.Errorf("registry entry %d: duplicate token %s", i, e.Token)
		}
		seen[e.Token] = true
		if e.Match == nil {
			e.Match = ContainsToken(e.Token)
		}
		out = append(out, e)
	}
	return &StrategyRegistry{entries: out, compiled: map[string]RegistrationStrategy{}}, nil
}

// Precompiled returns a copy of the registry with every given type resolved
// ahead of time, plus the types that did not resolve.
func (r *StrategyRegistry) Precompiled(types []string) (*StrategyRegistry, []string) {
	compiled := make(map[string]RegistrationStrategy, len(types))
	for k, v := range r.compiled {
		compiled[k] = v
	}
	var unresolved []string
	for _, t := range types {
		key := NormalizeType(t)
		if s, ok := r.scan(key); ok {
			compiled[key] = s
			continue
		}
		unresolved = append(unresolved, t)
	}
	return &StrategyRegistry{entries: r.entries, compiled: compiled}, unresolved
}

// Resolve returns the strategy for a registration type. The lookup normalizes
// its input, so raw or normalized types both work.
func (r *StrategyRegistry) Resolve(registrationType string) (RegistrationStrategy, error) {
	key := NormalizeType(registrationType)
	if s, ok := r.compiled[key]; ok {
		return s, nil
	}
	if s, ok := r.scan(key); ok {
		return s, nil
	}
	return nil, apperrors.NewStrategyNotFoundError(key, ErrStrategyNotFound)
}

func (r *StrategyRegistry) scan(key string) (RegistrationStrategy, bool) {
	if key == "" {
		return nil, false
	}
	for _, e := range r.entries {
		if e.Match(key) {
			return e.Strategy, true
		}
	}
	return nil, false
}

// Tokens lists the tokens in evaluation order.
func (r *StrategyRegistry) Tokens() []string {
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Token
	}
	return out
}
