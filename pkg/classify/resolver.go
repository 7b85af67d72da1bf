package classify

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Rule pairs a pure predicate over a classification with a resolution action.
// Resolve may have side effects but must be safe to run again for the same failure.
type Rule struct {
	// Name identifies the rule; names are unique within a Resolver
	Name string

	// Priority orders evaluation, higher first; ties keep registration order
	Priority int

	// Match reports whether the rule applies
	Match func(c Classification) bool

	// Resolve attempts to fix the cause; a nil error means resolved
	Resolve func(ctx context.Context, c Classification) error
}

// Resolution reports what the resolver did with a failure
type Resolution struct {
	Classification Classification

	// Rule is the name of the matching rule, empty when none matched
	Rule string

	// Err is the error returned by the rule's Resolve, if any
	Err error
}

// Resolved reports whether a rule matched and resolved the failure
func (r Resolution) Resolved() bool {
	return r.Rule != "" && r.Err == nil
}

// Resolver evaluates rules first-match-wins. Each queue or caller owns its
// own instance; there is no package-level registry.
type Resolver struct {
	rules []registeredRule
	seq   int
	mu    sync.RWMutex
}

type registeredRule struct {
	Rule
	seq int
}

// NewResolver creates a resolver with the given rules
func NewResolver(rules ...Rule) (*Resolver, error) {
	r := &Resolver{}
	for _, rule := range rules {
		if err := r.Register(rule); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a rule
func (r *Resolver) Register(rule Rule) error {
	if rule.Name == "" {
		return fmt.Errorf("rule name cannot be empty")
	}
	if rule.Match == nil {
		return fmt.Errorf("rule %s has no match predicate", rule.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.rules {
		if existing.Name == rule.Name {
			return fmt.Errorf("rule with name %s already exists", rule.Name)
		}
	}

	r.seq++
	r.rules = append(r.rules, registeredRule{Rule: rule, seq: r.seq})
	sort.SliceStable(r.rules, func(i, j int) bool {
		if r.rules[i].Priority != r.rules[j].Priority {
			return r.rules[i].Priority > r.rules[j].Priority
		}
		return r.rules[i].seq < r.rules[j].seq
	})

	return nil
}

// Unregister removes a rule by name
func (r *Resolver) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, rule := range r.rules {
		if rule.Name == name {
			r.rules = append(r.rules[:i], r.rules[i+1:]...)
			return nil
		}
	}

	return fmt.Errorf("rule with name %s not found", name)
}

// Rules lists rule names in evaluation order
func (r *Resolver) Rules() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.rules))
	for _, rule := range r.rules {
		names = append(names, rule.Name)
	}
	return names
}

// Match returns the first rule matching c
func (r *Resolver) Match(c Classification) (Rule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rule := range r.rules {
		if rule.Match(c) {
			return rule.Rule, true
		}
	}
	return Rule{}, false
}

// Resolve classifies err and runs the first matching rule
func (r *Resolver) Resolve(ctx context.Context, err error) Resolution {
	c := Classify(err)
	res := Resolution{Classification: c}

	rule, ok := r.Match(c)
	if !ok {
		return res
	}

	res.Rule = rule.Name
	if rule.Resolve != nil {
		res.Err = rule.Resolve(ctx, c)
	}
	return res
}

// MatchType returns a predicate matching any of the given types
func MatchType(want ...ErrorType) func(Classification) bool {
	return func(c Classification) bool {
		for _, t := range want {
			if c.Type == t {
				return true
			}
		}
		return false
	}
}
