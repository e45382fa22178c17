package chore

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

var ErrInvalidRule = errors.New("invalid rule")

// Validate checks the fields generation depends on.
func (r Rule) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidRule)
	}
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("%w: %s: empty title", ErrInvalidRule, r.ID)
	}
	if len(r.Weekdays) == 0 {
		return fmt.Errorf("%w: %s: no weekdays", ErrInvalidRule, r.ID)
	}
	for _, w := range r.Weekdays {
		if !w.Valid() {
			return fmt.Errorf("%w: %s: bad weekday %d", ErrInvalidRule, r.ID, int(w))
		}
	}
	if !r.Frequency.Valid() {
		return fmt.Errorf("%w: %s: bad frequency %d", ErrInvalidRule, r.ID, int(r.Frequency))
	}
	return nil
}

// RuleStore holds the current rule set. It is replaced wholesale on refresh.
type RuleStore struct {
	mu      sync.RWMutex
	rules   []Rule
	changed bool
}

func NewRuleStore() *RuleStore { return &RuleStore{} }

// SetRules replaces the rule set. It reports true iff at least one incoming
// rule id was absent from the previous set; removals and edits do not count.
func (s *RuleStore) SetRules(rules []Rule) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := make(map[string]struct{}, len(s.rules))
	for _, r := range s.rules {
		prev[r.ID] = struct{}{}
	}
	added := false
	for _, r := range rules {
		if _, ok := prev[r.ID]; !ok {
			added = true
			break
		}
	}
	s.rules = cloneRules(rules)
	s.changed = added
	return added
}

// Rules returns a copy of the current set.
func (s *RuleStore) Rules() []Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneRules(s.rules)
}

func (s *RuleStore) Find(id string) (Rule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.rules {
		if r.ID == id {
			cp := r
			cp.Weekdays = append(cp.Weekdays[:0:0], r.Weekdays...)
			return cp, true
		}
	}
	return Rule{}, false
}

// Changed reports the result of the latest SetRules.
func (s *RuleStore) Changed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.changed
}

func (s *RuleStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rules)
}

func cloneRules(in []Rule) []Rule {
	out := make([]Rule, len(in))
	for i, r := range in {
		r.Weekdays = append(r.Weekdays[:0:0], r.Weekdays...)
		out[i] = r
	}
	return out
}
