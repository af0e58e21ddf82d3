package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// MatchType is the closed set of pattern tests a classification rule can use.
type MatchType string

// Match type constants.
const (
	MatchContains   MatchType = "contains"
	MatchExact      MatchType = "exact"
	MatchStartsWith MatchType = "starts_with"
	MatchRegex      MatchType = "regex"
)

// ValidMatchType reports whether m is one of the known match kinds.
func ValidMatchType(m MatchType) bool {
	switch m {
	case MatchContains, MatchExact, MatchStartsWith, MatchRegex:
		return true
	}
	return false
}

// Rule is a user-owned classification rule. Rules are evaluated in strictly
// descending priority order; the first matching rule wins.
type Rule struct {
	CreatedAt   time.Time
	UpdatedAt   time.Time
	UserID      string
	Category    string
	Subcategory string
	Vendor      string
	MatchType   MatchType
	Patterns    []string
	ID          int64
	Priority    int
	UseCount    int
	IsActive    bool
}

// Validate ensures the rule has usable data before it is stored.
func (r *Rule) Validate() error {
	if len(r.Patterns) == 0 {
		return fmt.Errorf("rule requires at least one pattern")
	}
	for _, p := range r.Patterns {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("rule pattern must not be blank")
		}
	}
	if !ValidMatchType(r.MatchType) {
		return fmt.Errorf("unknown match type %q", r.MatchType)
	}
	if r.MatchType == MatchRegex {
		for _, p := range r.Patterns {
			if _, err := regexp.Compile(p); err != nil {
				return fmt.Errorf("invalid regex pattern %q: %w", p, err)
			}
		}
	}
	if r.Category == "" {
		return fmt.Errorf("rule category is required")
	}
	return nil
}
