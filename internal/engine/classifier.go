// Package engine implements the rule-based classification engine for
// categorizing transaction candidates.
package engine

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/ledgersift/ledgersift/internal/model"
)

// Confidence assigned per classification source.
const (
	userRuleConfidence      = 0.95
	defaultVendorConfidence = 0.70
)

// ScoredCandidate pairs a candidate with its classification result.
type ScoredCandidate struct {
	Candidate      model.Candidate
	Classification model.Classification
}

// Stats breaks down how a batch was classified. The three counts always sum
// to Total.
type Stats struct {
	Total                      int
	ClassifiedByUserRules      int
	ClassifiedByDefaultVendors int
	Unclassified               int
}

// BatchResult partitions a classified batch.
type BatchResult struct {
	Classified   []ScoredCandidate
	Unclassified []ScoredCandidate
	Stats        Stats
}

// Classifier assigns categories to candidates using user rules first and a
// built-in vendor table as fallback. It performs no I/O; callers fetch the
// rule set and pass it in.
type Classifier struct {
	defaults []DefaultVendor
}

// NewClassifier creates a classifier backed by the built-in vendor table.
func NewClassifier() *Classifier {
	return &Classifier{defaults: DefaultVendors()}
}

// Classify evaluates every candidate and returns one classification per
// candidate, aligned with the input order. Rules are evaluated in strictly
// descending priority order (ties keep input order); the first matching rule
// wins. Candidates no rule matches get a second pass against the default
// vendor table. Inactive rules are skipped.
func (c *Classifier) Classify(candidates []model.Candidate, rules []model.Rule) []model.Classification {
	ordered := orderRules(rules)
	compiled := compileRegexRules(ordered)

	results := make([]model.Classification, len(candidates))
	for i, candidate := range candidates {
		results[i] = c.classifyOne(searchText(candidate), ordered, compiled)
	}
	return results
}

// ClassifyBatch classifies the batch and partitions it into classified and
// unclassified candidates with per-source statistics.
func (c *Classifier) ClassifyBatch(candidates []model.Candidate, rules []model.Rule) BatchResult {
	classifications := c.Classify(candidates, rules)

	result := BatchResult{
		Stats: Stats{Total: len(candidates)},
	}

	for i, candidate := range candidates {
		classification := classifications[i]
		scored := ScoredCandidate{Candidate: candidate, Classification: classification}
		switch classification.Source {
		case model.SourceUserRule:
			result.Stats.ClassifiedByUserRules++
			result.Classified = append(result.Classified, scored)
		case model.SourceDefaultVendor:
			result.Stats.ClassifiedByDefaultVendors++
			result.Classified = append(result.Classified, scored)
		default:
			result.Stats.Unclassified++
			result.Unclassified = append(result.Unclassified, scored)
		}
	}

	return result
}

func (c *Classifier) classifyOne(text string, rules []model.Rule, compiled map[int64][]*regexp.Regexp) model.Classification {
	for _, rule := range rules {
		if !rule.IsActive {
			continue
		}
		if ruleMatches(rule, text, compiled) {
			ruleID := rule.ID
			return model.Classification{
				Category:    rule.Category,
				Subcategory: rule.Subcategory,
				Vendor:      rule.Vendor,
				Source:      model.SourceUserRule,
				Confidence:  userRuleConfidence,
				RuleID:      &ruleID,
			}
		}
	}

	for _, dv := range c.defaults {
		if strings.Contains(text, dv.Keyword) {
			return model.Classification{
				Category:    dv.Category,
				Subcategory: dv.Subcategory,
				Vendor:      dv.Vendor,
				Source:      model.SourceDefaultVendor,
				Confidence:  defaultVendorConfidence,
			}
		}
	}

	return model.Unclassified()
}

// ruleMatches tests the rule's pattern fragments against the search text.
// Fragments are alternatives: any one matching means the rule matches.
func ruleMatches(rule model.Rule, text string, compiled map[int64][]*regexp.Regexp) bool {
	if rule.MatchType == model.MatchRegex {
		for _, re := range compiled[rule.ID] {
			if re.MatchString(text) {
				return true
			}
		}
		return false
	}

	for _, pattern := range rule.Patterns {
		if patternMatches(rule.MatchType, normalizeText(pattern), text) {
			return true
		}
	}
	return false
}

// patternMatches dispatches one pattern test per match kind. The match type
// set is closed; unknown kinds never match.
func patternMatches(matchType model.MatchType, pattern, text string) bool {
	switch matchType {
	case model.MatchContains:
		return strings.Contains(text, pattern)
	case model.MatchExact:
		return text == pattern
	case model.MatchStartsWith:
		return strings.HasPrefix(text, pattern)
	default:
		return false
	}
}

// orderRules returns the rules sorted by descending priority. The sort is
// stable: equal priorities keep input order, which is an ambiguous
// configuration callers should avoid relying on.
func orderRules(rules []model.Rule) []model.Rule {
	ordered := make([]model.Rule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})
	return ordered
}

func compileRegexRules(rules []model.Rule) map[int64][]*regexp.Regexp {
	compiled := make(map[int64][]*regexp.Regexp)
	for _, rule := range rules {
		if rule.MatchType != model.MatchRegex || !rule.IsActive {
			continue
		}
		for _, pattern := range rule.Patterns {
			re, err := regexp.Compile("(?i)" + pattern)
			if err != nil {
				slog.Warn("Skipping invalid regex rule pattern",
					"rule_id", rule.ID,
					"pattern", pattern,
					"error", err)
				continue
			}
			compiled[rule.ID] = append(compiled[rule.ID], re)
		}
	}
	return compiled
}

// searchText builds the normalized haystack for a candidate: description and
// payee, case-folded, whitespace-collapsed.
func searchText(c model.Candidate) string {
	return normalizeText(c.Description + " " + c.Payee)
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
