package model

// ClassificationSource records why a category was assigned to a transaction.
type ClassificationSource string

// Classification source constants.
const (
	SourceUserRule      ClassificationSource = "user_rule"
	SourceDefaultVendor ClassificationSource = "default_vendor"
	SourceNone          ClassificationSource = "none"
)

// Classification is the result of running a candidate through the
// classification engine. Source none implies an empty category and zero
// confidence.
type Classification struct {
	RuleID      *int64
	Category    string
	Subcategory string
	Vendor      string
	Source      ClassificationSource
	Confidence  float64
}

// Classified reports whether a category was assigned.
func (c Classification) Classified() bool {
	return c.Source != SourceNone && c.Category != ""
}

// Unclassified returns the zero-value result for candidates no rule or
// default vendor matched.
func Unclassified() Classification {
	return Classification{Source: SourceNone}
}
