// Package classify labels action events as analyst or non-analyst and login
// events by the platform they came from.
package classify

import (
	"github.com/klytics/licensekit/internal/taxonomy"
	"github.com/klytics/licensekit/internal/usage"
)

// Classifier labels action events using a taxonomy.
type Classifier struct {
	tax *taxonomy.Taxonomy
}

// NewClassifier returns an action classifier for tax.
func NewClassifier(tax *taxonomy.Taxonomy) *Classifier {
	return &Classifier{tax: tax}
}

// IsAnalyst reports whether an action in category requires an analyst
// license. Unknown categories are non-analyst; a category's exempt actions
// are non-analyst even when the category itself is.
func (a *Classifier) IsAnalyst(category, action string) bool {
	if !a.tax.IsAnalystCategory(category) {
		return false
	}
	return !a.tax.IsExempt(category, action)
}

// Classify returns a copy of events with IsAnalyst set on every element.
// No event is dropped and order is preserved.
func (a *Classifier) Classify(events []usage.ActionEvent) []usage.ActionEvent {
	out := make([]usage.ActionEvent, len(events))
	for i, e := range events {
		e.IsAnalyst = a.IsAnalyst(e.Category, e.Action)
		out[i] = e
	}
	return out
}
