// Package terminology canonicalizes categorical values: diagnosis codes and
// medication names.
package terminology

import (
	"fmt"
	"regexp"
	"strings"
)

var codeSeparators = strings.NewReplacer("-", "", ".", "")

// CanonicalDiagnosisCode upper-cases code and strips '-' and '.'. A null code
// yields "". The result is idempotent.
func CanonicalDiagnosisCode(code *string) string {
	if code == nil {
		return ""
	}
	return codeSeparators.Replace(strings.ToUpper(*code))
}

type compiledRule struct {
	canonical string
	pattern   *regexp.Regexp
}

type compiledCondition struct {
	name     string
	prefixes []string
	chronic  bool
}

// Normalizer applies a compiled Vocabulary. It is safe for concurrent use.
type Normalizer struct {
	medications []compiledRule
	conditions  []compiledCondition
	drugClasses []DrugClass
}

func NewNormalizer(v Vocabulary) (*Normalizer, error) {
	n := &Normalizer{drugClasses: v.DrugClasses}
	for _, rule := range v.Medications {
		if rule.Canonical == "" {
			return nil, fmt.Errorf("medication rule %q has no canonical name", rule.Pattern)
		}
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("medication rule %s: %w", rule.Canonical, err)
		}
		n.medications = append(n.medications, compiledRule{canonical: rule.Canonical, pattern: re})
	}
	for _, c := range v.Conditions {
		prefixes := make([]string, 0, len(c.Prefixes))
		for _, p := range c.Prefixes {
			prefixes = append(prefixes, CanonicalDiagnosisCode(&p))
		}
		n.conditions = append(n.conditions, compiledCondition{name: c.Name, prefixes: prefixes, chronic: c.Chronic})
	}
	return n, nil
}

// MustDefault returns a normalizer for DefaultVocabulary.
func MustDefault() *Normalizer {
	n, err := NewNormalizer(DefaultVocabulary())
	if err != nil {
		panic(err)
	}
	return n
}

// CanonicalMedication returns the canonical name of the first rule matching
// the upper-cased name, or the name unchanged. A null name stays null.
func (n *Normalizer) CanonicalMedication(name *string) *string {
	if name == nil {
		return nil
	}
	upper := strings.ToUpper(*name)
	for _, rule := range n.medications {
		if rule.pattern.MatchString(upper) {
			canonical := rule.canonical
			return &canonical
		}
	}
	raw := *name
	return &raw
}

// Conditions returns the names of the condition groups a canonical code
// belongs to.
func (n *Normalizer) Conditions(code string) []string {
	var out []string
	for _, c := range n.conditions {
		for _, p := range c.prefixes {
			if p != "" && strings.HasPrefix(code, p) {
				out = append(out, c.name)
				break
			}
		}
	}
	return out
}

// IsChronic reports whether the named condition counts towards the chronic
// condition total.
func (n *Normalizer) IsChronic(condition string) bool {
	for _, c := range n.conditions {
		if c.name == condition {
			return c.chronic
		}
	}
	return false
}

// ConditionNames lists the configured condition groups in order.
func (n *Normalizer) ConditionNames() []string {
	out := make([]string, len(n.conditions))
	for i, c := range n.conditions {
		out[i] = c.name
	}
	return out
}

// DrugClasses returns the names of the drug classes a canonical medication
// name belongs to. Matching is by substring.
func (n *Normalizer) DrugClasses(canonical string) []string {
	var out []string
	for _, class := range n.drugClasses {
		for _, m := range class.Match {
			if m != "" && strings.Contains(canonical, m) {
				out = append(out, class.Name)
				break
			}
		}
	}
	return out
}
