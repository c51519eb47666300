package terminology

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// MedicationRule maps every name whose upper-cased form matches Pattern to
// Canonical.
type MedicationRule struct {
	Canonical string `yaml:"canonical" json:"canonical"`
	Pattern   string `yaml:"pattern" json:"pattern"`
}

// ConditionGroup names a clinical condition by its diagnosis code prefixes.
type ConditionGroup struct {
	Name     string   `yaml:"name" json:"name"`
	Prefixes []string `yaml:"prefixes" json:"prefixes"`
	Chronic  bool     `yaml:"chronic" json:"chronic"`
}

// DrugClass names a treatment indicator by the canonical medication names
// that imply it.
type DrugClass struct {
	Name  string   `yaml:"name" json:"name"`
	Match []string `yaml:"match" json:"match"`
}

// Vocabulary is the static reference data of the categorical normalizer and
// the feature aggregator. Medication rules are ordered; the first match wins.
type Vocabulary struct {
	Medications []MedicationRule `yaml:"medications" json:"medications"`
	Conditions  []ConditionGroup `yaml:"conditions" json:"conditions"`
	DrugClasses []DrugClass      `yaml:"drug_classes" json:"drug_classes"`
}

// Condition and drug class names used by the feature table.
const (
	ConditionDiabetes     = "diabetes"
	ConditionHeartDisease = "heart_disease"
	ConditionCOPD         = "copd"
	ConditionCKD          = "ckd"
	ConditionAnxiety      = "anxiety"

	ClassMetformin    = "metformin"
	ClassACEInhibitor = "ace_inhibitor"
	ClassStatin       = "statin"
)

// Load reads a vocabulary from a YAML file. An empty path yields the default
// vocabulary.
func Load(path string) (Vocabulary, error) {
	if path == "" {
		return DefaultVocabulary(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Vocabulary{}, fmt.Errorf("reading vocabulary: %w", err)
	}
	var v Vocabulary
	if err := yaml.Unmarshal(content, &v); err != nil {
		return Vocabulary{}, fmt.Errorf("parsing vocabulary: %w", err)
	}
	if len(v.Medications) == 0 {
		return Vocabulary{}, fmt.Errorf("vocabulary has no medication rules")
	}
	if len(v.Conditions) == 0 {
		v.Conditions = DefaultVocabulary().Conditions
	}
	if len(v.DrugClasses) == 0 {
		v.DrugClasses = DefaultVocabulary().DrugClasses
	}
	return v, nil
}

// Marshal renders the vocabulary as YAML.
func (v Vocabulary) Marshal() ([]byte, error) {
	return yaml.Marshal(v)
}

func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Medications: []MedicationRule{
			{Canonical: "Metformin", Pattern: "METFORMIN"},
			{Canonical: "Lisinopril", Pattern: "LISINOPRIL|LISINOPREL"},
			{Canonical: "Atorvastatin", Pattern: "ATORVASTATIN|ATORVASTINE"},
			{Canonical: "Omeprazole", Pattern: "OMEPRAZOLE|OMEPRAZOL"},
			{Canonical: "Albuterol", Pattern: "ALBUTEROL"},
			{Canonical: "Aspirin", Pattern: "ASPIRIN|ASA"},
		},
		Conditions: []ConditionGroup{
			{Name: ConditionDiabetes, Prefixes: []string{"E11"}, Chronic: true},
			{Name: ConditionHeartDisease, Prefixes: []string{"I10", "I5"}, Chronic: true},
			{Name: ConditionCOPD, Prefixes: []string{"J44"}, Chronic: true},
			{Name: ConditionCKD, Prefixes: []string{"N18"}, Chronic: true},
			{Name: ConditionAnxiety, Prefixes: []string{"F41"}},
		},
		DrugClasses: []DrugClass{
			{Name: ClassMetformin, Match: []string{"Metformin"}},
			{Name: ClassACEInhibitor, Match: []string{"Lisinopril"}},
			{Name: ClassStatin, Match: []string{"Atorvastatin"}},
		},
	}
}
