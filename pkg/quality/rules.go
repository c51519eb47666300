// Package quality labels records with at most one advisory issue flag.
//
// Each domain has an ordered rule table. Rules are evaluated top to bottom and
// the first match wins; a record matching nothing carries no flag. Flagging
// never removes or alters the other fields of a record.
package quality

import (
	"github.com/synaptica-ai/readmission/pkg/common/models"
)

// Rule pairs a predicate with the flag it assigns.
type Rule[T any] struct {
	Flag  models.QualityFlag
	Match func(T) bool
}

// Chain is an ordered rule table.
type Chain[T any] []Rule[T]

// Evaluate returns the flag of the first matching rule, or models.FlagNone.
func (c Chain[T]) Evaluate(rec T) models.QualityFlag {
	for _, r := range c {
		if r.Match(rec) {
			return r.Flag
		}
	}
	return models.FlagNone
}

// Flags lists the flags in evaluation order.
func (c Chain[T]) Flags() []models.QualityFlag {
	out := make([]models.QualityFlag, len(c))
	for i, r := range c {
		out[i] = r.Flag
	}
	return out
}

// Comparisons against a null value never match.

var PatientRules = Chain[models.CleanPatient]{
	{Flag: models.FlagNullFirstName, Match: func(p models.CleanPatient) bool { return p.FirstName == nil }},
	{Flag: models.FlagNullLastName, Match: func(p models.CleanPatient) bool { return p.LastName == nil }},
	{Flag: models.FlagInvalidAge, Match: func(p models.CleanPatient) bool { return p.Age != nil && (*p.Age < 0 || *p.Age > 120) }},
	{Flag: models.FlagNullAdmissionDate, Match: func(p models.CleanPatient) bool { return p.AdmissionDate == nil }},
	{Flag: models.FlagInvalidLOS, Match: func(p models.CleanPatient) bool { return p.LengthOfStay != nil && *p.LengthOfStay <= 0 }},
	{Flag: models.FlagInvalidDateOfBirth, Match: func(p models.CleanPatient) bool { return p.InvalidDateOfBirth }},
}

var DiagnosisRules = Chain[models.CleanDiagnosis]{
	{Flag: models.FlagEmptyCode, Match: func(d models.CleanDiagnosis) bool { return d.DiagnosisCode == "" }},
	{Flag: models.FlagNullDescription, Match: func(d models.CleanDiagnosis) bool { return d.DiagnosisDescription == nil }},
}

var LabRules = Chain[models.CleanLab]{
	{Flag: models.FlagOutlierDetected, Match: func(l models.CleanLab) bool { return l.IsOutlier }},
	{Flag: models.FlagNegativeValue, Match: func(l models.CleanLab) bool { return l.TestValue != nil && *l.TestValue < 0 }},
	{Flag: models.FlagInvalidDate, Match: func(l models.CleanLab) bool { return l.TestDate == nil }},
}

var MedicationRules = Chain[models.CleanMedication]{
	{Flag: models.FlagStandardizedName, Match: nameChanged},
}

// nameChanged is false for a null name: a null name has nothing to
// standardize and passes through as null.
func nameChanged(m models.CleanMedication) bool {
	switch {
	case m.MedicationName == nil && m.MedicationNameRaw == nil:
		return false
	case m.MedicationName == nil || m.MedicationNameRaw == nil:
		return true
	}
	return *m.MedicationName != *m.MedicationNameRaw
}
