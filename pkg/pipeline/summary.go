package pipeline

import (
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/synaptica-ai/readmission/pkg/common/models"
	"github.com/synaptica-ai/readmission/pkg/features"
	"github.com/synaptica-ai/readmission/pkg/identity"
	"github.com/synaptica-ai/readmission/pkg/outlier"
	"github.com/synaptica-ai/readmission/pkg/quality"
)

// Metric names of the gold quality summary.
const (
	MetricPatientsTotal           = "patients_total"
	MetricPatientsUnique          = "patients_unique"
	MetricPatientsDuplicates      = "patients_duplicates"
	MetricDiagnosesTotal          = "diagnoses_total"
	MetricLabsTotal               = "labs_total"
	MetricLabsOutliers            = "labs_outliers"
	MetricMedicationsTotal        = "medications_total"
	MetricPatientsQualityIssues   = "patients_quality_issues"
	MetricDiagnosesQualityIssues  = "diagnoses_quality_issues"
	MetricLabsQualityIssues       = "labs_quality_issues"
	MetricMedicationsStandardized = "medications_standardized"
	MetricNearDuplicateCandidates = "patients_near_duplicate_candidates"
	MetricRowsSharingPatientKey   = "features_rows_sharing_patient_key"
)

type PatientReport struct {
	Total                   int            `json:"total"`
	Unique                  int            `json:"unique"`
	Duplicates              int            `json:"duplicates"`
	DedupRate               float64        `json:"dedup_rate_pct"`
	WithIssues              int            `json:"with_issues"`
	Issues                  map[string]int `json:"issues"`
	NearDuplicateCandidates int            `json:"near_duplicate_candidates"`
}

type DiagnosisReport struct {
	Total             int            `json:"total"`
	StandardizedCodes int            `json:"standardized_codes"`
	WithIssues        int            `json:"with_issues"`
	Issues            map[string]int `json:"issues"`
}

type LabReport struct {
	Total      int                           `json:"total"`
	Outliers   int                           `json:"outliers"`
	OutlierPct float64                       `json:"outlier_pct"`
	Valid      int                           `json:"valid"`
	WithIssues int                           `json:"with_issues"`
	Issues     map[string]int                `json:"issues"`
	Bounds     []models.LabDistributionStats `json:"bounds"`
}

type MedicationReport struct {
	Total             int            `json:"total"`
	StandardizedNames int            `json:"standardized_names"`
	InvalidDates      int            `json:"invalid_dates"`
	WithIssues        int            `json:"with_issues"`
	Issues            map[string]int `json:"issues"`
}

type FeatureReport struct {
	Rows                  int     `json:"rows"`
	RowsSharingPatientKey int     `json:"rows_sharing_patient_key"`
	ReadmissionRate       float64 `json:"readmission_rate_pct"`
}

// QualityReport is the human-facing summary of one run.
type QualityReport struct {
	Patients    PatientReport    `json:"patients"`
	Diagnoses   DiagnosisReport  `json:"diagnoses"`
	Labs        LabReport        `json:"labs"`
	Medications MedicationReport `json:"medications"`
	Features    FeatureReport    `json:"features"`
}

func buildReport(silver models.SilverSnapshot, feats features.Result) QualityReport {
	var r QualityReport

	ids := identity.Summarize(silver.Patients)
	r.Patients = PatientReport{
		Total:                   ids.Total,
		Unique:                  ids.Unique,
		Duplicates:              ids.Duplicates,
		DedupRate:               ids.DedupRate(),
		NearDuplicateCandidates: len(silver.NearDuplicates),
	}
	r.Patients.WithIssues, r.Patients.Issues = tally(silver.Patients, func(p models.CleanPatient) models.QualityFlag { return p.DataQualityIssue })

	r.Diagnoses.Total = len(silver.Diagnoses)
	for _, d := range silver.Diagnoses {
		if d.DiagnosisCodeRaw != nil && *d.DiagnosisCodeRaw != d.DiagnosisCode {
			r.Diagnoses.StandardizedCodes++
		}
	}
	r.Diagnoses.WithIssues, r.Diagnoses.Issues = tally(silver.Diagnoses, func(d models.CleanDiagnosis) models.QualityFlag { return d.DataQualityIssue })

	r.Labs.Total = len(silver.Labs)
	r.Labs.Outliers = outlier.Count(silver.Labs)
	r.Labs.OutlierPct = percent(r.Labs.Outliers, r.Labs.Total)
	r.Labs.WithIssues, r.Labs.Issues = tally(silver.Labs, func(l models.CleanLab) models.QualityFlag { return l.DataQualityIssue })
	r.Labs.Valid = r.Labs.Total - r.Labs.WithIssues
	r.Labs.Bounds = silver.LabStats

	r.Medications.Total = len(silver.Medications)
	r.Medications.WithIssues, r.Medications.Issues = tally(silver.Medications, func(m models.CleanMedication) models.QualityFlag { return m.DataQualityIssue })
	r.Medications.StandardizedNames = r.Medications.Issues[string(models.FlagStandardizedName)]
	for _, m := range silver.Medications {
		if m.InvalidDates {
			r.Medications.InvalidDates++
		}
	}

	r.Features = FeatureReport{Rows: len(feats.Features), RowsSharingPatientKey: feats.SharedKeyRows}
	labelled, readmitted := 0, 0
	for _, fv := range feats.Features {
		if fv.TargetReadmitted30Days == nil {
			continue
		}
		labelled++
		if *fv.TargetReadmitted30Days == 1 {
			readmitted++
		}
	}
	r.Features.ReadmissionRate = percent(readmitted, labelled)
	return r
}

func tally[T any](records []T, flagOf func(T) models.QualityFlag) (int, map[string]int) {
	total, byFlag := quality.Count(records, flagOf)
	out := make(map[string]int, len(byFlag))
	for f, n := range byFlag {
		out[string(f)] = n
	}
	return total, out
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

// Metrics renders the report as gold metric rows.
func (r QualityReport) Metrics(generatedAt time.Time) []models.QualityMetric {
	values := []struct {
		name  string
		value int
	}{
		{MetricPatientsTotal, r.Patients.Total},
		{MetricPatientsUnique, r.Patients.Unique},
		{MetricPatientsDuplicates, r.Patients.Duplicates},
		{MetricDiagnosesTotal, r.Diagnoses.Total},
		{MetricLabsTotal, r.Labs.Total},
		{MetricLabsOutliers, r.Labs.Outliers},
		{MetricMedicationsTotal, r.Medications.Total},
		{MetricPatientsQualityIssues, r.Patients.WithIssues},
		{MetricDiagnosesQualityIssues, r.Diagnoses.WithIssues},
		{MetricLabsQualityIssues, r.Labs.WithIssues},
		{MetricMedicationsStandardized, r.Medications.StandardizedNames},
		{MetricNearDuplicateCandidates, r.Patients.NearDuplicateCandidates},
		{MetricRowsSharingPatientKey, r.Features.RowsSharingPatientKey},
	}
	out := make([]models.QualityMetric, len(values))
	for i, v := range values {
		out[i] = models.QualityMetric{MetricName: v.name, Value: float64(v.value), GeneratedAt: generatedAt}
	}
	return out
}

// Log writes the report as one structured entry per domain.
func (r QualityReport) Log(log *logrus.Entry) {
	log.WithFields(logrus.Fields{
		"total":                     r.Patients.Total,
		"unique":                    r.Patients.Unique,
		"duplicates":                r.Patients.Duplicates,
		"dedup_rate_pct":            round1(r.Patients.DedupRate),
		"with_issues":               r.Patients.WithIssues,
		"near_duplicate_candidates": r.Patients.NearDuplicateCandidates,
	}).Info("Patient quality")
	log.WithFields(logrus.Fields{
		"total":              r.Diagnoses.Total,
		"standardized_codes": r.Diagnoses.StandardizedCodes,
		"with_issues":        r.Diagnoses.WithIssues,
	}).Info("Diagnosis quality")
	log.WithFields(logrus.Fields{
		"total":       r.Labs.Total,
		"outliers":    r.Labs.Outliers,
		"outlier_pct": round1(r.Labs.OutlierPct),
		"valid":       r.Labs.Valid,
	}).Info("Lab quality")
	log.WithFields(logrus.Fields{
		"total":              r.Medications.Total,
		"standardized_names": r.Medications.StandardizedNames,
		"invalid_dates":      r.Medications.InvalidDates,
		"with_issues":        r.Medications.WithIssues,
	}).Info("Medication quality")
	log.WithFields(logrus.Fields{
		"rows":                 r.Features.Rows,
		"readmission_rate_pct": round1(r.Features.ReadmissionRate),
	}).Info("Feature table")
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
