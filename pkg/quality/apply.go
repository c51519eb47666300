package quality

import (
	"github.com/synaptica-ai/readmission/pkg/common/models"
)

// apply returns a copy of records with DataQualityIssue set by chain.
func apply[T any](records []T, chain Chain[T], set func(*T, models.QualityFlag)) []T {
	out := make([]T, len(records))
	copy(out, records)
	for i := range out {
		set(&out[i], chain.Evaluate(out[i]))
	}
	return out
}

func FlagPatients(records []models.CleanPatient) []models.CleanPatient {
	return apply(records, PatientRules, func(p *models.CleanPatient, f models.QualityFlag) { p.DataQualityIssue = f })
}

func FlagDiagnoses(records []models.CleanDiagnosis) []models.CleanDiagnosis {
	return apply(records, DiagnosisRules, func(d *models.CleanDiagnosis, f models.QualityFlag) { d.DataQualityIssue = f })
}

func FlagLabs(records []models.CleanLab) []models.CleanLab {
	return apply(records, LabRules, func(l *models.CleanLab, f models.QualityFlag) { l.DataQualityIssue = f })
}

func FlagMedications(records []models.CleanMedication) []models.CleanMedication {
	return apply(records, MedicationRules, func(m *models.CleanMedication, f models.QualityFlag) { m.DataQualityIssue = f })
}

// Count returns how many records carry any flag and the tally per flag.
func Count[T any](records []T, flagOf func(T) models.QualityFlag) (int, map[models.QualityFlag]int) {
	total := 0
	byFlag := make(map[models.QualityFlag]int)
	for _, r := range records {
		if f := flagOf(r); f.IsSet() {
			total++
			byFlag[f]++
		}
	}
	return total, byFlag
}
