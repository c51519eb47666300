package pipeline

import (
	"time"

	"github.com/synaptica-ai/readmission/pkg/common/dates"
	"github.com/synaptica-ai/readmission/pkg/common/models"
	"github.com/synaptica-ai/readmission/pkg/identity"
	"github.com/synaptica-ai/readmission/pkg/outlier"
	"github.com/synaptica-ai/readmission/pkg/quality"
	"github.com/synaptica-ai/readmission/pkg/terminology"
)

// Each cleaner is a pure function of its raw input.

func cleanPatients(raw []models.RawPatient, processedAt time.Time) []models.CleanPatient {
	return quality.FlagPatients(identity.Resolve(raw, processedAt))
}

func cleanDiagnoses(raw []models.RawDiagnosis, processedAt time.Time) []models.CleanDiagnosis {
	out := make([]models.CleanDiagnosis, len(raw))
	for i, rec := range raw {
		out[i] = models.CleanDiagnosis{
			DiagnosisID:          rec.DiagnosisID,
			PatientID:            rec.PatientID,
			DiagnosisCode:        terminology.CanonicalDiagnosisCode(rec.DiagnosisCode),
			DiagnosisCodeRaw:     rec.DiagnosisCode,
			DiagnosisDescription: rec.DiagnosisDescription,
			PrimaryDiagnosis:     rec.PrimaryDiagnosis,
			ProcessedDate:        processedAt,
		}
	}
	return quality.FlagDiagnoses(out)
}

func cleanLabs(raw []models.RawLab, detector *outlier.Detector, processedAt time.Time) ([]models.CleanLab, []models.LabDistributionStats) {
	out := make([]models.CleanLab, len(raw))
	for i, rec := range raw {
		testDate, _ := dates.Parse(rec.TestDate, dates.ISO)
		out[i] = models.CleanLab{
			LabID:          rec.LabID,
			PatientID:      rec.PatientID,
			TestName:       rec.TestName,
			TestValue:      rec.TestValue,
			TestDate:       testDate,
			ReferenceRange: rec.ReferenceRange,
			ProcessedDate:  processedAt,
		}
	}
	flagged, stats := detector.Detect(out)
	return quality.FlagLabs(flagged), stats
}

func cleanMedications(raw []models.RawMedication, terms *terminology.Normalizer, processedAt time.Time) []models.CleanMedication {
	out := make([]models.CleanMedication, len(raw))
	for i, rec := range raw {
		start, badStart := dates.Parse(rec.StartDate, dates.ISO)
		end, badEnd := dates.Parse(rec.EndDate, dates.ISO)
		out[i] = models.CleanMedication{
			MedicationID:      rec.MedicationID,
			PatientID:         rec.PatientID,
			MedicationName:    terms.CanonicalMedication(rec.MedicationName),
			MedicationNameRaw: rec.MedicationName,
			Dosage:            rec.Dosage,
			Frequency:         rec.Frequency,
			StartDate:         start,
			EndDate:           end,
			ProcessedDate:     processedAt,
			InvalidDates:      badStart || badEnd,
		}
	}
	return quality.FlagMedications(out)
}
