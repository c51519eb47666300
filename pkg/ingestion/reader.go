package ingestion

import (
	"io"
	"time"

	"github.com/synaptica-ai/readmission/pkg/common/models"
)

const (
	PatientsFile    = "patients.csv"
	DiagnosesFile   = "diagnoses.csv"
	LabResultsFile  = "lab_results.csv"
	MedicationsFile = "medications.csv"
)

var (
	patientColumns = []string{
		"patient_id", "first_name", "last_name", "date_of_birth", "age", "gender",
		"admission_date", "discharge_date", "length_of_stay", "readmitted_30_days",
	}
	diagnosisColumns = []string{
		"diagnosis_id", "patient_id", "diagnosis_code", "diagnosis_description", "primary_diagnosis",
	}
	labColumns = []string{
		"lab_id", "patient_id", "test_name", "test_value", "test_date", "reference_range",
	}
	medicationColumns = []string{
		"medication_id", "patient_id", "medication_name", "dosage", "frequency", "start_date", "end_date",
	}
)

func ReadPatients(r io.Reader, file string, ingestedAt time.Time) ([]models.RawPatient, error) {
	t, err := readTable(r, file, patientColumns)
	if err != nil {
		return nil, err
	}
	meta := models.IngestMeta{IngestedAt: ingestedAt, SourceFile: file}
	out := make([]models.RawPatient, 0, len(t.rows))
	for i, row := range t.rows {
		rec := models.RawPatient{
			FirstName:     t.str(row, "first_name"),
			LastName:      t.str(row, "last_name"),
			DateOfBirth:   t.str(row, "date_of_birth"),
			Gender:        t.str(row, "gender"),
			AdmissionDate: t.str(row, "admission_date"),
			DischargeDate: t.str(row, "discharge_date"),
			IngestMeta:    meta,
		}
		if rec.PatientID, err = t.requiredID(i, row, "patient_id"); err != nil {
			return nil, err
		}
		if rec.Age, err = t.optInt(i, row, "age"); err != nil {
			return nil, err
		}
		if rec.LengthOfStay, err = t.optInt(i, row, "length_of_stay"); err != nil {
			return nil, err
		}
		if rec.Readmitted30Days, err = t.optInt(i, row, "readmitted_30_days"); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func ReadDiagnoses(r io.Reader, file string, ingestedAt time.Time) ([]models.RawDiagnosis, error) {
	t, err := readTable(r, file, diagnosisColumns)
	if err != nil {
		return nil, err
	}
	meta := models.IngestMeta{IngestedAt: ingestedAt, SourceFile: file}
	out := make([]models.RawDiagnosis, 0, len(t.rows))
	for i, row := range t.rows {
		rec := models.RawDiagnosis{
			DiagnosisCode:        t.str(row, "diagnosis_code"),
			DiagnosisDescription: t.str(row, "diagnosis_description"),
			IngestMeta:           meta,
		}
		if rec.DiagnosisID, err = t.requiredID(i, row, "diagnosis_id"); err != nil {
			return nil, err
		}
		if rec.PatientID, err = t.requiredID(i, row, "patient_id"); err != nil {
			return nil, err
		}
		if rec.PrimaryDiagnosis, err = t.optInt(i, row, "primary_diagnosis"); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func ReadLabs(r io.Reader, file string, ingestedAt time.Time) ([]models.RawLab, error) {
	t, err := readTable(r, file, labColumns)
	if err != nil {
		return nil, err
	}
	meta := models.IngestMeta{IngestedAt: ingestedAt, SourceFile: file}
	out := make([]models.RawLab, 0, len(t.rows))
	for i, row := range t.rows {
		rec := models.RawLab{
			TestName:       t.str(row, "test_name"),
			TestDate:       t.str(row, "test_date"),
			ReferenceRange: t.str(row, "reference_range"),
			IngestMeta:     meta,
		}
		if rec.LabID, err = t.requiredID(i, row, "lab_id"); err != nil {
			return nil, err
		}
		if rec.PatientID, err = t.requiredID(i, row, "patient_id"); err != nil {
			return nil, err
		}
		if rec.TestValue, err = t.optFloat(i, row, "test_value"); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func ReadMedications(r io.Reader, file string, ingestedAt time.Time) ([]models.RawMedication, error) {
	t, err := readTable(r, file, medicationColumns)
	if err != nil {
		return nil, err
	}
	meta := models.IngestMeta{IngestedAt: ingestedAt, SourceFile: file}
	out := make([]models.RawMedication, 0, len(t.rows))
	for i, row := range t.rows {
		rec := models.RawMedication{
			MedicationName: t.str(row, "medication_name"),
			Dosage:         t.str(row, "dosage"),
			Frequency:      t.str(row, "frequency"),
			StartDate:      t.str(row, "start_date"),
			EndDate:        t.str(row, "end_date"),
			IngestMeta:     meta,
		}
		if rec.MedicationID, err = t.requiredID(i, row, "medication_id"); err != nil {
			return nil, err
		}
		if rec.PatientID, err = t.requiredID(i, row, "patient_id"); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
