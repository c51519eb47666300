package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// Event Bus models
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // snapshot.ready, pipeline.completed, pipeline.failed
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

// Ingestion metadata attached to every raw record.
type IngestMeta struct {
	IngestedAt time.Time `json:"ingest_date" gorm:"column:ingest_date"`
	SourceFile string    `json:"source_file" gorm:"column:source_file"`
}

// Raw (bronze) records. Nullable columns are pointers; identifiers are required.

type RawPatient struct {
	PatientID        int64   `json:"patient_id"`
	FirstName        *string `json:"first_name"`
	LastName         *string `json:"last_name"`
	DateOfBirth      *string `json:"date_of_birth"`
	Age              *int    `json:"age"`
	Gender           *string `json:"gender"`
	AdmissionDate    *string `json:"admission_date"`
	DischargeDate    *string `json:"discharge_date"`
	LengthOfStay     *int    `json:"length_of_stay"`
	Readmitted30Days *int    `json:"readmitted_30_days"`
	IngestMeta
}

type RawDiagnosis struct {
	DiagnosisID          int64   `json:"diagnosis_id"`
	PatientID            int64   `json:"patient_id"`
	DiagnosisCode        *string `json:"diagnosis_code"`
	DiagnosisDescription *string `json:"diagnosis_description"`
	PrimaryDiagnosis     *int    `json:"primary_diagnosis"`
	IngestMeta
}

type RawLab struct {
	LabID          int64    `json:"lab_id"`
	PatientID      int64    `json:"patient_id"`
	TestName       *string  `json:"test_name"`
	TestValue      *float64 `json:"test_value"`
	TestDate       *string  `json:"test_date"`
	ReferenceRange *string  `json:"reference_range"`
	IngestMeta
}

type RawMedication struct {
	MedicationID   int64   `json:"medication_id"`
	PatientID      int64   `json:"patient_id"`
	MedicationName *string `json:"medication_name"`
	Dosage         *string `json:"dosage"`
	Frequency      *string `json:"frequency"`
	StartDate      *string `json:"start_date"`
	EndDate        *string `json:"end_date"`
	IngestMeta
}

// RawSnapshot is one complete, immutable bronze input.
type RawSnapshot struct {
	Patients    []RawPatient
	Diagnoses   []RawDiagnosis
	Labs        []RawLab
	Medications []RawMedication
}

// QualityFlag is an advisory label; the empty value means no issue.
type QualityFlag string

const (
	FlagNone               QualityFlag = ""
	FlagNullFirstName      QualityFlag = "null_first_name"
	FlagNullLastName       QualityFlag = "null_last_name"
	FlagInvalidAge         QualityFlag = "invalid_age"
	FlagNullAdmissionDate  QualityFlag = "null_admission_date"
	FlagInvalidLOS         QualityFlag = "invalid_los"
	FlagInvalidDateOfBirth QualityFlag = "invalid_date_of_birth"
	FlagEmptyCode          QualityFlag = "empty_code"
	FlagNullDescription    QualityFlag = "null_description"
	FlagOutlierDetected    QualityFlag = "outlier_detected"
	FlagNegativeValue      QualityFlag = "negative_value"
	FlagInvalidDate        QualityFlag = "invalid_date"
	FlagStandardizedName   QualityFlag = "standardized_name"
)

func (f QualityFlag) IsSet() bool {
	return f != FlagNone
}

// Value stores an unset flag as NULL.
func (f QualityFlag) Value() (driver.Value, error) {
	if f == FlagNone {
		return nil, nil
	}
	return string(f), nil
}

func (f *QualityFlag) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*f = FlagNone
	case string:
		*f = QualityFlag(v)
	case []byte:
		*f = QualityFlag(v)
	default:
		return fmt.Errorf("cannot scan %T into QualityFlag", src)
	}
	return nil
}

func (QualityFlag) GormDataType() string {
	return "string"
}

// Cleaned (silver) records.

type CleanPatient struct {
	PatientKey        int         `json:"patient_key" gorm:"column:patient_key;index"`
	OriginalPatientID int64       `json:"original_patient_id" gorm:"column:original_patient_id;index"`
	FirstName         *string     `json:"first_name" gorm:"column:first_name"`
	LastName          *string     `json:"last_name" gorm:"column:last_name"`
	DateOfBirth       *time.Time  `json:"date_of_birth" gorm:"column:date_of_birth;type:date"`
	Age               *int        `json:"age" gorm:"column:age"`
	Gender            *string     `json:"gender" gorm:"column:gender"`
	AdmissionDate     *time.Time  `json:"admission_date" gorm:"column:admission_date;type:date"`
	DischargeDate     *time.Time  `json:"discharge_date" gorm:"column:discharge_date;type:date"`
	LengthOfStay      *int        `json:"length_of_stay" gorm:"column:length_of_stay"`
	Readmitted30Days  *int        `json:"readmitted_30_days" gorm:"column:readmitted_30_days"`
	Fingerprint       string      `json:"patient_fingerprint" gorm:"column:patient_fingerprint"`
	IsDuplicate       bool        `json:"is_duplicate" gorm:"column:is_duplicate"`
	DataQualityIssue  QualityFlag `json:"data_quality_issue,omitempty" gorm:"column:data_quality_issue"`
	ProcessedDate     time.Time   `json:"processed_date" gorm:"column:processed_date"`

	// Set when a date of birth was present but could not be parsed.
	InvalidDateOfBirth bool `json:"-" gorm:"-"`
}

type CleanDiagnosis struct {
	DiagnosisID          int64       `json:"diagnosis_id" gorm:"column:diagnosis_id"`
	PatientID            int64       `json:"patient_id" gorm:"column:patient_id;index"`
	DiagnosisCode        string      `json:"diagnosis_code" gorm:"column:diagnosis_code"`
	DiagnosisCodeRaw     *string     `json:"diagnosis_code_raw" gorm:"column:diagnosis_code_raw"`
	DiagnosisDescription *string     `json:"diagnosis_description" gorm:"column:diagnosis_description"`
	PrimaryDiagnosis     *int        `json:"primary_diagnosis" gorm:"column:primary_diagnosis"`
	DataQualityIssue     QualityFlag `json:"data_quality_issue,omitempty" gorm:"column:data_quality_issue"`
	ProcessedDate        time.Time   `json:"processed_date" gorm:"column:processed_date"`
}

type CleanLab struct {
	LabID            int64       `json:"lab_id" gorm:"column:lab_id"`
	PatientID        int64       `json:"patient_id" gorm:"column:patient_id;index"`
	TestName         *string     `json:"test_name" gorm:"column:test_name"`
	TestValue        *float64    `json:"test_value" gorm:"column:test_value"`
	TestDate         *time.Time  `json:"test_date" gorm:"column:test_date;type:date"`
	ReferenceRange   *string     `json:"reference_range" gorm:"column:reference_range"`
	IsOutlier        bool        `json:"is_outlier" gorm:"column:is_outlier"`
	DataQualityIssue QualityFlag `json:"data_quality_issue,omitempty" gorm:"column:data_quality_issue"`
	ProcessedDate    time.Time   `json:"processed_date" gorm:"column:processed_date"`
}

type CleanMedication struct {
	MedicationID      int64       `json:"medication_id" gorm:"column:medication_id"`
	PatientID         int64       `json:"patient_id" gorm:"column:patient_id;index"`
	MedicationName    *string     `json:"medication_name" gorm:"column:medication_name"`
	MedicationNameRaw *string     `json:"medication_name_raw" gorm:"column:medication_name_raw"`
	Dosage            *string     `json:"dosage" gorm:"column:dosage"`
	Frequency         *string     `json:"frequency" gorm:"column:frequency"`
	StartDate         *time.Time  `json:"start_date" gorm:"column:start_date;type:date"`
	EndDate           *time.Time  `json:"end_date" gorm:"column:end_date;type:date"`
	DataQualityIssue  QualityFlag `json:"data_quality_issue,omitempty" gorm:"column:data_quality_issue"`
	ProcessedDate     time.Time   `json:"processed_date" gorm:"column:processed_date"`

	// Set when a start or end date was present but could not be parsed.
	// Reported only; it does not flag the record.
	InvalidDates bool `json:"invalid_dates" gorm:"column:invalid_dates"`
}

// LabDistributionStats are the per test-name bounds of one run.
type LabDistributionStats struct {
	TestName   string  `json:"test_name"`
	Count      int     `json:"count"`
	Q1         float64 `json:"q1"`
	Q3         float64 `json:"q3"`
	IQR        float64 `json:"iqr"`
	LowerBound float64 `json:"lower_bound"`
	UpperBound float64 `json:"upper_bound"`
}

// NearDuplicate is an advisory pair of identities that differ only slightly.
// Candidates are reported, never merged.
type NearDuplicate struct {
	PatientKeyA int     `json:"patient_key_a" gorm:"column:patient_key_a"`
	PatientKeyB int     `json:"patient_key_b" gorm:"column:patient_key_b"`
	PatientIDA  int64   `json:"original_patient_id_a" gorm:"column:original_patient_id_a"`
	PatientIDB  int64   `json:"original_patient_id_b" gorm:"column:original_patient_id_b"`
	Score       float64 `json:"score" gorm:"column:score"`
	Method      string  `json:"method" gorm:"column:method"`
}

// SilverSnapshot is the complete cleaned layer of one run.
type SilverSnapshot struct {
	Patients       []CleanPatient
	Diagnoses      []CleanDiagnosis
	Labs           []CleanLab
	Medications    []CleanMedication
	LabStats       []LabDistributionStats
	NearDuplicates []NearDuplicate
	ProcessedAt    time.Time
}

// PatientFeatureVector is one gold row, keyed by the original patient id.
type PatientFeatureVector struct {
	PatientKey             int       `json:"patient_key" gorm:"column:patient_key;index"`
	OriginalPatientID      int64     `json:"original_patient_id" gorm:"column:original_patient_id;index"`
	Age                    *int      `json:"age" gorm:"column:age"`
	Gender                 *string   `json:"gender" gorm:"column:gender"`
	LengthOfStay           *int      `json:"length_of_stay" gorm:"column:length_of_stay"`
	NumDiagnoses           int       `json:"num_diagnoses" gorm:"column:num_diagnoses"`
	NumChronicConditions   int       `json:"num_chronic_conditions" gorm:"column:num_chronic_conditions"`
	HasDiabetes            int       `json:"has_diabetes" gorm:"column:has_diabetes"`
	HasHeartDisease        int       `json:"has_heart_disease" gorm:"column:has_heart_disease"`
	HasCOPD                int       `json:"has_copd" gorm:"column:has_copd"`
	HasCKD                 int       `json:"has_ckd" gorm:"column:has_ckd"`
	HasAnxiety             int       `json:"has_anxiety" gorm:"column:has_anxiety"`
	NumMedications         int       `json:"num_medications" gorm:"column:num_medications"`
	OnMetformin            int       `json:"on_metformin" gorm:"column:on_metformin"`
	OnACEInhibitor         int       `json:"on_ace_inhibitor" gorm:"column:on_ace_inhibitor"`
	OnStatin               int       `json:"on_statin" gorm:"column:on_statin"`
	NumLabTests            int       `json:"num_lab_tests" gorm:"column:num_lab_tests"`
	AvgHemoglobin          float64   `json:"avg_hemoglobin" gorm:"column:avg_hemoglobin"`
	AvgGlucose             float64   `json:"avg_glucose" gorm:"column:avg_glucose"`
	AvgWBC                 float64   `json:"avg_wbc" gorm:"column:avg_wbc"`
	AvgCreatinine          float64   `json:"avg_creatinine" gorm:"column:avg_creatinine"`
	AvgBUN                 float64   `json:"avg_bun" gorm:"column:avg_bun"`
	TargetReadmitted30Days *int      `json:"target_readmitted_30_days" gorm:"column:target_readmitted_30_days"`
	FeatureGenerationDate  time.Time `json:"feature_generation_date" gorm:"column:feature_generation_date"`
}

// QualityMetric is one row of the gold metrics summary.
type QualityMetric struct {
	MetricName  string    `json:"metric_name" gorm:"column:metric_name"`
	Value       float64   `json:"value" gorm:"column:value"`
	GeneratedAt time.Time `json:"generated_at" gorm:"column:generated_at"`
}

// GoldSnapshot is the complete aggregated layer of one run.
type GoldSnapshot struct {
	Features    []PatientFeatureVector
	Metrics     []QualityMetric
	GeneratedAt time.Time
}

// PipelineRun is one entry of the run ledger.
type PipelineRun struct {
	ID           string                 `json:"id"`
	Status       string                 `json:"status"`
	Trigger      string                 `json:"trigger"`
	Source       string                 `json:"source"`
	Summary      map[string]interface{} `json:"summary,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	StartedAt    *time.Time             `json:"started_at,omitempty"`
	CompletedAt  *time.Time             `json:"completed_at,omitempty"`
}
