package features

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/synaptica-ai/readmission/pkg/common/models"
	"github.com/synaptica-ai/readmission/pkg/terminology"
)

func strPtr(s string) *string { return &s }
func intPtr(n int) *int { return &n }
func floatPtr(f float64) *float64 { return &f }

func newAggregator(opts Options) *Aggregator {
	return NewAggregator(terminology.MustDefault(), opts)
}

func TestAggregateNullFillsMissingSources(t *testing.T) {
	generated := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	silver := models.SilverSnapshot{
		Patients: []models.CleanPatient{{PatientKey: 1, OriginalPatientID: 42, Age: intPtr(70), Readmitted30Days: intPtr(1)}},
	}

	res := newAggregator(Options{}).Aggregate(silver, generated)

	want := []models.PatientFeatureVector{{
		PatientKey:             1,
		OriginalPatientID:      42,
		Age:                    intPtr(70),
		TargetReadmitted30Days: intPtr(1),
		FeatureGenerationDate:  generated,
	}}
	if diff := cmp.Diff(want, res.Features); diff != "" {
		t.Fatalf("feature row mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregateDiagnoses(t *testing.T) {
	silver := models.SilverSnapshot{
		Patients: []models.CleanPatient{{PatientKey: 1, OriginalPatientID: 1}},
		Diagnoses: []models.CleanDiagnosis{
			{PatientID: 1, DiagnosisCode: "E119"},
			{PatientID: 1, DiagnosisCode: "I509"},
			{PatientID: 1, DiagnosisCode: "F411"},
			{PatientID: 1, DiagnosisCode: "E110"},
			{PatientID: 1, DiagnosisCode: "J449", DataQualityIssue: models.FlagNullDescription},
			{PatientID: 2, DiagnosisCode: "N183"},
		},
	}

	fv := newAggregator(Options{}).Aggregate(silver, time.Now()).Features[0]

	if fv.NumDiagnoses != 4 {
		t.Fatalf("expected 4 unflagged diagnoses, got %d", fv.NumDiagnoses)
	}
	if fv.HasDiabetes != 1 || fv.HasHeartDisease != 1 || fv.HasAnxiety != 1 {
		t.Fatalf("expected diabetes, heart disease and anxiety indicators: %+v", fv)
	}
	if fv.HasCOPD != 0 || fv.HasCKD != 0 {
		t.Fatalf("flagged or foreign diagnoses must not count: %+v", fv)
	}
	if fv.NumChronicConditions != 2 {
		t.Fatalf("expected 2 chronic conditions, got %d", fv.NumChronicConditions)
	}
}

func TestAggregateLabs(t *testing.T) {
	silver := models.SilverSnapshot{
		Patients: []models.CleanPatient{{PatientKey: 1, OriginalPatientID: 1}},
		Labs: []models.CleanLab{
			{PatientID: 1, TestName: strPtr(TestGlucose), TestValue: floatPtr(100)},
			{PatientID: 1, TestName: strPtr(TestGlucose), TestValue: floatPtr(101.005)},
			{PatientID: 1, TestName: strPtr(TestGlucose), TestValue: floatPtr(900), IsOutlier: true, DataQualityIssue: models.FlagOutlierDetected},
			{PatientID: 1, TestName: strPtr(TestWBC), TestValue: floatPtr(7)},
			{PatientID: 1, TestName: strPtr("Sodium"), TestValue: floatPtr(140)},
			{PatientID: 1, TestName: strPtr(TestBUN), TestValue: floatPtr(-3), DataQualityIssue: models.FlagNegativeValue},
		},
	}

	fv := newAggregator(Options{}).Aggregate(silver, time.Now()).Features[0]

	if fv.NumLabTests != 4 {
		t.Fatalf("expected 4 usable lab tests, got %d", fv.NumLabTests)
	}
	if fv.AvgGlucose != 100.5 {
		t.Fatalf("expected glucose mean 100.5, got %v", fv.AvgGlucose)
	}
	if fv.AvgWBC != 7 || fv.AvgBUN != 0 || fv.AvgHemoglobin != 0 {
		t.Fatalf("unexpected lab averages: %+v", fv)
	}
}

func TestAggregateMedications(t *testing.T) {
	silver := models.SilverSnapshot{
		Patients: []models.CleanPatient{{PatientKey: 1, OriginalPatientID: 1}},
		Medications: []models.CleanMedication{
			{PatientID: 1, MedicationName: strPtr("Metformin"), MedicationNameRaw: strPtr("Metformin")},
			{PatientID: 1, MedicationName: strPtr("Lisinopril"), MedicationNameRaw: strPtr("LISINOPREL"), DataQualityIssue: models.FlagStandardizedName},
			{PatientID: 1, MedicationName: strPtr("Atorvastatin"), DataQualityIssue: models.FlagInvalidDate},
		},
	}

	fv := newAggregator(Options{}).Aggregate(silver, time.Now()).Features[0]
	if fv.NumMedications != 1 || fv.OnMetformin != 1 || fv.OnACEInhibitor != 0 || fv.OnStatin != 0 {
		t.Fatalf("only unflagged medications should count: %+v", fv)
	}

	fv = newAggregator(Options{IncludeStandardizedNames: true}).Aggregate(silver, time.Now()).Features[0]
	if fv.NumMedications != 2 || fv.OnACEInhibitor != 1 || fv.OnStatin != 0 {
		t.Fatalf("standardized names should count when enabled: %+v", fv)
	}
}

func TestAggregateKeepsDuplicateRows(t *testing.T) {
	silver := models.SilverSnapshot{
		Patients: []models.CleanPatient{
			{PatientKey: 1, OriginalPatientID: 1},
			{PatientKey: 1, OriginalPatientID: 5, IsDuplicate: true},
			{PatientKey: 2, OriginalPatientID: 2},
		},
		Diagnoses: []models.CleanDiagnosis{{PatientID: 5, DiagnosisCode: "E119"}},
	}

	res := newAggregator(Options{}).Aggregate(silver, time.Now())

	if len(res.Features) != 3 {
		t.Fatalf("expected one row per patient row, got %d", len(res.Features))
	}
	if res.SharedKeyRows != 2 {
		t.Fatalf("expected 2 rows sharing a key, got %d", res.SharedKeyRows)
	}
	if res.Features[0].HasDiabetes != 0 || res.Features[1].HasDiabetes != 1 {
		t.Fatalf("diagnoses must join on original patient id: %+v", res.Features)
	}
}

func TestRound2(t *testing.T) {
	cases := map[float64]float64{1.005: 1.01, 2.675: 2.68, -1.005: -1.01, 3.14159: 3.14}
	for in, want := range cases {
		if got := round2(in); got != want {
			t.Fatalf("round2(%v) = %v, want %v", in, got, want)
		}
	}
}
