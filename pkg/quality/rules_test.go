package quality

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/synaptica-ai/readmission/pkg/common/models"
)

func strPtr(s string) *string { return &s }
func intPtr(n int) *int { return &n }
func floatPtr(f float64) *float64 { return &f }

func validPatient() models.CleanPatient {
	admitted := time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)
	return models.CleanPatient{
		OriginalPatientID: 1,
		FirstName:         strPtr("John"),
		LastName:          strPtr("Smith"),
		Age:               intPtr(43),
		AdmissionDate:     &admitted,
		LengthOfStay:      intPtr(4),
	}
}

func TestPatientRulesFirstMatchWins(t *testing.T) {
	p := validPatient()
	p.FirstName = nil
	p.Age = intPtr(150)
	p.LengthOfStay = intPtr(0)

	if got := PatientRules.Evaluate(p); got != models.FlagNullFirstName {
		t.Fatalf("expected null_first_name, got %q", got)
	}
}

func TestPatientRules(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*models.CleanPatient)
		want   models.QualityFlag
	}{
		{"valid", func(*models.CleanPatient) {}, models.FlagNone},
		{"null last name", func(p *models.CleanPatient) { p.LastName = nil }, models.FlagNullLastName},
		{"negative age", func(p *models.CleanPatient) { p.Age = intPtr(-1) }, models.FlagInvalidAge},
		{"age over 120", func(p *models.CleanPatient) { p.Age = intPtr(121) }, models.FlagInvalidAge},
		{"age 120 is valid", func(p *models.CleanPatient) { p.Age = intPtr(120) }, models.FlagNone},
		{"null age is not invalid", func(p *models.CleanPatient) { p.Age = nil }, models.FlagNone},
		{"null admission", func(p *models.CleanPatient) { p.AdmissionDate = nil }, models.FlagNullAdmissionDate},
		{"zero los", func(p *models.CleanPatient) { p.LengthOfStay = intPtr(0) }, models.FlagInvalidLOS},
		{"bad date of birth", func(p *models.CleanPatient) { p.InvalidDateOfBirth = true }, models.FlagInvalidDateOfBirth},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := validPatient()
			tc.mutate(&p)
			if got := PatientRules.Evaluate(p); got != tc.want {
				t.Fatalf("want %q, got %q", tc.want, got)
			}
		})
	}
}

func TestChainOrder(t *testing.T) {
	want := []models.QualityFlag{
		models.FlagNullFirstName, models.FlagNullLastName, models.FlagInvalidAge,
		models.FlagNullAdmissionDate, models.FlagInvalidLOS, models.FlagInvalidDateOfBirth,
	}
	if diff := cmp.Diff(want, PatientRules.Flags()); diff != "" {
		t.Fatalf("patient rule order changed (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]models.QualityFlag{models.FlagOutlierDetected, models.FlagNegativeValue, models.FlagInvalidDate}, LabRules.Flags()); diff != "" {
		t.Fatalf("lab rule order changed (-want +got):\n%s", diff)
	}
}

func TestDiagnosisRules(t *testing.T) {
	if got := DiagnosisRules.Evaluate(models.CleanDiagnosis{DiagnosisCode: ""}); got != models.FlagEmptyCode {
		t.Fatalf("expected empty_code, got %q", got)
	}
	if got := DiagnosisRules.Evaluate(models.CleanDiagnosis{DiagnosisCode: "E119"}); got != models.FlagNullDescription {
		t.Fatalf("expected null_description, got %q", got)
	}
	ok := models.CleanDiagnosis{DiagnosisCode: "E119", DiagnosisDescription: strPtr("Type 2 diabetes")}
	if got := DiagnosisRules.Evaluate(ok); got != models.FlagNone {
		t.Fatalf("expected no flag, got %q", got)
	}
}

func TestLabRules(t *testing.T) {
	date := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	outlierNegative := models.CleanLab{TestValue: floatPtr(-5), IsOutlier: true, TestDate: &date}
	if got := LabRules.Evaluate(outlierNegative); got != models.FlagOutlierDetected {
		t.Fatalf("outlier must win over negative value, got %q", got)
	}
	if got := LabRules.Evaluate(models.CleanLab{TestValue: floatPtr(-5), TestDate: &date}); got != models.FlagNegativeValue {
		t.Fatalf("expected negative_value, got %q", got)
	}
	if got := LabRules.Evaluate(models.CleanLab{TestValue: floatPtr(5)}); got != models.FlagInvalidDate {
		t.Fatalf("expected invalid_date, got %q", got)
	}
	if got := LabRules.Evaluate(models.CleanLab{TestDate: &date}); got != models.FlagNone {
		t.Fatalf("null value must not be flagged, got %q", got)
	}
}

func TestMedicationRules(t *testing.T) {
	same := models.CleanMedication{MedicationName: strPtr("Vitamin D"), MedicationNameRaw: strPtr("Vitamin D")}
	if got := MedicationRules.Evaluate(same); got != models.FlagNone {
		t.Fatalf("unchanged name must not be flagged, got %q", got)
	}
	changed := models.CleanMedication{MedicationName: strPtr("Aspirin"), MedicationNameRaw: strPtr("ASA"), InvalidDates: true}
	if got := MedicationRules.Evaluate(changed); got != models.FlagStandardizedName {
		t.Fatalf("expected standardized_name, got %q", got)
	}
	badDates := models.CleanMedication{MedicationName: strPtr("Metformin"), MedicationNameRaw: strPtr("Metformin"), InvalidDates: true}
	if got := MedicationRules.Evaluate(badDates); got != models.FlagNone {
		t.Fatalf("unparseable dates must not flag a medication, got %q", got)
	}
	if got := MedicationRules.Evaluate(models.CleanMedication{}); got != models.FlagNone {
		t.Fatalf("null name must not be flagged, got %q", got)
	}
}

func TestFlagPatientsIsNonDestructive(t *testing.T) {
	in := []models.CleanPatient{validPatient(), validPatient()}
	in[1].OriginalPatientID = 2
	in[1].LastName = nil

	out := FlagPatients(in)

	if len(out) != len(in) {
		t.Fatalf("record count changed: %d -> %d", len(in), len(out))
	}
	if in[1].DataQualityIssue != models.FlagNone {
		t.Fatal("input slice must not be modified")
	}
	if out[1].DataQualityIssue != models.FlagNullLastName {
		t.Fatalf("expected null_last_name, got %q", out[1].DataQualityIssue)
	}
	out[1].DataQualityIssue = models.FlagNone
	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatalf("flagging changed other fields (-in +out):\n%s", diff)
	}
}

func TestCount(t *testing.T) {
	labs := FlagLabs([]models.CleanLab{
		{IsOutlier: true},
		{TestValue: floatPtr(-1)},
		{},
	})
	total, byFlag := Count(labs, func(l models.CleanLab) models.QualityFlag { return l.DataQualityIssue })
	if total != 3 {
		t.Fatalf("expected 3 flagged labs, got %d", total)
	}
	if byFlag[models.FlagInvalidDate] != 1 || byFlag[models.FlagOutlierDetected] != 1 {
		t.Fatalf("unexpected tally %v", byFlag)
	}
}
