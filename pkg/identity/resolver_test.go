package identity

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/synaptica-ai/readmission/pkg/common/models"
)

func strPtr(s string) *string { return &s }

func rawPatient(id int64, first, last, dob string) models.RawPatient {
	p := models.RawPatient{PatientID: id}
	if first != "" {
		p.FirstName = strPtr(first)
	}
	if last != "" {
		p.LastName = strPtr(last)
	}
	if dob != "" {
		p.DateOfBirth = strPtr(dob)
	}
	return p
}

func TestFingerprintSkipsMissingParts(t *testing.T) {
	dob := time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := Fingerprint(strPtr("John"), strPtr("smith"), &dob); got != "JOHN|SMITH|1980-01-01" {
		t.Fatalf("unexpected fingerprint %q", got)
	}
	if got := Fingerprint(nil, strPtr("Smith"), &dob); got != "SMITH|1980-01-01" {
		t.Fatalf("unexpected fingerprint with null first name %q", got)
	}
	if got := Fingerprint(nil, nil, nil); got != "" {
		t.Fatalf("expected empty fingerprint, got %q", got)
	}
}

func TestResolveMergesRecordsMissingDifferentNameParts(t *testing.T) {
	dob := time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)
	if a, b := Fingerprint(nil, strPtr("Smith"), &dob), Fingerprint(strPtr("Smith"), nil, &dob); a != b {
		t.Fatalf("expected colliding fingerprints, got %q and %q", a, b)
	}

	out := Resolve([]models.RawPatient{
		rawPatient(3, "", "Smith", "1980-01-01"),
		rawPatient(8, "Smith", "", "01/01/1980"),
	}, time.Now())

	if out[0].PatientKey != out[1].PatientKey {
		t.Fatalf("expected a shared key, got %d and %d", out[0].PatientKey, out[1].PatientKey)
	}
	if out[0].IsDuplicate || !out[1].IsDuplicate {
		t.Fatalf("expected id 8 to be the duplicate: %+v", out)
	}
}

func TestFingerprintIgnoresDateLayout(t *testing.T) {
	us, _ := ParseDateOfBirth(strPtr("01/01/1980"))
	iso, _ := ParseDateOfBirth(strPtr("1980-01-01"))
	if Fingerprint(strPtr("john"), strPtr("Smith"), us) != Fingerprint(strPtr("JOHN"), strPtr("SMITH"), iso) {
		t.Fatal("case and date layout must not change the fingerprint")
	}
}

func TestResolveAssignsKeysAndDuplicates(t *testing.T) {
	raw := []models.RawPatient{
		rawPatient(1, "John", "Smith", "01/01/1980"),
		rawPatient(5, "JOHN", "SMITH", "1980-01-01"),
		rawPatient(2, "Jane", "Doe", "1990-05-05"),
	}

	got := Resolve(raw, time.Now())

	keys := []int{got[0].PatientKey, got[1].PatientKey, got[2].PatientKey}
	if diff := cmp.Diff([]int{2, 2, 1}, keys); diff != "" {
		t.Fatalf("patient keys mismatch (-want +got):\n%s", diff)
	}
	dups := []bool{got[0].IsDuplicate, got[1].IsDuplicate, got[2].IsDuplicate}
	if diff := cmp.Diff([]bool{false, true, false}, dups); diff != "" {
		t.Fatalf("duplicate markers mismatch (-want +got):\n%s", diff)
	}
	if got[1].Fingerprint != "JOHN|SMITH|1980-01-01" {
		t.Fatalf("unexpected fingerprint %q", got[1].Fingerprint)
	}
}

func TestResolveCanonicalIsLowestID(t *testing.T) {
	raw := []models.RawPatient{
		rawPatient(9, "Ann", "Lee", "1970-02-02"),
		rawPatient(3, "Ann", "Lee", "1970-02-02"),
		rawPatient(7, "Ann", "Lee", "02/02/1970"),
	}

	got := Resolve(raw, time.Now())

	canonical := 0
	for _, p := range got {
		if !p.IsDuplicate {
			canonical++
			if p.OriginalPatientID != 3 {
				t.Fatalf("expected id 3 to be canonical, got %d", p.OriginalPatientID)
			}
		}
		if p.PatientKey != 1 {
			t.Fatalf("expected shared key 1, got %d", p.PatientKey)
		}
	}
	if canonical != 1 {
		t.Fatalf("expected exactly one canonical record, got %d", canonical)
	}
}

func TestResolveDoesNotMergeTypos(t *testing.T) {
	raw := []models.RawPatient{
		rawPatient(1, "John", "Smith", "1980-01-01"),
		rawPatient(2, "Joh", "Smith", "1980-01-01"),
	}

	got := Resolve(raw, time.Now())
	if got[0].PatientKey == got[1].PatientKey {
		t.Fatal("a single-character difference must yield distinct keys")
	}
	if got[0].IsDuplicate || got[1].IsDuplicate {
		t.Fatal("neither record should be a duplicate")
	}
}

func TestResolveMarksUnparseableDateOfBirth(t *testing.T) {
	got := Resolve([]models.RawPatient{rawPatient(1, "A", "B", "1980/13/45")}, time.Now())
	if got[0].DateOfBirth != nil || !got[0].InvalidDateOfBirth {
		t.Fatalf("expected null date of birth with invalid marker, got %+v", got[0])
	}
	if got[0].Fingerprint != "A|B" {
		t.Fatalf("unexpected fingerprint %q", got[0].Fingerprint)
	}
}

func TestSummarize(t *testing.T) {
	got := Resolve([]models.RawPatient{
		rawPatient(1, "A", "B", ""),
		rawPatient(2, "A", "B", ""),
		rawPatient(3, "C", "D", ""),
		rawPatient(4, "E", "F", ""),
	}, time.Now())

	s := Summarize(got)
	if s.Total != 4 || s.Unique != 3 || s.Duplicates != 1 {
		t.Fatalf("unexpected stats %+v", s)
	}
	if s.DedupRate() != 25 {
		t.Fatalf("expected 25%% dedup rate, got %v", s.DedupRate())
	}
}
