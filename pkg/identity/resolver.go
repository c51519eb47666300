// Package identity assigns a stable patient key to raw patient records.
//
// Records are grouped by an exact fingerprint of upper-cased first name, last
// name and normalised date of birth. Within a group the record with the lowest
// original id is canonical and every other record is a duplicate. Keys are the
// 1-based dense rank of the fingerprint in byte order, so reruns over the same
// snapshot produce the same keys.
package identity

import (
	"sort"
	"strings"
	"time"

	"github.com/synaptica-ai/readmission/pkg/common/dates"
	"github.com/synaptica-ai/readmission/pkg/common/models"
)

const fingerprintSeparator = "|"

// Fingerprint joins the present identity parts with "|". Missing parts are
// skipped rather than rendered empty, so two records that lack the same field
// still fingerprint alike. Positions are not kept either: a record missing its
// first name and one missing its last name collide when the remaining parts
// match ("SMITH|1980-01-01" for both), and are resolved to one patient.
func Fingerprint(firstName, lastName *string, dob *time.Time) string {
	parts := make([]string, 0, 3)
	if firstName != nil {
		parts = append(parts, strings.ToUpper(*firstName))
	}
	if lastName != nil {
		parts = append(parts, strings.ToUpper(*lastName))
	}
	if dob != nil {
		parts = append(parts, dates.Format(dob))
	}
	return strings.Join(parts, fingerprintSeparator)
}

// ParseDateOfBirth accepts MM/dd/yyyy first and falls back to yyyy-MM-dd.
func ParseDateOfBirth(raw *string) (*time.Time, bool) {
	return dates.Parse(raw, dates.US, dates.ISO)
}

// Resolve converts raw patients to cleaned patients carrying fingerprint,
// patient key and duplicate marker. The result has the same length and order
// as the input. Quality flags are left unset.
func Resolve(raw []models.RawPatient, processedAt time.Time) []models.CleanPatient {
	out := make([]models.CleanPatient, len(raw))
	for i, rec := range raw {
		dob, badDOB := ParseDateOfBirth(rec.DateOfBirth)
		admission, _ := dates.Parse(rec.AdmissionDate, dates.ISO)
		discharge, _ := dates.Parse(rec.DischargeDate, dates.ISO)

		out[i] = models.CleanPatient{
			OriginalPatientID:  rec.PatientID,
			FirstName:          rec.FirstName,
			LastName:           rec.LastName,
			DateOfBirth:        dob,
			Age:                rec.Age,
			Gender:             rec.Gender,
			AdmissionDate:      admission,
			DischargeDate:      discharge,
			LengthOfStay:       rec.LengthOfStay,
			Readmitted30Days:   rec.Readmitted30Days,
			Fingerprint:        Fingerprint(rec.FirstName, rec.LastName, dob),
			ProcessedDate:      processedAt,
			InvalidDateOfBirth: badDOB,
		}
	}

	assign(out)
	return out
}

// assign sets PatientKey and IsDuplicate in place.
func assign(patients []models.CleanPatient) {
	groups := make(map[string][]int)
	for i, p := range patients {
		groups[p.Fingerprint] = append(groups[p.Fingerprint], i)
	}

	fingerprints := make([]string, 0, len(groups))
	for fp := range groups {
		fingerprints = append(fingerprints, fp)
	}
	sort.Strings(fingerprints)

	for rank, fp := range fingerprints {
		members := groups[fp]
		// Stable so equal ids keep input order.
		sort.SliceStable(members, func(a, b int) bool {
			return patients[members[a]].OriginalPatientID < patients[members[b]].OriginalPatientID
		})
		for pos, idx := range members {
			patients[idx].PatientKey = rank + 1
			patients[idx].IsDuplicate = pos > 0
		}
	}
}

// Stats summarises one resolution.
type Stats struct {
	Total      int
	Unique     int
	Duplicates int
}

func Summarize(patients []models.CleanPatient) Stats {
	s := Stats{Total: len(patients)}
	for _, p := range patients {
		if p.IsDuplicate {
			s.Duplicates++
		} else {
			s.Unique++
		}
	}
	return s
}

// DedupRate is the share of records marked as duplicates, in percent.
func (s Stats) DedupRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Duplicates) / float64(s.Total) * 100
}
