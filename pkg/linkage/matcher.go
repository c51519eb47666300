// Package linkage reports patients that probably describe the same person but
// did not collapse under exact fingerprint matching. Candidates are advisory;
// nothing here changes a patient key.
package linkage

import (
	"sort"
	"strings"

	"github.com/synaptica-ai/readmission/pkg/common/dates"
	"github.com/synaptica-ai/readmission/pkg/common/models"
)

const (
	DefaultThreshold  = 0.9
	MethodJaroWinkler = "jaro_winkler"
)

type Matcher struct {
	threshold float64
}

func NewMatcher(threshold float64) *Matcher {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Matcher{threshold: threshold}
}

// NearDuplicates compares the first names of canonical patients that share
// last name and date of birth but hold different keys. Pairs scoring at least
// the threshold are returned ordered by key.
func (m *Matcher) NearDuplicates(patients []models.CleanPatient) []models.NearDuplicate {
	blocks := make(map[string][]models.CleanPatient)
	for _, p := range patients {
		if p.IsDuplicate || p.FirstName == nil || p.LastName == nil || p.DateOfBirth == nil {
			continue
		}
		key := strings.ToUpper(*p.LastName) + "|" + dates.Format(p.DateOfBirth)
		blocks[key] = append(blocks[key], p)
	}

	var out []models.NearDuplicate
	for _, block := range blocks {
		for i := 0; i < len(block); i++ {
			for j := i + 1; j < len(block); j++ {
				a, b := block[i], block[j]
				if a.PatientKey == b.PatientKey {
					continue
				}
				score := jaroWinkler(strings.ToUpper(*a.FirstName), strings.ToUpper(*b.FirstName))
				if score < m.threshold {
					continue
				}
				if b.PatientKey < a.PatientKey {
					a, b = b, a
				}
				out = append(out, models.NearDuplicate{
					PatientKeyA: a.PatientKey,
					PatientKeyB: b.PatientKey,
					PatientIDA:  a.OriginalPatientID,
					PatientIDB:  b.OriginalPatientID,
					Score:       score,
					Method:      MethodJaroWinkler,
				})
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].PatientKeyA != out[j].PatientKeyA {
			return out[i].PatientKeyA < out[j].PatientKeyA
		}
		return out[i].PatientKeyB < out[j].PatientKeyB
	})
	return out
}

func jaroWinkler(a, b string) float64 {
	if a == b {
		return 1.0
	}
	s1, s2 := []rune(a), []rune(b)
	if len(s1) == 0 || len(s2) == 0 {
		return 0
	}

	window := max(max(len(s1), len(s2))/2-1, 0)
	s1Matches := make([]bool, len(s1))
	s2Matches := make([]bool, len(s2))

	matches := 0
	for i := range s1 {
		start := max(0, i-window)
		end := min(i+window+1, len(s2))
		for j := start; j < end; j++ {
			if s2Matches[j] || s1[i] != s2[j] {
				continue
			}
			s1Matches[i] = true
			s2Matches[j] = true
			matches++
			break
		}
	}
	if matches == 0 {
		return 0
	}

	transpositions := 0
	k := 0
	for i := range s1 {
		if !s1Matches[i] {
			continue
		}
		for !s2Matches[k] {
			k++
		}
		if s1[i] != s2[k] {
			transpositions++
		}
		k++
	}
	transpositions /= 2

	m := float64(matches)
	jaro := (m/float64(len(s1)) + m/float64(len(s2)) + (m-float64(transpositions))/m) / 3

	prefix := 0
	for i := 0; i < min(4, len(s1), len(s2)); i++ {
		if s1[i] != s2[i] {
			break
		}
		prefix++
	}
	return jaro + float64(prefix)*0.1*(1-jaro)
}
