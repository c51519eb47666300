// Package features builds the per-patient feature table from the cleaned
// layer.
package features

import (
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/synaptica-ai/readmission/pkg/common/logger"
	"github.com/synaptica-ai/readmission/pkg/common/models"
	"github.com/synaptica-ai/readmission/pkg/terminology"
)

// Lab tests averaged into the feature table.
const (
	TestHemoglobin = "Hemoglobin"
	TestGlucose    = "Glucose"
	TestWBC        = "WBC"
	TestCreatinine = "Creatinine"
	TestBUN        = "BUN"
)

type Options struct {
	// IncludeStandardizedNames counts medications whose only issue is a
	// standardized name.
	IncludeStandardizedNames bool
}

type Aggregator struct {
	terms *terminology.Normalizer
	opts  Options
}

func NewAggregator(terms *terminology.Normalizer, opts Options) *Aggregator {
	return &Aggregator{terms: terms, opts: opts}
}

type diagnosisAgg struct {
	count      int
	conditions map[string]bool
}

type labAgg struct {
	count int
	sum   map[string]float64
	n     map[string]int
}

type medicationAgg struct {
	count   int
	classes map[string]bool
}

// Result is the feature table of one run.
type Result struct {
	Features []models.PatientFeatureVector
	// SharedKeyRows counts rows whose patient key also appears on another row.
	SharedKeyRows int
}

// Aggregate left-joins diagnosis, lab and medication aggregates onto every
// patient row by original patient id. Patients without matching records get
// zero counts and zero averages.
func (a *Aggregator) Aggregate(silver models.SilverSnapshot, generatedAt time.Time) Result {
	diags := a.diagnoses(silver.Diagnoses)
	labs := labAggregates(silver.Labs)
	meds := a.medications(silver.Medications)

	keyRows := make(map[int]int, len(silver.Patients))
	for _, p := range silver.Patients {
		keyRows[p.PatientKey]++
	}

	res := Result{Features: make([]models.PatientFeatureVector, 0, len(silver.Patients))}
	for _, p := range silver.Patients {
		if keyRows[p.PatientKey] > 1 {
			res.SharedKeyRows++
		}

		fv := models.PatientFeatureVector{
			PatientKey:             p.PatientKey,
			OriginalPatientID:      p.OriginalPatientID,
			Age:                    p.Age,
			Gender:                 p.Gender,
			LengthOfStay:           p.LengthOfStay,
			TargetReadmitted30Days: p.Readmitted30Days,
			FeatureGenerationDate:  generatedAt,
		}

		if d, ok := diags[p.OriginalPatientID]; ok {
			fv.NumDiagnoses = d.count
			fv.HasDiabetes = indicator(d.conditions[terminology.ConditionDiabetes])
			fv.HasHeartDisease = indicator(d.conditions[terminology.ConditionHeartDisease])
			fv.HasCOPD = indicator(d.conditions[terminology.ConditionCOPD])
			fv.HasCKD = indicator(d.conditions[terminology.ConditionCKD])
			fv.HasAnxiety = indicator(d.conditions[terminology.ConditionAnxiety])
			for name, present := range d.conditions {
				if present && a.terms.IsChronic(name) {
					fv.NumChronicConditions++
				}
			}
		}

		if l, ok := labs[p.OriginalPatientID]; ok {
			fv.NumLabTests = l.count
			fv.AvgHemoglobin = l.mean(TestHemoglobin)
			fv.AvgGlucose = l.mean(TestGlucose)
			fv.AvgWBC = l.mean(TestWBC)
			fv.AvgCreatinine = l.mean(TestCreatinine)
			fv.AvgBUN = l.mean(TestBUN)
		}

		if m, ok := meds[p.OriginalPatientID]; ok {
			fv.NumMedications = m.count
			fv.OnMetformin = indicator(m.classes[terminology.ClassMetformin])
			fv.OnACEInhibitor = indicator(m.classes[terminology.ClassACEInhibitor])
			fv.OnStatin = indicator(m.classes[terminology.ClassStatin])
		}

		res.Features = append(res.Features, fv)
	}

	if res.SharedKeyRows > 0 {
		logger.Component("features").WithField("rows", res.SharedKeyRows).
			Warn("Feature rows are keyed by original patient id; duplicate identities produce separate rows")
	}
	return res
}

func (a *Aggregator) diagnoses(records []models.CleanDiagnosis) map[int64]*diagnosisAgg {
	out := make(map[int64]*diagnosisAgg)
	for _, d := range records {
		if d.DataQualityIssue.IsSet() {
			continue
		}
		agg, ok := out[d.PatientID]
		if !ok {
			agg = &diagnosisAgg{conditions: make(map[string]bool)}
			out[d.PatientID] = agg
		}
		agg.count++
		for _, c := range a.terms.Conditions(d.DiagnosisCode) {
			agg.conditions[c] = true
		}
	}
	return out
}

func labAggregates(records []models.CleanLab) map[int64]*labAgg {
	out := make(map[int64]*labAgg)
	for _, l := range records {
		if l.DataQualityIssue.IsSet() || l.IsOutlier {
			continue
		}
		agg, ok := out[l.PatientID]
		if !ok {
			agg = &labAgg{sum: make(map[string]float64), n: make(map[string]int)}
			out[l.PatientID] = agg
		}
		agg.count++
		if l.TestName != nil && l.TestValue != nil {
			agg.sum[*l.TestName] += *l.TestValue
			agg.n[*l.TestName]++
		}
	}
	return out
}

func (l *labAgg) mean(test string) float64 {
	if l.n[test] == 0 {
		return 0
	}
	return round2(l.sum[test] / float64(l.n[test]))
}

func (a *Aggregator) medications(records []models.CleanMedication) map[int64]*medicationAgg {
	out := make(map[int64]*medicationAgg)
	for _, m := range records {
		if !a.counts(m) {
			continue
		}
		agg, ok := out[m.PatientID]
		if !ok {
			agg = &medicationAgg{classes: make(map[string]bool)}
			out[m.PatientID] = agg
		}
		agg.count++
		if m.MedicationName != nil {
			for _, c := range a.terms.DrugClasses(strings.TrimSpace(*m.MedicationName)) {
				agg.classes[c] = true
			}
		}
	}
	return out
}

func (a *Aggregator) counts(m models.CleanMedication) bool {
	if !m.DataQualityIssue.IsSet() {
		return true
	}
	return a.opts.IncludeStandardizedNames && m.DataQualityIssue == models.FlagStandardizedName
}

func indicator(b bool) int {
	if b {
		return 1
	}
	return 0
}

// round2 rounds half away from zero to two decimals, working on the shortest
// decimal representation of v so that 1.005 rounds to 1.01.
func round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	r, ok := new(big.Rat).SetString(strconv.FormatFloat(v, 'f', -1, 64))
	if !ok {
		return math.Round(v*100) / 100
	}
	r.Mul(r, big.NewRat(100, 1))
	abs := new(big.Rat).Abs(r)
	abs.Add(abs, big.NewRat(1, 2))
	q := new(big.Int).Quo(abs.Num(), abs.Denom())
	if r.Sign() < 0 {
		q.Neg(q)
	}
	out, _ := new(big.Rat).SetFrac(q, big.NewInt(100)).Float64()
	return out
}
