// Package outlier marks lab values outside the Tukey fences of their test.
package outlier

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/synaptica-ai/readmission/pkg/common/models"
)

const DefaultMultiplier = 1.5

type Detector struct {
	multiplier float64
	minSamples int
}

// NewDetector returns a detector using multiplier*IQR fences. Groups with
// fewer than minSamples values still get bounds but are never flagged; zero
// disables the gate.
func NewDetector(multiplier float64, minSamples int) *Detector {
	if multiplier <= 0 {
		multiplier = DefaultMultiplier
	}
	if minSamples < 0 {
		minSamples = 0
	}
	return &Detector{multiplier: multiplier, minSamples: minSamples}
}

// Detect returns a copy of labs with IsOutlier set, and the bounds computed
// for each test name in name order. Null and non-finite values are ignored
// when computing bounds and are never outliers. A null test name forms its own group under
// the empty name.
func (d *Detector) Detect(labs []models.CleanLab) ([]models.CleanLab, []models.LabDistributionStats) {
	groups := make(map[string][]float64)
	for _, l := range labs {
		if !finite(l.TestValue) {
			continue
		}
		name := groupName(l.TestName)
		groups[name] = append(groups[name], *l.TestValue)
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	bounds := make(map[string]models.LabDistributionStats, len(groups))
	stats := make([]models.LabDistributionStats, 0, len(groups))
	for _, name := range names {
		s := d.bounds(name, groups[name])
		bounds[name] = s
		stats = append(stats, s)
	}

	out := make([]models.CleanLab, len(labs))
	copy(out, labs)
	for i := range out {
		out[i].IsOutlier = false
		if !finite(out[i].TestValue) {
			continue
		}
		s := bounds[groupName(out[i].TestName)]
		if s.Count < d.minSamples {
			continue
		}
		v := *out[i].TestValue
		out[i].IsOutlier = v < s.LowerBound || v > s.UpperBound
	}
	return out, stats
}

func (d *Detector) bounds(name string, values []float64) models.LabDistributionStats {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	q1 := stat.Quantile(0.25, stat.Empirical, sorted, nil)
	q3 := stat.Quantile(0.75, stat.Empirical, sorted, nil)
	iqr := q3 - q1
	return models.LabDistributionStats{
		TestName:   name,
		Count:      len(sorted),
		Q1:         q1,
		Q3:         q3,
		IQR:        iqr,
		LowerBound: q1 - d.multiplier*iqr,
		UpperBound: q3 + d.multiplier*iqr,
	}
}

func finite(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}

func groupName(name *string) string {
	if name == nil {
		return ""
	}
	return *name
}

// Count returns how many labs are marked as outliers.
func Count(labs []models.CleanLab) int {
	n := 0
	for _, l := range labs {
		if l.IsOutlier {
			n++
		}
	}
	return n
}
