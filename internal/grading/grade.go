// Package grading converts the five ordinal baseline health metrics into a
// categorical A/B/C grade. The algorithm is deterministic and pure; a human
// override is tracked separately from the computed recommendation so the two
// never silently overwrite each other.
package grading

import (
	"math"

	"github.com/tannerln7/GrowTrialLab-sub001/pkg/domain"
)

// Metric bounds and the neutral default applied to missing or out-of-range
// input.
const (
	MetricMin     = 1
	MetricMax     = 5
	MetricNeutral = 3
)

// Weighted score thresholds and metric weights.
const (
	thresholdA = 0.84
	thresholdB = 0.48

	weightVigor          = 0.30
	weightFeatureQuality = 0.25
	weightDamagePests    = 0.20
	weightColorTurgor    = 0.15
	weightFeatureCount   = 0.10
)

// ClampMetric rejects out-of-range metric values at the boundary, replacing
// them with the neutral default rather than letting them reach the scoring
// function.
func ClampMetric(v int) int {
	if v < MetricMin || v > MetricMax {
		return MetricNeutral
	}
	return v
}

// ClampMetrics returns a copy with every metric clamped.
func ClampMetrics(m domain.BaselineMetrics) domain.BaselineMetrics {
	return domain.BaselineMetrics{
		Vigor:          ClampMetric(m.Vigor),
		FeatureCount:   ClampMetric(m.FeatureCount),
		FeatureQuality: ClampMetric(m.FeatureQuality),
		ColorTurgor:    ClampMetric(m.ColorTurgor),
		DamagePests:    ClampMetric(m.DamagePests),
	}
}

// NeutralMetrics is the defaulted record created when a plant enters the
// baseline queue.
func NeutralMetrics() domain.BaselineMetrics {
	return domain.BaselineMetrics{
		Vigor:          MetricNeutral,
		FeatureCount:   MetricNeutral,
		FeatureQuality: MetricNeutral,
		ColorTurgor:    MetricNeutral,
		DamagePests:    MetricNeutral,
	}
}

// normalize maps a metric 1-5 onto [0,1] with a concave transform so that
// low scores are penalized more steeply than a linear scale.
func normalize(v int) float64 {
	return math.Sqrt(float64(v-1) / 4)
}

// ComputeAutoGrade derives the recommended grade from the metrics.
//
// Hard-fail: vigor 1, damage/pests 1, or two or more metrics at 1 force C
// regardless of the weighted score. Rescue: a weighted-score C is lifted to B
// when vigor is at least 4 and no metric is below 3, so one weak sub-metric
// cannot mask an otherwise healthy plant.
func ComputeAutoGrade(m domain.BaselineMetrics) domain.Grade {
	m = ClampMetrics(m)

	ones := 0
	for _, v := range []int{m.Vigor, m.FeatureCount, m.FeatureQuality, m.ColorTurgor, m.DamagePests} {
		if v == MetricMin {
			ones++
		}
	}
	if m.Vigor == MetricMin || m.DamagePests == MetricMin || ones >= 2 {
		return domain.GradeC
	}

	score := weightVigor*normalize(m.Vigor) +
		weightFeatureQuality*normalize(m.FeatureQuality) +
		weightDamagePests*normalize(m.DamagePests) +
		weightColorTurgor*normalize(m.ColorTurgor) +
		weightFeatureCount*normalize(m.FeatureCount)

	switch {
	case score >= thresholdA:
		return domain.GradeA
	case score >= thresholdB:
		return domain.GradeB
	}

	if m.Vigor >= 4 && minMetric(m) >= MetricNeutral {
		return domain.GradeB
	}
	return domain.GradeC
}

func minMetric(m domain.BaselineMetrics) int {
	lowest := m.Vigor
	for _, v := range []int{m.FeatureCount, m.FeatureQuality, m.ColorTurgor, m.DamagePests} {
		if v < lowest {
			lowest = v
		}
	}
	return lowest
}

// Reconcile returns the active grade and source after a metrics change.
// While the source is auto the stored grade always tracks the computed
// recommendation; a manual grade is pinned verbatim until reverted.
func Reconcile(m domain.BaselineMetrics, source domain.GradeSource, stored domain.Grade) (domain.Grade, domain.GradeSource) {
	if source == domain.GradeSourceManual {
		return stored, domain.GradeSourceManual
	}
	return ComputeAutoGrade(m), domain.GradeSourceAuto
}

// SelectGrade applies a grade-button pick. Picking the value the algorithm
// already recommends reverts the record to auto instead of storing a no-op
// manual override. An override is only meaningful when it disagrees.
func SelectGrade(m domain.BaselineMetrics, picked domain.Grade) (domain.Grade, domain.GradeSource) {
	auto := ComputeAutoGrade(m)
	if picked == auto {
		return auto, domain.GradeSourceAuto
	}
	return picked, domain.GradeSourceManual
}

// RevertToAuto is the one-action return from a manual override to the
// computed recommendation.
func RevertToAuto(m domain.BaselineMetrics) (domain.Grade, domain.GradeSource) {
	return ComputeAutoGrade(m), domain.GradeSourceAuto
}
