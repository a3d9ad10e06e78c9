package grading

import (
	"testing"

	"github.com/tannerln7/GrowTrialLab-sub001/pkg/domain"
)

func metrics(vigor, featureCount, featureQuality, colorTurgor, damagePests int) domain.BaselineMetrics {
	return domain.BaselineMetrics{
		Vigor:          vigor,
		FeatureCount:   featureCount,
		FeatureQuality: featureQuality,
		ColorTurgor:    colorTurgor,
		DamagePests:    damagePests,
	}
}

func TestComputeAutoGrade(t *testing.T) {
	cases := []struct {
		name string
		in   domain.BaselineMetrics
		want domain.Grade
	}{
		{"all fives", metrics(5, 5, 5, 5, 5), domain.GradeA},
		{"all fours", metrics(4, 4, 4, 4, 4), domain.GradeA},
		{"all threes", metrics(3, 3, 3, 3, 3), domain.GradeB},
		{"strong vigor over neutral rest", metrics(4, 3, 3, 3, 3), domain.GradeB},
		{"all twos", metrics(2, 2, 2, 2, 2), domain.GradeB},
		{"weak but above floor", metrics(2, 3, 3, 3, 2), domain.GradeB},
		{"vigor one hard fails", metrics(1, 5, 5, 5, 5), domain.GradeC},
		{"damage one hard fails", metrics(5, 5, 5, 5, 1), domain.GradeC},
		{"two ones hard fail", metrics(3, 1, 1, 3, 3), domain.GradeC},
		{"single minor one scores normally", metrics(5, 1, 5, 5, 5), domain.GradeA},
		{"out of range clamps to neutral", metrics(0, 9, 3, -2, 100), domain.GradeB},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ComputeAutoGrade(tc.in); got != tc.want {
				t.Fatalf("ComputeAutoGrade(%+v) = %s, want %s", tc.in, got, tc.want)
			}
		})
	}
}

func TestComputeAutoGradeDeterministic(t *testing.T) {
	m := metrics(4, 3, 5, 2, 4)
	first := ComputeAutoGrade(m)
	for i := 0; i < 10; i++ {
		if got := ComputeAutoGrade(m); got != first {
			t.Fatalf("grade changed between identical calls: %s then %s", first, got)
		}
	}
}

func TestClampMetric(t *testing.T) {
	cases := []struct {
		in, want int
	}{
		{0, 3}, {1, 1}, {3, 3}, {5, 5}, {6, 3}, {-4, 3},
	}
	for _, tc := range cases {
		if got := ClampMetric(tc.in); got != tc.want {
			t.Fatalf("ClampMetric(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestNeutralMetricsGrade(t *testing.T) {
	if got := ComputeAutoGrade(NeutralMetrics()); got != domain.GradeB {
		t.Fatalf("neutral metrics grade = %s, want B", got)
	}
}

func TestReconcileKeepsManualPinned(t *testing.T) {
	m := metrics(5, 5, 5, 5, 5)
	grade, source := Reconcile(m, domain.GradeSourceManual, domain.GradeC)
	if grade != domain.GradeC || source != domain.GradeSourceManual {
		t.Fatalf("manual override not pinned: got %s/%s", grade, source)
	}
}

func TestReconcileTracksAuto(t *testing.T) {
	m := metrics(5, 5, 5, 5, 5)
	grade, source := Reconcile(m, domain.GradeSourceAuto, domain.GradeC)
	if grade != domain.GradeA || source != domain.GradeSourceAuto {
		t.Fatalf("auto grade not recomputed: got %s/%s", grade, source)
	}
}

func TestSelectGradeOverrideLifecycle(t *testing.T) {
	m := metrics(5, 5, 5, 5, 5) // auto A

	grade, source := SelectGrade(m, domain.GradeB)
	if grade != domain.GradeB || source != domain.GradeSourceManual {
		t.Fatalf("disagreeing pick should pin manual: got %s/%s", grade, source)
	}

	// Picking what the algorithm already recommends collapses to auto.
	grade, source = SelectGrade(m, domain.GradeA)
	if grade != domain.GradeA || source != domain.GradeSourceAuto {
		t.Fatalf("agreeing pick should collapse to auto: got %s/%s", grade, source)
	}

	grade, source = RevertToAuto(m)
	if grade != domain.GradeA || source != domain.GradeSourceAuto {
		t.Fatalf("revert should restore auto: got %s/%s", grade, source)
	}
}
