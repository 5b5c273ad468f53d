package stats

import (
	"math"
	"testing"
)

func TestMean(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		expected float64
	}{
		{"Empty", []float64{}, 0},
		{"SingleItem", []float64{5.5}, 5.5},
		{"Uniform", []float64{30, 30, 30}, 30},
		{"Mixed", []float64{28, 30, 35}, 31},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Mean(tt.values); got != tt.expected {
				t.Errorf("Mean() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestSampleStdDev(t *testing.T) {
	if _, ok := SampleStdDev([]float64{30}); ok {
		t.Errorf("expected single value to be undefined")
	}

	sd, ok := SampleStdDev([]float64{30, 30})
	if !ok || sd != 0 {
		t.Errorf("SampleStdDev([30 30]) = %v, %v; want 0, true", sd, ok)
	}

	sd, _ = SampleStdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if math.Abs(sd-2.138089935) > 1e-6 {
		t.Errorf("SampleStdDev() = %v, want ~2.138", sd)
	}
}

func TestMedian(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		expected float64
	}{
		{"Empty", []float64{}, 0},
		{"SingleItem", []float64{5.5}, 5.5},
		{"OddCount", []float64{1.1, 3.3, 2.2, 4.4, 5.5}, 3.3},
		{"EvenCount", []float64{1.1, 2.2, 3.3, 4.4}, 2.75},
		{"Unsorted", []float64{10.5, 2.5, 8.5, 4.5, 6.5}, 6.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Median(tt.values); got != tt.expected {
				t.Errorf("Median() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestClamp01(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-0.5, 0},
		{0.25, 0.25},
		{1.7, 1},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		if got := Clamp01(tt.in); got != tt.want {
			t.Errorf("Clamp01(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRound(t *testing.T) {
	if got := Round(1.3*1.2, 2); got != 1.56 {
		t.Errorf("Round(1.3*1.2, 2) = %v, want 1.56", got)
	}
}
