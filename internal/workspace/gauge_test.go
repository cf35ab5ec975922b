package workspace

import "testing"

func TestDiversity(t *testing.T) {
	tests := []struct {
		similarity, want float64
	}{
		{30, 70},
		{0, 100},
		{100, 0},
		{10, 90},
	}
	for _, tt := range tests {
		if got := Diversity(tt.similarity); got != tt.want {
			t.Errorf("Diversity(%v) = %v, want %v", tt.similarity, got, tt.want)
		}
	}
}

func TestGaugeColor(t *testing.T) {
	tests := []struct {
		value float64
		want  string
	}{
		{-5, "#d3d3d3"},
		{0, "#d3d3d3"},
		{50, "rgb(127, 0, 0)"},
		{70, "rgb(178, 0, 0)"},
		{100, "#ff0000"},
		{120, "#ff0000"},
	}
	for _, tt := range tests {
		if got := GaugeColor(tt.value); got != tt.want {
			t.Errorf("GaugeColor(%v) = %q, want %q", tt.value, got, tt.want)
		}
	}
}

func TestGaugeWidth(t *testing.T) {
	tests := []struct {
		value float64
		want  string
	}{
		{-1, "0%"},
		{0, "0%"},
		{42.5, "42.5%"},
		{100, "100%"},
		{130, "100%"},
	}
	for _, tt := range tests {
		if got := GaugeWidth(tt.value); got != tt.want {
			t.Errorf("GaugeWidth(%v) = %q, want %q", tt.value, got, tt.want)
		}
	}
}
