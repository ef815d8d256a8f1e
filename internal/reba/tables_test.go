package reba

import "testing"

func TestLookupTableA(t *testing.T) {
	tests := []struct {
		trunk, neck, leg int
		want             int
	}{
		{1, 1, 1, 1},
		{1, 1, 2, 2},
		{2, 2, 1, 3},
		{3, 3, 2, 5},
		{4, 2, 2, 6},
		{5, 3, 2, 7},
		// Out-of-range inputs clamp to the table edges.
		{0, 0, 0, 1},
		{9, 9, 9, 7},
		{5, 3, 4, 7}, // leg scores above 2 collapse to the second column
	}
	for _, tt := range tests {
		got := LookupTableA(tt.trunk, tt.neck, tt.leg)
		if got != tt.want {
			t.Errorf("LookupTableA(%d, %d, %d) = %d, want %d",
				tt.trunk, tt.neck, tt.leg, got, tt.want)
		}
	}
}

func TestLookupTableB(t *testing.T) {
	tests := []struct {
		upperArm, forearm, wrist int
		want                     int
	}{
		{1, 1, 1, 1},
		{1, 2, 3, 3},
		{2, 2, 2, 3},
		{3, 1, 3, 5},
		{4, 2, 2, 6},
		{5, 1, 1, 7},
		{6, 2, 3, 9},
		// Clamping.
		{0, 0, 0, 1},
		{7, 3, 4, 9},
	}
	for _, tt := range tests {
		got := LookupTableB(tt.upperArm, tt.forearm, tt.wrist)
		if got != tt.want {
			t.Errorf("LookupTableB(%d, %d, %d) = %d, want %d",
				tt.upperArm, tt.forearm, tt.wrist, got, tt.want)
		}
	}
}

func TestLookupTableC(t *testing.T) {
	tests := []struct {
		a, b, want int
	}{
		{1, 1, 1},
		{1, 12, 7},
		{4, 8, 8},
		{6, 1, 6},
		{10, 12, 12},
		{12, 1, 12},
		{12, 12, 12},
		// Clamping.
		{0, 0, 1},
		{99, 99, 12},
	}
	for _, tt := range tests {
		got := LookupTableC(tt.a, tt.b)
		if got != tt.want {
			t.Errorf("LookupTableC(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

// The combined score never decreases as either group score worsens.
func TestLookupTableCMonotonic(t *testing.T) {
	for a := 1; a <= 12; a++ {
		for b := 2; b <= 12; b++ {
			if LookupTableC(a, b) < LookupTableC(a, b-1) {
				t.Errorf("table C decreases along row %d at column %d", a, b)
			}
		}
	}
	for b := 1; b <= 12; b++ {
		for a := 2; a <= 12; a++ {
			if LookupTableC(a, b) < LookupTableC(a-1, b) {
				t.Errorf("table C decreases along column %d at row %d", b, a)
			}
		}
	}
}
