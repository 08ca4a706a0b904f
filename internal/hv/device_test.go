package hv

import "testing"

func TestMMIORegionContains(t *testing.T) {
	r := MMIORegion{Address: 0xFEE00000, Size: 0x1000}

	for _, tc := range []struct {
		addr, size uint64
		want       bool
	}{
		{0xFEE00000, 4, true},
		{0xFEE00FFC, 4, true},
		{0xFEE00FFE, 4, false},
		{0xFEDFFFFC, 8, false},
		{0xFFFFFFFFFFFFFFFC, 8, false},
	} {
		if got := r.Contains(tc.addr, tc.size); got != tc.want {
			t.Fatalf("Contains(%#x, %d) = %v, want %v", tc.addr, tc.size, got, tc.want)
		}
	}
}
