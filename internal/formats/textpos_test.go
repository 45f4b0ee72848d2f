package formats

import "testing"

// TestLineCol verifies offset to line/column conversion.
func TestLineCol(t *testing.T) {
	content := "ab\ncd\n\nxyz"
	tests := []struct {
		offset   int
		wantLine int
		wantCol  int
	}{
		{0, 1, 1},
		{1, 1, 2},
		{2, 1, 3},
		{3, 2, 1},
		{5, 2, 3},
		{6, 3, 1},
		{7, 4, 1},
		{9, 4, 3},
		{-5, 1, 1},
		{100, 4, 4},
	}
	for _, tt := range tests {
		line, col := LineCol(content, tt.offset)
		if line != tt.wantLine || col != tt.wantCol {
			t.Errorf("LineCol(%d) = (%d, %d), want (%d, %d)",
				tt.offset, line, col, tt.wantLine, tt.wantCol)
		}
	}
}

// TestLineStart verifies line number to offset conversion.
func TestLineStart(t *testing.T) {
	content := "ab\ncd\n\nxyz"
	tests := []struct {
		line int
		want int
	}{
		{1, 0},
		{2, 3},
		{3, 6},
		{4, 7},
		{5, -1},
		{0, -1},
		{-1, -1},
	}
	for _, tt := range tests {
		if got := LineStart(content, tt.line); got != tt.want {
			t.Errorf("LineStart(%d) = %d, want %d", tt.line, got, tt.want)
		}
	}
}
