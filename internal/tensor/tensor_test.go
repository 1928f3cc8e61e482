package tensor

import "testing"

func TestArgmax(t *testing.T) {
	tests := []struct {
		name string
		in   []float32
		want int
	}{
		{"Unique maximum", []float32{0.1, 0.7, 0.2}, 1},
		{"Tie picks first", []float32{0.4, 0.4, 0.2}, 0},
		{"Tie later in vector", []float32{0.1, 0.45, 0.45}, 1},
		{"Single element", []float32{3}, 0},
		{"Negative scores", []float32{-3, -1, -2}, 1},
		{"Empty", nil, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Argmax(tt.in); got != tt.want {
				t.Errorf("Argmax(%v) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestIndexing(t *testing.T) {
	tn := New(1, 1, 2, 7)
	tn.Set(0.9, 0, 0, 1, 2)
	if got := tn.At(0, 0, 1, 2); got != 0.9 {
		t.Errorf("At() = %v, want 0.9", got)
	}
	if off := tn.Offset(0, 0, 1, 2); off != 9 {
		t.Errorf("Offset() = %d, want 9", off)
	}
	if len(tn.Data) != 14 {
		t.Errorf("Expected 14 values, got %d", len(tn.Data))
	}
}

func TestFromDataShapeMismatch(t *testing.T) {
	if _, err := FromData([]int{1, 2}, []float32{1}); err == nil {
		t.Fatal("Expected error for mismatched shape")
	}
	tn, err := FromData([]int{1, 2}, []float32{0.2, 0.8})
	if err != nil {
		t.Fatalf("FromData failed: %v", err)
	}
	if row := tn.Row(); len(row) != 2 || row[1] != 0.8 {
		t.Errorf("Row() = %v, want [0.2 0.8]", row)
	}
}
