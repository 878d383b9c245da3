package core

import "testing"

func TestTotalPagesFor(t *testing.T) {
	tests := []struct {
		elements int64
		size     int
		want     int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{25, 10, 3},
		{5, 0, 0},
	}
	for _, tt := range tests {
		if got := TotalPagesFor(tt.elements, tt.size); got != tt.want {
			t.Errorf("TotalPagesFor(%d, %d) = %d, want %d", tt.elements, tt.size, got, tt.want)
		}
	}
}

func TestPageValidate(t *testing.T) {
	tests := []struct {
		name    string
		page    Page[int]
		wantErr bool
	}{
		{"valid full page", Page[int]{Content: []int{1, 2, 3}, TotalElements: 7, TotalPages: 3, Number: 0, Size: 3}, false},
		{"valid last partial page", Page[int]{Content: []int{1}, TotalElements: 7, TotalPages: 3, Number: 2, Size: 3}, false},
		{"valid empty", Page[int]{TotalElements: 0, TotalPages: 0, Number: 0, Size: 10}, false},
		{"content exceeds size", Page[int]{Content: []int{1, 2, 3, 4}, TotalElements: 4, TotalPages: 2, Number: 0, Size: 3}, true},
		{"inconsistent page count", Page[int]{Content: []int{1}, TotalElements: 100, TotalPages: 1, Number: 0, Size: 10}, true},
		{"zero size", Page[int]{Size: 0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.page.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPageLast(t *testing.T) {
	if !(Page[int]{Number: 2, TotalPages: 3}).Last() {
		t.Error("final page should report Last")
	}
	if (Page[int]{Number: 0, TotalPages: 3}).Last() {
		t.Error("first of three pages is not last")
	}
	if !(Page[int]{Number: 0, TotalPages: 0}).Last() {
		t.Error("empty result is its own last page")
	}
}
