package core

import "fmt"

// Page is the paginated envelope returned by the list endpoints. Number is
// the 0-based page index.
type Page[T any] struct {
	Content       []T   `json:"content"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	Number        int   `json:"number"`
	Size          int   `json:"size"`
}

// TotalPagesFor computes ceil(totalElements / size). Size must be positive.
func TotalPagesFor(totalElements int64, size int) int {
	if size <= 0 {
		return 0
	}
	return int((totalElements + int64(size) - 1) / int64(size))
}

// Validate checks the envelope invariants: content never exceeds the page
// size, and the page count is consistent with the element count.
func (p Page[T]) Validate() error {
	if p.Size <= 0 {
		return fmt.Errorf("page size must be positive, got %d", p.Size)
	}
	if len(p.Content) > p.Size {
		return fmt.Errorf("page content %d exceeds size %d", len(p.Content), p.Size)
	}
	if want := TotalPagesFor(p.TotalElements, p.Size); p.TotalPages != want {
		return fmt.Errorf("totalPages %d inconsistent with %d elements of size %d (want %d)",
			p.TotalPages, p.TotalElements, p.Size, want)
	}
	return nil
}

// Last reports whether this is the final page.
func (p Page[T]) Last() bool {
	return p.Number >= p.TotalPages-1
}
