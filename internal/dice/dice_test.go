package dice

import (
	"errors"
	"fmt"
	"testing"
)

func TestRoll_ValidRanges(t *testing.T) {
	// Every die result must lie in [1, faces] and the total must be their sum.
	for _, faces := range AllowedFaces {
		for count := MinCount; count <= MaxCount; count++ {
			t.Run(fmt.Sprintf("%dd%d", count, faces), func(t *testing.T) {
				result, err := Roll(count, faces)
				if err != nil {
					t.Fatalf("Roll(%d, %d) error = %v", count, faces, err)
				}
				if len(result.Rolls) != count {
					t.Fatalf("Roll() returned %d rolls, want %d", len(result.Rolls), count)
				}
				sum := 0
				for i, r := range result.Rolls {
					if r.Value < 1 || r.Value > faces {
						t.Errorf("roll %d value = %d, want in [1, %d]", i, r.Value, faces)
					}
					if want := fmt.Sprintf("d%d", i+1); r.DieID != want {
						t.Errorf("roll %d die_id = %s, want %s", i, r.DieID, want)
					}
					sum += r.Value
				}
				if result.Total != sum {
					t.Errorf("Roll() total = %d, want %d", result.Total, sum)
				}
			})
		}
	}
}

func TestRoll_InvalidCount(t *testing.T) {
	tests := []int{0, -1, 11, 100}
	for _, count := range tests {
		if _, err := Roll(count, 20); !errors.Is(err, ErrInvalidCount) {
			t.Errorf("Roll(%d, 20) error = %v, want ErrInvalidCount", count, err)
		}
	}
}

func TestRoll_InvalidFaces(t *testing.T) {
	// faces=7 is outside the allowed set and must fail for every count.
	for count := 1; count <= 10; count++ {
		if _, err := Roll(count, 7); !errors.Is(err, ErrInvalidFaces) {
			t.Errorf("Roll(%d, 7) error = %v, want ErrInvalidFaces", count, err)
		}
	}
	for _, faces := range []int{0, 1, 2, 3, 5, 13, 100} {
		if _, err := Roll(1, faces); !errors.Is(err, ErrInvalidFaces) {
			t.Errorf("Roll(1, %d) error = %v, want ErrInvalidFaces", faces, err)
		}
	}
}

func TestRoll_Concurrent(t *testing.T) {
	// Rolls from concurrent goroutines must all be valid (no shared seed state).
	done := make(chan error, 20)
	for i := 0; i < 20; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				result, err := Roll(3, 6)
				if err != nil {
					done <- err
					return
				}
				for _, r := range result.Rolls {
					if r.Value < 1 || r.Value > 6 {
						done <- fmt.Errorf("out of range value %d", r.Value)
						return
					}
				}
			}
			done <- nil
		}()
	}
	for i := 0; i < 20; i++ {
		if err := <-done; err != nil {
			t.Fatalf("concurrent roll: %v", err)
		}
	}
}
