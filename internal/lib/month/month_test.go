package month

import (
	"testing"
	"time"
)

func TestAdd_TableTests(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		n     int
		want  time.Time
	}{
		{
			name:  "one month same day",
			start: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
			n:     1,
			want:  time.Date(2024, 2, 15, 10, 30, 0, 0, time.UTC),
		},
		{
			name:  "zero months",
			start: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			n:     0,
			want:  time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "year transition",
			start: time.Date(2024, 11, 20, 0, 0, 0, 0, time.UTC),
			n:     3,
			want:  time.Date(2025, 2, 20, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "twelve months",
			start: time.Date(2024, 5, 5, 8, 0, 0, 0, time.UTC),
			n:     12,
			want:  time.Date(2025, 5, 5, 8, 0, 0, 0, time.UTC),
		},
		{
			name:  "december plus one",
			start: time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC),
			n:     1,
			want:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "negative months",
			start: time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			n:     -2,
			want:  time.Date(2023, 11, 30, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Add(tt.start, tt.n)
			if !got.Equal(tt.want) {
				t.Errorf("Add(%v, %d) = %v, want %v", tt.start, tt.n, got, tt.want)
			}
		})
	}
}

func TestAdd_EdgeCases(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		n     int
		want  time.Time
	}{
		{
			name:  "31 jan clamps to leap february",
			start: time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC),
			n:     1,
			want:  time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC),
		},
		{
			name:  "31 jan clamps to non-leap february",
			start: time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
			n:     1,
			want:  time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "31 march plus six is 30 september",
			start: time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
			n:     6,
			want:  time.Date(2024, 9, 30, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "29 feb plus twelve",
			start: time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
			n:     12,
			want:  time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "30 jan plus one keeps 29 feb",
			start: time.Date(2024, 1, 30, 0, 0, 0, 0, time.UTC),
			n:     1,
			want:  time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Add(tt.start, tt.n)
			if !got.Equal(tt.want) {
				t.Errorf("Add(%v, %d) = %v, want %v", tt.start, tt.n, got, tt.want)
			}
		})
	}
}

func TestAdd_KeepsLocation(t *testing.T) {
	loc := time.FixedZone("ICT", 7*60*60)
	start := time.Date(2024, 1, 31, 23, 59, 59, 0, loc)

	got := Add(start, 1)
	if got.Location() != loc {
		t.Fatalf("location changed: %v", got.Location())
	}
	if got.Day() != 29 || got.Hour() != 23 {
		t.Errorf("unexpected result %v", got)
	}
}

func TestDaysIn(t *testing.T) {
	if got := DaysIn(2024, time.February, time.UTC); got != 29 {
		t.Errorf("DaysIn(2024, Feb) = %d, want 29", got)
	}
	if got := DaysIn(2023, time.February, time.UTC); got != 28 {
		t.Errorf("DaysIn(2023, Feb) = %d, want 28", got)
	}
	if got := DaysIn(2024, time.December, time.UTC); got != 31 {
		t.Errorf("DaysIn(2024, Dec) = %d, want 31", got)
	}
}
