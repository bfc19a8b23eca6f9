package analytics

import (
	"testing"
	"time"
)

func TestMonthWindowHalfOpenUTC(t *testing.T) {
	now := time.Date(2024, 2, 10, 18, 30, 0, 0, time.UTC)
	start, end := MonthWindow(now)
	if !start.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("wrong start: %v", start)
	}
	if !end.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("wrong end: %v", end)
	}
}

func TestMonthWindowCrossesYear(t *testing.T) {
	now := time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC)
	start, end := MonthWindow(now)
	if start.Month() != time.December || end.Year() != 2024 || end.Month() != time.January {
		t.Fatalf("wrong window: %v .. %v", start, end)
	}
}

func TestMonthWindowUsesUTCCalendar(t *testing.T) {
	// 2024-03-01 03:00 in UTC+5 is still 2024-02-29 22:00 UTC
	loc := time.FixedZone("UTC+5", 5*3600)
	now := time.Date(2024, 3, 1, 3, 0, 0, 0, loc)
	start, _ := MonthWindow(now)
	if start.Month() != time.February {
		t.Fatalf("expected February window, got %v", start)
	}
}

func TestMonthLabel(t *testing.T) {
	if got := MonthLabel(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)); got != "2024-01" {
		t.Fatalf("expected 2024-01 got %s", got)
	}
	if got := MonthLabel(time.Date(2024, 11, 5, 0, 0, 0, 0, time.UTC)); got != "2024-11" {
		t.Fatalf("expected 2024-11 got %s", got)
	}
}

func TestRound2(t *testing.T) {
	if got := Round2(10.006); got != 10.01 {
		t.Fatalf("expected 10.01 got %v", got)
	}
	if got := Round2(29.999999); got != 30 {
		t.Fatalf("expected 30 got %v", got)
	}
}
