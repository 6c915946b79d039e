package main

import (
	"testing"
	"time"
)

func TestNextBusinessDaySkipsWeekend(t *testing.T) {
	friday := time.Date(2025, 3, 7, 12, 0, 0, 0, time.UTC)
	next := nextBusinessDay(friday)
	if next.Weekday() != time.Monday {
		t.Fatalf("expected Monday, got %s", next.Weekday())
	}

	tuesday := time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)
	next = nextBusinessDay(tuesday)
	if next.Weekday() != time.Wednesday {
		t.Fatalf("expected Wednesday, got %s", next.Weekday())
	}
}

func TestDialerForNilClient(t *testing.T) {
	if dialer := dialerFor(nil); dialer != nil {
		t.Fatalf("expected nil dialer for nil client")
	}
}
