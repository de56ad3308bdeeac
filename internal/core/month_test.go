package core

import (
	"testing"
	"time"
)

func TestParseMonth(t *testing.T) {
	m, err := ParseMonth("2025-03")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Year != 2025 || m.Month != time.March {
		t.Fatalf("got %+v", m)
	}
	for _, bad := range []string{"", "2025-13", "2025/03", "March 2025"} {
		if _, err := ParseMonth(bad); err != ErrInvalidMonth {
			t.Fatalf("%q expected ErrInvalidMonth, got %v", bad, err)
		}
	}
}

func TestMonthArithmetic(t *testing.T) {
	tests := []struct {
		name string
		got  Month
		want string
	}{
		{"next across year", NewMonth(2024, time.December).Next(), "2025-01"},
		{"prev across year", NewMonth(2025, time.January).Prev(), "2024-12"},
		{"add six", NewMonth(2025, time.August).AddMonths(6), "2026-02"},
		{"subtract six", NewMonth(2025, time.March).AddMonths(-6), "2024-09"},
		{"normalise", NewMonth(2025, 14), "2026-02"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got.String() != tt.want {
				t.Fatalf("got %s, want %s", tt.got, tt.want)
			}
		})
	}
}

func TestMonthBounds(t *testing.T) {
	m := NewMonth(2024, time.February)
	if m.Start().String() != "2024-02-01" {
		t.Fatalf("Start() = %s", m.Start())
	}
	if m.End().String() != "2024-02-29" {
		t.Fatalf("End() = %s", m.End())
	}
	if !m.Before(m.Next()) || !m.Next().After(m) {
		t.Fatal("ordering broken")
	}
}

func TestMonthText(t *testing.T) {
	var m Month
	if err := m.UnmarshalText([]byte("2025-11")); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	b, _ := m.MarshalText()
	if string(b) != "2025-11" {
		t.Fatalf("MarshalText() = %s", b)
	}
}
