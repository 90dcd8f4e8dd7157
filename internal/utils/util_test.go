package utils

import (
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"90", 90 * time.Second, false},
		{"1:30", 90 * time.Second, false},
		{"1:02:03", time.Hour + 2*time.Minute + 3*time.Second, false},
		{"2m5s", 125 * time.Second, false},
		{"1h", time.Hour, false},
		{"", 0, true},
		{"a:b", 0, true},
		{"1:2:3:4", 0, true},
		{"-5", 0, true},
		{"soon", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseClock(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseClock(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestPrettyTime(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0:00"},
		{65 * time.Second, "1:05"},
		{time.Hour + 5*time.Second, "1:00:05"},
		{-time.Second, "0:00"},
	}
	for _, tt := range tests {
		if got := PrettyTime(tt.in); got != tt.want {
			t.Errorf("PrettyTime(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 45); got != "short" {
		t.Errorf("Truncate short = %q", got)
	}
	got := Truncate("ééééééééééé", 5)
	if got != "éééé…" {
		t.Errorf("Truncate runes = %q", got)
	}
}

func TestShuffleSliceKeepsElements(t *testing.T) {
	in := []int{1, 2, 3, 4, 5, 6, 7, 8}
	ShuffleSlice(in)
	seen := map[int]bool{}
	for _, v := range in {
		seen[v] = true
	}
	if len(seen) != 8 {
		t.Errorf("shuffle lost elements: %v", in)
	}
}
