// Kometa-AI - AI-Powered Collection Management for Radarr
// Copyright 2026 tikibozo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tikibozo/kometa-ai

package schedule

import (
	"testing"
	"time"
)

func TestParseInterval(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "1h", want: time.Hour},
		{in: "12h", want: 12 * time.Hour},
		{in: "1d", want: 24 * time.Hour},
		{in: "1w", want: 7 * 24 * time.Hour},
		{in: "1mo", want: 30 * 24 * time.Hour},
		{in: "2w", want: 14 * 24 * time.Hour},
		{in: "", wantErr: true},
		{in: "1x", wantErr: true},
		{in: "h", wantErr: true},
		{in: "1.5h", wantErr: true},
		{in: "0h", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseInterval(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseInterval(%q) expected error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseInterval(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseInterval(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseStartTime(t *testing.T) {
	tests := []struct {
		in         string
		hour, min  int
		wantErr    bool
	}{
		{in: "03:00", hour: 3, min: 0},
		{in: "15:30", hour: 15, min: 30},
		{in: "0:05", hour: 0, min: 5},
		{in: "23:59", hour: 23, min: 59},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "noon", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			hour, minute, err := ParseStartTime(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseStartTime(%q) expected error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseStartTime(%q) error = %v", tt.in, err)
			}
			if hour != tt.hour || minute != tt.min {
				t.Errorf("ParseStartTime(%q) = %d:%d, want %d:%d", tt.in, hour, minute, tt.hour, tt.min)
			}
		})
	}
}

func mustPlan(t *testing.T, interval, start, tz string) *Plan {
	t.Helper()
	p, err := NewPlan(interval, start, tz)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestNextActivation(t *testing.T) {
	tests := []struct {
		name     string
		interval string
		start    string
		now      time.Time
		want     time.Time
	}{
		{
			name:     "daily before start time",
			interval: "1d",
			start:    "03:00",
			now:      time.Date(2026, 8, 24, 1, 0, 0, 0, time.UTC),
			want:     time.Date(2026, 8, 24, 3, 0, 0, 0, time.UTC),
		},
		{
			name:     "daily after start time",
			interval: "1d",
			start:    "03:00",
			now:      time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC),
			want:     time.Date(2026, 8, 25, 3, 0, 0, 0, time.UTC),
		},
		{
			name:     "daily exactly at start time moves to next day",
			interval: "1d",
			start:    "03:00",
			now:      time.Date(2026, 8, 24, 3, 0, 0, 0, time.UTC),
			want:     time.Date(2026, 8, 25, 3, 0, 0, 0, time.UTC),
		},
		{
			name:     "six hour grid anchored at start time",
			interval: "6h",
			start:    "03:00",
			now:      time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC),
			want:     time.Date(2026, 8, 24, 15, 0, 0, 0, time.UTC),
		},
		{
			name:     "hourly",
			interval: "1h",
			start:    "03:30",
			now:      time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC),
			want:     time.Date(2026, 8, 24, 10, 30, 0, 0, time.UTC),
		},
		{
			name:     "weekly lands on the anchored weekday",
			interval: "1w",
			start:    "03:00",
			// 2020-01-01 is a Wednesday; 2026-08-24 is a Monday.
			now:  time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC),
			want: time.Date(2026, 8, 26, 3, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := mustPlan(t, tt.interval, tt.start, "UTC")
			got := p.Next(tt.now)
			if !got.Equal(tt.want) {
				t.Errorf("Next(%v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

func TestNextActivationGridIsStable(t *testing.T) {
	p := mustPlan(t, "1w", "03:00", "UTC")

	// Asking from different days within the same cycle yields the same
	// activation.
	a := p.Next(time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC))
	b := p.Next(time.Date(2026, 8, 22, 18, 0, 0, 0, time.UTC))
	if !a.Equal(b) {
		t.Errorf("grid drifted: %v vs %v", a, b)
	}
}

func TestNextActivationTimezone(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	p := mustPlan(t, "1d", "03:00", "America/New_York")

	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC) // 08:00 in New York
	got := p.Next(now).In(loc)
	if got.Hour() != 3 || got.Minute() != 0 {
		t.Errorf("activation clock time = %02d:%02d, want 03:00 local", got.Hour(), got.Minute())
	}
	if got.Day() != 25 {
		t.Errorf("activation day = %d, want 25", got.Day())
	}
}

func TestNewPlanRejectsBadSpecs(t *testing.T) {
	if _, err := NewPlan("1x", "03:00", ""); err == nil {
		t.Error("bad interval accepted")
	}
	if _, err := NewPlan("1d", "26:00", ""); err == nil {
		t.Error("bad start time accepted")
	}
	if _, err := NewPlan("1d", "03:00", "Mars/Olympus"); err == nil {
		t.Error("bad timezone accepted")
	}
}
