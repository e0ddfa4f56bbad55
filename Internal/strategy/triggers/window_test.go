package triggers

import (
	"testing"
	"time"
)

func TestParseWindow(t *testing.T) {
	tests := []struct {
		name    string
		start   string
		end     string
		zone    string
		wantErr bool
	}{
		{name: "valid", start: "15:45", end: "16:00", zone: "America/New_York"},
		{name: "empty zone is utc", start: "09:30", end: "09:35"},
		{name: "bad clock", start: "25:00", end: "16:00", wantErr: true},
		{name: "bad zone", start: "15:45", end: "16:00", zone: "Mars/Olympus", wantErr: true},
		{name: "end before start", start: "16:00", end: "15:45", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseWindow(tt.start, tt.end, tt.zone)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseWindow() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWindowContains(t *testing.T) {
	w, err := ParseWindow("15:45", "16:00", "UTC")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{name: "start is inclusive", at: time.Date(2026, 1, 5, 15, 45, 0, 0, time.UTC), want: true},
		{name: "inside", at: time.Date(2026, 1, 5, 15, 59, 59, 0, time.UTC), want: true},
		{name: "end is exclusive", at: time.Date(2026, 1, 5, 16, 0, 0, 0, time.UTC), want: false},
		{name: "before", at: time.Date(2026, 1, 5, 15, 44, 59, 0, time.UTC), want: false},
		{name: "converted from another zone", at: time.Date(2026, 1, 5, 16, 50, 0, 0, time.FixedZone("CET", 3600)), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := w.Contains(tt.at); got != tt.want {
				t.Errorf("Contains(%v) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}

	if (Window{}).Contains(time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("zero window must never match")
	}
}
