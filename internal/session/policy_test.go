package session

import "testing"

func TestShouldScrobble(t *testing.T) {
	tests := []struct {
		name        string
		positionSec float64
		durationSec float64
		want        bool
	}{
		{"below percent boundary", 99, 200, false},
		{"at percent boundary", 100, 200, true},
		{"past percent boundary", 150, 200, true},
		{"absolute threshold despite low percent", 240, 1000, true},
		{"below both thresholds", 239, 1000, false},
		{"unknown duration below absolute", 120, 0, false},
		{"unknown duration at absolute", 240, 0, true},
		{"nothing played", 0, 200, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ShouldScrobble(tt.positionSec, tt.durationSec, DefaultScrobblePercent, DefaultScrobbleSeconds)
			if got != tt.want {
				t.Errorf("ShouldScrobble(%v, %v) = %v, want %v", tt.positionSec, tt.durationSec, got, tt.want)
			}
		})
	}
}

func TestShouldScrobbleCustomThresholds(t *testing.T) {
	if !ShouldScrobble(10, 100, 10, 240) {
		t.Error("10%% of a 100s track should scrobble at a 10%% threshold")
	}
	if ShouldScrobble(10, 100, 11, 240) {
		t.Error("10%% of a 100s track should not scrobble at an 11%% threshold")
	}
}
