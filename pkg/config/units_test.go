package config

import (
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"", 0, false},
		{"5m", 5 * time.Minute, false},
		{"1.5h", 90 * time.Minute, false},
		{"250ms", 250 * time.Millisecond, false},
		{"90d", 90 * Day, false},
		{"1w", 168 * time.Hour, false},
		{"1w2d", 9 * Day, false},
		{"2d12h", 60 * time.Hour, false},
		{"0.5d", 12 * time.Hour, false},
		{"d", 0, true},
		{"3x", 0, true},
		{"2dx", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseDuration(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDuration(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.expected {
			t.Errorf("ParseDuration(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestParseDistance(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
		wantErr  bool
	}{
		{"50", 50, false},
		{"50m", 50, false},
		{"0.2km", 200, false},
		{" 75 m", 75, false},
		{"-5m", 0, true},
		{"1nm", 0, true},
		{"far", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseDistance(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDistance(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.expected {
			t.Errorf("ParseDistance(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestUnitsYAML(t *testing.T) {
	type geofence struct {
		Cooldown  Duration `yaml:"cooldown"`
		Retention Duration `yaml:"retention"`
		Radius    Distance `yaml:"radius"`
		Wide      Distance `yaml:"wide"`
	}

	var g geofence
	if err := yaml.Unmarshal([]byte("cooldown: 5m\nretention: 90d\nradius: 60\nwide: 0.2km\n"), &g); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if time.Duration(g.Cooldown) != 5*time.Minute || time.Duration(g.Retention) != 90*Day {
		t.Errorf("durations = %v, %v", g.Cooldown, g.Retention)
	}
	if g.Radius != 60 || g.Wide != 200 {
		t.Errorf("distances = %v, %v", g.Radius, g.Wide)
	}

	out, err := yaml.Marshal(g)
	if err != nil {
		t.Fatal(err)
	}
	var back geofence
	if err := yaml.Unmarshal(out, &back); err != nil {
		t.Fatalf("re-read of %q failed: %v", out, err)
	}
	if back != g {
		t.Errorf("round trip = %+v, want %+v", back, g)
	}

	if err := yaml.Unmarshal([]byte("radius: -3\n"), &g); err == nil {
		t.Error("negative radius accepted")
	}
}
