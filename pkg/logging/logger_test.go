package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/config"
)

func TestInit(t *testing.T) {
	tempDir := t.TempDir()
	serverLog := filepath.Join(tempDir, "server.log")
	requestLog := filepath.Join(tempDir, "requests.log")
	eventLog := filepath.Join(tempDir, "narration.log")

	// A previous run's file gets rotated
	if err := os.WriteFile(serverLog, []byte("previous run\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := &config.LogConfig{
		Server:   config.LogSettings{Path: serverLog, Level: "DEBUG"},
		Requests: config.LogSettings{Path: requestLog, Level: "INFO"},
		Events:   config.LogSettings{Path: eventLog},
	}

	oldDefault := slog.Default()
	defer slog.SetDefault(oldDefault)
	defer SetEventLogPath("")

	cleanup, err := Init(cfg)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer cleanup()

	if _, err := os.Stat(serverLog); os.IsNotExist(err) {
		t.Error("Server log file not created")
	}
	if _, err := os.Stat(requestLog); os.IsNotExist(err) {
		t.Error("Request log file not created")
	}
	old, err := os.ReadFile(serverLog + ".old")
	if err != nil || string(old) != "previous run\n" {
		t.Errorf("expected rotated .old file, got %q (%v)", old, err)
	}
	if RequestLogger == nil {
		t.Error("RequestLogger was not initialized")
	}

	slog.Info("geofence resolved", "poi", 7)
	if got := ServerCapture.Last(); !strings.Contains(got, "geofence resolved") {
		t.Errorf("capture missed the last line, got %q", got)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"trace", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"Warn", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLogEvent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events", "narration.log")
	SetEventLogPath(path)
	defer SetEventLogPath("")

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.Local)
	LogEvent(ts, "PLAYING", "Pho Thin", "audio=7")
	LogEvent(ts, "COMPLETED", "Pho Thin", "")

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), content)
	}
	if lines[0] != "[2026-03-01 12:00:00] [PLAYING] Pho Thin - audio=7" {
		t.Errorf("unexpected line %q", lines[0])
	}
	if got := EventCapture.Last(); got != "[2026-03-01 12:00:00] [COMPLETED] Pho Thin" {
		t.Errorf("unexpected capture %q", got)
	}
}

func TestTrace(t *testing.T) {
	var buf strings.Builder
	oldDefault := slog.Default()
	defer slog.SetDefault(oldDefault)
	defer SetTrace(false)
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	Trace("Position: fix", "lat", 10.77)
	if buf.Len() != 0 {
		t.Errorf("trace logged while disabled: %q", buf.String())
	}

	SetTrace(true)
	Trace("Position: fix", "lat", 10.77)
	if !strings.Contains(buf.String(), "Position: fix") {
		t.Errorf("trace line missing, got %q", buf.String())
	}
}
