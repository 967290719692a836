package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "debug", want: "debug"},
		{in: "info", want: "info"},
		{in: "warn", want: "warn"},
		{in: "error", want: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			lvl := parseLevel(tt.in)
			if lvl == nil || lvl.String() != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %s", tt.in, lvl, tt.want)
			}
		})
	}

	if parseLevel("verbose") != nil {
		t.Error("parseLevel(unknown) should return nil")
	}
}

func TestNewWithFileWritesEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "npdstracker.log")

	log, closer, err := NewWithFile("info", false, path)
	if err != nil {
		t.Fatalf("NewWithFile() error = %v", err)
	}
	log.Info("tracker started", String("port", "3680"))
	log.Debug("hidden at info level")
	_ = log.Sync()
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "tracker started") {
		t.Errorf("log file missing info entry: %q", content)
	}
	if strings.Contains(content, "hidden at info level") {
		t.Errorf("log file contains debug entry at info level: %q", content)
	}
}

func TestNewWithFileEmptyPath(t *testing.T) {
	log, closer, err := NewWithFile("info", false, "")
	if err != nil {
		t.Fatalf("NewWithFile(\"\") error = %v", err)
	}
	if log == nil {
		t.Fatal("NewWithFile(\"\") returned nil logger")
	}
	if err := closer.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Info("discarded", Int("n", 1), Bool("ok", true))
	l.Errorf("discarded %d", 2)
}
