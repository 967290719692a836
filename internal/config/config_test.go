package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/MrSnakeDoc/npdstracker/internal/domain"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	// Run from an empty directory so no npdstracker.ini is picked up.
	t.Chdir(t.TempDir())

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !reflect.DeepEqual(cfg.Ports, []int{3680}) {
		t.Errorf("Ports = %v, want [3680]", cfg.Ports)
	}
	if cfg.ValidateTime != 20 || cfg.ValidateTries != 3 {
		t.Errorf("ValidateTime/Tries = %d/%d, want 20/3", cfg.ValidateTime, cfg.ValidateTries)
	}
	if !cfg.ShareEnabled {
		t.Error("ShareEnabled should default to true")
	}
	if cfg.AdminPass != "qwerty" {
		t.Errorf("AdminPass = %q, want qwerty", cfg.AdminPass)
	}
	if cfg.CmdFile != DefaultCmdFile {
		t.Errorf("CmdFile = %q, want %q", cfg.CmdFile, DefaultCmdFile)
	}
	if cfg.OptionsFile != "" {
		t.Errorf("OptionsFile = %q, want none", cfg.OptionsFile)
	}
}

const iniOptions = `# tracker options
kPort = 3680 3681
adminPass = secret
validateTime = 5
validateTries = 2
shareEnabled = false
shareServer = tracker.example.org 3680
shareServer = other.example.org 4000
logVerbose = false
trackerName = Test Tracker
privateHostToAccept = newton.lan
pageTemplate = template.html
`

const yamlOptions = `kPort: "3680 3681"
adminPass: secret
validateTime: "5"
validateTries: "2"
shareEnabled: "false"
shareServer:
  - tracker.example.org 3680
  - other.example.org 4000
logVerbose: "false"
trackerName: Test Tracker
privateHostToAccept: newton.lan
`

func TestLoadOptionsFile(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{name: "ini", file: "npdstracker.ini", content: iniOptions},
		{name: "yaml", file: "npdstracker.yaml", content: yamlOptions},
	}

	wantPeers := []domain.PeerTracker{
		{Host: "tracker.example.org", Port: "3680"},
		{Host: "other.example.org", Port: "4000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, tt.content)

			cfg, err := Load([]string{"-o", path})
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}

			if !reflect.DeepEqual(cfg.Ports, []int{3680, 3681}) {
				t.Errorf("Ports = %v", cfg.Ports)
			}
			if cfg.AdminPass != "secret" {
				t.Errorf("AdminPass = %q", cfg.AdminPass)
			}
			if cfg.ValidateTime != 5 || cfg.ValidateTries != 2 {
				t.Errorf("ValidateTime/Tries = %d/%d", cfg.ValidateTime, cfg.ValidateTries)
			}
			if cfg.ShareEnabled {
				t.Error("shareEnabled = false was not applied")
			}
			if !reflect.DeepEqual(cfg.ShareServers, wantPeers) {
				t.Errorf("ShareServers = %+v", cfg.ShareServers)
			}
			if cfg.LogVerbose {
				t.Error("logVerbose = false was not applied")
			}
			if cfg.TrackerName != "Test Tracker" {
				t.Errorf("TrackerName = %q", cfg.TrackerName)
			}
			if cfg.PrivateHostToAccept != "newton.lan" {
				t.Errorf("PrivateHostToAccept = %q", cfg.PrivateHostToAccept)
			}
			if cfg.OptionsFile != path {
				t.Errorf("OptionsFile = %q, want %q", cfg.OptionsFile, path)
			}
		})
	}
}

func TestLoadCmdFileFlagOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("NPDS_CMD_FILE", "/from/env.txt")

	cfg, err := Load([]string{"-c", "/from/flag.txt"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CmdFile != "/from/flag.txt" {
		t.Errorf("CmdFile = %q, want flag value", cfg.CmdFile)
	}
}

func TestLoadErrors(t *testing.T) {
	t.Chdir(t.TempDir())

	if _, err := Load([]string{"-h"}); !errors.Is(err, ErrHelp) {
		t.Errorf("Load(-h) error = %v, want ErrHelp", err)
	}
	if _, err := Load([]string{"stray"}); err == nil {
		t.Error("Load(stray) should fail")
	}
	if _, err := Load([]string{"-o", "/does/not/exist.ini"}); err == nil {
		t.Error("Load(-o missing) should fail")
	}

	bad := writeFile(t, "bad.ini", "validateTime = 0\n")
	if _, err := Load([]string{"-o", bad}); err == nil {
		t.Error("validateTime = 0 should fail validation")
	}

	badPort := writeFile(t, "port.ini", "kPort = 70000\n")
	if _, err := Load([]string{"-o", badPort}); err == nil {
		t.Error("kPort = 70000 should fail validation")
	}
}

func TestEffectiveLogLevel(t *testing.T) {
	tests := []struct {
		level   string
		verbose bool
		want    string
	}{
		{level: "debug", verbose: true, want: "debug"},
		{level: "info", verbose: false, want: "warn"},
		{level: "error", verbose: false, want: "error"},
	}

	for _, tt := range tests {
		cfg := &Config{LogLevel: tt.level, LogVerbose: tt.verbose}
		if got := cfg.EffectiveLogLevel(); got != tt.want {
			t.Errorf("EffectiveLogLevel(%s, %v) = %s, want %s", tt.level, tt.verbose, got, tt.want)
		}
	}
}

func TestParsePorts(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		expected []int
	}{
		{name: "single", in: "3680", expected: []int{3680}},
		{name: "spaces", in: "3680 3681", expected: []int{3680, 3681}},
		{name: "commas", in: "3680, 3681", expected: []int{3680, 3681}},
		{name: "invalid dropped", in: "3680 abc", expected: []int{3680}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parsePorts(tt.in); !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("parsePorts(%q) = %v, want %v", tt.in, got, tt.expected)
			}
		})
	}
}

func TestGetenvInt(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_INT_INVALID", "not_a_number")

	if got := getenvInt("TEST_INT", 1); got != 42 {
		t.Errorf("getenvInt() = %d, want 42", got)
	}
	if got := getenvInt("TEST_INT_INVALID", 7); got != 7 {
		t.Errorf("getenvInt(invalid) = %d, want default 7", got)
	}
	if got := getenvInt("TEST_INT_MISSING", 9); got != 9 {
		t.Errorf("getenvInt(missing) = %d, want default 9", got)
	}
}

func TestSplitAndTrim(t *testing.T) {
	got := splitAndTrim(` 1.2.3.4 , "10.0.0.0/8",, '5.6.7.8'`)
	want := []string{"1.2.3.4", "10.0.0.0/8", "5.6.7.8"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("splitAndTrim() = %v, want %v", got, want)
	}
}

func TestMustDuration(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    string
		def      time.Duration
		expected time.Duration
	}{
		{
			name:     "valid duration",
			key:      "TEST_DURATION",
			value:    "5s",
			def:      1 * time.Second,
			expected: 5 * time.Second,
		},
		{
			name:     "invalid duration uses default",
			key:      "TEST_DURATION_INVALID",
			value:    "invalid",
			def:      10 * time.Second,
			expected: 10 * time.Second,
		},
		{
			name:     "missing variable uses default",
			key:      "TEST_DURATION_MISSING",
			value:    "",
			def:      15 * time.Second,
			expected: 15 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				t.Setenv(tt.key, tt.value)
			}

			result := mustDuration(tt.key, tt.def)
			if result != tt.expected {
				t.Errorf("mustDuration() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestMustBool(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    string
		def      bool
		expected bool
	}{
		{
			name:     "true value",
			key:      "TEST_BOOL",
			value:    "true",
			def:      false,
			expected: true,
		},
		{
			name:     "false value",
			key:      "TEST_BOOL_FALSE",
			value:    "false",
			def:      true,
			expected: false,
		},
		{
			name:     "invalid value uses default",
			key:      "TEST_BOOL_INVALID",
			value:    "invalid",
			def:      true,
			expected: true,
		},
		{
			name:     "missing variable uses default",
			key:      "TEST_BOOL_MISSING",
			value:    "",
			def:      false,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				t.Setenv(tt.key, tt.value)
			}

			result := mustBool(tt.key, tt.def)
			if result != tt.expected {
				t.Errorf("mustBool() = %v, want %v", result, tt.expected)
			}
		})
	}
}
