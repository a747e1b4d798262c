package util

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGetVersion(t *testing.T) {
	version := GetVersion()

	if version == "" {
		t.Error("GetVersion returned empty string")
	}

	if strings.Contains(version, "\n") {
		t.Error("Version should not contain newlines")
	}
}

func TestGetNameAndVersion(t *testing.T) {
	nameVersion := GetNameAndVersion()

	if !strings.Contains(nameVersion, Name) {
		t.Errorf("Expected name '%s' in '%s'", Name, nameVersion)
	}

	if !strings.Contains(nameVersion, GetVersion()) {
		t.Errorf("Expected version in '%s'", nameVersion)
	}
}

func TestUserAgent(t *testing.T) {
	ua := UserAgent()

	if !strings.HasPrefix(ua, "glyptodon/") {
		t.Errorf("Expected glyptodon user agent, got '%s'", ua)
	}
	if !strings.HasSuffix(ua, "ActivityPub") {
		t.Errorf("Expected ActivityPub suffix, got '%s'", ua)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		max      int
		expected string
	}{
		{"short stays", "hello", 10, "hello"},
		{"exact stays", "hello", 5, "hello"},
		{"long is cut", "hello world", 8, "hello w…"},
		{"unicode safe", "héllo wörld", 8, "héllo w…"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.input, tt.max); got != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, got)
			}
		})
	}
}

func TestPrettyPrint(t *testing.T) {
	type sample struct {
		Name  string
		Count int
	}

	result := PrettyPrint(sample{Name: "test", Count: 3})

	if !strings.Contains(result, "test") {
		t.Errorf("Expected 'test' in output, got: %s", result)
	}
	if !strings.Contains(result, "3") {
		t.Errorf("Expected '3' in output, got: %s", result)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	if err := WriteFileAtomic(path, []byte("first"), 0600); err != nil {
		t.Fatalf("WriteFileAtomic failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read written file: %v", err)
	}
	if string(data) != "first" {
		t.Errorf("Expected 'first', got '%s'", data)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Failed to stat written file: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected mode 0600, got %v", info.Mode().Perm())
	}

	// Overwrite keeps the file whole
	if err := WriteFileAtomic(path, []byte("second"), 0600); err != nil {
		t.Fatalf("WriteFileAtomic overwrite failed: %v", err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != "second" {
		t.Errorf("Expected 'second', got '%s'", data)
	}

	// No temp files left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("Failed to read dir: %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Errorf("Leftover temp file: %s", e.Name())
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	if ParseLogLevel("debug").String() != "debug" {
		t.Error("Expected debug level")
	}
	if ParseLogLevel("nonsense").String() != "info" {
		t.Error("Expected fallback to info level")
	}
	if ParseLogLevel("").String() != "info" {
		t.Error("Expected fallback to info for empty string")
	}
}
