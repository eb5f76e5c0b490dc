package util

import (
	"testing"
	"time"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("SEHACOACH_TEST_STR", "  value ")
	if got := GetEnv("SEHACOACH_TEST_STR", "x"); got != "value" {
		t.Errorf("GetEnv() = %q, want %q", got, "value")
	}
	t.Setenv("SEHACOACH_TEST_STR", "   ")
	if got := GetEnv("SEHACOACH_TEST_STR", "x"); got != "x" {
		t.Errorf("GetEnv() blank = %q, want default", got)
	}
}

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		value string
		def   bool
		want  bool
	}{
		{"", true, true},
		{"true", false, true},
		{"YES", false, true},
		{" on ", false, true},
		{"1", false, true},
		{"0", true, false},
		{"off", true, false},
		{"No", true, false},
		{"maybe", true, true},
		{"maybe", false, false},
	}
	for _, tt := range tests {
		t.Setenv("SEHACOACH_TEST_BOOL", tt.value)
		if got := ParseBoolEnv("SEHACOACH_TEST_BOOL", tt.def); got != tt.want {
			t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tt.value, tt.def, got, tt.want)
		}
	}
}

func TestParseDurationEnv(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", 8 * time.Second},
		{"3s", 3 * time.Second},
		{"1m30s", 90 * time.Second},
		{"8", 8 * time.Second},
		{"-2s", 8 * time.Second},
		{"0s", 8 * time.Second},
	}
	for _, tt := range tests {
		t.Setenv("SEHACOACH_TEST_DURATION", tt.value)
		if got := ParseDurationEnv("SEHACOACH_TEST_DURATION", 8*time.Second); got != tt.want {
			t.Errorf("ParseDurationEnv(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestParseInt64Env(t *testing.T) {
	t.Setenv("SEHACOACH_TEST_INT", "42")
	if got := ParseInt64Env("SEHACOACH_TEST_INT", 7); got != 42 {
		t.Errorf("ParseInt64Env() = %d, want 42", got)
	}
	t.Setenv("SEHACOACH_TEST_INT", "-5")
	if got := ParseInt64Env("SEHACOACH_TEST_INT", 7); got != -5 {
		t.Errorf("ParseInt64Env() = %d, want -5", got)
	}
	t.Setenv("SEHACOACH_TEST_INT", "abc")
	if got := ParseInt64Env("SEHACOACH_TEST_INT", 7); got != 7 {
		t.Errorf("ParseInt64Env() invalid = %d, want default 7", got)
	}
}
