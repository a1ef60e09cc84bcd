package config

import "testing"

func TestLoadDefaultsToInfo(t *testing.T) {
	t.Setenv("USMTOOL_LOG_LEVEL", "")
	c := Load()
	if c.LogLevel != "info" {
		t.Fatalf("LogLevel = %q, want info", c.LogLevel)
	}
	if c.Debug() {
		t.Fatalf("Debug() = true, want false")
	}
}

func TestLoadReadsDebugLevel(t *testing.T) {
	t.Setenv("USMTOOL_LOG_LEVEL", "debug")
	c := Load()
	if !c.Debug() {
		t.Fatalf("Debug() = false, want true")
	}
}
