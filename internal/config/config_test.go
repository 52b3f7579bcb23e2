package config

import "testing"

func TestLoadDefaultsToInfo(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
}

func TestLoadOverrideWinsOverDefault(t *testing.T) {
	cfg, err := Load("debug")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
}

func TestEnvKeyMapper(t *testing.T) {
	cases := map[string]string{
		"PHYSYNC_LOG_LEVEL": "log_level",
		"LOG_LEVEL":         "log_level",
	}
	for in, want := range cases {
		if got := envKeyMapper(in); got != want {
			t.Errorf("envKeyMapper(%q) = %q, want %q", in, got, want)
		}
	}
}
