package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestEnvOverrides(t *testing.T) {
	env := map[string]string{
		EnvLogLevel:     "warn",
		EnvLogTimestamp: "false",
		EnvLogJSON:      "1",
	}
	cfg := defaultConfig(ProfileRuntime)
	applyEnvOverrides(&cfg, func(k string) string { return env[k] })
	if cfg.Level != zerolog.WarnLevel || cfg.Timestamp || !cfg.JSON {
		t.Fatalf("cfg=%+v", cfg)
	}
}

func TestBadOverridesIgnored(t *testing.T) {
	cfg := defaultConfig(ProfileTest)
	applyEnvOverrides(&cfg, func(k string) string { return "nonsense" })
	if cfg.Level != zerolog.DebugLevel || cfg.Timestamp {
		t.Fatalf("cfg=%+v", cfg)
	}
}

func TestComponentField(t *testing.T) {
	var buf bytes.Buffer
	l := Component(build(Config{Level: zerolog.InfoLevel, JSON: true}, &buf), "world")
	l.Info().Msg("hello")
	l.Debug().Msg("hidden")
	out := buf.String()
	if !strings.Contains(out, `"component":"world"`) || strings.Contains(out, "hidden") {
		t.Fatalf("out=%s", out)
	}
}
