package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestGetEnvDefaults(t *testing.T) {
	t.Setenv("ALMANAC_TEST_STR", "")
	if got := GetEnv("ALMANAC_TEST_STR", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
	t.Setenv("ALMANAC_TEST_STR", "set")
	if got := GetEnv("ALMANAC_TEST_STR", "fallback"); got != "set" {
		t.Fatalf("expected set, got %q", got)
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("ALMANAC_TEST_INT", "42")
	if got := GetEnvInt("ALMANAC_TEST_INT", 7); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
	t.Setenv("ALMANAC_TEST_INT", "not-a-number")
	if got := GetEnvInt("ALMANAC_TEST_INT", 7); got != 7 {
		t.Fatalf("expected default on parse failure, got %d", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("ALMANAC_TEST_BOOL", "true")
	if !GetEnvBool("ALMANAC_TEST_BOOL", false) {
		t.Fatal("expected true")
	}
	t.Setenv("ALMANAC_TEST_BOOL", "junk")
	if GetEnvBool("ALMANAC_TEST_BOOL", false) {
		t.Fatal("expected default on parse failure")
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("ALMANAC_TEST_DUR", "90s")
	if got := GetEnvDuration("ALMANAC_TEST_DUR", time.Minute); got != 90*time.Second {
		t.Fatalf("expected 90s, got %s", got)
	}
	t.Setenv("ALMANAC_TEST_DUR", "")
	if got := GetEnvDuration("ALMANAC_TEST_DUR", time.Minute); got != time.Minute {
		t.Fatalf("expected default, got %s", got)
	}
}

func TestGetLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	if got := GetLogLevel(); got != logrus.DebugLevel {
		t.Fatalf("expected debug level, got %s", got)
	}
	t.Setenv("LOG_LEVEL", "")
	if got := GetLogLevel(); got != logrus.InfoLevel {
		t.Fatalf("expected info default, got %s", got)
	}
}
