package main

import (
	"testing"
	"time"
)

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "  ", "value", "later"); got != "value" {
		t.Fatalf("expected value, got %q", got)
	}
	if got := firstNonEmpty("", "   "); got != "" {
		t.Fatalf("expected empty result, got %q", got)
	}
}

func TestSplitAndTrim(t *testing.T) {
	got := splitAndTrim(" https://a.example , ,https://b.example ")
	if len(got) != 2 || got[0] != "https://a.example" || got[1] != "https://b.example" {
		t.Fatalf("unexpected result: %v", got)
	}
	if got := splitAndTrim("  ,  "); got != nil {
		t.Fatalf("expected nil for blank input, got %v", got)
	}
}

func TestResolveDurationPrefersFlagThenEnv(t *testing.T) {
	if got := resolveDuration(time.Minute, "CLIPSTASH_TEST_DURATION", time.Hour); got != time.Minute {
		t.Fatalf("expected flag value, got %s", got)
	}

	t.Setenv("CLIPSTASH_TEST_DURATION", "30s")
	if got := resolveDuration(0, "CLIPSTASH_TEST_DURATION", time.Hour); got != 30*time.Second {
		t.Fatalf("expected env value, got %s", got)
	}

	t.Setenv("CLIPSTASH_TEST_DURATION", "garbage")
	if got := resolveDuration(0, "CLIPSTASH_TEST_DURATION", time.Hour); got != time.Hour {
		t.Fatalf("expected fallback, got %s", got)
	}
}

func TestResolveIntAndFloat(t *testing.T) {
	t.Setenv("CLIPSTASH_TEST_INT", "42")
	if got := resolveInt(0, "CLIPSTASH_TEST_INT"); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
	if got := resolveInt(7, "CLIPSTASH_TEST_INT"); got != 7 {
		t.Fatalf("expected flag to win, got %d", got)
	}

	t.Setenv("CLIPSTASH_TEST_FLOAT", "2.5")
	if got := resolveFloat(0, "CLIPSTASH_TEST_FLOAT"); got != 2.5 {
		t.Fatalf("expected 2.5, got %f", got)
	}

	t.Setenv("CLIPSTASH_TEST_INT64", "1048576")
	if got := resolveInt64(0, "CLIPSTASH_TEST_INT64"); got != 1048576 {
		t.Fatalf("expected 1048576, got %d", got)
	}
}
