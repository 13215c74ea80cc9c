package aegisvault

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestSelfTestDefault(t *testing.T) {
	report, err := SelfTest(context.Background(), NewRegistry(Experimental{}))
	if err != nil {
		t.Fatal(err)
	}
	if !report.Passed() {
		t.Fatal("report should pass")
	}
	// AES, ChaCha20, Argon2id, SHA-512, SHA-256 and the random source
	if len(report.Results) != 6 {
		t.Errorf("ran %d checks, want 6", len(report.Results))
	}
	if report.BitRatio <= 0 || report.BitRatio >= 1 {
		t.Errorf("bit ratio = %f", report.BitRatio)
	}
}

func TestSelfTestAllExperimental(t *testing.T) {
	reg := NewRegistry(AllExperimental())
	report, err := SelfTest(context.Background(), reg)
	if err != nil {
		t.Fatal(err)
	}
	want := len(reg.Ciphers()) + len(reg.KDFs()) + len(reg.Hashes()) + 1
	if len(report.Results) != want {
		t.Errorf("ran %d checks, want %d", len(report.Results), want)
	}
	for _, r := range report.Results {
		if !r.Passed() {
			t.Errorf("%s: %v", r.Name, r.Err)
		}
	}
}

func TestSelfTestCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := SelfTest(ctx, NewRegistry(Experimental{}))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if report.Passed() {
		t.Error("cancelled checks should not pass")
	}
}

func TestRunChecksRecoversPanics(t *testing.T) {
	checks := []selfCheck{
		{name: "ok", run: func() (string, error) { return "", nil }},
		{name: "boom", run: func() (string, error) { panic("kaboom") }},
		{name: "warn", run: func() (string, error) { return "close call", nil }},
		{name: "fail", run: func() (string, error) { return "", errors.New("broken") }},
	}
	results := runChecks(context.Background(), checks)
	if len(results) != len(checks) {
		t.Fatalf("got %d results", len(results))
	}
	for i, r := range results {
		if r.Name != checks[i].name {
			t.Errorf("result %d is %s, want %s", i, r.Name, checks[i].name)
		}
	}
	if !results[0].Passed() {
		t.Error("ok check failed")
	}
	if results[1].Err == nil || !strings.Contains(results[1].Err.Error(), "kaboom") {
		t.Errorf("panic not recorded: %v", results[1].Err)
	}

	report := SelfTestReport{Results: results}
	if report.Passed() {
		t.Error("report with failures passed")
	}
	if w := report.Warnings(); len(w) != 1 || w[0] != "warn: close call" {
		t.Errorf("warnings = %v", w)
	}
	if len(runChecks(context.Background(), nil)) != 0 {
		t.Error("no checks should yield no results")
	}
}
