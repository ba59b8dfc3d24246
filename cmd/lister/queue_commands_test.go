package main

import (
	"testing"
)

func TestQueueAddAndCheck(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"queue", "add", "--platform", "base", "--yes", "B0TESTASIN"}, env.configPath)
	if err != nil {
		t.Fatalf("queue add: %v", err)
	}
	requireContains(t, out, "Enqueued B0TESTASIN")

	out, _, err = runCLI(t, []string{"queue", "check", "--platform", "base"}, env.configPath)
	if err != nil {
		t.Fatalf("queue check: %v", err)
	}
	requireContains(t, out, "pending")
	requireContains(t, out, "B0TESTASIN")
}

func TestQueueAddSkipsDuplicate(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, []string{"queue", "add", "--platform", "base", "--yes", "B0DUPASIN1"}, env.configPath); err != nil {
		t.Fatalf("first add: %v", err)
	}
	out, _, err := runCLI(t, []string{"queue", "add", "--platform", "base", "--yes", "B0DUPASIN1"}, env.configPath)
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	requireContains(t, out, "Skipped B0DUPASIN1")
}

func TestQueueAddBatchReportsSummary(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{
		"queue", "add", "--platform", "base", "--yes", "--distribute",
		"--start", "2027-01-02 08:00",
		"B0BATCH001", "B0BATCH002", "B0BATCH003",
	}, env.configPath)
	if err != nil {
		t.Fatalf("batch add: %v", err)
	}
	requireContains(t, out, "3 requested, 3 enqueued")
	requireContains(t, out, "Scheduled window")
}

func TestQueueRetryWithNothingFailed(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"queue", "retry", "--platform", "base"}, env.configPath)
	if err != nil {
		t.Fatalf("queue retry: %v", err)
	}
	requireContains(t, out, "Requeued 0 failed item(s)")
}

func TestQueueAddRejectsEmptyInput(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, []string{"queue", "add", "--platform", "base"}, env.configPath); err == nil {
		t.Fatal("expected error when no ASINs are given")
	}
}
