package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kirillkom/servicing-triage/internal/core/domain"
)

func setupEnv(t *testing.T) (inputDir, outputDir string) {
	t.Helper()
	dir := t.TempDir()
	inputDir = filepath.Join(dir, "inputs")
	outputDir = filepath.Join(dir, "outputs")
	if err := os.MkdirAll(inputDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	t.Setenv("MODEL_PROVIDER", "none")
	t.Setenv("OUTPUT_BACKEND", "localfs")
	t.Setenv("DEDUP_BACKEND", "jsonfile")
	t.Setenv("DEDUP_PATH", filepath.Join(outputDir, "dedup_cache.json"))
	t.Setenv("DEDUP_RESET_ON_START", "false")
	t.Setenv("DELIVERY_ENABLED", "false")
	t.Setenv("ENABLE_WEBHOOK", "")
	t.Setenv("RULES_FILE", "")
	return inputDir, outputDir
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("execute %v: %v\nstderr:\n%s", args, err, errOut.String())
	}
	return out.String()
}

func TestRunPrintsReportAndRemembersDuplicates(t *testing.T) {
	inputDir, outputDir := setupEnv(t)
	body := []byte("Please wire the outbound repayment of $250,000.00 today.")
	for _, name := range []string{"email_a.txt", "email_b.txt"} {
		if err := os.WriteFile(filepath.Join(inputDir, name), body, 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	out := execute(t, "run", "--input-dir", inputDir, "--output-dir", outputDir, "--concurrency", "1")

	var report domain.BatchReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode report: %v\n%s", err, out)
	}
	if len(report.Records) != 2 || report.RunID == "" {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.Records[0].Duplication.IsDuplicate || !report.Records[1].Duplication.IsDuplicate {
		t.Fatalf("expected second identical email to be a duplicate: %+v", report.Records)
	}

	rerun := execute(t, "run", "--input-dir", inputDir, "--output-dir", outputDir, "--concurrency", "1")
	if err := json.Unmarshal([]byte(rerun), &report); err != nil {
		t.Fatalf("decode rerun report: %v", err)
	}
	if !report.Records[0].Duplication.IsDuplicate {
		t.Fatalf("cache must persist between runs")
	}

	execute(t, "cache", "clear", "--output-dir", outputDir)
	cleared := execute(t, "run", "--input-dir", inputDir, "--output-dir", outputDir, "--concurrency", "1")
	if err := json.Unmarshal([]byte(cleared), &report); err != nil {
		t.Fatalf("decode report after clear: %v", err)
	}
	if report.Records[0].Duplication.IsDuplicate {
		t.Fatalf("first email must be unique after cache clear")
	}
}

func TestProcessPrintsRecords(t *testing.T) {
	inputDir, outputDir := setupEnv(t)
	path := filepath.Join(inputDir, "fee_notice.txt")
	if err := os.WriteFile(path, []byte("The amendment fee is due on 15-Mar-2024."), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	out := execute(t, "process", "--output-dir", outputDir, path)
	var records []domain.OutputRecord
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("decode records: %v\n%s", err, out)
	}
	if len(records) != 1 || records[0].EmailID != "fee_notice" || records[0].Subject != "fee_notice" {
		t.Fatalf("unexpected records %+v", records)
	}
	if _, err := os.Stat(filepath.Join(outputDir, domain.OutputKey("fee_notice"))); err != nil {
		t.Fatalf("expected artifact: %v", err)
	}
}

func TestUnknownBackendFails(t *testing.T) {
	setupEnv(t)
	t.Setenv("DEDUP_BACKEND", "cassandra")

	var errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs([]string{"cache", "clear"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&errOut)
	err := cmd.ExecuteContext(context.Background())
	if err == nil || !strings.Contains(err.Error(), "DEDUP_BACKEND") {
		t.Fatalf("expected config validation error, got %v", err)
	}
}

func TestWatchRequiresMailboxCredentials(t *testing.T) {
	inputDir, outputDir := setupEnv(t)
	t.Setenv("EMAIL_USER", "")

	cmd := newRootCmd()
	cmd.SetArgs([]string{"watch", "--once", "--input-dir", inputDir, "--output-dir", outputDir})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.ExecuteContext(context.Background())
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
