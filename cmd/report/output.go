package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"solana-token-guard/internal/domain"
	"solana-token-guard/internal/reporting"
)

// parseBound parses an RFC3339 time or unix seconds; empty yields def.
func parseBound(s string, def int64) (int64, error) {
	if s == "" {
		return def, nil
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ts, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, fmt.Errorf("expected RFC3339 or unix seconds, got %q", s)
	}
	return t.Unix(), nil
}

// writeOutputs writes the Markdown report, the CSV and the Parquet event log.
func writeOutputs(dir string, report *reporting.Report, events []*domain.EngineEvent) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, reportFile), []byte(reporting.RenderMarkdown(report)), 0644); err != nil {
		return fmt.Errorf("write %s: %w", reportFile, err)
	}

	csv, err := reporting.RenderCSV(report.Events)
	if err != nil {
		return fmt.Errorf("render csv: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, csvFile), []byte(csv), 0644); err != nil {
		return fmt.Errorf("write %s: %w", csvFile, err)
	}

	f, err := os.Create(filepath.Join(dir, parquetFile))
	if err != nil {
		return fmt.Errorf("create %s: %w", parquetFile, err)
	}
	if err := reporting.WriteParquet(f, events); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", parquetFile, err)
	}
	return f.Close()
}
