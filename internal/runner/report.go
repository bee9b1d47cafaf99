package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/webtriage/webtriage/internal/config"
	"github.com/webtriage/webtriage/internal/llm"
	"github.com/webtriage/webtriage/internal/logging"
	"github.com/webtriage/webtriage/internal/trajectory"
)

// ReportName maps a run log filename to its bug report filename:
// agent_run_{task}.log becomes bug_report_{task}.md.
func ReportName(logName string) string {
	name := strings.Replace(filepath.Base(logName), "agent_run_", "bug_report_", 1)
	return strings.TrimSuffix(name, ".log") + ".md"
}

// GenerateReport analyzes one run log with the LLM and writes the verdict
// to the reports directory. Nothing is written unless the whole pipeline
// succeeds.
func GenerateReport(ctx context.Context, client llm.Client, logPath string, cfg *config.Config) (string, error) {
	p := &trajectory.Parser{CaptureAllActions: cfg.Analyzer.CaptureAllActions}
	transcript, err := p.ParseFile(logPath, cfg.Paths.Screenshots)
	if err != nil {
		return "", err
	}
	logging.L().Info("analyzing run",
		zap.String("log", logPath),
		zap.String("task", transcript.Task),
		zap.Int("steps", len(transcript.Steps)))

	messages := trajectory.Assemble(transcript)
	verdict, err := client.Complete(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("analyzing %s: %w", logPath, err)
	}

	if err := os.MkdirAll(cfg.Paths.Reports, 0o755); err != nil {
		return "", fmt.Errorf("creating report dir: %w", err)
	}
	outPath := filepath.Join(cfg.Paths.Reports, ReportName(logPath))
	if err := os.WriteFile(outPath, []byte(verdict), 0o644); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}
	return outPath, nil
}

// GenerateReports analyzes every run log in dir whose filename starts with
// prefix. A failing log is reported and skipped; the batch continues.
func GenerateReports(ctx context.Context, client llm.Client, dir, prefix string, cfg *config.Config) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading log dir: %w", err)
	}

	matched := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".log") {
			continue
		}
		matched++
		outPath, err := GenerateReport(ctx, client, filepath.Join(dir, name), cfg)
		if err != nil {
			logging.L().Error("report generation failed", zap.String("log", name), zap.Error(err))
			fmt.Printf("❌ %s: %v\n", name, err)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		fmt.Printf("📝 Bug report saved to %s\n", outPath)
	}
	if matched == 0 {
		return fmt.Errorf("no run logs matching %q in %s", prefix, dir)
	}
	return nil
}
