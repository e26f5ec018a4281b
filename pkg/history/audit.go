package history

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vaultpilot/automations/pkg/models"
)

// maxOutputLen bounds per-action output quoted into the audit log.
const maxOutputLen = 500

// AuditLog appends human-readable execution records to a markdown document.
// Appends are best-effort; callers log and swallow failures.
type AuditLog struct {
	path string
}

func NewAuditLog(path string) *AuditLog {
	return &AuditLog{path: path}
}

// Append writes one section describing the execution.
func (l *AuditLog) Append(automation *models.Automation, result *models.ExecutionResult) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.WriteString(formatEntry(automation, result))

	return err
}

func formatEntry(automation *models.Automation, result *models.ExecutionResult) string {
	var b strings.Builder

	status := "SUCCESS"
	if !result.Success {
		status = "FAILED"
	}

	var total time.Duration
	for _, ar := range result.ActionResults {
		total += ar.Duration
	}

	fmt.Fprintf(&b, "## %s — %s\n\n", automation.Name, status)
	fmt.Fprintf(&b, "- Time: %s\n", result.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Trigger: %s\n", result.Trigger.Describe())
	fmt.Fprintf(&b, "- Duration: %s\n", total.Round(time.Millisecond))

	if result.Error != "" {
		fmt.Fprintf(&b, "- Error: %s\n", result.Error)
	}

	b.WriteString("\n")

	for i, ar := range result.ActionResults {
		outcome := "ok"
		if !ar.Success {
			outcome = "failed"
		}

		fmt.Fprintf(&b, "### %d. %s — %s (%s)\n\n", i+1, ar.Action.Describe(), outcome, ar.Duration.Round(time.Millisecond))

		if ar.Error != "" {
			fmt.Fprintf(&b, "> error: %s\n\n", truncate(ar.Error))
		} else if ar.Result != nil {
			fmt.Fprintf(&b, "> %s\n\n", truncate(fmt.Sprintf("%v", ar.Result)))
		}
	}

	return b.String()
}

func truncate(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > maxOutputLen {
		return s[:maxOutputLen] + "…"
	}

	return s
}
