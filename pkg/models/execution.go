package models

import "time"

// ActionResult captures the outcome of one action within a pipeline run.
type ActionResult struct {
	Action   Action        `json:"action"`
	Success  bool          `json:"success"`
	Result   any           `json:"result,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// ExecutionResult is the aggregate outcome of one pipeline run. Success is
// the logical AND of all attempted action successes; the pipeline halts at
// the first failing action, so ActionResults may be shorter than the
// configured action list.
type ExecutionResult struct {
	Success       bool           `json:"success"`
	Timestamp     time.Time      `json:"timestamp"`
	Trigger       Trigger        `json:"trigger"`
	ActionResults []ActionResult `json:"action_results"`
	Error         string         `json:"error,omitempty"`
}

// HistoryEntry is one record in the bounded execution history.
type HistoryEntry struct {
	AutomationID string          `json:"automation_id"`
	Result       ExecutionResult `json:"result"`
	Timestamp    time.Time       `json:"timestamp"`
}
