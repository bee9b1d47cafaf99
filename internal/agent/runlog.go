// Package agent drives the browser through a task with an LLM in the loop
// and records the run in the log format the trajectory analyzer consumes.
package agent

import (
	"fmt"
	"io"
)

// Verdict classifies how the agent judged the previous step.
type Verdict string

const (
	VerdictSuccess Verdict = "success"
	VerdictFailure Verdict = "failure"
	VerdictUnknown Verdict = "unknown"
)

func (v Verdict) marker() string {
	switch v {
	case VerdictSuccess:
		return "👍"
	case VerdictFailure:
		return "👎"
	default:
		return "🤷"
	}
}

// RunLog writes the structured agent run log. One RunLog records one task.
type RunLog struct {
	w io.Writer
}

// NewRunLog wraps a writer. The caller owns the writer's lifecycle.
func NewRunLog(w io.Writer) *RunLog {
	return &RunLog{w: w}
}

// Start records the task header. Call once, before any steps.
func (l *RunLog) Start(task string) error {
	_, err := fmt.Fprintf(l.w, "🚀 Starting task: %s\n", task)
	return err
}

// Step records one agent step: evaluation of the previous state, the next
// goal, and the actions taken.
func (l *RunLog) Step(number int, verdict Verdict, evaluation, nextGoal string, actions []string) error {
	if _, err := fmt.Fprintf(l.w, "📍 Step %d\n", number); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(l.w, "%s Eval: %s\n", verdict.marker(), evaluation); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(l.w, "🎯 Next goal: %s\n", nextGoal); err != nil {
		return err
	}
	for i, action := range actions {
		if _, err := fmt.Fprintf(l.w, "🛠️  Action %d/%d: %s\n", i+1, len(actions), action); err != nil {
			return err
		}
	}
	return nil
}

// Note records a free-form line that the analyzer ignores.
func (l *RunLog) Note(format string, args ...interface{}) error {
	_, err := fmt.Fprintf(l.w, format+"\n", args...)
	return err
}
