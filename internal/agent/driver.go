package agent

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/webtriage/webtriage/internal/browser"
	"github.com/webtriage/webtriage/internal/config"
	"github.com/webtriage/webtriage/internal/llm"
	"github.com/webtriage/webtriage/internal/logging"
)

// decision is the JSON contract the LLM answers each step with.
type decision struct {
	Verdict    string   `json:"verdict"`     // "success", "failure", "unknown"
	Evaluation string   `json:"evaluation"`  // judgement of the previous step
	NextGoal   string   `json:"next_goal"`   // what the next actions aim for
	Actions    []action `json:"actions"`
	Done       bool     `json:"done"`
}

type action struct {
	Type     string `json:"type"`               // navigate, click, input_text, wait, done
	Selector string `json:"selector,omitempty"`
	Text     string `json:"text,omitempty"`
	URL      string `json:"url,omitempty"`
	Seconds  int    `json:"seconds,omitempty"`
}

func (a action) String() string {
	switch a.Type {
	case "navigate":
		return fmt.Sprintf("navigate(url=%s)", a.URL)
	case "click":
		return fmt.Sprintf("click_element(selector=%s)", a.Selector)
	case "input_text":
		return fmt.Sprintf("input_text(selector=%s, text=%s)", a.Selector, a.Text)
	case "wait":
		return fmt.Sprintf("wait(seconds=%d)", a.Seconds)
	default:
		return a.Type
	}
}

const decisionPrompt = `You are a web testing agent controlling a real browser. Decide the next actions toward completing the task.

Task: %s

Current URL: %s
Current page title: %s

A screenshot of the current browser state is attached.

Respond with ONLY a JSON object, no prose:
{
  "verdict": "success" | "failure" | "unknown",
  "evaluation": "one sentence judging whether the previous actions worked",
  "next_goal": "one sentence describing what the next actions aim for",
  "actions": [
    {"type": "navigate", "url": "..."},
    {"type": "click", "selector": "css selector"},
    {"type": "input_text", "selector": "css selector", "text": "..."},
    {"type": "wait", "seconds": 2}
  ],
  "done": false
}

Set "done": true with an empty actions list once the task is complete or clearly impossible. Use at most %d actions per step.`

// Driver runs one task to completion, step by step.
type Driver struct {
	Browser *browser.Manager
	LLM     llm.Client
	Config  config.AgentConfig

	// Log receives the structured run record.
	Log *RunLog

	// ScreenshotDir receives step_{NNN}.png captures; empty disables saving.
	ScreenshotDir string
}

// Run executes the task until the LLM declares it done, max_steps is
// reached, or consecutive failures exceed the configured limit.
func (d *Driver) Run(ctx context.Context, task string) error {
	log := logging.L().With(zap.String("task", task))

	if err := d.Log.Start(task); err != nil {
		return fmt.Errorf("writing run log: %w", err)
	}
	if d.ScreenshotDir != "" {
		if err := os.MkdirAll(d.ScreenshotDir, 0o755); err != nil {
			return fmt.Errorf("creating screenshot dir: %w", err)
		}
	}

	failures := 0
	for step := 1; step <= d.Config.MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		dec, err := d.decide(ctx, task, step)
		if err != nil {
			failures++
			log.Warn("step failed", zap.Int("step", step), zap.Int("failures", failures), zap.Error(err))
			_ = d.Log.Note("⚠️ Step %d error: %v", step, err)
			if failures >= d.Config.MaxFailures {
				return fmt.Errorf("aborting after %d consecutive failures: %w", failures, err)
			}
			select {
			case <-time.After(time.Duration(d.Config.RetryDelaySec) * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		failures = 0

		actions := dec.Actions
		if limit := d.Config.MaxActionsPerStep; limit > 0 && len(actions) > limit {
			actions = actions[:limit]
		}

		lines := make([]string, 0, len(actions))
		for _, a := range actions {
			lines = append(lines, a.String())
		}
		if err := d.Log.Step(step, Verdict(dec.Verdict), dec.Evaluation, dec.NextGoal, lines); err != nil {
			return fmt.Errorf("writing run log: %w", err)
		}

		if dec.Done {
			log.Info("task finished", zap.Int("steps", step))
			_ = d.Log.Note("✅ Task complete after %d steps", step)
			return nil
		}

		for _, a := range actions {
			if err := d.execute(ctx, a); err != nil {
				// Action failures are part of the trajectory under test, not
				// driver errors. The next step's screenshot shows the result.
				log.Warn("action failed", zap.Int("step", step), zap.String("action", a.String()), zap.Error(err))
				_ = d.Log.Note("⚠️ Action failed: %s (%v)", a.String(), err)
				break
			}
		}
	}

	_ = d.Log.Note("⏹️ Step limit reached (%d)", d.Config.MaxSteps)
	return fmt.Errorf("task did not finish within %d steps", d.Config.MaxSteps)
}

// decide captures the browser state and asks the LLM for the next actions.
func (d *Driver) decide(ctx context.Context, task string, step int) (*decision, error) {
	url, title, err := d.Browser.Location(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading page location: %w", err)
	}

	parts := make([]llm.ContentPart, 0, 2)
	if d.Config.UseVision {
		shot, err := d.Browser.Screenshot(ctx)
		if err != nil {
			return nil, fmt.Errorf("capturing screenshot: %w", err)
		}
		d.saveScreenshot(step, shot)
		parts = append(parts, llm.ImagePart(base64.StdEncoding.EncodeToString(shot), "image/png"))
	}
	parts = append(parts, llm.TextPart(fmt.Sprintf(decisionPrompt, task, url, title, d.Config.MaxActionsPerStep)))

	raw, err := d.LLM.Complete(ctx, []llm.Message{llm.UserMessage(parts...)})
	if err != nil {
		return nil, err
	}

	return parseDecision(raw)
}

// parseDecision decodes the model's JSON answer, tolerating a code fence.
func parseDecision(raw string) (*decision, error) {
	var dec decision
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &dec); err != nil {
		return nil, fmt.Errorf("model returned unparseable decision: %w", err)
	}
	if dec.Verdict == "" {
		dec.Verdict = string(VerdictUnknown)
	}
	return &dec, nil
}

func (d *Driver) saveScreenshot(step int, data []byte) {
	if d.ScreenshotDir == "" {
		return
	}
	path := filepath.Join(d.ScreenshotDir, fmt.Sprintf("step_%03d.png", step))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		logging.L().Warn("could not save screenshot", zap.String("path", path), zap.Error(err))
	}
}

func (d *Driver) execute(ctx context.Context, a action) error {
	switch a.Type {
	case "navigate":
		return d.Browser.Navigate(ctx, a.URL)
	case "click":
		return d.Browser.Click(ctx, a.Selector)
	case "input_text":
		return d.Browser.Fill(ctx, a.Selector, a.Text)
	case "wait":
		secs := a.Seconds
		if secs <= 0 {
			secs = 1
		}
		select {
		case <-time.After(time.Duration(secs) * time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	case "done", "":
		return nil
	default:
		return fmt.Errorf("unknown action type %q", a.Type)
	}
}

// stripCodeFence unwraps a ```json ... ``` block if the model added one.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:] // drop the language tag line
	}
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
