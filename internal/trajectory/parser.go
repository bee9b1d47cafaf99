// Package trajectory parses recorded agent run logs into structured
// transcripts and assembles the multimodal analysis prompt sent to an LLM.
package trajectory

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// StepRecord is one parsed step of an agent run.
type StepRecord struct {
	Number     int
	Evaluation string
	NextGoal   string
	Action     string
	Screenshot string // resolved path, empty when the screenshot does not exist
}

// RunTranscript is the parsed form of one agent run log.
type RunTranscript struct {
	Task  string
	Steps []StepRecord
}

// ScreenshotResolver maps a step number to the path of its screenshot,
// returning "" when no screenshot exists for that step.
type ScreenshotResolver func(step int) string

// DirResolver resolves screenshots as {dir}/step_{NNN}.png, checking that
// the file actually exists on disk.
func DirResolver(dir string) ScreenshotResolver {
	return func(step int) string {
		if dir == "" {
			return ""
		}
		path := filepath.Join(dir, fmt.Sprintf("step_%03d.png", step))
		if _, err := os.Stat(path); err != nil {
			return ""
		}
		return path
	}
}

var (
	taskRe   = regexp.MustCompile(`🚀 Starting task: (.*)\n`)
	stepRe   = regexp.MustCompile(`📍 Step (\d+)\n`)
	evalRe   = regexp.MustCompile(`[👍👎🤷] Eval: (.*)\n`)
	goalRe   = regexp.MustCompile(`🎯 Next goal: (.*)\n`)
	actionRe = regexp.MustCompile(`🛠️  Action \d+/\d+: (.*)\n`)

	logNameRe  = regexp.MustCompile(`agent_run_(.*)\.log`)
	unsafeRune = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
)

// Parser extracts a RunTranscript from raw log content. The zero value
// parses with no screenshot resolution and first-action capture.
type Parser struct {
	// Resolve locates the screenshot for a step. Nil means no screenshots.
	Resolve ScreenshotResolver

	// CaptureAllActions records every action line of a step joined by "; "
	// instead of only the first.
	CaptureAllActions bool
}

// Parse extracts the task line and step sections from content. Markers that
// are absent degrade to defaults: Evaluation "Unknown", NextGoal and Action
// empty. Content with no step markers yields zero steps. Parse never fails.
func (p *Parser) Parse(content string) *RunTranscript {
	t := &RunTranscript{}

	if m := taskRe.FindStringSubmatch(content); m != nil {
		t.Task = m[1]
	}

	// Step sections run from each marker to the next marker or EOF.
	markers := stepRe.FindAllStringSubmatchIndex(content, -1)
	for i, m := range markers {
		num, err := strconv.Atoi(content[m[2]:m[3]])
		if err != nil {
			continue
		}
		end := len(content)
		if i+1 < len(markers) {
			end = markers[i+1][0]
		}
		section := content[m[1]:end]
		t.Steps = append(t.Steps, p.parseStep(num, section))
	}
	return t
}

func (p *Parser) parseStep(num int, section string) StepRecord {
	rec := StepRecord{Number: num, Evaluation: "Unknown"}

	if m := evalRe.FindStringSubmatch(section); m != nil {
		rec.Evaluation = m[1]
	}
	if m := goalRe.FindStringSubmatch(section); m != nil {
		rec.NextGoal = m[1]
	}
	if p.CaptureAllActions {
		var actions []string
		for _, m := range actionRe.FindAllStringSubmatch(section, -1) {
			actions = append(actions, m[1])
		}
		rec.Action = strings.Join(actions, "; ")
	} else if m := actionRe.FindStringSubmatch(section); m != nil {
		rec.Action = m[1]
	}

	if p.Resolve != nil {
		rec.Screenshot = p.Resolve(num)
	}
	return rec
}

// ParseFile reads an agent run log and parses it, resolving screenshots
// from the directory derived from the log filename. An unreadable file is
// the only error; malformed content parses to defaults.
func (p *Parser) ParseFile(logPath, screenshotRoot string) (*RunTranscript, error) {
	content, err := os.ReadFile(logPath)
	if err != nil {
		return nil, fmt.Errorf("reading run log: %w", err)
	}

	sub := *p
	if sub.Resolve == nil {
		sub.Resolve = DirResolver(ScreenshotDir(logPath, screenshotRoot))
	}
	return sub.Parse(string(content)), nil
}

// ScreenshotDir derives the screenshot directory for a run log from its
// filename: agent_run_{task}.log maps to
// {root}/agent_screenshots_{task} with unsafe characters replaced by "_".
// Returns "" when the filename does not match the expected pattern.
func ScreenshotDir(logPath, root string) string {
	m := logNameRe.FindStringSubmatch(filepath.Base(logPath))
	if m == nil {
		return ""
	}
	safe := unsafeRune.ReplaceAllString(m[1], "_")
	return filepath.Join(root, "agent_screenshots_"+safe)
}
