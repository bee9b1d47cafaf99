// Package runner orchestrates task batches: it prepares the browser and
// session state, drives each task through the agent, and turns finished run
// logs into bug reports.
package runner

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/webtriage/webtriage/internal/agent"
	"github.com/webtriage/webtriage/internal/browser"
	"github.com/webtriage/webtriage/internal/config"
	"github.com/webtriage/webtriage/internal/llm"
	"github.com/webtriage/webtriage/internal/logging"
	"github.com/webtriage/webtriage/internal/session"
)

// Task is one named entry of the task list file.
type Task struct {
	Name        string
	Description string
}

// LoadTasks reads a task list file with one "name: description" entry per
// line. Blank lines are skipped; malformed lines are logged and skipped.
// An unreadable file is the only error.
func LoadTasks(path string) ([]Task, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading task list: %w", err)
	}
	defer f.Close()

	var tasks []Task
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, desc, found := strings.Cut(line, ":")
		name = strings.TrimSpace(name)
		desc = strings.TrimSpace(desc)
		if !found || name == "" || desc == "" {
			logging.L().Warn("skipping malformed task line",
				zap.String("file", path), zap.Int("line", lineNo))
			continue
		}
		tasks = append(tasks, Task{Name: name, Description: desc})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading task list: %w", err)
	}
	return tasks, nil
}

// Runner executes a batch of tasks against one browser instance.
type Runner struct {
	cfg *config.Config
}

// New builds a Runner for the given configuration.
func New(cfg *config.Config) *Runner {
	return &Runner{cfg: cfg}
}

// Run executes every task in order. A failing task is logged and the batch
// continues; only setup failures (task list, browser, LLM client, missing
// credentials) abort the run. Returns the number of tasks that failed.
func (r *Runner) Run(ctx context.Context) (int, error) {
	tasks, err := LoadTasks(r.cfg.TasksFile)
	if err != nil {
		return 0, err
	}
	if len(tasks) == 0 {
		return 0, fmt.Errorf("no tasks in %s", r.cfg.TasksFile)
	}

	client, err := llm.NewClient(r.cfg.LLM)
	if err != nil {
		return 0, err
	}

	sess, err := session.NewManager(r.cfg.Browser.TestProfileName, r.cfg.Paths.AuthRoot)
	if err != nil {
		return 0, err
	}

	mgr, err := browser.NewManager(r.cfg.Browser, r.cfg.Context)
	if err != nil {
		return 0, err
	}
	defer mgr.Close()

	if r.cfg.Auth.EnsureLoggedIn {
		for _, site := range r.cfg.Auth.Sites {
			if err := mgr.EnsureLoggedIn(ctx, sess, site); err != nil {
				return 0, fmt.Errorf("preparing session for %s: %w", site.Name, err)
			}
		}
	}

	if err := os.MkdirAll(r.cfg.Paths.Logs, 0o755); err != nil {
		return 0, fmt.Errorf("creating log dir: %w", err)
	}

	failed := 0
	for i, task := range tasks {
		fmt.Printf("📋 Task %d/%d: %s\n", i+1, len(tasks), task.Name)
		if err := r.runTask(ctx, mgr, sess, client, task); err != nil {
			failed++
			logging.L().Error("task failed", zap.String("task", task.Name), zap.Error(err))
			fmt.Printf("❌ %s: %v\n", task.Name, err)
			if ctx.Err() != nil {
				return failed, ctx.Err()
			}
			continue
		}
		fmt.Printf("✅ %s\n", task.Name)
	}
	return failed, nil
}

func (r *Runner) runTask(ctx context.Context, mgr *browser.Manager, sess *session.Manager, client llm.Client, task Task) error {
	safe := sanitizeName(task.Name)
	logPath := filepath.Join(r.cfg.Paths.Logs, "agent_run_"+safe+".log")

	f, err := os.Create(logPath)
	if err != nil {
		return fmt.Errorf("creating run log: %w", err)
	}
	defer f.Close()

	// Auth state is persisted after every task, pass or fail, so a crash
	// mid-batch does not lose the sessions earlier tasks established.
	if r.cfg.Auth.SaveAuthState {
		defer r.saveAuthStates(ctx, mgr, sess)
	}

	driver := &agent.Driver{
		Browser:       mgr,
		LLM:           client,
		Config:        r.cfg.Agent,
		Log:           agent.NewRunLog(f),
		ScreenshotDir: filepath.Join(r.cfg.Paths.Screenshots, "agent_screenshots_"+safe),
	}
	return driver.Run(ctx, task.Description)
}

// cookieSource is the slice of browser.Manager that auth persistence needs.
type cookieSource interface {
	Cookies(ctx context.Context) ([]session.Cookie, error)
}

func (r *Runner) saveAuthStates(ctx context.Context, src cookieSource, sess *session.Manager) {
	cookies, err := src.Cookies(ctx)
	if err != nil {
		logging.L().Warn("could not read cookies for auth save", zap.Error(err))
		return
	}
	for _, site := range r.cfg.Auth.Sites {
		if err := sess.SaveAuthState(site.Name, cookies); err != nil {
			logging.L().Warn("could not save auth state",
				zap.String("site", site.Name), zap.Error(err))
		}
	}
}

func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
