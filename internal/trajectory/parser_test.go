package trajectory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLog = `INFO [browser] launching chromium
🚀 Starting task: Search for milk
INFO [agent] run started
📍 Step 1
👍 Eval: Success - the search page loaded
🎯 Next goal: Type milk into the search box
🛠️  Action 1/2: input_text(index=3, text=milk)
🛠️  Action 2/2: click_element(index=5)
INFO [agent] step complete
📍 Step 2
👎 Eval: Failed - no results appeared
🎯 Next goal: Retry the search
🛠️  Action 1/1: click_element(index=5)
INFO [agent] run finished
`

func TestParseExtractsTaskAndSteps(t *testing.T) {
	p := &Parser{}
	got := p.Parse(sampleLog)

	assert.Equal(t, "Search for milk", got.Task)
	require.Len(t, got.Steps, 2)

	assert.Equal(t, 1, got.Steps[0].Number)
	assert.Equal(t, "Success - the search page loaded", got.Steps[0].Evaluation)
	assert.Equal(t, "Type milk into the search box", got.Steps[0].NextGoal)
	assert.Equal(t, "input_text(index=3, text=milk)", got.Steps[0].Action)

	assert.Equal(t, 2, got.Steps[1].Number)
	assert.Equal(t, "Failed - no results appeared", got.Steps[1].Evaluation)
	assert.Equal(t, "Retry the search", got.Steps[1].NextGoal)
	assert.Equal(t, "click_element(index=5)", got.Steps[1].Action)
}

func TestParseCapturesFirstActionOnly(t *testing.T) {
	p := &Parser{}
	got := p.Parse(sampleLog)
	require.Len(t, got.Steps, 2)
	assert.Equal(t, "input_text(index=3, text=milk)", got.Steps[0].Action)
}

func TestParseCaptureAllActions(t *testing.T) {
	p := &Parser{CaptureAllActions: true}
	got := p.Parse(sampleLog)
	require.Len(t, got.Steps, 2)
	assert.Equal(t, "input_text(index=3, text=milk); click_element(index=5)", got.Steps[0].Action)
	assert.Equal(t, "click_element(index=5)", got.Steps[1].Action)
}

func TestParsePartialSecondStep(t *testing.T) {
	log := "🚀 Starting task: Search for milk\n" +
		"📍 Step 1\n" +
		"👍 Eval: ok\n" +
		"🎯 Next goal: find search box\n" +
		"🛠️  Action 1/2: click search\n" +
		"📍 Step 2\n" +
		"👎 Eval: failed\n"

	p := &Parser{}
	got := p.Parse(log)

	assert.Equal(t, "Search for milk", got.Task)
	require.Len(t, got.Steps, 2)
	assert.Equal(t, "ok", got.Steps[0].Evaluation)
	assert.Equal(t, "find search box", got.Steps[0].NextGoal)
	assert.Equal(t, "click search", got.Steps[0].Action)
	assert.Equal(t, "failed", got.Steps[1].Evaluation)
	assert.Empty(t, got.Steps[1].NextGoal)
	assert.Empty(t, got.Steps[1].Action)
}

func TestParseNoMarkers(t *testing.T) {
	p := &Parser{}
	got := p.Parse("just some plain log output\nnothing structured here\n")
	assert.Empty(t, got.Task)
	assert.Empty(t, got.Steps)
}

func TestParseMissingFieldsDefault(t *testing.T) {
	p := &Parser{}
	got := p.Parse("📍 Step 7\nsome unrelated output\n")
	require.Len(t, got.Steps, 1)
	assert.Equal(t, 7, got.Steps[0].Number)
	assert.Equal(t, "Unknown", got.Steps[0].Evaluation)
	assert.Empty(t, got.Steps[0].NextGoal)
	assert.Empty(t, got.Steps[0].Action)
	assert.Empty(t, got.Steps[0].Screenshot)
}

func TestParseIdempotent(t *testing.T) {
	p := &Parser{}
	first := p.Parse(sampleLog)
	second := p.Parse(sampleLog)
	assert.Equal(t, first, second)
}

func TestParseUsesResolver(t *testing.T) {
	p := &Parser{
		Resolve: func(step int) string {
			if step == 1 {
				return "shots/step_001.png"
			}
			return ""
		},
	}
	got := p.Parse(sampleLog)
	require.Len(t, got.Steps, 2)
	assert.Equal(t, "shots/step_001.png", got.Steps[0].Screenshot)
	assert.Empty(t, got.Steps[1].Screenshot)
}

func TestDirResolver(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "step_002.png"), []byte("x"), 0o644))

	resolve := DirResolver(dir)
	assert.Empty(t, resolve(1))
	assert.Equal(t, filepath.Join(dir, "step_002.png"), resolve(2))

	assert.Empty(t, DirResolver("")(2))
}

func TestScreenshotDir(t *testing.T) {
	got := ScreenshotDir("agent_logs/agent_run_Search for milk!.log", "agent_screenshots")
	assert.Equal(t, filepath.Join("agent_screenshots", "agent_screenshots_Search_for_milk_"), got)

	assert.Empty(t, ScreenshotDir("notes.txt", "agent_screenshots"))
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "agent_run_checkout.log")
	require.NoError(t, os.WriteFile(logPath, []byte(sampleLog), 0o644))

	shotDir := filepath.Join(dir, "agent_screenshots_checkout")
	require.NoError(t, os.MkdirAll(shotDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(shotDir, "step_001.png"), []byte("x"), 0o644))

	p := &Parser{}
	got, err := p.ParseFile(logPath, dir)
	require.NoError(t, err)
	assert.Equal(t, "Search for milk", got.Task)
	require.Len(t, got.Steps, 2)
	assert.Equal(t, filepath.Join(shotDir, "step_001.png"), got.Steps[0].Screenshot)
	assert.Empty(t, got.Steps[1].Screenshot)
}

func TestParseFileUnreadable(t *testing.T) {
	p := &Parser{}
	_, err := p.ParseFile(filepath.Join(t.TempDir(), "missing.log"), "")
	require.Error(t, err)
}
