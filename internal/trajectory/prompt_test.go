package trajectory

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webtriage/webtriage/internal/llm"
)

func TestAssembleBlockOrdering(t *testing.T) {
	transcript := &RunTranscript{
		Task: "Search for milk",
		Steps: []StepRecord{
			{Number: 1, Evaluation: "Success", NextGoal: "Type query", Action: "input_text(3)"},
			{Number: 2, Evaluation: "Unknown", NextGoal: "", Action: ""},
		},
	}

	messages := Assemble(transcript)
	require.Len(t, messages, 4) // leading + 2 steps + trailing

	for _, m := range messages {
		assert.Equal(t, "user", m.Role)
	}

	lead := messages[0]
	require.Len(t, lead.Parts, 1)
	assert.Contains(t, lead.Parts[0].Text, "Task: Search for milk")
	assert.Contains(t, lead.Parts[0].Text, "bug detection agent")

	step1 := messages[1]
	require.Len(t, step1.Parts, 1)
	assert.Contains(t, step1.Parts[0].Text, "Step 1:")
	assert.Contains(t, step1.Parts[0].Text, "Evaluation: Success")
	assert.Contains(t, step1.Parts[0].Text, "Next Goal: Type query")
	assert.Contains(t, step1.Parts[0].Text, "Action: input_text(3)")
	assert.Contains(t, step1.Parts[0].Text, strings.Repeat("-", 80))

	step2 := messages[2]
	require.Len(t, step2.Parts, 1)
	assert.Contains(t, step2.Parts[0].Text, "Step 2:")
	assert.Contains(t, step2.Parts[0].Text, "Evaluation: Unknown")

	trailing := messages[3]
	require.Len(t, trailing.Parts, 1)
	assert.Contains(t, trailing.Parts[0].Text, "Based on the above trajectory")
}

func TestAssembleEmptyTranscript(t *testing.T) {
	messages := Assemble(&RunTranscript{Task: "noop"})
	require.Len(t, messages, 2)
	assert.Contains(t, messages[0].Parts[0].Text, "Task: noop")
	assert.Contains(t, messages[1].Parts[0].Text, "Based on the above trajectory")
}

func TestAssembleInlinesScreenshotBeforeText(t *testing.T) {
	dir := t.TempDir()
	shot := filepath.Join(dir, "step_001.png")
	f, err := os.Create(shot)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, 10, 10))))
	require.NoError(t, f.Close())

	transcript := &RunTranscript{
		Task: "Checkout",
		Steps: []StepRecord{
			{Number: 1, Evaluation: "Success", Screenshot: shot},
		},
	}

	messages := Assemble(transcript)
	require.Len(t, messages, 3)

	step := messages[1]
	require.Len(t, step.Parts, 2)
	assert.Equal(t, llm.PartImage, step.Parts[0].Type)
	assert.Equal(t, "image/png", step.Parts[0].MediaType)
	assert.NotEmpty(t, step.Parts[0].ImageData)
	assert.Equal(t, llm.PartText, step.Parts[1].Type)
	assert.Contains(t, step.Parts[1].Text, "Step 1:")
}

func TestAssembleOmitsCorruptScreenshot(t *testing.T) {
	dir := t.TempDir()
	shot := filepath.Join(dir, "step_001.png")
	require.NoError(t, os.WriteFile(shot, []byte("garbage"), 0o644))

	transcript := &RunTranscript{
		Task: "Checkout",
		Steps: []StepRecord{
			{Number: 1, Evaluation: "Success", Screenshot: shot},
		},
	}

	messages := Assemble(transcript)
	require.Len(t, messages, 3)

	step := messages[1]
	require.Len(t, step.Parts, 1)
	assert.Equal(t, llm.PartText, step.Parts[0].Type)
	assert.Contains(t, step.Parts[0].Text, "Step 1:")
}
