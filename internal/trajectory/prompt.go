package trajectory

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/webtriage/webtriage/internal/llm"
	"github.com/webtriage/webtriage/internal/logging"
)

const leadingTemplate = `Task: %s

You are a specialized web application bug detection agent. Your task is to analyze agent-website interaction trajectories and identify potential bugs, glitches, and usability issues in the target website.
IMPORTANT: Focus on website malfunctions, NOT agent errors. Distinguish between agent mistakes and actual website problems. A small note: the web browser is launched from an automated browser, so it is not always the website that is causing the issue.
For bugs, consider both feature bugs (missing or incorrect functionality) and glitch-like bugs (visual or behavioral anomalies). Also consider any functionality that is not working as expected; these are not strictly bugs, but could pose difficulties for the website users to navigate. One example is light colored text on a light background, which is hard to read. Note that the type of bug is not always obvious, so don't be afraid to make an assumption. For example, if the website does not support certain features that the agent is trying to use, that is a bug (e.g. the agent is trying to use the "add to cart" feature, but the website does not have a cart, or the agent is searching in some language that the website does not support).

For each step, I'll provide:
0. The screenshot of the current browser state
1. The agent's evaluation of the step
2. The next goal
3. The action taken

Please analyze the entire sequence of steps and identify:
1. Any unexpected behaviors or errors of the website itself (*note: not the agent's actions*)
2. Missing or incorrect functionality
3. Visual glitches or UI inconsistencies
4. Any other anomalies that might indicate bugs
5. Any functionality that is not working as expected; these are not strictly bugs, but could pose difficulties for the website users to navigate.
Here's the step-by-step trajectory:

`

const trailingPrompt = `
Based on the above trajectory, please provide:
1. A summary of any bugs or glitches identified
2. The specific steps where issues occurred
3. The nature of each issue (feature bug, visual glitch, etc.)
4. Any patterns or recurring problems
5. Recommendations for fixing the identified issues

For each identified issue, please specify:
- The step number where it occurred
- Whether it's a feature bug or visual glitch
- The severity of the issue
- The expected behavior vs actual behavior
`

// Assemble builds the analysis prompt for a transcript: one leading message
// with the task and instructions, one message per step, and one trailing
// message with the analysis request. A step message carries its screenshot
// as an inline image part before the text block; a screenshot that fails to
// transcode is logged and omitted while the text is kept.
func Assemble(t *RunTranscript) []llm.Message {
	messages := make([]llm.Message, 0, len(t.Steps)+2)

	messages = append(messages, llm.UserMessage(
		llm.TextPart(fmt.Sprintf(leadingTemplate, t.Task)),
	))

	separator := strings.Repeat("-", 80)
	for _, step := range t.Steps {
		var parts []llm.ContentPart
		if step.Screenshot != "" {
			data, mediaType, err := EncodeScreenshot(step.Screenshot)
			if err != nil {
				logging.L().Warn("skipping screenshot in prompt",
					zap.String("path", step.Screenshot),
					zap.Int("step", step.Number),
					zap.Error(err))
			} else {
				parts = append(parts, llm.ImagePart(data, mediaType))
			}
		}

		text := fmt.Sprintf("\nStep %d:\nEvaluation: %s\nNext Goal: %s\nAction: %s\n%s\n",
			step.Number, step.Evaluation, step.NextGoal, step.Action, separator)
		parts = append(parts, llm.TextPart(text))

		messages = append(messages, llm.UserMessage(parts...))
	}

	messages = append(messages, llm.UserMessage(llm.TextPart(trailingPrompt)))
	return messages
}
