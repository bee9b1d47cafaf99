package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripCodeFence(t *testing.T) {
	plain := `{"done": true}`
	assert.Equal(t, plain, stripCodeFence(plain))
	assert.Equal(t, plain, stripCodeFence("```json\n"+plain+"\n```"))
	assert.Equal(t, plain, stripCodeFence("```\n"+plain+"\n```"))
	assert.Equal(t, plain, stripCodeFence("  \n```json\n"+plain+"\n```\n  "))
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "navigate(url=https://a.example)", action{Type: "navigate", URL: "https://a.example"}.String())
	assert.Equal(t, "click_element(selector=#go)", action{Type: "click", Selector: "#go"}.String())
	assert.Equal(t, "input_text(selector=#q, text=milk)", action{Type: "input_text", Selector: "#q", Text: "milk"}.String())
	assert.Equal(t, "wait(seconds=3)", action{Type: "wait", Seconds: 3}.String())
	assert.Equal(t, "done", action{Type: "done"}.String())
}

func TestDecisionUnmarshal(t *testing.T) {
	raw := "```json\n" + `{
		"verdict": "success",
		"evaluation": "The page loaded",
		"next_goal": "Click the login button",
		"actions": [{"type": "click", "selector": "#login"}],
		"done": false
	}` + "\n```"

	dec, err := parseDecision(raw)
	require.NoError(t, err)
	assert.Equal(t, "success", dec.Verdict)
	assert.Equal(t, "Click the login button", dec.NextGoal)
	require.Len(t, dec.Actions, 1)
	assert.Equal(t, "click", dec.Actions[0].Type)
}

func TestParseDecisionDefaultsVerdict(t *testing.T) {
	dec, err := parseDecision(`{"evaluation": "x", "done": true}`)
	require.NoError(t, err)
	assert.Equal(t, string(VerdictUnknown), dec.Verdict)
	assert.True(t, dec.Done)
}

func TestParseDecisionGarbage(t *testing.T) {
	_, err := parseDecision("I think you should click the button")
	require.Error(t, err)
}
