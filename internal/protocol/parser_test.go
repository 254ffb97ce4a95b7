// File: internal/protocol/parser_test.go
package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/cartographer-cli/api/schemas"
)

func TestParsePlainText(t *testing.T) {
	parts := Parse("just some narration, no tags at all")
	require.Len(t, parts, 1)
	text, ok := parts[0].(schemas.TextPart)
	require.True(t, ok)
	assert.Equal(t, "just some narration, no tags at all", text.Content)
}

func TestParseEmptyInput(t *testing.T) {
	assert.Empty(t, Parse(""))
	assert.Empty(t, Parse("   \n\t  "))
}

func TestParseCompleteTask(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantResult  string
		wantCommand string
	}{
		{
			name:       "result only",
			input:      "<complete_task><result>Done</result></complete_task>",
			wantResult: "Done",
		},
		{
			name:        "result with command",
			input:       "<complete_task><result>Logged in</result><command>open dashboard</command></complete_task>",
			wantResult:  "Logged in",
			wantCommand: "open dashboard",
		},
		{
			name:       "surrounding whitespace is trimmed",
			input:      "<complete_task><result>\n   Done  \n</result></complete_task>",
			wantResult: "Done",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parts := Parse(tt.input)
			require.Len(t, parts, 1)
			task, ok := parts[0].(schemas.CompleteTaskPart)
			require.True(t, ok, "expected a complete_task part, got %T", parts[0])
			assert.Equal(t, tt.wantResult, task.Result)
			assert.Equal(t, tt.wantCommand, task.Command)
		})
	}
}

func TestParsePerformActionAllFields(t *testing.T) {
	input := `<perform_action>
		<action>click</action>
		<url>https://example.com/login</url>
		<coordinate>120,483</coordinate>
		<text>admin</text>
		<key>Enter</key>
		<about_this_action>Submit the login form</about_this_action>
		<marker_number>7</marker_number>
	</perform_action>`

	parts := Parse(input)
	require.Len(t, parts, 1)
	action, ok := parts[0].(schemas.PerformActionPart)
	require.True(t, ok)
	assert.Equal(t, "click", action.Action)
	assert.Equal(t, "https://example.com/login", action.URL)
	assert.Equal(t, "120,483", action.Coordinate)
	assert.Equal(t, "admin", action.Text)
	assert.Equal(t, "Enter", action.Key)
	assert.Equal(t, "Submit the login form", action.About)
	assert.Equal(t, "7", action.MarkerNumber)
}

func TestParsePerformActionOptionalFieldsAbsent(t *testing.T) {
	parts := Parse("<perform_action><action>scroll</action></perform_action>")
	require.Len(t, parts, 1)
	action := parts[0].(schemas.PerformActionPart)
	assert.Equal(t, "scroll", action.Action)
	assert.Empty(t, action.URL)
	assert.Empty(t, action.Coordinate)
	assert.Empty(t, action.Text)
	assert.Empty(t, action.Key)
}

func TestParseFollowupQuestion(t *testing.T) {
	parts := Parse("<ask_followup_question><question>Which account?</question></ask_followup_question>")
	require.Len(t, parts, 1)
	q := parts[0].(schemas.FollowupQuestionPart)
	assert.Equal(t, "Which account?", q.Question)
}

func TestParseActionResult(t *testing.T) {
	input := `<perform_action_result>
		<action_status>success</action_status>
		<action_message>Clicked the login button</action_message>
		<screenshot>data:image/png;base64,AAAA</screenshot>
		<omni_parser>[{"text":"Login","coordinates":{"x":10,"y":20},"about":"login link"},{"text":"Help"}]</omni_parser>
	</perform_action_result>`

	parts := Parse(input)
	require.Len(t, parts, 1)
	result, ok := parts[0].(schemas.ActionResultPart)
	require.True(t, ok)
	assert.Equal(t, schemas.StatusSuccess, result.Status)
	assert.Equal(t, "Clicked the login button", result.Message)
	assert.Equal(t, "data:image/png;base64,AAAA", result.Screenshot)
	require.Len(t, result.Elements, 2)
	assert.Equal(t, "Login", result.Elements[0].Text)
	require.NotNil(t, result.Elements[0].Coordinates)
	assert.Equal(t, 10.0, result.Elements[0].Coordinates.X)
	assert.Nil(t, result.Elements[1].Coordinates)
}

func TestParseActionResultErrorStatus(t *testing.T) {
	input := "<perform_action_result><action_status>error</action_status><action_message>element not found</action_message></perform_action_result>"
	parts := Parse(input)
	require.Len(t, parts, 1)
	result := parts[0].(schemas.ActionResultPart)
	assert.Equal(t, schemas.StatusError, result.Status)
	assert.Equal(t, "element not found", result.Message)
	assert.Nil(t, result.Elements)
}

func TestParseMalformedOmniParserDegradesToEmpty(t *testing.T) {
	input := "<perform_action_result><action_status>success</action_status><action_message>ok</action_message><omni_parser>{not json[</omni_parser></perform_action_result>"
	parts := Parse(input)
	require.Len(t, parts, 1)
	result := parts[0].(schemas.ActionResultPart)
	assert.Empty(t, result.Elements)
}

func TestParseUnmatchedOpeningTagDegradesToText(t *testing.T) {
	parts := Parse("before <perform_action><action>click</action> and it never closes")
	require.GreaterOrEqual(t, len(parts), 2)

	text0, ok := parts[0].(schemas.TextPart)
	require.True(t, ok)
	assert.Equal(t, "before", text0.Content)

	// The opening tag itself must survive verbatim as text; nothing is dropped.
	text1, ok := parts[1].(schemas.TextPart)
	require.True(t, ok)
	assert.Equal(t, "<perform_action>", text1.Content)
}

func TestParseMixedTextAndTagsPreservesOrder(t *testing.T) {
	input := "Thinking about it. <perform_action><action>navigate</action><url>https://x/a</url></perform_action> Now done. <complete_task><result>Visited</result></complete_task>"
	parts := Parse(input)
	require.Len(t, parts, 4)

	assert.Equal(t, schemas.PartText, parts[0].PartType())
	assert.Equal(t, schemas.PartPerformAction, parts[1].PartType())
	assert.Equal(t, schemas.PartText, parts[2].PartType())
	assert.Equal(t, schemas.PartCompleteTask, parts[3].PartType())
}

func TestParseFirstOpenTagWins(t *testing.T) {
	// complete_task opens earlier, so the perform_action inside plain text
	// after it is still picked up afterwards, in order.
	input := "<complete_task><result>ok</result></complete_task><perform_action><action>click</action></perform_action>"
	parts := Parse(input)
	require.Len(t, parts, 2)
	assert.Equal(t, schemas.PartCompleteTask, parts[0].PartType())
	assert.Equal(t, schemas.PartPerformAction, parts[1].PartType())
}

func TestExtractFirstAction(t *testing.T) {
	input := "noise <perform_action><action>click</action><coordinate>1,2</coordinate></perform_action> <perform_action><action>type</action></perform_action>"
	action := ExtractFirstAction(input)
	require.NotNil(t, action)
	assert.Equal(t, "click", action.Action)
	assert.Equal(t, "1,2", action.Coordinate)

	assert.Nil(t, ExtractFirstAction("no actions here"))
	assert.Nil(t, ExtractFirstAction("<perform_action><action>click</action>"))
}

// FuzzParse asserts the total-function property: no input may panic the
// scanner, and every produced part must be one of the known union members.
func FuzzParse(f *testing.F) {
	f.Add("plain text")
	f.Add("<perform_action><action>click</action></perform_action>")
	f.Add("<perform_action>")
	f.Add("</complete_task><complete_task>")
	f.Add("<perform_action_result><omni_parser>[</omni_parser></perform_action_result>")

	f.Fuzz(func(t *testing.T, input string) {
		for _, part := range Parse(input) {
			switch part.PartType() {
			case schemas.PartText, schemas.PartFollowupQuestion, schemas.PartCompleteTask,
				schemas.PartPerformAction, schemas.PartActionResult:
			default:
				t.Fatalf("unknown part type %q", part.PartType())
			}
		}
	})
}
