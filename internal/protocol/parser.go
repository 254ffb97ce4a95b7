// File: internal/protocol/parser.go
// Description: Tokenizes raw model responses into typed message parts using the
// tag-delimited exploration protocol. The scanner is a total function: any input,
// including malformed or truncated tag soup, produces a part sequence and never
// an error.
package protocol

import (
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/cartographer-cli/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// tagSpec describes one protocol tag: its literal name and an extractor that
// turns the tag body into a typed part. Tags do not nest, so the scanner can
// treat every pair as flat literals.
type tagSpec struct {
	name    string
	extract func(body string) schemas.MessagePart
}

// grammar is the fixed tag table, in no particular order: the scanner always
// picks whichever opening tag occurs earliest in the remaining input.
var grammar = []tagSpec{
	{name: "ask_followup_question", extract: extractFollowupQuestion},
	{name: "complete_task", extract: extractCompleteTask},
	{name: "perform_action", extract: extractPerformAction},
	{name: "perform_action_result", extract: extractActionResult},
}

// Parse tokenizes text into message parts in left-to-right document order.
// A part is emitted only once both its opening and matching closing tag are
// present; an unmatched opening tag degrades to literal text.
func Parse(text string) []schemas.MessagePart {
	var parts []schemas.MessagePart
	rest := text

	for rest != "" {
		spec, openAt := earliestOpenTag(rest)
		if spec == nil {
			appendText(&parts, rest)
			break
		}

		open := "<" + spec.name + ">"
		closing := "</" + spec.name + ">"

		bodyStart := openAt + len(open)
		closeAt := strings.Index(rest[bodyStart:], closing)
		if closeAt < 0 {
			// No closing tag anywhere: the opening tag itself becomes literal
			// text and scanning resumes right after it.
			appendText(&parts, rest[:openAt])
			appendText(&parts, open)
			rest = rest[bodyStart:]
			continue
		}

		appendText(&parts, rest[:openAt])
		body := rest[bodyStart : bodyStart+closeAt]
		parts = append(parts, spec.extract(body))
		rest = rest[bodyStart+closeAt+len(closing):]
	}

	return parts
}

// ExtractFirstAction returns the first perform_action part of text, or nil when
// the response carries none. Callers needing only the immediate action can use
// this instead of full tokenization.
func ExtractFirstAction(text string) *schemas.PerformActionPart {
	for _, part := range Parse(text) {
		if action, ok := part.(schemas.PerformActionPart); ok {
			return &action
		}
	}
	return nil
}

// earliestOpenTag finds the grammar tag whose opening literal occurs first in s.
func earliestOpenTag(s string) (*tagSpec, int) {
	var best *tagSpec
	bestAt := -1
	for i := range grammar {
		at := strings.Index(s, "<"+grammar[i].name+">")
		if at < 0 {
			continue
		}
		if bestAt < 0 || at < bestAt {
			best = &grammar[i]
			bestAt = at
		}
	}
	return best, bestAt
}

// appendText emits s as a text part unless it is blank.
func appendText(parts *[]schemas.MessagePart, s string) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return
	}
	*parts = append(*parts, schemas.TextPart{Content: trimmed})
}

// field returns the trimmed body of the first <name>...</name> pair inside
// body, and whether the pair was present at all.
func field(body, name string) (string, bool) {
	open := "<" + name + ">"
	closing := "</" + name + ">"

	start := strings.Index(body, open)
	if start < 0 {
		return "", false
	}
	start += len(open)
	end := strings.Index(body[start:], closing)
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(body[start : start+end]), true
}

func extractFollowupQuestion(body string) schemas.MessagePart {
	question, ok := field(body, "question")
	if !ok {
		// A bare body is still a question; keep the content rather than drop it.
		question = strings.TrimSpace(body)
	}
	return schemas.FollowupQuestionPart{Question: question}
}

func extractCompleteTask(body string) schemas.MessagePart {
	part := schemas.CompleteTaskPart{}
	if result, ok := field(body, "result"); ok {
		part.Result = result
	} else {
		part.Result = strings.TrimSpace(body)
	}
	part.Command, _ = field(body, "command")
	return part
}

func extractPerformAction(body string) schemas.MessagePart {
	part := schemas.PerformActionPart{}
	part.Action, _ = field(body, "action")
	part.URL, _ = field(body, "url")
	part.Coordinate, _ = field(body, "coordinate")
	part.Text, _ = field(body, "text")
	part.Key, _ = field(body, "key")
	part.About, _ = field(body, "about_this_action")
	part.MarkerNumber, _ = field(body, "marker_number")
	return part
}

func extractActionResult(body string) schemas.MessagePart {
	part := schemas.ActionResultPart{}
	if status, ok := field(body, "action_status"); ok && status == string(schemas.StatusSuccess) {
		part.Status = schemas.StatusSuccess
	} else {
		part.Status = schemas.StatusError
	}
	part.Message, _ = field(body, "action_message")
	part.Screenshot, _ = field(body, "screenshot")
	if raw, ok := field(body, "omni_parser"); ok {
		part.Elements = decodeElements(raw)
	}
	return part
}

// decodeElements parses the omni_parser payload, a JSON array of elements.
// Malformed payloads degrade to an empty list; the protocol layer never fails.
func decodeElements(raw string) []schemas.ParsedElement {
	if raw == "" {
		return nil
	}
	var elements []schemas.ParsedElement
	if err := json.UnmarshalFromString(raw, &elements); err != nil {
		return nil
	}
	return elements
}
