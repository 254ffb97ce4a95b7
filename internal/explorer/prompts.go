// File: internal/explorer/prompts.go
// Description: Instruction and wire-format synthesis for model turns.
package explorer

import (
	"fmt"
	"strings"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/cartographer-cli/api/schemas"
)

// exploreInstruction is the user turn opening the exploration of a page.
func exploreInstruction(url string) string {
	if url == "" {
		return "Explore the current page. Enumerate every interactive element you can see, then report with a perform_action_result or complete_task."
	}
	return fmt.Sprintf("Explore the page at %s. Enumerate every interactive element you can see, then report with a perform_action_result or complete_task.", url)
}

// directedInstruction synthesizes the task for one frontier item: navigate to
// the item's page and act on its element.
func directedInstruction(item *schemas.ExploreQueueItem) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Navigate to %s, then act on the element %q at coordinates (%.0f, %.0f).",
		item.URL, item.Element.Text, item.Element.Coordinates.X, item.Element.Coordinates.Y)
	if item.Element.About != "" {
		fmt.Fprintf(&sb, " The element is described as: %s.", item.Element.About)
	}
	sb.WriteString(" Report the outcome, then complete the task.")
	return sb.String()
}

// followupNudge answers a model followup question. The session is autonomous;
// there is no human in the loop to ask.
const followupNudge = "There is no operator available to answer. Use your best judgment and continue the task."

// continueNudge keeps the conversation moving after a turn that carried neither
// an action nor a completion.
const continueNudge = "Continue."

// formatActionResult renders a driver response in the tag protocol so the model
// reads its own action's outcome on the next turn.
func formatActionResult(resp schemas.ActionResponse, elements []schemas.ParsedElement) string {
	var sb strings.Builder
	sb.WriteString("<perform_action_result><action_status>")
	sb.WriteString(string(resp.Status))
	sb.WriteString("</action_status><action_message>")
	sb.WriteString(resp.Message)
	sb.WriteString("</action_message>")
	if len(elements) > 0 {
		if raw, err := json.Marshal(elements); err == nil {
			sb.WriteString("<omni_parser>")
			sb.Write(raw)
			sb.WriteString("</omni_parser>")
		}
	}
	sb.WriteString("</perform_action_result>")
	return sb.String()
}
