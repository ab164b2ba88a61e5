package tools

import (
	"context"
	"fmt"
	"strings"
)

// DeepThinkTool gives the model a fixed reasoning scaffold for the user's
// task. It makes no external calls.
type DeepThinkTool struct{}

var _ Tool = DeepThinkTool{}

func (DeepThinkTool) ID() ID                 { return DeepThinkID }
func (DeepThinkTool) Title() string          { return "Deep think" }
func (DeepThinkTool) EnabledByDefault() bool { return false }

func (DeepThinkTool) Description() string {
	return "Frames the question as a goal with a step by step plan before answering."
}

func (DeepThinkTool) Invoke(ctx context.Context, query string, tc Context) (Result, error) {
	task := strings.TrimSpace(query)
	if task == "" {
		return Result{ToolID: DeepThinkID, Content: "Task is empty. Provide a concrete task to analyze."}, nil
	}
	content := fmt.Sprintf(`Goal:
- %s

Reasoning:
- Clarify the expected outcome.
- Identify the assumptions the answer depends on.
- Break the answer into small verifiable steps.
- Check each step against the retrieved passages.

Execution plan:
- Answer the core question first.
- Add supporting detail only where the passages support it.`, task)
	return Result{ToolID: DeepThinkID, Content: content}, nil
}
