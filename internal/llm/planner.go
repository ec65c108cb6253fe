package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/acttech/autoupdater/internal/patch"
)

const systemInstructions = `You are a code-change planner.
You MUST output ONLY valid JSON matching the provided JSON Schema.

Goal:
- Choose the correct file(s) and create precise patch ops.
- Be minimal: change as little as possible.
- Do NOT invent files that do not exist in the provided repo list/snippets.
- If the request is unclear, output {"files": []}.
`

// PlanPatches asks the model for a patch plan that accomplishes goal given
// the prepared repo context. The response is constrained to the patch plan
// schema and parsed before being returned.
func (c *Client) PlanPatches(ctx context.Context, model, goal, contextText string) (*patch.Plan, error) {
	content, err := c.complete(ctx, chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemInstructions},
			{Role: "user", Content: fmt.Sprintf("GOAL:\n%s\n\nCONTEXT:\n%s\n", goal, contextText)},
		},
		ResponseFormat: &jsonSchemaFormat{
			Type:       "json_schema",
			JSONSchema: json.RawMessage(`{"name":"patch_plan","schema":` + patch.JSONSchema + `}`),
		},
	})
	if err != nil {
		return nil, err
	}

	plan, err := patch.ParsePlan([]byte(stripFence(content)))
	if err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	return plan, nil
}

// stripFence removes a ```json ... ``` wrapper some models still emit even
// under schema constraints.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
