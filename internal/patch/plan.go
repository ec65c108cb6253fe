// Package patch defines LLM-generated patch plans and applies them to a
// repository with dry-run previews, per-run backups and atomic writes.
package patch

import "encoding/json"

// Op types the planner may emit.
const (
	OpReplaceText  = "replace_text"
	OpReplaceRange = "replace_range"
	OpDeleteRange  = "delete_range"
	OpInsertAfter  = "insert_after"
	OpInsertBefore = "insert_before"
	OpAppend       = "append"
)

// Op is one edit operation on a file. Which fields matter depends on Type.
type Op struct {
	Type string `json:"type"`

	// replace_text
	Find    string `json:"find,omitempty"`
	Replace string `json:"replace,omitempty"`
	Count   *int   `json:"count,omitempty"` // nil = replace all

	// replace_range / delete_range (1-based, inclusive)
	StartLine int    `json:"start_line,omitempty"`
	EndLine   int    `json:"end_line,omitempty"`
	NewText   string `json:"new_text,omitempty"`

	// insert_after / insert_before
	Match      string `json:"match,omitempty"`
	InsertText string `json:"insert_text,omitempty"`
	Once       *bool  `json:"once,omitempty"` // nil = true

	// append
	Text string `json:"text,omitempty"`
}

// FileChange is the set of ops for one file.
type FileChange struct {
	Path string `json:"path"`
	Ops  []Op   `json:"ops"`
}

// Plan is the planner's full output.
type Plan struct {
	Files []FileChange `json:"files"`
}

// ParsePlan decodes a plan from raw JSON.
func ParsePlan(data []byte) (*Plan, error) {
	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// JSONSchema is the structured-output schema the planner is constrained to.
// Kept as a raw document so it round-trips into the API request untouched.
const JSONSchema = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "files": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "properties": {
          "path": {"type": "string"},
          "ops": {
            "type": "array",
            "items": {
              "type": "object",
              "additionalProperties": false,
              "properties": {
                "type": {"type": "string", "enum": ["replace_text", "replace_range", "insert_after"]},
                "find": {"type": "string"},
                "replace": {"type": "string"},
                "count": {"type": ["integer", "null"]},
                "start_line": {"type": "integer"},
                "end_line": {"type": "integer"},
                "new_text": {"type": "string"},
                "match": {"type": "string"},
                "insert_text": {"type": "string"},
                "once": {"type": "boolean"}
              },
              "required": ["type"]
            }
          }
        },
        "required": ["path", "ops"]
      }
    }
  },
  "required": ["files"]
}`
