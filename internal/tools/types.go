// Package tools holds the scene-mutation tools the model may call and the
// registry that validates and executes them.
//
// Each tool takes loosely typed arguments straight from a model function
// call, decodes them into a typed argument struct, clamps and normalizes
// every value, and answers with a scene.Envelope. Tools never return Go
// errors: malformed input is reported as a BAD_CALL envelope.
//
// Architecture:
//
//	ToolCall → Registry.Get(name) → decodeArgs → Validator.Run(kind) → scene.Envelope
package tools

import (
	"context"
	"time"

	"promptcanvas/internal/scene"
)

// ToolCategory classifies tools for catalog grouping.
type ToolCategory string

const (
	// CategoryScene covers background and text mutations.
	CategoryScene ToolCategory = "/scene"

	// CategoryImage covers tools that resolve or validate remote images.
	CategoryImage ToolCategory = "/image"

	// CategoryProtocol is for the catch-all that rejects unsupported requests.
	CategoryProtocol ToolCategory = "/protocol"
)

// Kind identifies one operation in the closed set of scene tools.
type Kind int

const (
	KindUnknown Kind = iota
	KindChangeBackground
	KindSpawnText
	KindEditText
	KindSpawnImage
	KindEditImage
	KindDeleteElements
	KindUnsupportedRequest
)

var kindNames = map[Kind]string{
	KindChangeBackground:   "change_background",
	KindSpawnText:          "spawn_text",
	KindEditText:           "edit_text",
	KindSpawnImage:         "spawn_image",
	KindEditImage:          "edit_image",
	KindDeleteElements:     "delete_elements",
	KindUnsupportedRequest: "unsupported_request",
}

// Kinds lists every known kind in declaration order.
var Kinds = []Kind{
	KindChangeBackground,
	KindSpawnText,
	KindEditText,
	KindSpawnImage,
	KindEditImage,
	KindDeleteElements,
	KindUnsupportedRequest,
}

// String returns the tool name the model uses for k.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseKind maps a tool name to its Kind.
func ParseKind(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return k, true
		}
	}
	return KindUnknown, false
}

// Property describes a single parameter property for JSON schema.
type Property struct {
	Type        string   `json:"type" yaml:"type"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Default     any      `json:"default,omitempty" yaml:"default,omitempty"`
	Minimum     *float64 `json:"minimum,omitempty" yaml:"minimum,omitempty"`
	Maximum     *float64 `json:"maximum,omitempty" yaml:"maximum,omitempty"`
	// Items describes array element schema (required for type="array")
	Items *PropertyItems `json:"items,omitempty" yaml:"items,omitempty"`
}

// PropertyItems describes the schema for array elements.
type PropertyItems struct {
	Type string `json:"type" yaml:"type"`
}

// ToolSchema defines the JSON schema for tool arguments.
// This enables LLM tool calling with proper validation.
type ToolSchema struct {
	// Required lists parameters that must be provided.
	Required []string `json:"required" yaml:"required"`

	// Properties describes each parameter.
	Properties map[string]Property `json:"properties" yaml:"properties"`

	// Order is the declaration order of Properties.
	Order []string `json:"-" yaml:"-"`
}

// ExecuteFunc is the signature for tool execution. The envelope is always
// meaningful; a non-nil error only explains a BAD_CALL envelope.
type ExecuteFunc func(ctx context.Context, args map[string]any) (scene.Envelope, error)

// Tool defines one operation the model can call.
type Tool struct {
	// Name is the unique identifier for the tool, as the model sees it.
	Name string

	// Kind is the closed-set identity of the tool.
	Kind Kind

	// Description explains what the tool does.
	// Sent to the model as part of the function declaration.
	Description string

	// Category classifies the tool for catalog grouping.
	Category ToolCategory

	// Execute runs the tool with the given arguments.
	Execute ExecuteFunc

	// Schema defines the expected arguments.
	Schema ToolSchema
}

// Validate checks if the tool definition is valid.
func (t *Tool) Validate() error {
	if t.Name == "" {
		return ErrToolNameEmpty
	}
	if t.Execute == nil {
		return ErrToolExecuteNil
	}
	return nil
}

// ToolResult wraps the envelope of one tool execution with metadata.
type ToolResult struct {
	// ToolName identifies which tool was executed.
	ToolName string

	// Envelope is the tool's answer.
	Envelope scene.Envelope

	// Err explains a BAD_CALL envelope. Nil otherwise.
	Err error

	// Duration is how long execution took.
	Duration time.Duration
}

// IsSuccess returns true if the tool produced a success envelope.
func (r *ToolResult) IsSuccess() bool {
	return r.Envelope.OK()
}
