// Package scene defines the wire-level data model shared by the validator,
// the turn dispatcher, and the HTTP layer: tool calls coming from the model,
// result envelopes going back to the renderer, and the typed payloads each
// scene mutation produces.
//
// Nothing in this package is persisted. Values are built for one dispatch
// step and handed straight back to the caller.
package scene

import (
	"encoding/json"
	"fmt"
)

// =============================================================================
// ERROR CODES
// =============================================================================

// ErrorCode is the machine-readable failure reason carried by an error envelope.
type ErrorCode string

const (
	// ErrBadCall reports malformed arguments: a required field is missing, an
	// argument has the wrong type, or mutually exclusive inputs were violated.
	ErrBadCall ErrorCode = "BAD_CALL"

	// ErrImageNotFound reports that an image could not be resolved or did not
	// pass validation. Timeouts, 404s and wrong content types all collapse here.
	ErrImageNotFound ErrorCode = "IMAGE_NOT_FOUND"

	// ErrUnsupportedCommand is returned by the unsupported_request catch-all.
	ErrUnsupportedCommand ErrorCode = "UNSUPPORTED_COMMAND"

	// ErrNoToolMatch is returned when the model produced no function calls.
	ErrNoToolMatch ErrorCode = "NO_TOOL_MATCH"

	// ErrModelUnavailable is a transport-level code used by the HTTP layer when
	// the model session itself fails. Validators never produce it.
	ErrModelUnavailable ErrorCode = "MODEL_UNAVAILABLE"
)

// Valid reports whether c is one of the known codes.
func (c ErrorCode) Valid() bool {
	switch c {
	case ErrBadCall, ErrImageNotFound, ErrUnsupportedCommand, ErrNoToolMatch, ErrModelUnavailable:
		return true
	}
	return false
}

// CodedError lets infrastructure errors carry an ErrorCode through wrapping.
type CodedError struct {
	Code ErrorCode
	Err  error
}

func (e *CodedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return string(e.Code)
}

func (e *CodedError) Unwrap() error {
	return e.Err
}

// ErrorCode returns the code for errors.As consumers.
func (e *CodedError) ErrorCode() ErrorCode {
	return e.Code
}

// NewCodedError wraps err with code.
func NewCodedError(code ErrorCode, err error) *CodedError {
	return &CodedError{Code: code, Err: err}
}

// =============================================================================
// TOOL CALLS AND ENVELOPES
// =============================================================================

// ToolCall is one function-call request produced by the model. It is not
// trusted: the name may be unknown and the arguments malformed.
type ToolCall struct {
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Status is the outcome marker on every envelope.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// ActionNone is the action name reported by every error envelope.
const ActionNone = "none"

// Envelope is the uniform result of a single validator operation.
// Exactly one of Payload and Error is meaningful, depending on Status.
type Envelope struct {
	Status  Status    `json:"status"`
	Action  string    `json:"action"`
	Payload any       `json:"payload"`
	Error   ErrorCode `json:"error"`
}

// Success builds a success envelope for action.
func Success(action string, payload any) Envelope {
	return Envelope{Status: StatusSuccess, Action: action, Payload: payload}
}

// Failure builds an error envelope. The action is always "none".
func Failure(code ErrorCode) Envelope {
	return Envelope{Status: StatusError, Action: ActionNone, Error: code}
}

// OK reports whether the envelope carries a success payload.
func (e Envelope) OK() bool {
	return e.Status == StatusSuccess
}

// MarshalJSON emits null for the unused side of the envelope.
func (e Envelope) MarshalJSON() ([]byte, error) {
	type wire struct {
		Status  Status  `json:"status"`
		Action  string  `json:"action"`
		Payload any     `json:"payload"`
		Error   *string `json:"error"`
	}
	w := wire{Status: e.Status, Action: e.Action}
	if e.OK() {
		w.Payload = e.Payload
	} else {
		code := string(e.Error)
		w.Error = &code
	}
	return json.Marshal(w)
}

// Action is one collected success in a turn's aggregate response.
type Action struct {
	Action  string `json:"action"`
	Payload any    `json:"payload"`
}

// TurnResult is the aggregate answer for one user turn: either a list of
// actions or a single error code, never both.
type TurnResult struct {
	Status  Status
	Actions []Action
	Error   ErrorCode
}

// TurnSuccess wraps the collected actions.
func TurnSuccess(actions []Action) TurnResult {
	if actions == nil {
		actions = []Action{}
	}
	return TurnResult{Status: StatusSuccess, Actions: actions}
}

// TurnFailure wraps a terminal error code.
func TurnFailure(code ErrorCode) TurnResult {
	return TurnResult{Status: StatusError, Error: code}
}

// OK reports whether the turn succeeded.
func (r TurnResult) OK() bool {
	return r.Status == StatusSuccess
}

// MarshalJSON produces {status, actions} on success and
// {status, action:"none", error} on failure.
func (r TurnResult) MarshalJSON() ([]byte, error) {
	if r.OK() {
		actions := r.Actions
		if actions == nil {
			actions = []Action{}
		}
		return json.Marshal(struct {
			Status  Status   `json:"status"`
			Actions []Action `json:"actions"`
		}{r.Status, actions})
	}
	return json.Marshal(struct {
		Status Status    `json:"status"`
		Action string    `json:"action"`
		Error  ErrorCode `json:"error"`
	}{r.Status, ActionNone, r.Error})
}
