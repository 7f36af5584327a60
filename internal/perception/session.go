// Package perception owns the conversation with the language model: one
// chat session per logical conversation, each configured with the system
// prompt and the scene tool declarations.
//
// A session turns a composed user message into the ordered list of function
// calls the model chose. It does not execute anything; dispatch does.
package perception

import (
	"context"
	"errors"

	"promptcanvas/internal/scene"
)

// DefaultSessionID is used for requests that carry no session identifier.
const DefaultSessionID = "default"

var (
	// ErrNoAPIKey is returned when a model client is built without credentials.
	ErrNoAPIKey = errors.New("model API key is not configured")

	// ErrManagerClosed is returned by Acquire after Close.
	ErrManagerClosed = errors.New("session manager is closed")
)

// Session is one conversation with the model. Implementations are not safe
// for concurrent use; SessionManager serializes access.
type Session interface {
	// Send submits message and returns the function calls of the reply, in
	// model order. A transport failure is a *scene.CodedError with
	// ErrModelUnavailable.
	Send(ctx context.Context, message string) ([]scene.ToolCall, error)
}

// SessionFunc adapts a function to Session.
type SessionFunc func(ctx context.Context, message string) ([]scene.ToolCall, error)

func (f SessionFunc) Send(ctx context.Context, message string) ([]scene.ToolCall, error) {
	return f(ctx, message)
}

// Factory creates the session for a conversation id.
type Factory func(ctx context.Context, id string) (Session, error)
