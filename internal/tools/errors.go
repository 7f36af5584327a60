package tools

import "errors"

// Registration and lookup failures. Argument failures are wrapped into the
// ToolResult.Err of a BAD_CALL result rather than returned.
var (
	ErrToolNotFound          = errors.New("tool not registered")
	ErrToolNameEmpty         = errors.New("tool has no name")
	ErrToolExecuteNil        = errors.New("tool has no execute func")
	ErrToolAlreadyRegistered = errors.New("tool name taken")
	ErrUnknownKind           = errors.New("unknown tool kind")

	ErrMissingRequiredArg = errors.New("missing required argument")
	ErrInvalidArgType     = errors.New("invalid argument type")
)
