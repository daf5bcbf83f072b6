package model

// #region imports
import (
	"context"
	"errors"
)

// #endregion

// #region errors

// ErrConfiguration is the root of all model-construction failures caused by
// missing or invalid configuration (absent credentials, unknown backend).
var ErrConfiguration = errors.New("model configuration error")

// ErrConnection is the root of all failures reaching a backend endpoint.
var ErrConnection = errors.New("model connection error")

// #endregion

// #region message

// Chat message roles as used on the wire by both backends.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall is a structured action marker attached to an assistant message.
type ToolCall struct {
	Name      string
	Arguments string
}

// Message is one entry of a model conversation.
type Message struct {
	Role      string
	Content   string
	ToolCalls []ToolCall
}

// ActionProducing reports whether the message carries a non-empty
// tool-invocation marker, i.e. whether it represents an action the model took.
func (m Message) ActionProducing() bool {
	return len(m.ToolCalls) > 0
}

// #endregion

// #region handle

// Response is the result of a single generation call.
type Response struct {
	Message Message
	Model   string
}

// Handle is an opaque, long-lived reference to a configured model: given a
// conversation, it produces a response. Handles are created once per session,
// shared across all attempts, and never mutated after construction.
type Handle interface {
	Generate(ctx context.Context, msgs []Message) (Response, error)
	ModelName() string
}

// #endregion
