package llm

import "context"

// Role of a chat message.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Image is an inline image attached to a user message.
type Image struct {
	MIMEType string
	Data     []byte
}

// Message is one turn of an inference request.
type Message struct {
	Role   Role
	Text   string
	Images []Image
}

// CompletionRequest is the provider-neutral inference call.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	Temperature float32
	// JSON asks the provider to constrain output to a single JSON object.
	JSON bool
}

// Client is the inference capability: complete(model, messages) -> text.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req CompletionRequest) (string, error)

func (f ClientFunc) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	return f(ctx, req)
}
