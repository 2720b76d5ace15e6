package ai

import "context"

// Client sends a system and a user prompt and returns the model's JSON
// object as text.
type Client interface {
	Complete(ctx context.Context, system, user string) (string, error)
}
