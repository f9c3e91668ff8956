package llm

import "context"

// Turn is one prior conversation line handed to the model.
type Turn struct {
	Role    string
	Content string
}

// Reply is the model's raw text plus its token cost for quota accounting.
type Reply struct {
	Text      string
	TokenCost int
}

// Gateway is the single suspension point of the pipeline. Any failure is
// fatal for the current message; retries are a deployment concern.
type Gateway interface {
	Generate(ctx context.Context, message string, history []Turn, instructions string) (Reply, error)
}
