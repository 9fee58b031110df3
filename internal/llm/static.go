package llm

import "context"

// StaticClient answers every prompt with the same reply. Used for local runs
// without provider credentials.
type StaticClient struct {
	Reply string
}

func (c StaticClient) Model() string { return "static" }

func (c StaticClient) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		kind, _ := classifyTransport(err)
		return "", &Error{Kind: kind, Provider: "static", Err: err}
	}
	return c.Reply, nil
}
