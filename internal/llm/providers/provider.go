package providers

import "context"

type Message struct {
	Role    string
	Content string
}

// Provider abstracts the language-completion and embedding service.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
	// ChatJSON issues a completion in forced-JSON-object mode; the returned
	// string is the raw JSON document produced by the model.
	ChatJSON(ctx context.Context, system, user string) (string, error)
	Embed(ctx context.Context, input []string) ([][]float32, error)
	Name() string
}
