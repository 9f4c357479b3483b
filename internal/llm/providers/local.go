package providers

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
)

const localEmbedDim = 16

// LocalProvider is a deterministic offline stand-in used when no API key is
// configured and by tests.
type LocalProvider struct{}

func NewLocalProvider() *LocalProvider {
	return &LocalProvider{}
}

func (l *LocalProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("no messages provided")
	}
	last := messages[len(messages)-1].Content
	return "[local-stub] " + strings.TrimSpace(last), nil
}

func (l *LocalProvider) ChatJSON(ctx context.Context, system, user string) (string, error) {
	return `{"queryType":"search","filters":{},"visualization":"none"}`, nil
}

func (l *LocalProvider) Embed(ctx context.Context, input []string) ([][]float32, error) {
	vectors := make([][]float32, len(input))
	for i, text := range input {
		vec := make([]float32, localEmbedDim)
		for _, token := range strings.Fields(strings.ToLower(text)) {
			h := fnv.New32a()
			_, _ = h.Write([]byte(token))
			vec[h.Sum32()%localEmbedDim]++
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func (l *LocalProvider) Name() string {
	return "local"
}
