package embedding

import (
	"context"
	"fmt"

	"github.com/tenetdb/tenet/internal/domain"
)

const (
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"
	ProviderMock   = "mock"
	ProviderNone   = "none"
)

// NewClient creates an embedding client for the named provider. "none"
// returns nil, which downstream consumers treat as "skip similarity work".
func NewClient(provider, apiKey string) (domain.EmbeddingClient, error) {
	switch provider {
	case ProviderOpenAI:
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for the openai embedding provider")
		}
		return NewOpenAIClient(apiKey), nil
	case ProviderLocal, "":
		return NewLocalClient(), nil
	case ProviderMock:
		return NewMockClient(), nil
	case ProviderNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (valid options: openai, local, mock, none)", provider)
	}
}

// MockClient returns a fixed vector for any input. Tests that need
// "everything is similar" behavior use it directly.
type MockClient struct{}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (c *MockClient) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}
