package embed_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/raphaelgruber/gamesearch/internal/embed"
)

// TestEmbedAgainstOllamaContainer runs the full pipeline against a real
// Ollama instance. Slow: it pulls the embedding model into the container.
func TestEmbedAgainstOllamaContainer(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "ollama/ollama:latest",
			ExposedPorts: []string{"11434/tcp"},
			WaitingFor:   wait.ForListeningPort("11434/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err, "should start ollama container")
	defer func() {
		_ = container.Terminate(context.Background())
	}()

	code, _, err := container.Exec(ctx, []string{"ollama", "pull", "nomic-embed-text"})
	require.NoError(t, err)
	require.Zero(t, code, "model pull should succeed")

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "11434/tcp")
	require.NoError(t, err)

	p := embed.New(embed.Config{
		BaseURL: fmt.Sprintf("http://%s:%s", host, port.Port()),
	}, nil)

	require.NoError(t, p.Healthcheck(ctx), "endpoint should answer the healthcheck")

	vectors, err := p.Embed(ctx, []string{"a cozy farming game", "a competitive shooter"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Len(t, vectors[0], 768, "nomic-embed-text emits 768-dim vectors")
	assert.NotEqual(t, vectors[0], vectors[1])
}
