package shelltest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codex-k8s/kindctl/internal/shell"
)

func TestFakeLongestPrefix(t *testing.T) {
	f := NewFake().
		On("docker", Response{Output: "generic"}).
		On("docker images -q", Response{Output: " abc123 \n"}).
		On("docker rmi", Response{Err: errors.New("in use")})
	ctx := context.Background()

	out, err := f.Output(ctx, shell.Command{Name: "docker", Args: []string{"images", "-q", "app"}})
	require.NoError(t, err)
	assert.Equal(t, "abc123", out)

	out, err = f.Output(ctx, shell.Command{Name: "docker", Args: []string{"ps"}})
	require.NoError(t, err)
	assert.Equal(t, "generic", out)

	assert.Error(t, f.Run(ctx, shell.Command{Name: "docker", Args: []string{"rmi", "app"}}))
	assert.NoError(t, f.Run(ctx, shell.Command{Name: "kind", Args: []string{"version"}}))

	assert.Equal(t, []string{"docker images -q app", "docker ps", "docker rmi app", "kind version"}, f.Calls())
	assert.True(t, f.Called("docker rmi"))
	assert.False(t, f.Called("helm"))
}
