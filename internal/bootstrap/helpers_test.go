package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codex-k8s/kindctl/internal/config"
	"github.com/codex-k8s/kindctl/internal/env"
	"github.com/codex-k8s/kindctl/internal/shell/shelltest"
)

func newTestEnv(t *testing.T, fake *shelltest.Fake) *Env {
	t.Helper()
	cfg, err := config.Load(config.LoadOptions{Environ: env.Vars{}})
	require.NoError(t, err)
	cfg.ProjectRoot = t.TempDir()

	e := NewEnv(cfg, fake, slog.New(slog.NewTextHandler(io.Discard, nil)))
	e.Sleep = func(context.Context, time.Duration) error { return nil }
	return e
}

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func indexOf(calls []string, want string) int {
	for i, c := range calls {
		if c == want {
			return i
		}
	}
	return -1
}
