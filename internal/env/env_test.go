package env

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeLaterWins(t *testing.T) {
	got := Merge(Vars{"A": "1", "B": "1"}, nil, Vars{"B": "2"})
	assert.Equal(t, Vars{"A": "1", "B": "2"}, got)
}

func TestLoadOptionalEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("# local\nKINDCTL_CLUSTER_NAME=dev\nexport KINDCTL_REGISTRY_HOST=\"127.0.0.1\"\n"), 0o600))

	vars, err := LoadOptionalEnvFile(path)
	require.NoError(t, err)
	assert.Equal(t, Vars{"KINDCTL_CLUSTER_NAME": "dev", "KINDCTL_REGISTRY_HOST": "127.0.0.1"}, vars)

	vars, err = LoadOptionalEnvFile(filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.Empty(t, vars)

	vars, err = LoadOptionalEnvFile("")
	require.NoError(t, err)
	assert.Empty(t, vars)
}

func TestFromOS(t *testing.T) {
	t.Setenv("KINDCTL_TEST_FROM_OS", "x=y")
	assert.Equal(t, "x=y", FromOS()["KINDCTL_TEST_FROM_OS"])
}
