package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogueYAML = `
images:
  - name: main-line-rust_workspace
    dockerfile: Dockerfile.rust_workspace
    purpose: setup
  - name: main-line-backend_lib
    dockerfile: Dockerfile.backend_lib
    dependencies: [main-line-rust_workspace]
    purpose: setup
  - name: main-line-openapi_spec
    dockerfile: Dockerfile.openapi_spec
    dependencies: [main-line-backend_lib]
    purpose: data
    artifact:
      path: openapi_spec/openapi_spec.json
      dest: [openapi_spec.json]
  - dockerfile: Dockerfile.backend
    dependencies: [main-line-backend_lib]
    purpose: application
`

func TestParseImages(t *testing.T) {
	imgs, err := ParseImages([]byte(catalogueYAML))
	require.NoError(t, err)
	require.Len(t, imgs.Images, 4)

	var names []string
	for _, img := range imgs.Buildable() {
		names = append(names, img.Name)
	}
	assert.Equal(t, []string{"main-line-rust_workspace", "main-line-backend_lib", "main-line-openapi_spec"}, names)

	data := imgs.Data()
	require.Len(t, data, 1)
	assert.Equal(t, "openapi_spec/openapi_spec.json", data[0].Artifact.Path)
}

func TestParseImagesErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown field",
			yaml: "images:\n  - name: a\n    dockerfile: Dockerfile.a\n    purpose: setup\n    is_intermediate: true\n",
			want: "field is_intermediate not found",
		},
		{
			name: "missing dockerfile",
			yaml: "images:\n  - name: a\n    purpose: setup\n",
			want: "dockerfile is required",
		},
		{
			name: "unknown purpose",
			yaml: "images:\n  - name: a\n    dockerfile: Dockerfile.a\n    purpose: runtime\n",
			want: "unknown purpose",
		},
		{
			name: "unnamed data image",
			yaml: "images:\n  - dockerfile: Dockerfile.a\n    purpose: data\n    artifact: {path: x, dest: [y]}\n",
			want: "has no name",
		},
		{
			name: "data image without dest",
			yaml: "images:\n  - name: a\n    dockerfile: Dockerfile.a\n    purpose: data\n    artifact: {path: x}\n",
			want: "at least one artifact.dest",
		},
		{
			name: "artifact on setup image",
			yaml: "images:\n  - name: a\n    dockerfile: Dockerfile.a\n    purpose: setup\n    artifact: {path: x, dest: [y]}\n",
			want: "only valid for data images",
		},
		{
			name: "dependency declared later",
			yaml: "images:\n  - name: a\n    dockerfile: Dockerfile.a\n    dependencies: [b]\n    purpose: setup\n  - name: b\n    dockerfile: Dockerfile.b\n    purpose: setup\n",
			want: "image a depends on b which is not defined before it",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseImages([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseImagesEmpty(t *testing.T) {
	imgs, err := ParseImages(nil)
	require.NoError(t, err)
	assert.Empty(t, imgs.Images)
}

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("FROM scratch\n"), 0o600))
	}
}

func TestCheckComprehensiveness(t *testing.T) {
	imgs, err := ParseImages([]byte(catalogueYAML))
	require.NoError(t, err)

	root := t.TempDir()
	writeFiles(t, root, "Dockerfile.rust_workspace", "Dockerfile.backend_lib", "Dockerfile.openapi_spec", "Dockerfile.backend")
	require.NoError(t, os.Mkdir(filepath.Join(root, "nested"), 0o755))
	writeFiles(t, filepath.Join(root, "nested"), "Dockerfile.ignored")
	assert.NoError(t, imgs.CheckComprehensiveness(root))

	writeFiles(t, root, "Dockerfile.frontend")
	require.NoError(t, os.Remove(filepath.Join(root, "Dockerfile.backend")))
	err = imgs.CheckComprehensiveness(root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing Dockerfiles in catalogue: Dockerfile.frontend")
	assert.Contains(t, err.Error(), "catalogue lists absent Dockerfiles: Dockerfile.backend")
}

func TestLoadImages(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "images.yaml")
	require.NoError(t, os.WriteFile(path, []byte(catalogueYAML), 0o600))
	writeFiles(t, root, "Dockerfile.rust_workspace", "Dockerfile.backend_lib", "Dockerfile.openapi_spec", "Dockerfile.backend")

	imgs, err := LoadImages(path, root)
	require.NoError(t, err)
	assert.Len(t, imgs.Images, 4)

	_, err = LoadImages(filepath.Join(root, "absent.yaml"), root)
	assert.ErrorContains(t, err, "read image catalogue")
}
