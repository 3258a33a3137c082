package loaders

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/df07/go-pathtracer/pkg/scene"
)

func writeScenesDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "three.yaml"), []byte(yamlScene), 0o644))
	return dir
}

func TestCreateScene_Builtin(t *testing.T) {
	s, err := CreateScene("default", t.TempDir(), 16.0/9.0, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, s.GetPrimitiveCount())
}

func TestCreateScene_FileID(t *testing.T) {
	dir := writeScenesDir(t)

	for _, id := range []string{"file:three", "three", "three.yaml", filepath.Join(dir, "three.yaml")} {
		t.Run(id, func(t *testing.T) {
			s, err := CreateScene(id, dir, 2.0, 1)
			require.NoError(t, err)
			assert.Equal(t, "three", s.Name)
		})
	}
}

func TestCreateScene_Unknown(t *testing.T) {
	dir := writeScenesDir(t)

	for _, id := range []string{"", "nonexistent", "file:nonexistent", "missing.yaml"} {
		_, err := CreateScene(id, dir, 2.0, 1)
		assert.ErrorIs(t, err, scene.ErrUnknownScene, "id %q", id)
	}
}
