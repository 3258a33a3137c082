package loaders

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/df07/go-pathtracer/pkg/scene"
)

// ResolveScenePath maps a "file:<name>" id or a bare name to a scene file in
// scenesDir. Paths that already name an existing scene file are returned as is.
func ResolveScenePath(id, scenesDir string) (string, error) {
	if scene.IsSceneFile(id) {
		if _, err := os.Stat(id); err == nil {
			return id, nil
		}
	}

	name := strings.TrimPrefix(id, "file:")
	files, err := scene.ListSceneFiles(scenesDir)
	if err != nil {
		return "", err
	}
	for _, info := range files {
		stem := strings.TrimSuffix(filepath.Base(info.FilePath), filepath.Ext(info.FilePath))
		if stem == name || filepath.Base(info.FilePath) == name {
			return info.FilePath, nil
		}
	}
	return "", fmt.Errorf("%w: %q", scene.ErrUnknownScene, id)
}

// CreateScene builds the scene named by id: a built-in scene id, a "file:<name>"
// id from scenesDir, or a path to a scene file.
func CreateScene(id, scenesDir string, aspectRatio float64, seed int64) (*scene.Scene, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty scene name", scene.ErrUnknownScene)
	}
	if !strings.HasPrefix(id, "file:") {
		s, err := scene.Create(id, aspectRatio, seed)
		if err == nil || !errors.Is(err, scene.ErrUnknownScene) {
			return s, err
		}
	}

	path, err := ResolveScenePath(id, scenesDir)
	if err != nil {
		return nil, err
	}
	return LoadScene(path, aspectRatio)
}
