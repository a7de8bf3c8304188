// Package loader reads scene files into the shared in-memory scene
// representation. OBJ, glTF (text and binary) and the Blender-exported
// crts container are supported; every path normalizes into the same
// mesh / instance / material shape.
package loader

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/aobake/aobake/core"
	"github.com/aobake/aobake/log"
)

var (
	ErrUnsupportedFormat = errors.New("loader: unsupported scene format")
	ErrNotTriangles      = errors.New("loader: primitive is not triangles")
	ErrBadHeader         = errors.New("loader: malformed header")
)

// Load dispatches on the file extension. The returned scene has
// materials validated (a default is synthesized for unassigned
// instances) and always carries at least one light.
func Load(path string, logger log.Logger) (*core.Scene, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	runID := uuid.New()
	logger.Infof("loading %s (run %s)", path, runID)

	var scene *core.Scene
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".obj":
		scene, err = loadOBJ(path, logger)
	case ".gltf", ".glb":
		scene, err = loadGLTF(path, logger)
	case ".crts":
		scene, err = loadCRTS(path, logger)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	if scene.ValidateMaterials() {
		logger.Warnf("no materials assigned for some objects, generating a default")
	}
	if scene.EnsureLight() {
		logger.Warnf("no lights found in scene, generating one")
	}
	if err := scene.Validate(); err != nil {
		return nil, fmt.Errorf("loader: %s: %w", path, err)
	}
	return scene, nil
}
