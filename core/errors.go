package core

import "errors"

var (
	// ErrMissingNormals means a geometry has no normals; the bake cannot
	// reconstruct hemisphere bases without them.
	ErrMissingNormals = errors.New("normals are required on all geometries")

	// ErrMultipleInstances means one mesh is placed more than once, which
	// the atlas bake does not support.
	ErrMultipleInstances = errors.New("multiple instances of one mesh are not supported by the bake")
)
