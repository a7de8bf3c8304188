package app

import (
	"fmt"
	"path/filepath"

	"github.com/aobake/aobake/atlas"
	"github.com/aobake/aobake/bake"
	"github.com/aobake/aobake/bvh"
	"github.com/aobake/aobake/core"
	"github.com/aobake/aobake/gpu"
	"github.com/aobake/aobake/loader"
)

// Options configures one bake run.
type Options struct {
	ScenePath  string
	Samples    uint32
	AOLength   float32
	Resolution uint32 // atlas size cap, 0 for the default
	UseCPU     bool
}

// RunBake executes the whole pipeline: load, unwrap, remap, build the
// acceleration structures, rasterize the G-buffer and integrate, on the
// device unless the software path was requested. Device and queue may
// be nil for CPU runs.
func (a *App) RunBake(opts Options) (*bake.AOMap, *core.Scene, error) {
	logger := a.Log

	scene, err := loader.Load(opts.ScenePath, logger)
	if err != nil {
		return nil, nil, err
	}
	fmt.Println(scene.Summary(filepath.Base(opts.ScenePath)))

	if err := scene.RequireNormals(); err != nil {
		return nil, nil, err
	}
	if err := scene.CheckSingleInstancing(); err != nil {
		return nil, nil, err
	}

	// Unwrap and remap every geometry into the shared atlas.
	unwrapper := atlas.NewShelfUnwrapper()
	if opts.Resolution > 0 {
		unwrapper.MaxSize = int(opts.Resolution)
	}
	for mi := range scene.Meshes {
		for gi := range scene.Meshes[mi].Geometries {
			g := &scene.Meshes[mi].Geometries[gi]
			err := unwrapper.AddMesh(atlas.MeshDecl{
				Positions: g.Vertices,
				Normals:   g.Normals,
				UVs:       g.UVs,
				Indices:   g.Indices,
			})
			if err != nil {
				return nil, nil, fmt.Errorf("unwrap mesh %d geometry %d: %w", mi, gi, err)
			}
		}
	}
	atl, err := unwrapper.Generate()
	if err != nil {
		return nil, nil, err
	}
	logger.Infof("atlas %dx%d, %d charts", atl.Width, atl.Height, atl.ChartCount)
	if err := atlas.RemapScene(scene, atl); err != nil {
		return nil, nil, err
	}

	params := core.NewAtlasParams(atl.Width, atl.Height)
	if opts.Samples > 0 {
		params.Samples = opts.Samples
	}
	if opts.AOLength > 0 {
		params.AOLength = opts.AOLength
	}

	blas, err := bvh.BuildSceneBLAS(scene, logger)
	if err != nil {
		return nil, nil, err
	}
	tlas, err := bvh.BuildTLAS(scene, blas)
	if err != nil {
		return nil, nil, err
	}

	gb := bake.NewGBuffer(params.Width, params.Height)
	gb.Rasterize(scene)

	if opts.UseCPU || a.Device == nil {
		logger.Infof("baking on CPU: %dx%d, %d samples", params.Width, params.Height, params.Samples)
		tracer := bvh.NewTracer(scene, blas, tlas)
		return bake.Bake(tracer, gb, params), scene, nil
	}

	descs, err := bvh.BuildInstanceDescs(scene, blas)
	if err != nil {
		return nil, nil, err
	}
	builder := gpu.NewBuilder(a.Device, a.Queue, logger)
	if err := builder.UploadAccel(blas, tlas, descs, scene); err != nil {
		builder.Release()
		return nil, nil, err
	}
	session, err := gpu.NewBakeSession(builder, gb, params)
	if err != nil {
		builder.Release()
		return nil, nil, err
	}
	logger.Infof("baking on GPU: %dx%d, %d samples", params.Width, params.Height, params.Samples)
	m, err := session.Bake()
	if err != nil {
		session.Release()
		return nil, nil, err
	}
	if a.Window != nil {
		// Keep the session around so the frame loop can recompute.
		a.session = session
	} else {
		session.Release()
	}
	return m, scene, nil
}
