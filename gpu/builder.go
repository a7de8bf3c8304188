package gpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/aobake/aobake/bvh"
	"github.com/aobake/aobake/core"
	"github.com/aobake/aobake/log"
)

var ErrMapFailed = errors.New("gpu: buffer map failed")

// BLASOffset locates one mesh's blob inside the concatenated node and
// triangle arrays, in element units.
type BLASOffset struct {
	Node uint32
	Tri  uint32
}

// ConcatBLAS packs every finalized BLAS into single node and triangle
// blobs and reports where each one landed.
func ConcatBLAS(blas []*bvh.BLAS) (nodes, tris []byte, offsets []BLASOffset, err error) {
	offsets = make([]BLASOffset, len(blas))
	nodeCount := uint32(0)
	triCount := uint32(0)
	for i, b := range blas {
		offsets[i] = BLASOffset{Node: nodeCount, Tri: triCount}
		nb, err := b.NodesBytes()
		if err != nil {
			return nil, nil, nil, fmt.Errorf("blas %d: %w", i, err)
		}
		tb, err := b.TrianglesBytes()
		if err != nil {
			return nil, nil, nil, fmt.Errorf("blas %d: %w", i, err)
		}
		nodes = append(nodes, nb...)
		tris = append(tris, tb...)
		nodeCount += uint32(b.NodeCount())
		triCount += uint32(b.TriangleCount())
	}
	return nodes, tris, offsets, nil
}

// ApplyOffsets stamps each instance descriptor with its BLAS location.
func ApplyOffsets(descs []bvh.InstanceDesc, scene *core.Scene, offsets []BLASOffset) {
	for i := range descs {
		off := offsets[scene.Instances[i].MeshID]
		descs[i].NodeOffset = off.Node
		descs[i].TriOffset = off.Tri
	}
}

// Builder owns the device-side acceleration structure and bake
// buffers. Every upload stage submits its own copy and blocks until
// the device drains it, so each structure is resident before the next
// stage starts reading it.
type Builder struct {
	Device *wgpu.Device
	Queue  *wgpu.Queue
	Log    log.Logger

	NodesBuf     *wgpu.Buffer
	TrisBuf      *wgpu.Buffer
	TLASBuf      *wgpu.Buffer
	InstancesBuf *wgpu.Buffer
	GBufferBuf   *wgpu.Buffer
	ParamsBuf    *wgpu.Buffer
	OutputBuf    *wgpu.Buffer
}

func NewBuilder(device *wgpu.Device, queue *wgpu.Queue, logger log.Logger) *Builder {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Builder{Device: device, Queue: queue, Log: logger}
}

// uploadBytes moves data into a new device-local buffer through a
// mapped staging buffer, then waits for the copy to retire.
func (b *Builder) uploadBytes(label string, data []byte, usage wgpu.BufferUsage) (*wgpu.Buffer, error) {
	size := uint64(len(data))
	if size%4 != 0 {
		size += 4 - size%4
	}
	if size == 0 {
		size = 4
	}

	staging, err := b.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            label + " staging",
		Size:             size,
		Usage:            wgpu.BufferUsageCopySrc,
		MappedAtCreation: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%s staging: %w", label, err)
	}
	copy(staging.GetMappedRange(0, uint(size)), data)
	staging.Unmap()

	dst, err := b.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: usage | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		staging.Release()
		return nil, fmt.Errorf("%s: %w", label, err)
	}

	encoder, err := b.Device.CreateCommandEncoder(nil)
	if err != nil {
		staging.Release()
		return nil, err
	}
	encoder.CopyBufferToBuffer(staging, 0, dst, 0, size)
	cmd, err := encoder.Finish(nil)
	if err != nil {
		staging.Release()
		return nil, err
	}
	b.Queue.Submit(cmd)
	b.Device.Poll(true, nil)
	staging.Release()

	b.Log.Debugf("uploaded %s: %d bytes", label, len(data))
	return dst, nil
}

// UploadAccel stages the scene's acceleration structures. BLAS blobs,
// the TLAS and the instance table go up as separate synchronized
// stages, mirroring a build / compact / finalize round trip per
// structure.
func (b *Builder) UploadAccel(blas []*bvh.BLAS, tlas *bvh.TLAS, descs []bvh.InstanceDesc, scene *core.Scene) error {
	nodes, tris, offsets, err := ConcatBLAS(blas)
	if err != nil {
		return err
	}
	ApplyOffsets(descs, scene, offsets)

	if b.NodesBuf, err = b.uploadBytes("blas nodes", nodes, wgpu.BufferUsageStorage); err != nil {
		return err
	}
	if b.TrisBuf, err = b.uploadBytes("blas triangles", tris, wgpu.BufferUsageStorage); err != nil {
		return err
	}
	if b.TLASBuf, err = b.uploadBytes("tlas nodes", tlas.Bytes(), wgpu.BufferUsageStorage); err != nil {
		return err
	}

	inst := make([]byte, 0, len(descs)*bvh.InstanceDescSize)
	for i := range descs {
		inst = append(inst, descs[i].ToBytes()...)
	}
	if b.InstancesBuf, err = b.uploadBytes("instances", inst, wgpu.BufferUsageStorage); err != nil {
		return err
	}
	return nil
}

// UploadBakeInputs stages the rasterized G-buffer and the bake
// parameter block.
func (b *Builder) UploadBakeInputs(gbuffer []byte, params core.AtlasParams) error {
	var err error
	if b.GBufferBuf, err = b.uploadBytes("gbuffer", gbuffer, wgpu.BufferUsageStorage); err != nil {
		return err
	}
	if b.ParamsBuf, err = b.uploadBytes("bake params", packParams(params), wgpu.BufferUsageUniform); err != nil {
		return err
	}

	outSize := uint64(params.Width) * uint64(params.Height) * 4
	b.OutputBuf, err = b.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "ao output",
		Size:  outSize,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc,
	})
	return err
}

// Struct BakeParams {
//   width: u32;
//   height: u32;
//   samples: u32;
//   ao_length: f32;
// } -> 16 bytes
func packParams(p core.AtlasParams) []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:], p.Width)
	binary.LittleEndian.PutUint32(buf[4:], p.Height)
	binary.LittleEndian.PutUint32(buf[8:], p.Samples)
	binary.LittleEndian.PutUint32(buf[12:], math.Float32bits(p.AOLength))
	return buf
}

// ReadOutput copies the AO result back to the host.
func (b *Builder) ReadOutput(params core.AtlasParams) ([]float32, error) {
	size := uint64(params.Width) * uint64(params.Height) * 4
	readback, err := b.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "ao readback",
		Size:  size,
		Usage: wgpu.BufferUsageCopyDst | wgpu.BufferUsageMapRead,
	})
	if err != nil {
		return nil, err
	}
	defer readback.Release()

	encoder, err := b.Device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, err
	}
	encoder.CopyBufferToBuffer(b.OutputBuf, 0, readback, 0, size)
	cmd, err := encoder.Finish(nil)
	if err != nil {
		return nil, err
	}
	b.Queue.Submit(cmd)

	var status wgpu.BufferMapAsyncStatus
	err = readback.MapAsync(wgpu.MapModeRead, 0, size, func(s wgpu.BufferMapAsyncStatus) {
		status = s
	})
	if err != nil {
		return nil, err
	}
	b.Device.Poll(true, nil)
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, ErrMapFailed
	}

	raw := readback.GetMappedRange(0, uint(size))
	out := make([]float32, params.Width*params.Height)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	readback.Unmap()
	return out, nil
}

// Release drops every device buffer the builder owns.
func (b *Builder) Release() {
	for _, buf := range []*wgpu.Buffer{
		b.NodesBuf, b.TrisBuf, b.TLASBuf, b.InstancesBuf,
		b.GBufferBuf, b.ParamsBuf, b.OutputBuf,
	} {
		if buf != nil {
			buf.Release()
		}
	}
	b.NodesBuf, b.TrisBuf, b.TLASBuf = nil, nil, nil
	b.InstancesBuf, b.GBufferBuf, b.ParamsBuf, b.OutputBuf = nil, nil, nil, nil
}
