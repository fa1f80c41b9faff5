package splat

import (
	"errors"
	"sync"
)

// AcceleratedOp describes pipeline stages for GPU capability checking.
type AcceleratedOp uint32

const (
	// AccelDistance represents the per-splat distance-key stage.
	AccelDistance AcceleratedOp = 1 << iota

	// AccelProject represents the covariance projection stage.
	AccelProject
)

// Accelerator is an optional GPU execution provider for the
// data-parallel stages.
//
// When registered via RegisterAccelerator (or injected with
// WithAccelerator), the pipeline tries the accelerator first for each
// stage it claims to support. If a stage call returns ErrFallbackToCPU
// or any other error, the frame transparently falls back to the CPU
// implementation. ErrNotReady is the exception: it means the
// accelerator's asynchronous readback has not completed, so the whole
// frame update is skipped and the previous output stays in use.
//
// Implementations are provided by GPU backend packages. Users opt in
// via blank import:
//
//	import _ "github.com/gogpu/splat/gpu" // enables GPU stages
type Accelerator interface {
	// Name returns the accelerator name (e.g., "wgpu").
	Name() string

	// Init initializes GPU resources. Called once during registration.
	Init() error

	// Close releases GPU resources.
	Close()

	// CanAccelerate reports whether the accelerator supports the given
	// stage. A fast check used to skip the GPU entirely.
	CanAccelerate(op AcceleratedOp) bool

	// ComputeDistances fills keys[0:src.NumSplats()] with ordering keys
	// per the frame's sort mode. Returns ErrNotReady if a previous
	// frame's readback is still in flight.
	ComputeDistances(src SplatSource, params *FrameParameters, keys []float32) error

	// Project emits quads for every splat in order, writing slot i from
	// splat order[i]. Returns ErrFallbackToCPU if the batch cannot be
	// produced on the GPU.
	Project(src SplatSource, params *FrameParameters, order []uint32, batch *VertexBatch) error
}

// DeviceProviderAware is an optional interface for accelerators that can
// share a GPU device with an external provider (e.g., a gogpu window).
type DeviceProviderAware interface {
	SetDeviceProvider(provider any) error
}

var (
	accelMu sync.RWMutex
	accel   Accelerator
)

// RegisterAccelerator registers a GPU accelerator for optional GPU
// execution of the pipeline stages.
//
// Only one accelerator can be registered; subsequent calls replace the
// previous one. Init() is called during registration; on failure the
// accelerator is not registered and the error is returned.
func RegisterAccelerator(a Accelerator) error {
	if a == nil {
		return errors.New("splat: accelerator must not be nil")
	}
	if err := a.Init(); err != nil {
		return err
	}
	propagateLogger(a, Logger())
	accelMu.Lock()
	old := accel
	accel = a
	accelMu.Unlock()
	if old != nil {
		old.Close()
	}
	return nil
}

// RegisteredAccelerator returns the currently registered accelerator, or
// nil if none.
func RegisteredAccelerator() Accelerator {
	accelMu.RLock()
	defer accelMu.RUnlock()
	return accel
}

// SetAcceleratorDeviceProvider passes a shared GPU device provider to
// the registered accelerator. Returns an error if no accelerator is
// registered or it does not support device sharing.
func SetAcceleratorDeviceProvider(provider any) error {
	accelMu.RLock()
	a := accel
	accelMu.RUnlock()
	if a == nil {
		return errors.New("splat: no accelerator registered")
	}
	aware, ok := a.(DeviceProviderAware)
	if !ok {
		return errors.New("splat: accelerator does not support device sharing")
	}
	return aware.SetDeviceProvider(provider)
}
