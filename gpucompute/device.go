package gpucompute

import (
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// DeviceHandle provides GPU device access from the host application.
//
// The host (e.g. a gogpu.App) implements DeviceHandle and passes it to
// gpu.SetDeviceProvider, which hands it to the registered accelerator so
// the splat kernels run on the shared device instead of creating their
// own. DeviceHandle is an alias for gpucontext.DeviceProvider so any
// gpucontext host works unchanged.
type DeviceHandle = gpucontext.DeviceProvider

// NullDeviceHandle is a DeviceHandle that provides no device. Useful in
// tests that exercise the no-GPU path.
type NullDeviceHandle struct{}

// Device returns nil.
func (NullDeviceHandle) Device() gpucontext.Device { return nil }

// Queue returns nil.
func (NullDeviceHandle) Queue() gpucontext.Queue { return nil }

// Adapter returns nil.
func (NullDeviceHandle) Adapter() gpucontext.Adapter { return nil }

// SurfaceFormat returns the undefined format.
func (NullDeviceHandle) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatUndefined
}

var _ DeviceHandle = NullDeviceHandle{}
