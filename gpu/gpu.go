//go:build !nogpu

// Package gpu registers the GPU accelerator for the splat pipeline's
// data-parallel stages.
//
// Import this package to run the distance and projection kernels as
// wgpu/hal compute dispatches, keeping only the back-to-front sort on
// the CPU. If GPU initialization fails (no Vulkan available), the
// registration is silently skipped and every stage runs on the CPU.
//
// Usage:
//
//	import _ "github.com/gogpu/splat/gpu" // enable GPU stages
package gpu

import (
	"github.com/gogpu/splat"
	"github.com/gogpu/splat/backend/native"
	"github.com/gogpu/splat/gpucompute"
)

func init() {
	if err := splat.RegisterAccelerator(&native.Accelerator{}); err != nil {
		splat.Logger().Warn("splat: GPU accelerator not available", "err", err)
	}
}

// SetDeviceProvider configures the accelerator to use a shared GPU
// device from an external provider (e.g., gogpu). The provider must also
// expose direct HAL access (HalDevice/HalQueue) for the compute kernels;
// gpucontext hosts do.
//
// Call this after registering the accelerator and before the first
// pipeline update.
func SetDeviceProvider(provider gpucompute.DeviceHandle) error {
	return splat.SetAcceleratorDeviceProvider(provider)
}
