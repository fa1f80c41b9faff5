package splat

import "errors"

// ErrCapacityExceeded indicates the source's active splat count is larger
// than the capacity the pipeline was built for. The caller must rebuild
// with a larger source via SetSource before updating again; the pipeline
// never silently truncates.
var ErrCapacityExceeded = errors.New("splat: splat count exceeds pipeline capacity")

// ErrNotReady indicates an accelerator's asynchronous readback was not
// available this frame. The pipeline skips the update and keeps the
// previous vertex batch and draw range; the caller may simply draw again.
var ErrNotReady = errors.New("splat: sort readback not ready")

// ErrFallbackToCPU indicates a registered accelerator cannot handle this
// frame. The pipeline transparently falls back to the CPU stages.
var ErrFallbackToCPU = errors.New("splat: falling back to CPU pipeline")

// ErrNoSource indicates Update was called before SetSource.
var ErrNoSource = errors.New("splat: pipeline has no splat source")
