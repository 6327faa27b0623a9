package presenter

import "errors"

var (
	// ErrNotConfigured indicates an operation that requires a bound surface
	// was called before BindSurface or BindSurfaceContext.
	ErrNotConfigured = errors.New("presenter: no surface bound")

	// ErrUninitializedPipeline indicates Present was called before
	// EnsureInitialized built the blit pipeline.
	ErrUninitializedPipeline = errors.New("presenter: pipeline not initialized")

	// ErrDeviceLost indicates the GPU device became unusable mid-session.
	// Callers should Reset and re-bind.
	ErrDeviceLost = errors.New("presenter: device lost")

	// ErrExternalSurface indicates a surface-ownership operation (such as
	// Resize) was attempted while the presenter is bound to a caller-owned
	// surface context.
	ErrExternalSurface = errors.New("presenter: surface is externally owned")
)
