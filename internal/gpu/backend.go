package gpu

// DeviceInfo describes the device a backend computes on.
type DeviceInfo struct {
	Name              string `json:"name"`
	TotalMemory       int64  `json:"totalMemory"`     // in bytes
	AvailableMemory   int64  `json:"availableMemory"` // in bytes
	ComputeCapability string `json:"computeCapability"`
	DriverVersion     string `json:"driverVersion"`
}

// Backend is a GEMM implementation that can be checked against the
// reference product.
//
// Implementation notes:
// - MatrixMultiply must reject inputs whose lengths do not match the dimensions
// - Initialize must be called once before first use and is idempotent
// - Cleanup releases whatever Initialize acquired
type Backend interface {
	// Name is the identifier used to select the backend in configuration.
	Name() string

	// MatrixMultiply performs C = A * B where A is m×k, B is k×n and C is
	// m×n, all in row-major order.
	MatrixMultiply(a, b []float32, m, k, n int) ([]float32, error)

	// GetDeviceInfo returns information about the device.
	GetDeviceInfo() DeviceInfo

	// IsAvailable performs a quick check without heavy initialization.
	IsAvailable() bool

	Initialize() error

	Cleanup() error
}
