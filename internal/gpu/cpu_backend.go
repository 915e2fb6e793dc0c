package gpu

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// CPUBackend is the naive triple-loop GEMM with float32 accumulation.
type CPUBackend struct {
	logger      *zap.Logger
	initialized bool
}

// NewCPUBackend creates a new CPU backend instance
func NewCPUBackend(logger *zap.Logger) *CPUBackend {
	return &CPUBackend{
		logger: logger,
	}
}

// Name returns "naive".
func (c *CPUBackend) Name() string {
	return BackendNaive
}

// Initialize prepares the CPU backend for use
func (c *CPUBackend) Initialize() error {
	if c.initialized {
		return nil
	}
	c.initialized = true
	c.logger.Info("CPU backend initialized", zap.String("backend", c.Name()))
	return nil
}

// Cleanup releases any resources (none for CPU backend)
func (c *CPUBackend) Cleanup() error {
	c.initialized = false
	return nil
}

// IsAvailable checks if the backend is available (always true for CPU)
func (c *CPUBackend) IsAvailable() bool {
	return true
}

// GetDeviceInfo returns device information for CPU
func (c *CPUBackend) GetDeviceInfo() DeviceInfo {
	return cpuDeviceInfo()
}

// MatrixMultiply implements C = A * B where A is m×k, B is k×n, and C is m×n
func (c *CPUBackend) MatrixMultiply(a, b []float32, m, k, n int) ([]float32, error) {
	if !c.initialized {
		return nil, fmt.Errorf("CPU backend not initialized")
	}
	if err := validateDims(a, b, m, k, n); err != nil {
		return nil, err
	}

	result := make([]float32, m*n)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			sum := float32(0.0)
			for l := 0; l < k; l++ {
				sum += a[i*k+l] * b[l*n+j]
			}
			result[i*n+j] = sum
		}
	}

	return result, nil
}

func validateDims(a, b []float32, m, k, n int) error {
	if m <= 0 || k <= 0 || n <= 0 {
		return fmt.Errorf("invalid dimensions m=%d k=%d n=%d", m, k, n)
	}
	if len(a) != m*k {
		return fmt.Errorf("matrix A size mismatch: expected %d, got %d", m*k, len(a))
	}
	if len(b) != k*n {
		return fmt.Errorf("matrix B size mismatch: expected %d, got %d", k*n, len(b))
	}
	return nil
}

func cpuDeviceInfo() DeviceInfo {
	return DeviceInfo{
		Name:              fmt.Sprintf("CPU (%s, %d cores)", runtime.GOARCH, runtime.NumCPU()),
		TotalMemory:       getTotalSystemMemory(),
		AvailableMemory:   getAvailableSystemMemory(),
		ComputeCapability: "N/A",
		DriverVersion:     runtime.Version(),
	}
}

const (
	defaultTotalMemory     = 8 * 1024 * 1024 * 1024 // 8GB
	defaultAvailableMemory = 4 * 1024 * 1024 * 1024 // 4GB
)

// getTotalSystemMemory returns total system memory in bytes, or the default
// value when /proc/meminfo cannot be read.
func getTotalSystemMemory() int64 {
	info, err := readMeminfo("/proc/meminfo")
	if err != nil || info["MemTotal"] == 0 {
		return defaultTotalMemory
	}
	return info["MemTotal"]
}

// getAvailableSystemMemory returns available system memory in bytes, or the
// default value when /proc/meminfo cannot be read.
func getAvailableSystemMemory() int64 {
	info, err := readMeminfo("/proc/meminfo")
	if err != nil || info["MemAvailable"] == 0 {
		return defaultAvailableMemory
	}
	return info["MemAvailable"]
}

func readMeminfo(path string) (map[string]int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseMeminfo(f)
}

// parseMeminfo reads "Key: value kB" lines into byte counts.
func parseMeminfo(r io.Reader) (map[string]int64, error) {
	info := make(map[string]int64)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, rest, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			continue
		}
		v, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			continue
		}
		if len(fields) > 1 && fields[1] == "kB" {
			v *= 1024
		}
		info[strings.TrimSpace(key)] = v
	}
	return info, scanner.Err()
}
