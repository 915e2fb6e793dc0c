package gpu

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Backend names accepted by NewManager.
const (
	BackendNaive   = "naive"
	BackendBlocked = "blocked"
)

var constructors = map[string]func(*zap.Logger) Backend{
	BackendNaive:   func(l *zap.Logger) Backend { return NewCPUBackend(l) },
	BackendBlocked: func(l *zap.Logger) Backend { return NewBlockedBackend(l) },
}

// Backends lists the selectable backend names.
func Backends() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Manager handles backend selection and lifecycle
type Manager struct {
	backend Backend
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewManager creates and initializes the named backend. An empty name
// selects the blocked backend.
func NewManager(name string, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if name == "" {
		name = BackendBlocked
	}

	newBackend, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("unknown backend: %s", name)
	}
	backend := newBackend(logger.Named("gpu"))
	if !backend.IsAvailable() {
		return nil, fmt.Errorf("backend %s is not available", name)
	}
	if err := backend.Initialize(); err != nil {
		_ = backend.Cleanup()
		return nil, fmt.Errorf("failed to initialize %s backend: %w", name, err)
	}

	return &Manager{backend: backend, logger: logger}, nil
}

// GetBackend returns the current backend
func (m *Manager) GetBackend() Backend {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.backend
}

// MatrixMultiply performs matrix multiplication using the selected backend
func (mgr *Manager) MatrixMultiply(a, b []float32, m, k, n int) ([]float32, error) {
	backend := mgr.GetBackend()
	if backend == nil {
		return nil, fmt.Errorf("no backend available")
	}
	return backend.MatrixMultiply(a, b, m, k, n)
}

// GetDeviceInfo returns device information from the current backend
func (m *Manager) GetDeviceInfo() DeviceInfo {
	backend := m.GetBackend()
	if backend == nil {
		return DeviceInfo{Name: "No backend available"}
	}
	return backend.GetDeviceInfo()
}

// Cleanup releases resources held by the current backend
func (m *Manager) Cleanup() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.backend != nil {
		if err := m.backend.Cleanup(); err != nil {
			return err
		}
		m.backend = nil
	}
	return nil
}

// GetBackendType returns the selected backend name, or "none" after Cleanup.
func (m *Manager) GetBackendType() string {
	backend := m.GetBackend()
	if backend == nil {
		return "none"
	}
	return backend.Name()
}
