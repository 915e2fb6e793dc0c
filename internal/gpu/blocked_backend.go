package gpu

import (
	"fmt"

	"go.uber.org/zap"
)

// Tile sizes of the blocked kernel, matching the launch configuration of
// the GPU kernel it mirrors.
const (
	BlockM = 64
	BlockN = 64
	BlockK = 32
)

// BlockedBackend computes C one BlockM×BlockN tile at a time, stepping
// through K in BlockK slices with a float32 accumulator per tile. Edge
// tiles are masked the same way the GPU kernel masks out-of-range loads.
type BlockedBackend struct {
	logger      *zap.Logger
	initialized bool
}

// NewBlockedBackend creates a blocked backend.
func NewBlockedBackend(logger *zap.Logger) *BlockedBackend {
	return &BlockedBackend{logger: logger}
}

func (bb *BlockedBackend) Name() string {
	return BackendBlocked
}

func (bb *BlockedBackend) Initialize() error {
	if bb.initialized {
		return nil
	}
	bb.initialized = true
	bb.logger.Info("Blocked backend initialized",
		zap.Int("block_m", BlockM),
		zap.Int("block_n", BlockN),
		zap.Int("block_k", BlockK))
	return nil
}

func (bb *BlockedBackend) Cleanup() error {
	bb.initialized = false
	return nil
}

func (bb *BlockedBackend) IsAvailable() bool {
	return true
}

func (bb *BlockedBackend) GetDeviceInfo() DeviceInfo {
	return cpuDeviceInfo()
}

func (bb *BlockedBackend) MatrixMultiply(a, b []float32, m, k, n int) ([]float32, error) {
	if !bb.initialized {
		return nil, fmt.Errorf("blocked backend not initialized")
	}
	if err := validateDims(a, b, m, k, n); err != nil {
		return nil, err
	}

	c := make([]float32, m*n)
	var acc [BlockM * BlockN]float32

	for i0 := 0; i0 < m; i0 += BlockM {
		iEnd := min(i0+BlockM, m)
		for j0 := 0; j0 < n; j0 += BlockN {
			jEnd := min(j0+BlockN, n)
			clear(acc[:])

			for l0 := 0; l0 < k; l0 += BlockK {
				lEnd := min(l0+BlockK, k)
				for i := i0; i < iEnd; i++ {
					row := acc[(i-i0)*BlockN:]
					for l := l0; l < lEnd; l++ {
						av := a[i*k+l]
						bRow := b[l*n : l*n+n]
						for j := j0; j < jEnd; j++ {
							row[j-j0] += av * bRow[j]
						}
					}
				}
			}

			for i := i0; i < iEnd; i++ {
				copy(c[i*n+j0:i*n+jEnd], acc[(i-i0)*BlockN:(i-i0)*BlockN+(jEnd-j0)])
			}
		}
	}
	return c, nil
}
