//go:build !cgo

package allocator

import (
	"fmt"

	"github.com/tmarsh-oss/go-drmoutput/internal/logging"
)

// GBM is unavailable in a cgo-disabled build, and IsGBMAvailable reports
// this. SelectKind does not consult IsGBMAvailable: when it picks KindGBM
// in such a build, NewGBM returns an error and no SHM or dumb allocator
// is chosen in its place.
type GBM struct{}

func NewGBM(drmFD int, logger *logging.Logger) (*GBM, error) {
	return nil, fmt.Errorf("allocator(gbm): built without cgo, GBM is unavailable")
}

func (g *GBM) Capabilities() Capabilities {
	return Capabilities{}
}

func (g *GBM) CreateBuffer(width, height, format uint32, modifiers []uint64) (*Backing, error) {
	return nil, fmt.Errorf("allocator(gbm): built without cgo, GBM is unavailable")
}

func (g *GBM) Destroy() error {
	return nil
}

// IsGBMAvailable reports whether this build can construct a working GBM
// allocator.
func IsGBMAvailable() bool {
	return false
}
