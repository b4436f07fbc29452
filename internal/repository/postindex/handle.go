package postindex

import (
	"sync/atomic"

	"github.com/vibeflow/feedrank/internal/domain"
)

// Handle is the published view of the current index. A rebuild constructs
// a full Index off to the side and swaps it in with one pointer store, so
// readers never observe a partially replaced index. Readers never block.
type Handle struct {
	ptr atomic.Pointer[Index]
}

// NewHandle creates an empty handle. Load fails with ErrNotReady until the
// first Swap.
func NewHandle() *Handle { return &Handle{} }

// Load returns the current index, or ErrNotReady before the first build.
func (h *Handle) Load() (*Index, error) {
	idx := h.ptr.Load()
	if idx == nil {
		return nil, domain.ErrNotReady
	}
	return idx, nil
}

// Swap publishes a freshly built index, replacing the previous one wholesale.
func (h *Handle) Swap(idx *Index) { h.ptr.Store(idx) }

// Ready reports whether an index has been published.
func (h *Handle) Ready() bool { return h.ptr.Load() != nil }
