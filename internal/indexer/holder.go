package indexer

import (
	"sync/atomic"

	apperrors "github.com/Adithya-Monish-Kumar-K/catalog-suggest/pkg/errors"
)

// Holder publishes the current Snapshot to concurrent readers. Readers never
// block; a swap is a single atomic store.
type Holder struct {
	current atomic.Pointer[Snapshot]
}

// Load returns the live snapshot, or ErrIndexNotReady before the first build.
func (h *Holder) Load() (*Snapshot, error) {
	s := h.current.Load()
	if s == nil {
		return nil, apperrors.ErrIndexNotReady
	}
	return s, nil
}

// Swap installs s and returns the snapshot it replaced, if any.
func (h *Holder) Swap(s *Snapshot) *Snapshot {
	return h.current.Swap(s)
}

func (h *Holder) Ready() bool {
	return h.current.Load() != nil
}
