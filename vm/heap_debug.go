package vm

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// ---------------------------------------------------------------------------
// Heap inspection: text dumps and CBOR snapshots
// ---------------------------------------------------------------------------

var snapshotEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	snapshotEncMode = em
}

// Dump writes a human-readable listing of the heap to w.
func (h *Heap) Dump(w io.Writer) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, err := fmt.Fprintf(w, "total allocated space: %d of %d\n", h.allocated, len(h.cells)); err != nil {
		return err
	}
	for _, e := range h.sortedEntries() {
		if _, err := fmt.Fprintf(w, "<id: %d, start: %d, size: %d>\n", e.Handle, e.Start, e.Size); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "memory: %v\n", h.cells[:h.highWater])
	return err
}

// SnapshotAllocation is one allocation in a HeapSnapshot.
type SnapshotAllocation struct {
	Handle int `cbor:"handle"`
	Start  int `cbor:"start"`
	Size   int `cbor:"size"`
}

// HeapSnapshot is a point-in-time copy of a heap. Cells past the high-water
// mark are always zero and are omitted.
type HeapSnapshot struct {
	Capacity    int                  `cbor:"capacity"`
	Cells       []int                `cbor:"cells"`
	Allocations []SnapshotAllocation `cbor:"allocations"`
}

// Snapshot copies the heap state.
func (h *Heap) Snapshot() *HeapSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := &HeapSnapshot{
		Capacity: len(h.cells),
		Cells:    append([]int(nil), h.cells[:h.highWater]...),
	}
	for _, e := range h.sortedEntries() {
		s.Allocations = append(s.Allocations, SnapshotAllocation{Handle: int(e.Handle), Start: e.Start, Size: e.Size})
	}
	return s
}

// MarshalSnapshot serializes a snapshot to canonical CBOR.
func MarshalSnapshot(s *HeapSnapshot) ([]byte, error) {
	return snapshotEncMode.Marshal(s)
}

// UnmarshalSnapshot deserializes a snapshot from CBOR bytes.
func UnmarshalSnapshot(data []byte) (*HeapSnapshot, error) {
	var s HeapSnapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("vm: unmarshal heap snapshot: %w", err)
	}
	return &s, nil
}
