package vm

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// Heap: integer cells addressed through opaque handles
// ---------------------------------------------------------------------------

var heapLog = commonlog.GetLogger("jil.heap")

// Handle is an opaque reference to a heap allocation. It is never a cell
// offset and stays valid while compaction moves the allocation around.
type Handle int

// handleSpan bounds the random part of a generated handle.
const handleSpan = 1 << 30

// Allocation is a contiguous run of cells owned by one handle.
type Allocation struct {
	Start int
	Size  int
}

// End returns the offset one past the last cell of the allocation.
func (a Allocation) End() int { return a.Start + a.Size }

// AllocationEntry pairs an allocation with its handle.
type AllocationEntry struct {
	Handle Handle
	Allocation
}

// Heap is a fixed-capacity arena of integer cells plus the index from
// handles to regions. Allocation is a bump allocator; Free compacts the
// allocations that follow the freed region. Every public method runs under
// the heap lock, so a move and its index update are never observed apart.
type Heap struct {
	mu        sync.Mutex
	cells     []int
	allocs    map[Handle]Allocation
	allocated int // sum of live allocation sizes
	highWater int // end of the highest live allocation
	rng       *rand.Rand
}

// NewHeap creates a heap with the given number of cells.
func NewHeap(capacity int) *Heap {
	seed := uint64(time.Now().UnixNano())
	return NewHeapWithSeed(capacity, seed)
}

// NewHeapWithSeed creates a heap whose handle sequence is reproducible.
func NewHeapWithSeed(capacity int, seed uint64) *Heap {
	if capacity < 0 {
		capacity = 0
	}
	return &Heap{
		cells:  make([]int, capacity),
		allocs: make(map[Handle]Allocation),
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Capacity returns the total number of cells.
func (h *Heap) Capacity() int {
	return len(h.cells)
}

// generateHandle returns a handle that is not live and cannot be mistaken
// for a cell offset. Caller holds h.mu.
func (h *Heap) generateHandle() Handle {
	for {
		id := Handle(len(h.cells) + 1 + h.rng.IntN(handleSpan))
		if _, taken := h.allocs[id]; !taken {
			return id
		}
	}
}

func (h *Heap) lookup(handle Handle) (Allocation, error) {
	a, ok := h.allocs[handle]
	if !ok {
		return Allocation{}, &Error{Kind: KindExecution, Msg: fmt.Sprintf("%d is not an allocation", handle), Err: ErrUnknownHandle}
	}
	return a, nil
}

// Malloc reserves size contiguous cells at the high-water mark.
func (h *Heap) Malloc(size int) (Handle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if size < 1 {
		return 0, Executionf("size cannot be less than one")
	}
	if len(h.cells)-h.highWater < size {
		return 0, Executionf("out of memory for allocation")
	}

	id := h.generateHandle()
	a := Allocation{Start: h.highWater, Size: size}
	h.allocs[id] = a
	h.allocated += size
	h.highWater = a.End()

	heapLog.Debugf("malloc %d cells at %d -> handle %d", size, a.Start, id)
	return id, nil
}

// Free releases an allocation, zeroes its cells and compacts the
// allocations that lie after it. Handles are never reassigned.
func (h *Heap) Free(handle Handle) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	freed, err := h.lookup(handle)
	if err != nil {
		return err
	}
	delete(h.allocs, handle)
	h.allocated -= freed.Size
	h.clear(freed.Start, freed.End())
	heapLog.Debugf("free handle %d (%d cells at %d)", handle, freed.Size, freed.Start)

	h.compact(freed)

	h.highWater = 0
	for _, a := range h.allocs {
		if a.End() > h.highWater {
			h.highWater = a.End()
		}
	}
	return nil
}

// compact slides every allocation after the freed region down to close the
// gap in front of it. A gap of exactly one cell is left in place. Caller
// holds h.mu.
func (h *Heap) compact(freed Allocation) {
	entries := h.sortedEntries()

	prevEnd := 0
	for _, e := range entries {
		if e.End() <= freed.Start && e.End() > prevEnd {
			prevEnd = e.End()
		}
	}

	for _, e := range entries {
		if e.Start < freed.End() {
			continue
		}
		gap := e.Start - prevEnd
		if gap <= 1 {
			prevEnd = e.End()
			continue
		}

		newStart := prevEnd
		if e.Size == 1 {
			v := h.cells[e.Start]
			h.cells[e.Start] = 0
			h.cells[newStart] = v
		} else {
			data := make([]int, e.Size)
			copy(data, h.cells[e.Start:e.End()])
			h.clear(e.Start, e.End())
			copy(h.cells[newStart:], data)
		}
		h.allocs[e.Handle] = Allocation{Start: newStart, Size: e.Size}
		heapLog.Debugf("compact handle %d: %d -> %d", e.Handle, e.Start, newStart)

		prevEnd = newStart + e.Size
	}
}

func (h *Heap) clear(start, end int) {
	for i := start; i < end; i++ {
		h.cells[i] = 0
	}
}

// sortedEntries returns the live allocations in ascending start order.
// Caller holds h.mu.
func (h *Heap) sortedEntries() []AllocationEntry {
	entries := make([]AllocationEntry, 0, len(h.allocs))
	for id, a := range h.allocs {
		entries = append(entries, AllocationEntry{Handle: id, Allocation: a})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Start < entries[j].Start
	})
	return entries
}

// Deref reads the first cell of an allocation.
func (h *Heap) Deref(handle Handle) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	a, err := h.lookup(handle)
	if err != nil {
		return 0, err
	}
	return h.cells[a.Start], nil
}

// Assign writes the first cell of an allocation.
func (h *Heap) Assign(handle Handle, value int) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	a, err := h.lookup(handle)
	if err != nil {
		return err
	}
	h.cells[a.Start] = value
	return nil
}

// DerefArray returns a copy of every cell of an allocation.
func (h *Heap) DerefArray(handle Handle) ([]int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	a, err := h.lookup(handle)
	if err != nil {
		return nil, err
	}
	out := make([]int, a.Size)
	copy(out, h.cells[a.Start:a.End()])
	return out, nil
}

// AssignArray writes values into an allocation, truncating to whichever of
// the allocation and the slice is shorter.
func (h *Heap) AssignArray(handle Handle, values []int) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	a, err := h.lookup(handle)
	if err != nil {
		return err
	}
	copy(h.cells[a.Start:a.End()], values)
	return nil
}

// DerefString renders an allocation's cells as characters. Trailing zero
// cells are padding and are not part of the string.
func (h *Heap) DerefString(handle Handle) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	a, err := h.lookup(handle)
	if err != nil {
		return "", err
	}
	end := a.End()
	for end > a.Start && h.cells[end-1] == 0 {
		end--
	}
	runes := make([]rune, 0, end-a.Start)
	for _, c := range h.cells[a.Start:end] {
		runes = append(runes, rune(c))
	}
	return string(runes), nil
}

// AssignString stores text as character codes, truncated to the allocation
// size. Cells past the end of the text are zeroed.
func (h *Heap) AssignString(handle Handle, text string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	a, err := h.lookup(handle)
	if err != nil {
		return err
	}
	runes := []rune(text)
	for i := 0; i < a.Size; i++ {
		if i < len(runes) {
			h.cells[a.Start+i] = int(runes[i])
		} else {
			h.cells[a.Start+i] = 0
		}
	}
	return nil
}

// Size returns the cell count of an allocation.
func (h *Heap) Size(handle Handle) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	a, err := h.lookup(handle)
	if err != nil {
		return 0, err
	}
	return a.Size, nil
}

// HeapStats summarizes heap usage.
type HeapStats struct {
	Capacity    int
	Allocated   int
	HighWater   int
	Allocations int
}

// Stats returns current usage figures.
func (h *Heap) Stats() HeapStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	return HeapStats{
		Capacity:    len(h.cells),
		Allocated:   h.allocated,
		HighWater:   h.highWater,
		Allocations: len(h.allocs),
	}
}

// Allocations returns the live allocations in ascending start order.
func (h *Heap) Allocations() []AllocationEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sortedEntries()
}

// StringLength is the number of cells needed to hold text. Empty text
// still takes one cell.
func StringLength(text string) int {
	n := len([]rune(text))
	if n == 0 {
		return 1
	}
	return n
}
