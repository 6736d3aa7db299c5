package vm

import (
	"bytes"
	"errors"
	"math/rand/v2"
	"reflect"
	"strings"
	"testing"
)

func mustMalloc(t *testing.T, h *Heap, size int) Handle {
	t.Helper()
	id, err := h.Malloc(size)
	if err != nil {
		t.Fatalf("Malloc(%d): %v", size, err)
	}
	return id
}

func TestHeapMallocBumpsHighWater(t *testing.T) {
	h := NewHeapWithSeed(16, 1)
	a := mustMalloc(t, h, 3)
	b := mustMalloc(t, h, 2)

	entries := h.Allocations()
	if len(entries) != 2 {
		t.Fatalf("len(Allocations) = %d, want 2", len(entries))
	}
	if entries[0].Handle != a || entries[0].Start != 0 {
		t.Errorf("first allocation = %+v, want handle %d at 0", entries[0], a)
	}
	if entries[1].Handle != b || entries[1].Start != 3 {
		t.Errorf("second allocation = %+v, want handle %d at 3", entries[1], b)
	}

	stats := h.Stats()
	if stats.Allocated != 5 || stats.HighWater != 5 || stats.Capacity != 16 {
		t.Errorf("Stats = %+v", stats)
	}
}

func TestHeapHandlesAreNotOffsets(t *testing.T) {
	h := NewHeapWithSeed(8, 7)
	seen := make(map[Handle]bool)
	for i := 0; i < 8; i++ {
		id := mustMalloc(t, h, 1)
		if int(id) <= h.Capacity() {
			t.Errorf("handle %d is within the cell range", id)
		}
		if seen[id] {
			t.Errorf("handle %d issued twice", id)
		}
		seen[id] = true
	}

	if _, err := h.Deref(0); !errors.Is(err, ErrUnknownHandle) {
		t.Errorf("Deref(0) error = %v, want ErrUnknownHandle", err)
	}
}

func TestHeapMallocErrors(t *testing.T) {
	h := NewHeapWithSeed(4, 1)

	if _, err := h.Malloc(0); err == nil || err.Error() != "size cannot be less than one" {
		t.Errorf("Malloc(0) error = %v", err)
	}
	mustMalloc(t, h, 3)
	if _, err := h.Malloc(2); err == nil || err.Error() != "out of memory for allocation" {
		t.Errorf("Malloc(2) error = %v", err)
	}
	if got := h.Stats().Allocated; got != 3 {
		t.Errorf("failed malloc changed allocated total to %d", got)
	}
}

func TestHeapFreeUnknownHandle(t *testing.T) {
	h := NewHeapWithSeed(4, 1)
	err := h.Free(12345)
	if !errors.Is(err, ErrUnknownHandle) {
		t.Fatalf("Free error = %v, want ErrUnknownHandle", err)
	}
	if KindOf(err) != KindExecution {
		t.Errorf("kind = %v, want execution", KindOf(err))
	}
	if err.Error() != "12345 is not an allocation" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestHeapFreeCompacts(t *testing.T) {
	h := NewHeapWithSeed(32, 3)
	a := mustMalloc(t, h, 3)
	b := mustMalloc(t, h, 2)
	c := mustMalloc(t, h, 4)
	d := mustMalloc(t, h, 1)

	h.AssignArray(a, []int{1, 2, 3})
	h.AssignArray(b, []int{4, 5})
	h.AssignArray(c, []int{6, 7, 8, 9})
	h.Assign(d, 10)

	if err := h.Free(a); err != nil {
		t.Fatalf("Free: %v", err)
	}

	want := map[Handle]struct {
		start int
		data  []int
	}{
		b: {0, []int{4, 5}},
		c: {2, []int{6, 7, 8, 9}},
		d: {6, []int{10}},
	}
	for _, e := range h.Allocations() {
		w := want[e.Handle]
		if e.Start != w.start {
			t.Errorf("handle %d start = %d, want %d", e.Handle, e.Start, w.start)
		}
		got, _ := h.DerefArray(e.Handle)
		if !reflect.DeepEqual(got, w.data) {
			t.Errorf("handle %d data = %v, want %v", e.Handle, got, w.data)
		}
	}
	if s := h.Stats(); s.Allocated != 7 || s.HighWater != 7 {
		t.Errorf("Stats = %+v, want allocated 7, high water 7", s)
	}

	// Cells past the high-water mark are zero after the move.
	snap := h.Snapshot()
	if len(snap.Cells) != 7 {
		t.Errorf("snapshot cells = %v", snap.Cells)
	}
}

func TestHeapFreeLeavesOneCellGap(t *testing.T) {
	h := NewHeapWithSeed(8, 5)
	a := mustMalloc(t, h, 1)
	b := mustMalloc(t, h, 2)
	h.AssignArray(b, []int{7, 8})

	if err := h.Free(a); err != nil {
		t.Fatalf("Free: %v", err)
	}
	entries := h.Allocations()
	if len(entries) != 1 || entries[0].Start != 1 {
		t.Fatalf("allocations = %+v, want b left at 1", entries)
	}

	c := mustMalloc(t, h, 1)
	if e := h.Allocations()[1]; e.Handle != c || e.Start != 3 {
		t.Errorf("new allocation = %+v, want start 3", e)
	}
	if got, _ := h.DerefArray(b); !reflect.DeepEqual(got, []int{7, 8}) {
		t.Errorf("b = %v, want [7 8]", got)
	}
}

func TestHeapFreeMiddleClosesEarlierGap(t *testing.T) {
	h := NewHeapWithSeed(16, 9)
	a := mustMalloc(t, h, 1)
	b := mustMalloc(t, h, 2)
	c := mustMalloc(t, h, 3)
	h.Assign(c, 42)

	h.Free(a) // leaves b at 1
	if err := h.Free(b); err != nil {
		t.Fatalf("Free: %v", err)
	}

	entries := h.Allocations()
	if len(entries) != 1 || entries[0].Start != 0 {
		t.Fatalf("allocations = %+v, want c at 0", entries)
	}
	if v, _ := h.Deref(c); v != 42 {
		t.Errorf("c = %d, want 42", v)
	}
}

// Random malloc/free sequences keep the accounting exact, never overlap and
// never disturb live data.
func TestHeapRandomOperations(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 12))
	h := NewHeapWithSeed(64, 13)
	shadow := make(map[Handle][]int)
	next := 1

	for step := 0; step < 2000; step++ {
		if len(shadow) == 0 || rng.IntN(3) > 0 {
			size := 1 + rng.IntN(5)
			id, err := h.Malloc(size)
			if err != nil {
				if !strings.Contains(err.Error(), "out of memory") {
					t.Fatalf("step %d: Malloc: %v", step, err)
				}
			} else {
				data := make([]int, size)
				for i := range data {
					data[i] = next
					next++
				}
				h.AssignArray(id, data)
				shadow[id] = data
			}
		} else {
			for id := range shadow {
				if err := h.Free(id); err != nil {
					t.Fatalf("step %d: Free: %v", step, err)
				}
				delete(shadow, id)
				break
			}
		}

		sum, prevEnd := 0, 0
		for _, e := range h.Allocations() {
			if e.Start < prevEnd {
				t.Fatalf("step %d: allocation %+v overlaps previous ending at %d", step, e, prevEnd)
			}
			prevEnd = e.End()
			sum += e.Size
		}
		if got := h.Stats().Allocated; got != sum {
			t.Fatalf("step %d: allocated = %d, want %d", step, got, sum)
		}
		for id, want := range shadow {
			got, err := h.DerefArray(id)
			if err != nil || !reflect.DeepEqual(got, want) {
				t.Fatalf("step %d: handle %d = %v (%v), want %v", step, id, got, err, want)
			}
		}
	}
}

func TestHeapStringRoundTrip(t *testing.T) {
	h := NewHeapWithSeed(16, 1)
	s := mustMalloc(t, h, 5)

	tests := []struct {
		write string
		want  string
	}{
		{"hello", "hello"},
		{"hi", "hi"},
		{"toolong", "toolo"},
		{"", ""},
		{"héllo", "héllo"},
	}
	for _, tc := range tests {
		if err := h.AssignString(s, tc.write); err != nil {
			t.Fatalf("AssignString(%q): %v", tc.write, err)
		}
		got, err := h.DerefString(s)
		if err != nil {
			t.Fatalf("DerefString: %v", err)
		}
		if got != tc.want {
			t.Errorf("after writing %q, DerefString = %q, want %q", tc.write, got, tc.want)
		}
	}
}

func TestHeapArrayTruncation(t *testing.T) {
	h := NewHeapWithSeed(16, 1)
	a := mustMalloc(t, h, 3)
	b := mustMalloc(t, h, 1)
	h.Assign(b, 99)

	h.AssignArray(a, []int{1, 2, 3, 4})
	if got, _ := h.DerefArray(a); !reflect.DeepEqual(got, []int{1, 2, 3}) {
		t.Errorf("DerefArray = %v, want [1 2 3]", got)
	}
	h.AssignArray(a, []int{9})
	if got, _ := h.DerefArray(a); !reflect.DeepEqual(got, []int{9, 2, 3}) {
		t.Errorf("DerefArray = %v, want [9 2 3]", got)
	}
	if v, _ := h.Deref(b); v != 99 {
		t.Errorf("neighbour = %d, want 99", v)
	}
	if n, _ := h.Size(a); n != 3 {
		t.Errorf("Size = %d, want 3", n)
	}
}

func TestHeapDump(t *testing.T) {
	h := NewHeapWithSeed(16, 1)
	a := mustMalloc(t, h, 2)
	h.AssignArray(a, []int{5, 6})

	var buf bytes.Buffer
	if err := h.Dump(&buf); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"total allocated space: 2 of 16", "start: 0, size: 2>", "memory: [5 6]"} {
		if !strings.Contains(out, want) {
			t.Errorf("Dump output missing %q:\n%s", want, out)
		}
	}
}

func TestHeapSnapshotCBOR(t *testing.T) {
	h := NewHeapWithSeed(16, 1)
	a := mustMalloc(t, h, 2)
	b := mustMalloc(t, h, 3)
	h.AssignArray(a, []int{1, 2})
	h.AssignString(b, "abc")

	snap := h.Snapshot()
	data, err := MarshalSnapshot(snap)
	if err != nil {
		t.Fatalf("MarshalSnapshot: %v", err)
	}
	got, err := UnmarshalSnapshot(data)
	if err != nil {
		t.Fatalf("UnmarshalSnapshot: %v", err)
	}
	if !reflect.DeepEqual(got, snap) {
		t.Errorf("snapshot = %+v, want %+v", got, snap)
	}

	again, _ := MarshalSnapshot(h.Snapshot())
	if !bytes.Equal(data, again) {
		t.Error("canonical encoding differs between identical snapshots")
	}

	if _, err := UnmarshalSnapshot([]byte{0xff}); err == nil {
		t.Error("expected error for malformed snapshot")
	}
}
