package slab_test

import (
	"errors"
	"testing"

	"github.com/joeycumines/go-evhcore/corerr"
	"github.com/joeycumines/go-evhcore/slab"
)

func TestInitRejectsBadConfig(t *testing.T) {
	a := slab.New()
	if err := a.Init(slab.Config{SlabSize: 7, SlabCount: 10}); !errors.Is(err, corerr.KindOnly(corerr.IllegalArgument)) {
		t.Fatalf("expected IllegalArgument for slab_size < 8, got %v", err)
	}

	a = slab.New()
	if err := a.Init(slab.Config{SlabSize: 8, SlabCount: 0}); !errors.Is(err, corerr.KindOnly(corerr.IllegalArgument)) {
		t.Fatalf("expected IllegalArgument for slab_count == 0, got %v", err)
	}
}

func TestAllocateFreeCountInvariant(t *testing.T) {
	a, err := slab.NewInit(slab.Config{SlabSize: 16, SlabCount: 4})
	if err != nil {
		t.Fatal(err)
	}

	var ids []int
	for i := 0; i < 4; i++ {
		s, err := a.Allocate()
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, s.ID())
	}

	fc, _ := a.FreeCount()
	if fc != 0 {
		t.Fatalf("free_count = %d, want 0", fc)
	}

	if _, err := a.Allocate(); !errors.Is(err, corerr.KindOnly(corerr.CapacityExceeded)) {
		t.Fatalf("expected CapacityExceeded, got %v", err)
	}

	if err := a.Free(ids[0]); err != nil {
		t.Fatal(err)
	}
	fc, _ = a.FreeCount()
	if fc != 1 {
		t.Fatalf("free_count = %d, want 1", fc)
	}

	s, err := a.Allocate()
	if err != nil {
		t.Fatal(err)
	}
	if s.ID() != ids[0] {
		t.Fatalf("expected reused id %d, got %d", ids[0], s.ID())
	}
}

func TestDoubleFreeIsIllegalState(t *testing.T) {
	a, err := slab.NewInit(slab.Config{SlabSize: 8, SlabCount: 1})
	if err != nil {
		t.Fatal(err)
	}
	s, err := a.Allocate()
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Free(s.ID()); err != nil {
		t.Fatal(err)
	}
	if err := a.Free(s.ID()); !errors.Is(err, corerr.KindOnly(corerr.IllegalState)) {
		t.Fatalf("expected IllegalState on double free, got %v", err)
	}
}

func TestFreeUnallocatedIsIllegalState(t *testing.T) {
	a, err := slab.NewInit(slab.Config{SlabSize: 8, SlabCount: 2})
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Free(0); !errors.Is(err, corerr.KindOnly(corerr.IllegalState)) {
		t.Fatalf("expected IllegalState freeing never-allocated id, got %v", err)
	}
}

func TestOutOfBounds(t *testing.T) {
	a, err := slab.NewInit(slab.Config{SlabSize: 8, SlabCount: 2})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Get(2); !errors.Is(err, corerr.KindOnly(corerr.ArrayIndexOutOfBounds)) {
		t.Fatalf("expected ArrayIndexOutOfBounds, got %v", err)
	}
	if err := a.Free(2); !errors.Is(err, corerr.KindOnly(corerr.ArrayIndexOutOfBounds)) {
		t.Fatalf("expected ArrayIndexOutOfBounds, got %v", err)
	}
}

func TestSingleSlabMinimumSize(t *testing.T) {
	a, err := slab.NewInit(slab.Config{SlabSize: 8, SlabCount: 1})
	if err != nil {
		t.Fatal(err)
	}
	s, err := a.Allocate()
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Get()) != 8 {
		t.Fatalf("payload len = %d, want 8", len(s.Get()))
	}
}

func TestGetMutWritesThroughToGet(t *testing.T) {
	a, err := slab.NewInit(slab.Config{SlabSize: 16, SlabCount: 2})
	if err != nil {
		t.Fatal(err)
	}
	s, err := a.Allocate()
	if err != nil {
		t.Fatal(err)
	}
	mut, err := a.GetMut(s.ID())
	if err != nil {
		t.Fatal(err)
	}
	copy(mut.GetMut(), []byte("hello world!!!!!"))

	ro, err := a.Get(s.ID())
	if err != nil {
		t.Fatal(err)
	}
	if string(ro.Get()) != "hello world!!!!!" {
		t.Fatalf("got %q", ro.Get())
	}
}

func TestFreeCountInvariantAfterSequence(t *testing.T) {
	a, err := slab.NewInit(slab.Config{SlabSize: 8, SlabCount: 100})
	if err != nil {
		t.Fatal(err)
	}

	live := map[int]bool{}
	for i := 0; i < 250; i++ {
		if len(live) < 100 && (i%3 != 0 || len(live) == 0) {
			s, err := a.Allocate()
			if err == nil {
				live[s.ID()] = true
			}
		} else if len(live) > 0 {
			for id := range live {
				if err := a.Free(id); err != nil {
					t.Fatal(err)
				}
				delete(live, id)
				break
			}
		}

		fc, err := a.FreeCount()
		if err != nil {
			t.Fatal(err)
		}
		if fc != 100-len(live) {
			t.Fatalf("iteration %d: free_count = %d, want %d", i, fc, 100-len(live))
		}
	}
}
