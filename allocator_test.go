package vkr

import (
	"testing"
)

func TestAlignUp(t *testing.T) {
	if alignUp(12, 3) != 12 {
		t.Errorf("alignUp(12, 3) = %d, want 12", alignUp(12, 3))
	}
	if alignUp(10, 3) != 12 {
		t.Errorf("alignUp(10, 3) = %d, want 12", alignUp(10, 3))
	}
	if alignUp(0, 256) != 0 {
		t.Errorf("alignUp(0, 256) = %d, want 0", alignUp(0, 256))
	}
}

func TestLinearAllocator(t *testing.T) {
	a := LinearAllocator{Size: 1024}

	if ra := a.Allocate(2048, 1); ra != nil {
		t.Error("oversized allocation should fail")
	}

	fa := a.Allocate(512, 1)
	if fa == nil {
		t.Fatal("512 allocation should fit in empty pool")
	}

	if ra := a.Allocate(768, 1); ra != nil {
		t.Error("768 should not fit alongside 512")
	}

	k := a.Allocate(500, 1)
	if k == nil {
		t.Fatal("500 should fit after 512")
	}

	if ra := a.Allocate(50, 1); ra != nil {
		t.Error("50 should not fit in the 12 remaining")
	}
	if ra := a.Allocate(5, 1); ra == nil {
		t.Error("5 should fit in the tail")
	}
	if ra := a.Allocate(20, 1); ra != nil {
		t.Error("20 should not fit in the 7 remaining")
	}

	// freeing the middle block opens a 500 byte gap
	a.Free(k)
	if ra := a.Allocate(500, 1); ra == nil {
		t.Error("500 should fit in the freed gap")
	}

	// freeing the head block opens the range before the first alloc
	a.Free(fa)
	if ra := a.Allocate(20, 1); ra == nil {
		t.Error("20 should fit at the head")
	}
	if ra := a.Allocate(40, 1); ra == nil {
		t.Error("40 should fit in the head gap")
	}
	if ra := a.Allocate(12, 1); ra == nil {
		t.Error("12 should fit in the head gap")
	}
	if ra := a.Allocate(500, 1); ra != nil {
		t.Error("500 should no longer fit anywhere")
	}
	if ra := a.Allocate(5, 1); ra == nil {
		t.Error("5 should still fit")
	}
}

func TestLinearAllocatorAlignment(t *testing.T) {
	a := LinearAllocator{Size: 1024}

	first := a.Allocate(10, 1)
	if first == nil {
		t.Fatal("first allocation failed")
	}

	second := a.Allocate(10, 256)
	if second == nil {
		t.Fatal("aligned allocation failed")
	}
	if second.Offset%256 != 0 {
		t.Errorf("aligned allocation at offset %d, want multiple of 256", second.Offset)
	}
}
