package compiler

import "testing"

func TestLocalOffset(t *testing.T) {
	f := frameLayout{localCount: 3, argCount: 0}
	cases := []struct {
		i    int
		want int32
	}{
		{0, -64},
		{1, -128},
		{2, -192},
	}
	for _, c := range cases {
		if got := f.localOffset(c.i); got != c.want {
			t.Errorf("localOffset(%d) = %d, want %d", c.i, got, c.want)
		}
	}
}

func TestArgOffsetNoHiddenBuffer(t *testing.T) {
	f := frameLayout{argCount: 4}
	cases := []struct {
		i    int
		want int32
	}{
		{0, 16},
		{1, 24},
		{2, 32},
		{3, 40},
	}
	for _, c := range cases {
		if got := f.argOffset(c.i); got != c.want {
			t.Errorf("argOffset(%d) = %d, want %d", c.i, got, c.want)
		}
	}
}

func TestArgOffsetWithHiddenReturnBuffer(t *testing.T) {
	f := frameLayout{argCount: 2, hasHiddenReturnBuffer: true}
	if got := f.hiddenReturnBufferOffset(); got != 16 {
		t.Errorf("hiddenReturnBufferOffset() = %d, want 16", got)
	}
	// IL argument 0 is shifted to physical index 1.
	if got := f.argOffset(0); got != 24 {
		t.Errorf("argOffset(0) = %d, want 24", got)
	}
	if got := f.argOffset(1); got != 32 {
		t.Errorf("argOffset(1) = %d, want 32", got)
	}
	if got := f.totalPhysicalArgs(); got != 3 {
		t.Errorf("totalPhysicalArgs() = %d, want 3", got)
	}
}

func TestLocalsAreaBytesReservesScratchSlot(t *testing.T) {
	f := frameLayout{localCount: 2}
	// 2 locals + 1 scratch slot, 64 bytes each.
	if got := f.localsAreaBytes(); got != 192 {
		t.Errorf("localsAreaBytes() = %d, want 192", got)
	}
	if got := f.scratchOffset(); got != f.localOffset(2) {
		t.Errorf("scratchOffset() = %d, want %d", got, f.localOffset(2))
	}
}

func TestScratchOffsetZeroLocals(t *testing.T) {
	f := frameLayout{localCount: 0}
	if got := f.scratchOffset(); got != -64 {
		t.Errorf("scratchOffset() = %d, want -64", got)
	}
}
