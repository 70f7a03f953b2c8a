package compiler

import "github.com/ProtonOS/baseline-jit/internal/asm"

// frameLayout computes the fixed offsets spec §6 names for a compiled
// method's frame: "Locals at [RBP - 64*(local_index+1)] ... Incoming arg
// home slots at [RBP + 16 + 8*physical_index]."
//
// hasHiddenReturnBuffer shifts every argument's physical index by one, per
// spec §3's "the caller supplies a hidden first-argument pointer to a
// return buffer, shifting every IL argument index by one in the physical
// mapping."
type frameLayout struct {
	localCount            int
	argCount               int
	hasHiddenReturnBuffer bool
}

const localSlotBytes = 64

// localOffset returns the FP-relative byte offset of local slot i.
func (f frameLayout) localOffset(i int) int32 {
	return int32(-(localSlotBytes * (i + 1)))
}

// argPhysicalIndex returns the physical argument index for IL argument i,
// after accounting for a hidden return-buffer pointer.
func (f frameLayout) argPhysicalIndex(i int) int {
	if f.hasHiddenReturnBuffer {
		return i + 1
	}
	return i
}

// argOffset returns the FP-relative byte offset of IL argument i's home
// slot.
func (f frameLayout) argOffset(i int) int32 {
	return 16 + 8*int32(f.argPhysicalIndex(i))
}

// hiddenReturnBufferOffset returns the FP-relative offset of the hidden
// return-buffer pointer's own home slot (physical argument index 0).
func (f frameLayout) hiddenReturnBufferOffset() int32 {
	return 16
}

// totalPhysicalArgs is the number of physical argument slots, including a
// hidden return buffer if present.
func (f frameLayout) totalPhysicalArgs() int {
	n := f.argCount
	if f.hasHiddenReturnBuffer {
		n++
	}
	return n
}

// localsAreaBytes is the total fixed size reserved below the frame pointer
// for locals plus the one scratch slot, before any eval-stack growth, per
// spec §6's "small reserved region below locals for struct-return
// temporaries".
func (f frameLayout) localsAreaBytes() int32 {
	return int32(localSlotBytes * (f.localCount + 1))
}

// scratchOffset returns the FP-relative offset of the reserved slot past
// the declared locals, used as a temporary home for a newobj value-type
// result or a hidden struct-return buffer address that must survive a
// nested call.
func (f frameLayout) scratchOffset() int32 {
	return f.localOffset(f.localCount)
}

// argListPointer computes arglist's returned pointer per spec §4.8:
// "RBP + 48 + max(0, declared_args - 4) * 8".
func (f frameLayout) argListPointer(e *asm.Emitter, dst asm.Register) {
	extra := f.argCount - 4
	if extra < 0 {
		extra = 0
	}
	e.Lea(asm.RBP, 48+int32(extra)*8, dst)
}
