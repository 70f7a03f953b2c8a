// Package gcinfo builds the GC-info table spec §3/§6 describes: the set of
// stack-slot offsets holding GC references, and the set of native code
// offsets that are safe points (the instruction immediately following
// every emitted `call`, per spec §6's safe-point convention).
//
// Grounded on the shape of the teacher's compiledFunction stack-map
// bookkeeping in internal/engine/compiler (which pairs a function's
// compiled code with a side table of metadata consumed post-compilation);
// the specific two-set encoding here (roots vs safe points) is original to
// this spec, which has no WASM analogue (wazero's runtime has no
// precise-GC root scanning surface).
package gcinfo

import "encoding/binary"

// Builder accumulates GC roots and safe points during a single
// compilation. Not safe for concurrent use; matches the
// strictly-single-threaded-per-JIT-instance model of spec §5.
type Builder struct {
	roots       []int32 // FP-relative stack slot offsets of GC-reference locals/args
	safePoints  []int32 // native code offsets immediately following a call
	rootSeen    map[int32]bool
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{rootSeen: make(map[int32]bool)}
}

// AddRoot records fpOffset as holding a GC reference for the method's
// lifetime. Idempotent: recording the same offset twice keeps it in the
// output exactly once (spec Property 4, "GC-slot stability").
func (b *Builder) AddRoot(fpOffset int32) {
	if b.rootSeen[fpOffset] {
		return
	}
	b.rootSeen[fpOffset] = true
	b.roots = append(b.roots, fpOffset)
}

// AddRootsFromMask records one root per set bit in mask, for i in
// [0, localCount) the local-i slot offset and for i in
// [localCount, localCount+argCount) the corresponding argument slot,
// matching spec §6's gc_ref_mask layout ("bit i ... local i ... bit
// (local_count + i) ... arg i").
func (b *Builder) AddRootsFromMask(mask uint64, localCount int, localSlotOffset func(i int) int32, argSlotOffset func(i int) int32) {
	for i := 0; i < localCount && i < 64; i++ {
		if mask&(1<<uint(i)) != 0 {
			b.AddRoot(localSlotOffset(i))
		}
	}
	for i := 0; localCount+i < 64; i++ {
		bit := localCount + i
		if bit >= 64 {
			break
		}
		if mask&(1<<uint(bit)) != 0 {
			b.AddRoot(argSlotOffset(i))
		}
	}
}

// AddSafePoint records nativeOffset as a GC safe point. Called once per
// emitted `call`, immediately after the call instruction's encoded length
// is known, per spec §4.8 step 4: "record a GC safe point at the
// instruction following the call."
func (b *Builder) AddSafePoint(nativeOffset int32) {
	b.safePoints = append(b.safePoints, nativeOffset)
}

// Roots returns the recorded GC-root stack-slot offsets, in the order
// first recorded.
func (b *Builder) Roots() []int32 {
	return b.roots
}

// SafePoints returns the recorded safe-point native offsets, in emission
// order (already non-decreasing, since compilation emits code linearly).
func (b *Builder) SafePoints() []int32 {
	return b.safePoints
}

// Encode serializes the GC info into the caller-supplied buffer format
// spec §6 names ("encoded into a caller-supplied buffer"): a root count,
// then that many int32 offsets, then a safe-point count, then that many
// int32 offsets, all little-endian. Returns the encoded bytes; the caller
// owns copying them into its own buffer.
func (b *Builder) Encode() []byte {
	size := 4 + 4*len(b.roots) + 4 + 4*len(b.safePoints)
	out := make([]byte, size)
	pos := 0

	binary.LittleEndian.PutUint32(out[pos:], uint32(len(b.roots)))
	pos += 4
	for _, r := range b.roots {
		binary.LittleEndian.PutUint32(out[pos:], uint32(r))
		pos += 4
	}

	binary.LittleEndian.PutUint32(out[pos:], uint32(len(b.safePoints)))
	pos += 4
	for _, sp := range b.safePoints {
		binary.LittleEndian.PutUint32(out[pos:], uint32(sp))
		pos += 4
	}
	return out
}
