// Package asm implements the low-level x86-64 instruction emitter described
// by the JIT's InstructionEmitter component: an append-only executable byte
// buffer plus a family of pure-function encoders over it.
package asm

import "encoding/binary"

// CodeBuffer is an append-only byte buffer that backs the machine code a
// compilation emits. Unlike a growable buffer, CodeBuffer writes into a
// fixed-size slice supplied by the caller (code-buffer memory management —
// allocation, and the W^X transition that makes it executable — is owned by
// the host, not by this package; see spec §1 Non-goals).
//
// Overflow is sticky: once an emit would write past the end of the backing
// slice, Overflow is latched true and every subsequent emit is a silent
// no-op. Callers must check HasOverflow after compilation completes and
// discard the result if it is set.
type CodeBuffer struct {
	buf      []byte
	pos      int
	overflow bool
}

// NewCodeBuffer wraps buf for sequential emission. The caller is expected to
// have sized buf per spec §4.1: 16×len(IL)+512, rounded up to 4KB.
func NewCodeBuffer(buf []byte) *CodeBuffer {
	return &CodeBuffer{buf: buf}
}

// Position returns the current write offset, i.e. the native offset the
// next emitted byte will land at.
func (c *CodeBuffer) Position() int {
	return c.pos
}

// HasOverflow reports whether any emit since construction has overflowed
// the backing buffer.
func (c *CodeBuffer) HasOverflow() bool {
	return c.overflow
}

// Bytes returns the written prefix of the backing buffer. The result is
// only meaningful when HasOverflow is false.
func (c *CodeBuffer) Bytes() []byte {
	return c.buf[:c.pos]
}

// FunctionPointer hands out the backing slice's base address as an
// executable function pointer. Returns nil if the buffer overflowed.
//
// The returned value is a raw pointer in the sense of spec §6: the caller
// (the host JIT runtime) owns the W^X transition and is responsible for
// never invoking it before compilation completes successfully.
func (c *CodeBuffer) FunctionPointer() *byte {
	if c.overflow || len(c.buf) == 0 {
		return nil
	}
	return &c.buf[0]
}

func (c *CodeBuffer) reserve(n int) []byte {
	if c.overflow || c.pos+n > len(c.buf) {
		c.overflow = true
		return nil
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b
}

// EmitU8 appends a single byte.
func (c *CodeBuffer) EmitU8(v uint8) {
	if b := c.reserve(1); b != nil {
		b[0] = v
	}
}

// EmitU16 appends a little-endian 16-bit value.
func (c *CodeBuffer) EmitU16(v uint16) {
	if b := c.reserve(2); b != nil {
		binary.LittleEndian.PutUint16(b, v)
	}
}

// EmitU32 appends a little-endian 32-bit value.
func (c *CodeBuffer) EmitU32(v uint32) {
	if b := c.reserve(4); b != nil {
		binary.LittleEndian.PutUint32(b, v)
	}
}

// EmitI32 appends a little-endian signed 32-bit value, e.g. a rel32
// displacement or a 32-bit immediate.
func (c *CodeBuffer) EmitI32(v int32) {
	c.EmitU32(uint32(v))
}

// EmitU64 appends a little-endian 64-bit value, e.g. a mov-reg-imm64
// immediate or an absolute address.
func (c *CodeBuffer) EmitU64(v uint64) {
	if b := c.reserve(8); b != nil {
		binary.LittleEndian.PutUint64(b, v)
	}
}

// EmitBytes appends a raw byte sequence, e.g. a pre-encoded instruction.
func (c *CodeBuffer) EmitBytes(raw ...byte) {
	if b := c.reserve(len(raw)); b != nil {
		copy(b, raw)
	}
}

// PatchI32 overwrites the 4 bytes at offset with value. offset must have
// been returned by an earlier Position() call immediately preceding an
// EmitI32/EmitU32 placeholder; using any other offset corrupts the buffer.
func (c *CodeBuffer) PatchI32(offset int, value int32) {
	if c.overflow || offset < 0 || offset+4 > len(c.buf) {
		return
	}
	binary.LittleEndian.PutUint32(c.buf[offset:offset+4], uint32(value))
}

// PatchRel32 computes and writes the rel32 displacement for a branch or
// call whose 32-bit placeholder begins at patchOffset, targeting the
// current buffer position: current_position - (patch_offset + 4).
func (c *CodeBuffer) PatchRel32(patchOffset int) {
	c.PatchI32(patchOffset, int32(c.pos-(patchOffset+4)))
}

// PatchRel32To computes and writes the rel32 displacement for a branch or
// call whose 32-bit placeholder begins at patchOffset, targeting an
// arbitrary native offset (used for finally-call patches and funclet
// jump targets resolved after the funclet pass, where the patch site and
// target are not necessarily the buffer's current position).
func (c *CodeBuffer) PatchRel32To(patchOffset, targetOffset int) {
	c.PatchI32(patchOffset, int32(targetOffset-(patchOffset+4)))
}
