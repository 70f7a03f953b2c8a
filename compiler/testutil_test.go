package compiler_test

import (
	"encoding/binary"

	"github.com/ProtonOS/baseline-jit/internal/resolver"
)

// ilBuilder assembles a raw CIL method body byte-by-byte for tests, since
// hand-writing ECMA-335 bytes directly is error-prone for anything past a
// handful of opcodes.
type ilBuilder struct {
	buf []byte
}

func il() *ilBuilder { return &ilBuilder{} }

func (b *ilBuilder) bytes() []byte { return b.buf }

func (b *ilBuilder) op(op byte) *ilBuilder {
	b.buf = append(b.buf, op)
	return b
}

func (b *ilBuilder) u8(v uint8) *ilBuilder {
	b.buf = append(b.buf, v)
	return b
}

func (b *ilBuilder) i8(v int8) *ilBuilder {
	b.buf = append(b.buf, byte(v))
	return b
}

func (b *ilBuilder) i32(v int32) *ilBuilder {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(v))
	b.buf = append(b.buf, tmp[:]...)
	return b
}

func (b *ilBuilder) u32(v uint32) *ilBuilder {
	return b.i32(int32(v))
}

func (b *ilBuilder) i64(v int64) *ilBuilder {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(v))
	b.buf = append(b.buf, tmp[:]...)
	return b
}

// offset reports how many bytes have been emitted so far, for computing
// short-branch displacements by hand.
func (b *ilBuilder) offset() int { return len(b.buf) }

const (
	opNop      = 0x00
	opLdarg0   = 0x02
	opLdarg1   = 0x03
	opLdarg2   = 0x04
	opLdloc0   = 0x06
	opStloc0   = 0x0A
	opStloc1   = 0x0B
	opLdlocS   = 0x11
	opStlocS   = 0x13
	opLdnull   = 0x14
	opLdcI4M1  = 0x15
	opLdcI40   = 0x16
	opLdcI41   = 0x17
	opLdcI42   = 0x18
	opLdcI4S   = 0x1F
	opLdcI4    = 0x20
	opDup      = 0x25
	opPop      = 0x26
	opCall     = 0x28
	opCallvirt = 0x6F
	opRet      = 0x2A
	opBrS      = 0x2B
	opBltS     = 0x32
	opAdd      = 0x58
	opSub      = 0x59
	opMul      = 0x5A
	opDivUn    = 0x5C
	opAddOvf   = 0xD6
	opAddOvfUn = 0xD7
	opMulOvf   = 0xD8
	opMulOvfUn = 0xD9
	opSubOvf   = 0xDA
	opSubOvfUn = 0xDB
	opNewarr   = 0x8D
	opLdlen    = 0x8E
	opLdelemI4 = 0x94
	opStelemI4 = 0x9E
	opBox      = 0x8C
	opIsinst   = 0x75
	opLeaveS   = 0xDE
	opEndfin   = 0xDC
	opThrow    = 0x7A
	opPrefix   = 0xFE
	opSizeof   = 0x1C
)

// fakeMethod resolves every token to the same ResolvedMethod, the simplest
// shape adequate for tests that only exercise one callee.
type fakeMethod struct {
	m   resolver.ResolvedMethod
	err error
}

func (f fakeMethod) ResolveMethod(token uint32, assemblyID uint32) (resolver.ResolvedMethod, error) {
	return f.m, f.err
}

type fakeType struct {
	t   resolver.ResolvedType
	err error
}

func (f fakeType) ResolveType(token uint32, assemblyID uint32) (resolver.ResolvedType, error) {
	return f.t, f.err
}

type fakeField struct {
	f   resolver.ResolvedField
	err error
}

func (f fakeField) ResolveField(token uint32, assemblyID uint32) (resolver.ResolvedField, error) {
	return f.f, f.err
}

type fakeString struct {
	s   resolver.ResolvedString
	err error
}

func (f fakeString) ResolveString(token uint32, assemblyID uint32) (resolver.ResolvedString, error) {
	return f.s, f.err
}

type fakeStaticData struct {
	h   resolver.StaticDataHandle
	err error
}

func (f fakeStaticData) ResolveStaticData(token uint32, assemblyID uint32) (resolver.StaticDataHandle, error) {
	return f.h, f.err
}
