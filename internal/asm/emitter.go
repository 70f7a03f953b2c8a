package asm

// Emitter is a thin, stateless (except for the CodeBuffer it targets)
// collection of pure functions that each append one x86-64 instruction.
// Grounded on internal/asm/amd64/impl.go's REX/ModRM/SIB construction, but
// flattened into direct emission (spec §4.1 mandates an append-only buffer,
// not the teacher's linked-list-of-nodes-then-encode-in-one-pass design —
// see DESIGN.md).
//
// Every method appends exactly one instruction and returns nothing except
// where a patch offset must be handed back to the caller.
type Emitter struct {
	buf *CodeBuffer
}

// NewEmitter constructs an Emitter writing into buf.
func NewEmitter(buf *CodeBuffer) *Emitter {
	return &Emitter{buf: buf}
}

// --- REX / ModRM / SIB construction -----------------------------------

const (
	rexBase = 0x40
	rexW    = 0x08 // 64-bit operand size
	rexR    = 0x04 // ModRM.reg extension
	rexX    = 0x02 // SIB.index extension
	rexB    = 0x01 // ModRM.rm / SIB.base extension
)

// rex builds a REX prefix byte. w selects 64-bit operand size; reg, index,
// and base each contribute their extension bit when the corresponding
// register number is >= 8 (R8-R15, XMM8-XMM15).
func rex(w bool, reg, index, base Register) byte {
	b := byte(rexBase)
	if w {
		b |= rexW
	}
	if reg != NilRegister && reg.needsREXBit() {
		b |= rexR
	}
	if index != NilRegister && index.needsREXBit() {
		b |= rexX
	}
	if base != NilRegister && base.needsREXBit() {
		b |= rexB
	}
	return b
}

// needsRex reports whether a REX prefix must be emitted even with w=false:
// true whenever any participating register is in the extended (8-15) bank.
func needsRex(w bool, regs ...Register) bool {
	if w {
		return true
	}
	for _, r := range regs {
		if r != NilRegister && r.needsREXBit() {
			return true
		}
	}
	return false
}

func modRMByte(mod, reg, rm byte) byte {
	return (mod << 6) | ((reg & 7) << 3) | (rm & 7)
}

func sibByte(scale Scale, index, base byte) byte {
	return (scale.sibBits() << 6) | ((index & 7) << 3) | (base & 7)
}

// emitRegReg emits REX (if needed) + opcode + ModRM for a register-to-
// register form: ModRM.reg = regField, ModRM.rm = rmField, mod = 11.
func (e *Emitter) emitRegReg(w bool, opcode []byte, regField, rmField Register) {
	if needsRex(w, regField, rmField) {
		e.buf.EmitU8(rex(w, regField, NilRegister, rmField))
	}
	e.buf.EmitBytes(opcode...)
	e.buf.EmitU8(modRMByte(3, regField.encoding(), rmField.encoding()))
}

// emitRegMem emits REX + opcode + ModRM/SIB/disp32 for a register<->memory
// form addressing [base+disp], with an optional scaled index. disp32 is
// always emitted as a full 32-bit displacement (mod=10) for simplicity: a
// Tier-0 JIT favors constant, branch-free encoding logic over the couple of
// bytes disp8 would save (see DESIGN.md on the teacher's short-vs-long-jump
// tradeoff, which this mirrors for displacements).
func (e *Emitter) emitRegMem(w bool, opcode []byte, regField Register, base Register, disp int32, index Register, scale Scale) {
	hasIndex := index != NilRegister
	if needsRex(w, regField, pick(hasIndex, index, NilRegister), base) {
		idx := NilRegister
		if hasIndex {
			idx = index
		}
		e.buf.EmitU8(rex(w, regField, idx, base))
	}
	e.buf.EmitBytes(opcode...)
	rm := base.encoding()
	if hasIndex || rm == 4 { // RSP/R12 as base always requires a SIB byte
		e.buf.EmitU8(modRMByte(2, regField.encoding(), 4))
		idxEnc := byte(4) // "no index"
		sc := Scale1
		if hasIndex {
			idxEnc = index.encoding()
			sc = scale
		}
		e.buf.EmitU8(sibByte(sc, idxEnc, rm))
	} else {
		e.buf.EmitU8(modRMByte(2, regField.encoding(), rm))
	}
	e.buf.EmitI32(disp)
}

func pick(cond bool, a, b Register) Register {
	if cond {
		return a
	}
	return b
}

// emitDigitMem is emitRegMem's counterpart for instructions whose ModRM.reg
// field is a fixed opcode-extension digit rather than a register operand
// (e.g. TEST /0, CALL /2, the unary /7-style groups already handled by
// unaryF7/divOp for the register-operand case). REX.R is never set for a
// digit field.
func (e *Emitter) emitDigitMem(w bool, opcode []byte, digit byte, base Register, disp int32, index Register, scale Scale) {
	hasIndex := index != NilRegister
	if needsRex(w, pick(hasIndex, index, NilRegister), base) {
		idx := NilRegister
		if hasIndex {
			idx = index
		}
		e.buf.EmitU8(rex(w, NilRegister, idx, base))
	}
	e.buf.EmitBytes(opcode...)
	rm := base.encoding()
	if hasIndex || rm == 4 {
		e.buf.EmitU8(modRMByte(2, digit, 4))
		idxEnc := byte(4)
		sc := Scale1
		if hasIndex {
			idxEnc = index.encoding()
			sc = scale
		}
		e.buf.EmitU8(sibByte(sc, idxEnc, rm))
	} else {
		e.buf.EmitU8(modRMByte(2, digit, rm))
	}
	e.buf.EmitI32(disp)
}

// --- Data movement ------------------------------------------------------

var movOpcodeByWidth = map[Width][]byte{
	Width8:  {0x88},
	Width16: {0x66, 0x89},
	Width32: {0x89},
	Width64: {0x89},
}

var movOpcodeLoadByWidth = map[Width][]byte{
	Width8:  {0x8A},
	Width16: {0x66, 0x8B},
	Width32: {0x8B},
	Width64: {0x8B},
}

// MovRegReg copies src to dst at the given width.
func (e *Emitter) MovRegReg(width Width, src, dst Register) {
	if width == Width16 {
		e.buf.EmitU8(0x66)
	}
	e.emitRegReg(width == Width64, []byte{0x89}, src, dst)
}

// MovRegToMem stores src to [base+disp] at the given width.
func (e *Emitter) MovRegToMem(width Width, src Register, base Register, disp int32) {
	op := movOpcodeByWidth[width]
	if width == Width16 {
		e.buf.EmitU8(op[0])
		e.emitRegMem(false, op[1:], src, base, disp, NilRegister, Scale1)
		return
	}
	e.emitRegMem(width == Width64, op, src, base, disp, NilRegister, Scale1)
}

// MovMemToReg loads [base+disp] into dst at the given width.
func (e *Emitter) MovMemToReg(width Width, base Register, disp int32, dst Register) {
	op := movOpcodeLoadByWidth[width]
	if width == Width16 {
		e.buf.EmitU8(op[0])
		e.emitRegMem(false, op[1:], dst, base, disp, NilRegister, Scale1)
		return
	}
	e.emitRegMem(width == Width64, op, dst, base, disp, NilRegister, Scale1)
}

// MovMemIndexedToReg loads [base+disp+index*scale] into dst.
func (e *Emitter) MovMemIndexedToReg(width Width, base Register, disp int32, index Register, scale Scale, dst Register) {
	op := movOpcodeLoadByWidth[width]
	if width == Width16 {
		e.buf.EmitU8(op[0])
		e.emitRegMem(false, op[1:], dst, base, disp, index, scale)
		return
	}
	e.emitRegMem(width == Width64, op, dst, base, disp, index, scale)
}

// MovRegIndexedToMem stores src to [base+disp+index*scale].
func (e *Emitter) MovRegIndexedToMem(width Width, src Register, base Register, disp int32, index Register, scale Scale) {
	op := movOpcodeByWidth[width]
	if width == Width16 {
		e.buf.EmitU8(op[0])
		e.emitRegMem(false, op[1:], src, base, disp, index, scale)
		return
	}
	e.emitRegMem(width == Width64, op, src, base, disp, index, scale)
}

// MovRegImm32 loads a sign-extended 32-bit immediate into a 32 or 64-bit
// register (opcode 0xC7 /0).
func (e *Emitter) MovRegImm32(width Width, dst Register, imm int32) {
	if needsRex(width == Width64, dst) {
		e.buf.EmitU8(rex(width == Width64, NilRegister, NilRegister, dst))
	}
	e.buf.EmitU8(0xC7)
	e.buf.EmitU8(modRMByte(3, 0, dst.encoding()))
	e.buf.EmitI32(imm)
}

// MovRegImm64 loads a full 64-bit immediate (opcode 0xB8+rd io), used for
// absolute addresses such as a method's native code pointer.
func (e *Emitter) MovRegImm64(dst Register, imm uint64) {
	e.buf.EmitU8(rex(true, NilRegister, NilRegister, dst))
	e.buf.EmitU8(0xB8 + dst.encoding())
	e.buf.EmitU64(imm)
}

// Lea loads the effective address of [base+disp] into dst.
func (e *Emitter) Lea(base Register, disp int32, dst Register) {
	e.emitRegMem(true, []byte{0x8D}, dst, base, disp, NilRegister, Scale1)
}

// LeaIndexed loads the effective address of [base+disp+index*scale] into dst.
func (e *Emitter) LeaIndexed(base Register, disp int32, index Register, scale Scale, dst Register) {
	e.emitRegMem(true, []byte{0x8D}, dst, base, disp, index, scale)
}

// --- Sign/zero-extending loads -------------------------------------------

// MovzxMemToReg64 zero-extends an 8 or 16-bit memory load into a 64-bit
// register (0x0F B6 / 0x0F B7).
func (e *Emitter) MovzxMemToReg64(srcWidth Width, base Register, disp int32, dst Register) {
	op := byte(0xB6)
	if srcWidth == Width16 {
		op = 0xB7
	}
	e.emitRegMem(true, []byte{0x0F, op}, dst, base, disp, NilRegister, Scale1)
}

// MovsxMemToReg64 sign-extends an 8 or 16-bit memory load into a 64-bit
// register (0x0F BE / 0x0F BF).
func (e *Emitter) MovsxMemToReg64(srcWidth Width, base Register, disp int32, dst Register) {
	op := byte(0xBE)
	if srcWidth == Width16 {
		op = 0xBF
	}
	e.emitRegMem(true, []byte{0x0F, op}, dst, base, disp, NilRegister, Scale1)
}

// MovsxdMemToReg64 sign-extends a 32-bit memory load into a 64-bit
// register (0x63 /r), used for the signed-i32 stack convention (spec
// §4.8's "sign-extend EAX to RAX").
func (e *Emitter) MovsxdMemToReg64(base Register, disp int32, dst Register) {
	e.emitRegMem(true, []byte{0x63}, dst, base, disp, NilRegister, Scale1)
}

// MovsxdRegToReg64 sign-extends the low 32 bits of src into dst (64-bit).
func (e *Emitter) MovsxdRegToReg64(src, dst Register) {
	e.emitRegReg(true, []byte{0x63}, dst, src)
}

// MovzxRegToReg32 copies the low 32 bits of src into dst with a 32-bit
// mov, zero-extending them to the full 64 bits (the "zero-extend-32 idiom"
// of spec §4.5: writing a 32-bit register form always zeroes the upper 32
// bits on amd64).
func (e *Emitter) MovzxRegToReg32(src, dst Register) {
	e.emitRegReg(false, []byte{0x89}, src, dst)
}

// --- Integer arithmetic ---------------------------------------------------

// arithOp names one of the eight ALU operations addressable through the
// standard /r and /digit opcode extension encoding (add/or/adc/sbb/and/
// sub/xor/cmp), matching the x86 manual's grouping.
type arithOp byte

const (
	ArithAdd arithOp = 0
	ArithOr  arithOp = 1
	ArithAnd arithOp = 4
	ArithSub arithOp = 5
	ArithXor arithOp = 6
	ArithCmp arithOp = 7
)

// ArithRegReg performs `op dst, src` i.e. dst := dst OP src (for cmp, only
// flags are affected) at the given width.
func (e *Emitter) ArithRegReg(width Width, op arithOp, src, dst Register) {
	base := byte(op) << 3
	if width == Width16 {
		e.buf.EmitU8(0x66)
	}
	e.emitRegReg(width == Width64, []byte{base | 0x01}, src, dst)
}

// ArithRegImm32 performs `op dst, imm32` (opcode 0x81 /op).
func (e *Emitter) ArithRegImm32(width Width, op arithOp, dst Register, imm int32) {
	if width == Width16 {
		e.buf.EmitU8(0x66)
	}
	if needsRex(width == Width64, dst) {
		e.buf.EmitU8(rex(width == Width64, NilRegister, NilRegister, dst))
	}
	e.buf.EmitU8(0x81)
	e.buf.EmitU8(modRMByte(3, byte(op), dst.encoding()))
	e.buf.EmitI32(imm)
}

// Neg negates dst in place (0xF7 /3).
func (e *Emitter) Neg(width Width, dst Register) {
	e.unaryF7(width, 3, dst)
}

// Not performs a bitwise complement of dst in place (0xF7 /2).
func (e *Emitter) Not(width Width, dst Register) {
	e.unaryF7(width, 2, dst)
}

func (e *Emitter) unaryF7(width Width, digit byte, dst Register) {
	if needsRex(width == Width64, dst) {
		e.buf.EmitU8(rex(width == Width64, NilRegister, NilRegister, dst))
	}
	e.buf.EmitU8(0xF7)
	e.buf.EmitU8(modRMByte(3, digit, dst.encoding()))
}

// ImulRegReg multiplies dst by src, dst := dst * src (0x0F AF /r).
func (e *Emitter) ImulRegReg(width Width, src, dst Register) {
	e.emitRegReg(width == Width64, []byte{0x0F, 0xAF}, dst, src)
}

// ImulRegImm32 multiplies src by imm, dst := src * imm (0x69 /r id).
func (e *Emitter) ImulRegImm32(width Width, src, dst Register, imm int32) {
	if needsRex(width == Width64, dst, src) {
		e.buf.EmitU8(rex(width == Width64, dst, NilRegister, src))
	}
	e.buf.EmitU8(0x69)
	e.buf.EmitU8(modRMByte(3, dst.encoding(), src.encoding()))
	e.buf.EmitI32(imm)
}

// Cdq/Cqo sign-extends EAX into EDX:EAX (32-bit) or RAX into RDX:RAX
// (64-bit), the mandatory pre-extension before idiv per spec §4.2.
func (e *Emitter) CdqOrCqo(width Width) {
	if width == Width64 {
		e.buf.EmitBytes(rexBase|rexW, 0x99)
	} else {
		e.buf.EmitU8(0x99)
	}
}

// ZeroExtendEDX clears RDX/EDX ahead of an unsigned div, the zero-extension
// spec §4.5 calls for instead of cdq/cqo when the dividend is unsigned.
func (e *Emitter) ZeroExtendEDX() {
	e.Xor32SelfClear(RDX)
}

// Xor32SelfClear zero-clears reg via `xor reg32, reg32`, the canonical
// zero-extend-32 idiom (writing the 32-bit form clears the upper 32 bits).
func (e *Emitter) Xor32SelfClear(reg Register) {
	e.emitRegReg(false, []byte{0x31}, reg, reg)
}

// divOp selects signed or unsigned division/remainder (0xF7 /6 for div,
// /7 for idiv).
func (e *Emitter) divOp(width Width, signed bool, divisor Register) {
	digit := byte(6)
	if signed {
		digit = 7
	}
	if needsRex(width == Width64, divisor) {
		e.buf.EmitU8(rex(width == Width64, NilRegister, NilRegister, divisor))
	}
	e.buf.EmitU8(0xF7)
	e.buf.EmitU8(modRMByte(3, digit, divisor.encoding()))
}

// Div performs unsigned division: EDX:EAX / divisor (or RDX:RAX / divisor),
// quotient in RAX/EAX, remainder in RDX/EDX.
func (e *Emitter) Div(width Width, divisor Register) {
	e.divOp(width, false, divisor)
}

// Idiv performs signed division: EDX:EAX / divisor (or RDX:RAX / divisor),
// quotient in RAX/EAX, remainder in RDX/EDX. Caller must have emitted
// CdqOrCqo first.
func (e *Emitter) Idiv(width Width, divisor Register) {
	e.divOp(width, true, divisor)
}

// shiftOp names a shift-group ALU operation (0xD3 /digit): shl=4, shr=5, sar=7.
type shiftOp byte

const (
	ShiftShl shiftOp = 4
	ShiftShr shiftOp = 5
	ShiftSar shiftOp = 7
)

// ShiftByCL performs `op dst, cl` — shift count taken from CL.
func (e *Emitter) ShiftByCL(width Width, op shiftOp, dst Register) {
	if needsRex(width == Width64, dst) {
		e.buf.EmitU8(rex(width == Width64, NilRegister, NilRegister, dst))
	}
	e.buf.EmitU8(0xD3)
	e.buf.EmitU8(modRMByte(3, byte(op), dst.encoding()))
}

// ShiftByImm8 performs `op dst, imm8` (0xC1 /digit ib).
func (e *Emitter) ShiftByImm8(width Width, op shiftOp, dst Register, imm8 byte) {
	if needsRex(width == Width64, dst) {
		e.buf.EmitU8(rex(width == Width64, NilRegister, NilRegister, dst))
	}
	e.buf.EmitU8(0xC1)
	e.buf.EmitU8(modRMByte(3, byte(op), dst.encoding()))
	e.buf.EmitU8(imm8)
}

// Test performs `test a, b` (flags only, 0x85 /r).
func (e *Emitter) Test(width Width, a, b Register) {
	e.emitRegReg(width == Width64, []byte{0x85}, a, b)
}

// TestMemImm32 performs `test dword [base+disp], imm32` (0xF7 /0 id),
// used for the cctor-trigger "is the function pointer word non-zero" check.
func (e *Emitter) TestMemImm32(width Width, base Register, disp int32, imm int32) {
	e.emitDigitMem(width == Width64, []byte{0xF7}, 0, base, disp, NilRegister, Scale1)
	e.buf.EmitI32(imm)
}

// --- SSE scalar -----------------------------------------------------------

// MovssOrSdMemToReg loads a scalar float from memory into an XMM register.
func (e *Emitter) MovssOrSdMemToReg(is64 bool, base Register, disp int32, dst Register) {
	prefix := byte(0xF3)
	if is64 {
		prefix = 0xF2
	}
	e.buf.EmitU8(prefix)
	e.emitRegMem(false, []byte{0x0F, 0x10}, dst, base, disp, NilRegister, Scale1)
}

// MovssOrSdRegToMem stores a scalar float from an XMM register to memory.
func (e *Emitter) MovssOrSdRegToMem(is64 bool, src Register, base Register, disp int32) {
	prefix := byte(0xF3)
	if is64 {
		prefix = 0xF2
	}
	e.buf.EmitU8(prefix)
	e.emitRegMem(false, []byte{0x0F, 0x11}, src, base, disp, NilRegister, Scale1)
}

// MovdOrMovq moves raw bits between a GPR and an XMM register (0x66 0x0F
// 6E/7E), the bit-pattern shuffle spec §4.5 uses for floats-on-the-int-stack.
func (e *Emitter) MovdOrMovq(is64 bool, gprToXmm bool, gpr, xmm Register) {
	e.buf.EmitU8(0x66)
	if gprToXmm {
		e.emitRegReg(is64, []byte{0x0F, 0x6E}, xmm, gpr)
	} else {
		e.emitRegReg(is64, []byte{0x0F, 0x7E}, xmm, gpr)
	}
}

type sseOp byte

const (
	SSEAdd sseOp = 0x58
	SSESub sseOp = 0x5C
	SSEMul sseOp = 0x59
	SSEDiv sseOp = 0x5E
)

// SSEArith performs `op dst, src` (addss/subss/mulss/divss or the sd forms).
func (e *Emitter) SSEArith(is64 bool, op sseOp, src, dst Register) {
	prefix := byte(0xF3)
	if is64 {
		prefix = 0xF2
	}
	e.buf.EmitU8(prefix)
	e.emitRegReg(false, []byte{0x0F, byte(op)}, dst, src)
}

// CvtSI2SOrD converts a signed integer GPR to a scalar float.
func (e *Emitter) CvtSI2SOrD(is64Float bool, srcIs64Int bool, src, dst Register) {
	prefix := byte(0xF3)
	if is64Float {
		prefix = 0xF2
	}
	e.buf.EmitU8(prefix)
	e.emitRegReg(srcIs64Int, []byte{0x0F, 0x2A}, dst, src)
}

// CvttS2SI truncates a scalar float to a signed integer GPR (cvttss2si /
// cvttsd2si).
func (e *Emitter) CvttS2SI(srcIs64Float bool, dstIs64Int bool, src, dst Register) {
	prefix := byte(0xF3)
	if srcIs64Float {
		prefix = 0xF2
	}
	e.buf.EmitU8(prefix)
	e.emitRegReg(dstIs64Int, []byte{0x0F, 0x2C}, dst, src)
}

// CvtSD2SS narrows a double to a float.
func (e *Emitter) CvtSD2SS(src, dst Register) {
	e.buf.EmitU8(0xF2)
	e.emitRegReg(false, []byte{0x0F, 0x5A}, dst, src)
}

// CvtSS2SD widens a float to a double.
func (e *Emitter) CvtSS2SD(src, dst Register) {
	e.buf.EmitU8(0xF3)
	e.emitRegReg(false, []byte{0x0F, 0x5A}, dst, src)
}

// Comiss/Comisd compares two scalar floats and sets CF/ZF/PF (unordered
// sets all three), per spec §4.5.
func (e *Emitter) ComissOrComisd(is64 bool, a, b Register) {
	if is64 {
		e.buf.EmitU8(0x66)
	}
	e.emitRegReg(false, []byte{0x0F, 0x2F}, a, b)
}

// --- Control flow -----------------------------------------------------

// JmpRel32 emits an unconditional near jump with a placeholder rel32 and
// returns the offset of the displacement for later patching.
func (e *Emitter) JmpRel32() (patchOffset int) {
	e.buf.EmitU8(0xE9)
	patchOffset = e.buf.Position()
	e.buf.EmitI32(0)
	return patchOffset
}

// JccRel32 emits a conditional near jump (0x0F 0x8x rel32, per spec §4.2's
// "short forms are not used") and returns the displacement's patch offset.
func (e *Emitter) JccRel32(cond Condition) (patchOffset int) {
	e.buf.EmitU8(0x0F)
	e.buf.EmitU8(jccSecondaryOpcode(cond))
	patchOffset = e.buf.Position()
	e.buf.EmitI32(0)
	return patchOffset
}

// CallRel32 emits a direct near call with a placeholder rel32 and returns
// the displacement's patch offset, for call targets (e.g. a finally
// funclet) not yet known at emission time.
func (e *Emitter) CallRel32() (patchOffset int) {
	e.buf.EmitU8(0xE8)
	patchOffset = e.buf.Position()
	e.buf.EmitI32(0)
	return patchOffset
}

// CallReg emits a near call through a register (0xFF /2).
func (e *Emitter) CallReg(target Register) {
	if needsRex(false, target) {
		e.buf.EmitU8(rex(false, NilRegister, NilRegister, target))
	}
	e.buf.EmitU8(0xFF)
	e.buf.EmitU8(modRMByte(3, 2, target.encoding()))
}

// CallMem emits a near call through a memory operand, [base+disp] (0xFF /2).
func (e *Emitter) CallMem(base Register, disp int32) {
	e.emitDigitMem(false, []byte{0xFF}, 2, base, disp, NilRegister, Scale1)
}

// Ret emits a near return.
func (e *Emitter) Ret() {
	e.buf.EmitU8(0xC3)
}

// Int3 emits a debug breakpoint trap.
func (e *Emitter) Int3() {
	e.buf.EmitU8(0xCC)
}

// IntImm8 emits a software interrupt with an explicit vector, used for the
// overflow (int 4) and array-bounds (int 5) traps of spec §4.5/§4.6/§6.
func (e *Emitter) IntImm8(vector byte) {
	e.buf.EmitU8(0xCD)
	e.buf.EmitU8(vector)
}

// RepMovsb emits `rep movsb`, copying RCX bytes from [RSI] to [RDI],
// advancing both pointers, used by InitializeArray (spec §4.10).
func (e *Emitter) RepMovsb() {
	e.buf.EmitU8(0xF3)
	e.buf.EmitU8(0xA4)
}

// Push64 pushes a 64-bit register.
func (e *Emitter) Push64(r Register) {
	if r.needsREXBit() {
		e.buf.EmitU8(rexBase | rexB)
	}
	e.buf.EmitU8(0x50 + r.encoding())
}

// Pop64 pops a 64-bit register.
func (e *Emitter) Pop64(r Register) {
	if r.needsREXBit() {
		e.buf.EmitU8(rexBase | rexB)
	}
	e.buf.EmitU8(0x58 + r.encoding())
}

// AddRspImm32/SubRspImm32 grow or shrink the machine stack, the compound
// adjustment spec §4.8 calls for around shadow-space and call-frame setup.
func (e *Emitter) SubRspImm32(n int32) {
	e.ArithRegImm32(Width64, ArithSub, RSP, n)
}

func (e *Emitter) AddRspImm32(n int32) {
	e.ArithRegImm32(Width64, ArithAdd, RSP, n)
}
