package compiler

import (
	"github.com/ProtonOS/baseline-jit/internal/asm"
	"github.com/ProtonOS/baseline-jit/internal/cil"
	"github.com/ProtonOS/baseline-jit/internal/evalstack"
	"github.com/ProtonOS/baseline-jit/internal/resolver"
)

// resolveField invokes the FieldResolver, wrapping a nil resolver or a
// resolver error as the one ErrResolverFailure case spec §7 names.
func (mc *methodCompiler) resolveField(token uint32) (resolver.ResolvedField, error) {
	if mc.jit.resolvers.Field == nil {
		return resolver.ResolvedField{}, newErr(ErrResolverFailure, -1, "no FieldResolver configured")
	}
	f, err := mc.jit.resolvers.Field.ResolveField(token, mc.in.AssemblyID)
	if err != nil {
		return resolver.ResolvedField{}, newErr(ErrResolverFailure, -1, "field token %#x: %v", token, err)
	}
	return f, nil
}

func (mc *methodCompiler) resolveType(token uint32) (resolver.ResolvedType, error) {
	if mc.jit.resolvers.Type == nil {
		return resolver.ResolvedType{}, newErr(ErrResolverFailure, -1, "no TypeResolver configured")
	}
	t, err := mc.jit.resolvers.Type.ResolveType(token, mc.in.AssemblyID)
	if err != nil {
		return resolver.ResolvedType{}, newErr(ErrResolverFailure, -1, "type token %#x: %v", token, err)
	}
	return t, nil
}

func (mc *methodCompiler) resolveMethod(token uint32) (resolver.ResolvedMethod, error) {
	if mc.jit.resolvers.Method == nil {
		return resolver.ResolvedMethod{}, newErr(ErrResolverFailure, -1, "no MethodResolver configured")
	}
	m, err := mc.jit.resolvers.Method.ResolveMethod(token, mc.in.AssemblyID)
	if err != nil {
		return resolver.ResolvedMethod{}, newErr(ErrResolverFailure, -1, "method token %#x: %v", token, err)
	}
	return m, nil
}

func naturalWidth(size int32) asm.Width {
	switch size {
	case 1:
		return asm.Width8
	case 2:
		return asm.Width16
	case 4:
		return asm.Width32
	default:
		return asm.Width64
	}
}

// loadNatural loads a naturally-sized field value from [base+disp] into
// dst, sign- or zero-extending narrower widths to a full 64-bit register,
// per spec §4.6.
func (mc *methodCompiler) loadNatural(f resolver.ResolvedField, base asm.Register, disp int32, dst asm.Register) {
	switch f.ByteSize {
	case 1, 2:
		if f.SignedLoad {
			mc.e.MovsxMemToReg64(naturalWidth(f.ByteSize), base, disp, dst)
		} else {
			mc.e.MovzxMemToReg64(naturalWidth(f.ByteSize), base, disp, dst)
		}
	case 4:
		if f.SignedLoad {
			mc.e.MovsxdMemToReg64(base, disp, dst)
		} else {
			mc.e.MovMemToReg(asm.Width32, base, disp, dst) // upper 32 bits auto-zeroed
		}
	default:
		mc.e.MovMemToReg(asm.Width64, base, disp, dst)
	}
}

// ldfld lowers field loads per spec §4.6. Simplifications from the full
// spec text: the ≤8-byte-ValueType "extract by shifting and masking in a
// register" path and the >8-byte-ValueType in-place-on-stack path are
// unified here into "load from the managed pointer on the stack", since
// this tier always keeps aggregates addressable rather than fully
// decomposing them into scalar registers.
func (mc *methodCompiler) ldfld(token uint32) error {
	f, err := mc.resolveField(token)
	if err != nil {
		return err
	}
	objEntry, err := mc.popTo(asm.RAX)
	if err != nil {
		return err
	}

	if f.FieldIsValueType && f.ByteSize > 8 {
		if objEntry.Kind == evalstack.ValueType {
			evalstack.PushValueType(mc.e, mc.stack, f.ByteSize, asm.RSP, f.Offset)
		} else {
			evalstack.PushValueType(mc.e, mc.stack, f.ByteSize, asm.RAX, f.Offset)
		}
		return nil
	}

	base := asm.RAX
	disp := f.Offset
	if objEntry.Kind == evalstack.ValueType {
		base = asm.RSP
	}
	mc.loadNatural(f, base, disp, asm.RAX)
	kind := evalstack.Int64
	if f.IsGCRef {
		kind = evalstack.ObjectRef
	}
	mc.pushFrom(asm.RAX, kind)
	return nil
}

func (mc *methodCompiler) ldflda(token uint32) error {
	f, err := mc.resolveField(token)
	if err != nil {
		return err
	}
	if _, err := mc.popTo(asm.RAX); err != nil {
		return err
	}
	mc.e.Lea(asm.RAX, f.Offset, asm.RAX)
	mc.pushFrom(asm.RAX, evalstack.ManagedPtr)
	return nil
}

func (mc *methodCompiler) stfld(token uint32) error {
	f, err := mc.resolveField(token)
	if err != nil {
		return err
	}

	if f.FieldIsValueType && f.ByteSize > 8 {
		// Mirrors ldfld's large-struct path: the object pointer sits below
		// the struct value on the eval stack, so it's read directly at its
		// known RSP-relative offset rather than popped, since popTo only
		// ever removes a single 8-byte slot.
		valueEntry := mc.stack.Peek(0)
		mc.e.MovMemToReg(asm.Width64, asm.RSP, valueEntry.ByteSize, asm.RAX)
		mc.e.Lea(asm.RAX, f.Offset, asm.RAX)
		copyMemory(mc.e, asm.RSP, 0, asm.RAX, 0, f.ByteSize)
		mc.stack.Pop()
		mc.e.AddRspImm32(valueEntry.ByteSize)
		if _, err := mc.popTo(asm.RAX); err != nil {
			return err
		}
		return nil
	}

	if _, err := mc.popTo(asm.RCX); err != nil {
		return err
	}
	if _, err := mc.popTo(asm.RAX); err != nil {
		return err
	}
	mc.e.MovRegToMem(naturalWidth(f.ByteSize), asm.RCX, asm.RAX, f.Offset)
	return nil
}

// cctorPreamble emits the static-constructor trigger spec §4.6 describes:
// load the context's function-pointer word, test it, and call it once if
// non-null, clearing the word first to guarantee at-most-once invocation.
func (mc *methodCompiler) cctorPreamble(f resolver.ResolvedField) {
	if mc.jit.registry == nil {
		return
	}
	ctx := mc.jit.registry.ReserveCctor(f.AssemblyID, f.DeclaringTypeToken)
	mc.e.MovRegImm64(asm.R10, uint64(ctx.Addr()))
	mc.e.MovMemToReg(asm.Width64, asm.R10, 0, asm.R11)
	mc.e.ArithRegImm32(asm.Width64, asm.ArithCmp, asm.R11, 0)
	skip := mc.e.JccRel32(asm.ConditionE)
	mc.e.MovRegImm64(asm.RCX, 0)
	mc.e.MovRegToMem(asm.Width64, asm.RCX, asm.R10, 0)
	mc.e.CallReg(asm.R11)
	mc.recordSafePoint()
	mc.buf.PatchRel32(skip)
}

func (mc *methodCompiler) recordSafePoint() {
	mc.gc.AddSafePoint(int32(mc.buf.Position()))
}

func (mc *methodCompiler) ldsfld(token uint32) error {
	f, err := mc.resolveField(token)
	if err != nil {
		return err
	}
	mc.cctorPreamble(f)
	mc.e.MovRegImm64(asm.RAX, uint64(f.StaticAddr))
	mc.loadNatural(f, asm.RAX, 0, asm.RAX)
	kind := evalstack.Int64
	if f.IsGCRef {
		kind = evalstack.ObjectRef
	}
	mc.pushFrom(asm.RAX, kind)
	return nil
}

func (mc *methodCompiler) ldsflda(token uint32) error {
	f, err := mc.resolveField(token)
	if err != nil {
		return err
	}
	mc.cctorPreamble(f)
	mc.e.MovRegImm64(asm.RAX, uint64(f.StaticAddr))
	mc.pushFrom(asm.RAX, evalstack.ManagedPtr)
	return nil
}

func (mc *methodCompiler) stsfld(token uint32) error {
	f, err := mc.resolveField(token)
	if err != nil {
		return err
	}
	mc.cctorPreamble(f)
	if _, err := mc.popTo(asm.RCX); err != nil {
		return err
	}
	mc.e.MovRegImm64(asm.RAX, uint64(f.StaticAddr))
	mc.e.MovRegToMem(naturalWidth(f.ByteSize), asm.RCX, asm.RAX, 0)
	return nil
}

// indWidth maps an ldind/stind opcode to its natural width and signedness.
func indWidth(op cil.Opcode) (w asm.Width, signed bool) {
	switch op {
	case cil.OpLdindI1, cil.OpStindI1:
		return asm.Width8, true
	case cil.OpLdindU1:
		return asm.Width8, false
	case cil.OpLdindI2, cil.OpStindI2:
		return asm.Width16, true
	case cil.OpLdindU2:
		return asm.Width16, false
	case cil.OpLdindI4, cil.OpStindI4:
		return asm.Width32, true
	case cil.OpLdindU4:
		return asm.Width32, false
	default:
		return asm.Width64, true
	}
}

func (mc *methodCompiler) ldind(op cil.Opcode) error {
	if _, err := mc.popTo(asm.RAX); err != nil {
		return err
	}
	w, signed := indWidth(op)
	switch w {
	case asm.Width8, asm.Width16:
		if signed {
			mc.e.MovsxMemToReg64(w, asm.RAX, 0, asm.RAX)
		} else {
			mc.e.MovzxMemToReg64(w, asm.RAX, 0, asm.RAX)
		}
	case asm.Width32:
		if signed {
			mc.e.MovsxdMemToReg64(asm.RAX, 0, asm.RAX)
		} else {
			mc.e.MovMemToReg(asm.Width32, asm.RAX, 0, asm.RAX)
		}
	default:
		mc.e.MovMemToReg(asm.Width64, asm.RAX, 0, asm.RAX)
	}
	kind := evalstack.Int64
	if op == cil.OpLdindRef {
		kind = evalstack.ObjectRef
	} else if op == cil.OpLdindR4 || op == cil.OpLdindR8 {
		kind = evalstack.Float64
	}
	mc.pushFrom(asm.RAX, kind)
	return nil
}

func (mc *methodCompiler) stind(op cil.Opcode) error {
	if _, err := mc.popTo(asm.RCX); err != nil { // value
		return err
	}
	if _, err := mc.popTo(asm.RAX); err != nil { // address
		return err
	}
	w, _ := indWidth(op)
	mc.e.MovRegToMem(w, asm.RCX, asm.RAX, 0)
	return nil
}

func (mc *methodCompiler) ldobj(token uint32) error {
	t, err := mc.resolveType(token)
	if err != nil {
		return err
	}
	if _, err := mc.popTo(asm.RAX); err != nil {
		return err
	}
	evalstack.PushValueType(mc.e, mc.stack, t.ValueSize, asm.RAX, 0)
	return nil
}

// stobj copies a value type from the stack into a destination address.
// CIL stack order is ..., dest_addr, value (value on top), so the address
// sits just below the value's bytes; it is read in place before either
// slot is deallocated.
func (mc *methodCompiler) stobj(token uint32) error {
	t, err := mc.resolveType(token)
	if err != nil {
		return err
	}
	if mc.stack.Depth() < 2 {
		return newErr(ErrStackUnderflow, -1, "stobj with fewer than two operands")
	}
	valueEntry := mc.stack.Peek(0)
	mc.e.MovMemToReg(asm.Width64, asm.RSP, valueEntry.ByteSize, asm.RAX)
	copyMemory(mc.e, asm.RSP, 0, asm.RAX, 0, t.ValueSize)
	mc.e.AddRspImm32(valueEntry.ByteSize)
	mc.stack.Pop()
	mc.e.AddRspImm32(8)
	mc.stack.Pop()
	return nil
}

func (mc *methodCompiler) cpobj(token uint32) error {
	t, err := mc.resolveType(token)
	if err != nil {
		return err
	}
	if _, err := mc.popTo(asm.RCX); err != nil { // src
		return err
	}
	if _, err := mc.popTo(asm.RAX); err != nil { // dst
		return err
	}
	copyMemory(mc.e, asm.RCX, 0, asm.RAX, 0, t.ValueSize)
	return nil
}

func (mc *methodCompiler) initobj(token uint32) error {
	t, err := mc.resolveType(token)
	if err != nil {
		return err
	}
	if _, err := mc.popTo(asm.RAX); err != nil {
		return err
	}
	zeroMemory(mc.e, asm.RAX, 0, t.ValueSize)
	return nil
}

func (mc *methodCompiler) cpblk() error {
	if _, err := mc.popTo(asm.RDX); err != nil { // size
		return err
	}
	if _, err := mc.popTo(asm.RCX); err != nil { // src
		return err
	}
	if _, err := mc.popTo(asm.RAX); err != nil { // dst
		return err
	}
	mc.e.MovRegReg(asm.Width64, asm.RAX, asm.RDI)
	mc.e.MovRegReg(asm.Width64, asm.RCX, asm.RSI)
	mc.e.MovRegReg(asm.Width64, asm.RDX, asm.RCX)
	mc.e.RepMovsb()
	return nil
}

// initblk has no dedicated emitter helper (only RepMovsb is exposed), so
// the `rep stosb` encoding (0xF3 0xAA) is emitted directly; RAX/RCX/RDI
// are loaded with the fill byte, count, and destination the same way
// RepMovsb expects its operands set up.
func (mc *methodCompiler) initblk() error {
	if _, err := mc.popTo(asm.RDX); err != nil { // size
		return err
	}
	if _, err := mc.popTo(asm.RCX); err != nil { // value byte
		return err
	}
	if _, err := mc.popTo(asm.RAX); err != nil { // addr
		return err
	}
	mc.e.MovRegReg(asm.Width64, asm.RAX, asm.RDI)
	mc.e.MovRegReg(asm.Width64, asm.RCX, asm.RAX)
	mc.e.MovRegReg(asm.Width64, asm.RDX, asm.RCX)
	mc.buf.EmitBytes(0xF3, 0xAA)
	return nil
}

// copyMemory emits a straight-line byte copy in the same 8- and 4-byte
// chunks as evalstack's struct-copy helper, except that any remaining tail
// is copied one byte at a time; it is used here for cpobj/box/unbox-style
// aggregate moves that are not eval-stack push/pop operations themselves.
func copyMemory(e *asm.Emitter, src asm.Register, srcDisp int32, dst asm.Register, dstDisp int32, n int32) {
	var off int32
	for n-off >= 8 {
		e.MovMemToReg(asm.Width64, src, srcDisp+off, asm.R10)
		e.MovRegToMem(asm.Width64, asm.R10, dst, dstDisp+off)
		off += 8
	}
	if n-off >= 4 {
		e.MovMemToReg(asm.Width32, src, srcDisp+off, asm.R10)
		e.MovRegToMem(asm.Width32, asm.R10, dst, dstDisp+off)
		off += 4
	}
	for ; off < n; off++ {
		e.MovzxMemToReg64(asm.Width8, src, srcDisp+off, asm.R10)
		e.MovRegToMem(asm.Width8, asm.R10, dst, dstDisp+off)
	}
}

func zeroMemory(e *asm.Emitter, base asm.Register, disp int32, n int32) {
	e.MovRegImm64(asm.R11, 0)
	var off int32
	for n-off >= 8 {
		e.MovRegToMem(asm.Width64, asm.R11, base, disp+off)
		off += 8
	}
	for ; off < n; off++ {
		e.MovRegToMem(asm.Width8, asm.R11, base, disp+off)
	}
}

// SZ-array layout per spec §4.6: MethodTable pointer (8) + int64 length
// (8), elements starting at offset 16.
const (
	arrayLengthOffset = 8
	arrayDataOffset   = 16
)

func (mc *methodCompiler) newarr(token uint32) error {
	t, err := mc.resolveType(token)
	if err != nil {
		return err
	}
	if _, err := mc.popTo(asm.RDX); err != nil { // count
		return err
	}
	if mc.helpers().NewArray == 0 {
		return newErr(ErrResolverFailure, -1, "no RhpNewArray helper address configured")
	}
	mc.e.MovRegImm64(asm.RCX, uint64(t.MethodTable))
	mc.e.SubRspImm32(32) // shadow space
	mc.e.MovRegImm64(asm.RAX, uint64(mc.helpers().NewArray))
	mc.e.CallReg(asm.RAX)
	mc.e.AddRspImm32(32)
	mc.recordSafePoint()
	mc.pushFrom(asm.RAX, evalstack.ObjectRef)
	return nil
}

func (mc *methodCompiler) ldlen() error {
	if _, err := mc.popTo(asm.RAX); err != nil {
		return err
	}
	mc.e.MovMemToReg(asm.Width64, asm.RAX, arrayLengthOffset, asm.RAX)
	mc.pushFrom(asm.RAX, evalstack.NativeInt)
	return nil
}

// boundsCheck pops nothing; it assumes index is in RCX and the array
// reference is in RAX, and traps with int 5 when index is out of range
// (unsigned compare catches negative indices too, per spec §4.6).
func (mc *methodCompiler) boundsCheck() {
	mc.e.MovMemToReg(asm.Width64, asm.RAX, arrayLengthOffset, asm.R10)
	mc.e.ArithRegReg(asm.Width64, asm.ArithCmp, asm.R10, asm.RCX)
	ok := mc.e.JccRel32(asm.ConditionB)
	mc.e.IntImm8(5)
	mc.buf.PatchRel32(ok)
}

func elemSize(op cil.Opcode) int32 {
	switch op {
	case cil.OpLdelemI1, cil.OpLdelemU1, cil.OpStelemI1:
		return 1
	case cil.OpLdelemI2, cil.OpLdelemU2, cil.OpStelemI2:
		return 2
	case cil.OpLdelemI4, cil.OpLdelemU4, cil.OpStelemI4, cil.OpLdelemR4, cil.OpStelemR4:
		return 4
	default:
		return 8
	}
}

// elemAddrToRAX computes array + 16 + index * elem_size into RAX, given
// the array reference in RAX and the index in RCX, after a bounds check.
// Uses a shift for power-of-two sizes and imul otherwise, per spec §4.6.
func (mc *methodCompiler) elemAddrToRAX(size int32) {
	mc.boundsCheck()
	switch size {
	case 1:
	case 2:
		mc.e.ShiftByImm8(asm.Width64, asm.ShiftShl, asm.RCX, 1)
	case 4:
		mc.e.ShiftByImm8(asm.Width64, asm.ShiftShl, asm.RCX, 2)
	case 8:
		mc.e.ShiftByImm8(asm.Width64, asm.ShiftShl, asm.RCX, 3)
	default:
		mc.e.ImulRegImm32(asm.Width64, asm.RCX, asm.RCX, size)
	}
	mc.e.Lea(asm.RAX, arrayDataOffset, asm.RAX)
	mc.e.ArithRegReg(asm.Width64, asm.ArithAdd, asm.RCX, asm.RAX)
}

func (mc *methodCompiler) ldelem(op cil.Opcode, _ uint32) error {
	if _, err := mc.popTo(asm.RCX); err != nil { // index
		return err
	}
	if _, err := mc.popTo(asm.RAX); err != nil { // array
		return err
	}
	size := elemSize(op)
	mc.elemAddrToRAX(size)
	switch op {
	case cil.OpLdelemI1:
		mc.e.MovsxMemToReg64(asm.Width8, asm.RAX, 0, asm.RAX)
	case cil.OpLdelemU1:
		mc.e.MovzxMemToReg64(asm.Width8, asm.RAX, 0, asm.RAX)
	case cil.OpLdelemI2:
		mc.e.MovsxMemToReg64(asm.Width16, asm.RAX, 0, asm.RAX)
	case cil.OpLdelemU2:
		mc.e.MovzxMemToReg64(asm.Width16, asm.RAX, 0, asm.RAX)
	case cil.OpLdelemI4:
		mc.e.MovsxdMemToReg64(asm.RAX, 0, asm.RAX)
	case cil.OpLdelemU4:
		mc.e.MovMemToReg(asm.Width32, asm.RAX, 0, asm.RAX)
	case cil.OpLdelemR4:
		mc.e.MovssOrSdMemToReg(false, asm.RAX, 0, asm.XMM0)
		mc.e.CvtSS2SD(asm.XMM0, asm.XMM0)
		mc.e.MovdOrMovq(true, false, asm.RAX, asm.XMM0)
	default:
		mc.e.MovMemToReg(asm.Width64, asm.RAX, 0, asm.RAX)
	}
	kind := evalstack.Int64
	switch op {
	case cil.OpLdelemI1, cil.OpLdelemU1, cil.OpLdelemI2, cil.OpLdelemU2, cil.OpLdelemI4, cil.OpLdelemU4:
		kind = evalstack.Int32
	case cil.OpLdelemR4, cil.OpLdelemR8:
		kind = evalstack.Float64
	case cil.OpLdelemRef:
		kind = evalstack.ObjectRef
	}
	mc.pushFrom(asm.RAX, kind)
	return nil
}

func (mc *methodCompiler) ldelemGeneric(token uint32) error {
	t, err := mc.resolveType(token)
	if err != nil {
		return err
	}
	if _, err := mc.popTo(asm.RCX); err != nil { // index
		return err
	}
	if _, err := mc.popTo(asm.RAX); err != nil { // array
		return err
	}
	if t.ValueSize > 8 {
		mc.boundsCheckForSize(t.ComponentSize)
		mc.e.Lea(asm.RAX, arrayDataOffset, asm.RAX)
		mc.e.ImulRegImm32(asm.Width64, asm.RCX, asm.RCX, t.ComponentSize)
		mc.e.ArithRegReg(asm.Width64, asm.ArithAdd, asm.RCX, asm.RAX)
		evalstack.PushValueType(mc.e, mc.stack, t.ValueSize, asm.RAX, 0)
		return nil
	}
	mc.elemAddrToRAX(t.ComponentSize)
	mc.e.MovMemToReg(naturalWidth(t.ComponentSize), asm.RAX, 0, asm.RAX)
	kind := evalstack.Int64
	if t.IsValueType {
		kind = evalstack.Int32
	}
	mc.pushFrom(asm.RAX, kind)
	return nil
}

// boundsCheckForSize is elemAddrToRAX's bounds-check half, split out for
// callers that need a non-power-of-two/arbitrary-size address computation
// of their own (the >8-byte generic ldelem path).
func (mc *methodCompiler) boundsCheckForSize(size int32) {
	mc.boundsCheck()
}

func (mc *methodCompiler) stelem(op cil.Opcode, _ uint32) error {
	if _, err := mc.popTo(asm.RDX); err != nil { // value
		return err
	}
	if _, err := mc.popTo(asm.RCX); err != nil { // index
		return err
	}
	if _, err := mc.popTo(asm.RAX); err != nil { // array
		return err
	}
	size := elemSize(op)
	mc.elemAddrToRAX(size)
	if op == cil.OpStelemR4 {
		mc.e.MovdOrMovq(true, true, asm.RDX, asm.XMM0)
		mc.e.CvtSD2SS(asm.XMM0, asm.XMM0)
		mc.e.MovssOrSdRegToMem(false, asm.XMM0, asm.RAX, 0)
		return nil
	}
	mc.e.MovRegToMem(naturalWidth(size), asm.RDX, asm.RAX, 0)
	return nil
}

func (mc *methodCompiler) stelemGeneric(token uint32) error {
	t, err := mc.resolveType(token)
	if err != nil {
		return err
	}
	if t.ValueSize > 8 {
		if _, err := mc.popTo(asm.RDX); err != nil { // value addr (managed pointer to temp)
			return err
		}
		if _, err := mc.popTo(asm.RCX); err != nil { // index
			return err
		}
		if _, err := mc.popTo(asm.RAX); err != nil { // array
			return err
		}
		mc.boundsCheck()
		mc.e.Lea(asm.RAX, arrayDataOffset, asm.RAX)
		mc.e.ImulRegImm32(asm.Width64, asm.RCX, asm.RCX, t.ComponentSize)
		mc.e.ArithRegReg(asm.Width64, asm.ArithAdd, asm.RCX, asm.RAX)
		copyMemory(mc.e, asm.RDX, 0, asm.RAX, 0, t.ValueSize)
		return nil
	}
	if _, err := mc.popTo(asm.RDX); err != nil { // value
		return err
	}
	if _, err := mc.popTo(asm.RCX); err != nil { // index
		return err
	}
	if _, err := mc.popTo(asm.RAX); err != nil { // array
		return err
	}
	mc.elemAddrToRAX(t.ComponentSize)
	mc.e.MovRegToMem(naturalWidth(t.ComponentSize), asm.RDX, asm.RAX, 0)
	return nil
}

func (mc *methodCompiler) ldelema(token uint32) error {
	t, err := mc.resolveType(token)
	if err != nil {
		return err
	}
	if _, err := mc.popTo(asm.RCX); err != nil { // index
		return err
	}
	if _, err := mc.popTo(asm.RAX); err != nil { // array
		return err
	}
	mc.elemAddrToRAX(t.ComponentSize)
	mc.pushFrom(asm.RAX, evalstack.ManagedPtr)
	return nil
}

// helpers exposes the host-provided allocation/type-test routines this
// file's newarr lowering and objectops.go's box/castclass/MD-array
// lowering call into.
func (mc *methodCompiler) helpers() resolver.RuntimeHelpers {
	return mc.jit.helpers
}
