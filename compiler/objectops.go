package compiler

import (
	"github.com/ProtonOS/baseline-jit/internal/asm"
	"github.com/ProtonOS/baseline-jit/internal/evalstack"
	"github.com/ProtonOS/baseline-jit/internal/resolver"
)

// resolveString invokes the StringResolver, wrapping a nil resolver or a
// resolver error as ErrResolverFailure, matching memory.go's
// resolveField/resolveType/resolveMethod wrappers.
func (mc *methodCompiler) resolveString(token uint32) (resolver.ResolvedString, error) {
	if mc.jit.resolvers.String == nil {
		return resolver.ResolvedString{}, newErr(ErrResolverFailure, -1, "no StringResolver configured")
	}
	s, err := mc.jit.resolvers.String.ResolveString(token, mc.in.AssemblyID)
	if err != nil {
		return resolver.ResolvedString{}, newErr(ErrResolverFailure, -1, "string token %#x: %v", token, err)
	}
	return s, nil
}

func (mc *methodCompiler) resolveStaticData(token uint32) (resolver.StaticDataHandle, error) {
	if mc.jit.resolvers.StaticData == nil {
		return resolver.StaticDataHandle{}, newErr(ErrResolverFailure, -1, "no StaticDataResolver configured")
	}
	return mc.jit.resolvers.StaticData.ResolveStaticData(token, mc.in.AssemblyID)
}

// box lowers the box opcode per spec §4.9: a no-op for reference types, a
// fresh heap allocation with the value's bytes copied to offset 8 for
// ordinary value types, and the HasValue-gated inner-box for Nullable<T>.
func (mc *methodCompiler) box(token uint32) error {
	t, err := mc.resolveType(token)
	if err != nil {
		return err
	}
	if !t.IsValueType {
		return nil // already a reference; the stack entry is the boxed form
	}
	if t.IsNullable {
		return mc.boxNullable(t)
	}
	return mc.boxValue(t.MethodTable, t.ValueSize)
}

// boxValue allocates via RhpNewFast and copies valueSize bytes from the
// current top-of-stack entry to [obj+8], per spec §4.9.
func (mc *methodCompiler) boxValue(mt uintptr, valueSize int32) error {
	if mc.helpers().NewFast == 0 {
		return newErr(ErrResolverFailure, -1, "no RhpNewFast helper address configured")
	}
	top := mc.stack.Peek(0)
	if top.ByteSize <= 8 {
		mc.e.MovMemToReg(asm.Width64, asm.RSP, 0, asm.R12) // save the bit pattern
	} else {
		mc.e.Lea(asm.RSP, 0, asm.R12) // save the address; bytes stay on the machine stack
	}

	mc.e.MovRegImm64(asm.RCX, uint64(mt))
	mc.e.SubRspImm32(32)
	mc.e.MovRegImm64(asm.RAX, uint64(mc.helpers().NewFast))
	mc.e.CallReg(asm.RAX)
	mc.e.AddRspImm32(32)
	mc.recordSafePoint()

	if top.ByteSize <= 8 {
		mc.e.MovRegToMem(asm.Width64, asm.R12, asm.RAX, 8)
		mc.stack.Pop()
		mc.e.AddRspImm32(8)
	} else {
		copyMemory(mc.e, asm.R12, 0, asm.RAX, 8, valueSize)
		mc.e.AddRspImm32(top.ByteSize)
		mc.stack.Pop()
	}
	mc.pushFrom(asm.RAX, evalstack.ObjectRef)
	return nil
}

// boxNullable reads HasValue (offset 0 of the Nullable<T> value already on
// the stack) and either pushes null or boxes the inner T at
// NullableValueOffset, per spec §4.9.
func (mc *methodCompiler) boxNullable(t resolver.ResolvedType) error {
	top := mc.stack.Peek(0)
	mc.e.MovzxMemToReg64(asm.Width8, asm.RSP, 0, asm.R10)
	mc.e.ArithRegImm32(asm.Width64, asm.ArithCmp, asm.R10, 0)
	hasValue := mc.e.JccRel32(asm.ConditionNE)

	// HasValue == 0: discard the Nullable bytes, push null.
	mc.e.AddRspImm32(top.ByteSize)
	mc.stack.Pop()
	mc.e.MovRegImm64(asm.RAX, 0)
	mc.pushFrom(asm.RAX, evalstack.ObjectRef)
	skip := mc.e.JmpRel32()

	mc.buf.PatchRel32(hasValue)
	if mc.helpers().NewFast == 0 {
		return newErr(ErrResolverFailure, -1, "no RhpNewFast helper address configured")
	}
	mc.e.Lea(asm.RSP, t.NullableValueOffset, asm.R12)
	mc.e.MovRegImm64(asm.RCX, uint64(t.NullableInnerMT))
	mc.e.SubRspImm32(32)
	mc.e.MovRegImm64(asm.RAX, uint64(mc.helpers().NewFast))
	mc.e.CallReg(asm.RAX)
	mc.e.AddRspImm32(32)
	mc.recordSafePoint()
	copyMemory(mc.e, asm.R12, 0, asm.RAX, 8, t.NullableInnerSize)
	mc.e.AddRspImm32(top.ByteSize)
	mc.stack.Pop()
	mc.pushFrom(asm.RAX, evalstack.ObjectRef)

	mc.buf.PatchRel32(skip)
	return nil
}

// unbox pushes obj+8 as a managed pointer, per spec §4.9.
func (mc *methodCompiler) unbox(token uint32) error {
	if _, err := mc.resolveType(token); err != nil {
		return err
	}
	if _, err := mc.popTo(asm.RAX); err != nil {
		return err
	}
	mc.e.Lea(asm.RAX, 8, asm.RAX)
	mc.pushFrom(asm.RAX, evalstack.ManagedPtr)
	return nil
}

// unboxAny copies the unboxed value onto the stack, constructing a fresh
// Nullable<T> when the target is Nullable<T>, per spec §4.9. Unboxing a
// reference-type target degrades to castclass, per ECMA-335 III.4.33.
func (mc *methodCompiler) unboxAny(token uint32) error {
	t, err := mc.resolveType(token)
	if err != nil {
		return err
	}
	if !t.IsValueType {
		return mc.castclassTo(t)
	}
	if t.IsNullable {
		return mc.unboxAnyNullable(t)
	}
	if _, err := mc.popTo(asm.RAX); err != nil {
		return err
	}
	evalstack.PushValueType(mc.e, mc.stack, t.ValueSize, asm.RAX, 8)
	return nil
}

// unboxAnyNullable builds a fresh Nullable<T> value on the eval stack: null
// input yields HasValue=0, a non-null boxed T yields HasValue=1 with the
// inner value copied from [obj+8].
func (mc *methodCompiler) unboxAnyNullable(t resolver.ResolvedType) error {
	if _, err := mc.popTo(asm.RAX); err != nil {
		return err
	}
	entry := evalstack.NewValueTypeEntry(t.ValueSize)
	mc.e.SubRspImm32(entry.ByteSize)
	zeroMemory(mc.e, asm.RSP, 0, entry.ByteSize)

	mc.e.ArithRegImm32(asm.Width64, asm.ArithCmp, asm.RAX, 0)
	isNull := mc.e.JccRel32(asm.ConditionE)
	mc.e.MovRegImm32(asm.Width8, asm.R10, 1)
	mc.e.MovRegToMem(asm.Width8, asm.R10, asm.RSP, 0)
	copyMemory(mc.e, asm.RAX, 8, asm.RSP, t.NullableValueOffset, t.NullableInnerSize)
	mc.buf.PatchRel32(isNull)

	mc.stack.Push(entry)
	return nil
}

// castclass validates the top-of-stack object reference against targetMT,
// trapping with int3 on failure, per spec §4.9 (the host runtime maps the
// trap to InvalidCastException).
func (mc *methodCompiler) castclass(token uint32) error {
	t, err := mc.resolveType(token)
	if err != nil {
		return err
	}
	return mc.castclassTo(t)
}

func (mc *methodCompiler) castclassTo(t resolver.ResolvedType) error {
	if mc.helpers().IsAssignableTo == 0 {
		return newErr(ErrResolverFailure, -1, "no IsAssignableTo helper address configured")
	}
	mc.e.MovMemToReg(asm.Width64, asm.RSP, 0, asm.RCX) // peek, object stays on stack
	mc.e.ArithRegImm32(asm.Width64, asm.ArithCmp, asm.RCX, 0)
	isNull := mc.e.JccRel32(asm.ConditionE)

	mc.e.MovMemToReg(asm.Width64, asm.RCX, 0, asm.RCX) // objMT
	mc.e.MovRegImm64(asm.RDX, uint64(t.MethodTable))
	mc.e.SubRspImm32(32)
	mc.e.MovRegImm64(asm.RAX, uint64(mc.helpers().IsAssignableTo))
	mc.e.CallReg(asm.RAX)
	mc.e.AddRspImm32(32)
	mc.recordSafePoint()
	mc.e.ArithRegImm32(asm.Width64, asm.ArithCmp, asm.RAX, 0)
	ok := mc.e.JccRel32(asm.ConditionNE)
	mc.e.Int3()
	mc.buf.PatchRel32(ok)

	mc.buf.PatchRel32(isNull)
	return nil
}

// isinst is castclass with a null result instead of a trap on failure, per
// spec §4.9.
func (mc *methodCompiler) isinst(token uint32) error {
	t, err := mc.resolveType(token)
	if err != nil {
		return err
	}
	if mc.helpers().IsAssignableTo == 0 {
		return newErr(ErrResolverFailure, -1, "no IsAssignableTo helper address configured")
	}
	mc.e.MovMemToReg(asm.Width64, asm.RSP, 0, asm.RCX)
	mc.e.ArithRegImm32(asm.Width64, asm.ArithCmp, asm.RCX, 0)
	isNull := mc.e.JccRel32(asm.ConditionE)

	mc.e.MovMemToReg(asm.Width64, asm.RCX, 0, asm.RCX)
	mc.e.MovRegImm64(asm.RDX, uint64(t.MethodTable))
	mc.e.SubRspImm32(32)
	mc.e.MovRegImm64(asm.RAX, uint64(mc.helpers().IsAssignableTo))
	mc.e.CallReg(asm.RAX)
	mc.e.AddRspImm32(32)
	mc.recordSafePoint()
	mc.e.ArithRegImm32(asm.Width64, asm.ArithCmp, asm.RAX, 0)
	assignable := mc.e.JccRel32(asm.ConditionNE)
	mc.e.MovRegImm64(asm.RAX, 0)
	mc.e.MovRegToMem(asm.Width64, asm.RAX, asm.RSP, 0) // fails: replace with null
	mc.buf.PatchRel32(assignable)

	mc.buf.PatchRel32(isNull)
	return nil
}

// ldtoken's concrete handle shape depends on the token's metadata table,
// encoded in the token's top byte per ECMA-335 II.22: type tokens produce
// a MethodTable pointer, field tokens with static initializer data produce
// that data's address, and everything else (methods, plain fields)
// produces the composite (assembly_id << 32) | token spec §4.9 names.
const (
	tableTypeDef  = 0x02
	tableTypeRef  = 0x01
	tableTypeSpec = 0x1B
	tableField    = 0x04
)

func (mc *methodCompiler) ldtoken(token uint32) error {
	table := byte(token >> 24)
	switch table {
	case tableTypeDef, tableTypeRef, tableTypeSpec:
		t, err := mc.resolveType(token)
		if err != nil {
			return err
		}
		mc.e.MovRegImm64(asm.RAX, uint64(t.MethodTable))
		mc.pushFrom(asm.RAX, evalstack.NativeInt)
		return nil
	case tableField:
		if h, err := mc.resolveStaticData(token); err == nil {
			mc.e.MovRegImm64(asm.RAX, uint64(h.Addr))
			mc.pushFrom(asm.RAX, evalstack.NativeInt)
			return nil
		}
	}
	mc.e.MovRegImm64(asm.RAX, (uint64(mc.in.AssemblyID)<<32)|uint64(token))
	mc.pushFrom(asm.RAX, evalstack.Int64)
	return nil
}

// ldftn pushes a function pointer: the immediate address if the target is
// already compiled, otherwise an indirect load through its registry cell,
// per spec §4.9.
func (mc *methodCompiler) ldftn(token uint32) error {
	m, err := mc.resolveMethod(token)
	if err != nil {
		return err
	}
	mc.loadMethodAddr(m)
	mc.pushFrom(asm.RAX, evalstack.NativeInt)
	return nil
}

// loadMethodAddr loads m's native code address into RAX, directly if
// already compiled, or indirectly through its registry cell otherwise.
func (mc *methodCompiler) loadMethodAddr(m resolver.ResolvedMethod) {
	if m.Cell == nil {
		mc.e.MovRegImm64(asm.RAX, 0)
		return
	}
	if code := m.Cell.Load(); code != nil {
		mc.e.MovRegImm64(asm.RAX, uint64(uintptrOfByte(code)))
		return
	}
	mc.e.MovRegImm64(asm.RAX, uint64(cellAddr(m.Cell)))
	mc.e.MovMemToReg(asm.Width64, asm.RAX, 0, asm.RAX)
}

// ldvirtftn pops the object reference it dispatches against and pushes the
// vtable-resolved function pointer, per spec §4.9.
func (mc *methodCompiler) ldvirtftn(token uint32) error {
	m, err := mc.resolveMethod(token)
	if err != nil {
		return err
	}
	if _, err := mc.popTo(asm.RAX); err != nil {
		return err
	}
	mc.e.MovMemToReg(asm.Width64, asm.RAX, 0, asm.RAX) // MethodTable*
	mc.e.MovMemToReg(asm.Width64, asm.RAX, vtableHeaderSize+8*m.VtableSlot, asm.RAX)
	mc.pushFrom(asm.RAX, evalstack.NativeInt)
	return nil
}

// ldstr pushes the interned string object StringResolver returns.
func (mc *methodCompiler) ldstr(token uint32) error {
	s, err := mc.resolveString(token)
	if err != nil {
		return err
	}
	mc.e.MovRegImm64(asm.RAX, uint64(s.Object))
	mc.pushFrom(asm.RAX, evalstack.ObjectRef)
	return nil
}

// arglist pushes the vararg array's start pointer, per spec §4.8's
// "RBP + 48 + max(0, declared_args - 4) * 8".
func (mc *methodCompiler) arglist() error {
	mc.frame.argListPointer(mc.e, asm.RAX)
	mc.pushFrom(asm.RAX, evalstack.UnmanagedPtr)
	return nil
}

// sizeofOp pushes a resolved type's value size as an int32 constant.
func (mc *methodCompiler) sizeofOp(token uint32) error {
	t, err := mc.resolveType(token)
	if err != nil {
		return err
	}
	mc.e.MovRegImm32(asm.Width32, asm.RAX, t.ValueSize)
	mc.pushFrom(asm.RAX, evalstack.Int32)
	return nil
}

// localloc allocates a runtime-sized block on the machine stack and
// pushes its address. The carved region is never individually freed; it
// is reclaimed in one shot by the method epilogue's `mov rsp, rbp`, per
// ECMA-335 III.3.47's "memory lives for the method's lifetime". The
// tracked eval-stack entry only accounts for the 8-byte pointer slot, not
// the dynamic region beneath it: code after a localloc must not rely on
// PeekRSPOffset to reach below that pointer slot, since the true RSP
// delta is runtime-dependent.
func (mc *methodCompiler) localloc() error {
	if _, err := mc.popTo(asm.RCX); err != nil {
		return err
	}
	mc.e.ArithRegImm32(asm.Width64, asm.ArithAdd, asm.RCX, 15)
	mc.e.ArithRegImm32(asm.Width64, asm.ArithAnd, asm.RCX, ^int32(15))
	mc.e.ArithRegReg(asm.Width64, asm.ArithSub, asm.RCX, asm.RSP)
	mc.e.MovRegReg(asm.Width64, asm.RSP, asm.RAX)
	mc.pushFrom(asm.RAX, evalstack.UnmanagedPtr)
	return nil
}

// activatorCreateInstance lowers the Activator.CreateInstance<T> intrinsic
// per spec §4.10: heap allocation for reference T, a zeroed frame-local
// temp for value T, then an optional default-constructor call if the
// resolver populated one.
func (mc *methodCompiler) activatorCreateInstance(m resolver.ResolvedMethod) error {
	if m.DeclaringIsValueType {
		tempOffset := mc.frame.scratchOffset()
		zeroMemory(mc.e, asm.RBP, tempOffset, m.DeclaringValueSize)
		if m.Cell != nil {
			mc.e.Lea(asm.RBP, tempOffset, asm.RCX)
			mc.e.SubRspImm32(32)
			mc.loadMethodAddr(m)
			mc.e.CallReg(asm.RAX)
			mc.e.AddRspImm32(32)
			mc.recordSafePoint()
		}
		evalstack.PushValueType(mc.e, mc.stack, m.DeclaringValueSize, asm.RBP, tempOffset)
		return nil
	}

	if mc.helpers().NewFast == 0 {
		return newErr(ErrResolverFailure, -1, "no RhpNewFast helper address configured")
	}
	mc.e.MovRegImm64(asm.RCX, uint64(m.DeclaringMT))
	mc.e.SubRspImm32(32)
	mc.e.MovRegImm64(asm.RAX, uint64(mc.helpers().NewFast))
	mc.e.CallReg(asm.RAX)
	mc.e.AddRspImm32(32)
	mc.recordSafePoint()
	mc.e.MovRegReg(asm.Width64, asm.RAX, asm.R12)

	if m.Cell != nil {
		mc.e.MovRegReg(asm.Width64, asm.R12, asm.RCX)
		mc.e.SubRspImm32(32)
		mc.loadMethodAddr(m)
		mc.e.CallReg(asm.RAX)
		mc.e.AddRspImm32(32)
		mc.recordSafePoint()
	}
	mc.pushFrom(asm.R12, evalstack.ObjectRef)
	return nil
}

// initializeArray lowers RuntimeHelpers.InitializeArray(array, fieldHandle)
// per spec §4.10: total bytes = array.Length * componentSize, copied via
// rep movsb from the resolved static data address to array+16. The
// resolver is expected to have already evaluated fieldHandle to the raw
// data address at the preceding ldtoken site (spec §4.9's "fields with
// static data return the data address directly"), so this call's own
// signature carries the element's component size in StructSize, the same
// field ordinary struct returns use for their byte size.
func (mc *methodCompiler) initializeArray(m resolver.ResolvedMethod) error {
	if _, err := mc.popTo(asm.RDX); err != nil { // field data address
		return err
	}
	if _, err := mc.popTo(asm.RAX); err != nil { // array
		return err
	}
	mc.e.MovMemToReg(asm.Width64, asm.RAX, arrayLengthOffset, asm.R10)
	mc.e.ImulRegImm32(asm.Width64, asm.R10, asm.R10, m.StructSize)
	mc.e.Lea(asm.RAX, arrayDataOffset, asm.RDI)
	mc.e.MovRegReg(asm.Width64, asm.RDX, asm.RSI)
	mc.e.MovRegReg(asm.Width64, asm.R10, asm.RCX)
	mc.e.RepMovsb()
	return nil
}

// mdRank validates and returns the supported rank (2 or 3) for a
// multi-dimensional array intrinsic, per spec §4.6's "rank-2 and rank-3
// are handled inline".
func mdRank(n int) (int, error) {
	if n != 2 && n != 3 {
		return 0, newErr(ErrUnsupportedOpcode, -1, "multi-dimensional array access only supports rank 2 or 3, got rank %d", n)
	}
	return n, nil
}

const mdBoundsOffset = 16

// mdLinearIndexToRAX computes the element's linear index given the array
// reference in arr and per-dimension indices in idx, writing the result
// into RAX, per spec §4.6's `i*dim1+j` (rank 2) / `(i*dim1+j)*dim2+k`
// (rank 3) formulas. dim1/dim2 are the bounds array entries past the
// first dimension; lower bounds are not consulted, matching the spec's
// literal index formulas (all-zero-lower-bound arrays are the fast path
// this tier targets).
func (mc *methodCompiler) mdLinearIndexToRAX(arr asm.Register, idx []asm.Register) {
	rank := len(idx)
	mc.e.MovRegReg(asm.Width64, idx[0], asm.RAX)
	mc.e.MovMemToReg(asm.Width32, arr, mdBoundsOffset+4, asm.R10) // dim1
	mc.e.ImulRegReg(asm.Width64, asm.R10, asm.RAX)
	mc.e.ArithRegReg(asm.Width64, asm.ArithAdd, idx[1], asm.RAX)
	if rank == 3 {
		mc.e.MovMemToReg(asm.Width32, arr, mdBoundsOffset+8, asm.R10) // dim2
		mc.e.ImulRegReg(asm.Width64, asm.R10, asm.RAX)
		mc.e.ArithRegReg(asm.Width64, asm.ArithAdd, idx[2], asm.RAX)
	}
}

// mdElementAddr computes arr + header(rank) + linear_index*elemSize into
// RAX, given arr in a register and idx already loaded.
func (mc *methodCompiler) mdElementAddr(arr asm.Register, idx []asm.Register, elemSize int32) {
	mc.mdLinearIndexToRAX(arr, idx)
	mc.e.ImulRegImm32(asm.Width64, asm.RAX, asm.RAX, elemSize)
	rank := int32(len(idx))
	mc.e.Lea(arr, mdBoundsOffset+8*rank, asm.R10) // header + bounds(4*rank) + loBounds(4*rank)
	mc.e.ArithRegReg(asm.Width64, asm.ArithAdd, asm.R10, asm.RAX)
}

// elemStride maps a ResolvedMethod's Return kind (repurposed here to
// describe the array's element kind, not a literal method return for
// Set/Address) to its byte width.
func elemStride(ret resolver.ReturnKind, structSize int32) int32 {
	switch ret {
	case resolver.ReturnInt32, resolver.ReturnFloat32:
		return 4
	case resolver.ReturnStruct:
		return structSize
	default:
		return 8
	}
}

var mdIndexRegs = [3]asm.Register{asm.R9, asm.R10, asm.R11}

func (mc *methodCompiler) mdArrayGet(m resolver.ResolvedMethod) error {
	rank, err := mdRank(m.ArgCount)
	if err != nil {
		return err
	}
	idx := mdIndexRegs[:rank]
	for i := rank - 1; i >= 0; i-- {
		if _, err := mc.popTo(idx[i]); err != nil {
			return err
		}
	}
	if _, err := mc.popTo(asm.RAX); err != nil { // array
		return err
	}
	size := elemStride(m.Return, m.StructSize)
	mc.mdElementAddr(asm.RAX, idx, size)
	return mc.loadMDElement(m.Return, m.StructSize)
}

func (mc *methodCompiler) loadMDElement(ret resolver.ReturnKind, structSize int32) error {
	switch ret {
	case resolver.ReturnStruct:
		evalstack.PushValueType(mc.e, mc.stack, structSize, asm.RAX, 0)
	case resolver.ReturnInt32:
		mc.e.MovsxdMemToReg64(asm.RAX, 0, asm.RAX)
		mc.pushFrom(asm.RAX, evalstack.Int32)
	case resolver.ReturnFloat32:
		mc.e.MovssOrSdMemToReg(false, asm.RAX, 0, asm.XMM0)
		mc.e.CvtSS2SD(asm.XMM0, asm.XMM0)
		mc.e.MovdOrMovq(true, false, asm.RAX, asm.XMM0)
		mc.pushFrom(asm.RAX, evalstack.Float64)
	case resolver.ReturnFloat64:
		mc.e.MovssOrSdMemToReg(true, asm.RAX, 0, asm.XMM0)
		mc.e.MovdOrMovq(true, false, asm.RAX, asm.XMM0)
		mc.pushFrom(asm.RAX, evalstack.Float64)
	default:
		mc.e.MovMemToReg(asm.Width64, asm.RAX, 0, asm.RAX)
		kind := evalstack.Int64
		if ret == resolver.ReturnIntPtr {
			kind = evalstack.NativeInt
		}
		mc.pushFrom(asm.RAX, kind)
	}
	return nil
}

func (mc *methodCompiler) mdArraySet(m resolver.ResolvedMethod) error {
	rank, err := mdRank(m.ArgCount - 1)
	if err != nil {
		return err
	}
	size := elemStride(m.Return, m.StructSize)

	var valueAddr asm.Register
	isStruct := m.Return == resolver.ReturnStruct
	if isStruct {
		if _, err := mc.popTo(asm.R12); err != nil { // address of the pushed struct value
			return err
		}
		valueAddr = asm.R12
	} else if _, err := mc.popTo(asm.RDX); err != nil {
		return err
	}

	idx := mdIndexRegs[:rank]
	for i := rank - 1; i >= 0; i-- {
		if _, err := mc.popTo(idx[i]); err != nil {
			return err
		}
	}
	if _, err := mc.popTo(asm.RAX); err != nil { // array
		return err
	}
	mc.mdElementAddr(asm.RAX, idx, size)

	if isStruct {
		copyMemory(mc.e, valueAddr, 0, asm.RAX, 0, size)
		return nil
	}
	if m.Return == resolver.ReturnFloat32 {
		mc.e.MovdOrMovq(true, true, asm.RDX, asm.XMM0)
		mc.e.CvtSD2SS(asm.XMM0, asm.XMM0)
		mc.e.MovssOrSdRegToMem(false, asm.XMM0, asm.RAX, 0)
		return nil
	}
	if m.Return == resolver.ReturnFloat64 {
		mc.e.MovdOrMovq(true, true, asm.RDX, asm.XMM0)
		mc.e.MovssOrSdRegToMem(true, asm.XMM0, asm.RAX, 0)
		return nil
	}
	mc.e.MovRegToMem(naturalWidth(size), asm.RDX, asm.RAX, 0)
	return nil
}

func (mc *methodCompiler) mdArrayAddress(m resolver.ResolvedMethod) error {
	rank, err := mdRank(m.ArgCount)
	if err != nil {
		return err
	}
	idx := mdIndexRegs[:rank]
	for i := rank - 1; i >= 0; i-- {
		if _, err := mc.popTo(idx[i]); err != nil {
			return err
		}
	}
	if _, err := mc.popTo(asm.RAX); err != nil { // array
		return err
	}
	size := elemStride(m.Return, m.StructSize)
	mc.mdElementAddr(asm.RAX, idx, size)
	mc.pushFrom(asm.RAX, evalstack.ManagedPtr)
	return nil
}

// newobjMDArray dispatches to the host-provided NewMDArrayND(MT, dim0,
// dim1, ...) helper, per spec §4.9.
func (mc *methodCompiler) newobjMDArray(m resolver.ResolvedMethod) error {
	if mc.helpers().NewMDArray == 0 {
		return newErr(ErrResolverFailure, -1, "no NewMDArrayND helper address configured")
	}
	rank := m.ArgCount
	argIsFloat := func(i int) bool { return false }
	mc.emitCallSequenceFrom(1, rank, argIsFloat, func() {
		mc.e.MovRegImm64(asm.RCX, uint64(m.DeclaringMT))
		mc.e.MovRegImm64(asm.RAX, uint64(mc.helpers().NewMDArray))
		mc.e.CallReg(asm.RAX)
	})
	mc.pushFrom(asm.RAX, evalstack.ObjectRef)
	return nil
}
