package compiler

import (
	"unsafe"

	"github.com/ProtonOS/baseline-jit/internal/asm"
	"github.com/ProtonOS/baseline-jit/internal/evalstack"
	"github.com/ProtonOS/baseline-jit/internal/resolver"
)

// intArgRegs is the Win64 integer/pointer argument register order.
var intArgRegs = [4]asm.Register{asm.RCX, asm.RDX, asm.R8, asm.R9}

// floatArgRegs is the Win64 float argument register order, positionally
// paired with intArgRegs (a method never mixes the two for the same
// physical slot; the caller picks whichever array matches that arg).
var floatArgRegs = [4]asm.Register{asm.XMM0, asm.XMM1, asm.XMM2, asm.XMM3}

// argIsFloatFromStack snapshots the Kind of the argCount topmost eval-stack
// entries up front and returns a closure over that snapshot, since
// emitCallSequenceFrom calls argIsFloat across multiple passes interleaved
// with popping the very entries it would otherwise need to re-read.
// Win64 routes float/double arguments through XMM0-3 instead of
// RCX/RDX/R8/R9 (spec §4.8/§6), so this has to reflect each argument's
// real evalstack.Kind rather than assume every argument is integer-class.
func (mc *methodCompiler) argIsFloatFromStack(argCount int) func(i int) bool {
	kinds := make([]evalstack.Kind, argCount)
	for i := 0; i < argCount; i++ {
		kinds[i] = mc.stack.Peek(argCount - 1 - i).Kind
	}
	return func(i int) bool {
		return kinds[i] == evalstack.Float32 || kinds[i] == evalstack.Float64
	}
}

// shadowSpaceFor computes the shadow-space-plus-stack-args byte count a
// call of physicalArgCount arguments reserves ahead of the `call`
// instruction, per spec §4.8's Win64 convention (32 bytes of shadow space
// plus 8 bytes per argument beyond the first four).
func shadowSpaceFor(physicalArgCount int) int32 {
	stackArgs := physicalArgCount - 4
	if stackArgs < 0 {
		stackArgs = 0
	}
	shadow := int32(32)
	if stackArgs > 0 {
		shadow += int32(stackArgs * 8)
	}
	return shadow
}

// emitCallSequence pops argCount values off the eval stack into their ABI
// homes and performs the call, per spec §4.8 step 2-4. argIsFloat reports
// whether logical arg i is a float, for register-bank selection.
// emitCallSequenceFrom additionally takes baseIndex, which shifts every
// logical arg's physical slot by that many positions, for callers that
// have already placed a `this` pointer in RCX themselves (newobj's
// constructor-this convention).
func (mc *methodCompiler) emitCallSequence(argCount int, argIsFloat func(i int) bool, emitCall func()) {
	mc.emitCallSequenceFrom(0, argCount, argIsFloat, emitCall)
}

func (mc *methodCompiler) emitCallSequenceFrom(baseIndex, argCount int, argIsFloat func(i int) bool, emitCall func()) {
	physicalArgCount := baseIndex + argCount

	type pending struct {
		reg   asm.Register
		float bool
	}
	var regPlan []pending
	for i := argCount - 1; i >= 0; i-- {
		phys := baseIndex + i
		isFloat := argIsFloat(i)
		if phys < 4 {
			var r asm.Register
			if isFloat {
				r = floatArgRegs[phys]
			} else {
				r = intArgRegs[phys]
			}
			regPlan = append(regPlan, pending{r, isFloat})
		}
	}

	// Stack-resident args (physical index >= 4) are already laid out on
	// the eval stack in the right relative order; they are moved to their
	// final [RSP+32+...] slots after register args are popped clear, per
	// spec's "copy the stack-resident tail into its final positions" note.
	for i := argCount - 1; i >= 0; i-- {
		phys := baseIndex + i
		if phys < 4 {
			continue
		}
		slot := phys - 4
		if argIsFloat(i) {
			mc.e.MovssOrSdMemToReg(true, asm.RSP, 0, asm.XMM4)
			mc.e.MovssOrSdRegToMem(true, asm.XMM4, asm.RSP, int32(8+slot*8))
		} else {
			mc.e.MovMemToReg(asm.Width64, asm.RSP, 0, asm.R10)
			mc.e.MovRegToMem(asm.Width64, asm.R10, asm.RSP, int32(8+slot*8))
		}
		mc.e.AddRspImm32(8)
		mc.stack.Pop()
	}

	for _, p := range regPlan {
		if p.float {
			mc.e.MovMemToReg(asm.Width64, asm.RSP, 0, asm.R10)
			mc.e.MovdOrMovq(true, true, asm.R10, p.reg)
			mc.e.AddRspImm32(8)
		} else {
			mc.e.MovMemToReg(asm.Width64, asm.RSP, 0, p.reg)
			mc.e.AddRspImm32(8)
		}
		mc.stack.Pop()
	}

	shadow := shadowSpaceFor(physicalArgCount)
	mc.e.SubRspImm32(shadow)
	emitCall()
	mc.e.AddRspImm32(shadow)
	mc.recordSafePoint()
}

// pushCallReturn pushes the eval-stack entry for a call's return value,
// per spec §4.8 step 5. For calls (unlike ret) the return kind comes from
// the callee's ResolvedMethod, not this method's own CompileInput.
func (mc *methodCompiler) pushCallReturn(ret resolver.ReturnKind, structSize int32) {
	switch ret {
	case resolver.ReturnVoid:
	case resolver.ReturnInt32:
		mc.e.MovsxdRegToReg64(asm.RAX, asm.RAX)
		mc.pushFrom(asm.RAX, evalstack.Int32)
	case resolver.ReturnInt64, resolver.ReturnIntPtr:
		mc.pushFrom(asm.RAX, evalstack.Int64)
	case resolver.ReturnFloat32, resolver.ReturnFloat64:
		mc.e.MovdOrMovq(true, false, asm.RAX, asm.XMM0)
		mc.pushFrom(asm.RAX, evalstack.Float64)
	case resolver.ReturnStruct:
		if structSize > 16 {
			// Hidden buffer pointer stays live on the stack as the struct
			// value; RAX already holds that same pointer on return.
			mc.pushFrom(asm.RAX, evalstack.ManagedPtr)
			return
		}
		if structSize <= 8 {
			evalstack.PushRegR0(mc.e, mc.stack, evalstack.ValueType, asm.RAX)
			return
		}
		mc.e.Push64(asm.RDX)
		mc.e.Push64(asm.RAX)
		mc.stack.Push(evalstack.NewValueTypeEntry(structSize))
	}
}

// vtableHeaderSize is the fixed MethodTable header skipped before the
// slot array begins.
const vtableHeaderSize = 16

// dispatchTarget emits the call instruction itself once every argument is
// in its ABI home register/slot, selecting direct/virtual/interface
// dispatch per spec §4.8.
func (mc *methodCompiler) dispatchTarget(m resolver.ResolvedMethod, isVirtual bool) error {
	switch {
	case isVirtual && m.IsInterfaceMethod:
		if mc.helpers().IsAssignableTo == 0 {
			return newErr(ErrResolverFailure, -1, "no interface-dispatch helper address configured")
		}
		// GetInterfaceMethod resolution is host-runtime glue outside this
		// tier's modeled helper set; the resolved function pointer is
		// expected in RAX by the time this call site is reached.
		mc.e.CallReg(asm.RAX)
	case isVirtual && m.IsVirtual:
		mc.e.MovMemToReg(asm.Width64, asm.RCX, 0, asm.RAX) // MethodTable* = [this]
		mc.e.MovMemToReg(asm.Width64, asm.RAX, vtableHeaderSize+8*m.VtableSlot, asm.RAX)
		mc.e.CallReg(asm.RAX)
	default:
		cell := m.Cell
		if cell == nil {
			mc.e.MovRegImm64(asm.RAX, 0)
			mc.e.CallReg(asm.RAX)
			return nil
		}
		if code := cell.Load(); code != nil {
			mc.e.MovRegImm64(asm.RAX, uint64(uintptrOfByte(code)))
			mc.e.CallReg(asm.RAX)
			return nil
		}
		// Target not yet compiled: load through the registry cell each
		// time, relying on the caller (host runtime) to have published a
		// trampoline/EnsureCompiled-backed cell per spec §4.8's direct-call
		// recursive-compilation note.
		mc.e.MovRegImm64(asm.RAX, uint64(cellAddr(cell)))
		mc.e.MovMemToReg(asm.Width64, asm.RAX, 0, asm.RAX)
		mc.e.CallReg(asm.RAX)
	}
	return nil
}

// applyConstrainedThis lowers a `constrained.` prefixed callvirt's `this`
// argument per spec §4.8's constrained-prefix subsection. evalArgs is the
// physical argument count already on the eval stack (this included, at
// depth evalArgs-1). Reference types just need a load-through-indirection
// (the constrained type is itself the reference, so `this` becomes the
// pointed-to object); value types have no inline equals-vtable-slot
// metadata available from the resolver at this tier, so they always go
// through the box-then-dispatch fallback spec §4.8 names as the
// "otherwise" case.
func (mc *methodCompiler) applyConstrainedThis(token uint32, evalArgs int) error {
	t, err := mc.resolveType(token)
	if err != nil {
		return err
	}
	thisOffset := mc.stack.PeekRSPOffset(evalArgs - 1)
	if !t.IsValueType {
		mc.e.MovMemToReg(asm.Width64, asm.RSP, thisOffset, asm.RAX)
		mc.e.MovMemToReg(asm.Width64, asm.RAX, 0, asm.RAX)
		mc.e.MovRegToMem(asm.Width64, asm.RAX, asm.RSP, thisOffset)
		return nil
	}
	if mc.helpers().NewFast == 0 {
		return newErr(ErrResolverFailure, -1, "no RhpNewFast helper address configured")
	}
	mc.e.MovMemToReg(asm.Width64, asm.RSP, thisOffset, asm.R12)
	mc.e.MovRegImm64(asm.RCX, uint64(t.MethodTable))
	mc.e.SubRspImm32(32)
	mc.e.MovRegImm64(asm.RAX, uint64(mc.helpers().NewFast))
	mc.e.CallReg(asm.RAX)
	mc.e.AddRspImm32(32)
	mc.recordSafePoint()
	copyMemory(mc.e, asm.R12, 0, asm.RAX, 8, t.ValueSize)
	mc.e.MovRegToMem(asm.Width64, asm.RAX, asm.RSP, thisOffset)
	return nil
}

// wrapWithVarargArray materializes the TypedReference array a vararg
// callee's arglist() opcode reads, per spec §4.8's vararg-calls
// subsection: (varargs+1)*16 bytes, each slot a (value pointer, MethodTable
// pointer) pair, terminated by a zero sentinel pair.
//
// frameLayout.argListPointer (frame.go) reads this array at the callee's
// RBP+48+stackArgs*8, i.e. at RSP-at-the-call-instruction plus this call's
// own shadow-space-and-stack-args size: the array has to sit directly
// above (at a higher address than) the shadow space/stack-args region,
// not below it. This reservation is made on top of emitCallSequenceFrom's
// own shadow allocation, so the final call-time RSP drops by
// shadow+arraySize instead of just shadow; the table itself is written at
// that final RSP plus `shadow` to land exactly where the callee expects
// it. Each slot's value pointer is computed from the vararg value's
// original stack offset (captured, relative to RSP at entry, before any
// popping), adjusted for the RSP drift both popping and this reservation
// introduce. Declared vararg values still also travel through their
// ordinary ABI homes; arglist() only needs the array to exist and point
// at live memory.
func (mc *methodCompiler) wrapWithVarargArray(m resolver.ResolvedMethod, evalArgs, baseIndex int, inner func()) func() {
	n := len(m.VarargMTs)
	if n == 0 {
		return inner
	}
	offsets := make([]int32, n)
	for i := 0; i < n; i++ {
		offsets[i] = mc.stack.PeekRSPOffset(n - 1 - i)
	}
	shadow := shadowSpaceFor(baseIndex + evalArgs)
	arraySize := int32((n + 1) * 16)
	poppedBytes := int32(evalArgs) * 8
	return func() {
		mc.e.SubRspImm32(arraySize)
		tableBase := shadow
		for i, mt := range m.VarargMTs {
			valueDisp := offsets[i] + shadow + arraySize - poppedBytes
			mc.e.Lea(asm.RSP, valueDisp, asm.R10)
			mc.e.MovRegToMem(asm.Width64, asm.R10, asm.RSP, tableBase+int32(i*16))
			mc.e.MovRegImm64(asm.R11, uint64(mt))
			mc.e.MovRegToMem(asm.Width64, asm.R11, asm.RSP, tableBase+int32(i*16+8))
		}
		mc.e.MovRegImm64(asm.R10, 0)
		mc.e.MovRegToMem(asm.Width64, asm.R10, asm.RSP, tableBase+int32(n*16))
		mc.e.MovRegToMem(asm.Width64, asm.R10, asm.RSP, tableBase+int32(n*16+8))
		inner()
		mc.e.AddRspImm32(arraySize)
	}
}

// call lowers call/callvirt for a resolved, non-intrinsic method, per
// spec §4.8 steps 1-5.
func (mc *methodCompiler) call(token uint32, isVirtual bool) error {
	m, err := mc.resolveMethod(token)
	if err != nil {
		return err
	}
	if mc.prefix.tail && m.MethodToken == mc.in.MethodToken && m.AssemblyID == mc.in.AssemblyID && !mc.in.HasThis {
		mc.prefix.clear()
		return mc.selfTailCall(m)
	}
	applyConstrained := isVirtual && mc.prefix.hasConstrained
	constrainedToken := mc.prefix.constrainedToken
	mc.prefix.clear()

	switch m.Intrinsic {
	case resolver.IntrinsicDelegateInvoke:
		evalArgs := m.ArgCount + 1 // +1 for the delegate reference itself, always in RCX
		return mc.delegateInvoke(m, evalArgs)
	case resolver.IntrinsicActivatorCreateInstance:
		return mc.activatorCreateInstance(m)
	case resolver.IntrinsicRuntimeHelpersInitializeArray:
		return mc.initializeArray(m)
	case resolver.IntrinsicMDArrayGet:
		return mc.mdArrayGet(m)
	case resolver.IntrinsicMDArraySet:
		return mc.mdArraySet(m)
	case resolver.IntrinsicMDArrayAddress:
		return mc.mdArrayAddress(m)
	}

	evalArgs := m.ArgCount
	if m.HasThis {
		evalArgs++
	}

	// applyConstrainedThis must run before any argument is popped — it
	// rewrites the `this` slot in place at its current stack location, so
	// the rewritten value (not the original) is what later gets popped
	// into its ABI home.
	if applyConstrained {
		if err := mc.applyConstrainedThis(constrainedToken, evalArgs); err != nil {
			return err
		}
	}
	argIsFloat := mc.argIsFloatFromStack(evalArgs)

	hiddenBuffer := m.Return == resolver.ReturnStruct && m.StructSize > 16
	if !hiddenBuffer {
		var callErr error
		emitCall := func() { callErr = mc.dispatchTarget(m, isVirtual) }
		if m.IsVararg {
			emitCall = mc.wrapWithVarargArray(m, evalArgs, 0, emitCall)
		}
		mc.emitCallSequence(evalArgs, argIsFloat, emitCall)
		if callErr != nil {
			return callErr
		}
		mc.pushCallReturn(m.Return, m.StructSize)
		return nil
	}

	tempOffset := mc.frame.scratchOffset()
	mc.e.Lea(asm.RBP, tempOffset, asm.R12)
	var callErr error
	emitCall := func() {
		mc.e.MovRegReg(asm.Width64, asm.R12, asm.RCX)
		callErr = mc.dispatchTarget(m, isVirtual)
	}
	if m.IsVararg {
		emitCall = mc.wrapWithVarargArray(m, evalArgs, 1, emitCall)
	}
	mc.emitCallSequenceFrom(1, evalArgs, argIsFloat, emitCall)
	if callErr != nil {
		return callErr
	}
	mc.pushCallReturn(m.Return, m.StructSize)
	return nil
}

// selfTailCall handles the only tail.call shape spec §4.8 requires: a
// static method calling itself. Every other tail. prefix degrades to a
// normal call, handled by the regular call() path since prefix.tail is
// only consulted here.
func (mc *methodCompiler) selfTailCall(m resolver.ResolvedMethod) error {
	n := m.ArgCount
	temps := []asm.Register{asm.R10, asm.R11, asm.R12, asm.R13, asm.R14, asm.R15}
	if n > len(temps) {
		n = len(temps)
	}
	for i := n - 1; i >= 0; i-- {
		if _, err := mc.popTo(temps[i]); err != nil {
			return err
		}
	}
	for i := 0; i < n; i++ {
		mc.e.MovRegToMem(asm.Width64, temps[i], asm.RBP, 16+int32(i*8))
	}
	// IL offset 0 always has a recorded native offset by the time any
	// opcode after it dispatches, so this patch resolves during the
	// normal applyPendingPatches pass like any other branch.
	patch := mc.e.JmpRel32()
	mc.recordBranchPatch(patch, 0)
	return nil
}

// calli's StandAloneSig token gives arg count and return kind the same way
// a method token does, so it is resolved through MethodResolver like an
// ordinary call signature (spec §4.8: "a pre-parsed StandAloneSig gives
// arg count and return kind").
func (mc *methodCompiler) calli(token uint32) error {
	sig, err := mc.resolveMethod(token)
	if err != nil {
		return err
	}
	if _, err := mc.popTo(asm.R12); err != nil { // function pointer, saved across arg lowering
		return err
	}
	argIsFloat := mc.argIsFloatFromStack(sig.ArgCount)
	mc.emitCallSequence(sig.ArgCount, argIsFloat, func() {
		mc.e.CallReg(asm.R12)
	})
	mc.pushCallReturn(sig.Return, sig.StructSize)
	return nil
}

// newobj lowers object construction per spec §4.9.
func (mc *methodCompiler) newobj(token uint32) error {
	m, err := mc.resolveMethod(token)
	if err != nil {
		return err
	}
	switch m.Intrinsic {
	case resolver.IntrinsicDelegateCtor:
		return mc.newobjDelegate(m)
	case resolver.IntrinsicMDArrayCtor:
		return mc.newobjMDArray(m)
	}
	if m.DeclaringIsValueType {
		return mc.newobjValueType(m)
	}
	return mc.newobjReferenceType(m)
}

// newobjReferenceType allocates via RhpNewFast, saves the new object
// pointer in a callee-saved register across the constructor call (per
// spec §4.9), then pushes it as the newobj result.
func (mc *methodCompiler) newobjReferenceType(m resolver.ResolvedMethod) error {
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

	ctorArgs := m.ArgCount // excludes implicit this
	argIsFloat := mc.argIsFloatFromStack(ctorArgs)
	mc.emitCallSequenceFrom(1, ctorArgs, argIsFloat, func() {
		mc.e.MovRegReg(asm.Width64, asm.R12, asm.RCX)
		cell := m.Cell
		if cell != nil {
			if code := cell.Load(); code != nil {
				mc.e.MovRegImm64(asm.RAX, uint64(uintptrOfByte(code)))
				mc.e.CallReg(asm.RAX)
				return
			}
		}
		mc.e.MovRegImm64(asm.RAX, 0)
		mc.e.CallReg(asm.RAX)
	})

	mc.pushFrom(asm.R12, evalstack.ObjectRef)
	return nil
}

func (mc *methodCompiler) newobjValueType(m resolver.ResolvedMethod) error {
	tempOffset := mc.frame.scratchOffset() // borrow one slot past the declared locals
	zeroMemory(mc.e, asm.RBP, tempOffset, m.DeclaringValueSize)
	// Stage the this-pointer in a callee-saved register rather than RCX
	// directly: emitCallSequenceFrom(1, ...) pops real constructor
	// arguments into RCX/RDX/R8/R9 as part of its normal register plan,
	// which would otherwise clobber RCX before the call if ArgCount >= 1.
	mc.e.Lea(asm.RBP, tempOffset, asm.R12)
	argIsFloat := mc.argIsFloatFromStack(m.ArgCount)
	mc.emitCallSequenceFrom(1, m.ArgCount, argIsFloat, func() {
		mc.e.MovRegReg(asm.Width64, asm.R12, asm.RCX)
		cell := m.Cell
		if cell != nil {
			if code := cell.Load(); code != nil {
				mc.e.MovRegImm64(asm.RAX, uint64(uintptrOfByte(code)))
				mc.e.CallReg(asm.RAX)
				return
			}
		}
		mc.e.MovRegImm64(asm.RAX, 0)
		mc.e.CallReg(asm.RAX)
	})
	evalstack.PushValueType(mc.e, mc.stack, m.DeclaringValueSize, asm.RBP, tempOffset)
	return nil
}

func (mc *methodCompiler) newobjDelegate(m resolver.ResolvedMethod) error {
	if mc.helpers().NewFast == 0 {
		return newErr(ErrResolverFailure, -1, "no RhpNewFast helper address configured")
	}
	if _, err := mc.popTo(asm.RDX); err != nil { // function pointer
		return err
	}
	if _, err := mc.popTo(asm.RCX); err != nil { // target
		return err
	}
	mc.e.Push64(asm.RCX)
	mc.e.Push64(asm.RDX)
	mc.e.MovRegImm64(asm.RCX, uint64(m.DeclaringMT))
	mc.e.SubRspImm32(32)
	mc.e.MovRegImm64(asm.RAX, uint64(mc.helpers().NewFast))
	mc.e.CallReg(asm.RAX)
	mc.e.AddRspImm32(32)
	mc.recordSafePoint()
	mc.e.MovMemToReg(asm.Width64, asm.RSP, 0, asm.RDX) // saved function pointer
	mc.e.MovRegToMem(asm.Width64, asm.RDX, asm.RAX, 32)
	mc.e.MovMemToReg(asm.Width64, asm.RSP, 8, asm.RDX) // saved target
	mc.e.MovRegToMem(asm.Width64, asm.RDX, asm.RAX, 8)
	mc.e.AddRspImm32(16)
	mc.pushFrom(asm.RAX, evalstack.ObjectRef)
	return nil
}

// delegateInvoke lowers a call whose ResolvedMethod carries the
// DelegateInvoke intrinsic flag, per spec §4.8's runtime-branch
// description.
func (mc *methodCompiler) delegateInvoke(m resolver.ResolvedMethod, physArgs int) error {
	argIsFloat := mc.argIsFloatFromStack(physArgs)
	mc.emitCallSequence(physArgs, argIsFloat, func() {
		mc.e.MovMemToReg(asm.Width64, asm.RCX, 8, asm.R10)  // _firstParameter
		mc.e.MovMemToReg(asm.Width64, asm.RCX, 32, asm.R11) // _functionPointer
		mc.e.ArithRegImm32(asm.Width64, asm.ArithCmp, asm.R10, 0)
		instancePath := mc.e.JccRel32(asm.ConditionNE)
		// Static target: the delegate reference in RCX isn't a real
		// argument, so shift every register arg left by one (spec §4.8:
		// "if null, shift args left by one and call").
		mc.e.MovRegReg(asm.Width64, asm.RDX, asm.RCX)
		mc.e.MovRegReg(asm.Width64, asm.R8, asm.RDX)
		mc.e.MovRegReg(asm.Width64, asm.R9, asm.R8)
		mc.e.CallReg(asm.R11)
		skip := mc.e.JmpRel32()
		mc.buf.PatchRel32(instancePath)
		mc.e.MovRegReg(asm.Width64, asm.R10, asm.RCX)
		mc.e.CallReg(asm.R11)
		mc.buf.PatchRel32(skip)
	})
	mc.pushCallReturn(m.Return, m.StructSize)
	return nil
}

// uintptrOfByte and cellAddr convert already-live Go pointers (a published
// code pointer, a registry cell) to the raw addresses the emitter needs for
// MovRegImm64. Both pointers are kept alive independently by the registry
// (the code buffer and the cell itself are never freed while compiled code
// can still call through them), so neither conversion needs a pinning step.
func uintptrOfByte(p *byte) uintptr {
	return uintptr(unsafe.Pointer(p))
}

func cellAddr(c *resolver.NativeCodeCell) uintptr {
	return uintptr(unsafe.Pointer(c))
}
