package asm

// EmitPrologue appends the standard frame-pointer prologue
// `push rbp; mov rbp, rsp; sub rsp, stackAdjust` described by spec §6
// ("Frame layout per compiled method"). localBytes is the total size of
// the fixed local/shadow area the caller has already computed; EmitPrologue
// rounds it up to a multiple of 16. The return address and `push rbp`
// together already occupy 16 bytes, so RSP stays 16-byte aligned after the
// `sub`, ready for any call with a correctly-sized shadow allocation on top.
//
// Returns the stack_adjust value (the immediate used in `sub rsp, N`) for
// the caller to hand back to EmitEpilogue and to report in unwind info.
func (e *Emitter) EmitPrologue(localBytes int32) (stackAdjust int32) {
	e.Push64(RBP)
	e.MovRegReg(Width64, RSP, RBP)
	stackAdjust = align16(localBytes)
	if stackAdjust > 0 {
		e.SubRspImm32(stackAdjust)
	}
	return stackAdjust
}

// EmitEpilogue appends `mov rsp, rbp; pop rbp; ret`, discarding whatever
// the eval stack had grown RSP by (the frame pointer is always valid, so
// restoring RSP from it is cheaper and simpler than tracking an exact
// `add rsp, N`).
func (e *Emitter) EmitEpilogue(_ int32) {
	e.MovRegReg(Width64, RBP, RSP)
	e.Pop64(RBP)
	e.Ret()
}

// HomeArgs stores the first n (<=4) incoming register arguments to their
// Win64 shadow-space home slots, [RBP+16], [RBP+24], [RBP+32], [RBP+40],
// per spec §3's "slot 0 is [FP+16], slot 1 is [FP+24]". This lets later
// code treat every argument uniformly as a memory location instead of
// special-casing "is this argument still in a register".
func (e *Emitter) HomeArgs(n int) {
	if n > 4 {
		n = 4
	}
	for i := 0; i < n; i++ {
		disp := int32(16 + 8*i)
		e.MovRegToMem(Width64, ArgRegisters[i], RBP, disp)
	}
}

// align16 rounds n up to the nearest multiple of 16.
func align16(n int32) int32 {
	if n < 0 {
		return 0
	}
	return (n + 15) &^ 15
}

// align8 rounds n up to the nearest multiple of 8, the unit every
// EvalStackEntry.ByteSize must be a multiple of (spec §3).
func align8(n int32) int32 {
	if n < 0 {
		return 0
	}
	return (n + 7) &^ 7
}
