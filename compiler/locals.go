package compiler

import (
	"math"

	"github.com/ProtonOS/baseline-jit/internal/asm"
	"github.com/ProtonOS/baseline-jit/internal/evalstack"
)

// push/pop conventions: every non-value-type entry travels through a
// general-purpose register, per spec §4.5's "values travel on the eval
// stack as raw 64-bit slots containing the bit pattern" — floats included,
// converted to/from XMM with movd/movq only where an instruction needs the
// actual value in a float register.

func (mc *methodCompiler) pushFrom(reg asm.Register, kind evalstack.Kind) {
	evalstack.PushRegR0(mc.e, mc.stack, kind, reg)
}

func (mc *methodCompiler) popTo(reg asm.Register) (evalstack.Entry, error) {
	if mc.stack.Depth() == 0 {
		return evalstack.Entry{}, newErr(ErrStackUnderflow, -1, "pop with empty eval stack")
	}
	return evalstack.PopToR0(mc.e, mc.stack, reg), nil
}

func (mc *methodCompiler) ldarg(i int) error {
	if i < len(mc.in.ArgIsValueType) && mc.in.ArgIsValueType[i] {
		size := mc.in.ArgTypeSize[i]
		evalstack.PushValueType(mc.e, mc.stack, size, asm.RBP, mc.frame.argOffset(i))
		return nil
	}
	mc.e.MovMemToReg(asm.Width64, asm.RBP, mc.frame.argOffset(i), asm.RAX)
	mc.pushFrom(asm.RAX, mc.argKind(i))
	return nil
}

func (mc *methodCompiler) argKind(i int) evalstack.Kind {
	if i < len(mc.in.ArgFloatKind) {
		switch mc.in.ArgFloatKind[i] {
		case Float32Kind:
			return evalstack.Float32
		case Float64Kind:
			return evalstack.Float64
		}
	}
	return evalstack.Int64
}

func (mc *methodCompiler) ldarga(i int) error {
	mc.e.Lea(asm.RBP, mc.frame.argOffset(i), asm.RAX)
	mc.pushFrom(asm.RAX, evalstack.ManagedPtr)
	return nil
}

func (mc *methodCompiler) starg(i int) error {
	entry, err := mc.popTo(asm.RAX)
	if err != nil {
		return err
	}
	if entry.Kind == evalstack.ValueType {
		return newErr(ErrUnsupportedOpcode, -1, "starg of value-type args not supported at this tier")
	}
	mc.e.MovRegToMem(asm.Width64, asm.RAX, asm.RBP, mc.frame.argOffset(i))
	return nil
}

func (mc *methodCompiler) ldloc(i int) error {
	off := mc.frame.localOffset(i)
	if i < len(mc.in.LocalIsValueType) && mc.in.LocalIsValueType[i] {
		evalstack.PushValueType(mc.e, mc.stack, mc.in.LocalTypeSize[i], asm.RBP, off)
		return nil
	}
	mc.e.MovMemToReg(asm.Width64, asm.RBP, off, asm.RAX)
	mc.pushFrom(asm.RAX, evalstack.Int64)
	return nil
}

func (mc *methodCompiler) stloc(i int) error {
	off := mc.frame.localOffset(i)
	if i < len(mc.in.LocalIsValueType) && mc.in.LocalIsValueType[i] {
		evalstack.PopValueTypeTo(mc.e, mc.stack, asm.RBP, off)
		return nil
	}
	if _, err := mc.popTo(asm.RAX); err != nil {
		return err
	}
	mc.e.MovRegToMem(asm.Width64, asm.RAX, asm.RBP, off)
	return nil
}

func (mc *methodCompiler) ldloca(i int) error {
	mc.e.Lea(asm.RBP, mc.frame.localOffset(i), asm.RAX)
	mc.pushFrom(asm.RAX, evalstack.ManagedPtr)
	return nil
}

func (mc *methodCompiler) ldcI4(v int32) error {
	mc.e.MovRegImm32(asm.Width64, asm.RAX, v) // sign-extends into RAX per emitter contract
	mc.pushFrom(asm.RAX, evalstack.Int32)
	return nil
}

func (mc *methodCompiler) ldcI8(v int64) error {
	mc.e.MovRegImm64(asm.RAX, uint64(v))
	mc.pushFrom(asm.RAX, evalstack.Int64)
	return nil
}

func (mc *methodCompiler) ldcR4(bits int32) error {
	// Widen the float32 bit pattern to its float64 equivalent immediately,
	// since every float value on this eval stack travels as a float64 bit
	// pattern (kept uniform with ldc.r8 so arithmetic never branches on
	// source width).
	f32 := math.Float32frombits(uint32(bits))
	f64bits := math.Float64bits(float64(f32))
	mc.e.MovRegImm64(asm.RAX, f64bits)
	mc.pushFrom(asm.RAX, evalstack.Float64)
	return nil
}

func (mc *methodCompiler) ldcR8(bits uint64) error {
	mc.e.MovRegImm64(asm.RAX, bits)
	mc.pushFrom(asm.RAX, evalstack.Float64)
	return nil
}

func (mc *methodCompiler) dup() error {
	top := mc.stack.Peek(0)
	if top.Kind == evalstack.ValueType {
		evalstack.PushValueType(mc.e, mc.stack, top.RawSize, asm.RSP, 0)
		return nil
	}
	mc.e.MovMemToReg(asm.Width64, asm.RSP, 0, asm.RAX)
	mc.pushFrom(asm.RAX, top.Kind)
	return nil
}

func (mc *methodCompiler) ret() error {
	switch {
	case mc.in.ReturnVoid:
		// Nothing to pop.
	case mc.in.ReturnIsValueType && mc.in.ReturnTypeSize > 16:
		// Hidden-buffer convention: the value already lives at the buffer
		// address; the buffer pointer itself (a managed pointer) is
		// returned in RAX.
		if _, err := mc.popTo(asm.RAX); err != nil {
			return err
		}
	case mc.in.ReturnIsValueType:
		mc.popValueTypeReturnToRegs()
	case mc.in.ReturnFloatKind != NotFloat:
		if _, err := mc.popTo(asm.RAX); err != nil {
			return err
		}
		mc.e.MovdOrMovq(true, true, asm.RAX, asm.XMM0)
	default:
		if _, err := mc.popTo(asm.RAX); err != nil {
			return err
		}
		// Signed-i32 stack convention: sign-extend EAX to RAX so callers
		// that treat the result as a 64-bit signed value see the correct
		// sign (spec §4.8 step 5).
		mc.e.MovsxdRegToReg64(asm.RAX, asm.RAX)
	}
	mc.e.EmitEpilogue(mc.stackAdjust)
	return nil
}

func (mc *methodCompiler) popValueTypeReturnToRegs() {
	entry := mc.stack.Pop()
	if entry.ByteSize == 8 {
		mc.e.MovMemToReg(asm.Width64, asm.RSP, 0, asm.RAX)
		mc.e.AddRspImm32(8)
		return
	}
	mc.e.MovMemToReg(asm.Width64, asm.RSP, 0, asm.RAX)
	mc.e.MovMemToReg(asm.Width64, asm.RSP, 8, asm.RDX)
	mc.e.AddRspImm32(entry.ByteSize)
}

func (mc *methodCompiler) compareSet(cond asm.Condition) error {
	_, lhs, rhs, err := mc.popBinaryOperands()
	if err != nil {
		return err
	}
	width := asm.Width64
	if lhs.Kind == evalstack.Int32 && rhs.Kind == evalstack.Int32 {
		width = asm.Width32
	}
	mc.e.ArithRegReg(width, asm.ArithCmp, asm.RCX, asm.RAX)
	mc.setByteOnCondition(cond, asm.RAX)
	mc.e.MovzxRegToReg32(asm.RAX, asm.RAX)
	mc.pushFrom(asm.RAX, evalstack.Int32)
	return nil
}

// setByteOnCondition materializes a condition as 0 or 1 in dst. The
// emitter exposes no SETcc, so a three-instruction, cmov-free sequence is
// used instead, with the long-form (rel32) conditional jump this emitter
// always emits: mov dst, 0; j<inverted cond> over the next move;
// mov dst, 1; <label>.
func (mc *methodCompiler) setByteOnCondition(cond asm.Condition, dst asm.Register) {
	mc.e.MovRegImm32(asm.Width64, dst, 0)
	patch := mc.e.JccRel32(asm.InvertCondition(cond))
	mc.e.MovRegImm32(asm.Width64, dst, 1)
	mc.buf.PatchRel32(patch)
}

func (mc *methodCompiler) popBinaryOperands() (bothInt32 bool, lhs, rhs evalstack.Entry, err error) {
	rhs, err = mc.popTo(asm.RCX)
	if err != nil {
		return
	}
	lhs, err = mc.popTo(asm.RAX)
	if err != nil {
		return
	}
	bothInt32 = lhs.Kind == evalstack.Int32 && rhs.Kind == evalstack.Int32
	return
}
