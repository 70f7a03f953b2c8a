package compiler

import (
	"github.com/ProtonOS/baseline-jit/internal/asm"
	"github.com/ProtonOS/baseline-jit/internal/cil"
	"github.com/ProtonOS/baseline-jit/internal/evalstack"
)

// branchPatch is one pending forward (or not-yet-resolved) branch: the
// native offset of its 32-bit displacement placeholder, the IL offset it
// targets, and the eval-stack shape expected at that target, per spec §3's
// branch-patch table.
type branchPatch struct {
	patchOffset   int
	targetIL      int
	expectedStack evalstack.Snapshot
}

// finallyPatch is one pending `leave`-to-finally-funclet call site, filled
// in once the funclet pass has placed every finally funclet (spec §4.7's
// "leave ... emit a placeholder displacement; a finally-call patch table
// records it and the clause index").
type finallyPatch struct {
	callPatchOffset int
	clauseIndex     int
}

// prefixState tracks the sticky bits a prefix opcode sets for the single
// instruction that follows it, per spec §4.4.
type prefixState struct {
	constrainedToken uint32
	hasConstrained   bool
	tail             bool
	readonly         bool
	volatile         bool
	unaligned        bool
	no               bool
}

func (p *prefixState) clear() {
	*p = prefixState{}
}

// methodCompiler holds all per-compilation mutable state: the code buffer,
// the emitter, the eval-stack tracker, the label and branch-patch tables,
// and the frame layout. One methodCompiler per Compile call.
type methodCompiler struct {
	jit *JIT
	in  CompileInput

	buf *asm.CodeBuffer
	e   *asm.Emitter
	gc  interface {
		AddSafePoint(int32)
	}

	labels *labelTable
	frame  frameLayout
	stack  *evalstack.Stack

	branchPatches  []branchPatch
	finallyPatches []finallyPatch
	funclets       []FuncletRecord

	prologueSize int32
	stackAdjust  int32

	prefix prefixState

	// mainEntryNative is the native offset of IL offset 0, recorded after
	// the prologue and argument homing. Nothing reads it: self-recursive
	// tail.call jumps through the label table entry for IL offset 0.
	mainEntryNative int32

	// inFunclet is set while compiling a handler or filter-expression
	// funclet body, so leave/endfinally/endfilter pick the funclet-local
	// epilogue instead of the main-body lowering, per spec §4.7.
	inFunclet bool

	// leaveTargetIL records, per EH-clause index, the IL offset a `leave`
	// inside that clause's try region resumes at after its finally
	// funclet runs. Filled in by leave(), read by translateEHClauses().
	leaveTargetIL map[int]int
}

// compileMainBody implements spec §4.7 pass 1 and §4.4's dispatch loop for
// the non-handler portion of the method body.
func (mc *methodCompiler) compileMainBody() error {
	mc.stack = evalstack.New()

	mc.prologueSize = 0
	startPos := mc.buf.Position()
	mc.stackAdjust = mc.e.EmitPrologue(mc.frame.localsAreaBytes())
	mc.prologueSize = int32(mc.buf.Position() - startPos)
	mc.e.HomeArgs(mc.frame.totalPhysicalArgs())
	mc.mainEntryNative = int32(mc.buf.Position())

	dec := cil.NewDecoder(mc.in.IL)
	for !dec.Done() {
		ilOffset := dec.Offset()

		if snap, ok := mc.labels.stackAtLabel[ilOffset]; ok {
			mc.stack.Restore(snap)
		}
		mc.labels.record(ilOffset, int32(mc.buf.Position()))
		mc.labels.recordStack(ilOffset, mc.stack.Save())

		if region, ok := mc.handlerRegionAt(ilOffset); ok {
			// Skip directly to handler end; the funclet pass compiles this
			// region independently (spec §4.7 pass 1).
			dec = cil.NewDecoder(mc.in.IL)
			dec = skipDecoderTo(dec, region.HandlerEndIL)
			continue
		}

		inst, ok := dec.Next()
		if !ok {
			return newErr(ErrOperandParseOverrun, ilOffset, "truncated instruction")
		}
		if inst.IsFatalUnsupported() {
			return newErr(ErrUnsupportedOpcode, ilOffset, "opcode %#x is unsupported at this tier", inst.Opcode)
		}

		if err := mc.dispatch(inst); err != nil {
			return err
		}
	}

	return nil
}

// skipDecoderTo returns a Decoder positioned at IL offset target.
func skipDecoderTo(dec *cil.Decoder, target int) *cil.Decoder {
	for dec.Offset() < target && !dec.Done() {
		if _, ok := dec.Next(); !ok {
			break
		}
	}
	return dec
}

// handlerRegionAt reports whether ilOffset is the handler-start offset of
// some input EH clause.
func (mc *methodCompiler) handlerRegionAt(ilOffset int) (ILExceptionClause, bool) {
	for _, c := range mc.in.EHClauses {
		if c.HandlerStartIL == ilOffset {
			return c, true
		}
	}
	return ILExceptionClause{}, false
}

// dispatch invokes the per-family emitter for one decoded instruction,
// per spec §4.4 step 4.
func (mc *methodCompiler) dispatch(inst cil.Instruction) error {
	if inst.Opcode == cil.OpPrefix {
		return mc.dispatchPrefix(inst)
	}
	defer mc.prefix.clear()

	switch inst.Opcode {
	case cil.OpNop, cil.OpBreak:
		return nil

	case cil.OpLdarg0, cil.OpLdarg1, cil.OpLdarg2, cil.OpLdarg3:
		return mc.ldarg(int(inst.Opcode - cil.OpLdarg0))
	case cil.OpLdargS:
		return mc.ldarg(int(inst.U1))

	case cil.OpLdloc0, cil.OpLdloc1, cil.OpLdloc2, cil.OpLdloc3:
		return mc.ldloc(int(inst.Opcode - cil.OpLdloc0))
	case cil.OpLdlocS:
		return mc.ldloc(int(inst.U1))

	case cil.OpStloc0, cil.OpStloc1, cil.OpStloc2, cil.OpStloc3:
		return mc.stloc(int(inst.Opcode - cil.OpStloc0))
	case cil.OpStlocS:
		return mc.stloc(int(inst.U1))

	case cil.OpLdargaS:
		return mc.ldarga(int(inst.U1))
	case cil.OpLdlocaS:
		return mc.ldloca(int(inst.U1))
	case cil.OpStargS:
		return mc.starg(int(inst.U1))

	case cil.OpLdnull:
		mc.e.MovRegImm64(asm.RAX, 0)
		evalstack.PushRegR0(mc.e, mc.stack, evalstack.ObjectRef, asm.RAX)
		return nil

	case cil.OpLdcI4M1, cil.OpLdcI40, cil.OpLdcI41, cil.OpLdcI42, cil.OpLdcI43,
		cil.OpLdcI44, cil.OpLdcI45, cil.OpLdcI46, cil.OpLdcI47, cil.OpLdcI48:
		return mc.ldcI4(int32(inst.Opcode) - int32(cil.OpLdcI40))
	case cil.OpLdcI4S:
		return mc.ldcI4(int32(inst.I1))
	case cil.OpLdcI4:
		return mc.ldcI4(inst.I4)
	case cil.OpLdcI8:
		return mc.ldcI8(inst.I8)
	case cil.OpLdcR4:
		return mc.ldcR4(inst.I4)
	case cil.OpLdcR8:
		return mc.ldcR8(inst.R8Bits)

	case cil.OpDup:
		return mc.dup()
	case cil.OpPop:
		mc.stack.Pop()
		mc.e.AddRspImm32(8)
		return nil

	case cil.OpRet:
		return mc.ret()

	case cil.OpBrS, cil.OpBr:
		return mc.emitUnconditionalBranch(inst)
	case cil.OpBrfalseS, cil.OpBrfalse:
		return mc.emitConditionalBranch(inst, asm.ConditionE, true)
	case cil.OpBrtrueS, cil.OpBrtrue:
		return mc.emitConditionalBranch(inst, asm.ConditionNE, true)
	case cil.OpBeqS, cil.OpBeq:
		return mc.emitCompareBranch(inst, asm.ConditionE)
	case cil.OpBgeS, cil.OpBge:
		return mc.emitCompareBranch(inst, asm.ConditionGE)
	case cil.OpBgtS, cil.OpBgt:
		return mc.emitCompareBranch(inst, asm.ConditionG)
	case cil.OpBleS, cil.OpBle:
		return mc.emitCompareBranch(inst, asm.ConditionLE)
	case cil.OpBltS, cil.OpBlt:
		return mc.emitCompareBranch(inst, asm.ConditionL)
	case cil.OpBneUnS, cil.OpBneUn:
		return mc.emitCompareBranch(inst, asm.ConditionNE)
	case cil.OpBgeUnS, cil.OpBgeUn:
		return mc.emitCompareBranch(inst, asm.ConditionAE)
	case cil.OpBgtUnS, cil.OpBgtUn:
		return mc.emitCompareBranch(inst, asm.ConditionA)
	case cil.OpBleUnS, cil.OpBleUn:
		return mc.emitCompareBranch(inst, asm.ConditionBE)
	case cil.OpBltUnS, cil.OpBltUn:
		return mc.emitCompareBranch(inst, asm.ConditionB)

	case cil.OpSwitch:
		return mc.emitSwitch(inst)

	case cil.OpAdd, cil.OpSub, cil.OpMul, cil.OpAnd, cil.OpOr, cil.OpXor,
		cil.OpDiv, cil.OpDivUn, cil.OpRem, cil.OpRemUn,
		cil.OpShl, cil.OpShr, cil.OpShrUn:
		return mc.binaryArith(inst.Opcode)
	case cil.OpAddOvf, cil.OpAddOvfUn, cil.OpMulOvf, cil.OpMulOvfUn, cil.OpSubOvf, cil.OpSubOvfUn:
		return mc.binaryArithOverflow(inst.Opcode)
	case cil.OpNeg:
		return mc.unaryArith(true)
	case cil.OpNot:
		return mc.unaryArith(false)

	case cil.OpConvI1, cil.OpConvI2, cil.OpConvI4, cil.OpConvI8, cil.OpConvI,
		cil.OpConvU1, cil.OpConvU2, cil.OpConvU4, cil.OpConvU8, cil.OpConvU,
		cil.OpConvR4, cil.OpConvR8, cil.OpConvRUn:
		return mc.convert(inst.Opcode)
	case cil.OpConvOvfI1, cil.OpConvOvfU1, cil.OpConvOvfI2, cil.OpConvOvfU2,
		cil.OpConvOvfI4, cil.OpConvOvfU4, cil.OpConvOvfI8, cil.OpConvOvfU8,
		cil.OpConvOvfI, cil.OpConvOvfU,
		cil.OpConvOvfI1Un, cil.OpConvOvfI2Un, cil.OpConvOvfI4Un, cil.OpConvOvfI8Un,
		cil.OpConvOvfU1Un, cil.OpConvOvfU2Un, cil.OpConvOvfU4Un, cil.OpConvOvfU8Un,
		cil.OpConvOvfIUn, cil.OpConvOvfUUn:
		return mc.convertOverflow(inst.Opcode)
	case cil.OpCkfinite:
		return mc.ckfinite()

	case cil.OpLdindI1, cil.OpLdindU1, cil.OpLdindI2, cil.OpLdindU2, cil.OpLdindI4,
		cil.OpLdindU4, cil.OpLdindI8, cil.OpLdindI, cil.OpLdindR4, cil.OpLdindR8, cil.OpLdindRef:
		return mc.ldind(inst.Opcode)
	case cil.OpStindRef, cil.OpStindI1, cil.OpStindI2, cil.OpStindI4, cil.OpStindI8,
		cil.OpStindR4, cil.OpStindR8, cil.OpStindI:
		return mc.stind(inst.Opcode)
	case cil.OpLdobj:
		return mc.ldobj(inst.Token)
	case cil.OpStobj:
		return mc.stobj(inst.Token)
	case cil.OpCpobj:
		return mc.cpobj(inst.Token)
	case cil.OpInitblk:
		return mc.initblk()
	case cil.OpCpblk:
		return mc.cpblk()

	case cil.OpLdfld:
		return mc.ldfld(inst.Token)
	case cil.OpLdflda:
		return mc.ldflda(inst.Token)
	case cil.OpStfld:
		return mc.stfld(inst.Token)
	case cil.OpLdsfld:
		return mc.ldsfld(inst.Token)
	case cil.OpLdsflda:
		return mc.ldsflda(inst.Token)
	case cil.OpStsfld:
		return mc.stsfld(inst.Token)

	case cil.OpNewarr:
		return mc.newarr(inst.Token)
	case cil.OpLdlen:
		return mc.ldlen()
	case cil.OpLdelema:
		return mc.ldelema(inst.Token)
	case cil.OpLdelemI1, cil.OpLdelemU1, cil.OpLdelemI2, cil.OpLdelemU2, cil.OpLdelemI4,
		cil.OpLdelemU4, cil.OpLdelemI8, cil.OpLdelemI, cil.OpLdelemR4, cil.OpLdelemR8, cil.OpLdelemRef:
		return mc.ldelem(inst.Opcode, 0)
	case cil.OpLdelem:
		return mc.ldelemGeneric(inst.Token)
	case cil.OpStelemI, cil.OpStelemI1, cil.OpStelemI2, cil.OpStelemI4, cil.OpStelemI8,
		cil.OpStelemR4, cil.OpStelemR8, cil.OpStelemRef:
		return mc.stelem(inst.Opcode, 0)
	case cil.OpStelem:
		return mc.stelemGeneric(inst.Token)

	case cil.OpCall:
		return mc.call(inst.Token, false)
	case cil.OpCallvirt:
		return mc.call(inst.Token, true)
	case cil.OpCalli:
		return mc.calli(inst.Token)
	case cil.OpNewobj:
		return mc.newobj(inst.Token)

	case cil.OpBox:
		return mc.box(inst.Token)
	case cil.OpUnbox:
		return mc.unbox(inst.Token)
	case cil.OpUnboxAny:
		return mc.unboxAny(inst.Token)
	case cil.OpCastclass:
		return mc.castclass(inst.Token)
	case cil.OpIsinst:
		return mc.isinst(inst.Token)
	case cil.OpLdtoken:
		return mc.ldtoken(inst.Token)
	case cil.OpLdftn:
		return mc.ldftn(inst.Token)
	case cil.OpLdstr:
		return mc.ldstr(inst.Token)

	case cil.OpThrow:
		return mc.throw()
	case cil.OpLeave, cil.OpLeaveS:
		return mc.leave(inst)
	case cil.OpEndfinally:
		return mc.endfinallyInline()

	default:
		return newErr(ErrUnsupportedOpcode, inst.Offset, "opcode %#x is unsupported", inst.Opcode)
	}
}

func (mc *methodCompiler) dispatchPrefix(inst cil.Instruction) error {
	switch inst.Prefix {
	case cil.OpConstrained:
		mc.prefix.hasConstrained = true
		mc.prefix.constrainedToken = inst.Token
	case cil.OpTail:
		mc.prefix.tail = true
	case cil.OpReadonly:
		mc.prefix.readonly = true
	case cil.OpVolatile:
		mc.prefix.volatile = true
	case cil.OpUnaligned:
		mc.prefix.unaligned = true
	case cil.OpNo:
		mc.prefix.no = true
	case cil.OpLdvirtftn:
		return mc.ldvirtftn(inst.Token)
	case cil.OpCeq:
		return mc.compareSet(asm.ConditionE)
	case cil.OpCgt:
		return mc.compareSet(asm.ConditionG)
	case cil.OpCgtUn:
		return mc.compareSet(asm.ConditionA)
	case cil.OpClt:
		return mc.compareSet(asm.ConditionL)
	case cil.OpCltUn:
		return mc.compareSet(asm.ConditionB)
	case cil.OpRethrow:
		return mc.rethrow()
	case cil.OpEndfilter:
		return mc.endfilter()
	case cil.OpArglistPrefixed:
		return mc.arglist()
	case cil.OpInitobj:
		return mc.initobj(inst.Token)
	case cil.OpSizeof:
		return mc.sizeofOp(inst.Token)
	case cil.OpLocalloc:
		return mc.localloc()
	case cil.OpRefanytype:
		return nil
	default:
		return nil
	}
	return nil
}

// applyPendingPatches fills in every pending branch and finally-call patch
// once all native offsets are known, per spec §5's "all branch patches are
// applied before compile() returns."
func (mc *methodCompiler) applyPendingPatches() {
	for _, p := range mc.branchPatches {
		if target, ok := mc.labels.nativeFor(p.targetIL); ok {
			mc.buf.PatchRel32To(p.patchOffset, int(target))
		}
	}
	for _, fp := range mc.finallyPatches {
		for _, fr := range mc.funclets {
			if fr.ClauseIndex == fp.clauseIndex && !fr.IsFilter {
				mc.buf.PatchRel32To(fp.callPatchOffset, int(fr.StartNative))
				break
			}
		}
	}
}
