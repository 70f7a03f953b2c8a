package compiler

import (
	"github.com/ProtonOS/baseline-jit/internal/asm"
	"github.com/ProtonOS/baseline-jit/internal/cil"
	"github.com/ProtonOS/baseline-jit/internal/evalstack"
)

// compileFunclets implements spec §4.7 pass 2: compile each EH clause's
// handler (and, for a filter clause, its filter expression) as an
// independent function with its own mini-prologue and eval-stack tracking.
func (mc *methodCompiler) compileFunclets() error {
	for i := range mc.in.EHClauses {
		clause := mc.in.EHClauses[i]

		if clause.Kind == EHFilter {
			start, size, err := mc.compileOneFunclet(func() error {
				mc.pushFrom(asm.RCX, evalstack.ObjectRef)
				return mc.compileHandlerRange(clause.FilterStartIL, clause.HandlerStartIL, false)
			})
			if err != nil {
				return err
			}
			mc.funclets = append(mc.funclets, FuncletRecord{
				StartNative: start, Size: size, ClauseIndex: i, IsFilter: true,
			})
		}

		catchLike := clause.Kind == EHException || clause.Kind == EHFilter
		start, size, err := mc.compileOneFunclet(func() error {
			return mc.compileHandlerRange(clause.HandlerStartIL, clause.HandlerEndIL, catchLike)
		})
		if err != nil {
			return err
		}
		mc.funclets = append(mc.funclets, FuncletRecord{
			StartNative: start, Size: size, ClauseIndex: i, IsFilter: false,
		})
	}
	return nil
}

// compileOneFunclet emits the shared funclet mini-prologue (`push rbp; mov
// rbp, rdx`, per spec §4.7), runs body with a fresh eval stack and
// mc.inFunclet set, and returns the funclet's native start offset and size.
func (mc *methodCompiler) compileOneFunclet(body func() error) (start, size int32, err error) {
	mc.stack = evalstack.New()
	mc.inFunclet = true
	defer func() { mc.inFunclet = false }()

	startPos := int32(mc.buf.Position())
	mc.e.Push64(asm.RBP)
	mc.e.MovRegReg(asm.Width64, asm.RDX, asm.RBP)

	if err := body(); err != nil {
		return 0, 0, err
	}
	return startPos, int32(mc.buf.Position()) - startPos, nil
}

// compileHandlerRange decodes and dispatches IL in [startIL, endIL), the
// same per-instruction loop compileMainBody runs for the unprotected
// portion of the body, restricted to one funclet's IL range. Nested
// handler regions (an EH clause whose handler starts inside this range,
// other than the one this funclet itself compiles) are skipped exactly as
// in the main-body pass, for a handler that itself contains a nested
// try/catch.
//
// skipLeadingPop implements spec §4.7's "the IL inside such a handler
// begins with `pop`; this first `pop` is emitted as a no-op" for catch and
// filter-handler funclets, whose exception object arrives in RCX with no
// corresponding physical push.
func (mc *methodCompiler) compileHandlerRange(startIL, endIL int, skipLeadingPop bool) error {
	dec := cil.NewDecoder(mc.in.IL)
	dec = skipDecoderTo(dec, startIL)
	first := true

	for dec.Offset() < endIL && !dec.Done() {
		ilOffset := dec.Offset()

		if snap, ok := mc.labels.stackAtLabel[ilOffset]; ok {
			mc.stack.Restore(snap)
		}
		mc.labels.record(ilOffset, int32(mc.buf.Position()))
		mc.labels.recordStack(ilOffset, mc.stack.Save())

		if region, ok := mc.handlerRegionAt(ilOffset); ok && ilOffset != startIL {
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

		if first {
			first = false
			if skipLeadingPop && inst.Opcode == cil.OpPop {
				continue
			}
		}

		if err := mc.dispatch(inst); err != nil {
			return err
		}
	}
	return nil
}

// discardEvalStack releases whatever the tracker still owns above the
// frame's fixed area, per ECMA-335's "leave empties the evaluation stack."
// A correctly emitted try body ends at zero extra depth in the example
// programs this tier targets, but the discard is unconditional so a leave
// reached mid-expression does not desynchronize RSP from the tracker.
func (mc *methodCompiler) discardEvalStack() {
	if n := mc.stack.TotalBytes(); n > 0 {
		mc.e.AddRspImm32(n)
		for mc.stack.Depth() > 0 {
			mc.stack.Pop()
		}
	}
}

// enclosingFinallyClause returns the index of the narrowest Finally clause
// whose try region contains ilOffset, if any.
func (mc *methodCompiler) enclosingFinallyClause(ilOffset int) (int, bool) {
	best := -1
	bestWidth := -1
	for i, c := range mc.in.EHClauses {
		if c.Kind != EHFinally {
			continue
		}
		if ilOffset < c.TryStartIL || ilOffset >= c.TryEndIL {
			continue
		}
		width := c.TryEndIL - c.TryStartIL
		if best == -1 || width < bestWidth {
			best, bestWidth = i, width
		}
	}
	return best, best != -1
}

// leave lowers `leave`/`leave.s`, per spec §4.7. Inside a funclet it always
// emits the catch/filter-handler epilogue, independent of its nominal
// target (the EH runtime resumes execution at the clause's
// LeaveTargetNative once the funclet returns). In the main body, a leave
// whose try region has an associated Finally clause calls that clause's
// finally funclet before jumping to the target.
func (mc *methodCompiler) leave(inst cil.Instruction) error {
	if mc.inFunclet {
		mc.e.AddRspImm32(8)
		mc.e.Ret()
		return nil
	}

	mc.discardEvalStack()
	target := inst.BranchTarget()

	if idx, ok := mc.enclosingFinallyClause(inst.Offset); ok {
		mc.e.SubRspImm32(32)
		mc.e.MovRegReg(asm.Width64, asm.RBP, asm.RDX)
		patch := mc.e.CallRel32()
		mc.finallyPatches = append(mc.finallyPatches, finallyPatch{
			callPatchOffset: patch, clauseIndex: idx,
		})
		mc.e.AddRspImm32(32)
		if mc.leaveTargetIL == nil {
			mc.leaveTargetIL = make(map[int]int)
		}
		mc.leaveTargetIL[idx] = target
	}

	patch := mc.e.JmpRel32()
	mc.recordBranchPatch(patch, target)
	return nil
}

// endfinallyInline lowers `endfinally`: `pop rbp; ret` inside a finally/
// fault funclet, or a bare `ret` on the (invalid in well-formed IL, kept
// only for robustness) inline path, per spec §4.7.
func (mc *methodCompiler) endfinallyInline() error {
	if mc.inFunclet {
		mc.e.Pop64(asm.RBP)
	}
	mc.e.Ret()
	return nil
}

// endfilter lowers the prefixed `endfilter`: pop the int32 filter result
// into RAX, then `pop rbp; ret`, per spec §4.7/Property 5.
func (mc *methodCompiler) endfilter() error {
	if _, err := mc.popTo(asm.RAX); err != nil {
		return err
	}
	mc.e.Pop64(asm.RBP)
	mc.e.Ret()
	return nil
}

// throw pops the exception object into RCX and calls the host throw
// helper. Never returns; an int3 follows for debuggability, per spec §4.7.
func (mc *methodCompiler) throw() error {
	if mc.helpers().Throw == 0 {
		return newErr(ErrResolverFailure, -1, "no Throw helper address configured")
	}
	if _, err := mc.popTo(asm.RCX); err != nil {
		return err
	}
	mc.e.SubRspImm32(32)
	mc.e.MovRegImm64(asm.RAX, uint64(mc.helpers().Throw))
	mc.e.CallReg(asm.RAX)
	mc.e.Int3()
	return nil
}

// rethrow calls the host rethrow helper, re-raising the funclet's current
// exception. Never returns; an int3 follows, per spec §4.7.
func (mc *methodCompiler) rethrow() error {
	if mc.helpers().Rethrow == 0 {
		return newErr(ErrResolverFailure, -1, "no Rethrow helper address configured")
	}
	mc.e.SubRspImm32(32)
	mc.e.MovRegImm64(asm.RAX, uint64(mc.helpers().Rethrow))
	mc.e.CallReg(asm.RAX)
	mc.e.Int3()
	return nil
}

// translateEHClauses converts every input EH clause's IL offsets to native
// offsets using the label table populated by both compile passes, per spec
// §4.7's "after both passes, EH clauses are translated."
func (mc *methodCompiler) translateEHClauses() ([]JITExceptionClause, error) {
	out := make([]JITExceptionClause, len(mc.in.EHClauses))
	for i, c := range mc.in.EHClauses {
		jc := JITExceptionClause{Kind: c.Kind}

		tryStart, ok := mc.labels.nativeFor(c.TryStartIL)
		if !ok {
			return nil, newErr(ErrOperandParseOverrun, c.TryStartIL, "unresolved try-start label for clause %d", i)
		}
		jc.TryStartNative = tryStart

		tryEnd, ok := mc.labels.nativeFor(c.TryEndIL)
		if !ok {
			return nil, newErr(ErrOperandParseOverrun, c.TryEndIL, "unresolved try-end label for clause %d", i)
		}
		jc.TryEndNative = tryEnd

		for _, fr := range mc.funclets {
			if fr.ClauseIndex != i {
				continue
			}
			if fr.IsFilter {
				jc.FilterNative = fr.StartNative
			} else {
				jc.HandlerStartNative = fr.StartNative
				jc.HandlerEndNative = fr.StartNative + fr.Size
			}
		}

		if target, ok := mc.leaveTargetIL[i]; ok {
			if n, ok := mc.labels.nativeFor(target); ok {
				jc.LeaveTargetNative = n
			}
		}

		if c.Kind == EHException {
			if t, err := mc.resolveType(c.ClassToken); err == nil {
				jc.CatchMT = t.MethodTable
			}
		}

		out[i] = jc
	}
	return out, nil
}
