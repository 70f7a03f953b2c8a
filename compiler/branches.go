package compiler

import (
	"github.com/ProtonOS/baseline-jit/internal/asm"
	"github.com/ProtonOS/baseline-jit/internal/cil"
	"github.com/ProtonOS/baseline-jit/internal/evalstack"
)

// recordBranchPatch registers a pending branch so applyPendingPatches can
// fill in its displacement once every IL offset has a native offset, per
// spec §3's branch-patch table.
func (mc *methodCompiler) recordBranchPatch(patchOffset int, targetIL int) {
	mc.branchPatches = append(mc.branchPatches, branchPatch{
		patchOffset:   patchOffset,
		targetIL:      targetIL,
		expectedStack: mc.stack.Save(),
	})
	mc.labels.recordStack(targetIL, mc.stack.Save())
}

func (mc *methodCompiler) emitUnconditionalBranch(inst cil.Instruction) error {
	target := inst.BranchTarget()
	patch := mc.e.JmpRel32()
	mc.recordBranchPatch(patch, target)
	return nil
}

// emitConditionalBranch lowers brtrue/brfalse: pop one Int32/NativeInt/
// ObjectRef value, test it against zero, branch per cond.
func (mc *methodCompiler) emitConditionalBranch(inst cil.Instruction, cond asm.Condition, testZero bool) error {
	entry, err := mc.popTo(asm.RAX)
	if err != nil {
		return err
	}
	width := asm.Width64
	if entry.Kind == evalstack.Int32 {
		width = asm.Width32
	}
	mc.e.MovRegImm32(width, asm.RCX, 0)
	mc.e.ArithRegReg(width, asm.ArithCmp, asm.RCX, asm.RAX)
	target := inst.BranchTarget()
	patch := mc.e.JccRel32(cond)
	mc.recordBranchPatch(patch, target)
	return nil
}

// emitCompareBranch lowers the beq/bge/bgt/.../blt.un family: pop two
// operands, cmp, branch on cond. Per spec §4.5, uses the 32-bit form when
// both operands are Int32-kind.
func (mc *methodCompiler) emitCompareBranch(inst cil.Instruction, cond asm.Condition) error {
	bothInt32, _, _, err := mc.popBinaryOperands()
	if err != nil {
		return err
	}
	width := asm.Width64
	if bothInt32 {
		width = asm.Width32
	}
	mc.e.ArithRegReg(width, asm.ArithCmp, asm.RCX, asm.RAX)
	target := inst.BranchTarget()
	patch := mc.e.JccRel32(cond)
	mc.recordBranchPatch(patch, target)
	return nil
}

// emitSwitch lowers `switch`: pop the index, bounds-check it against the
// target count, and branch through a sequence of compare-and-jump pairs
// (spec §3: "N branch-patch entries sharing one popped index" — this
// tier uses a linear compare chain rather than a jump table, which keeps
// every target a plain rel32 patch like every other branch).
func (mc *methodCompiler) emitSwitch(inst cil.Instruction) error {
	if _, err := mc.popTo(asm.RAX); err != nil {
		return err
	}
	targets := inst.SwitchTargets()
	for i, target := range targets {
		mc.e.MovRegImm32(asm.Width32, asm.RCX, int32(i))
		mc.e.ArithRegReg(asm.Width32, asm.ArithCmp, asm.RCX, asm.RAX)
		patch := mc.e.JccRel32(asm.ConditionE)
		mc.recordBranchPatch(patch, target)
	}
	return nil
}
