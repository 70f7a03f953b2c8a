// Package asmdebug wires github.com/twitchyliquid64/golang-asm — the
// teacher's own former hand-assembler dependency — as an independent x86-64
// encoder used exclusively from tests, to cross-check InstructionEmitter's
// hand-rolled byte sequences against Go's own assembler backend for the
// handful of instruction shapes both sides can express.
//
// Grounded directly on internal/asm/amd64_debug/debug_assembler.go's
// "NewDebugAssembler...for ensuring that our assembler produces exactly the
// same binary as Go" story; this package plays the "goasm" half of that
// pair for the much smaller instruction set this JIT's emitter needs.
package asmdebug

import (
	goasm "github.com/twitchyliquid64/golang-asm"
	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/x86"
)

// Reference is a tiny amd64 assembler session backed by golang-asm.
// Not safe for concurrent use; intended for one-shot use inside a test.
type Reference struct {
	b *goasm.Builder
}

// New creates a Reference with room for a handful of instructions.
func New() (*Reference, error) {
	b, err := goasm.NewBuilder("amd64", 64)
	if err != nil {
		return nil, err
	}
	return &Reference{b: b}, nil
}

func (r *Reference) add(p *obj.Prog) {
	r.b.AddInstruction(p)
}

func (r *Reference) prog(as obj.As) *obj.Prog {
	p := r.b.NewProg()
	p.As = as
	return p
}

// MovRegReg appends `mov to, from` (64-bit GP registers), regs named with
// golang-asm's own x86.REG_* constants so callers can reuse this package's
// register space directly.
func (r *Reference) MovRegReg(from, to int16) {
	p := r.prog(x86.AMOVQ)
	p.From = obj.Addr{Type: obj.TYPE_REG, Reg: from}
	p.To = obj.Addr{Type: obj.TYPE_REG, Reg: to}
	r.add(p)
}

// AddRegReg appends `add to, from` (64-bit): to += from.
func (r *Reference) AddRegReg(from, to int16) {
	p := r.prog(x86.AADDQ)
	p.From = obj.Addr{Type: obj.TYPE_REG, Reg: from}
	p.To = obj.Addr{Type: obj.TYPE_REG, Reg: to}
	r.add(p)
}

// SubRspImm32 appends `sub rsp, imm32`.
func (r *Reference) SubRspImm32(imm int64) {
	p := r.prog(x86.ASUBQ)
	p.From = obj.Addr{Type: obj.TYPE_CONST, Offset: imm}
	p.To = obj.Addr{Type: obj.TYPE_REG, Reg: x86.REG_SP}
	r.add(p)
}

// Ret appends a near return.
func (r *Reference) Ret() {
	r.add(r.prog(obj.ARET))
}

// Assemble returns the assembled machine code for everything appended so far.
func (r *Reference) Assemble() ([]byte, error) {
	return r.b.Assemble()
}

// Regs re-exports the handful of golang-asm register constants this
// package's callers need, so test code does not have to import
// golang-asm/obj/x86 directly just to name RAX/RBX/RSP.
var (
	RegAX = int16(x86.REG_AX)
	RegBX = int16(x86.REG_BX)
	RegCX = int16(x86.REG_CX)
	RegDX = int16(x86.REG_DX)
	RegSP = int16(x86.REG_SP)
	RegBP = int16(x86.REG_BP)
)
