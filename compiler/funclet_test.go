package compiler_test

import (
	"testing"

	"github.com/ProtonOS/baseline-jit/compiler"
)

// buildTryFinally assembles:
//
//	IL 0: nop                      (try start)
//	IL 1: leave.s -> IL 4          (try end at IL 3)
//	IL 3: endfinally                (handler, [3,4))
//	IL 4: nop                       (leave target)
//	IL 5: ret
func buildTryFinally() []byte {
	return il().
		op(opNop).     // 0
		op(opLeaveS).i8(1). // 1,2: leave.s rel=1 -> next(3)+1=4
		op(opEndfin).  // 3
		op(opNop).     // 4
		op(opRet).     // 5
		bytes()
}

func TestCompileTryFinally(t *testing.T) {
	body := buildTryFinally()

	res, err := newTestJIT().Compile(compiler.CompileInput{
		IL: body,
		EHClauses: []compiler.ILExceptionClause{
			{
				Kind:           compiler.EHFinally,
				TryStartIL:     0,
				TryEndIL:       3,
				HandlerStartIL: 3,
				HandlerEndIL:   4,
			},
		},
	})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if len(res.EHClauses) != 1 {
		t.Fatalf("expected 1 EH clause in output, got %d", len(res.EHClauses))
	}
	if len(res.Funclets) != 1 {
		t.Fatalf("expected 1 compiled funclet (finally has no filter), got %d", len(res.Funclets))
	}
	fr := res.Funclets[0]
	if fr.IsFilter {
		t.Fatal("a Finally clause must not produce a filter funclet")
	}
	if fr.Size <= 0 {
		t.Fatal("expected a non-empty funclet body")
	}

	jc := res.EHClauses[0]
	if jc.Kind != compiler.EHFinally {
		t.Fatalf("expected EHFinally, got %v", jc.Kind)
	}
	if jc.HandlerStartNative != fr.StartNative {
		t.Fatalf("HandlerStartNative = %d, want %d", jc.HandlerStartNative, fr.StartNative)
	}
	if jc.HandlerEndNative != fr.StartNative+fr.Size {
		t.Fatalf("HandlerEndNative = %d, want %d", jc.HandlerEndNative, fr.StartNative+fr.Size)
	}
	if jc.LeaveTargetNative == 0 {
		t.Fatal("expected a resolved leave-target native offset")
	}
	if jc.TryStartNative >= jc.TryEndNative {
		t.Fatalf("TryStartNative (%d) should precede TryEndNative (%d)", jc.TryStartNative, jc.TryEndNative)
	}
}

func TestFuncletEpilogueByteShape(t *testing.T) {
	body := buildTryFinally()

	res, err := newTestJIT().Compile(compiler.CompileInput{
		IL: body,
		EHClauses: []compiler.ILExceptionClause{
			{Kind: compiler.EHFinally, TryStartIL: 0, TryEndIL: 3, HandlerStartIL: 3, HandlerEndIL: 4},
		},
	})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	fr := res.Funclets[0]
	// endfinally inside a funclet lowers to `pop rbp (0x5D); ret (0xC3)`.
	end := fr.StartNative + fr.Size
	last := res.Code[end-1]
	if last != 0xC3 {
		t.Fatalf("expected funclet to end in ret (0xC3), got %#x", last)
	}
	popRbp := res.Code[end-2]
	if popRbp != 0x5D {
		t.Fatalf("expected pop rbp (0x5D) before ret, got %#x", popRbp)
	}
	// Funclet mini-prologue: push rbp (0x55) then mov rbp, rdx.
	if res.Code[fr.StartNative] != 0x55 {
		t.Fatalf("expected funclet prologue to start with push rbp (0x55), got %#x", res.Code[fr.StartNative])
	}
}

func TestCompileCatchClauseProducesOneFunclet(t *testing.T) {
	// IL 0: nop (try start); IL 1: leave.s -> IL 7 (try end at IL 3)
	// IL 3: pop (elided, exception arrives in RCX); IL 4: nop; IL5: leave.s -> IL7 (handler end 7)
	// IL 7: ret
	body := il().
		op(opNop).
		op(opLeaveS).i8(3). // rel: next=3, target=3+3=6
		op(opPop).
		op(opNop).
		op(opLeaveS).i8(0). // next=7, target=7 -- placeholder, recompute below
		op(opRet).
		bytes()
	_ = body

	// Build precisely with explicit offsets instead of guessing relative
	// displacements inline.
	b := il()
	b.op(opNop)               // IL0, len1
	b.op(opLeaveS).i8(0)      // IL1, len2 -> patched below
	b.op(opPop)               // IL3, len1 (elided by skipLeadingPop)
	b.op(opNop)               // IL4, len1
	b.op(opLeaveS).i8(0)      // IL5, len2 -> patched below
	b.op(opRet)               // IL7
	full := b.bytes()
	// leave.s at IL1: next=3, want target=7 (the ret past the handler): rel=4
	full[2] = byte(4)
	// leave.s at IL5: next=7, want target=7: rel=0
	full[6] = byte(0)

	res, err := newTestJIT().Compile(compiler.CompileInput{
		IL: full,
		EHClauses: []compiler.ILExceptionClause{
			{
				Kind:           compiler.EHException,
				TryStartIL:     0,
				TryEndIL:       3,
				HandlerStartIL: 3,
				HandlerEndIL:   7,
				ClassToken:     0x02000001,
			},
		},
	})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if len(res.Funclets) != 1 {
		t.Fatalf("expected 1 funclet for a plain catch clause, got %d", len(res.Funclets))
	}
	if res.Funclets[0].IsFilter {
		t.Fatal("a plain catch clause must not produce a filter funclet")
	}
}
