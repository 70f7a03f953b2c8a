package compiler_test

import (
	"testing"

	"github.com/ProtonOS/baseline-jit/compiler"
	"github.com/ProtonOS/baseline-jit/internal/resolver"
)

// Scenario: sum of three int32 args — ldarg.0; ldarg.1; add; ldarg.2; add; ret.
func TestScenarioSumThreeArgs(t *testing.T) {
	body := il().op(opLdarg0).op(opLdarg1).op(opAdd).op(opLdarg2).op(opAdd).op(opRet).bytes()

	res, err := newTestJIT().Compile(compiler.CompileInput{
		IL:           body,
		ArgCount:     3,
		ArgFloatKind: []compiler.FloatKind{compiler.NotFloat, compiler.NotFloat, compiler.NotFloat},
	})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if res.Code[res.NativeSize-1] != 0xC3 {
		t.Fatal("expected trailing ret")
	}
}

// Scenario: signed blt.s on two args, branching around a constant load.
func TestScenarioSignedBlt(t *testing.T) {
	// ldarg.0; ldarg.1; blt.s L; ldc.i4.0; br.s E; L: ldc.i4.1; E: ret
	b := il()
	b.op(opLdarg0)
	b.op(opLdarg1)
	b.op(opBltS).i8(0) // patched below
	bltOperandIdx := b.offset() - 1
	bltNext := b.offset()
	b.op(opLdcI40)
	b.op(opBrS).i8(0) // patched below
	brOperandIdx := b.offset() - 1
	brNext := b.offset()
	lTarget := b.offset()
	b.op(opLdcI41)
	eTarget := b.offset()
	b.op(opRet)
	full := b.bytes()
	full[bltOperandIdx] = byte(lTarget - bltNext)
	full[brOperandIdx] = byte(eTarget - brNext)

	res, err := newTestJIT().Compile(compiler.CompileInput{
		IL:       full,
		ArgCount: 2,
	})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if res.NativeSize <= 0 {
		t.Fatal("expected positive native size")
	}
}

// Scenario: unsigned division of two native-int args.
func TestScenarioUnsignedDiv(t *testing.T) {
	body := il().op(opLdarg0).op(opLdarg1).op(opDivUn).op(opRet).bytes()

	res, err := newTestJIT().Compile(compiler.CompileInput{IL: body, ArgCount: 2})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if res.NativeSize <= 0 {
		t.Fatal("expected positive native size")
	}
}

// Scenario: allocate an int32[] array, store a constant into element 0, load
// it back and return it.
func TestScenarioArrayStoreLoad(t *testing.T) {
	// ldc.i4.1 (length); newarr; dup; ldc.i4.0 (index); ldc.i4.1 (value); stelem.i4; ldc.i4.0 (index); ldelem.i4; ret
	body := il().
		op(opLdcI41).
		op(opNewarr).u32(0x02000001).
		op(opDup).
		op(opLdcI40).
		op(opLdcI41).
		op(opStelemI4).
		op(opLdcI40).
		op(opLdelemI4).
		op(opRet).
		bytes()

	res := resolver.Resolvers{Type: fakeType{t: resolver.ResolvedType{MethodTable: 0x4000, ComponentSize: 4}}}
	_, err := jitWithResolvers(res, resolver.RuntimeHelpers{NewArray: 0xf00d}).Compile(compiler.CompileInput{IL: body})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
}

// Scenario: virtual dispatch through a vtable slot on a resolved callvirt
// target.
func TestScenarioVirtualDispatch(t *testing.T) {
	// ldarg.0 (this); callvirt SomeMethod(); ret
	body := il().op(opLdarg0).op(opCallvirt).u32(0x0A000001).op(opRet).bytes()

	res := resolver.Resolvers{Method: fakeMethod{m: resolver.ResolvedMethod{
		ArgCount:   0,
		Return:     resolver.ReturnInt32,
		HasThis:    true,
		IsVirtual:  true,
		VtableSlot: 3,
	}}}
	result, err := jitWithResolvers(res, resolver.RuntimeHelpers{}).Compile(compiler.CompileInput{
		IL:       body,
		ArgCount: 1,
		HasThis:  true,
	})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if result.NativeSize <= 0 {
		t.Fatal("expected positive native size")
	}
}

// Scenario: a try/finally whose leave crosses the finally boundary, verified
// via the structural checks already covered in funclet_test.go; this entry
// exercises it through the CompileInput shape a real two-type hierarchy
// dispatch + EH combination would use (finally wraps a virtual call).
func TestScenarioTryFinallyAroundVirtualCall(t *testing.T) {
	// try { ldarg.0; callvirt M(); pop; leave.s L } finally { endfinally } L: ret
	b := il()
	b.op(opLdarg0)
	b.op(opCallvirt).u32(0x0A000001)
	b.op(opPop)
	b.op(opLeaveS).i8(0)
	leaveOperandIdx := b.offset() - 1
	leaveNext := b.offset()
	tryEnd := b.offset()
	b.op(opEndfin)
	handlerEnd := b.offset()
	lTarget := b.offset()
	b.op(opRet)
	full := b.bytes()
	full[leaveOperandIdx] = byte(lTarget - leaveNext)

	res := resolver.Resolvers{Method: fakeMethod{m: resolver.ResolvedMethod{
		ArgCount: 0, Return: resolver.ReturnInt32, HasThis: true, IsVirtual: true, VtableSlot: 1,
	}}}
	result, err := jitWithResolvers(res, resolver.RuntimeHelpers{}).Compile(compiler.CompileInput{
		IL:       full,
		ArgCount: 1,
		HasThis:  true,
		EHClauses: []compiler.ILExceptionClause{
			{Kind: compiler.EHFinally, TryStartIL: 0, TryEndIL: tryEnd, HandlerStartIL: tryEnd, HandlerEndIL: handlerEnd},
		},
	})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if len(result.Funclets) != 1 {
		t.Fatalf("expected 1 funclet, got %d", len(result.Funclets))
	}
}
