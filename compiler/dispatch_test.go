package compiler_test

import (
	"testing"

	"github.com/ProtonOS/baseline-jit/compiler"
	"github.com/ProtonOS/baseline-jit/internal/resolver"
)

func newTestJIT() *compiler.JIT {
	j := compiler.NewJIT(nil, resolver.Resolvers{}, compiler.Config{})
	j.SetDiagnostics(discardDiagnostics{})
	return j
}

type discardDiagnostics struct{}

func (discardDiagnostics) Printf(format string, args ...any) {}

func TestCompileLdcRet(t *testing.T) {
	body := il().op(opLdcI4).i32(42).op(opRet).bytes()

	res, err := newTestJIT().Compile(compiler.CompileInput{
		IL:       body,
		ArgCount: 0,
	})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if res.FunctionPointer == nil {
		t.Fatal("expected non-nil function pointer")
	}
	if res.NativeSize <= 0 {
		t.Fatal("expected positive native size")
	}
	if len(res.Code) == 0 {
		t.Fatal("expected non-empty code")
	}
	if res.Code[res.NativeSize-1] != 0xC3 {
		t.Fatalf("expected method to end in ret (0xC3), got %#x", res.Code[res.NativeSize-1])
	}
}

func TestCompileSumThreeArgs(t *testing.T) {
	// ldarg.0; ldarg.1; add; ldarg.2; add; ret
	body := il().op(opLdarg0).op(opLdarg1).op(opAdd).op(opLdarg2).op(opAdd).op(opRet).bytes()

	res, err := newTestJIT().Compile(compiler.CompileInput{
		IL:             body,
		ArgCount:       3,
		ArgIsValueType: []bool{false, false, false},
		ArgTypeSize:    []int32{0, 0, 0},
		ArgFloatKind:   []compiler.FloatKind{compiler.NotFloat, compiler.NotFloat, compiler.NotFloat},
	})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if res.FunctionPointer == nil {
		t.Fatal("expected non-nil function pointer")
	}
	if res.PrologueSize <= 0 {
		t.Fatal("expected a non-trivial prologue")
	}
}

func TestCompileUnsupportedOpcodeFails(t *testing.T) {
	// OpJmp (0x27) is the one opcode flagged fatal-unsupported at this tier.
	body := il().op(0x27).u32(0x06000001).op(opRet).bytes()

	_, err := newTestJIT().Compile(compiler.CompileInput{IL: body})
	if err == nil {
		t.Fatal("expected an error for an unsupported opcode")
	}
}

func TestCompileTruncatedInstructionFails(t *testing.T) {
	// ldc.i4 needs 4 trailing operand bytes; give it none.
	body := il().op(opLdcI4).bytes()

	_, err := newTestJIT().Compile(compiler.CompileInput{IL: body})
	if err == nil {
		t.Fatal("expected an error for a truncated instruction")
	}
}

func TestCompileStackUnderflowFails(t *testing.T) {
	// add with nothing pushed first.
	body := il().op(opAdd).op(opRet).bytes()

	_, err := newTestJIT().Compile(compiler.CompileInput{IL: body})
	if err == nil {
		t.Fatal("expected a stack-underflow error")
	}
}

func TestCompileDupAndPop(t *testing.T) {
	body := il().op(opLdcI40).op(opDup).op(opPop).op(opRet).bytes()

	res, err := newTestJIT().Compile(compiler.CompileInput{IL: body})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if res.NativeSize <= 0 {
		t.Fatal("expected positive native size")
	}
}

func TestCompileOverflowArith(t *testing.T) {
	// Each overflow-checked opcode must compile cleanly and emit the
	// `int 4` trap byte sequence (0xCD 0x04) spec.md §4.5/§6 names for a
	// failed overflow check.
	cases := []struct {
		name string
		op   byte
	}{
		{"add.ovf", opAddOvf},
		{"add.ovf.un", opAddOvfUn},
		{"sub.ovf", opSubOvf},
		{"sub.ovf.un", opSubOvfUn},
		{"mul.ovf", opMulOvf},
		{"mul.ovf.un", opMulOvfUn},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			body := il().op(opLdcI41).op(opLdcI42).op(c.op).op(opRet).bytes()

			res, err := newTestJIT().Compile(compiler.CompileInput{IL: body})
			if err != nil {
				t.Fatalf("compile failed: %v", err)
			}
			if res.NativeSize <= 0 {
				t.Fatal("expected positive native size")
			}
			code := res.Code[:res.NativeSize]
			found := false
			for i := 0; i+1 < len(code); i++ {
				if code[i] == 0xCD && code[i+1] == 0x04 {
					found = true
					break
				}
			}
			if !found {
				t.Fatalf("expected an `int 4` overflow trap (0xCD 0x04) in compiled code for %s", c.name)
			}
		})
	}
}

func TestCompileOverflowArithStackUnderflow(t *testing.T) {
	body := il().op(opLdcI40).op(opAddOvf).op(opRet).bytes()

	_, err := newTestJIT().Compile(compiler.CompileInput{IL: body})
	if err == nil {
		t.Fatal("expected a stack-underflow error for add.ovf with only one operand")
	}
}

func TestCompileVoidReturn(t *testing.T) {
	body := il().op(opNop).op(opRet).bytes()

	res, err := newTestJIT().Compile(compiler.CompileInput{
		IL:         body,
		ReturnVoid: true,
	})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if res.Code[res.NativeSize-1] != 0xC3 {
		t.Fatal("expected a ret at the end of a void method")
	}
}
