package compiler_test

import (
	"testing"

	"github.com/ProtonOS/baseline-jit/compiler"
	"github.com/ProtonOS/baseline-jit/internal/resolver"
)

func jitWithResolvers(res resolver.Resolvers, helpers resolver.RuntimeHelpers) *compiler.JIT {
	j := compiler.NewJIT(nil, res, compiler.Config{})
	j.SetDiagnostics(discardDiagnostics{})
	j.SetRuntimeHelpers(helpers)
	return j
}

func TestCompileBoxValueType(t *testing.T) {
	body := il().op(opLdcI40).op(opBox).u32(0x02000001).op(opPop).op(opRet).bytes()

	res := resolver.Resolvers{Type: fakeType{t: resolver.ResolvedType{
		MethodTable: 0x1000, IsValueType: true, ValueSize: 4,
	}}}
	_, err := jitWithResolvers(res, resolver.RuntimeHelpers{NewFast: 0xdeadbeef}).Compile(compiler.CompileInput{IL: body})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
}

func TestCompileBoxReferenceTypeIsNoop(t *testing.T) {
	body := il().op(opLdnull).op(opBox).u32(0x02000001).op(opPop).op(opRet).bytes()

	res := resolver.Resolvers{Type: fakeType{t: resolver.ResolvedType{
		MethodTable: 0x1000, IsValueType: false,
	}}}
	_, err := jitWithResolvers(res, resolver.RuntimeHelpers{}).Compile(compiler.CompileInput{IL: body})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
}

func TestCompileBoxMissingHelperFails(t *testing.T) {
	body := il().op(opLdcI40).op(opBox).u32(0x02000001).op(opRet).bytes()

	res := resolver.Resolvers{Type: fakeType{t: resolver.ResolvedType{
		MethodTable: 0x1000, IsValueType: true, ValueSize: 4,
	}}}
	_, err := jitWithResolvers(res, resolver.RuntimeHelpers{}).Compile(compiler.CompileInput{IL: body})
	if err == nil {
		t.Fatal("expected an error when RhpNewFast is unconfigured")
	}
}

func TestCompileCastclass(t *testing.T) {
	body := il().op(opLdnull).op(0x74).u32(0x02000001).op(opPop).op(opRet).bytes()

	res := resolver.Resolvers{Type: fakeType{t: resolver.ResolvedType{MethodTable: 0x2000}}}
	_, err := jitWithResolvers(res, resolver.RuntimeHelpers{IsAssignableTo: 0xcafe}).Compile(compiler.CompileInput{IL: body})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
}

func TestCompileIsinst(t *testing.T) {
	body := il().op(opLdnull).op(opIsinst).u32(0x02000001).op(opPop).op(opRet).bytes()

	res := resolver.Resolvers{Type: fakeType{t: resolver.ResolvedType{MethodTable: 0x2000}}}
	_, err := jitWithResolvers(res, resolver.RuntimeHelpers{IsAssignableTo: 0xcafe}).Compile(compiler.CompileInput{IL: body})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
}

func TestCompileLdtokenTypeDef(t *testing.T) {
	body := il().op(0xD0).u32(0x02000001).op(opPop).op(opRet).bytes()

	res := resolver.Resolvers{Type: fakeType{t: resolver.ResolvedType{MethodTable: 0x3000}}}
	_, err := jitWithResolvers(res, resolver.RuntimeHelpers{}).Compile(compiler.CompileInput{IL: body})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
}

func TestCompileLdtokenMethodToken(t *testing.T) {
	// Top byte 0x06 (MethodDef table): falls through to the composite
	// (assembly_id << 32) | token handle, no resolver call needed.
	body := il().op(0xD0).u32(0x06000001).op(opPop).op(opRet).bytes()

	_, err := jitWithResolvers(resolver.Resolvers{}, resolver.RuntimeHelpers{}).Compile(compiler.CompileInput{IL: body})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
}

func TestCompileSizeof(t *testing.T) {
	body := il().op(opPrefix).op(opSizeof).u32(0x02000001).op(opPop).op(opRet).bytes()

	res := resolver.Resolvers{Type: fakeType{t: resolver.ResolvedType{ValueSize: 16}}}
	_, err := jitWithResolvers(res, resolver.RuntimeHelpers{}).Compile(compiler.CompileInput{IL: body})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
}

func TestCompileLocalloc(t *testing.T) {
	body := il().op(opLdcI4).i32(64).op(opPrefix).op(0x0F).op(opPop).op(opRet).bytes()

	_, err := jitWithResolvers(resolver.Resolvers{}, resolver.RuntimeHelpers{}).Compile(compiler.CompileInput{IL: body})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
}

func TestCompileResolverFailurePropagates(t *testing.T) {
	body := il().op(opLdnull).op(opIsinst).u32(0x02000001).op(opPop).op(opRet).bytes()

	// No TypeResolver configured at all.
	_, err := jitWithResolvers(resolver.Resolvers{}, resolver.RuntimeHelpers{}).Compile(compiler.CompileInput{IL: body})
	if err == nil {
		t.Fatal("expected a resolver-failure error with no TypeResolver configured")
	}
}
