package compiler_test

import (
	"fmt"

	"github.com/ProtonOS/baseline-jit/compiler"
	"github.com/ProtonOS/baseline-jit/internal/registry"
	"github.com/ProtonOS/baseline-jit/internal/resolver"
)

// This demonstrates compiling a minimal CIL method body (ldc.i4.0; ret) to
// native x86-64 machine code and publishing it to a shared registry.
func Example() {
	reg := registry.New()
	j := compiler.NewJIT(reg, resolver.Resolvers{}, compiler.Config{})

	body := []byte{0x16, 0x2A} // ldc.i4.0; ret
	res, err := j.Compile(compiler.CompileInput{
		IL:          body,
		MethodToken: 0x06000001,
		AssemblyID:  1,
	})
	if err != nil {
		fmt.Println("compile failed:", err)
		return
	}

	fmt.Println("compiled:", res.FunctionPointer != nil)
	fmt.Println("has exception clauses:", len(res.EHClauses) > 0)

	// Output:
	// compiled: true
	// has exception clauses: false
}
