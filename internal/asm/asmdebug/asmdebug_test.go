package asmdebug_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ProtonOS/baseline-jit/internal/asm"
	"github.com/ProtonOS/baseline-jit/internal/asm/asmdebug"
)

// TestEmitterMatchesGolangAsm cross-checks a handful of representative
// InstructionEmitter sequences against golang-asm's own encoder, the same
// "do we produce exactly the same binary as Go" story
// internal/asm/amd64_debug/debug_assembler.go tells for the teacher's full
// assembler, scaled down to the instruction shapes this package needs.
func TestEmitterMatchesGolangAsm(t *testing.T) {
	t.Run("mov rax, rbx", func(t *testing.T) {
		buf := asm.NewCodeBuffer(make([]byte, 64))
		asm.NewEmitter(buf).MovRegReg(asm.Width64, asm.RBX, asm.RAX)

		ref, err := asmdebug.New()
		require.NoError(t, err)
		ref.MovRegReg(asmdebug.RegBX, asmdebug.RegAX)
		want, err := ref.Assemble()
		require.NoError(t, err)

		require.Equal(t, want, buf.Bytes())
	})

	t.Run("add rax, rcx", func(t *testing.T) {
		buf := asm.NewCodeBuffer(make([]byte, 64))
		asm.NewEmitter(buf).ArithRegReg(asm.Width64, asm.ArithAdd, asm.RCX, asm.RAX)

		ref, err := asmdebug.New()
		require.NoError(t, err)
		ref.AddRegReg(asmdebug.RegCX, asmdebug.RegAX)
		want, err := ref.Assemble()
		require.NoError(t, err)

		require.Equal(t, want, buf.Bytes())
	})

	t.Run("ret", func(t *testing.T) {
		buf := asm.NewCodeBuffer(make([]byte, 8))
		asm.NewEmitter(buf).Ret()

		ref, err := asmdebug.New()
		require.NoError(t, err)
		ref.Ret()
		want, err := ref.Assemble()
		require.NoError(t, err)

		require.Equal(t, want, buf.Bytes())
	})
}
