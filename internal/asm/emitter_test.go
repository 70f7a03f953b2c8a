package asm_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ProtonOS/baseline-jit/internal/asm"
)

func newBuf(t *testing.T) (*asm.CodeBuffer, *asm.Emitter) {
	t.Helper()
	b := asm.NewCodeBuffer(make([]byte, 256))
	return b, asm.NewEmitter(b)
}

func TestMovRegReg(t *testing.T) {
	tests := []struct {
		name  string
		width asm.Width
		src   asm.Register
		dst   asm.Register
		want  []byte
	}{
		{"mov eax, ecx (32)", asm.Width32, asm.RCX, asm.RAX, []byte{0x89, 0xC8}},
		{"mov rax, rcx (64)", asm.Width64, asm.RCX, asm.RAX, []byte{0x48, 0x89, 0xC8}},
		{"mov r9, r8 (64, extended)", asm.Width64, asm.R8, asm.R9, []byte{0x4D, 0x89, 0xC1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, e := newBuf(t)
			e.MovRegReg(tt.width, tt.src, tt.dst)
			require.Equal(t, tt.want, buf.Bytes())
		})
	}
}

func TestMovRegImm64(t *testing.T) {
	buf, e := newBuf(t)
	e.MovRegImm64(asm.RAX, 0x1122334455667788)
	require.Equal(t, []byte{0x48, 0xB8, 0x88, 0x77, 0x66, 0x55, 0x44, 0x33, 0x22, 0x11}, buf.Bytes())
}

func TestRet(t *testing.T) {
	buf, e := newBuf(t)
	e.Ret()
	require.Equal(t, []byte{0xC3}, buf.Bytes())
}

func TestInt3AndTraps(t *testing.T) {
	buf, e := newBuf(t)
	e.Int3()
	e.IntImm8(4)
	e.IntImm8(5)
	require.Equal(t, []byte{0xCC, 0xCD, 0x04, 0xCD, 0x05}, buf.Bytes())
}

func TestJmpRel32PatchedForward(t *testing.T) {
	buf, e := newBuf(t)
	patch := e.JmpRel32()
	// Emit 3 bytes of filler ("the instruction at the branch target").
	buf.EmitBytes(0x90, 0x90, 0x90)
	target := buf.Position()
	buf.PatchRel32To(patch, target)

	code := buf.Bytes()
	require.Equal(t, byte(0xE9), code[0])
	gotDisp := int32(code[1]) | int32(code[2])<<8 | int32(code[3])<<16 | int32(code[4])<<24
	require.EqualValues(t, target-(patch+4), gotDisp)
}

func TestJccRel32UsesLongForm(t *testing.T) {
	buf, e := newBuf(t)
	e.JccRel32(asm.ConditionL)
	code := buf.Bytes()
	require.Equal(t, byte(0x0F), code[0])
	require.Equal(t, byte(0x8C), code[1])
	require.Len(t, code, 6) // 0x0F 0x8c + rel32, never the 2-byte short form
}

func TestPrologueEpilogue(t *testing.T) {
	buf, e := newBuf(t)
	adjust := e.EmitPrologue(40)
	require.EqualValues(t, 48, adjust) // 40 rounded up to 16
	e.EmitEpilogue(adjust)

	code := buf.Bytes()
	require.Equal(t, byte(0x55), code[0]) // push rbp
	require.Equal(t, []byte{0x48, 0x89, 0xE5}, code[1:4]) // mov rbp, rsp
	require.Equal(t, []byte{0x48, 0x81, 0xEC}, code[4:7]) // sub rsp, imm32
}

func TestHomeArgs(t *testing.T) {
	buf, e := newBuf(t)
	e.HomeArgs(4)
	code := buf.Bytes()
	// 4 stores of 8 bytes each: REX.W + 0x89 + modrm + disp32 = 7 bytes.
	require.Len(t, code, 4*7)
}

func TestZeroClearAndDivIdioms(t *testing.T) {
	buf, e := newBuf(t)
	e.Xor32SelfClear(asm.RDX)
	e.CdqOrCqo(asm.Width32)
	e.Idiv(asm.Width32, asm.RCX)
	code := buf.Bytes()
	require.NotEmpty(t, code)
	// cdq is a single 0x99 byte with no REX for the 32-bit form.
	require.Contains(t, code, byte(0x99))
}

func TestRepMovsb(t *testing.T) {
	buf, e := newBuf(t)
	e.RepMovsb()
	require.Equal(t, []byte{0xF3, 0xA4}, buf.Bytes())
}

func TestCodeBufferOverflowIsSticky(t *testing.T) {
	buf := asm.NewCodeBuffer(make([]byte, 2))
	e := asm.NewEmitter(buf)
	e.Ret()
	e.Ret()
	e.Ret()
	require.True(t, buf.HasOverflow())
	require.Nil(t, buf.FunctionPointer())
}
