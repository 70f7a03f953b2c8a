package cil_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ProtonOS/baseline-jit/internal/cil"
)

func TestDecodeSimpleSequence(t *testing.T) {
	// ldarg.0; ldarg.1; add; ret
	body := []byte{byte(cil.OpLdarg0), byte(cil.OpLdarg1), byte(cil.OpAdd), byte(cil.OpRet)}
	d := cil.NewDecoder(body)

	var ops []cil.Opcode
	for !d.Done() {
		inst, ok := d.Next()
		require.True(t, ok)
		ops = append(ops, inst.Opcode)
	}
	require.Equal(t, []cil.Opcode{cil.OpLdarg0, cil.OpLdarg1, cil.OpAdd, cil.OpRet}, ops)
}

func TestDecodeLdcI4AndI8(t *testing.T) {
	body := []byte{
		byte(cil.OpLdcI4), 0x2A, 0x00, 0x00, 0x00, // ldc.i4 42
		byte(cil.OpLdcI8), 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // ldc.i8 1
	}
	d := cil.NewDecoder(body)

	inst, ok := d.Next()
	require.True(t, ok)
	require.Equal(t, cil.OpLdcI4, inst.Opcode)
	require.EqualValues(t, 42, inst.I4)
	require.Equal(t, 5, inst.Len)

	inst, ok = d.Next()
	require.True(t, ok)
	require.Equal(t, cil.OpLdcI8, inst.Opcode)
	require.EqualValues(t, 1, inst.I8)
	require.Equal(t, 9, inst.Len)

	require.True(t, d.Done())
}

func TestDecodeShortBranchTarget(t *testing.T) {
	// br.s that jumps backward by -2 relative to the end of the br.s instruction.
	body := []byte{byte(cil.OpNop), byte(cil.OpBrS), 0xFE} // 0xFE == -2 as sbyte
	d := cil.NewDecoder(body)

	inst, ok := d.Next()
	require.True(t, ok)
	require.Equal(t, cil.OpNop, inst.Opcode)

	inst, ok = d.Next()
	require.True(t, ok)
	require.Equal(t, cil.OpBrS, inst.Opcode)
	require.EqualValues(t, -2, inst.I1)
	// next = offset(1) + len(2) = 3; target = 3 + (-2) = 1
	require.Equal(t, 1, inst.BranchTarget())
}

func TestDecodeSwitchTargets(t *testing.T) {
	body := []byte{
		byte(cil.OpSwitch),
		0x02, 0x00, 0x00, 0x00, // 2 targets
		0x05, 0x00, 0x00, 0x00, // +5
		0x0A, 0x00, 0x00, 0x00, // +10
	}
	d := cil.NewDecoder(body)
	inst, ok := d.Next()
	require.True(t, ok)
	require.Equal(t, cil.OpSwitch, inst.Opcode)
	require.Len(t, inst.Targets, 2)

	next := inst.Offset + inst.Len
	require.Equal(t, next+5, inst.SwitchTargets()[0])
	require.Equal(t, next+10, inst.SwitchTargets()[1])
}

func TestDecodePrefixedOpcode(t *testing.T) {
	body := []byte{byte(cil.OpPrefix), byte(cil.OpCeq)}
	d := cil.NewDecoder(body)
	inst, ok := d.Next()
	require.True(t, ok)
	require.Equal(t, cil.OpPrefix, inst.Opcode)
	require.Equal(t, cil.OpCeq, inst.Prefix)
	require.Equal(t, 2, inst.Len)
}

func TestDecodeConstrainedPrefixCarriesToken(t *testing.T) {
	body := []byte{
		byte(cil.OpPrefix), byte(cil.OpConstrained),
		0x01, 0x00, 0x00, 0x02, // token
		byte(cil.OpCallvirt),
		0x02, 0x00, 0x00, 0x06, // token
	}
	d := cil.NewDecoder(body)

	inst, ok := d.Next()
	require.True(t, ok)
	require.Equal(t, cil.OpConstrained, inst.Prefix)
	require.EqualValues(t, 0x02000001, inst.Token)

	inst, ok = d.Next()
	require.True(t, ok)
	require.Equal(t, cil.OpCallvirt, inst.Opcode)
	require.EqualValues(t, 0x06000002, inst.Token)
}

func TestJmpIsFatalUnsupported(t *testing.T) {
	body := []byte{byte(cil.OpJmp), 0, 0, 0, 0}
	d := cil.NewDecoder(body)
	inst, ok := d.Next()
	require.True(t, ok)
	require.True(t, inst.IsFatalUnsupported())
}
